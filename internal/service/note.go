package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

// NoteResult is the stored note and the achievements it unlocked.
type NoteResult struct {
	Note *model.Note `json:"note"`
	Outcome
}

type NoteService struct {
	db          *sqlx.DB
	noteRepo    repository.NoteRepository
	bookRepo    repository.BookRepository
	progression *Progression
	log         *logger.Logger
}

func NewNoteService(
	db *sqlx.DB,
	noteRepo repository.NoteRepository,
	bookRepo repository.BookRepository,
	progression *Progression,
	log *logger.Logger,
) *NoteService {
	return &NoteService{
		db:          db,
		noteRepo:    noteRepo,
		bookRepo:    bookRepo,
		progression: progression,
		log:         log.With("component", "NoteService"),
	}
}

// AddNote attaches a note to one of the caller's own books. Notes carry no
// flat reward, but annotating books unlocks achievements.
func (s *NoteService) AddNote(ctx context.Context, bookID, userID int64, req model.CreateNoteRequest) (*NoteResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.UserID != userID {
		return nil, model.ErrNotBookOwner
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	note, err := s.noteRepo.Create(ctx, tx, bookID, userID, content)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.log.Debug("note added", "book_id", bookID, "note_id", note.ID)
	return &NoteResult{Note: note, Outcome: s.progression.Settle(ctx, userID, nil)}, nil
}
