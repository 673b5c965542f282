package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/gamification"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/queue"
	"bookrecorder/internal/repository"
)

const (
	bookListDefaultLimit = 20
	bookListMaxLimit     = 50
	bookDetailComments   = 20
	libraryLimit         = 200
)

// AddBookResult is the logged book and what logging it earned.
type AddBookResult struct {
	Book *model.Book `json:"book"`
	// Created is false when the reader had already logged this title; only
	// the note was added then.
	Created bool `json:"created"`
	Outcome
}

type BookService struct {
	db          *sqlx.DB
	bookRepo    repository.BookRepository
	noteRepo    repository.NoteRepository
	commentRepo repository.CommentRepository
	progression *Progression
	publisher   queue.Publisher
	media       *MediaService
	addXP       int64
	log         *logger.Logger
}

func NewBookService(
	db *sqlx.DB,
	bookRepo repository.BookRepository,
	noteRepo repository.NoteRepository,
	commentRepo repository.CommentRepository,
	progression *Progression,
	publisher queue.Publisher,
	media *MediaService,
	addXP int64,
	log *logger.Logger,
) *BookService {
	return &BookService{
		db:          db,
		bookRepo:    bookRepo,
		noteRepo:    noteRepo,
		commentRepo: commentRepo,
		progression: progression,
		publisher:   publisher,
		media:       media,
		addXP:       addXP,
		log:         log.With("component", "BookService"),
	}
}

// AddBook logs a book for userID and rewards it. Logging the same title and
// author twice attaches the note to the existing book without a reward.
func (s *BookService) AddBook(ctx context.Context, userID int64, req model.CreateBookRequest) (*AddBookResult, error) {
	title := strings.TrimSpace(req.Title)
	author := strings.TrimSpace(req.Author)
	if title == "" || author == "" {
		return nil, fmt.Errorf("%w: title and author are required", model.ErrInvalidBook)
	}

	var readDate *time.Time
	if req.ReadDate != "" {
		d, err := time.Parse(time.DateOnly, req.ReadDate)
		if err != nil {
			return nil, fmt.Errorf("%w: read_date must be YYYY-MM-DD", model.ErrInvalidBook)
		}
		readDate = &d
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	book, err := s.bookRepo.FindOwned(ctx, tx, userID, title, author)
	created := false
	switch {
	case errors.Is(err, model.ErrBookNotFound):
		book = &model.Book{
			UserID:   userID,
			Title:    title,
			Author:   author,
			Pages:    req.Pages,
			ReadDate: readDate,
		}
		if err := s.bookRepo.Create(ctx, tx, book); err != nil {
			return nil, err
		}
		created = true
	case err != nil:
		return nil, err
	}

	if note := strings.TrimSpace(req.Note); note != "" {
		if _, err := s.noteRepo.Create(ctx, tx, book.ID, userID, note); err != nil {
			return nil, err
		}
	}

	var rewarded *gamification.Progress
	if created {
		p, err := s.progression.RewardTx(ctx, tx, userID, s.addXP)
		if err != nil {
			return nil, fmt.Errorf("reward book: %w", err)
		}
		rewarded = &p
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if created {
		s.log.Info("book added", "book_id", book.ID, "user_id", userID)
		s.publish(ctx, queue.NewBookAddedEvent(book.ID, userID, book.CreatedAt.UnixMilli()))
	}

	return &AddBookResult{
		Book:    book,
		Created: created,
		Outcome: s.progression.Settle(ctx, userID, rewarded),
	}, nil
}

// GetBook returns a book with its notes and latest comments.
func (s *BookService) GetBook(ctx context.Context, bookID int64) (*model.BookDetail, error) {
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	notes, err := s.noteRepo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	comments, _, err := s.commentRepo.GetByBookID(ctx, bookID, nil, bookDetailComments)
	if err != nil {
		return nil, err
	}

	return &model.BookDetail{Book: book, Notes: notes, Comments: comments}, nil
}

// ListByUser pages through a reader's books, newest first.
func (s *BookService) ListByUser(ctx context.Context, userID int64, cursor *string, limit int) (*model.BookListResponse, error) {
	if limit <= 0 {
		limit = bookListDefaultLimit
	}
	if limit > bookListMaxLimit {
		limit = bookListMaxLimit
	}

	books, nextCursor, err := s.bookRepo.ListByUser(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &model.BookListResponse{
		Books:      books,
		NextCursor: nextCursor,
		HasMore:    nextCursor != nil,
	}, nil
}

// DeleteBook removes the caller's book. The removal is recorded, so it can
// still unlock achievements, and the book leaves every feed.
func (s *BookService) DeleteBook(ctx context.Context, bookID, userID int64) (*Outcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	book, err := s.bookRepo.Delete(ctx, tx, bookID, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.log.Info("book deleted", "book_id", bookID, "user_id", userID)
	s.publish(ctx, queue.NewBookDeletedEvent(bookID, userID))
	if book.CoverKey != nil && s.media != nil {
		s.media.DeleteCover(ctx, *book.CoverKey)
	}

	outcome := s.progression.Settle(ctx, userID, nil)
	return &outcome, nil
}

// Library lists every logged title once with the readers who logged it.
func (s *BookService) Library(ctx context.Context) ([]model.LibraryEntry, error) {
	return s.bookRepo.Library(ctx, libraryLimit)
}

func (s *BookService) publish(ctx context.Context, event queue.ActivityEvent) {
	if s.publisher == nil {
		return
	}
	msgID, err := s.publisher.Publish(ctx, queue.StreamActivity, event)
	if err != nil {
		// The book is committed; feeds catch up on the next cache warm.
		s.log.Warn("failed to publish event", "type", event.Type, "book_id", event.BookID, "error", err)
		return
	}
	s.log.Debug("event published", "type", event.Type, "book_id", event.BookID, "msg_id", msgID)
}
