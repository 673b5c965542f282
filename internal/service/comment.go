package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/queue"
	"bookrecorder/internal/repository"
)

const (
	commentDefaultLimit = 20
	commentMaxLimit     = 50
)

// CommentResult is the stored comment and what writing it earned.
type CommentResult struct {
	Comment *model.Comment `json:"comment"`
	Outcome
}

type CommentService struct {
	db          *sqlx.DB
	commentRepo repository.CommentRepository
	bookRepo    repository.BookRepository
	userRepo    repository.UserRepository
	progression *Progression
	publisher   queue.Publisher
	commentXP   int64
	log         *logger.Logger
}

func NewCommentService(
	db *sqlx.DB,
	commentRepo repository.CommentRepository,
	bookRepo repository.BookRepository,
	userRepo repository.UserRepository,
	progression *Progression,
	publisher queue.Publisher,
	commentXP int64,
	log *logger.Logger,
) *CommentService {
	return &CommentService{
		db:          db,
		commentRepo: commentRepo,
		bookRepo:    bookRepo,
		userRepo:    userRepo,
		progression: progression,
		publisher:   publisher,
		commentXP:   commentXP,
		log:         log.With("component", "CommentService"),
	}
}

// Create comments on any book. The comment and its reward commit together.
func (s *CommentService) Create(ctx context.Context, bookID, userID int64, req model.CreateCommentRequest) (*CommentResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	comment, err := s.commentRepo.Create(ctx, tx, bookID, userID, content)
	if err != nil {
		return nil, err
	}

	progress, err := s.progression.RewardTx(ctx, tx, userID, s.commentXP)
	if err != nil {
		return nil, fmt.Errorf("reward comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if s.publisher != nil {
		event := queue.NewCommentAddedEvent(bookID, userID, book.UserID)
		if _, err := s.publisher.Publish(ctx, queue.StreamActivity, event); err != nil {
			s.log.Warn("failed to publish comment event", "book_id", bookID, "error", err)
		}
	}

	if summaries, err := s.userRepo.GetSummaries(ctx, []int64{userID}); err == nil {
		if author, ok := summaries[userID]; ok {
			comment.Author = &author
		}
	}

	return &CommentResult{Comment: comment, Outcome: s.progression.Settle(ctx, userID, &progress)}, nil
}

// Delete removes the caller's own comment. The reward it earned is kept.
func (s *CommentService) Delete(ctx context.Context, commentID, userID int64) error {
	bookID, err := s.commentRepo.Delete(ctx, commentID, userID)
	if err != nil {
		return err
	}
	s.log.Debug("comment deleted", "comment_id", commentID, "book_id", bookID)
	return nil
}

// List pages through a book's comments, newest first.
func (s *CommentService) List(ctx context.Context, bookID int64, cursor *string, limit int) (*model.CommentListResponse, error) {
	if limit <= 0 {
		limit = commentDefaultLimit
	}
	if limit > commentMaxLimit {
		limit = commentMaxLimit
	}

	if _, err := s.bookRepo.GetByID(ctx, bookID); err != nil {
		return nil, err
	}

	comments, nextCursor, err := s.commentRepo.GetByBookID(ctx, bookID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &model.CommentListResponse{
		Comments:   comments,
		NextCursor: nextCursor,
		HasMore:    nextCursor != nil,
	}, nil
}
