package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookrecorder/internal/model"
)

const pqUniqueViolation = "23505"

const userColumns = `id, username, email, password_hashed, display_name, bio, experience, level,
		       follower_count, following_count, book_count, created_at, updated_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user. Experience and level start at their column defaults.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (username, email, password_hashed, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, experience, level, follower_count, following_count, book_count, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query, u.Username, u.Email, u.PasswordHashed, u.DisplayName)
	err := row.Scan(
		&u.ID,
		&u.Experience,
		&u.Level,
		&u.FollowerCount,
		&u.FollowingCount,
		&u.BookCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == "users_email_key" {
				return model.ErrEmailExists
			}
			return model.ErrUsernameExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &u, nil
}

// ExistsByUsername checks if a username is already taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	return exists, nil
}

// Search matches usernames containing query, most followed first.
func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error) {
	searchQuery := `
		SELECT id, username, display_name, level
		FROM users
		WHERE username ILIKE $1
		ORDER BY follower_count DESC, id
		LIMIT $2
	`

	users := []model.UserSummary{}
	err := r.db.SelectContext(ctx, &users, searchQuery, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	out := make(map[int64]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []model.UserSummary
	query := `SELECT id, username, display_name, level FROM users WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get user summaries: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// TopByExperience is the source of truth the leaderboard cache is warmed from.
func (r *userRepository) TopByExperience(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `
		SELECT id, username, display_name, experience, level
		FROM users
		ORDER BY experience DESC, id
		LIMIT $1
	`
	entries := []model.LeaderboardEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (r *userRepository) TopReaders(ctx context.Context, by model.RankingKind, since *time.Time, limit int) ([]model.RankingEntry, error) {
	var agg string
	switch by {
	case model.RankingBooks:
		agg = "COUNT(b.id)"
	case model.RankingPages:
		agg = "COALESCE(SUM(b.pages), 0)"
	default:
		return nil, fmt.Errorf("unknown ranking %q", by)
	}

	query := `
		SELECT u.id, u.username, u.display_name, ` + agg + ` AS value
		FROM users u
		JOIN books b ON b.user_id = u.id
		WHERE ($1::timestamptz IS NULL OR b.created_at >= $1)
		GROUP BY u.id
		ORDER BY value DESC, u.id
		LIMIT $2
	`
	entries := []model.RankingEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to rank readers by %s: %w", by, err)
	}
	return entries, nil
}

func (r *userRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	query := `UPDATE users SET follower_count = follower_count + $1 WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to increment follower count: %w", err)
	}
	return nil
}

func (r *userRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	query := `UPDATE users SET following_count = following_count + $1 WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to increment following count: %w", err)
	}
	return nil
}
