package service

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"bookrecorder/internal/database"
	"bookrecorder/internal/gamification"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

const parallelActions = 8

type progressionFixture struct {
	db       *sqlx.DB
	store    *repository.GamificationStore
	catalog  *gamification.Catalog
	books    *BookService
	comments *CommentService
}

// newProgressionFixture wires the book and comment services to Postgres at
// TEST_DATABASE_URL and skips when no database is configured.
func newProgressionFixture(t *testing.T) *progressionFixture {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}

	ctx := context.Background()
	log := logger.Nop()
	db, err := database.Connect(ctx, dsn, log)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, dsn, log))

	_, err = db.Exec(`TRUNCATE users, achievements RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	store := repository.NewGamificationStore(db, log)
	catalog, err := gamification.SeedCatalog(ctx, store, gamification.Definitions, log)
	require.NoError(t, err)
	ledger := gamification.NewLedger(store, log)
	progression := NewProgression(store, ledger, gamification.NewEvaluator(store, ledger, catalog, log), nil, log)

	bookRepo := repository.NewBookRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	return &progressionFixture{
		db:       db,
		store:    store,
		catalog:  catalog,
		books:    NewBookService(db, bookRepo, repository.NewNoteRepository(db), commentRepo, progression, nil, nil, 10, log),
		comments: NewCommentService(db, commentRepo, bookRepo, repository.NewUserRepository(db), progression, nil, 2, log),
	}
}

func (f *progressionFixture) createUser(t *testing.T, username string) int64 {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHashed: "x"}
	require.NoError(t, repository.NewUserRepository(f.db).Create(context.Background(), u))
	return u.ID
}

// grantedRewards sums the rewards of every achievement stored for userID.
func (f *progressionFixture) grantedRewards(t *testing.T, userID int64) int64 {
	t.Helper()
	grants, err := f.store.ListGrants(context.Background(), userID)
	require.NoError(t, err)
	var total int64
	for _, g := range grants {
		total += f.catalog.RewardFor(g.Achievement)
	}
	return total
}

func TestParallelAddBookSameUser(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()
	userID := f.createUser(t, "reader1")

	var g errgroup.Group
	for i := 0; i < parallelActions; i++ {
		g.Go(func() error {
			_, err := f.books.AddBook(ctx, userID, model.CreateBookRequest{
				Title:  fmt.Sprintf("Book %d", i),
				Author: fmt.Sprintf("Author %d", i),
				Pages:  100,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	var books int
	require.NoError(t, f.db.Get(&books, `SELECT COUNT(*) FROM books WHERE user_id = $1`, userID))
	assert.Equal(t, parallelActions, books)

	p, err := f.store.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(parallelActions*10)+f.grantedRewards(t, userID), p.Experience)
	assert.Equal(t, gamification.LevelFor(p.Experience), p.Level)
}

func TestParallelCommentsSameUser(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()
	ownerID := f.createUser(t, "owner")
	userID := f.createUser(t, "reader1")

	added, err := f.books.AddBook(ctx, ownerID, model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert", Pages: 412})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < parallelActions; i++ {
		g.Go(func() error {
			_, err := f.comments.Create(ctx, added.Book.ID, userID, model.CreateCommentRequest{
				Content: fmt.Sprintf("comment %d", i),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	var comments int
	require.NoError(t, f.db.Get(&comments, `SELECT COUNT(*) FROM book_comments WHERE user_id = $1`, userID))
	assert.Equal(t, parallelActions, comments)

	p, err := f.store.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(parallelActions*2)+f.grantedRewards(t, userID), p.Experience)
}
