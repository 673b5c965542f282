package gamification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrecorder/internal/logger"
)

func TestDefinitionsAreValid(t *testing.T) {
	require.NoError(t, ValidateDefinitions(Definitions))
	assert.Len(t, Definitions, 34)
}

func TestValidateDefinitionsRejects(t *testing.T) {
	first := definition("first_book")

	dupCode := first
	dupCode.Name = "Another"
	err := ValidateDefinitions([]Definition{first, dupCode})
	assert.ErrorContains(t, err, "duplicate achievement code")

	dupName := first
	dupName.Code = "another"
	err = ValidateDefinitions([]Definition{first, dupName})
	assert.ErrorContains(t, err, "duplicate achievement name")

	unknown := first
	unknown.Kind = "reading_streak"
	err = ValidateDefinitions([]Definition{unknown})
	assert.True(t, errors.Is(err, ErrUnknownTrigger))

	negative := first
	negative.Reward = -1
	assert.Error(t, ValidateDefinitions([]Definition{negative}))
}

func TestSeedCatalogTwiceKeepsOneRowPerName(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	first, err := SeedCatalog(ctx, store, Definitions, logger.Nop())
	require.NoError(t, err)
	second, err := SeedCatalog(ctx, store, Definitions, logger.Nop())
	require.NoError(t, err)

	rows, err := store.ListAchievements(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, len(Definitions))

	names := make(map[string]int)
	for _, r := range rows {
		names[r.Name]++
	}
	for name, n := range names {
		assert.Equal(t, 1, n, "achievement %q stored %d times", name, n)
	}

	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, CatalogVersion, second.Version)
}

func TestSeedCatalogAfterRenameKeepsStoredRow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	_, err := SeedCatalog(ctx, store, Definitions, logger.Nop())
	require.NoError(t, err)

	renamed := append([]Definition(nil), Definitions...)
	renamed[0].Name = "A Brand New Name"
	c, err := SeedCatalog(ctx, store, renamed, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, len(Definitions), c.Len())

	rows, err := store.ListAchievements(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(Definitions))
	assert.Equal(t, Definitions[0].Code, rows[0].Code)
	assert.Equal(t, Definitions[0].Name, rows[0].Name)
	assert.Equal(t, Definitions[0].Reward, c.RewardFor(rows[0]))
}

func TestCatalogSkipsUnknownKinds(t *testing.T) {
	rows := []Achievement{
		{ID: 2, Code: "books_5", Name: "5 Books Read!", Kind: TriggerBookCount, Threshold: 5},
		{ID: 1, Code: "legacy", Name: "Legacy", Kind: "reading_streak", Threshold: 3},
		{ID: 3, Code: "first_book", Name: "First Book!", Kind: TriggerBookCount, Threshold: 1},
	}

	c := NewCatalog(rows, Definitions, logger.Nop())
	got := c.Achievements()
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
}

func TestRewardForFallsBackToDefault(t *testing.T) {
	c := NewCatalog(nil, Definitions, logger.Nop())

	assert.Equal(t, int64(500), c.RewardFor(Achievement{Code: "books_50"}))
	assert.Equal(t, DefaultReward, c.RewardFor(Achievement{Code: "renamed_or_unknown"}))
}
