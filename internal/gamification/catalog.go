package gamification

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bookrecorder/internal/logger"
)

const (
	// CatalogVersion is bumped whenever Definitions changes meaningfully.
	CatalogVersion = 1

	// DefaultReward applies to stored achievements whose code has no reward entry.
	DefaultReward int64 = 50
)

// Definition is the seed form of an achievement. Code is the stable key that
// rewards are looked up by; Name is the unique display name. A stored row with
// either the same code or the same name keeps the definition from being inserted.
type Definition struct {
	Code        string
	Name        string
	Description string
	Image       string
	Kind        TriggerKind
	Threshold   int64
	Reward      int64
}

// Achievement is a stored catalog entry.
type Achievement struct {
	ID          int64       `db:"id" json:"id"`
	Code        string      `db:"code" json:"code"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Image       string      `db:"image" json:"image"`
	Kind        TriggerKind `db:"trigger_kind" json:"trigger_kind"`
	Threshold   int64       `db:"trigger_threshold" json:"trigger_threshold"`
}

// Definitions is the built-in achievement catalog.
var Definitions = []Definition{
	{"first_book", "First Book!", "You added your first book.", "1.png", TriggerBookCount, 1, 50},
	{"books_5", "5 Books Read!", "You added 5 books.", "2.png", TriggerBookCount, 5, 100},
	{"books_10", "10 Books Read!", "You added 10 books.", "3.png", TriggerBookCount, 10, 200},
	{"books_25", "25 Books Read!", "You added 25 books.", "4.png", TriggerBookCount, 25, 300},
	{"books_50", "50 Books Read!", "You added 50 books.", "5.png", TriggerBookCount, 50, 500},
	{"first_finished_book", "First Finished Book", "You marked a book as read.", "6.png", TriggerBookCount, 1, 50},
	{"reader_of_the_week", "Reader of the Week", "You added 3 books in one week.", "7.png", TriggerWeeklyBookCount, 3, 150},
	{"reader_of_the_month", "Reader of the Month", "You added 10 books in one month.", "8.png", TriggerMonthlyBookCount, 10, 250},
	{"pages_1000", "Page Marathoner", "You read 1000 pages in total.", "9.png", TriggerPageTotal, 1000, 100},
	{"pages_5000", "Page Marathoner II", "You read 5000 pages in total.", "10.png", TriggerPageTotal, 5000, 250},
	{"pages_10000", "Page Marathoner III", "You read 10,000 pages in total.", "11.png", TriggerPageTotal, 10000, 500},
	{"devoted_reader", "Devoted Reader", "You added 5 books by the same author.", "12.png", TriggerSameAuthorCount, 5, 100},
	{"author_collector", "Book Collector", "You added books by 20 different authors.", "13.png", TriggerDistinctAuthorCount, 20, 150},
	{"first_note", "First Note", "You wrote a note for a book.", "14.png", TriggerNoteCount, 1, 50},
	{"notes_10", "Note Enthusiast", "You wrote notes for 10 different books.", "15.png", TriggerNoteCount, 10, 100},
	{"notes_50", "Detail Oriented", "You wrote notes for 50 different books.", "16.png", TriggerNoteCount, 50, 200},
	{"comments_50", "Popular Commenter", "You wrote 50 comments.", "17.png", TriggerCommentCount, 50, 100},
	{"first_follow", "First Follow", "You followed someone.", "18.png", TriggerFollowingCount, 1, 50},
	{"first_follower", "Gaining Followers!", "Someone started following you.", "19.png", TriggerFollowerCount, 1, 50},
	{"followers_10", "Follower Forest", "You have 10 followers.", "20.png", TriggerFollowerCount, 10, 150},
	{"following_10", "Social Bird", "You follow 10 users.", "21.png", TriggerFollowingCount, 10, 100},
	{"following_50", "Super Social", "You follow 50 users.", "22.png", TriggerFollowingCount, 50, 250},
	{"shared_taste", "Shared Taste", "You read the same book as another user.", "23.png", TriggerCoReadCount, 1, 50},
	{"book_buddy", "Book Buddy", "You have 5 books in common with other readers.", "24.png", TriggerCoReadCount, 5, 100},
	{"level_2", "Welcome to Level 2", "You reached level 2.", "25.png", TriggerLevelReached, 2, 50},
	{"level_5", "Welcome to Level 5", "You reached level 5.", "26.png", TriggerLevelReached, 5, 100},
	{"level_10", "Welcome to Level 10", "You reached level 10.", "27.png", TriggerLevelReached, 10, 200},
	{"xp_100", "XP Monster", "You earned 100 XP in total.", "28.png", TriggerExperienceTotal, 100, 50},
	{"xp_500", "XP Star", "You earned 500 XP in total.", "29.png", TriggerExperienceTotal, 500, 100},
	{"xp_1000", "XP Legend", "You earned 1000 XP in total.", "30.png", TriggerExperienceTotal, 1000, 200},
	{"reading_marathon", "Reading Marathon", "You read 500 pages in one week.", "31.png", TriggerWeeklyPageTotal, 500, 100},
	{"marathoner_of_the_month", "Marathoner of the Month", "You read 2000 pages in one month.", "32.png", TriggerMonthlyPageTotal, 2000, 250},
	{"first_comment", "Friendly Commenter", "You commented on a book in the feed.", "33.png", TriggerCommentCount, 1, 50},
	{"book_remover", "Book Remover", "You deleted a book.", "34.png", TriggerDeletionCount, 1, 50},
}

// ValidateDefinitions checks that codes and names are unique, every kind has a
// predicate and thresholds and rewards are non-negative.
func ValidateDefinitions(defs []Definition) error {
	codes := make(map[string]bool, len(defs))
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Code == "" || d.Name == "" {
			return fmt.Errorf("achievement definition missing code or name: %+v", d)
		}
		if codes[d.Code] {
			return fmt.Errorf("duplicate achievement code %q", d.Code)
		}
		if names[d.Name] {
			return fmt.Errorf("duplicate achievement name %q", d.Name)
		}
		if !d.Kind.Valid() {
			return fmt.Errorf("achievement %q: %w: %q", d.Code, ErrUnknownTrigger, d.Kind)
		}
		if d.Threshold < 0 || d.Reward < 0 {
			return fmt.Errorf("achievement %q: negative threshold or reward", d.Code)
		}
		codes[d.Code] = true
		names[d.Name] = true
	}
	return nil
}

// Catalog is the immutable set of achievements the evaluator scans, together
// with the reward table keyed by achievement code.
type Catalog struct {
	Version      int
	achievements []Achievement
	rewards      map[string]int64
	log          *logger.Logger
}

// NewCatalog builds a catalog from stored rows. Rows whose kind has no
// predicate are left out with a warning.
func NewCatalog(rows []Achievement, defs []Definition, log *logger.Logger) *Catalog {
	c := &Catalog{
		Version: CatalogVersion,
		rewards: make(map[string]int64, len(defs)),
		log:     log.With("component", "Catalog"),
	}
	for _, d := range defs {
		c.rewards[d.Code] = d.Reward
	}
	for _, a := range rows {
		if !a.Kind.Valid() {
			c.log.Warn("skipping achievement with unknown trigger kind", "achievement_id", a.ID, "code", a.Code, "kind", a.Kind)
			continue
		}
		c.achievements = append(c.achievements, a)
	}
	sort.Slice(c.achievements, func(i, j int) bool { return c.achievements[i].ID < c.achievements[j].ID })
	return c
}

// Achievements returns the catalog in ascending id order. The slice is a copy.
func (c *Catalog) Achievements() []Achievement {
	out := make([]Achievement, len(c.achievements))
	copy(out, c.achievements)
	return out
}

// Len is the number of evaluable achievements.
func (c *Catalog) Len() int {
	return len(c.achievements)
}

// Reward looks up the configured reward for an achievement code.
func (c *Catalog) Reward(code string) (int64, bool) {
	r, ok := c.rewards[code]
	return r, ok
}

// RewardFor returns the experience reward for a. Unmapped codes get DefaultReward.
func (c *Catalog) RewardFor(a Achievement) int64 {
	if r, ok := c.rewards[a.Code]; ok {
		return r
	}
	c.log.Warn("no reward configured for achievement, using default", "achievement_id", a.ID, "code", a.Code, "default", DefaultReward)
	return DefaultReward
}

// SeedCatalog inserts every definition that is not yet stored (matched by
// code or name) and loads the resulting catalog. Safe to call on every
// startup, including after a definition was renamed.
func SeedCatalog(ctx context.Context, store CatalogStore, defs []Definition, log *logger.Logger) (*Catalog, error) {
	if err := ValidateDefinitions(defs); err != nil {
		return nil, err
	}

	inserted := 0
	for _, d := range defs {
		ok, err := store.InsertAchievementIfAbsent(ctx, d)
		if err != nil {
			return nil, persistence("seed achievement "+d.Code, err)
		}
		if ok {
			inserted++
		}
	}

	rows, err := store.ListAchievements(ctx)
	if err != nil {
		return nil, persistence("list achievements", err)
	}

	catalog := NewCatalog(rows, defs, log)
	log.Info("achievement catalog ready",
		"version", catalog.Version,
		"inserted", inserted,
		"achievements", catalog.Len(),
	)
	return catalog, nil
}

// Grant is an achievement a user has unlocked.
type Grant struct {
	Achievement
	UnlockedAt time.Time `db:"unlocked_at" json:"unlocked_at"`
}
