package model

// LeaderboardEntry is one row of the experience ranking.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      int64   `db:"id" json:"user_id"`
	Username    string  `db:"username" json:"username"`
	DisplayName *string `db:"display_name" json:"display_name"`
	Experience  int64   `db:"experience" json:"experience"`
	Level       int     `db:"level" json:"level"`
}

// RankingKind selects what TopReaders ranks by.
type RankingKind string

const (
	RankingBooks RankingKind = "books"
	RankingPages RankingKind = "pages"
)

// RankingEntry is one row of a reading-activity ranking.
type RankingEntry struct {
	UserID      int64   `db:"id" json:"user_id"`
	Username    string  `db:"username" json:"username"`
	DisplayName *string `db:"display_name" json:"display_name"`
	Value       int64   `db:"value" json:"value"`
}

// RankingsResponse groups the reading-activity rankings.
type RankingsResponse struct {
	Experience []LeaderboardEntry `json:"experience"`
	Books      []RankingEntry     `json:"books"`
	Pages      []RankingEntry     `json:"pages"`
	ThisMonth  []RankingEntry     `json:"this_month"`
}
