package gamification

// ExperiencePerLevel is the width of one level band.
const ExperiencePerLevel int64 = 100

// Progress is a user's cumulative experience and the level derived from it.
type Progress struct {
	UserID     int64 `db:"id" json:"user_id"`
	Experience int64 `db:"experience" json:"experience"`
	Level      int   `db:"level" json:"level"`
}

// LevelFor maps cumulative experience to a level. Levels start at 1 and have no cap.
func LevelFor(experience int64) int {
	if experience < 0 {
		experience = 0
	}
	return int(experience/ExperiencePerLevel) + 1
}

// PercentToNextLevel reports how far (0-99) the user is through the current band.
func (p Progress) PercentToNextLevel() int {
	if p.Experience <= 0 {
		return 0
	}
	return int(p.Experience % ExperiencePerLevel * 100 / ExperiencePerLevel)
}

// NextLevelAt is the cumulative experience at which the next level starts.
func (p Progress) NextLevelAt() int64 {
	return int64(LevelFor(p.Experience)) * ExperiencePerLevel
}
