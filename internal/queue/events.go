package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the activity stream
const (
	EventBookAdded           = "book_added"
	EventBookDeleted         = "book_deleted"
	EventUserFollowed        = "user_followed"
	EventUserUnfollowed      = "user_unfollowed"
	EventCommentAdded        = "comment_added"
	EventExperienceChanged   = "experience_changed"
	EventAchievementUnlocked = "achievement_unlocked"
)

// Stream names
const (
	StreamActivity = "stream:activity"
)

// Consumer group name for activity workers
const (
	ConsumerGroupActivity = "activity_workers"
)

// ActivityEvent is published after a user action or gamification change commits.
// All event types share this structure; unused fields are omitted.
type ActivityEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds when the event occurred

	// Book events (BookAdded, BookDeleted, CommentAdded)
	BookID  int64 `json:"book_id,omitempty"`
	UserID  int64 `json:"user_id,omitempty"`  // Acting user, or the user whose progress changed
	OwnerID int64 `json:"owner_id,omitempty"` // Book owner for CommentAdded

	// Follow events
	FollowerID int64 `json:"follower_id,omitempty"`
	FolloweeID int64 `json:"followee_id,omitempty"`

	// Gamification events
	AchievementID int64 `json:"achievement_id,omitempty"`
	Reward        int64 `json:"reward,omitempty"`
	Experience    int64 `json:"experience,omitempty"`
	Level         int   `json:"level,omitempty"`
}

func now() int64 {
	return time.Now().UnixMilli()
}

// NewBookAddedEvent fans the book out to the owner's followers.
// loggedAt is the book's created_at in Unix milliseconds.
func NewBookAddedEvent(bookID, userID, loggedAt int64) ActivityEvent {
	return ActivityEvent{
		Type:      EventBookAdded,
		Timestamp: loggedAt,
		BookID:    bookID,
		UserID:    userID,
	}
}

// NewBookDeletedEvent removes the book from followers' feeds.
func NewBookDeletedEvent(bookID, userID int64) ActivityEvent {
	return ActivityEvent{
		Type:      EventBookDeleted,
		Timestamp: now(),
		BookID:    bookID,
		UserID:    userID,
	}
}

// NewUserFollowedEvent backfills the followee's recent books into the follower's feed.
func NewUserFollowedEvent(followerID, followeeID int64) ActivityEvent {
	return ActivityEvent{
		Type:       EventUserFollowed,
		Timestamp:  now(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewUserUnfollowedEvent removes the followee's books from the follower's feed.
func NewUserUnfollowedEvent(followerID, followeeID int64) ActivityEvent {
	return ActivityEvent{
		Type:       EventUserUnfollowed,
		Timestamp:  now(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewCommentAddedEvent notifies the book owner.
func NewCommentAddedEvent(bookID, commenterID, ownerID int64) ActivityEvent {
	return ActivityEvent{
		Type:      EventCommentAdded,
		Timestamp: now(),
		BookID:    bookID,
		UserID:    commenterID,
		OwnerID:   ownerID,
	}
}

// NewExperienceChangedEvent updates the leaderboard.
func NewExperienceChangedEvent(userID, experience int64, level int) ActivityEvent {
	return ActivityEvent{
		Type:       EventExperienceChanged,
		Timestamp:  now(),
		UserID:     userID,
		Experience: experience,
		Level:      level,
	}
}

// NewAchievementUnlockedEvent notifies the user and updates the leaderboard.
func NewAchievementUnlockedEvent(userID, achievementID, reward, experience int64, level int) ActivityEvent {
	return ActivityEvent{
		Type:          EventAchievementUnlocked,
		Timestamp:     now(),
		UserID:        userID,
		AchievementID: achievementID,
		Reward:        reward,
		Experience:    experience,
		Level:         level,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e ActivityEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseActivityEvent parses an ActivityEvent from Redis stream message values.
func ParseActivityEvent(values map[string]interface{}) (ActivityEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ActivityEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ActivityEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ActivityEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
