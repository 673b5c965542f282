package repository

import (
	"fmt"
	"strings"
	"time"

	"bookrecorder/internal/model"
)

// parseCursor parses the compound cursor "id:timestamp" used for (created_at, id) keysets.
func parseCursor(cursor string) (time.Time, int64, error) {
	parts := strings.Split(cursor, ":")
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("%w: expected id:timestamp", model.ErrInvalidCursor)
	}
	var id, ts int64
	if _, err := fmt.Sscanf(parts[0], "%d", &id); err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", model.ErrInvalidCursor, err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &ts); err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", model.ErrInvalidCursor, err)
	}
	return time.Unix(0, ts), id, nil
}

// formatCursor is the inverse of parseCursor. Nanoseconds keep rows logged
// in the same second apart.
func formatCursor(t time.Time, id int64) string {
	return fmt.Sprintf("%d:%d", id, t.UnixNano())
}
