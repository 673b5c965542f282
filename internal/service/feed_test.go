package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedCursor_RoundTrip(t *testing.T) {
	cursor := formatFeedCursor(1767225600000, 42)
	assert.Equal(t, "42:1767225600000", cursor)

	score, id, err := parseFeedCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, float64(1767225600000), score)
}

func TestParseFeedCursor_Invalid(t *testing.T) {
	for _, cursor := range []string{"", "42", "abc:123", "42:xyz", "1:2:3"} {
		t.Run(cursor, func(t *testing.T) {
			_, _, err := parseFeedCursor(cursor)
			assert.Error(t, err)
		})
	}
}
