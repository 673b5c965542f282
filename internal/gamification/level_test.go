package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		experience int64
		want       int
	}{
		{0, 1},
		{1, 1},
		{99, 1},
		{100, 2},
		{199, 2},
		{250, 3},
		{999, 10},
		{1000, 11},
		{-5, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.experience), "experience=%d", tt.experience)
	}
}

func TestLevelForIsMonotonic(t *testing.T) {
	prev := LevelFor(0)
	for e := int64(1); e <= 5000; e++ {
		l := LevelFor(e)
		if l < prev {
			t.Fatalf("level decreased at experience %d: %d -> %d", e, prev, l)
		}
		prev = l
	}
}

func TestProgressBand(t *testing.T) {
	p := Progress{Experience: 250, Level: LevelFor(250)}
	assert.Equal(t, 50, p.PercentToNextLevel())
	assert.Equal(t, int64(300), p.NextLevelAt())

	zero := Progress{Level: 1}
	assert.Equal(t, 0, zero.PercentToNextLevel())
	assert.Equal(t, int64(100), zero.NextLevelAt())
}
