package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
)

func TestFollowService_Toggle_Self(t *testing.T) {
	follows := &mockFollowRepository{
		existsFn: func(ctx context.Context, followerID, followeeID int64) (bool, error) {
			t.Fatal("Exists must not be called for a self follow")
			return false, nil
		},
	}
	svc := NewFollowService(follows, &mockUserRepository{}, nil, nil, nil, logger.Nop())

	_, err := svc.Toggle(context.Background(), 5, 5)
	assert.ErrorIs(t, err, model.ErrCannotFollowSelf)
}

func TestClampFollowLimit(t *testing.T) {
	assert.Equal(t, 20, clampFollowLimit(0))
	assert.Equal(t, 20, clampFollowLimit(-3))
	assert.Equal(t, 15, clampFollowLimit(15))
	assert.Equal(t, 20, clampFollowLimit(500))
}
