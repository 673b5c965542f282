package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
)

func TestNotificationService_CreateNotification(t *testing.T) {
	self, other := int64(1), int64(2)
	bookID := int64(10)

	tests := []struct {
		name        string
		n           *model.Notification
		wantCreated bool
	}{
		{
			name:        "comment from another reader",
			n:           &model.Notification{UserID: 1, ActorID: &other, Type: model.NotificationTypeComment, BookID: &bookID},
			wantCreated: true,
		},
		{
			name: "own action is dropped",
			n:    &model.Notification{UserID: 1, ActorID: &self, Type: model.NotificationTypeComment, BookID: &bookID},
		},
		{
			name:        "achievement has no actor",
			n:           &model.Notification{UserID: 1, Type: model.NotificationTypeAchievement},
			wantCreated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockNotificationRepository{}
			svc := NewNotificationService(repo, logger.Nop())

			require.NoError(t, svc.CreateNotification(context.Background(), tt.n))
			if tt.wantCreated {
				assert.Len(t, repo.created, 1)
			} else {
				assert.Empty(t, repo.created)
			}
		})
	}
}
