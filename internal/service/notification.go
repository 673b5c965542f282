package service

import (
	"context"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

const (
	notificationDefaultLimit = 20
	notificationMaxLimit     = 50
)

// NotificationService handles in-app notifications. The activity worker
// creates them; readers poll and mark them read.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	log       *logger.Logger
}

func NewNotificationService(notifRepo repository.NotificationRepository, log *logger.Logger) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		log:       log.With("component", "NotificationService"),
	}
}

// GetNotifications returns the newest notifications and the unread count.
func (s *NotificationService) GetNotifications(ctx context.Context, userID int64, limit int) (*model.NotificationListResponse, error) {
	if limit <= 0 {
		limit = notificationDefaultLimit
	}
	if limit > notificationMaxLimit {
		limit = notificationMaxLimit
	}

	notifications, unread, err := s.notifRepo.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// MarkAsRead marks specific notifications as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID int64, notificationIDs []int64) error {
	return s.notifRepo.MarkAsRead(ctx, userID, notificationIDs)
}

// MarkAllAsRead marks all notifications for a user as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.notifRepo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the number of unread notifications (for badge display).
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifRepo.GetUnreadCount(ctx, userID)
}

// CreateNotification stores a notification. Notifications about a user's own
// action are dropped.
func (s *NotificationService) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ActorID != nil && *n.ActorID == n.UserID {
		return nil
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}
	s.log.Debug("notification created", "user_id", n.UserID, "type", n.Type, "id", n.ID)
	return nil
}
