package service

import (
	"context"
	"strings"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

const (
	messageDefaultLimit = 30
	messageMaxLimit     = 100
)

// MessageService covers direct messages and the general chat room.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	log         *logger.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, log *logger.Logger) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		log:         log.With("component", "MessageService"),
	}
}

// Send delivers a direct message to another reader.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID int64, req model.SendMessageRequest) (*model.PrivateMessage, error) {
	if senderID == receiverID {
		return nil, model.ErrCannotMessageSelf
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}
	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	msg, err := s.messageRepo.Send(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}
	s.log.Debug("message sent", "sender_id", senderID, "receiver_id", receiverID)
	return msg, nil
}

// Conversation pages through messages with peerID and marks the peer's
// messages read.
func (s *MessageService) Conversation(ctx context.Context, userID, peerID int64, cursor *string, limit int) (*model.MessageListResponse, error) {
	messages, nextCursor, err := s.messageRepo.ListConversation(ctx, userID, peerID, cursor, clampMessageLimit(limit))
	if err != nil {
		return nil, err
	}

	if cursor == nil {
		if err := s.messageRepo.MarkConversationRead(ctx, userID, peerID); err != nil {
			s.log.Warn("failed to mark conversation read", "user_id", userID, "peer_id", peerID, "error", err)
		}
	}

	return &model.MessageListResponse{
		Messages:   messages,
		NextCursor: nextCursor,
		HasMore:    nextCursor != nil,
	}, nil
}

// Inbox lists the user's conversations, most recent first.
func (s *MessageService) Inbox(ctx context.Context, userID int64) ([]model.Conversation, error) {
	return s.messageRepo.ListConversations(ctx, userID, messageMaxLimit)
}

// PostChat posts to the general chat room.
func (s *MessageService) PostChat(ctx context.Context, userID int64, req model.SendMessageRequest) (*model.ChatMessage, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	msg, err := s.messageRepo.PostChat(ctx, userID, content)
	if err != nil {
		return nil, err
	}
	if summaries, err := s.userRepo.GetSummaries(ctx, []int64{userID}); err == nil {
		if author, ok := summaries[userID]; ok {
			msg.Author = &author
		}
	}
	return msg, nil
}

// Chat pages through the general chat room, newest first.
func (s *MessageService) Chat(ctx context.Context, cursor *string, limit int) (*model.ChatListResponse, error) {
	messages, nextCursor, err := s.messageRepo.ListChat(ctx, cursor, clampMessageLimit(limit))
	if err != nil {
		return nil, err
	}
	return &model.ChatListResponse{
		Messages:   messages,
		NextCursor: nextCursor,
		HasMore:    nextCursor != nil,
	}, nil
}

func clampMessageLimit(limit int) int {
	if limit <= 0 {
		return messageDefaultLimit
	}
	if limit > messageMaxLimit {
		return messageMaxLimit
	}
	return limit
}
