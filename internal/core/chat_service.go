package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"veritas.app/backend/internal/logging"
	"veritas.app/backend/internal/store"
)

// ChatService validates chat requests and forwards them to the store.
// Not-found conditions surface as store.ErrNotFound.
type ChatService struct {
	dbStore store.DocumentStore
	log     *logrus.Entry
}

func NewChatService(db store.DocumentStore, logger logrus.FieldLogger) *ChatService {
	return &ChatService{
		dbStore: db,
		log:     logging.Component(logger, "chats"),
	}
}

func (s *ChatService) CreateChat(ctx context.Context, userID, title string) (*store.Chat, error) {
	if userID == "" {
		return nil, invalid("User ID is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = store.DefaultChatTitle
	}

	chat, err := s.dbStore.CreateChat(ctx, userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat in DB: %w", err)
	}
	s.log.WithFields(logrus.Fields{"chat_id": chat.ID, "user_id": userID}).Info("chat created")
	return chat, nil
}

func (s *ChatService) GetChats(ctx context.Context, userID string) ([]store.Chat, error) {
	if userID == "" {
		return nil, invalid("User ID is required")
	}
	return s.dbStore.ListChats(ctx, userID)
}

func (s *ChatService) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	return s.dbStore.GetChat(ctx, chatID)
}

func (s *ChatService) RenameChat(ctx context.Context, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("Title is required")
	}
	return s.dbStore.UpdateChatTitle(ctx, chatID, title)
}

func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.dbStore.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	s.log.WithField("chat_id", chatID).Info("chat deleted with its messages")
	return nil
}

func (s *ChatService) GetMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	return s.dbStore.ListMessages(ctx, chatID)
}
