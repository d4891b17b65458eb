package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Service реализует порт Messenger поверх репозиториев диалогов и уведомлений.
type Service struct {
	conversations domain.ConversationRepository
	notifications domain.NotificationRepository
	logger        *log.Entry
}

// NewService создаёт messaging-сервис с зависимостями.
func NewService(
	conversations domain.ConversationRepository,
	notifications domain.NotificationRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "messaging")
	}
	return &Service{
		conversations: conversations,
		notifications: notifications,
		logger:        logger,
	}
}

// EnsureConversation идемпотентно возвращает диалог пары покупатель/продавец.
// Гонка двух создателей разрешается повторным чтением после ErrDuplicateConversation.
func (s *Service) EnsureConversation(buyerID, sellerID, requestID string) (domain.Conversation, error) {
	existing, err := s.conversations.GetByParticipants(buyerID, sellerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return domain.Conversation{}, fmt.Errorf("lookup conversation: %w", err)
	}

	conversation := domain.Conversation{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		CreatedAt: time.Now().UTC(),
	}
	if requestID != "" {
		conversation.RequestID = &requestID
	}

	if err := s.conversations.Create(conversation); err != nil {
		if errors.Is(err, domain.ErrDuplicateConversation) {
			won, getErr := s.conversations.GetByParticipants(buyerID, sellerID)
			if getErr != nil {
				return domain.Conversation{}, fmt.Errorf("reload conversation after duplicate: %w", getErr)
			}
			return won, nil
		}
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"buyer_id":  buyerID,
		"seller_id": sellerID,
	}).Debug("conversation created")

	return conversation, nil
}

// Notify создаёт уведомление, дополняя его идентификатором и временем.
func (s *Service) Notify(notification domain.Notification) error {
	if notification.UserID == "" {
		return fmt.Errorf("notify: %w", domain.ErrBuyerRequired)
	}
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	if err := s.notifications.Create(notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"user_id": notification.UserID,
		"type":    notification.Type,
	}).Debug("notification created")

	return nil
}

var _ domain.Messenger = (*Service)(nil)
