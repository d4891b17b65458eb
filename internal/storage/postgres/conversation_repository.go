package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type conversationRepository struct {
	db *sql.DB
}

// NewConversationRepository создаёт PostgreSQL-реализацию ConversationRepository.
func NewConversationRepository(store *Store) domain.ConversationRepository {
	return &conversationRepository{db: store.DB()}
}

// Create сохраняет диалог. Уникальность неупорядоченной пары участников
// обеспечивается нормализованными колонками participant_low/participant_high.
func (r *conversationRepository) Create(conversation domain.Conversation) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	low, high := normalizePair(conversation.BuyerID, conversation.SellerID)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, participant_low, participant_high, buyer_id, seller_id, request_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		conversation.ID, low, high, conversation.BuyerID, conversation.SellerID,
		conversation.RequestID, conversation.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateConversation
		}
		return fmt.Errorf("insert conversation: %w", err)
	}

	return nil
}

func (r *conversationRepository) GetByParticipants(userA, userB string) (domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	low, high := normalizePair(userA, userB)

	var conversation domain.Conversation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, request_id, created_at
		FROM conversations
		WHERE participant_low = $1
		  AND participant_high = $2
	`, low, high).Scan(
		&conversation.ID, &conversation.BuyerID, &conversation.SellerID,
		&conversation.RequestID, &conversation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversation{}, domain.ErrConversationNotFound
		}
		return domain.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}

	return conversation, nil
}

func normalizePair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

var _ domain.ConversationRepository = (*conversationRepository)(nil)
