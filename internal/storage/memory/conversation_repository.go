package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// conversationRepositoryInMemory хранит диалоги по неупорядоченной паре участников.
type conversationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[participantsKey]domain.Conversation
}

type participantsKey struct {
	low  string
	high string
}

// newParticipantsKey нормализует пару участников: порядок аргументов не важен.
func newParticipantsKey(userA, userB string) participantsKey {
	if userA > userB {
		userA, userB = userB, userA
	}
	return participantsKey{low: userA, high: userB}
}

// NewConversationRepository возвращает in-memory репозиторий диалогов.
func NewConversationRepository() domain.ConversationRepository {
	return &conversationRepositoryInMemory{
		items: make(map[participantsKey]domain.Conversation),
	}
}

// Create сохраняет диалог; существующая пара участников отклоняется.
func (r *conversationRepositoryInMemory) Create(conversation domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := newParticipantsKey(conversation.BuyerID, conversation.SellerID)
	if _, exists := r.items[key]; exists {
		return domain.ErrDuplicateConversation
	}
	r.items[key] = conversation
	return nil
}

// GetByParticipants возвращает диалог по неупорядоченной паре участников.
func (r *conversationRepositoryInMemory) GetByParticipants(userA, userB string) (domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.items[newParticipantsKey(userA, userB)]
	if !ok {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return conversation, nil
}

var _ domain.ConversationRepository = (*conversationRepositoryInMemory)(nil)
