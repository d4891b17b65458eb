package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// offerRepositoryInMemory — простая in-memory реализация OfferRepository.
type offerRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Offer
	// pairIndex защищает инвариант "одно предложение на пару (seller, request)".
	pairIndex map[pairKey]string
}

type pairKey struct {
	sellerID  string
	requestID string
}

// NewOfferRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOfferRepository() domain.OfferRepository {
	return &offerRepositoryInMemory{
		items:     make(map[string]domain.Offer),
		pairIndex: make(map[pairKey]string),
	}
}

// Create сохраняет новое предложение, отклоняя дубликаты по ID и по паре
// (seller_id, request_id).
func (r *offerRepositoryInMemory) Create(offer domain.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[offer.ID]; exists {
		return domain.ErrStatusConflict
	}
	key := pairKey{sellerID: offer.SellerID, requestID: offer.RequestID}
	if _, exists := r.pairIndex[key]; exists {
		return domain.ErrDuplicateOffer
	}

	r.items[offer.ID] = offer
	r.pairIndex[key] = offer.ID
	return nil
}

// Get возвращает предложение или ErrOfferNotFound, если его нет.
func (r *offerRepositoryInMemory) Get(id string) (domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offer, ok := r.items[id]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return offer, nil
}

// GetBySellerAndRequest возвращает предложение продавца по заявке.
func (r *offerRepositoryInMemory) GetBySellerAndRequest(sellerID, requestID string) (domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.pairIndex[pairKey{sellerID: sellerID, requestID: requestID}]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return r.items[id], nil
}

// ListByRequest возвращает все предложения по заявке в порядке подачи.
func (r *offerRepositoryInMemory) ListByRequest(requestID string) ([]domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Offer, 0)
	for _, offer := range r.items {
		if offer.RequestID != requestID {
			continue
		}
		result = append(result, offer)
	}
	sortOffers(result)

	return result, nil
}

// ListPendingByRequest возвращает ожидающие предложения по заявке, исключая excludeID.
func (r *offerRepositoryInMemory) ListPendingByRequest(requestID, excludeID string) ([]domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Offer, 0)
	for _, offer := range r.items {
		if offer.RequestID != requestID || offer.Status != domain.OfferStatusPending {
			continue
		}
		if excludeID != "" && offer.ID == excludeID {
			continue
		}
		result = append(result, offer)
	}
	sortOffers(result)

	return result, nil
}

// ListByStatus возвращает предложения в статусе status, ограничивая выборку limit (если >0).
func (r *offerRepositoryInMemory) ListByStatus(status domain.OfferStatus, limit int) ([]domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Offer, 0)
	for _, offer := range r.items {
		if offer.Status != status {
			continue
		}
		result = append(result, offer)
	}
	sortOffers(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// UpdateStatus выполняет compare-and-swap по статусу предложения.
func (r *offerRepositoryInMemory) UpdateStatus(id string, from, to domain.OfferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return domain.ErrOfferNotFound
	}
	if current.Status != from {
		return domain.ErrStatusConflict
	}
	current.Status = to
	r.items[id] = current
	return nil
}

func sortOffers(offers []domain.Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
}

var _ domain.OfferRepository = (*offerRepositoryInMemory)(nil)
