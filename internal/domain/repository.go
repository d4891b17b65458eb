package domain

// RequestRepository описывает требования к хранилищу заявок.
type RequestRepository interface {
	// Create сохраняет новую заявку. Возвращает ошибку, если ID уже занят.
	Create(request Request) error
	// Get возвращает заявку по идентификатору или ErrRequestNotFound.
	Get(id string) (Request, error)
	// ListByStatus возвращает заявки в заданном статусе (limit > 0 ограничивает выборку).
	ListByStatus(status RequestStatus, limit int) ([]Request, error)
	// UpdateStatus выполняет условную запись статуса: переход применяется,
	// только если хранимый статус равен from. Иначе возвращается
	// ErrStatusConflict, при отсутствии записи — ErrRequestNotFound.
	UpdateStatus(id string, from, to RequestStatus) error
}

// OfferRepository описывает требования к хранилищу предложений.
type OfferRepository interface {
	// Create сохраняет новое предложение. На дубликат пары
	// (seller_id, request_id) возвращает ErrDuplicateOffer.
	Create(offer Offer) error
	// Get возвращает предложение по идентификатору или ErrOfferNotFound.
	Get(id string) (Offer, error)
	// GetBySellerAndRequest возвращает предложение продавца по заявке
	// или ErrOfferNotFound. Используется как guard от дублей при подаче.
	GetBySellerAndRequest(sellerID, requestID string) (Offer, error)
	// ListByRequest возвращает все предложения по заявке.
	ListByRequest(requestID string) ([]Offer, error)
	// ListPendingByRequest возвращает ожидающие решения предложения по заявке,
	// исключая excludeID (пустая строка — без исключений).
	ListPendingByRequest(requestID, excludeID string) ([]Offer, error)
	// ListByStatus возвращает предложения в заданном статусе; используется
	// reconcile-воркером для поиска незавершённых резолюций.
	ListByStatus(status OfferStatus, limit int) ([]Offer, error)
	// UpdateStatus выполняет условную запись статуса с контрактом,
	// аналогичным RequestRepository.UpdateStatus.
	UpdateStatus(id string, from, to OfferStatus) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. На вторую попытку по той же заявке
	// возвращает ErrDuplicateOrder.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByRequest возвращает заказ по заявке или ErrOrderNotFound.
	GetByRequest(requestID string) (Order, error)
	// ListByBuyer возвращает заказы покупателя с опциональным лимитом.
	ListByBuyer(buyerID string, limit int) ([]Order, error)
}

// ConversationRepository описывает хранилище диалогов.
type ConversationRepository interface {
	// Create сохраняет диалог. На существующую пару участников возвращает
	// ErrDuplicateConversation.
	Create(conversation Conversation) error
	// GetByParticipants возвращает диалог по неупорядоченной паре участников
	// или ErrConversationNotFound.
	GetByParticipants(userA, userB string) (Conversation, error)
}

// NotificationRepository описывает хранилище уведомлений.
type NotificationRepository interface {
	Create(notification Notification) error
	// ListByUser возвращает уведомления адресата, новые первыми.
	ListByUser(userID string, limit int) ([]Notification, error)
}

// OutboxRepository позволяет сохранять события резолюции для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}
