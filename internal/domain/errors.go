package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствующего идентификатора заявки.
	ErrRequestIDRequired = errors.New("request_id is required")
	// Ошибка отсутствующего заголовка заявки.
	ErrTitleRequired = errors.New("title is required")
	// Ошибка отрицательной границы бюджета.
	ErrBudgetNegative = errors.New("budget bounds must be non-negative")
	// Ошибка нарушения порядка границ бюджета (min > max).
	ErrBudgetRangeInvalid = errors.New("budget_min must not exceed budget_max")
	// Ошибка некорректного количества (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка некорректной цены предложения (<= 0).
	ErrPriceInvalid = errors.New("price must be greater than zero")
	// Ошибка отрицательной стоимости доставки.
	ErrDeliveryCostNegative = errors.New("delivery cost must be non-negative")

	// ErrRequestNotFound возвращается, если заявка не найдена в репозитории.
	ErrRequestNotFound = errors.New("request not found")
	// ErrOfferNotFound возвращается, если предложение не найдено.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrConversationNotFound возвращается, если диалог для пары участников не найден.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrStatusConflict сигнализирует о проигрыше условной записи:
	// хранимый статус не совпал с ожидаемым from-значением.
	ErrStatusConflict = errors.New("status conflict")
	// ErrDuplicateOffer — на пару (seller_id, request_id) предложение уже существует.
	ErrDuplicateOffer = errors.New("offer for this request already exists")
	// ErrDuplicateOrder — по заявке уже создан заказ.
	ErrDuplicateOrder = errors.New("order for this request already exists")
	// ErrDuplicateConversation — диалог для пары участников уже существует.
	ErrDuplicateConversation = errors.New("conversation already exists")

	// ErrOfferNotPending — предложение уже в терминальном статусе.
	ErrOfferNotPending = errors.New("offer is no longer pending")
	// ErrRequestNotOpen — заявка больше не принимает решения по предложениям.
	ErrRequestNotOpen = errors.New("request is no longer open")
	// ErrNotRequestBuyer — вызывающий не является покупателем заявки.
	ErrNotRequestBuyer = errors.New("caller is not the request buyer")
	// ErrAlreadyResolved — конкурирующая резолюция победила на условной записи.
	ErrAlreadyResolved = errors.New("offer already resolved by a concurrent call")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsStatusConflict проверяет, является ли ошибка конфликтом условной записи.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}

// IsNotFound проверяет, относится ли ошибка к классу "сущность не найдена".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrOfferNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrConversationNotFound)
}

// IsInvalidState проверяет, относится ли ошибка к классу "сущность в
// неподходящем статусе" (устаревшее чтение).
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrOfferNotPending) || errors.Is(err, ErrRequestNotOpen)
}

// IsTerminalError сообщает, что ошибка не подлежит повтору со стороны
// вызывающего: предусловие нарушено или гонка проиграна окончательно.
func IsTerminalError(err error) bool {
	return IsNotFound(err) ||
		IsInvalidState(err) ||
		errors.Is(err, ErrNotRequestBuyer) ||
		errors.Is(err, ErrAlreadyResolved)
}
