package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

const (
	operationAccept = "accept"
	operationReject = "reject"
)

// Workflow оркестрирует резолюцию предложения: принятие или отклонение
// с согласованным переходом статусов заявки, предложения и созданием заказа.
// Состояние не хранит; конкурентные вызовы сериализуются условными записями
// репозиториев.
type Workflow struct {
	requests  domain.RequestRepository
	offers    domain.OfferRepository
	orders    domain.OrderRepository
	messenger domain.Messenger
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.ResolutionMetrics
}

// NewWorkflow создаёт рабочий экземпляр workflow.
func NewWorkflow(
	requests domain.RequestRepository,
	offers domain.OfferRepository,
	orders domain.OrderRepository,
	messenger domain.Messenger,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "resolution")
	}
	return &Workflow{
		requests:  requests,
		offers:    offers,
		orders:    orders,
		messenger: messenger,
		outbox:    outbox,
		logger:    logger,
		metrics:   metrics.NewResolutionMetrics(),
	}
}

// NewWorkflowWithoutMetrics создаёт workflow без метрик (для тестов).
func NewWorkflowWithoutMetrics(
	requests domain.RequestRepository,
	offers domain.OfferRepository,
	orders domain.OrderRepository,
	messenger domain.Messenger,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Workflow {
	w := NewWorkflow(requests, offers, orders, messenger, outbox, logger)
	w.metrics = nil
	return w
}

// AcceptOffer принимает предложение от имени callerID.
//
// Предусловия проверяются до первой записи; затем переходы применяются в
// фиксированном порядке: закрытие заявки (единственная точка контенции для
// конкурирующих принятий), принятие предложения, отклонение остальных
// ожидающих предложений, создание заказа, побочные эффекты сообщений.
// Возвращает созданный заказ либо типизированную ошибку.
func (w *Workflow) AcceptOffer(ctx context.Context, offerID, callerID string) (domain.Order, error) {
	start := time.Now()
	if w.metrics != nil {
		w.metrics.RecordResolutionStarted()
	}
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordResolutionFinished()
			w.metrics.RecordResolutionDuration(operationAccept, time.Since(start))
		}
	}()

	offer, request, err := w.loadAndValidate(offerID, callerID)
	if err != nil {
		return domain.Order{}, err
	}

	// Отмена до первой записи запрещает начинать переход. После первой
	// условной записи workflow обязан дойти до конца или громко упасть.
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	// Закрытие заявки — первая меняющая состояние операция и единственная
	// запись, на которой сталкиваются два конкурирующих принятия по одной
	// заявке. Победитель ровно один.
	if err := w.requests.UpdateStatus(request.ID, domain.RequestStatusOpen, domain.RequestStatusClosed); err != nil {
		if domain.IsStatusConflict(err) {
			w.recordConflict()
			w.logger.WithFields(log.Fields{
				"offer_id":   offer.ID,
				"request_id": request.ID,
			}).Info("lost the request-closing race to a concurrent acceptance")
			return domain.Order{}, domain.ErrAlreadyResolved
		}
		w.recordFailure()
		return domain.Order{}, fmt.Errorf("close request %s: %w", request.ID, err)
	}

	if err := w.offers.UpdateStatus(offer.ID, domain.OfferStatusPending, domain.OfferStatusAccepted); err != nil {
		if domain.IsStatusConflict(err) {
			// Предложение ушло в терминальный статус, пока мы закрывали
			// заявку (например, конкурирующий RejectOffer). Компенсируем
			// закрытие и отдаём гонку.
			w.recordConflict()
			w.reopenRequest(request.ID, offer.ID)
			return domain.Order{}, domain.ErrAlreadyResolved
		}
		// Заявка уже закрыта, предложение не принято: частично применённый
		// переход. Не откатываем — состояние обнаружит и доведёт reconcile.
		w.recordFailure()
		w.logger.WithError(err).WithFields(log.Fields{
			"offer_id":   offer.ID,
			"request_id": request.ID,
		}).Error("request closed but offer acceptance failed, resolution left incomplete")
		w.emitEvent(offer, kafka.EventTypeResolutionFailed, map[string]interface{}{
			"stage":  "accept_offer",
			"reason": err.Error(),
		})
		return domain.Order{}, fmt.Errorf("accept offer %s: %w", offer.ID, err)
	}

	w.rejectLosingOffers(request.ID, offer.ID)

	order, err := w.createOrder(offer, request)
	if err != nil {
		w.recordFailure()
		w.logger.WithError(err).WithFields(log.Fields{
			"offer_id":   offer.ID,
			"request_id": request.ID,
		}).Error("offer accepted but order creation failed, resolution left incomplete")
		w.emitEvent(offer, kafka.EventTypeResolutionFailed, map[string]interface{}{
			"stage":  "create_order",
			"reason": err.Error(),
		})
		return domain.Order{}, fmt.Errorf("create order for offer %s: %w", offer.ID, err)
	}

	w.notifyAccepted(offer, request, order)

	if w.metrics != nil {
		w.metrics.RecordOfferAccepted()
	}
	w.emitEvent(offer, kafka.EventTypeOfferAccepted, map[string]interface{}{
		"buyer_id":  request.BuyerID,
		"seller_id": offer.SellerID,
		"order_id":  order.ID,
	})
	w.logger.WithFields(log.Fields{
		"offer_id":   offer.ID,
		"request_id": request.ID,
		"order_id":   order.ID,
	}).Info("offer accepted")

	return order, nil
}

// RejectOffer отклоняет предложение от имени callerID. Заявка остаётся
// открытой; заказ не создаётся.
func (w *Workflow) RejectOffer(ctx context.Context, offerID, callerID string) error {
	start := time.Now()
	if w.metrics != nil {
		w.metrics.RecordResolutionStarted()
	}
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordResolutionFinished()
			w.metrics.RecordResolutionDuration(operationReject, time.Since(start))
		}
	}()

	offer, request, err := w.loadAndValidate(offerID, callerID)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.offers.UpdateStatus(offer.ID, domain.OfferStatusPending, domain.OfferStatusRejected); err != nil {
		if domain.IsStatusConflict(err) {
			w.recordConflict()
			return domain.ErrAlreadyResolved
		}
		w.recordFailure()
		return fmt.Errorf("reject offer %s: %w", offer.ID, err)
	}

	w.notifySeller(offer, request, domain.NotificationTypeOfferRejected,
		"Offer Rejected",
		fmt.Sprintf("Your offer for %q was rejected by the buyer.", request.Title),
	)

	if w.metrics != nil {
		w.metrics.RecordOfferRejected()
	}
	w.emitEvent(offer, kafka.EventTypeOfferRejected, map[string]interface{}{
		"buyer_id":  request.BuyerID,
		"seller_id": offer.SellerID,
	})
	w.logger.WithFields(log.Fields{
		"offer_id":   offer.ID,
		"request_id": request.ID,
	}).Info("offer rejected")

	return nil
}

// loadAndValidate проверяет предусловия резолюции в фиксированном порядке:
// предложение существует и pending, заявка существует и открыта, вызывающий
// является покупателем заявки. Первая нарушенная проверка выигрывает.
func (w *Workflow) loadAndValidate(offerID, callerID string) (domain.Offer, domain.Request, error) {
	offer, err := w.offers.Get(offerID)
	if err != nil {
		if errors.Is(err, domain.ErrOfferNotFound) {
			return domain.Offer{}, domain.Request{}, err
		}
		w.recordFailure()
		return domain.Offer{}, domain.Request{}, fmt.Errorf("load offer %s: %w", offerID, err)
	}

	if offer.Status != domain.OfferStatusPending {
		return domain.Offer{}, domain.Request{}, domain.ErrOfferNotPending
	}

	request, err := w.requests.Get(offer.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return domain.Offer{}, domain.Request{}, err
		}
		w.recordFailure()
		return domain.Offer{}, domain.Request{}, fmt.Errorf("load request %s: %w", offer.RequestID, err)
	}

	if !request.IsOpen() {
		return domain.Offer{}, domain.Request{}, domain.ErrRequestNotOpen
	}

	if callerID != request.BuyerID {
		return domain.Offer{}, domain.Request{}, domain.ErrNotRequestBuyer
	}

	return offer, request, nil
}

// rejectLosingOffers отклоняет остальные ожидающие предложения по заявке.
// Каждое предложение — независимая проигравшая ставка: конфликт или ошибка
// по одному из них не прерывает пакет.
func (w *Workflow) rejectLosingOffers(requestID, winnerID string) {
	losing, err := w.offers.ListPendingByRequest(requestID, winnerID)
	if err != nil {
		w.logger.WithError(err).WithField("request_id", requestID).Error("failed to list losing offers")
		return
	}

	for _, loser := range losing {
		if err := w.offers.UpdateStatus(loser.ID, domain.OfferStatusPending, domain.OfferStatusRejected); err != nil {
			if domain.IsStatusConflict(err) {
				continue
			}
			w.logger.WithError(err).WithFields(log.Fields{
				"offer_id":   loser.ID,
				"request_id": requestID,
			}).Warn("failed to reject losing offer")
		}
	}
}

// createOrder создаёт заказ по принятому предложению. Дубликат по заявке
// означает, что заказ уже довёл reconcile или повторный вызов — тогда
// возвращается существующий.
func (w *Workflow) createOrder(offer domain.Offer, request domain.Request) (domain.Order, error) {
	order := domain.BuildOrder(offer, request, uuid.NewString(), time.Now().UTC())
	if err := w.orders.Create(order); err != nil {
		if errors.Is(err, domain.ErrDuplicateOrder) {
			existing, getErr := w.orders.GetByRequest(request.ID)
			if getErr != nil {
				return domain.Order{}, fmt.Errorf("reload order after duplicate: %w", getErr)
			}
			return existing, nil
		}
		return domain.Order{}, err
	}

	w.emitEvent(offer, kafka.EventTypeOrderCreated, map[string]interface{}{
		"order_id":     order.ID,
		"agreed_price": order.AgreedPriceMinor,
	})

	return order, nil
}

// reopenRequest компенсирует закрытие заявки, когда принятие предложения
// проиграло условную запись.
func (w *Workflow) reopenRequest(requestID, offerID string) {
	if err := w.requests.UpdateStatus(requestID, domain.RequestStatusClosed, domain.RequestStatusOpen); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"offer_id":   offerID,
			"request_id": requestID,
		}).Error("failed to reopen request after losing the offer race")
		return
	}
	w.logger.WithFields(log.Fields{
		"offer_id":   offerID,
		"request_id": requestID,
	}).Info("request reopened after losing the offer race")
}

// notifyAccepted выполняет best-effort побочные эффекты принятия: диалог
// между сторонами и уведомление продавца. Ошибки логируются, но результат
// резолюции не меняют.
func (w *Workflow) notifyAccepted(offer domain.Offer, request domain.Request, order domain.Order) {
	if w.messenger == nil {
		return
	}

	if _, err := w.messenger.EnsureConversation(request.BuyerID, offer.SellerID, request.ID); err != nil {
		w.recordNotificationError()
		w.logger.WithError(err).WithFields(log.Fields{
			"buyer_id":  request.BuyerID,
			"seller_id": offer.SellerID,
		}).Error("failed to ensure conversation after acceptance")
	}

	w.notifySeller(offer, request, domain.NotificationTypeOfferAccepted,
		"Offer Accepted",
		fmt.Sprintf("Your offer for %q was accepted. Order %s has been created.", request.Title, order.ID),
	)
}

func (w *Workflow) notifySeller(offer domain.Offer, request domain.Request, kind domain.NotificationType, title, message string) {
	if w.messenger == nil {
		return
	}

	err := w.messenger.Notify(domain.Notification{
		UserID:  offer.SellerID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    "/requests/" + request.ID,
	})
	if err != nil {
		w.recordNotificationError()
		w.logger.WithError(err).WithFields(log.Fields{
			"offer_id":  offer.ID,
			"seller_id": offer.SellerID,
		}).Error("failed to create notification")
	}
}

// emitEvent кладёт событие резолюции в outbox для последующей публикации.
func (w *Workflow) emitEvent(offer domain.Offer, eventType kafka.EventType, metadata map[string]interface{}) {
	if w.outbox == nil {
		return
	}

	event := kafka.NewResolutionEvent(eventType, offer.ID, offer.RequestID, metadata)
	data, err := json.Marshal(event)
	if err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"offer_id": offer.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "offer",
		AggregateID:   offer.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := w.outbox.Enqueue(msg); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"offer_id": offer.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if w.metrics != nil {
		w.metrics.RecordOutboxEvent()
	}
}

func (w *Workflow) recordConflict() {
	if w.metrics != nil {
		w.metrics.RecordConflict()
	}
}

func (w *Workflow) recordFailure() {
	if w.metrics != nil {
		w.metrics.RecordFailure()
	}
}

func (w *Workflow) recordNotificationError() {
	if w.metrics != nil {
		w.metrics.RecordNotificationError()
	}
}
