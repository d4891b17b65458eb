package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

const (
	defaultReconcileInterval = 30 * time.Second
	defaultReconcileBatch    = 100
	// defaultReopenGrace — минимальный возраст закрытия, после которого
	// закрытую заявку без результата можно вернуть в open. Живое принятие
	// между условными записями моложе этого порога.
	defaultReopenGrace = 2 * time.Minute
)

// Reconciler доводит до конца частично применённые резолюции: принятое
// предложение без заказа и закрытая заявка без принятого предложения.
// Оба состояния возникают только при падении процесса между условными
// записями workflow; повторный запуск сканирования безопасен.
type Reconciler struct {
	requests  domain.RequestRepository
	offers    domain.OfferRepository
	orders    domain.OrderRepository
	outbox    domain.OutboxRepository
	logger      *log.Entry
	metrics     *metrics.ResolutionMetrics
	interval    time.Duration
	batchSize   int
	reopenGrace time.Duration
}

// ReconcilerOption настраивает Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger задаёт логгер воркера.
func WithLogger(logger *log.Entry) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInterval задаёт период сканирования.
func WithInterval(interval time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithBatchSize задаёт размер выборки за одно сканирование.
func WithBatchSize(size int) ReconcilerOption {
	return func(r *Reconciler) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithReopenGrace задаёт минимальный возраст закрытия для возврата
// брошенной заявки в open.
func WithReopenGrace(grace time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if grace > 0 {
			r.reopenGrace = grace
		}
	}
}

// WithMetrics задаёт метрики воркера (nil отключает).
func WithMetrics(m *metrics.ResolutionMetrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// NewReconciler создаёт воркер согласования с настройками по умолчанию.
func NewReconciler(
	requests domain.RequestRepository,
	offers domain.OfferRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{
		requests:  requests,
		offers:    offers,
		orders:    orders,
		outbox:    outbox,
		logger:      log.New().WithField("component", "reconciler"),
		interval:    defaultReconcileInterval,
		batchSize:   defaultReconcileBatch,
		reopenGrace: defaultReopenGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run запускает периодическое сканирование до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.WithField("interval", r.interval.String()).Info("reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход согласования. Возвращает количество ремонтов.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	repaired := r.completeAcceptedOffers(ctx)
	repaired += r.reopenAbandonedRequests(ctx)
	if repaired > 0 {
		r.logger.WithField("repaired", repaired).Info("reconcile pass completed")
	}
	return repaired
}

// completeAcceptedOffers находит принятые предложения и досоздаёт отсутствующие
// заказы, попутно закрывая заявку, если закрытие не успело примениться.
func (r *Reconciler) completeAcceptedOffers(ctx context.Context) int {
	accepted, err := r.offers.ListByStatus(domain.OfferStatusAccepted, r.batchSize)
	if err != nil {
		r.logger.WithError(err).Error("failed to list accepted offers")
		return 0
	}

	repaired := 0
	for _, offer := range accepted {
		if ctx.Err() != nil {
			return repaired
		}

		request, err := r.requests.Get(offer.RequestID)
		if err != nil {
			r.logger.WithError(err).WithField("offer_id", offer.ID).Error("failed to load request for accepted offer")
			continue
		}

		// Принятое предложение обязано иметь закрытую заявку.
		if request.Status == domain.RequestStatusOpen {
			if err := r.requests.UpdateStatus(request.ID, domain.RequestStatusOpen, domain.RequestStatusClosed); err != nil && !domain.IsStatusConflict(err) {
				r.logger.WithError(err).WithField("request_id", request.ID).Error("failed to close request for accepted offer")
				continue
			}
			repaired++
			r.recordRepair(offer, "request_closed")
		}

		if _, err := r.orders.GetByRequest(request.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrOrderNotFound) {
			r.logger.WithError(err).WithField("request_id", request.ID).Error("failed to look up order for accepted offer")
			continue
		}

		order := domain.BuildOrder(offer, request, uuid.NewString(), time.Now().UTC())
		if err := r.orders.Create(order); err != nil {
			if errors.Is(err, domain.ErrDuplicateOrder) {
				continue
			}
			r.logger.WithError(err).WithFields(log.Fields{
				"offer_id":   offer.ID,
				"request_id": request.ID,
			}).Error("failed to create missing order")
			continue
		}

		repaired++
		r.recordRepair(offer, "order_created")
		r.logger.WithFields(log.Fields{
			"offer_id":   offer.ID,
			"request_id": request.ID,
			"order_id":   order.ID,
		}).Info("missing order created for accepted offer")
	}

	return repaired
}

// reopenAbandonedRequests возвращает в open заявки, закрытые упавшим принятием:
// заявка закрыта, но ни принятого предложения, ни заказа по ней нет.
func (r *Reconciler) reopenAbandonedRequests(ctx context.Context) int {
	closed, err := r.requests.ListByStatus(domain.RequestStatusClosed, r.batchSize)
	if err != nil {
		r.logger.WithError(err).Error("failed to list closed requests")
		return 0
	}

	repaired := 0
	for _, request := range closed {
		if ctx.Err() != nil {
			return repaired
		}

		// Свежее закрытие может принадлежать принятию, которое прямо сейчас
		// находится между условными записями. Реанимируем только заявки,
		// закрытые дольше reopenGrace назад.
		closedAt := request.UpdatedAt
		if closedAt.IsZero() {
			closedAt = request.CreatedAt
		}
		if time.Since(closedAt) < r.reopenGrace {
			continue
		}

		if _, err := r.orders.GetByRequest(request.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrOrderNotFound) {
			r.logger.WithError(err).WithField("request_id", request.ID).Error("failed to look up order for closed request")
			continue
		}

		offers, err := r.offers.ListByRequest(request.ID)
		if err != nil {
			r.logger.WithError(err).WithField("request_id", request.ID).Error("failed to list offers for closed request")
			continue
		}
		hasAccepted := false
		for _, offer := range offers {
			if offer.Status == domain.OfferStatusAccepted {
				hasAccepted = true
				break
			}
		}
		if hasAccepted {
			// Заказ досоздаст completeAcceptedOffers на этом же или
			// следующем проходе.
			continue
		}

		if err := r.requests.UpdateStatus(request.ID, domain.RequestStatusClosed, domain.RequestStatusOpen); err != nil {
			if domain.IsStatusConflict(err) {
				continue
			}
			r.logger.WithError(err).WithField("request_id", request.ID).Error("failed to reopen abandoned request")
			continue
		}

		repaired++
		if r.metrics != nil {
			r.metrics.RecordReconcilerRepair()
		}
		r.logger.WithField("request_id", request.ID).Info("abandoned request reopened")
	}

	return repaired
}

func (r *Reconciler) recordRepair(offer domain.Offer, action string) {
	if r.metrics != nil {
		r.metrics.RecordReconcilerRepair()
	}
	if r.outbox == nil {
		return
	}

	event := kafka.NewResolutionEvent(kafka.EventTypeResolutionRepaired, offer.ID, offer.RequestID, map[string]interface{}{
		"action": action,
	})
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.WithError(err).WithField("offer_id", offer.ID).Error("marshal repair event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "offer",
		AggregateID:   offer.ID,
		EventType:     string(kafka.EventTypeResolutionRepaired),
		Payload:       payload,
	}
	if _, err := r.outbox.Enqueue(msg); err != nil {
		r.logger.WithError(err).WithField("offer_id", offer.ID).Error("enqueue repair event failed")
	}
}
