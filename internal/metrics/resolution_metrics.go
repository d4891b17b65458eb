package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolutionMetrics содержит метрики workflow резолюции предложений.
type ResolutionMetrics struct {
	// Счётчики исходов
	offersAccepted      prometheus.Counter
	offersRejected      prometheus.Counter
	resolutionConflicts prometheus.Counter
	resolutionFailed    prometheus.Counter
	reconcilerRepairs   prometheus.Counter

	// Гистограмма времени выполнения резолюции
	resolutionDuration *prometheus.HistogramVec

	// Счётчики побочных эффектов
	outboxEvents       prometheus.Counter
	notificationErrors prometheus.Counter

	// Gauge для активных резолюций
	activeResolutions prometheus.Gauge
}

// NewResolutionMetrics создаёт новый экземпляр метрик резолюции.
func NewResolutionMetrics() *ResolutionMetrics {
	return newResolutionMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newResolutionMetricsWithRegisterer(registerer prometheus.Registerer) *ResolutionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ResolutionMetrics{
		offersAccepted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_offers_accepted_total",
			Help: "Total number of offers accepted successfully",
		}),
		offersRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_offers_rejected_total",
			Help: "Total number of offers rejected by the buyer",
		}),
		resolutionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_resolution_conflicts_total",
			Help: "Total number of resolutions lost to a concurrent conditional write",
		}),
		resolutionFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_resolution_failed_total",
			Help: "Total number of resolutions failed on a store error",
		}),
		reconcilerRepairs: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_reconciler_repairs_total",
			Help: "Total number of partial resolutions completed by the reconciler",
		}),
		resolutionDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_resolution_duration_seconds",
			Help:    "Duration of offer resolution operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_resolution_outbox_events_total",
			Help: "Total number of resolution events enqueued into the outbox",
		}),
		notificationErrors: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_resolution_notification_errors_total",
			Help: "Total number of best-effort notification/conversation failures",
		}),
		activeResolutions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "marketplace_active_resolutions",
			Help: "Number of currently running resolution operations",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOfferAccepted увеличивает счётчик принятых предложений.
func (m *ResolutionMetrics) RecordOfferAccepted() {
	m.offersAccepted.Inc()
}

// RecordOfferRejected увеличивает счётчик отклонённых предложений.
func (m *ResolutionMetrics) RecordOfferRejected() {
	m.offersRejected.Inc()
}

// RecordConflict увеличивает счётчик проигранных условных записей.
func (m *ResolutionMetrics) RecordConflict() {
	m.resolutionConflicts.Inc()
}

// RecordFailure увеличивает счётчик ошибок хранилища.
func (m *ResolutionMetrics) RecordFailure() {
	m.resolutionFailed.Inc()
}

// RecordReconcilerRepair увеличивает счётчик ремонтов reconcile-воркера.
func (m *ResolutionMetrics) RecordReconcilerRepair() {
	m.reconcilerRepairs.Inc()
}

// RecordResolutionDuration записывает время выполнения операции резолюции.
func (m *ResolutionMetrics) RecordResolutionDuration(operation string, duration time.Duration) {
	m.resolutionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *ResolutionMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordNotificationError увеличивает счётчик ошибок best-effort уведомлений.
func (m *ResolutionMetrics) RecordNotificationError() {
	m.notificationErrors.Inc()
}

// RecordResolutionStarted увеличивает количество активных резолюций.
func (m *ResolutionMetrics) RecordResolutionStarted() {
	m.activeResolutions.Inc()
}

// RecordResolutionFinished уменьшает количество активных резолюций.
func (m *ResolutionMetrics) RecordResolutionFinished() {
	m.activeResolutions.Dec()
}
