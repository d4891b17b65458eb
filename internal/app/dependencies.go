package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

// runtimeDependencies содержит репозитории, собранные под выбранный драйвер
// хранилища, и ресурсы, которые нужно закрыть при остановке.
type runtimeDependencies struct {
	requests      domain.RequestRepository
	offers        domain.OfferRepository
	orders        domain.OrderRepository
	conversations domain.ConversationRepository
	notifications domain.NotificationRepository
	outbox        domain.OutboxRepository

	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies собирает зависимости по конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			requests:      memory.NewRequestRepository(),
			offers:        memory.NewOfferRepository(),
			orders:        memory.NewOrderRepository(),
			conversations: memory.NewConversationRepository(),
			notifications: memory.NewNotificationRepository(),
			outbox:        memory.NewOutboxRepository(),
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.Info("using postgres storage")

		return &runtimeDependencies{
			requests:      postgres.NewRequestRepository(store),
			offers:        postgres.NewOfferRepository(store),
			orders:        postgres.NewOrderRepository(store),
			conversations: postgres.NewConversationRepository(store),
			notifications: postgres.NewNotificationRepository(store),
			outbox:        postgres.NewOutboxRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("postgres", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
