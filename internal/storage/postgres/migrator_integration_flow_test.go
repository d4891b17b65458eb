package postgres

import (
	"context"
	"testing"
	"time"
)

func assertMigrationStatus(t *testing.T, ctx context.Context, store *Store, wantVersion int64, wantCount int, stage string) {
	t.Helper()

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("migration status %s: %v", stage, err)
	}
	if version != wantVersion || count != wantCount {
		t.Fatalf("unexpected status %s: version=%d count=%d, want version=%d count=%d",
			stage, version, count, wantVersion, wantCount)
	}
}

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Сбрасываем схему, чтобы прогон не зависел от состояния базы.
	if err := store.MigrateDown(ctx, 100); err != nil {
		t.Fatalf("migrate down reset: %v", err)
	}
	assertMigrationStatus(t, ctx, store, 0, 0, "after reset")

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up all: %v", err)
	}
	assertMigrationStatus(t, ctx, store, 1, 1, "after up all")

	// Повторный up не должен менять состояние.
	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("idempotent migrate up: %v", err)
	}
	assertMigrationStatus(t, ctx, store, 1, 1, "after idempotent up")

	// steps<=0 для down означает один шаг.
	if err := store.MigrateDown(ctx, 0); err != nil {
		t.Fatalf("migrate down default step: %v", err)
	}
	assertMigrationStatus(t, ctx, store, 0, 0, "after down default")

	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("migrate down on empty should be no-op: %v", err)
	}
}

func TestMigrator_GuardsAndUnsupportedDirection(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := nilStore.MigrateUp(ctx, 0); err == nil {
		t.Fatal("expected error for nil store MigrateUp")
	}
	if err := nilStore.MigrateDown(ctx, 1); err == nil {
		t.Fatal("expected error for nil store MigrateDown")
	}
	if _, _, err := nilStore.MigrationStatus(ctx); err == nil {
		t.Fatal("expected error for nil store MigrationStatus")
	}

	store := openRawPostgresStoreForIntegrationTest(t)
	if err := store.migrate(ctx, migrationDirection("invalid"), 0); err == nil {
		t.Fatal("expected unsupported direction error")
	}
}
