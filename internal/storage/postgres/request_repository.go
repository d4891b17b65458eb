package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type requestRepository struct {
	db *sql.DB
}

// NewRequestRepository создаёт PostgreSQL-реализацию RequestRepository.
func NewRequestRepository(store *Store) domain.RequestRepository {
	return &requestRepository{db: store.DB()}
}

func (r *requestRepository) Create(request domain.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	updatedAt := request.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = request.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO requests (
			id, buyer_id, title, description, category,
			budget_min_minor, budget_max_minor, quantity, deadline,
			delivery_location, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		request.ID, request.BuyerID, request.Title, request.Description, request.Category,
		request.BudgetMinMinor, request.BudgetMaxMinor, request.Quantity, request.Deadline,
		request.DeliveryLocation, string(request.Status), request.CreatedAt, updatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrStatusConflict
		}
		return fmt.Errorf("insert request: %w", err)
	}

	return nil
}

func (r *requestRepository) Get(id string) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	request, err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, title, description, category,
		       budget_min_minor, budget_max_minor, quantity, deadline,
		       delivery_location, status, created_at, updated_at
		FROM requests
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Request{}, domain.ErrRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("select request: %w", err)
	}

	return request, nil
}

func (r *requestRepository) ListByStatus(status domain.RequestStatus, limit int) ([]domain.Request, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, buyer_id, title, description, category,
		       budget_min_minor, budget_max_minor, quantity, deadline,
		       delivery_location, status, created_at, updated_at
		FROM requests
		WHERE status = $1
		ORDER BY created_at, id
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", string(status), limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list requests by status: %w", err)
	}
	defer rows.Close()

	requests := make([]domain.Request, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request row: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request rows: %w", err)
	}

	return requests, nil
}

// UpdateStatus — условная запись: переход применяется, только если хранимый
// статус равен from. RowsAffected == 0 различается на "нет записи" и
// "проигранная гонка" дополнительным чтением.
func (r *requestRepository) UpdateStatus(id string, from, to domain.RequestStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var existing string
		err := r.db.QueryRowContext(ctx, `SELECT id FROM requests WHERE id = $1`, id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("check request exists: %w", err)
		}
		return domain.ErrStatusConflict
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (domain.Request, error) {
	var (
		request domain.Request
		status  string
	)
	err := row.Scan(
		&request.ID, &request.BuyerID, &request.Title, &request.Description, &request.Category,
		&request.BudgetMinMinor, &request.BudgetMaxMinor, &request.Quantity, &request.Deadline,
		&request.DeliveryLocation, &status, &request.CreatedAt, &request.UpdatedAt,
	)
	if err != nil {
		return domain.Request{}, err
	}
	request.Status = domain.RequestStatus(status)
	return request, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func uniqueConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}

var _ domain.RequestRepository = (*requestRepository)(nil)
