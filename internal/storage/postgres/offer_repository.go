package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type offerRepository struct {
	db *sql.DB
}

// NewOfferRepository создаёт PostgreSQL-реализацию OfferRepository.
func NewOfferRepository(store *Store) domain.OfferRepository {
	return &offerRepository{db: store.DB()}
}

func (r *offerRepository) Create(offer domain.Offer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO offers (
			id, request_id, seller_id, price_minor, description,
			delivery_timeline, delivery_cost_minor, payment_terms, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		offer.ID, offer.RequestID, offer.SellerID, offer.PriceMinor, offer.Description,
		offer.DeliveryTimeline, offer.DeliveryCostMinor, offer.PaymentTerms,
		string(offer.Status), offer.CreatedAt,
	)
	if err != nil {
		// UNIQUE (request_id, seller_id) защищает от повторной подачи.
		if uniqueConstraintName(err) == "offers_request_seller_unique" {
			return domain.ErrDuplicateOffer
		}
		if isUniqueViolation(err) {
			return domain.ErrStatusConflict
		}
		return fmt.Errorf("insert offer: %w", err)
	}

	return nil
}

func (r *offerRepository) Get(id string) (domain.Offer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	offer, err := scanOffer(r.db.QueryRowContext(ctx, selectOfferColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("select offer: %w", err)
	}

	return offer, nil
}

func (r *offerRepository) GetBySellerAndRequest(sellerID, requestID string) (domain.Offer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	offer, err := scanOffer(r.db.QueryRowContext(ctx,
		selectOfferColumns+` WHERE seller_id = $1 AND request_id = $2`,
		sellerID, requestID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("select offer by seller and request: %w", err)
	}

	return offer, nil
}

func (r *offerRepository) ListByRequest(requestID string) ([]domain.Offer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		selectOfferColumns+` WHERE request_id = $1 ORDER BY created_at, id`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list offers by request: %w", err)
	}
	defer rows.Close()

	return collectOffers(rows)
}

func (r *offerRepository) ListPendingByRequest(requestID, excludeID string) ([]domain.Offer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		selectOfferColumns+`
		WHERE request_id = $1
		  AND status = 'pending'
		  AND ($2 = '' OR id <> $2)
		ORDER BY created_at, id`,
		requestID, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending offers: %w", err)
	}
	defer rows.Close()

	return collectOffers(rows)
}

func (r *offerRepository) ListByStatus(status domain.OfferStatus, limit int) ([]domain.Offer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := selectOfferColumns + ` WHERE status = $1 ORDER BY created_at, id`

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
		return nil, fmt.Errorf("list offers by status: %w", err)
	}
	defer rows.Close()

	return collectOffers(rows)
}

func (r *offerRepository) UpdateStatus(id string, from, to domain.OfferStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE offers
		SET status = $3
		WHERE id = $1
		  AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var existing string
		err := r.db.QueryRowContext(ctx, `SELECT id FROM offers WHERE id = $1`, id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOfferNotFound
		}
		if err != nil {
			return fmt.Errorf("check offer exists: %w", err)
		}
		return domain.ErrStatusConflict
	}

	return nil
}

const selectOfferColumns = `
	SELECT id, request_id, seller_id, price_minor, description,
	       delivery_timeline, delivery_cost_minor, payment_terms, status, created_at
	FROM offers`

func scanOffer(row rowScanner) (domain.Offer, error) {
	var (
		offer  domain.Offer
		status string
	)
	err := row.Scan(
		&offer.ID, &offer.RequestID, &offer.SellerID, &offer.PriceMinor, &offer.Description,
		&offer.DeliveryTimeline, &offer.DeliveryCostMinor, &offer.PaymentTerms, &status, &offer.CreatedAt,
	)
	if err != nil {
		return domain.Offer{}, err
	}
	offer.Status = domain.OfferStatus(status)
	return offer, nil
}

func collectOffers(rows *sql.Rows) ([]domain.Offer, error) {
	offers := make([]domain.Offer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer row: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer rows: %w", err)
	}
	return offers, nil
}

var _ domain.OfferRepository = (*offerRepository)(nil)
