package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/giftcart/pkg/database"
	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

const offerColumns = `id, name, image_url, min_amount_cents, max_amount_cents, stock, expires_at, active`

// PostgresRepository implements Repository on the gift_card_offers table.
type PostgresRepository struct {
	db database.DBTX
}

// NewPostgresRepository creates a PostgreSQL-backed catalog.
func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves a single offer by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (o *domain.Offer, err error) {
	query := `SELECT ` + offerColumns + ` FROM gift_card_offers WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetOffer", query)
	defer func() { end(err) }()

	o, err = scanOffer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("gift card", id)
		}
		return nil, fmt.Errorf("get offer %s: %w", id, err)
	}
	return o, nil
}

// GetMany retrieves the offers for ids in one round trip.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) (_ map[string]*domain.Offer, err error) {
	offers := make(map[string]*domain.Offer, len(ids))
	if len(ids) == 0 {
		return offers, nil
	}

	query := `SELECT ` + offerColumns + ` FROM gift_card_offers WHERE id = ANY($1)`

	ctx, end := database.TraceQuery(ctx, "GetOffers", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return offers, nil
}

// Ping runs a trivial query.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var (
		o         domain.Offer
		minCents  int64
		maxCents  int64
		expiresAt *time.Time
	)
	if err := row.Scan(&o.ID, &o.Name, &o.ImageURL, &minCents, &maxCents, &o.Stock, &expiresAt, &o.Active); err != nil {
		return nil, err
	}
	o.MinAmount = money.Cents(minCents)
	o.MaxAmount = money.Cents(maxCents)
	o.ExpiresAt = expiresAt
	return &o, nil
}
