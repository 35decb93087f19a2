package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/giftcart/pkg/database"
	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func offerColumnsList() []string {
	return []string{"id", "name", "image_url", "min_amount_cents", "max_amount_cents", "stock", "expires_at", "active"}
}

func addOfferRow(rows *pgxmock.Rows, id string, stock int, expiresAt *time.Time) *pgxmock.Rows {
	return rows.AddRow(id, "Card "+id, "https://img/"+id+".png", int64(500), int64(20000), stock, expiresAt, true)
}

// ---------------------------------------------------------------------------
// PostgresRepository
// ---------------------------------------------------------------------------

func TestPostgresRepository_Get(t *testing.T) {
	repo, mock := setupRepo(t)
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM gift_card_offers WHERE id = \\$1").
		WithArgs("steam-usd").
		WillReturnRows(addOfferRow(pgxmock.NewRows(offerColumnsList()), "steam-usd", 40, &expires))

	o, err := repo.Get(context.Background(), "steam-usd")
	require.NoError(t, err)
	assert.Equal(t, "steam-usd", o.ID)
	assert.Equal(t, "Card steam-usd", o.Name)
	assert.Equal(t, money.MustParse("5"), o.MinAmount)
	assert.Equal(t, money.MustParse("200"), o.MaxAmount)
	assert.Equal(t, 40, o.Stock)
	require.NotNil(t, o.ExpiresAt)
	assert.True(t, expires.Equal(*o.ExpiresAt))
	assert.True(t, o.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM gift_card_offers").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_DatabaseError(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM gift_card_offers").
		WithArgs("steam-usd").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), "steam-usd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "get offer steam-usd")
}

func TestPostgresRepository_GetMany(t *testing.T) {
	repo, mock := setupRepo(t)
	ids := []string{"steam-usd", "psn-usd", "gone"}

	rows := pgxmock.NewRows(offerColumnsList())
	addOfferRow(rows, "steam-usd", 10, (*time.Time)(nil))
	addOfferRow(rows, "psn-usd", 0, (*time.Time)(nil))

	mock.ExpectQuery("SELECT (.+) FROM gift_card_offers WHERE id = ANY\\(\\$1\\)").
		WithArgs(ids).
		WillReturnRows(rows)

	offers, err := repo.GetMany(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Nil(t, offers["steam-usd"].ExpiresAt)
	assert.Equal(t, 0, offers["psn-usd"].Stock)
	_, ok := offers["gone"]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetMany_EmptySkipsQuery(t *testing.T) {
	repo, mock := setupRepo(t)

	offers, err := repo.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Ping(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("SELECT 1").WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// MemoryRepository
// ---------------------------------------------------------------------------

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(domain.Offer{ID: "gc1", Stock: 3, Active: true})

	o, err := repo.Get(ctx, "gc1")
	require.NoError(t, err)
	assert.Equal(t, 3, o.Stock)

	// Returned offers are copies.
	o.Stock = 99
	again, _ := repo.Get(ctx, "gc1")
	assert.Equal(t, 3, again.Stock)

	repo.Put(domain.Offer{ID: "gc2", Stock: 1})
	many, err := repo.GetMany(ctx, []string{"gc1", "gc2", "gc3"})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	repo.Delete("gc1")
	_, err = repo.Get(ctx, "gc1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, repo.Ping(ctx))
}

func TestDemoOffers(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	offers := DemoOffers()
	require.NotEmpty(t, offers)

	var expired int
	for _, o := range offers {
		assert.LessOrEqual(t, o.MinAmount, o.MaxAmount, o.ID)
		if o.Expired(now) {
			expired++
		}
	}
	assert.Equal(t, 1, expired)
}
