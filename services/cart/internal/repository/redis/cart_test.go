package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, 24*time.Hour)
	return repo, mr
}

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		ID:     "cart-001",
		UserID: "user-001",
		Lines: []domain.Line{
			{
				GiftCardID: "steam-usd",
				Name:       "Steam Wallet",
				ImageURL:   "https://img.example.com/steam.png",
				Price:      money.MustParse("25"),
				Quantity:   2,
				AddedAt:    now,
			},
		},
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	cart.Version = 4
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set("giftcart:cart:"+cart.UserID, string(data)))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, 4, got.Version)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "steam-usd", got.Lines[0].GiftCardID)
	assert.Equal(t, money.MustParse("25"), got.Lines[0].Price)
	assert.Equal(t, 2, got.Lines[0].Quantity)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.Get(context.Background(), "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_CorruptData(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("giftcart:cart:user-001", "{not json"))

	_, err := repo.Get(context.Background(), "user-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart")
}

func TestCartRepository_Get_RedisDown(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "user-001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// SaveIfVersion
// ---------------------------------------------------------------------------

func TestCartRepository_SaveIfVersion_NewCart(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	ok, err := repo.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, cart.Version)

	got, err := repo.Get(ctx, cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	ttl := mr.TTL("giftcart:cart:" + cart.UserID)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestCartRepository_SaveIfVersion_StaleVersionRejected(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	first := sampleCart()
	ok, err := repo.SaveIfVersion(ctx, first, 0)
	require.NoError(t, err)
	require.True(t, ok)

	// A second writer that also read "no cart" must lose.
	second := sampleCart()
	second.Lines[0].Quantity = 9
	ok, err = repo.SaveIfVersion(ctx, second, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, second.Version)

	got, err := repo.Get(ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Lines[0].Quantity)
}

func TestCartRepository_SaveIfVersion_RefreshesTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := sampleCart()
	_, err := repo.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)

	mr.FastForward(20 * time.Hour)
	ok, err := repo.SaveIfVersion(ctx, cart, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, mr.TTL("giftcart:cart:"+cart.UserID))
}

func TestCartRepository_SaveIfVersion_ConcurrentWritersOneWins(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.SaveIfVersion(ctx, sampleCart(), 0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestCartRepository_Expires(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := repo.SaveIfVersion(ctx, sampleCart(), 0)
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)
	_, err = repo.Get(ctx, "user-001")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Emptied carts
// ---------------------------------------------------------------------------

func TestCartRepository_EmptiedCartRejectsStaleWriter(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := repo.SaveIfVersion(ctx, sampleCart(), 0)
	require.NoError(t, err)

	stale, err := repo.Get(ctx, "user-001")
	require.NoError(t, err)

	cleared, err := repo.Get(ctx, "user-001")
	require.NoError(t, err)
	cleared.Lines = []domain.Line{}
	ok, err := repo.SaveIfVersion(ctx, cleared, stale.Version)
	require.NoError(t, err)
	require.True(t, ok)

	// A writer that read before the clear must not bring the lines back.
	stale.Lines[0].Quantity++
	ok, err = repo.SaveIfVersion(ctx, stale, stale.Version)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, "user-001")
	require.NoError(t, err)
	assert.Empty(t, got.Lines)
	assert.Equal(t, cleared.Version, got.Version)
}
