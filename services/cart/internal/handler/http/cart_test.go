package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/giftcart/pkg/auth"
	"github.com/utafrali/giftcart/pkg/health"
	pkgkafka "github.com/utafrali/giftcart/pkg/kafka"
	"github.com/utafrali/giftcart/pkg/logger"
	"github.com/utafrali/giftcart/pkg/middleware"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/catalog"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
	"github.com/utafrali/giftcart/services/cart/internal/event"
	redisrepo "github.com/utafrali/giftcart/services/cart/internal/repository/redis"
	"github.com/utafrali/giftcart/services/cart/internal/service"
)

// ============================================================================
// Test helpers
// ============================================================================

const testSecret = "handler-test-secret"

type testServer struct {
	router http.Handler
	jwt    *auth.JWTManager
	offers *catalog.MemoryRepository
	redis  *miniredis.Miniredis
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	offers := catalog.NewMemoryRepository(
		domain.Offer{ID: "gc1", Name: "Steam", MinAmount: money.MustParse("5"), MaxAmount: money.MustParse("200"), Stock: 100, Active: true},
		domain.Offer{ID: "gc2", Name: "PSN", MinAmount: money.MustParse("10"), MaxAmount: money.MustParse("100"), Stock: 100, Active: true},
		domain.Offer{ID: "old", Name: "Old", MinAmount: money.MustParse("25"), MaxAmount: money.MustParse("25"), Stock: 10, Active: true},
	)

	l := logger.Discard()
	svc := service.NewCartService(
		redisrepo.NewCartRepository(client, time.Hour),
		offers,
		event.NewProducer(pkgkafka.NoopPublisher{}, l),
		l,
		time.Hour,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	jwt := auth.NewJWTManager(testSecret, time.Hour)
	router := NewRouter(ctx, svc, health.NewHandler(), jwt, RouterConfig{
		RateLimit: middleware.RateLimitConfig{RPS: 1000, Burst: 1000},
		CORS:      middleware.DefaultCORSConfig(),
	}, l)

	return &testServer{router: router, jwt: jwt, offers: offers, redis: mr}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := s.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) domain.CartView {
	t.Helper()
	env := decode(t, rec)
	require.Nil(t, env.Error, rec.Body.String())
	var v domain.CartView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func addBody(id, price string, qty int) map[string]any {
	return map[string]any{"giftCardId": id, "price": json.Number(price), "quantity": qty}
}

// ============================================================================
// Auth
// ============================================================================

func TestCartAPI_RequiresBearerToken(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/api/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartAPI_NoStoreHeader(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodGet, "/api/cart", s.token(t, "u1", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

// ============================================================================
// Happy paths
// ============================================================================

func TestCartAPI_EmptyCart(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/cart", s.token(t, "u1", auth.RoleCustomer), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"data":{"items":[],"unavailableItems":[],"summary":{"totalAmount":0.00,"totalItems":0,"totalQuantity":0,"unavailableCount":0,"currency":"USD"}}}`,
		rec.Body.String())
}

func TestCartAPI_AddMergeIncrementDecrement(t *testing.T) {
	s := setupServer(t)
	tok := s.token(t, "u1", auth.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/api/cart", tok, addBody("gc1", "25", 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Merge on add.
	rec = s.do(t, http.MethodPost, "/api/cart", tok, addBody("gc1", "25", 1))
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity)

	rec = s.do(t, http.MethodPut, "/api/cart/gc1", tok, map[string]any{"operation": "increment"})
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, 3, v.Items[0].Quantity)
	assert.Equal(t, money.MustParse("75"), v.Summary.TotalAmount)

	for i := 0; i < 3; i++ {
		rec = s.do(t, http.MethodPut, "/api/cart/gc1", tok, map[string]any{"operation": "decrement"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	v = decodeView(t, s.do(t, http.MethodGet, "/api/cart", tok, nil))
	assert.Empty(t, v.Items)
}

func TestCartAPI_RemoveAndClear(t *testing.T) {
	s := setupServer(t)
	tok := s.token(t, "u1", auth.RoleCustomer)

	s.do(t, http.MethodPost, "/api/cart", tok, addBody("gc1", "25", 1))
	s.do(t, http.MethodPost, "/api/cart", tok, addBody("gc2", "10", 2))

	rec := s.do(t, http.MethodDelete, "/api/cart/gc1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "gc2", v.Items[0].GiftCardID)

	rec = s.do(t, http.MethodDelete, "/api/cart/gc1", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodDelete, "/api/cart", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	v = decodeView(t, s.do(t, http.MethodGet, "/api/cart", tok, nil))
	assert.Empty(t, v.Items)
	assert.Zero(t, v.Summary.TotalQuantity)
}

func TestCartAPI_CleanupExpired(t *testing.T) {
	s := setupServer(t)
	tok := s.token(t, "u1", auth.RoleCustomer)

	s.do(t, http.MethodPost, "/api/cart", tok, addBody("gc1", "25", 1))
	s.do(t, http.MethodPost, "/api/cart", tok, addBody("old", "25", 1))

	past := time.Now().Add(-time.Minute)
	s.offers.Put(domain.Offer{ID: "old", Name: "Old", MinAmount: money.MustParse("25"), MaxAmount: money.MustParse("25"), Stock: 10, Active: true, ExpiresAt: &past})

	v := decodeView(t, s.do(t, http.MethodGet, "/api/cart", tok, nil))
	assert.Len(t, v.Items, 1)
	assert.Len(t, v.UnavailableItems, 1)

	rec := s.do(t, http.MethodDelete, "/api/cart/cleanup/expired", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"removed":1}}`, rec.Body.String())

	v = decodeView(t, s.do(t, http.MethodGet, "/api/cart", tok, nil))
	require.Len(t, v.Items, 1)
	assert.Equal(t, "gc1", v.Items[0].GiftCardID)
	assert.Empty(t, v.UnavailableItems)
}

func TestCartAPI_CartsAreIsolatedPerUser(t *testing.T) {
	s := setupServer(t)

	s.do(t, http.MethodPost, "/api/cart", s.token(t, "u1", auth.RoleCustomer), addBody("gc1", "25", 1))

	v := decodeView(t, s.do(t, http.MethodGet, "/api/cart", s.token(t, "u2", auth.RoleCustomer), nil))
	assert.Empty(t, v.Items)
}

// ============================================================================
// Validation and errors
// ============================================================================

func TestCartAPI_AddValidation(t *testing.T) {
	s := setupServer(t)
	tok := s.token(t, "u1", auth.RoleCustomer)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing gift card", map[string]any{"price": 25, "quantity": 1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad gift card id", addBody("a/b", "25", 1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"zero quantity", addBody("gc1", "25", 0), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"quantity over cap", addBody("gc1", "25", 101), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", map[string]any{"giftCardId": "gc1", "price": 25, "quantity": 1, "x": 1}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown gift card", addBody("nope", "25", 1), http.StatusNotFound, "NOT_FOUND"},
		{"price out of range", addBody("gc1", "500", 1), http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/cart", tok, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestCartAPI_ValidationMessagePassesThrough(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/cart", s.token(t, "u1", auth.RoleCustomer), addBody("gc1", "500", 1))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price must be between 5.00 and 200.00", decode(t, rec).Error.Message)
}

func TestCartAPI_UpdateValidation(t *testing.T) {
	s := setupServer(t)
	tok := s.token(t, "u1", auth.RoleCustomer)
	s.do(t, http.MethodPost, "/api/cart", tok, addBody("gc1", "25", 1))

	rec := s.do(t, http.MethodPut, "/api/cart/gc1", tok, map[string]any{"operation": "double"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/cart/gc1", tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/cart/missing", tok, map[string]any{"operation": "increment"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAPI_RejectsNonJSONBody(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cart", bytes.NewBufferString("giftCardId=gc1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token(t, "u1", auth.RoleCustomer))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCartAPI_StorageFailureIsInternal(t *testing.T) {
	s := setupServer(t)
	s.redis.Close()

	rec := s.do(t, http.MethodGet, "/api/cart", s.token(t, "u1", auth.RoleCustomer), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "an internal error occurred", decode(t, rec).Error.Message)
}

// ============================================================================
// Admin
// ============================================================================

func TestCartAPI_AdminClearUserCart(t *testing.T) {
	s := setupServer(t)
	customer := s.token(t, "u1", auth.RoleCustomer)

	s.do(t, http.MethodPost, "/api/cart", customer, addBody("gc1", "25", 1))

	rec := s.do(t, http.MethodDelete, "/api/cart/user/u1", customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/cart/user/u1", s.token(t, "admin-1", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decodeView(t, s.do(t, http.MethodGet, "/api/cart", customer, nil))
	assert.Empty(t, v.Items)
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
