package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/httputil"
	"github.com/utafrali/giftcart/pkg/middleware"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/pkg/validator"
	"github.com/utafrali/giftcart/services/cart/internal/service"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a gift card to the cart.
type AddItemRequest struct {
	GiftCardID string      `json:"giftCardId" validate:"required,giftcard_id"`
	Price      money.Cents `json:"price" validate:"gt=0"`
	Quantity   int         `json:"quantity" validate:"required,gte=1,lte=100"`
}

// UpdateItemRequest is the JSON request body for PUT /cart/{giftCardId}.
type UpdateItemRequest struct {
	Quantity  *int         `json:"quantity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Price     *money.Cents `json:"price,omitempty" validate:"omitempty,gt=0"`
	Operation string       `json:"operation,omitempty" validate:"omitempty,oneof=increment decrement"`
}

// CleanupResponse is the body of DELETE /cart/cleanup/expired.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// --- Handlers ---

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCart(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// AddItem handles POST /api/cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	input := service.AddItemInput{
		GiftCardID: req.GiftCardID,
		Price:      req.Price,
		Quantity:   req.Quantity,
	}

	view, err := h.service.AddItem(r.Context(), middleware.UserIDFromContext(r.Context()), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// UpdateItem handles PUT /api/cart/{giftCardId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	giftCardID, ok := giftCardParam(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	input := service.UpdateItemInput{
		Quantity:  req.Quantity,
		Price:     req.Price,
		Operation: req.Operation,
	}

	view, err := h.service.UpdateItem(r.Context(), middleware.UserIDFromContext(r.Context()), giftCardID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// RemoveItem handles DELETE /api/cart/{giftCardId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	giftCardID, ok := giftCardParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.RemoveItem(r.Context(), middleware.UserIDFromContext(r.Context()), giftCardID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, view)
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, middleware.UserIDFromContext(r.Context()))
}

// ClearUserCart handles DELETE /api/cart/user/{userId} for administrators.
func (h *CartHandler) ClearUserCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		httputil.WriteBadRequest(w, "userId is required")
		return
	}
	h.clear(w, r, userID)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, map[string]string{"status": "cleared"})
}

// CleanupExpired handles DELETE /api/cart/cleanup/expired
func (h *CartHandler) CleanupExpired(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.CleanupExpired(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, CleanupResponse{Removed: removed})
}

// --- Helpers ---

func giftCardParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "giftCardId")
	if !validator.IsGiftCardID(id) {
		httputil.WriteBadRequest(w, "giftCardId is not a valid gift card id")
		return "", false
	}
	return id, true
}

// writeDecodeError reports malformed JSON as INVALID_INPUT and field
// failures as VALIDATION_ERROR.
func (h *CartHandler) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, valErr, h.logger)
		return
	}
	httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
}
