package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	cartservice "github.com/fjod/go_market/internal/cart/service"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	carts *cartservice.CartService
}

func NewCartHandler(carts *cartservice.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.ViewCart(r.Context(), callerID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 999 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 999")
		return
	}

	cart, err := h.carts.AddItem(r.Context(), callerID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 999 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 999")
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), callerID(r.Context()), itemID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), callerID(r.Context()), chi.URLParam(r, "item_id"))
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ClearCart(r.Context(), callerID(r.Context()))
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cartservice.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, cartservice.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", "item not found in cart")
	case errors.Is(err, cartservice.ErrOutOfStock):
		respondError(w, http.StatusBadRequest, "out_of_stock", err.Error())
	case errors.Is(err, cartservice.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", "cart was modified concurrently, try again")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "cart operation failed")
	}
}
