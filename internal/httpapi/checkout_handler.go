package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	checkoutservice "github.com/fjod/go_market/internal/checkout/service"
	orderdomain "github.com/fjod/go_market/internal/order/domain"
)

type CheckoutHandler struct {
	checkout *checkoutservice.CheckoutService
}

func NewCheckoutHandler(checkout *checkoutservice.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type CheckoutRequestDTO struct {
	DeliveryAddress string `json:"delivery_address"`
	Notes           string `json:"notes"`
}

type CheckoutResponseDTO struct {
	Orders []*orderdomain.Order `json:"orders"`
}

// Checkout converts the caller's cart into one order per supplier.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	orders, err := h.checkout.Checkout(r.Context(), callerID(r.Context()), checkoutservice.CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{Orders: orders})
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkoutservice.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkoutservice.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, checkoutservice.ErrOutOfStock):
		respondError(w, http.StatusBadRequest, "out_of_stock", err.Error())
	case errors.Is(err, checkoutservice.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", "cart was modified during checkout, try again")
	case errors.Is(err, checkoutservice.ErrCheckoutFailed):
		respondError(w, http.StatusBadGateway, "checkout_failed", "could not place orders, cart was restored")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "checkout failed")
	}
}
