package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	orderdomain "github.com/fjod/go_market/internal/order/domain"
	orderservice "github.com/fjod/go_market/internal/order/service"
	userdomain "github.com/fjod/go_market/internal/user/domain"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	orders *orderservice.OrderService
}

func NewOrdersHandler(orders *orderservice.OrderService) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// ListOrders returns the caller's orders: placed orders for vendors,
// incoming orders for suppliers.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []*orderdomain.Order
		err    error
	)

	switch callerType(r.Context()) {
	case userdomain.TypeVendor:
		orders, err = h.orders.ListOrdersByVendor(r.Context(), callerID(r.Context()))
	case userdomain.TypeSupplier:
		orders, err = h.orders.ListOrdersBySupplier(r.Context(), callerID(r.Context()))
	default:
		respondError(w, http.StatusForbidden, "forbidden", "unknown account type")
		return
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*orderdomain.Order{}
	}

	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"), callerID(r.Context()))
	if err != nil {
		handleOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// UpdateStatus moves an order along its lifecycle. Suppliers drive the
// normal progression; vendors may only cancel.
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"),
		callerID(r.Context()), callerType(r.Context()), orderdomain.OrderStatus(req.Status))
	if err != nil {
		handleOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func handleOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderservice.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, orderservice.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, orderservice.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, orderservice.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", "order was modified concurrently, try again")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "order operation failed")
	}
}
