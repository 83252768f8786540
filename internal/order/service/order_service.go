package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/order/domain"
	"github.com/fjod/go_market/internal/order/repository"
	userdomain "github.com/fjod/go_market/internal/user/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("order does not belong to this user")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrConflict          = errors.New("order was modified concurrently")
)

type OrderService struct {
	repo repository.OrderRepository
}

func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{repo: repo}
}

// GetOrder returns an order only to the vendor that placed it or the
// supplier fulfilling it.
func (s *OrderService) GetOrder(ctx context.Context, id, userID string) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if order.VendorID != userID && order.SupplierID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListOrdersByVendor(ctx context.Context, vendorID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByVendor(ctx, vendorID)
}

func (s *OrderService) ListOrdersBySupplier(ctx context.Context, supplierID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersBySupplier(ctx, supplierID)
}

// UpdateStatus moves an order along its lifecycle. The fulfilling
// supplier may apply any legal transition; the vendor that placed the
// order may only cancel it. Reaching delivered stamps the actual
// delivery time.
func (s *OrderService) UpdateStatus(ctx context.Context, id, userID string, userType userdomain.UserType, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	order, err := s.repo.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	switch userType {
	case userdomain.TypeSupplier:
		if order.SupplierID != userID {
			return nil, ErrForbidden
		}
	case userdomain.TypeVendor:
		if order.VendorID != userID {
			return nil, ErrForbidden
		}
		if next != domain.StatusCancelled {
			return nil, fmt.Errorf("%w: vendors may only cancel orders", ErrForbidden)
		}
	default:
		return nil, ErrForbidden
	}

	if !domain.CanTransitionTo(order.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	var deliveredAt *time.Time
	if next == domain.StatusDelivered {
		now := time.Now().UTC()
		deliveredAt = &now
	}

	errUpdate := s.repo.UpdateOrderStatus(ctx, id, order.Status, next, deliveredAt)
	if errors.Is(errUpdate, repository.ErrStatusConflict) {
		return nil, ErrConflict
	}
	if errors.Is(errUpdate, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if errUpdate != nil {
		return nil, errUpdate
	}

	order.Status = next
	order.ActualDelivery = deliveredAt
	return order, nil
}
