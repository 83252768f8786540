package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_market/internal/order/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// OutboxEvent is a pending domain event written in the same transaction
// as the orders it describes.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OrderRepository defines the interface for order persistence.
// CreateOrders must be all-or-nothing: either every order in the batch
// (and its outbox event) is committed, or none are.
type OrderRepository interface {
	CreateOrders(ctx context.Context, orders []*domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByVendor(ctx context.Context, vendorID string) ([]*domain.Order, error)
	ListOrdersBySupplier(ctx context.Context, supplierID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, deliveredAt *time.Time) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}
