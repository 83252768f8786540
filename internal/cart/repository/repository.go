package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_market/internal/cart/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
//
// All writes are conditional on the version the caller read, so a lost
// update is reported as ErrVersionConflict instead of silently winning.
type CartRepository interface {
	GetCart(ctx context.Context, vendorID string) (*domain.Cart, error)
	InsertCart(ctx context.Context, cart *domain.Cart) error
	ReplaceCart(ctx context.Context, cart *domain.Cart, expectedVersion int64) error
	ClearCart(ctx context.Context, vendorID string, expectedVersion int64) error
}
