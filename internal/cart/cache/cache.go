package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_market/internal/cart/domain"
)

type CartCache interface {
	Get(ctx context.Context, vendorID string) (*domain.Cart, error)
	Set(ctx context.Context, vendorID string, cart *domain.Cart) error
	Delete(ctx context.Context, vendorID string) error
}

var ErrCacheMiss = errors.New("cache miss")
