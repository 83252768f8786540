package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fjod/go_market/internal/cart/cache"
	cartdomain "github.com/fjod/go_market/internal/cart/domain"
	cartrepo "github.com/fjod/go_market/internal/cart/repository"
	cartservice "github.com/fjod/go_market/internal/cart/service"
	catalogdomain "github.com/fjod/go_market/internal/catalog/domain"
	catalogrepo "github.com/fjod/go_market/internal/catalog/repository"
	orderdomain "github.com/fjod/go_market/internal/order/domain"
	orderrepo "github.com/fjod/go_market/internal/order/repository"
	"github.com/google/uuid"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrProductNotFound = errors.New("product no longer exists")
	ErrOutOfStock      = errors.New("product not available in requested quantity")
	ErrConflict        = errors.New("cart was modified concurrently")
	ErrCheckoutFailed  = errors.New("checkout failed")
)

// ProductReader is the slice of the catalog checkout needs.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
}

// CheckoutInput carries the delivery details the vendor submits with
// the checkout request. They are copied onto every resulting order.
type CheckoutInput struct {
	DeliveryAddress string
	Notes           string
}

// CheckoutService turns a vendor's cart into one order per supplier.
// Order creation is all-or-nothing; the cart is claimed first and
// restored if persisting the orders fails.
type CheckoutService struct {
	carts    cartrepo.CartRepository
	cache    cache.CartCache
	orders   orderrepo.OrderRepository
	products ProductReader
	locks    *cartservice.VendorLocks
}

func NewCheckoutService(carts cartrepo.CartRepository, cache cache.CartCache, orders orderrepo.OrderRepository, products ProductReader, locks *cartservice.VendorLocks) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		cache:    cache,
		orders:   orders,
		products: products,
		locks:    locks,
	}
}

// Checkout partitions the vendor's cart by each product's supplier and
// creates one pending order per supplier. It runs inside the vendor's
// critical section, so cart mutations cannot interleave with it.
//
// The cart is cleared with a version check before the orders are
// written. Losing that check means another writer got in first and the
// whole checkout reports a conflict. If writing the orders fails, the
// cart is restored so the vendor loses nothing.
func (s *CheckoutService) Checkout(ctx context.Context, vendorID string, input CheckoutInput) ([]*orderdomain.Order, error) {
	unlock := s.locks.Acquire(vendorID)
	defer unlock()

	cart, err := s.carts.GetCart(ctx, vendorID)
	if errors.Is(err, cartrepo.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	orders, err := s.buildOrders(ctx, cart, input)
	if err != nil {
		return nil, err
	}

	// Claim the cart before writing orders. Anyone mutating the cart
	// concurrently will have bumped the version and we back off.
	errClear := s.carts.ClearCart(ctx, vendorID, cart.Version)
	if errors.Is(errClear, cartrepo.ErrVersionConflict) {
		return nil, ErrConflict
	}
	if errClear != nil {
		return nil, fmt.Errorf("claim cart: %w", errClear)
	}

	if errCreate := s.orders.CreateOrders(ctx, orders); errCreate != nil {
		s.restoreCart(vendorID, cart)
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, errCreate)
	}

	s.invalidateCache(vendorID)
	return orders, nil
}

// buildOrders validates every cart line against the catalog and groups
// the lines by the product's current supplier. A line whose product was
// deleted fails the whole checkout; the vendor must remove it first.
func (s *CheckoutService) buildOrders(ctx context.Context, cart *cartdomain.Cart, input CheckoutInput) ([]*orderdomain.Order, error) {
	type group struct {
		supplierID string
		items      []orderdomain.OrderItem
		total      float64
	}

	var supplierOrder []string
	groups := make(map[string]*group)

	for _, item := range cart.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if errors.Is(err, catalogrepo.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("validate product %s: %w", item.ProductID, err)
		}

		if !product.InStock() || product.StockQuantity < item.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
		}

		g, ok := groups[product.SupplierID]
		if !ok {
			g = &group{supplierID: product.SupplierID}
			groups[product.SupplierID] = g
			supplierOrder = append(supplierOrder, product.SupplierID)
		}

		g.items = append(g.items, orderdomain.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  product.Name,
			ProductImage: product.Image,
			Quantity:     item.Quantity,
			PriceAtTime:  item.PriceAtTime,
		})
		g.total += item.PriceAtTime * float64(item.Quantity)
	}

	now := time.Now()
	orders := make([]*orderdomain.Order, 0, len(groups))
	for _, supplierID := range supplierOrder {
		g := groups[supplierID]
		orders = append(orders, &orderdomain.Order{
			ID:              uuid.New().String(),
			OrderNumber:     nextOrderNumber(),
			VendorID:        cart.VendorID,
			SupplierID:      g.supplierID,
			Items:           g.items,
			TotalAmount:     g.total,
			Status:          orderdomain.StatusPending,
			PaymentStatus:   orderdomain.PaymentPending,
			DeliveryAddress: input.DeliveryAddress,
			Notes:           input.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	return orders, nil
}

// restoreCart puts the claimed items back after a failed order write.
// The clear bumped the version by one, so the restore compares against
// that. A fresh context is used because the caller's may be dead.
func (s *CheckoutService) restoreCart(vendorID string, cart *cartdomain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.carts.ReplaceCart(ctx, cart, cart.Version+1); err != nil {
		log.Printf("failed to restore cart for vendor %s after checkout failure: %v", vendorID, err)
	}
	s.invalidateCache(vendorID)
}

func (s *CheckoutService) invalidateCache(vendorID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, vendorID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

var orderSeq atomic.Uint64

// nextOrderNumber generates a human-readable order number. The
// timestamp gives coarse uniqueness and the sequence disambiguates
// orders created in the same millisecond.
func nextOrderNumber() string {
	seq := orderSeq.Add(1) % 10000
	return fmt.Sprintf("VND%d%04d", time.Now().UnixMilli(), seq)
}
