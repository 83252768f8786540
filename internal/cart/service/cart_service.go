package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fjod/go_market/internal/cart/cache"
	"github.com/fjod/go_market/internal/cart/domain"
	"github.com/fjod/go_market/internal/cart/repository"
	catalogdomain "github.com/fjod/go_market/internal/catalog/domain"
	catalogrepo "github.com/fjod/go_market/internal/catalog/repository"
	userdomain "github.com/fjod/go_market/internal/user/domain"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("product not available in requested quantity")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrConflict        = errors.New("cart was modified concurrently")
)

// translateWriteError maps a lost version CAS onto the service's
// conflict sentinel. The vendor lock serializes writers within one
// instance, so a conflict means another instance got in first.
func translateWriteError(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrConflict
	}
	return err
}

// ProductReader is the slice of the catalog the cart needs.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
}

// SupplierReader resolves supplier display data for cart views.
type SupplierReader interface {
	GetUser(ctx context.Context, id string) (*userdomain.User, error)
}

type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	products  ProductReader
	suppliers SupplierReader
	locks     *VendorLocks
	sfg       singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, products ProductReader, suppliers SupplierReader, locks *VendorLocks) *CartService {
	return &CartService{
		repo:      repo,
		cache:     cache,
		products:  products,
		suppliers: suppliers,
		locks:     locks,
	}
}

// GetCart returns the vendor's cart, lazily materializing an empty one
// on first access instead of erroring. The empty cart is not persisted
// until the first add.
func (s *CartService) GetCart(ctx context.Context, vendorID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(vendorID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, vendorID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, vendorID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
			return domain.NewCart(vendorID), nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), vendorID, cart)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem validates the product against the catalog and merges it into
// the vendor's cart. The whole read-modify-write runs inside the
// vendor's critical section so concurrent adds cannot lose an update.
func (s *CartService) AddItem(ctx context.Context, vendorID, productID string, quantity int) (*domain.Cart, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalogrepo.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to validate product: %w", err)
	}

	if !product.InStock() || product.StockQuantity < quantity {
		return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
	}

	unlock := s.locks.Acquire(vendorID)
	defer unlock()

	cart, err := s.repo.GetCart(ctx, vendorID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = domain.NewCart(vendorID)
		cart.AddItem(product.ID, quantity, product.Price, product.MinOrder)
		if errInsert := s.repo.InsertCart(ctx, cart); errInsert != nil {
			return nil, translateWriteError(errInsert)
		}
		s.invalidateCache(vendorID)
		return cart, nil
	}
	if err != nil {
		return nil, err
	}

	version := cart.Version
	cart.AddItem(product.ID, quantity, product.Price, product.MinOrder)
	if errReplace := s.repo.ReplaceCart(ctx, cart, version); errReplace != nil {
		return nil, translateWriteError(errReplace)
	}

	s.invalidateCache(vendorID)
	return cart, nil
}

// UpdateQuantity sets an absolute quantity on an existing line.
func (s *CartService) UpdateQuantity(ctx context.Context, vendorID, itemID string, quantity int) (*domain.Cart, error) {
	unlock := s.locks.Acquire(vendorID)
	defer unlock()

	cart, err := s.repo.GetCart(ctx, vendorID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	version := cart.Version
	if !cart.SetItemQuantity(itemID, quantity) {
		return nil, ErrItemNotFound
	}
	if errReplace := s.repo.ReplaceCart(ctx, cart, version); errReplace != nil {
		return nil, translateWriteError(errReplace)
	}

	s.invalidateCache(vendorID)
	return cart, nil
}

// RemoveItem deletes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, vendorID, itemID string) (*domain.Cart, error) {
	unlock := s.locks.Acquire(vendorID)
	defer unlock()

	cart, err := s.repo.GetCart(ctx, vendorID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	version := cart.Version
	if !cart.RemoveItem(itemID) {
		return nil, ErrItemNotFound
	}
	if errReplace := s.repo.ReplaceCart(ctx, cart, version); errReplace != nil {
		return nil, translateWriteError(errReplace)
	}

	s.invalidateCache(vendorID)
	return cart, nil
}

// ClearCart empties the cart, keeping its identity for reuse. Clearing
// a cart that was never created is a no-op.
func (s *CartService) ClearCart(ctx context.Context, vendorID string) (*domain.Cart, error) {
	unlock := s.locks.Acquire(vendorID)
	defer unlock()

	cart, err := s.repo.GetCart(ctx, vendorID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(vendorID), nil
	}
	if err != nil {
		return nil, err
	}

	if errClear := s.repo.ClearCart(ctx, vendorID, cart.Version); errClear != nil {
		return nil, translateWriteError(errClear)
	}
	cart.Clear()
	cart.Version++

	s.invalidateCache(vendorID)
	return cart, nil
}

// CartItemView is a cart line enriched with catalog and supplier
// display data for rendering.
type CartItemView struct {
	domain.CartItem
	ProductName  string              `json:"product_name"`
	ProductImage string              `json:"product_image"`
	Unit         catalogdomain.Unit  `json:"unit"`
	CurrentPrice float64             `json:"current_price"`
	SupplierID   string              `json:"supplier_id"`
	SupplierName string              `json:"supplier_name"`
}

type CartView struct {
	ID          string         `json:"id"`
	VendorID    string         `json:"vendor_id"`
	Items       []CartItemView `json:"items"`
	TotalAmount float64        `json:"total_amount"`
	ItemCount   int            `json:"item_count"`
	TotalItems  int            `json:"total_items"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ViewCart populates the cart with product and supplier display data.
// Lines whose product has been deleted keep their snapshot quantity and
// price but render without catalog data; checkout is where a hard
// failure happens.
func (s *CartService) ViewCart(ctx context.Context, vendorID string) (*CartView, error) {
	cart, err := s.GetCart(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		ID:          cart.ID,
		VendorID:    cart.VendorID,
		Items:       make([]CartItemView, 0, len(cart.Items)),
		TotalAmount: cart.TotalAmount,
		ItemCount:   cart.ItemCount(),
		TotalItems:  cart.TotalItems(),
		UpdatedAt:   cart.UpdatedAt,
	}

	for _, item := range cart.Items {
		itemView := CartItemView{CartItem: item}

		product, errGet := s.products.GetProduct(ctx, item.ProductID)
		if errGet == nil {
			itemView.ProductName = product.Name
			itemView.ProductImage = product.Image
			itemView.Unit = product.Unit
			itemView.CurrentPrice = product.Price
			itemView.SupplierID = product.SupplierID

			if supplier, errSup := s.suppliers.GetUser(ctx, product.SupplierID); errSup == nil {
				itemView.SupplierName = supplier.DisplayName()
			}
		} else if !errors.Is(errGet, catalogrepo.ErrProductNotFound) {
			return nil, fmt.Errorf("failed to populate cart item: %w", errGet)
		}

		view.Items = append(view.Items, itemView)
	}

	return view, nil
}

func (s *CartService) invalidateCache(vendorID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, vendorID)
	if errInvalidate != nil {
		log.Printf("cache invalidate error: %v", errInvalidate)
	}
}
