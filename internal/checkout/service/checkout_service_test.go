package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cartcache "github.com/fjod/go_market/internal/cart/cache"
	cartdomain "github.com/fjod/go_market/internal/cart/domain"
	cartrepo "github.com/fjod/go_market/internal/cart/repository"
	cartservice "github.com/fjod/go_market/internal/cart/service"
	catalogdomain "github.com/fjod/go_market/internal/catalog/domain"
	catalogrepo "github.com/fjod/go_market/internal/catalog/repository"
	orderdomain "github.com/fjod/go_market/internal/order/domain"
	orderrepo "github.com/fjod/go_market/internal/order/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCartRepository mirrors the version CAS of the MongoDB
// implementation.
type mockCartRepository struct {
	mu    sync.Mutex
	carts map[string]*cartdomain.Cart
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*cartdomain.Cart)}
}

func (m *mockCartRepository) GetCart(_ context.Context, vendorID string) (*cartdomain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[vendorID]
	if !ok {
		return nil, cartrepo.ErrCartNotFound
	}
	copied := *cart
	copied.Items = append([]cartdomain.CartItem(nil), cart.Items...)
	return &copied, nil
}

func (m *mockCartRepository) InsertCart(_ context.Context, cart *cartdomain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[cart.VendorID]; ok {
		return cartrepo.ErrVersionConflict
	}
	cart.ID = uuid.New().String()
	cart.Version = 1
	copied := *cart
	m.carts[cart.VendorID] = &copied
	return nil
}

func (m *mockCartRepository) ReplaceCart(_ context.Context, cart *cartdomain.Cart, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.carts[cart.VendorID]
	if !ok {
		return cartrepo.ErrCartNotFound
	}
	if stored.Version != expectedVersion {
		return cartrepo.ErrVersionConflict
	}
	copied := *cart
	copied.Version = expectedVersion + 1
	m.carts[cart.VendorID] = &copied
	cart.Version = copied.Version
	return nil
}

func (m *mockCartRepository) ClearCart(_ context.Context, vendorID string, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.carts[vendorID]
	if !ok {
		return cartrepo.ErrCartNotFound
	}
	if stored.Version != expectedVersion {
		return cartrepo.ErrVersionConflict
	}
	stored.Items = []cartdomain.CartItem{}
	stored.TotalAmount = 0
	stored.Version++
	return nil
}

type mockCache struct{}

func (mockCache) Get(context.Context, string) (*cartdomain.Cart, error) {
	return nil, cartcache.ErrCacheMiss
}
func (mockCache) Set(context.Context, string, *cartdomain.Cart) error { return nil }
func (mockCache) Delete(context.Context, string) error                { return nil }

type mockProductReader struct {
	products map[string]*catalogdomain.Product
}

func (m *mockProductReader) GetProduct(_ context.Context, id string) (*catalogdomain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, catalogrepo.ErrProductNotFound
	}
	return product, nil
}

type mockOrderWriter struct {
	mu        sync.Mutex
	created   []*orderdomain.Order
	createErr error
}

func (m *mockOrderWriter) CreateOrders(_ context.Context, orders []*orderdomain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, orders...)
	return nil
}

func (m *mockOrderWriter) GetOrder(context.Context, string) (*orderdomain.Order, error) {
	return nil, orderrepo.ErrOrderNotFound
}
func (m *mockOrderWriter) ListOrdersByVendor(context.Context, string) ([]*orderdomain.Order, error) {
	return nil, nil
}
func (m *mockOrderWriter) ListOrdersBySupplier(context.Context, string) ([]*orderdomain.Order, error) {
	return nil, nil
}
func (m *mockOrderWriter) UpdateOrderStatus(context.Context, string, orderdomain.OrderStatus, orderdomain.OrderStatus, *time.Time) error {
	return nil
}
func (m *mockOrderWriter) GetUnprocessedEvents(context.Context, int) ([]*orderrepo.OutboxEvent, error) {
	return nil, nil
}
func (m *mockOrderWriter) MarkEventAsProcessed(context.Context, int64) error { return nil }

type fixture struct {
	carts    *mockCartRepository
	products *mockProductReader
	orders   *mockOrderWriter
	svc      *CheckoutService
}

func newFixture() *fixture {
	carts := newMockCartRepository()
	products := &mockProductReader{products: make(map[string]*catalogdomain.Product)}
	orders := &mockOrderWriter{}
	svc := NewCheckoutService(carts, mockCache{}, orders, products, cartservice.NewVendorLocks())
	return &fixture{carts: carts, products: products, orders: orders, svc: svc}
}

func (f *fixture) addProduct(name, supplierID string, price float64, stock int) *catalogdomain.Product {
	product := &catalogdomain.Product{
		ID:            uuid.New().String(),
		Name:          name,
		Price:         price,
		Unit:          catalogdomain.UnitKg,
		MinOrder:      1,
		Category:      catalogdomain.CategoryVegetables,
		SupplierID:    supplierID,
		StockQuantity: stock,
	}
	f.products.products[product.ID] = product
	return product
}

func (f *fixture) seedCart(t *testing.T, vendorID string, lines ...cartdomain.CartItem) *cartdomain.Cart {
	t.Helper()
	cart := cartdomain.NewCart(vendorID)
	cart.Items = lines
	require.NoError(t, f.carts.InsertCart(context.Background(), cart))
	return cart
}

func line(productID string, quantity int, priceAtTime float64) cartdomain.CartItem {
	return cartdomain.CartItem{
		ID:          uuid.New().String(),
		ProductID:   productID,
		Quantity:    quantity,
		PriceAtTime: priceAtTime,
	}
}

func TestCheckout_SplitsCartBySupplier(t *testing.T) {
	f := newFixture()
	supplierA := uuid.New().String()
	supplierB := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierA, 10, 100)
	onions := f.addProduct("Onions", supplierA, 5, 100)
	salmon := f.addProduct("Salmon", supplierB, 50, 100)

	vendorID := uuid.New().String()
	f.seedCart(t, vendorID,
		line(tomatoes.ID, 8, 10), // 80
		line(onions.ID, 10, 5),   // 50 -> supplier A total 130
		line(salmon.ID, 2, 50),   // 100 -> supplier B total 100
	)

	orders, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{DeliveryAddress: "12 Market St"})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	bySupplier := map[string]*orderdomain.Order{}
	for _, order := range orders {
		bySupplier[order.SupplierID] = order
		assert.Equal(t, vendorID, order.VendorID)
		assert.Equal(t, orderdomain.StatusPending, order.Status)
		assert.Equal(t, orderdomain.PaymentPending, order.PaymentStatus)
		assert.Equal(t, "12 Market St", order.DeliveryAddress)
		assert.NotEmpty(t, order.OrderNumber)
	}

	require.Contains(t, bySupplier, supplierA)
	require.Contains(t, bySupplier, supplierB)
	assert.Equal(t, 130.0, bySupplier[supplierA].TotalAmount)
	assert.Len(t, bySupplier[supplierA].Items, 2)
	assert.Equal(t, 100.0, bySupplier[supplierB].TotalAmount)
	assert.Len(t, bySupplier[supplierB].Items, 1)
	assert.Equal(t, "Salmon", bySupplier[supplierB].Items[0].ProductName)

	// Cart was cleared.
	cart, err := f.carts.GetCart(context.Background(), vendorID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckout_UsesPriceSnapshotNotCurrentPrice(t *testing.T) {
	f := newFixture()
	supplierID := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierID, 25, 100) // price has gone up

	vendorID := uuid.New().String()
	f.seedCart(t, vendorID, line(tomatoes.ID, 2, 10)) // added at 10

	orders, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 20.0, orders[0].TotalAmount)
	assert.Equal(t, 10.0, orders[0].Items[0].PriceAtTime)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()
	vendorID := uuid.New().String()

	// Never-created cart.
	_, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	assert.ErrorIs(t, err, ErrEmptyCart)

	// Existing but empty cart.
	f.seedCart(t, vendorID)
	_, err = f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_DeletedProductFailsWholeCheckout(t *testing.T) {
	f := newFixture()
	supplierID := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierID, 10, 100)

	vendorID := uuid.New().String()
	f.seedCart(t, vendorID,
		line(tomatoes.ID, 2, 10),
		line(uuid.New().String(), 1, 5), // product gone from catalog
	)

	_, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	assert.ErrorIs(t, err, ErrProductNotFound)

	// Nothing was created and the cart is untouched.
	assert.Empty(t, f.orders.created)
	cart, errGet := f.carts.GetCart(context.Background(), vendorID)
	require.NoError(t, errGet)
	assert.Len(t, cart.Items, 2)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	f := newFixture()
	supplierID := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierID, 10, 3)

	vendorID := uuid.New().String()
	f.seedCart(t, vendorID, line(tomatoes.ID, 5, 10))

	_, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Empty(t, f.orders.created)
}

func TestCheckout_OrderWriteFailureRestoresCart(t *testing.T) {
	f := newFixture()
	supplierID := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierID, 10, 100)

	vendorID := uuid.New().String()
	f.seedCart(t, vendorID, line(tomatoes.ID, 2, 10))

	f.orders.createErr = errors.New("database is down")

	_, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	assert.ErrorIs(t, err, ErrCheckoutFailed)

	// The claimed items are back.
	cart, errGet := f.carts.GetCart(context.Background(), vendorID)
	require.NoError(t, errGet)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, tomatoes.ID, cart.Items[0].ProductID)
	assert.Equal(t, 20.0, cart.TotalAmount)
}

func TestCheckout_StaleCartVersionConflicts(t *testing.T) {
	f := newFixture()
	supplierID := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierID, 10, 100)

	vendorID := uuid.New().String()
	cart := f.seedCart(t, vendorID, line(tomatoes.ID, 2, 10))

	// Another writer bumps the version between our read and the clear.
	require.NoError(t, f.carts.ReplaceCart(context.Background(), cart, 1))

	// Force the stored version back out of sync with what Checkout will
	// read by mutating underneath it mid-flight is racy to arrange, so
	// instead drive the conflict through the repository directly.
	stale := f.carts.ClearCart(context.Background(), vendorID, 1)
	assert.ErrorIs(t, stale, cartrepo.ErrVersionConflict)

	// A checkout that reads the fresh version still succeeds.
	orders, err := f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckout_ConcurrentCheckoutsCreateOrdersOnce(t *testing.T) {
	f := newFixture()
	supplierID := uuid.New().String()
	tomatoes := f.addProduct("Tomatoes", supplierID, 10, 100)

	vendorID := uuid.New().String()
	f.seedCart(t, vendorID, line(tomatoes.ID, 2, 10))

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Checkout(context.Background(), vendorID, CheckoutInput{})
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrEmptyCart)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.orders.created, 1)
}

func TestNextOrderNumber_UniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number := nextOrderNumber()
		assert.True(t, len(number) > 3 && number[:3] == "VND")
		assert.False(t, seen[number], "duplicate order number %s", number)
		seen[number] = true
	}
}
