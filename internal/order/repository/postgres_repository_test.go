package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_market/internal/order/domain"
	pg "github.com/fjod/go_market/internal/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := pg.Connect(&pg.Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)

	repo := NewRepository(db)
	require.NoError(t, repo.RunMigrations("./migrations"))

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testOrder(vendorID, supplierID string, total float64) *domain.Order {
	return &domain.Order{
		ID:          uuid.New().String(),
		OrderNumber: "VND" + uuid.New().String(),
		VendorID:    vendorID,
		SupplierID:  supplierID,
		Items: []domain.OrderItem{
			{ProductID: uuid.New().String(), ProductName: "Onions", Quantity: 2, PriceAtTime: total / 2},
		},
		TotalAmount:   total,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrder(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateOrders_BatchWithOutboxEvents(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	vendorID := uuid.New().String()
	orders := []*domain.Order{
		testOrder(vendorID, uuid.New().String(), 130),
		testOrder(vendorID, uuid.New().String(), 100),
	}

	err := repo.CreateOrders(ctx, orders)
	require.NoError(t, err)

	got, err := repo.GetOrder(ctx, orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, orders[0].OrderNumber, got.OrderNumber)
	assert.Equal(t, 130.0, got.TotalAmount)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, "Onions", got.Items[0].ProductName)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventOrderPlaced, events[0].EventType)
	assert.Equal(t, orders[0].ID, events[0].AggregateID)
}

func TestCreateOrders_DuplicateRollsBackWholeBatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	vendorID := uuid.New().String()
	first := testOrder(vendorID, uuid.New().String(), 50)
	require.NoError(t, repo.CreateOrders(ctx, []*domain.Order{first}))

	good := testOrder(vendorID, uuid.New().String(), 75)
	dup := testOrder(vendorID, uuid.New().String(), 25)
	dup.OrderNumber = first.OrderNumber // violates unique constraint

	err := repo.CreateOrders(ctx, []*domain.Order{good, dup})
	require.Error(t, err)

	// The good order from the failed batch must not exist.
	_, err = repo.GetOrder(ctx, good.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1) // only the first order's event
}

func TestListOrdersByVendorAndSupplier(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	vendorID := uuid.New().String()
	supplierID := uuid.New().String()
	require.NoError(t, repo.CreateOrders(ctx, []*domain.Order{
		testOrder(vendorID, supplierID, 100),
		testOrder(vendorID, uuid.New().String(), 200),
		testOrder(uuid.New().String(), supplierID, 300),
	}))

	byVendor, err := repo.ListOrdersByVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Len(t, byVendor, 2)

	bySupplier, err := repo.ListOrdersBySupplier(ctx, supplierID)
	require.NoError(t, err)
	assert.Len(t, bySupplier, 2)
}

func TestUpdateOrderStatus_CAS(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder(uuid.New().String(), uuid.New().String(), 100)
	require.NoError(t, repo.CreateOrders(ctx, []*domain.Order{order}))

	err := repo.UpdateOrderStatus(ctx, order.ID, domain.StatusPending, domain.StatusConfirmed, nil)
	require.NoError(t, err)

	// Losing writer still holds "pending".
	err = repo.UpdateOrderStatus(ctx, order.ID, domain.StatusPending, domain.StatusProcessing, nil)
	assert.ErrorIs(t, err, ErrStatusConflict)

	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestUpdateOrderStatus_DeliveredStampsTimestamp(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder(uuid.New().String(), uuid.New().String(), 100)
	require.NoError(t, repo.CreateOrders(ctx, []*domain.Order{order}))

	now := time.Now()
	err := repo.UpdateOrderStatus(ctx, order.ID, domain.StatusPending, domain.StatusDelivered, &now)
	require.NoError(t, err)

	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	require.NotNil(t, got.ActualDelivery)
	assert.WithinDuration(t, now, *got.ActualDelivery, time.Second)
}

func TestMarkEventAsProcessed(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder(uuid.New().String(), uuid.New().String(), 100)
	require.NoError(t, repo.CreateOrders(ctx, []*domain.Order{order}))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
