package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/order/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const EventOrderPlaced = "order_placed"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(migrationsDirPath string) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// CreateOrders inserts the whole batch and one outbox event per order
// in a single transaction, so checkout can never leave a partial set
// of orders behind.
func (r *Repository) CreateOrders(ctx context.Context, orders []*domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `INSERT INTO orders (id, order_number, vendor_id, supplier_id, items, total_amount, status, payment_status, delivery_address, notes, created_at, updated_at)
	               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`
	eventQuery := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	               VALUES ($1, $2, $3, NOW())`

	for _, order := range orders {
		itemsJSON, errMarshal := json.Marshal(order.Items)
		if errMarshal != nil {
			return fmt.Errorf("failed to marshal order items: %w", errMarshal)
		}

		if _, errExec := tx.ExecContext(ctx, orderQuery,
			order.ID,
			order.OrderNumber,
			order.VendorID,
			order.SupplierID,
			itemsJSON,
			order.TotalAmount,
			order.Status,
			order.PaymentStatus,
			order.DeliveryAddress,
			order.Notes,
		); errExec != nil {
			return fmt.Errorf("insert order %s: %w", order.ID, errExec)
		}

		payload, errPayload := json.Marshal(map[string]interface{}{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"vendor_id":    order.VendorID,
			"supplier_id":  order.SupplierID,
			"total_amount": order.TotalAmount,
			"status":       order.Status,
		})
		if errPayload != nil {
			return fmt.Errorf("failed to marshal order event: %w", errPayload)
		}

		if _, errExec := tx.ExecContext(ctx, eventQuery, order.ID, EventOrderPlaced, payload); errExec != nil {
			return fmt.Errorf("insert outbox event for order %s: %w", order.ID, errExec)
		}
	}

	if errCommit := tx.Commit(); errCommit != nil {
		return fmt.Errorf("commit orders: %w", errCommit)
	}
	return nil
}

const orderColumns = `id, order_number, vendor_id, supplier_id, items, total_amount, status, payment_status, delivery_address, notes, actual_delivery, created_at, updated_at`

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByVendor(ctx context.Context, vendorID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE vendor_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, vendorID)
}

func (r *Repository) ListOrdersBySupplier(ctx context.Context, supplierID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE supplier_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, supplierID)
}

func (r *Repository) listOrders(ctx context.Context, query string, arg interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, errScan := scanOrder(rows)
		if errScan != nil {
			return nil, fmt.Errorf("scan order row: %w", errScan)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.VendorID,
		&order.SupplierID,
		&itemsJSON,
		&order.TotalAmount,
		&order.Status,
		&order.PaymentStatus,
		&order.DeliveryAddress,
		&order.Notes,
		&order.ActualDelivery,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}

	return &order, nil
}

// UpdateOrderStatus is a compare-and-set on the current status, so two
// concurrent transitions cannot both win.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, deliveredAt *time.Time) error {
	query := `UPDATE orders SET status = $1, actual_delivery = COALESCE($2, actual_delivery), updated_at = NOW()
	          WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, to, deliveredAt, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Either the order is gone or someone else transitioned it first.
		if _, errGet := r.GetOrder(ctx, id); errGet != nil {
			return errGet
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at, processed_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if errScan := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.EventType,
			&event.Payload,
			&event.CreatedAt,
			&event.ProcessedAt,
		); errScan != nil {
			return nil, fmt.Errorf("scan outbox event: %w", errScan)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark event as processed: %w", err)
	}
	return nil
}
