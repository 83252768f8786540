package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_market/internal/catalog/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = errors.New("product not found")

// ListParams is the explicit query shape for catalog listings. Each
// filter is optional; empty values are ignored.
type ListParams struct {
	Category domain.Category
	Search   string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, unit, min_order, category, image, supplier_id, stock_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Unit,
		p.MinOrder,
		p.Category,
		p.Image,
		p.SupplierID,
		p.StockQuantity,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

// UpdateProduct overwrites the mutable fields of an existing product.
// Ownership and identity never change; callers check the supplier
// before updating.
func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, unit = $5, min_order = $6, category = $7, image = $8, stock_quantity = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Unit,
		p.MinOrder,
		p.Category,
		p.Image,
		p.StockQuantity,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a catalog entry. Carts holding the product keep
// their snapshot lines; checkout is where the removal becomes a hard
// failure.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price, unit, min_order, category, image, supplier_id, stock_quantity, created_at
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Unit,
		&p.MinOrder,
		&p.Category,
		&p.Image,
		&p.SupplierID,
		&p.StockQuantity,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context, params ListParams) ([]*domain.Product, error) {
	query := `
		SELECT id, name, description, price, unit, min_order, category, image, supplier_id, stock_quantity, created_at
		FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR name LIKE '%' || $2 || '%' OR description LIKE '%' || $2 || '%')
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(params.Category), params.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) ListProductsBySupplier(ctx context.Context, supplierID string) ([]*domain.Product, error) {
	query := `
		SELECT id, name, description, price, unit, min_order, category, image, supplier_id, stock_quantity, created_at
		FROM products
		WHERE supplier_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by supplier: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Unit,
			&p.MinOrder,
			&p.Category,
			&p.Image,
			&p.SupplierID,
			&p.StockQuantity,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
