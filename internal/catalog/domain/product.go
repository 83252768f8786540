package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unit is the unit of measure a product is sold in.
type Unit string

const (
	UnitKg    Unit = "kg"
	UnitGram  Unit = "gram"
	UnitPiece Unit = "piece"
	UnitLiter Unit = "liter"
	UnitDozen Unit = "dozen"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitKg, UnitGram, UnitPiece, UnitLiter, UnitDozen:
		return true
	}
	return false
}

type Category string

const (
	CategoryVegetables Category = "vegetables"
	CategorySpices     Category = "spices"
	CategorySeafood    Category = "seafood"
	CategoryGrains     Category = "grains"
	CategoryDairy      Category = "dairy"
	CategoryMeat       Category = "meat"
	CategoryOther      Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryVegetables, CategorySpices, CategorySeafood, CategoryGrains, CategoryDairy, CategoryMeat, CategoryOther:
		return true
	}
	return false
}

var ErrInvalidProduct = errors.New("invalid product")

// Product is a catalog entry owned by a supplier. Supplier ownership is
// fixed at creation and never changes.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	Unit          Unit      `json:"unit"`
	MinOrder      int       `json:"min_order"`
	Category      Category  `json:"category"`
	Image         string    `json:"image"`
	SupplierID    string    `json:"supplier_id"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewProduct validates raw input and returns a product ready to be stored.
// Validation lives here so every write path goes through the same checks,
// independent of persistence.
func NewProduct(id, name string, price float64, unit Unit, minOrder int, category Category, image, description, supplierID string, stockQuantity int) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidProduct)
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidProduct, unit)
	}
	if minOrder < 1 {
		return nil, fmt.Errorf("%w: min order must be >= 1", ErrInvalidProduct)
	}
	if category == "" {
		category = CategoryOther
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, category)
	}
	if stockQuantity < 0 {
		return nil, fmt.Errorf("%w: stock quantity must be >= 0", ErrInvalidProduct)
	}
	if supplierID == "" {
		return nil, fmt.Errorf("%w: supplier id is required", ErrInvalidProduct)
	}
	return &Product{
		ID:            id,
		Name:          name,
		Description:   description,
		Price:         price,
		Unit:          unit,
		MinOrder:      minOrder,
		Category:      category,
		Image:         image,
		SupplierID:    supplierID,
		StockQuantity: stockQuantity,
		CreatedAt:     time.Now(),
	}, nil
}

// InStock is derived from stock quantity on every read, never stored.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}
