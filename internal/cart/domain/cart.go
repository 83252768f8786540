package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line in a vendor's cart. PriceAtTime is the product
// price captured when the line was first added; it is never refreshed
// from the catalog afterwards.
type CartItem struct {
	ID          string    `bson:"id" json:"id"`
	ProductID   string    `bson:"product_id" json:"product_id"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	PriceAtTime float64   `bson:"price_at_time" json:"price_at_time"`
	AddedAt     time.Time `bson:"added_at" json:"added_at"`
}

// Cart is the single active cart of a vendor. Version guards concurrent
// writers: every persisted mutation bumps it, and conditional updates
// compare against the value they read.
type Cart struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	VendorID    string     `bson:"vendor_id" json:"vendor_id"`
	Items       []CartItem `bson:"items" json:"items"`
	TotalAmount float64    `bson:"total_amount" json:"total_amount"`
	Version     int64      `bson:"version" json:"version"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

func NewCart(vendorID string) *Cart {
	now := time.Now()
	return &Cart{
		VendorID:  vendorID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges quantity into an existing line for the product or
// appends a new line. A new line reserves at least minOrder units; an
// existing line accumulates the raw requested quantity since it already
// satisfies the minimum. The original price snapshot survives merges.
func (c *Cart) AddItem(productID string, quantity int, price float64, minOrder int) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.recalculate()
			return
		}
	}

	if quantity < minOrder {
		quantity = minOrder
	}
	c.Items = append(c.Items, CartItem{
		ID:          uuid.New().String(),
		ProductID:   productID,
		Quantity:    quantity,
		PriceAtTime: price,
		AddedAt:     time.Now(),
	})
	c.recalculate()
}

// RemoveItem deletes the line with the given id. Returns false if the
// line is not in the cart.
func (c *Cart) RemoveItem(itemID string) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.recalculate()
			return true
		}
	}
	return false
}

// SetItemQuantity sets an absolute quantity on an existing line.
// Returns false if the line is not in the cart.
func (c *Cart) SetItemQuantity(itemID string, quantity int) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			c.recalculate()
			return true
		}
	}
	return false
}

// Clear empties the cart but keeps its identity for reuse.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.TotalAmount = 0
	c.UpdatedAt = time.Now()
}

func (c *Cart) ItemCount() int {
	return len(c.Items)
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// recalculate recomputes the total from the lines. Called after every
// mutation; the stored total is never trusted from outside.
func (c *Cart) recalculate() {
	total := 0.0
	for _, item := range c.Items {
		total += item.PriceAtTime * float64(item.Quantity)
	}
	c.TotalAmount = total
	c.UpdatedAt = time.Now()
}
