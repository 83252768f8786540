package domain

import (
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// statusRank orders the forward progression. Cancelled sits outside the
// progression as a terminal branch.
var statusRank = map[OrderStatus]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

func (s OrderStatus) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether the status may move from s to next.
// Forward jumps that skip informational states are allowed; going
// backward is not. Cancellation is reachable from any non-terminal
// state.
func CanTransitionTo(s, next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	fromRank, okFrom := statusRank[s]
	toRank, okTo := statusRank[next]
	return okFrom && okTo && toRank > fromRank
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// OrderItem carries a denormalized copy of the product name and image
// captured at order time, so history survives later product deletion.
type OrderItem struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductImage string  `json:"product_image"`
	Quantity     int     `json:"quantity"`
	PriceAtTime  float64 `json:"price_at_time"`
}

// Order is created only by the checkout engine. Content and total are
// fixed at creation; only status and delivery fields mutate afterwards.
type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"order_number"`
	VendorID        string        `json:"vendor_id"`
	SupplierID      string        `json:"supplier_id"`
	Items           []OrderItem   `json:"items"`
	TotalAmount     float64       `json:"total_amount"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	DeliveryAddress string        `json:"delivery_address,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	ActualDelivery  *time.Time    `json:"actual_delivery,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
