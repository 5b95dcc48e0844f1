package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the statuses the backend accepts.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Street      string          `json:"street,omitempty"`
	City        string          `json:"city,omitempty"`
	ZipCode     string          `json:"zip_code,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	UserName    string          `json:"user_name,omitempty"`
	UserEmail   string          `json:"user_email,omitempty"`
	ItemsCount  int             `json:"items_count,omitempty"`
	Items       []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID          int64           `json:"id,omitempty"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// OrderRequest is the payload of POST /api/orders.
type OrderRequest struct {
	Items             []OrderLine `json:"items"`
	ShippingAddressID int64       `json:"shippingAddressId"`
	PaymentMethod     string      `json:"paymentMethod"`
	PaymentID         string      `json:"paymentId,omitempty"`
}

type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type OrderStats struct {
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	PendingOrders int             `json:"pendingOrders"`
}
