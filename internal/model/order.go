package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentType is how the customer pays.
type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentOnline PaymentType = "online"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentOnline
}

// FirstOrderNumber is the number given to the very first order.
const FirstOrderNumber = 100000

// DeliveryMethod is a shipping option selectable at checkout.
type DeliveryMethod struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	DeliveryType string `json:"delivery_type"`
	IsActive     bool   `json:"is_active"`
	SortOrder    int    `json:"sort_order"`
}

// Order represents a placed order together with the related rows its snapshot needs.
type Order struct {
	ID              int64
	UUID            uuid.UUID
	Number          *int64
	UserID          *int64
	UserUUID        *uuid.UUID
	Name            string
	Email           string
	Phone           string
	DeliveryMethod  *DeliveryMethod
	DeliveryCity    string
	DeliveryAddress string
	DeliveryCost    *decimal.Decimal
	PaymentType     PaymentType
	Total           decimal.Decimal
	TotalPV         decimal.Decimal
	Status          OrderStatus
	Comment         string
	CreatedAt       time.Time
	Items           []*OrderItem
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID          int64
	OrderID     int64
	VariantID   int64
	ProductName *string
	Quantity    int
	Price       decimal.Decimal
	PV          decimal.Decimal
}

// LineTotal is price multiplied by quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LinePV is the per-unit PV multiplied by quantity.
func (i *OrderItem) LinePV() decimal.Decimal {
	return i.PV.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CreateOrderItemParams represents one requested order line.
type CreateOrderItemParams struct {
	VariantID   int64           `json:"variant_id"`
	ProductName *string         `json:"product"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	PV          decimal.Decimal `json:"pv"`
}

// CreateOrderParams represents parameters for placing an order.
type CreateOrderParams struct {
	UserUUID           *uuid.UUID               `json:"user_uuid"`
	Name               string                   `json:"name"`
	Email              string                   `json:"email"`
	Phone              string                   `json:"phone"`
	DeliveryMethodCode string                   `json:"delivery_method"`
	DeliveryCity       string                   `json:"delivery_city"`
	DeliveryAddress    string                   `json:"delivery_address"`
	DeliveryCost       *decimal.Decimal         `json:"delivery_cost"`
	PaymentType        PaymentType              `json:"payment_type"`
	Comment            string                   `json:"comment"`
	Items              []*CreateOrderItemParams `json:"items"`
}

// Validate validates the order parameters and fills defaults.
func (p *CreateOrderParams) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrInvalidName
	}

	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return ErrInvalidEmail
	}

	if p.PaymentType == "" {
		p.PaymentType = PaymentCash
	}
	if !p.PaymentType.Valid() {
		return ErrInvalidPaymentType
	}

	if len(p.Items) == 0 {
		return ErrEmptyOrder
	}

	for _, item := range p.Items {
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if item.Price.IsNegative() || item.PV.IsNegative() {
			return ErrInvalidPrice
		}
	}

	return nil
}

// Totals returns the order total and total PV of the requested lines.
func (p *CreateOrderParams) Totals() (total, totalPV decimal.Decimal) {
	for _, item := range p.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(item.Price.Mul(qty))
		totalPV = totalPV.Add(item.PV.Mul(qty))
	}

	return total, totalPV
}

// UpdateOrderParams carries a partial update; nil fields are left untouched.
type UpdateOrderParams struct {
	Status          *OrderStatus `json:"status"`
	PaymentType     *PaymentType `json:"payment_type"`
	Phone           *string      `json:"phone"`
	DeliveryCity    *string      `json:"delivery_city"`
	DeliveryAddress *string      `json:"delivery_address"`
	Comment         *string      `json:"comment"`
}

// Validate checks the enum fields of the patch.
func (p *UpdateOrderParams) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidOrderStatus
	}
	if p.PaymentType != nil && !p.PaymentType.Valid() {
		return ErrInvalidPaymentType
	}

	return nil
}

// Apply copies the set fields onto o.
func (p *UpdateOrderParams) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentType != nil {
		o.PaymentType = *p.PaymentType
	}
	if p.Phone != nil {
		o.Phone = *p.Phone
	}
	if p.DeliveryCity != nil {
		o.DeliveryCity = *p.DeliveryCity
	}
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = *p.DeliveryAddress
	}
	if p.Comment != nil {
		o.Comment = *p.Comment
	}
}
