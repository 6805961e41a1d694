// Package snapshot flattens orders and users into their consumer-facing payloads.
//
// Builders are pure: they never touch storage and never mutate their input, so
// the same entity always yields the same snapshot.
package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jnst/storefront-sync/internal/model"
)

const decimalPlaces = 2

// Order builds the snapshot of a fully loaded order.
func Order(o *model.Order) model.OrderSnapshot {
	items := make([]model.OrderItemSnapshot, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, model.OrderItemSnapshot{
			VariantID: item.VariantID,
			Product:   copyString(item.ProductName),
			Quantity:  item.Quantity,
			Price:     money(item.Price),
			PV:        money(item.PV),
			LinePV:    money(item.LinePV()),
		})
	}

	var deliveryMethod *string
	if o.DeliveryMethod != nil {
		code := o.DeliveryMethod.Code
		deliveryMethod = &code
	}

	var number *int64
	if o.Number != nil {
		n := *o.Number
		number = &n
	}

	return model.OrderSnapshot{
		Number:          number,
		UserUUID:        uuidString(o.UserUUID),
		Name:            o.Name,
		Email:           o.Email,
		Phone:           o.Phone,
		DeliveryMethod:  deliveryMethod,
		DeliveryCity:    o.DeliveryCity,
		DeliveryAddress: o.DeliveryAddress,
		PaymentType:     string(o.PaymentType),
		Total:           money(o.Total),
		TotalPV:         money(o.TotalPV),
		Status:          string(o.Status),
		Comment:         o.Comment,
		CreatedAt:       timestamp(o.CreatedAt),
		Items:           items,
	}
}

// OrderDetail prefixes the order snapshot with the order's UUID.
func OrderDetail(o *model.Order) model.OrderDetail {
	return model.OrderDetail{
		UUID:          o.UUID.String(),
		OrderSnapshot: Order(o),
	}
}

// User builds the snapshot of a user.
func User(u *model.User) model.UserSnapshot {
	return model.UserSnapshot{
		UUID:           u.UUID.String(),
		ReferredByUUID: uuidString(u.ReferredByUUID),
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Phone:          u.Phone,
		IsBusinessUser: u.IsBusinessUser,
		IsActive:       u.IsActive,
		DateJoined:     timestamp(u.DateJoined),
	}
}

// Delete builds the minimal marker payload for a removed subject.
func Delete(id *uuid.UUID) model.DeletePayload {
	return model.DeletePayload{
		UUID:   uuidString(id),
		Action: model.ActionDelete,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(decimalPlaces)
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}

	s := t.UTC().Format(time.RFC3339Nano)

	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}

	s := id.String()

	return &s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}
