// Package export renders sync records as spreadsheet rows.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jnst/storefront-sync/internal/model"
)

// Layout is the fixed column set of one subject's export.
type Layout struct {
	Subject model.Subject
	Columns []string
	row     func(r *model.SyncRecord) ([]any, error)
}

// Row renders one record; its length always matches Columns.
func (l Layout) Row(r *model.SyncRecord) ([]any, error) {
	return l.row(r)
}

var orderColumns = []string{
	"id", "action", "order_uuid", "created_at",
	"number", "user_uuid", "name", "email", "phone",
	"delivery_method", "delivery_city", "delivery_address", "payment_type",
	"total", "total_pv", "status", "comment", "order_created_at", "items",
}

var userColumns = []string{
	"id", "action", "user_uuid", "created_at",
	"uuid", "email", "first_name", "last_name", "phone",
	"is_business_user", "referred_by_uuid", "is_active", "date_joined",
}

// LayoutFor returns the layout of a subject.
func LayoutFor(subject model.Subject) (Layout, error) {
	switch subject {
	case model.SubjectOrder:
		return Layout{Subject: subject, Columns: orderColumns, row: orderRow}, nil
	case model.SubjectUser:
		return Layout{Subject: subject, Columns: userColumns, row: userRow}, nil
	default:
		return Layout{}, fmt.Errorf("%w: %q", model.ErrUnknownSubject, subject)
	}
}

func recordPrefix(r *model.SyncRecord) []any {
	return []any{r.ID, string(r.Action), r.SubjectUUIDString(), formatTime(r.CreatedAt)}
}

func orderRow(r *model.SyncRecord) ([]any, error) {
	row := recordPrefix(r)

	if r.Action == model.ActionDelete {
		return append(row, blanks(len(orderColumns)-len(row))...), nil
	}

	var s model.OrderSnapshot
	if err := json.Unmarshal(r.Payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode order record %d: %w", r.ID, err)
	}

	items, err := json.Marshal(s.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items of record %d: %w", r.ID, err)
	}

	var number any = ""
	if s.Number != nil {
		number = *s.Number
	}

	return append(row,
		number,
		str(s.UserUUID),
		s.Name,
		s.Email,
		s.Phone,
		str(s.DeliveryMethod),
		s.DeliveryCity,
		s.DeliveryAddress,
		s.PaymentType,
		s.Total,
		s.TotalPV,
		s.Status,
		s.Comment,
		str(s.CreatedAt),
		string(items),
	), nil
}

func userRow(r *model.SyncRecord) ([]any, error) {
	row := recordPrefix(r)

	if r.Action == model.ActionDelete {
		var d model.DeletePayload
		if err := json.Unmarshal(r.Payload, &d); err != nil {
			return nil, fmt.Errorf("failed to decode user record %d: %w", r.ID, err)
		}

		row = append(row, str(d.UUID))

		return append(row, blanks(len(userColumns)-len(row))...), nil
	}

	var s model.UserSnapshot
	if err := json.Unmarshal(r.Payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode user record %d: %w", r.ID, err)
	}

	return append(row,
		s.UUID,
		s.Email,
		s.FirstName,
		s.LastName,
		s.Phone,
		s.IsBusinessUser,
		str(s.ReferredByUUID),
		s.IsActive,
		str(s.DateJoined),
	), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func str(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func blanks(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = ""
	}

	return out
}
