package model

// OrderItemSnapshot is the wire form of one order line.
type OrderItemSnapshot struct {
	VariantID int64   `json:"variant_id"`
	Product   *string `json:"product"`
	Quantity  int     `json:"quantity"`
	Price     string  `json:"price"`
	PV        string  `json:"pv"`
	LinePV    string  `json:"line_pv"`
}

// OrderSnapshot is the consumer-facing state of an order at a point in time.
// Money and PV are fixed two-place decimal strings; references are UUIDs.
type OrderSnapshot struct {
	Number          *int64              `json:"number"`
	UserUUID        *string             `json:"user_uuid"`
	Name            string              `json:"name"`
	Email           string              `json:"email"`
	Phone           string              `json:"phone"`
	DeliveryMethod  *string             `json:"delivery_method"`
	DeliveryCity    string              `json:"delivery_city"`
	DeliveryAddress string              `json:"delivery_address"`
	PaymentType     string              `json:"payment_type"`
	Total           string              `json:"total"`
	TotalPV         string              `json:"total_pv"`
	Status          string              `json:"status"`
	Comment         string              `json:"comment"`
	CreatedAt       *string             `json:"created_at"`
	Items           []OrderItemSnapshot `json:"items"`
}

// OrderDetail is the detail endpoint's view: the uuid followed by the snapshot fields.
type OrderDetail struct {
	UUID string `json:"uuid"`
	OrderSnapshot
}

// UserSnapshot is the consumer-facing state of a user. It doubles as the detail view.
type UserSnapshot struct {
	UUID           string  `json:"uuid"`
	ReferredByUUID *string `json:"referred_by_uuid"`
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Phone          string  `json:"phone"`
	IsBusinessUser bool    `json:"is_business_user"`
	IsActive       bool    `json:"is_active"`
	DateJoined     *string `json:"date_joined"`
}

// DeletePayload is the minimal marker stored for a DELETE record.
type DeletePayload struct {
	UUID   *string `json:"uuid"`
	Action Action  `json:"action"`
}

// FullOrderDeletePayload keeps the pre-delete state alongside the delete marker.
type FullOrderDeletePayload struct {
	Action Action `json:"action"`
	OrderDetail
}

// FullUserDeletePayload keeps the pre-delete state alongside the delete marker.
type FullUserDeletePayload struct {
	Action Action `json:"action"`
	UserSnapshot
}
