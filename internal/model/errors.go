package model

import "errors"

var (
	// ErrInvalidName is returned when the customer name on an order is empty.
	ErrInvalidName = errors.New("name is required")
	// ErrInvalidEmail is returned when an email is empty or malformed.
	ErrInvalidEmail = errors.New("a valid email is required")
	// ErrEmptyOrder is returned when an order has no items.
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// ErrInvalidQuantity is returned when an item quantity is below one.
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
	// ErrInvalidPrice is returned when an item price or PV is negative.
	ErrInvalidPrice = errors.New("item price and pv must not be negative")
	// ErrInvalidOrderStatus is returned for an unknown order status.
	ErrInvalidOrderStatus = errors.New("unknown order status")
	// ErrInvalidPaymentType is returned for an unknown payment type.
	ErrInvalidPaymentType = errors.New("unknown payment type")
	// ErrUnknownDeliveryMethod is returned when a delivery method code does not exist.
	ErrUnknownDeliveryMethod = errors.New("unknown delivery method")
	// ErrUserNotFound is returned when user is not found in database.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound is returned when order is not found in database.
	ErrOrderNotFound = errors.New("order not found")
	// ErrReferrerNotFound is returned when the referring user does not exist.
	ErrReferrerNotFound = errors.New("referrer not found")
	// ErrEmailTaken is returned when another user already has the email.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrNotFound is the generic not-found error of the change feeds.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSince is returned when a change-list cursor is not a Unix timestamp.
	ErrInvalidSince = errors.New("since must be a Unix time in whole seconds")
	// ErrMissingUUIDs is returned when a batch detail request names no identifiers.
	ErrMissingUUIDs = errors.New("uuids parameter is required")
	// ErrUnknownSubject is returned for a subject other than order or user.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrInvalidAction is returned for a stored action outside create/update/delete.
	ErrInvalidAction = errors.New("invalid sync action")
	// ErrInvalidStatus is returned for a stored status outside pending/sent/failed.
	ErrInvalidStatus = errors.New("invalid sync status")
	// ErrPublisherUnavailable is returned by a publisher that cannot reach its broker at all.
	// Records are left pending instead of being marked failed.
	ErrPublisherUnavailable = errors.New("publisher unavailable")
)
