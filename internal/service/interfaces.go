// Package service provides business logic layer implementations.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
)

// UserService defines business logic methods for user management.
type UserService interface {
	CreateUser(ctx context.Context, params *model.CreateUserParams) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, params *model.UpdateUserParams) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// OrderService defines business logic methods for order management.
type OrderService interface {
	CreateOrder(ctx context.Context, params *model.CreateOrderParams) (*model.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, params *model.UpdateOrderParams) (*model.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

// SyncWriter appends records to the sync queues. Enqueue joins the transaction
// bound to ctx, so the record commits or rolls back with the caller's mutation.
type SyncWriter interface {
	Enqueue(
		ctx context.Context, subject model.Subject, action model.Action, subjectUUID *uuid.UUID, payload any,
	) (*model.SyncRecord, error)
}

// SyncTrigger maps entity lifecycle events to exactly one enqueue each.
// Mutation services call it explicitly from inside their transactions.
type SyncTrigger interface {
	// OrderCreated records the CREATE of an order whose items are already written.
	OrderCreated(ctx context.Context, orderID int64) error
	OrderUpdated(ctx context.Context, order *model.Order) error
	// OrderDeleting must be called before the order row is removed.
	OrderDeleting(ctx context.Context, order *model.Order) error
	UserCreated(ctx context.Context, user *model.User) error
	UserUpdated(ctx context.Context, user *model.User) error
	UserDeleting(ctx context.Context, user *model.User) error
}

// ChangeFeed is the read side of one subject's queue used by the polling API.
type ChangeFeed interface {
	Subject() model.Subject
	// ListChanged returns each changed subject once, ordered by first change at or after since.
	ListChanged(ctx context.Context, since *time.Time) ([]uuid.UUID, error)
	// Detail returns the live state of a subject or model.ErrNotFound.
	Detail(ctx context.Context, id uuid.UUID) (any, error)
	// DetailBatch returns the live state of the known subjects among ids.
	DetailBatch(ctx context.Context, ids []uuid.UUID) ([]any, error)
	BatchMax() int
}

// ExportService drains pending records into an offline file.
type ExportService interface {
	Export(ctx context.Context, subject model.Subject, format string) (*ExportResult, error)
}

// OutboxService defines business logic methods for relaying sync records to a broker.
type OutboxService interface {
	ProcessPending(ctx context.Context, limit int) error
	RetryFailed(ctx context.Context, subject model.Subject) (int64, error)
}

// Publisher delivers one sync record to a downstream broker.
type Publisher interface {
	Publish(ctx context.Context, record *model.SyncRecord) error
}
