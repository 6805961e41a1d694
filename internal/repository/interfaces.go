// Package repository provides data access interfaces shared by the storage backends.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	Create(ctx context.Context, params *model.CreateUserParams, referredByID *int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
}

// OrderRepository defines methods for order data access.
// Read methods return orders with user UUID, delivery method and items loaded.
type OrderRepository interface {
	// NextNumber allocates the next order number, holding a row lock until the
	// surrounding transaction ends so concurrent checkouts never share or skip a number.
	NextNumber(ctx context.Context) (int64, error)
	FindDeliveryMethod(ctx context.Context, code string) (*model.DeliveryMethod, error)
	Create(ctx context.Context, order *model.Order) error
	AddItem(ctx context.Context, item *model.OrderItem) error
	Update(ctx context.Context, order *model.Order) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Order, error)
}

// SyncQueueRepository defines methods for one subject's outbox table.
type SyncQueueRepository interface {
	Subject() model.Subject
	Enqueue(ctx context.Context, params *model.CreateSyncRecordParams) (*model.SyncRecord, error)
	// ListChangedSubjects returns each subject UUID once, ordered by its first
	// record at or after since (all history when since is nil).
	ListChangedSubjects(ctx context.Context, since *time.Time) ([]uuid.UUID, error)
	// GetPending returns pending records oldest first; limit <= 0 means no limit.
	GetPending(ctx context.Context, limit int) ([]*model.SyncRecord, error)
	GetByID(ctx context.Context, id int64) (*model.SyncRecord, error)
	// MarkSent flips the given records from pending to sent and reports how many changed.
	MarkSent(ctx context.Context, ids []int64, sentAt time.Time) (int64, error)
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	RequeueFailed(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status model.Status) (int64, error)
}

// TransactionManager defines methods for database transaction management.
//
// WithTransaction runs fn with a context bound to the transaction. Calls made
// with an already bound context join the outer transaction instead of nesting.
// Functions registered with AfterCommit run once the outermost transaction
// commits and are discarded on rollback. When one of them fails the commit
// stands and WithTransaction returns an error wrapping ErrPostCommitHook.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
