package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
	"github.com/jnst/storefront-sync/internal/snapshot"
)

// TriggerOptions selects the enqueue timing and delete payload shape.
type TriggerOptions struct {
	// CreateStrategy is config.CreateAfterCommit or config.CreateInTransaction.
	CreateStrategy string
	// FullDeletePayload stores the pre-delete snapshot instead of the minimal marker.
	FullDeletePayload bool
}

// TriggerOptionsFromConfig reads the sync settings of cfg.
func TriggerOptionsFromConfig(cfg *config.Config) TriggerOptions {
	return TriggerOptions{
		CreateStrategy:    cfg.SyncCreateStrategy,
		FullDeletePayload: cfg.SyncDeletePayload == config.DeletePayloadFull,
	}
}

// SyncTriggerImpl implements SyncTrigger.
type SyncTriggerImpl struct {
	writer    SyncWriter
	orderRepo repository.OrderRepository
	opts      TriggerOptions
}

// NewSyncTriggerImpl creates a new SyncTrigger implementation.
func NewSyncTriggerImpl(writer SyncWriter, orderRepo repository.OrderRepository, opts TriggerOptions) SyncTrigger {
	if opts.CreateStrategy == "" {
		opts.CreateStrategy = config.CreateAfterCommit
	}

	return &SyncTriggerImpl{
		writer:    writer,
		orderRepo: orderRepo,
		opts:      opts,
	}
}

// OrderCreated re-reads the order with its items and enqueues CREATE.
//
// With the after-commit strategy the enqueue runs once the checkout transaction
// has committed, in its own transaction. A crash between the two loses the
// record. A failed enqueue is returned from the caller's WithTransaction
// wrapped in repository.ErrPostCommitHook; the order itself stays committed.
// The in-transaction strategy writes it inside the checkout transaction.
func (t *SyncTriggerImpl) OrderCreated(ctx context.Context, orderID int64) error {
	if t.opts.CreateStrategy == config.CreateInTransaction {
		return t.enqueueOrderCreate(ctx, orderID)
	}

	return repository.AfterCommit(ctx, func(ctx context.Context) error {
		if err := t.enqueueOrderCreate(ctx, orderID); err != nil {
			slog.Error("failed to enqueue deferred order create",
				slog.Int64("order_id", orderID),
				slog.String("error", err.Error()),
			)

			return fmt.Errorf("order %d create: %w", orderID, err)
		}

		return nil
	})
}

func (t *SyncTriggerImpl) enqueueOrderCreate(ctx context.Context, orderID int64) error {
	order, err := t.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	_, err = t.writer.Enqueue(ctx, model.SubjectOrder, model.ActionCreate, &order.UUID, snapshot.Order(order))

	return err
}

// OrderUpdated enqueues UPDATE with the post-update state held in memory.
func (t *SyncTriggerImpl) OrderUpdated(ctx context.Context, order *model.Order) error {
	_, err := t.writer.Enqueue(ctx, model.SubjectOrder, model.ActionUpdate, &order.UUID, snapshot.Order(order))

	return err
}

// OrderDeleting enqueues DELETE while the order is still resolvable.
func (t *SyncTriggerImpl) OrderDeleting(ctx context.Context, order *model.Order) error {
	id := subjectID(order.UUID)

	var payload any = snapshot.Delete(id)
	if t.opts.FullDeletePayload {
		payload = model.FullOrderDeletePayload{
			Action:      model.ActionDelete,
			OrderDetail: snapshot.OrderDetail(order),
		}
	}

	_, err := t.writer.Enqueue(ctx, model.SubjectOrder, model.ActionDelete, id, payload)

	return err
}

// UserCreated enqueues CREATE synchronously; users have no children to wait for.
func (t *SyncTriggerImpl) UserCreated(ctx context.Context, user *model.User) error {
	_, err := t.writer.Enqueue(ctx, model.SubjectUser, model.ActionCreate, &user.UUID, snapshot.User(user))

	return err
}

// UserUpdated enqueues UPDATE with the post-update state held in memory.
func (t *SyncTriggerImpl) UserUpdated(ctx context.Context, user *model.User) error {
	_, err := t.writer.Enqueue(ctx, model.SubjectUser, model.ActionUpdate, &user.UUID, snapshot.User(user))

	return err
}

// UserDeleting enqueues DELETE while the user is still resolvable.
func (t *SyncTriggerImpl) UserDeleting(ctx context.Context, user *model.User) error {
	id := subjectID(user.UUID)

	var payload any = snapshot.Delete(id)
	if t.opts.FullDeletePayload {
		payload = model.FullUserDeletePayload{
			Action:       model.ActionDelete,
			UserSnapshot: snapshot.User(user),
		}
	}

	_, err := t.writer.Enqueue(ctx, model.SubjectUser, model.ActionDelete, id, payload)

	return err
}

// subjectID returns nil for an unset UUID so the record stores NULL.
func subjectID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}

	return &id
}
