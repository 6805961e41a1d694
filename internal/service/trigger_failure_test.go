package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

var errEnqueue = errors.New("sync queue unavailable")

type failingWriter struct{}

func (failingWriter) Enqueue(context.Context, model.Subject, model.Action, *uuid.UUID, any) (*model.SyncRecord, error) {
	return nil, errEnqueue
}

// failingServices shares f's storage but enqueues through a writer that always fails.
func failingServices(f *fixture, opts TriggerOptions) (OrderService, UserService) {
	trigger := NewSyncTriggerImpl(failingWriter{}, f.repos.Orders, opts)

	return NewOrderServiceImpl(f.repos.Orders, f.repos.Users, trigger, f.repos.Tx),
		NewUserServiceImpl(f.repos.Users, trigger, f.repos.Tx)
}

func TestCreateOrder_AfterCommitEnqueueFailureIsReturned(t *testing.T) {
	f := newFixture(t, TriggerOptions{CreateStrategy: config.CreateAfterCommit})
	orders, _ := failingServices(f, TriggerOptions{CreateStrategy: config.CreateAfterCommit})
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderParams())
	require.ErrorIs(t, err, repository.ErrPostCommitHook)
	assert.ErrorIs(t, err, errEnqueue)
	assert.Nil(t, order)
	assert.Empty(t, pendingRecords(t, f, model.SubjectOrder))

	// The checkout committed, so its number is taken.
	next, err := f.orders.CreateOrder(ctx, orderParams())
	require.NoError(t, err)
	assert.Equal(t, int64(model.FirstOrderNumber+1), *next.Number)
}

func TestCreateOrder_InTransactionEnqueueFailureRollsBack(t *testing.T) {
	f := newFixture(t, TriggerOptions{CreateStrategy: config.CreateInTransaction})
	orders, _ := failingServices(f, TriggerOptions{CreateStrategy: config.CreateInTransaction})
	ctx := context.Background()

	_, err := orders.CreateOrder(ctx, orderParams())
	require.ErrorIs(t, err, errEnqueue)
	assert.NotErrorIs(t, err, repository.ErrPostCommitHook)
	assert.Empty(t, pendingRecords(t, f, model.SubjectOrder))

	next, err := f.orders.CreateOrder(ctx, orderParams())
	require.NoError(t, err)
	assert.Equal(t, int64(model.FirstOrderNumber), *next.Number)
}

func TestOrderMutations_EnqueueFailureAbortsMutation(t *testing.T) {
	for _, full := range []bool{false, true} {
		f := newFixture(t, TriggerOptions{})
		orders, _ := failingServices(f, TriggerOptions{FullDeletePayload: full})
		ctx := context.Background()

		order, err := f.orders.CreateOrder(ctx, orderParams())
		require.NoError(t, err)

		paid := model.OrderStatusPaid
		_, err = orders.UpdateOrder(ctx, order.UUID, &model.UpdateOrderParams{Status: &paid})
		require.ErrorIs(t, err, errEnqueue)

		err = orders.DeleteOrder(ctx, order.UUID)
		require.ErrorIs(t, err, errEnqueue)

		stored, err := f.orders.GetOrder(ctx, order.UUID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusNew, stored.Status)

		records := pendingRecords(t, f, model.SubjectOrder)
		require.Len(t, records, 1)
		assert.Equal(t, model.ActionCreate, records[0].Action)
	}
}

func TestUserMutations_EnqueueFailureAbortsMutation(t *testing.T) {
	f := newFixture(t, TriggerOptions{})
	_, users := failingServices(f, TriggerOptions{})
	ctx := context.Background()

	_, err := users.CreateUser(ctx, &model.CreateUserParams{Email: "anna@example.com"})
	require.ErrorIs(t, err, errEnqueue)

	// The email was not taken by the rolled-back insert.
	user, err := f.users.CreateUser(ctx, &model.CreateUserParams{Email: "anna@example.com"})
	require.NoError(t, err)

	business := true
	_, err = users.UpdateUser(ctx, user.UUID, &model.UpdateUserParams{IsBusinessUser: &business})
	require.ErrorIs(t, err, errEnqueue)

	err = users.DeleteUser(ctx, user.UUID)
	require.ErrorIs(t, err, errEnqueue)

	stored, err := f.users.GetUser(ctx, user.UUID)
	require.NoError(t, err)
	assert.False(t, stored.IsBusinessUser)

	records := pendingRecords(t, f, model.SubjectUser)
	require.Len(t, records, 1)
	assert.Equal(t, model.ActionCreate, records[0].Action)
}
