package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/app"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository/postgres"
	"github.com/jnst/storefront-sync/internal/storage"
)

// newTestApp connects to TEST_DATABASE_URL, applies the schema and empties every table.
func newTestApp(t *testing.T) *app.App {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, url)
	require.NoError(t, err)

	repos := storage.NewPostgres(pool)
	require.NoError(t, repos.Migrate(ctx))

	_, err = pool.Exec(ctx, `TRUNCATE order_sync_queue, user_sync_queue, order_items, orders, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE order_number_counter SET last_value = $1`, model.FirstOrderNumber-1)
	require.NoError(t, err)

	cfg := &config.Config{
		DatabaseDriver:     config.DriverPostgres,
		SyncBatchMax:       100,
		SyncCreateStrategy: config.CreateInTransaction,
		SyncDeletePayload:  config.DeletePayloadMinimal,
	}

	a := app.New(cfg, repos)
	t.Cleanup(a.Close)

	return a
}

func orderParams(email string) *model.CreateOrderParams {
	return &model.CreateOrderParams{
		Name:               "Anna",
		Email:              email,
		DeliveryMethodCode: "cdek_pvz",
		Items: []*model.CreateOrderItemParams{{
			VariantID: 5,
			Quantity:  3,
			Price:     decimal.RequireFromString("100.50"),
			PV:        decimal.RequireFromString("1.25"),
		}},
	}
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	order, err := a.Orders.CreateOrder(ctx, orderParams("anna@example.com"))
	require.NoError(t, err)
	require.NotNil(t, order.Number)
	assert.Equal(t, int64(model.FirstOrderNumber), *order.Number)

	detail, err := a.OrderFeed.Get(ctx, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, "301.50", detail.Total)
	assert.Equal(t, "3.75", detail.TotalPV)
	require.Len(t, detail.Items, 1)

	cancelled := model.OrderStatusCancelled
	_, err = a.Orders.UpdateOrder(ctx, order.UUID, &model.UpdateOrderParams{Status: &cancelled})
	require.NoError(t, err)
	require.NoError(t, a.Orders.DeleteOrder(ctx, order.UUID))

	ids, err := a.OrderFeed.ListChanged(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{order.UUID}, ids)

	_, err = a.OrderFeed.Get(ctx, order.UUID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	pending, err := a.Repos.OrderQueue.CountByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)
}

func TestPostgres_RollbackDiscardsRecordAndNumber(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := a.Repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := a.Orders.CreateOrder(ctx, orderParams("anna@example.com")); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	pending, err := a.Repos.OrderQueue.CountByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)

	order, err := a.Orders.CreateOrder(ctx, orderParams("anna@example.com"))
	require.NoError(t, err)
	require.NotNil(t, order.Number)
	assert.Equal(t, int64(model.FirstOrderNumber), *order.Number)
}

func TestPostgres_ConcurrentCheckoutsGetDistinctNumbers(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	const n = 8
	numbers := make(chan int64, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			order, err := a.Orders.CreateOrder(ctx, orderParams("load@example.com"))
			if assert.NoError(t, err) && assert.NotNil(t, order.Number) {
				numbers <- *order.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for num := range numbers {
		assert.False(t, seen[num], "duplicate order number %d", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)

	ids, err := a.OrderFeed.ListChanged(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, ids, n)
}

func TestPostgres_UserBatchAndExportDrain(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	first, err := a.Users.CreateUser(ctx, &model.CreateUserParams{Email: "a@example.com"})
	require.NoError(t, err)
	second, err := a.Users.CreateUser(ctx, &model.CreateUserParams{Email: "b@example.com", ReferredByUUID: &first.UUID})
	require.NoError(t, err)

	batch, err := a.UserFeed.GetBatch(ctx, []uuid.UUID{second.UUID, uuid.New(), first.UUID})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, second.UUID.String(), batch[0].UUID)
	require.NotNil(t, batch[0].ReferredByUUID)
	assert.Equal(t, first.UUID.String(), *batch[0].ReferredByUUID)

	result, err := a.Exports.Export(ctx, model.SubjectUser, "csv")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, int64(2), result.MarkedSent)

	result, err = a.Exports.Export(ctx, model.SubjectUser, "csv")
	require.NoError(t, err)
	assert.Zero(t, result.Records)
}
