package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/app"
	"github.com/jnst/storefront-sync/internal/client"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository/sqlite"
	"github.com/jnst/storefront-sync/internal/storage"
)

func newApp(t *testing.T) (*app.App, *httptest.Server) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)

	cfg := &config.Config{
		SyncBatchMax:       100,
		SyncCreateStrategy: config.CreateAfterCommit,
		SyncDeletePayload:  config.DeletePayloadMinimal,
		OrderSyncAPIKey:    "order-key",
		UserSyncAPIKey:     "user-key",
	}

	a := app.New(cfg, storage.NewSQLite(store))
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})

	return a, srv
}

func TestOrderClient_ChangesDetailBatch(t *testing.T) {
	a, srv := newApp(t)
	ctx := context.Background()

	order, err := a.Orders.CreateOrder(ctx, &model.CreateOrderParams{
		Name:               "Boris",
		Email:              "boris@example.com",
		DeliveryMethodCode: "pickup",
		Items: []*model.CreateOrderItemParams{{
			VariantID: 3,
			Quantity:  1,
			Price:     decimal.RequireFromString("1990"),
			PV:        decimal.RequireFromString("20"),
		}},
	})
	require.NoError(t, err)

	c := client.NewOrderClient(srv.URL+"/", "order-key")

	ids, err := c.Changes(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{order.UUID}, ids)

	detail, err := c.Detail(ctx, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, order.UUID.String(), detail.UUID)
	assert.Equal(t, "1990.00", detail.Total)

	batch, err := c.Batch(ctx, []uuid.UUID{uuid.New(), order.UUID})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, order.UUID.String(), batch[0].UUID)

	empty, err := c.Batch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUserClient_BatchSplitsAboveBatchSize(t *testing.T) {
	a, _ := newApp(t)
	ctx := context.Background()

	var requests atomic.Int32
	handler := a.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	var ids []uuid.UUID
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		user, err := a.Users.CreateUser(ctx, &model.CreateUserParams{Email: email})
		require.NoError(t, err)
		ids = append(ids, user.UUID)
	}

	c := client.NewUserClient(srv.URL, "user-key", client.WithBatchSize(2))

	batch, err := c.Batch(ctx, []uuid.UUID{ids[2], ids[0], uuid.New(), ids[2], ids[1]})
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())

	got := make([]string, len(batch))
	for i, u := range batch {
		got[i] = u.UUID
	}
	assert.Equal(t, []string{ids[2].String(), ids[0].String(), ids[1].String()}, got)
}

func TestUserClient_ErrorMapping(t *testing.T) {
	_, srv := newApp(t)
	ctx := context.Background()

	_, err := client.NewUserClient(srv.URL, "user-key").Detail(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Code)

	_, err = client.NewUserClient(srv.URL, "wrong").Changes(ctx, nil)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/changes", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	ids, err := client.NewUserClient(srv.URL, "k").Changes(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_since","message":"bad"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := client.NewOrderClient(srv.URL, "").Changes(context.Background(), nil)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_since", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}
