package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/app"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()

	return &config.Config{
		DatabaseDriver:     config.DriverSQLite,
		SQLitePath:         filepath.Join(dir, "cli.db"),
		SyncBatchMax:       100,
		SyncCreateStrategy: config.CreateAfterCommit,
		SyncDeletePayload:  config.DeletePayloadMinimal,
		ExportFormat:       "xlsx",
		ExportDir:          filepath.Join(dir, "exports"),
		CSVEncoding:        "utf-8",
	}
}

func seed(t *testing.T, cfg *config.Config) *model.User {
	t.Helper()
	ctx := context.Background()

	repos, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	a := app.New(cfg, repos)
	defer a.Close()

	user, err := a.Users.CreateUser(ctx, &model.CreateUserParams{Email: "cli@example.com", FirstName: "Ivan"})
	require.NoError(t, err)

	_, err = a.Orders.CreateOrder(ctx, &model.CreateOrderParams{
		UserUUID:           &user.UUID,
		Name:               "Ivan",
		Email:              "cli@example.com",
		DeliveryMethodCode: "courier",
		Items: []*model.CreateOrderItemParams{{
			VariantID: 1,
			Quantity:  1,
			Price:     decimal.RequireFromString("10"),
			PV:        decimal.Zero,
		}},
	})
	require.NoError(t, err)

	return user
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewRootCommand(func() (*config.Config, error) {
		c := *cfg
		return &c, nil
	})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return buf.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)

	for _, name := range []string{"export", "retry-failed", "status", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	output := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	assert.Equal(t, "text", output.DefValue)
}

func TestExport_WritesFileAndDrainsQueue(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)

	out, err := execute(t, cfg, "export", "orders", "--format", "csv", "-o", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ExportSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Records)
	assert.Equal(t, int64(1), resp.Data.MarkedSent)
	assert.Equal(t, cfg.ExportDir, filepath.Dir(resp.Data.Path))
	assert.Equal(t, ".csv", filepath.Ext(resp.Data.Path))

	data, err := os.ReadFile(resp.Data.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cli@example.com")

	entries, err := os.ReadDir(cfg.ExportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")

	out, err = execute(t, cfg, "export", "orders", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "exported 0 order record(s)")
}

func TestExport_XLSXDefaultAndOutFlag(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)
	outDir := filepath.Join(t.TempDir(), "custom")

	out, err := execute(t, cfg, "export", "users", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 user record(s)")

	matches, err := filepath.Glob(filepath.Join(outDir, "*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExport_Errors(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(t, cfg, "export", "carts")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, cfg, "export", "orders", "--format", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, cfg, "status", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output")
}

func TestRetryFailedAndStatus(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)
	ctx := context.Background()

	repos, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	pending, err := repos.UserQueue.GetPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, repos.UserQueue.MarkFailed(ctx, pending[0].ID, "crm unreachable"))
	repos.Close()

	out, err := execute(t, cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "order  pending=1 sent=0 failed=0")
	assert.Contains(t, out, "user   pending=0 sent=0 failed=1")

	out, err = execute(t, cfg, "retry-failed", "users")
	require.NoError(t, err)
	assert.Contains(t, out, "requeued 1 failed user record(s)")

	out, err = execute(t, cfg, "status", "-o", "json")
	require.NoError(t, err)

	var resp struct {
		Data []QueueStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []QueueStatus{
		{Subject: "order", Pending: 1},
		{Subject: "user", Pending: 1},
	}, resp.Data)
}

func TestMigrate_SQLite(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "migrate")

	require.NoError(t, err)
	assert.Contains(t, out, "schema applied (sqlite)")
}
