package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100, cfg.SyncBatchMax)
	assert.Equal(t, CreateAfterCommit, cfg.SyncCreateStrategy)
	assert.Equal(t, DeletePayloadMinimal, cfg.SyncDeletePayload)
	assert.Equal(t, FormatXLSX, cfg.ExportFormat)
	assert.Equal(t, 5*time.Second, cfg.RelayPollInterval)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Empty(t, cfg.OrderSyncAPIKey)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ORDER_SYNC_API_KEY", "secret")
	t.Setenv("SYNC_CREATE_STRATEGY", "in_transaction")
	t.Setenv("SYNC_BATCH_MAX", "5000")
	t.Setenv("RELAY_POLL_INTERVAL", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "secret", cfg.OrderSyncAPIKey)
	assert.Equal(t, CreateInTransaction, cfg.SyncCreateStrategy)
	assert.Equal(t, MaxBatchMax, cfg.SyncBatchMax)
	assert.Equal(t, 250*time.Millisecond, cfg.RelayPollInterval)
}

func TestLoadConfig_RejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"driver", "DATABASE_DRIVER", "mysql"},
		{"create strategy", "SYNC_CREATE_STRATEGY", "eventually"},
		{"delete payload", "SYNC_DELETE_PAYLOAD", "partial"},
		{"export format", "EXPORT_FORMAT", "pdf"},
		{"csv encoding", "CSV_ENCODING", "koi8-r"},
		{"relay sink", "RELAY_SINK", "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate_ClampsBatchMax(t *testing.T) {
	cfg := &Config{
		DatabaseDriver:     DriverSQLite,
		LogFormat:          "text",
		SyncCreateStrategy: CreateAfterCommit,
		SyncDeletePayload:  DeletePayloadMinimal,
		ExportFormat:       FormatCSV,
		CSVEncoding:        EncodingUTF8,
		RelaySink:          SinkRedis,
		SyncBatchMax:       0,
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, MinBatchMax, cfg.SyncBatchMax)
	assert.Equal(t, 1, cfg.RelayBatchSize)
}
