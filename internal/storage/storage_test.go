package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
)

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver: config.DriverSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "storefront.db"),
	}

	repos, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer repos.Close()

	require.NoError(t, repos.Migrate(context.Background()))

	q, err := repos.Queue(model.SubjectUser)
	require.NoError(t, err)
	assert.Equal(t, model.SubjectUser, q.Subject())

	_, err = repos.Queue(model.Subject("cart"))
	assert.ErrorIs(t, err, model.ErrUnknownSubject)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{DatabaseDriver: "mysql"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
