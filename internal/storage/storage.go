// Package storage selects the database backend and wires its repositories.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
	"github.com/jnst/storefront-sync/internal/repository/postgres"
	"github.com/jnst/storefront-sync/internal/repository/sqlite"
)

// Repositories is the set of repositories backed by one database.
type Repositories struct {
	Users      repository.UserRepository
	Orders     repository.OrderRepository
	OrderQueue repository.SyncQueueRepository
	UserQueue  repository.SyncQueueRepository
	Tx         repository.TransactionManager

	migrate func(ctx context.Context) error
	close   func()
}

// Queue returns the sync queue of a subject.
func (r *Repositories) Queue(subject model.Subject) (repository.SyncQueueRepository, error) {
	switch subject {
	case model.SubjectOrder:
		return r.OrderQueue, nil
	case model.SubjectUser:
		return r.UserQueue, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownSubject, subject)
	}
}

// Migrate applies the schema of the backend.
func (r *Repositories) Migrate(ctx context.Context) error {
	return r.migrate(ctx)
}

// Close releases the database connections.
func (r *Repositories) Close() {
	r.close()
}

// Open connects to the database selected by cfg.DatabaseDriver.
// SQLite databases get their schema applied on open; Postgres needs Migrate.
func Open(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}

		return NewPostgres(pool), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return NewSQLite(store), nil
	default:
		return nil, fmt.Errorf("%w: DATABASE_DRIVER=%q", config.ErrInvalidConfig, cfg.DatabaseDriver)
	}
}

// NewPostgres wires the repositories on a pgx pool.
func NewPostgres(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:      postgres.NewUserRepositoryImpl(pool),
		Orders:     postgres.NewOrderRepositoryImpl(pool),
		OrderQueue: postgres.NewSyncQueueRepositoryImpl(pool, model.SubjectOrder),
		UserQueue:  postgres.NewSyncQueueRepositoryImpl(pool, model.SubjectUser),
		Tx:         postgres.NewTransactionManagerImpl(pool),
		migrate: func(ctx context.Context) error {
			return postgres.Migrate(ctx, pool)
		},
		close: pool.Close,
	}
}

// NewSQLite wires the repositories on a SQLite store.
func NewSQLite(store *sqlite.Store) *Repositories {
	return &Repositories{
		Users:      sqlite.NewUserRepositoryImpl(store),
		Orders:     sqlite.NewOrderRepositoryImpl(store),
		OrderQueue: sqlite.NewSyncQueueRepositoryImpl(store, model.SubjectOrder),
		UserQueue:  sqlite.NewSyncQueueRepositoryImpl(store, model.SubjectUser),
		Tx:         sqlite.NewTransactionManagerImpl(store),
		migrate: func(context.Context) error {
			return nil
		},
		close: func() {
			_ = store.Close()
		},
	}
}
