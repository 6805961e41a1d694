package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

const uniqueViolation = "23505"

const selectUser = `
	SELECT u.id, u.uuid::text, u.email, u.first_name, u.last_name, u.phone,
	       u.is_business_user, u.referred_by_id, r.uuid::text, u.is_active, u.date_joined
	FROM users u
	LEFT JOIN users r ON r.id = u.referred_by_id`

// UserRepositoryImpl implements UserRepository using PostgreSQL.
type UserRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewUserRepositoryImpl creates a new UserRepository implementation.
func NewUserRepositoryImpl(pool *pgxpool.Pool) repository.UserRepository {
	return &UserRepositoryImpl{pool: pool}
}

// Create creates a new user with a fresh v4 UUID.
func (r *UserRepositoryImpl) Create(
	ctx context.Context, params *model.CreateUserParams, referredByID *int64,
) (*model.User, error) {
	var id int64

	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (uuid, email, first_name, last_name, phone, is_business_user, referred_by_id, is_active, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		RETURNING id`,
		uuid.New().String(),
		params.Email,
		params.FirstName,
		params.LastName,
		params.Phone,
		params.IsBusinessUser,
		referredByID,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, model.ErrEmailTaken
		}

		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Update persists the mutable fields of a user.
func (r *UserRepositoryImpl) Update(ctx context.Context, user *model.User) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, phone = $4, is_business_user = $5, is_active = $6
		WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.Phone, user.IsBusinessUser, user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}

	return nil
}

// Delete removes a user; referrals and orders keep existing with a NULL reference.
func (r *UserRepositoryImpl) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.id = $1`, id)
}

// GetByUUID retrieves a user by its external identifier.
func (r *UserRepositoryImpl) GetByUUID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.uuid = $1`, id.String())
}

// GetByEmail retrieves a user by email.
func (r *UserRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.email = $1`, email)
}

// ListByUUIDs retrieves the users that exist among ids, in no particular order.
func (r *UserRepositoryImpl) ListByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := conn(ctx, r.pool).Query(ctx, selectUser+` WHERE u.uuid = ANY($1::text[]::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

func (r *UserRepositoryImpl) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}

	return user, err
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user         model.User
		userUUID     string
		referrerUUID *string
	)

	err := row.Scan(
		&user.ID,
		&userUUID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.IsBusinessUser,
		&user.ReferredByID,
		&referrerUUID,
		&user.IsActive,
		&user.DateJoined,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if user.UUID, err = uuid.Parse(userUUID); err != nil {
		return nil, fmt.Errorf("failed to parse user uuid: %w", err)
	}

	if user.ReferredByUUID, err = parseNullableUUID(referrerUUID); err != nil {
		return nil, err
	}

	user.DateJoined = user.DateJoined.UTC()

	return &user, nil
}

func parseNullableUUID(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}

	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse uuid %q: %w", *s, err)
	}

	return &id, nil
}

func nullableUUIDString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}

	s := id.String()

	return &s
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}
