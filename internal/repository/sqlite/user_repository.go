package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

const selectUser = `
	SELECT u.id, u.uuid, u.email, u.first_name, u.last_name, u.phone,
	       u.is_business_user, u.referred_by_id, r.uuid, u.is_active, u.date_joined
	FROM users u
	LEFT JOIN users r ON r.id = u.referred_by_id`

// UserRepositoryImpl implements UserRepository on SQLite.
type UserRepositoryImpl struct {
	store *Store
}

// NewUserRepositoryImpl creates a new UserRepository implementation.
func NewUserRepositoryImpl(store *Store) repository.UserRepository {
	return &UserRepositoryImpl{store: store}
}

// Create creates a new user with a fresh v4 UUID.
func (r *UserRepositoryImpl) Create(
	ctx context.Context, params *model.CreateUserParams, referredByID *int64,
) (*model.User, error) {
	res, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (uuid, email, first_name, last_name, phone, is_business_user, referred_by_id, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		uuid.New().String(),
		params.Email,
		params.FirstName,
		params.LastName,
		params.Phone,
		params.IsBusinessUser,
		referredByID,
		toMicros(time.Now()),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, model.ErrEmailTaken
		}

		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Update persists the mutable fields of a user.
func (r *UserRepositoryImpl) Update(ctx context.Context, user *model.User) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE users
		SET first_name = ?, last_name = ?, phone = ?, is_business_user = ?, is_active = ?
		WHERE id = ?`,
		user.FirstName, user.LastName, user.Phone, user.IsBusinessUser, user.IsActive, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return requireAffected(res, model.ErrUserNotFound)
}

// Delete removes a user; referrals and orders keep existing with a NULL reference.
func (r *UserRepositoryImpl) Delete(ctx context.Context, id int64) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return requireAffected(res, model.ErrUserNotFound)
}

// GetByID retrieves a user by ID.
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.id = ?`, id)
}

// GetByUUID retrieves a user by its external identifier.
func (r *UserRepositoryImpl) GetByUUID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.uuid = ?`, id.String())
}

// GetByEmail retrieves a user by email.
func (r *UserRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.email = ?`, email)
}

// ListByUUIDs retrieves the users that exist among ids, in no particular order.
func (r *UserRepositoryImpl) ListByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, selectUser+` WHERE u.uuid IN (`+inClause(len(ids))+`)`, args...)
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
	user, err := scanUser(r.store.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}

	return user, err
}

func scanUser(row scanner) (*model.User, error) {
	var (
		user         model.User
		userUUID     string
		referredByID sql.NullInt64
		referrerUUID sql.NullString
		dateJoined   int64
	)

	err := row.Scan(
		&user.ID,
		&userUUID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.IsBusinessUser,
		&referredByID,
		&referrerUUID,
		&user.IsActive,
		&dateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if user.UUID, err = uuid.Parse(userUUID); err != nil {
		return nil, fmt.Errorf("failed to parse user uuid: %w", err)
	}

	if referredByID.Valid {
		id := referredByID.Int64
		user.ReferredByID = &id
	}

	if user.ReferredByUUID, err = parseNullableUUID(referrerUUID); err != nil {
		return nil, err
	}

	user.DateJoined = fromMicros(dateJoined)

	return &user, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if n == 0 {
		return notFound
	}

	return nil
}
