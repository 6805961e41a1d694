package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

// UserServiceImpl implements UserService for user management business logic.
type UserServiceImpl struct {
	userRepo       repository.UserRepository
	trigger        SyncTrigger
	transactionMgr repository.TransactionManager
}

// NewUserServiceImpl creates a new UserService implementation.
func NewUserServiceImpl(
	userRepo repository.UserRepository,
	trigger SyncTrigger,
	transactionMgr repository.TransactionManager,
) UserService {
	return &UserServiceImpl{
		userRepo:       userRepo,
		trigger:        trigger,
		transactionMgr: transactionMgr,
	}
}

// CreateUser creates a new user and records the CREATE in the same transaction.
func (s *UserServiceImpl) CreateUser(ctx context.Context, params *model.CreateUserParams) (*model.User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var createdUser *model.User

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		var referredByID *int64
		if params.ReferredByUUID != nil {
			referrer, err := s.userRepo.GetByUUID(ctx, *params.ReferredByUUID)
			if errors.Is(err, model.ErrUserNotFound) {
				return model.ErrReferrerNotFound
			}
			if err != nil {
				return err
			}

			referredByID = &referrer.ID
		}

		user, err := s.userRepo.Create(ctx, params, referredByID)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		createdUser = user

		return s.trigger.UserCreated(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return createdUser, nil
}

// UpdateUser applies a partial update and records it.
func (s *UserServiceImpl) UpdateUser(
	ctx context.Context, id uuid.UUID, params *model.UpdateUserParams,
) (*model.User, error) {
	var updated *model.User

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByUUID(ctx, id)
		if err != nil {
			return err
		}

		params.Apply(user)

		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}

		updated = user

		return s.trigger.UserUpdated(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteUser records the DELETE and then removes the user.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByUUID(ctx, id)
		if err != nil {
			return err
		}

		if err := s.trigger.UserDeleting(ctx, user); err != nil {
			return err
		}

		return s.userRepo.Delete(ctx, user.ID)
	})
}

// GetUser retrieves a user by UUID.
func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.userRepo.GetByUUID(ctx, id)
}
