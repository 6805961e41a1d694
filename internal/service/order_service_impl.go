package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

// OrderServiceImpl implements OrderService for checkout and order administration.
type OrderServiceImpl struct {
	orderRepo      repository.OrderRepository
	userRepo       repository.UserRepository
	trigger        SyncTrigger
	transactionMgr repository.TransactionManager
}

// NewOrderServiceImpl creates a new OrderService implementation.
func NewOrderServiceImpl(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	trigger SyncTrigger,
	transactionMgr repository.TransactionManager,
) OrderService {
	return &OrderServiceImpl{
		orderRepo:      orderRepo,
		userRepo:       userRepo,
		trigger:        trigger,
		transactionMgr: transactionMgr,
	}
}

// CreateOrder places an order: number allocation, order row, items and the
// CREATE sync record all share one transaction.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, params *model.CreateOrderParams) (*model.Order, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var orderID int64

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		var userID *int64
		if params.UserUUID != nil {
			user, err := s.userRepo.GetByUUID(ctx, *params.UserUUID)
			if err != nil {
				return err
			}

			userID = &user.ID
		}

		var deliveryMethod *model.DeliveryMethod
		if params.DeliveryMethodCode != "" {
			dm, err := s.orderRepo.FindDeliveryMethod(ctx, params.DeliveryMethodCode)
			if err != nil {
				return err
			}

			deliveryMethod = dm
		}

		number, err := s.orderRepo.NextNumber(ctx)
		if err != nil {
			return err
		}

		total, totalPV := params.Totals()

		order := &model.Order{
			UUID:            uuid.New(),
			Number:          &number,
			UserID:          userID,
			Name:            params.Name,
			Email:           params.Email,
			Phone:           params.Phone,
			DeliveryMethod:  deliveryMethod,
			DeliveryCity:    params.DeliveryCity,
			DeliveryAddress: params.DeliveryAddress,
			DeliveryCost:    params.DeliveryCost,
			PaymentType:     params.PaymentType,
			Total:           total,
			TotalPV:         totalPV,
			Status:          model.OrderStatusNew,
			Comment:         params.Comment,
			CreatedAt:       time.Now().UTC(),
		}

		if err := s.orderRepo.Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, p := range params.Items {
			item := &model.OrderItem{
				OrderID:     order.ID,
				VariantID:   p.VariantID,
				ProductName: p.ProductName,
				Quantity:    p.Quantity,
				Price:       p.Price,
				PV:          p.PV,
			}

			if err := s.orderRepo.AddItem(ctx, item); err != nil {
				return fmt.Errorf("failed to add order item: %w", err)
			}
		}

		orderID = order.ID

		return s.trigger.OrderCreated(ctx, order.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.orderRepo.GetByID(ctx, orderID)
}

// UpdateOrder applies a partial update and records it.
func (s *OrderServiceImpl) UpdateOrder(
	ctx context.Context, id uuid.UUID, params *model.UpdateOrderParams,
) (*model.Order, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var updated *model.Order

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orderRepo.GetByUUID(ctx, id)
		if err != nil {
			return err
		}

		params.Apply(order)

		if err := s.orderRepo.Update(ctx, order); err != nil {
			return err
		}

		updated = order

		return s.trigger.OrderUpdated(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteOrder records the DELETE and then removes the order.
func (s *OrderServiceImpl) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orderRepo.GetByUUID(ctx, id)
		if err != nil {
			return err
		}

		if err := s.trigger.OrderDeleting(ctx, order); err != nil {
			return err
		}

		return s.orderRepo.Delete(ctx, order.ID)
	})
}

// GetOrder retrieves a fully loaded order.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.orderRepo.GetByUUID(ctx, id)
}

// IsNotFound reports whether err means the requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrOrderNotFound) ||
		errors.Is(err, model.ErrUserNotFound)
}
