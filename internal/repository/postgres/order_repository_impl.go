package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

const selectOrder = `
	SELECT o.id, o.uuid::text, o.number, o.user_id, u.uuid::text, o.name, o.email, o.phone,
	       dm.id, dm.code, dm.name, dm.delivery_type, dm.is_active, dm.sort_order,
	       o.delivery_city, o.delivery_address, o.delivery_cost::text, o.payment_type,
	       o.total::text, o.total_pv::text, o.status, o.comment, o.created_at
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id
	LEFT JOIN delivery_methods dm ON dm.id = o.delivery_method_id`

// OrderRepositoryImpl implements OrderRepository using PostgreSQL.
type OrderRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewOrderRepositoryImpl creates a new OrderRepository implementation.
func NewOrderRepositoryImpl(pool *pgxpool.Pool) repository.OrderRepository {
	return &OrderRepositoryImpl{pool: pool}
}

// NextNumber bumps the single counter row. The row lock taken by UPDATE is held
// until the caller's transaction ends, which serializes concurrent checkouts.
func (r *OrderRepositoryImpl) NextNumber(ctx context.Context) (int64, error) {
	var number int64

	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE order_number_counter SET last_value = last_value + 1 WHERE id = 1 RETURNING last_value`,
	).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}

	return number, nil
}

// FindDeliveryMethod looks a delivery method up by code.
func (r *OrderRepositoryImpl) FindDeliveryMethod(ctx context.Context, code string) (*model.DeliveryMethod, error) {
	var dm model.DeliveryMethod

	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, code, name, delivery_type, is_active, sort_order FROM delivery_methods WHERE code = $1`,
		code,
	).Scan(&dm.ID, &dm.Code, &dm.Name, &dm.DeliveryType, &dm.IsActive, &dm.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUnknownDeliveryMethod
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery method: %w", err)
	}

	return &dm, nil
}

// Create inserts the order row and fills its ID.
func (r *OrderRepositoryImpl) Create(ctx context.Context, order *model.Order) error {
	var deliveryMethodID *int64
	if order.DeliveryMethod != nil {
		deliveryMethodID = &order.DeliveryMethod.ID
	}

	var deliveryCost *string
	if order.DeliveryCost != nil {
		s := order.DeliveryCost.String()
		deliveryCost = &s
	}

	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO orders (uuid, number, user_id, name, email, phone, delivery_method_id,
		                    delivery_city, delivery_address, delivery_cost, payment_type,
		                    total, total_pv, status, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12::numeric, $13::numeric, $14, $15, $16)
		RETURNING id`,
		order.UUID.String(),
		order.Number,
		order.UserID,
		order.Name,
		order.Email,
		order.Phone,
		deliveryMethodID,
		order.DeliveryCity,
		order.DeliveryAddress,
		deliveryCost,
		string(order.PaymentType),
		order.Total.String(),
		order.TotalPV.String(),
		string(order.Status),
		order.Comment,
		order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// AddItem inserts one order line and fills its ID.
func (r *OrderRepositoryImpl) AddItem(ctx context.Context, item *model.OrderItem) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO order_items (order_id, variant_id, product_name, quantity, price, pv)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
		RETURNING id`,
		item.OrderID, item.VariantID, item.ProductName, item.Quantity, item.Price.String(), item.PV.String(),
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}

	return nil
}

// Update persists the mutable fields of an order.
func (r *OrderRepositoryImpl) Update(ctx context.Context, order *model.Order) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE orders
		SET phone = $2, delivery_city = $3, delivery_address = $4, payment_type = $5, status = $6, comment = $7
		WHERE id = $1`,
		order.ID,
		order.Phone,
		order.DeliveryCity,
		order.DeliveryAddress,
		string(order.PaymentType),
		string(order.Status),
		order.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}

// Delete removes an order; its items go with it.
func (r *OrderRepositoryImpl) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}

// GetByID retrieves a fully loaded order by ID.
func (r *OrderRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE o.id = $1`, id)
}

// GetByUUID retrieves a fully loaded order by its external identifier.
func (r *OrderRepositoryImpl) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE o.uuid = $1`, id.String())
}

// ListByUUIDs retrieves the orders that exist among ids, in no particular order.
func (r *OrderRepositoryImpl) ListByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := conn(ctx, r.pool).Query(ctx, selectOrder+` WHERE o.uuid = ANY($1::text[]::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *OrderRepositoryImpl) getOne(ctx context.Context, query string, arg any) (*model.Order, error) {
	order, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepositoryImpl) loadItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Order, len(orders))
	ids := make([]int64, 0, len(orders))

	for _, o := range orders {
		o.Items = []*model.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, order_id, variant_id, product_name, quantity, price::text, pv::text
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      model.OrderItem
			price, pv string
		)

		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.ProductName, &item.Quantity, &price, &pv); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		if item.Price, err = parseDecimal(price); err != nil {
			return err
		}
		if item.PV, err = parseDecimal(pv); err != nil {
			return err
		}

		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, &item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		order          model.Order
		orderUUID      string
		userUUID       *string
		dmID           *int64
		dmCode, dmName *string
		dmType         *string
		dmActive       *bool
		dmSort         *int
		deliveryCost   *string
		paymentType    string
		total, totalPV string
		status         string
	)

	err := row.Scan(
		&order.ID,
		&orderUUID,
		&order.Number,
		&order.UserID,
		&userUUID,
		&order.Name,
		&order.Email,
		&order.Phone,
		&dmID,
		&dmCode,
		&dmName,
		&dmType,
		&dmActive,
		&dmSort,
		&order.DeliveryCity,
		&order.DeliveryAddress,
		&deliveryCost,
		&paymentType,
		&total,
		&totalPV,
		&status,
		&order.Comment,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if order.UUID, err = uuid.Parse(orderUUID); err != nil {
		return nil, fmt.Errorf("failed to parse order uuid: %w", err)
	}

	if order.UserUUID, err = parseNullableUUID(userUUID); err != nil {
		return nil, err
	}

	if dmID != nil {
		order.DeliveryMethod = &model.DeliveryMethod{
			ID:           *dmID,
			Code:         deref(dmCode),
			Name:         deref(dmName),
			DeliveryType: deref(dmType),
			IsActive:     dmActive != nil && *dmActive,
		}
		if dmSort != nil {
			order.DeliveryMethod.SortOrder = *dmSort
		}
	}

	if deliveryCost != nil {
		cost, err := parseDecimal(*deliveryCost)
		if err != nil {
			return nil, err
		}

		order.DeliveryCost = &cost
	}

	if order.Total, err = parseDecimal(total); err != nil {
		return nil, err
	}
	if order.TotalPV, err = parseDecimal(totalPV); err != nil {
		return nil, err
	}

	order.PaymentType = model.PaymentType(paymentType)
	order.Status = model.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()

	return &order, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
