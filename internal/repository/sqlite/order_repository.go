package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

const selectOrder = `
	SELECT o.id, o.uuid, o.number, o.user_id, u.uuid, o.name, o.email, o.phone,
	       dm.id, dm.code, dm.name, dm.delivery_type, dm.is_active, dm.sort_order,
	       o.delivery_city, o.delivery_address, o.delivery_cost, o.payment_type,
	       o.total, o.total_pv, o.status, o.comment, o.created_at
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id
	LEFT JOIN delivery_methods dm ON dm.id = o.delivery_method_id`

// OrderRepositoryImpl implements OrderRepository on SQLite.
type OrderRepositoryImpl struct {
	store *Store
}

// NewOrderRepositoryImpl creates a new OrderRepository implementation.
func NewOrderRepositoryImpl(store *Store) repository.OrderRepository {
	return &OrderRepositoryImpl{store: store}
}

// NextNumber bumps the single counter row. SQLite takes the write lock here and
// keeps it until the caller's transaction ends.
func (r *OrderRepositoryImpl) NextNumber(ctx context.Context) (int64, error) {
	var number int64

	err := r.store.conn(ctx).QueryRowContext(ctx, `
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

	err := r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT id, code, name, delivery_type, is_active, sort_order FROM delivery_methods WHERE code = ?`,
		code,
	).Scan(&dm.ID, &dm.Code, &dm.Name, &dm.DeliveryType, &dm.IsActive, &dm.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
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

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO orders (uuid, number, user_id, name, email, phone, delivery_method_id,
		                    delivery_city, delivery_address, delivery_cost, payment_type,
		                    total, total_pv, status, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		toMicros(order.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if order.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read order id: %w", err)
	}

	return nil
}

// AddItem inserts one order line and fills its ID.
func (r *OrderRepositoryImpl) AddItem(ctx context.Context, item *model.OrderItem) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO order_items (order_id, variant_id, product_name, quantity, price, pv)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.OrderID, item.VariantID, item.ProductName, item.Quantity, item.Price.String(), item.PV.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}

	if item.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read order item id: %w", err)
	}

	return nil
}

// Update persists the mutable fields of an order.
func (r *OrderRepositoryImpl) Update(ctx context.Context, order *model.Order) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE orders
		SET phone = ?, delivery_city = ?, delivery_address = ?, payment_type = ?, status = ?, comment = ?
		WHERE id = ?`,
		order.Phone,
		order.DeliveryCity,
		order.DeliveryAddress,
		string(order.PaymentType),
		string(order.Status),
		order.Comment,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return requireAffected(res, model.ErrOrderNotFound)
}

// Delete removes an order; its items go with it.
func (r *OrderRepositoryImpl) Delete(ctx context.Context, id int64) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	return requireAffected(res, model.ErrOrderNotFound)
}

// GetByID retrieves a fully loaded order by ID.
func (r *OrderRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE o.id = ?`, id)
}

// GetByUUID retrieves a fully loaded order by its external identifier.
func (r *OrderRepositoryImpl) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE o.uuid = ?`, id.String())
}

// ListByUUIDs retrieves the orders that exist among ids, in no particular order.
func (r *OrderRepositoryImpl) ListByUUIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, selectOrder+` WHERE o.uuid IN (`+inClause(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}

		orders = append(orders, order)
	}

	// The single connection must be released before items are queried.
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	rows.Close()

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *OrderRepositoryImpl) getOne(ctx context.Context, query string, arg any) (*model.Order, error) {
	order, err := scanOrder(r.store.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
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
	args := make([]any, 0, len(orders))

	for _, o := range orders {
		o.Items = []*model.OrderItem{}
		byID[o.ID] = o
		args = append(args, o.ID)
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT id, order_id, variant_id, product_name, quantity, price, pv
		FROM order_items
		WHERE order_id IN (`+inClause(len(args))+`)
		ORDER BY id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item        model.OrderItem
			productName sql.NullString
			price, pv   string
		)

		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &productName, &item.Quantity, &price, &pv); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		if productName.Valid {
			name := productName.String
			item.ProductName = &name
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

func scanOrder(row scanner) (*model.Order, error) {
	var (
		order          model.Order
		orderUUID      string
		number         sql.NullInt64
		userID         sql.NullInt64
		userUUID       sql.NullString
		dmID           sql.NullInt64
		dmCode, dmName sql.NullString
		dmType         sql.NullString
		dmActive       sql.NullBool
		dmSort         sql.NullInt64
		deliveryCost   sql.NullString
		paymentType    string
		total, totalPV string
		status         string
		createdAt      int64
	)

	err := row.Scan(
		&order.ID,
		&orderUUID,
		&number,
		&userID,
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
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if order.UUID, err = uuid.Parse(orderUUID); err != nil {
		return nil, fmt.Errorf("failed to parse order uuid: %w", err)
	}

	if number.Valid {
		n := number.Int64
		order.Number = &n
	}

	if userID.Valid {
		id := userID.Int64
		order.UserID = &id
	}

	if order.UserUUID, err = parseNullableUUID(userUUID); err != nil {
		return nil, err
	}

	if dmID.Valid {
		order.DeliveryMethod = &model.DeliveryMethod{
			ID:           dmID.Int64,
			Code:         dmCode.String,
			Name:         dmName.String,
			DeliveryType: dmType.String,
			IsActive:     dmActive.Bool,
			SortOrder:    int(dmSort.Int64),
		}
	}

	if deliveryCost.Valid {
		cost, err := parseDecimal(deliveryCost.String)
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
	order.CreatedAt = fromMicros(createdAt)

	return &order, nil
}
