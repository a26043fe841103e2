package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, dinner_type_id, serving_style, delivery_time,
	delivery_address, total_price, status, payment_status, admin_approval_status,
	cooking_employee_id, delivery_employee_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.DinnerTypeID, &o.ServingStyle, &o.DeliveryTime,
		&o.DeliveryAddress, &o.TotalPrice, &o.Status, &o.PaymentStatus,
		&o.AdminApprovalStatus, &o.CookingEmployeeID, &o.DeliveryEmployeeID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (q *Queries) collectOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	UserID          uuid.UUID
	DinnerTypeID    uuid.UUID
	ServingStyle    string
	DeliveryTime    time.Time
	DeliveryAddress string
	TotalPrice      pgtype.Numeric
	PaymentStatus   string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (user_id, dinner_type_id, serving_style, delivery_time,
			delivery_address, total_price, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+orderColumns,
		arg.UserID, arg.DinnerTypeID, arg.ServingStyle, arg.DeliveryTime,
		arg.DeliveryAddress, arg.TotalPrice, arg.PaymentStatus,
	)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_id, menu_item_id, quantity, unit_price`,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.UnitPrice,
	).Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &it.UnitPrice)
	return it, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	return q.collectOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (q *Queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return q.collectOrders(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (q *Queries) ListApprovedOrders(ctx context.Context) ([]Order, error) {
	return q.collectOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE upper(admin_approval_status) = 'APPROVED'
		ORDER BY delivery_time`)
}

func (q *Queries) ListPendingApprovalOrders(ctx context.Context) ([]Order, error) {
	return q.collectOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE admin_approval_status = 'PENDING' AND status <> 'cancelled'
		ORDER BY created_at`)
}

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, quantity, unit_price
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	Status         string
	ExpectedStatus string
}

// UpdateOrderStatus advances the lifecycle only when the order is still
// in the expected source state. Returns pgx.ErrNoRows when a concurrent
// transition won the race.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+orderColumns,
		arg.ID, arg.Status, arg.ExpectedStatus,
	)
	return scanOrder(row)
}

type CancelOrderParams struct {
	ID                  uuid.UUID
	AdminApprovalStatus string
}

// CancelOrder marks the order cancelled unless already delivered or
// cancelled. Returns pgx.ErrNoRows when the precondition fails.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'cancelled', admin_approval_status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled')
		RETURNING `+orderColumns,
		arg.ID, arg.AdminApprovalStatus,
	)
	return scanOrder(row)
}

func (q *Queries) UpdateOrderApprovalStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET admin_approval_status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, status,
	)
	return scanOrder(row)
}

type UpdateOrderAssigneesParams struct {
	ID                 uuid.UUID
	CookingEmployeeID  pgtype.UUID
	DeliveryEmployeeID pgtype.UUID
}

func (q *Queries) UpdateOrderAssignees(ctx context.Context, arg UpdateOrderAssigneesParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET cooking_employee_id = $2, delivery_employee_id = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.CookingEmployeeID, arg.DeliveryEmployeeID,
	)
	return scanOrder(row)
}

type ApplyChangeToOrderParams struct {
	ID              uuid.UUID
	DinnerTypeID    uuid.UUID
	ServingStyle    string
	DeliveryTime    time.Time
	DeliveryAddress string
	TotalPrice      pgtype.Numeric
}

// ApplyChangeToOrder rewrites the mutable reservation fields after an
// approved change and clears the courier assignment, since the delivery
// slot may have moved.
func (q *Queries) ApplyChangeToOrder(ctx context.Context, arg ApplyChangeToOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET dinner_type_id = $2, serving_style = $3, delivery_time = $4,
			delivery_address = $5, total_price = $6,
			delivery_employee_id = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.DinnerTypeID, arg.ServingStyle, arg.DeliveryTime,
		arg.DeliveryAddress, arg.TotalPrice,
	)
	return scanOrder(row)
}

func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (q *Queries) CountDeliveredOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE user_id = $1 AND status = 'delivered'`, userID,
	).Scan(&n)
	return n, err
}

type GetRecentDuplicateOrderParams struct {
	UserID          uuid.UUID
	DeliveryTime    time.Time
	DeliveryAddress string
	Since           time.Time
}

// GetRecentDuplicateOrder finds an order with identical delivery details
// created after the cutoff. Returns pgx.ErrNoRows when there is none.
func (q *Queries) GetRecentDuplicateOrder(ctx context.Context, arg GetRecentDuplicateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND delivery_time = $2 AND delivery_address = $3
			AND created_at >= $4 AND status <> 'cancelled'
		ORDER BY created_at DESC
		LIMIT 1`,
		arg.UserID, arg.DeliveryTime, arg.DeliveryAddress, arg.Since,
	)
	return scanOrder(row)
}
