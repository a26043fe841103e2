package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const inventoryColumns = `menu_item_id, capacity_per_window, safety_stock,
	ordered_quantity, last_restocked_at, notes, updated_at`

func scanInventory(row interface{ Scan(...interface{}) error }) (MenuInventory, error) {
	var inv MenuInventory
	err := row.Scan(
		&inv.MenuItemID, &inv.CapacityPerWindow, &inv.SafetyStock,
		&inv.OrderedQuantity, &inv.LastRestockedAt, &inv.Notes, &inv.UpdatedAt,
	)
	return inv, err
}

// EnsureMenuInventory returns the inventory record for the item, creating
// it with the default capacity on first touch.
func (q *Queries) EnsureMenuInventory(ctx context.Context, menuItemID uuid.UUID, defaultCapacity int32) (MenuInventory, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_inventory (menu_item_id, capacity_per_window)
		VALUES ($1, $2)
		ON CONFLICT (menu_item_id) DO UPDATE SET menu_item_id = EXCLUDED.menu_item_id
		RETURNING `+inventoryColumns,
		menuItemID, defaultCapacity,
	)
	return scanInventory(row)
}

func (q *Queries) GetMenuInventory(ctx context.Context, menuItemID uuid.UUID) (MenuInventory, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+inventoryColumns+` FROM menu_inventory WHERE menu_item_id = $1`, menuItemID)
	return scanInventory(row)
}

// MenuInventoryWithReserved is an inventory record joined with the sum of
// unconsumed reservations inside the requested window.
type MenuInventoryWithReserved struct {
	MenuInventory
	WeeklyReserved int64
}

type ListMenuInventoryParams struct {
	WindowStart time.Time
	WindowEnd   time.Time
}

func (q *Queries) ListMenuInventory(ctx context.Context, arg ListMenuInventoryParams) ([]MenuInventoryWithReserved, error) {
	rows, err := q.db.Query(ctx, `
		SELECT mi.menu_item_id, mi.capacity_per_window, mi.safety_stock,
			mi.ordered_quantity, mi.last_restocked_at, mi.notes, mi.updated_at,
			COALESCE(SUM(r.quantity) FILTER (WHERE NOT r.consumed
				AND r.window_start >= $1 AND r.window_end <= $2), 0) AS weekly_reserved
		FROM menu_inventory mi
		LEFT JOIN inventory_reservations r ON r.menu_item_id = mi.menu_item_id
		GROUP BY mi.menu_item_id
		ORDER BY mi.menu_item_id`,
		arg.WindowStart, arg.WindowEnd,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MenuInventoryWithReserved
	for rows.Next() {
		var inv MenuInventoryWithReserved
		if err := rows.Scan(
			&inv.MenuItemID, &inv.CapacityPerWindow, &inv.SafetyStock,
			&inv.OrderedQuantity, &inv.LastRestockedAt, &inv.Notes, &inv.UpdatedAt,
			&inv.WeeklyReserved,
		); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

type SumReservedInWindowParams struct {
	MenuItemID  uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
	// ExcludeOrderID, when set, omits that order's own reservations
	// (used when validating a change against the same slot).
	ExcludeOrderID pgtype.UUID
}

func (q *Queries) SumReservedInWindow(ctx context.Context, arg SumReservedInWindowParams) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM inventory_reservations
		WHERE menu_item_id = $1 AND NOT consumed
			AND window_start >= $2 AND window_end <= $3
			AND ($4::uuid IS NULL OR order_id <> $4)`,
		arg.MenuItemID, arg.WindowStart, arg.WindowEnd, arg.ExcludeOrderID,
	).Scan(&sum)
	return sum, err
}

type CreateReservationParams struct {
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	Quantity     int32
	DeliveryTime time.Time
	WindowStart  time.Time
	WindowEnd    time.Time
	ExpiresAt    pgtype.Timestamptz
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (InventoryReservation, error) {
	var r InventoryReservation
	err := q.db.QueryRow(ctx, `
		INSERT INTO inventory_reservations (order_id, menu_item_id, quantity,
			delivery_time, window_start, window_end, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, order_id, menu_item_id, quantity, delivery_time,
			window_start, window_end, consumed, expires_at, created_at`,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.DeliveryTime,
		arg.WindowStart, arg.WindowEnd, arg.ExpiresAt,
	).Scan(
		&r.ID, &r.OrderID, &r.MenuItemID, &r.Quantity, &r.DeliveryTime,
		&r.WindowStart, &r.WindowEnd, &r.Consumed, &r.ExpiresAt, &r.CreatedAt,
	)
	return r, err
}

func (q *Queries) ListReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]InventoryReservation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, quantity, delivery_time,
			window_start, window_end, consumed, expires_at, created_at
		FROM inventory_reservations WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []InventoryReservation
	for rows.Next() {
		var r InventoryReservation
		if err := rows.Scan(
			&r.ID, &r.OrderID, &r.MenuItemID, &r.Quantity, &r.DeliveryTime,
			&r.WindowStart, &r.WindowEnd, &r.Consumed, &r.ExpiresAt, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// DeleteUnconsumedReservations releases the order's reservations that
// have not been cooked against yet.
func (q *Queries) DeleteUnconsumedReservations(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM inventory_reservations WHERE order_id = $1 AND NOT consumed`, orderID)
	return err
}

// MarkReservationsConsumed flips the order's unconsumed reservations to
// consumed and returns them so the caller can debit capacity.
func (q *Queries) MarkReservationsConsumed(ctx context.Context, orderID uuid.UUID) ([]InventoryReservation, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE inventory_reservations SET consumed = true
		WHERE order_id = $1 AND NOT consumed
		RETURNING id, order_id, menu_item_id, quantity, delivery_time,
			window_start, window_end, consumed, expires_at, created_at`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []InventoryReservation
	for rows.Next() {
		var r InventoryReservation
		if err := rows.Scan(
			&r.ID, &r.OrderID, &r.MenuItemID, &r.Quantity, &r.DeliveryTime,
			&r.WindowStart, &r.WindowEnd, &r.Consumed, &r.ExpiresAt, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type DecrementCapacityParams struct {
	MenuItemID uuid.UUID
	Quantity   int32
}

// DecrementCapacity debits consumed stock, never going below zero.
func (q *Queries) DecrementCapacity(ctx context.Context, arg DecrementCapacityParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE menu_inventory
		SET capacity_per_window = GREATEST(capacity_per_window - $2, 0), updated_at = now()
		WHERE menu_item_id = $1`,
		arg.MenuItemID, arg.Quantity,
	)
	return err
}

type RestockInventoryParams struct {
	MenuItemID uuid.UUID
	Quantity   int32
	Notes      pgtype.Text
}

func (q *Queries) RestockInventory(ctx context.Context, arg RestockInventoryParams) (MenuInventory, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_inventory
		SET capacity_per_window = capacity_per_window + $2,
			last_restocked_at = now(), notes = COALESCE($3, notes), updated_at = now()
		WHERE menu_item_id = $1
		RETURNING `+inventoryColumns,
		arg.MenuItemID, arg.Quantity, arg.Notes,
	)
	return scanInventory(row)
}

func (q *Queries) SetOrderedQuantity(ctx context.Context, menuItemID uuid.UUID, quantity int32) (MenuInventory, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_inventory SET ordered_quantity = $2, updated_at = now()
		WHERE menu_item_id = $1
		RETURNING `+inventoryColumns,
		menuItemID, quantity,
	)
	return scanInventory(row)
}

// ReceiveOrderedInventory folds the on-order quantity into capacity.
// Returns pgx.ErrNoRows when nothing is on order.
func (q *Queries) ReceiveOrderedInventory(ctx context.Context, menuItemID uuid.UUID) (MenuInventory, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_inventory
		SET capacity_per_window = capacity_per_window + ordered_quantity,
			ordered_quantity = 0, last_restocked_at = now(), updated_at = now()
		WHERE menu_item_id = $1 AND ordered_quantity > 0
		RETURNING `+inventoryColumns,
		menuItemID,
	)
	return scanInventory(row)
}
