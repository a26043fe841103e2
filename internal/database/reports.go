package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetDailySalesParams struct {
	From time.Time
	To   time.Time
}

type GetDailySalesRow struct {
	SaleDate     pgtype.Date
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

// GetDailySales totals non-cancelled orders by delivery date. The range
// is [From, To).
func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT delivery_time::date AS sale_date,
			count(*) AS order_count,
			COALESCE(sum(total_price), 0) AS total_revenue
		FROM orders
		WHERE delivery_time >= $1 AND delivery_time < $2 AND status <> 'cancelled'
		GROUP BY sale_date
		ORDER BY sale_date`,
		arg.From, arg.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetDinnerTypeSalesParams struct {
	From  time.Time
	To    time.Time
	Limit int32
}

type GetDinnerTypeSalesRow struct {
	DinnerTypeID uuid.UUID
	DinnerName   string
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

// GetDinnerTypeSales ranks dinner types by order count over the range.
func (q *Queries) GetDinnerTypeSales(ctx context.Context, arg GetDinnerTypeSalesParams) ([]GetDinnerTypeSalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT o.dinner_type_id, dt.name,
			count(*) AS order_count,
			COALESCE(sum(o.total_price), 0) AS total_revenue
		FROM orders o
		JOIN dinner_types dt ON dt.id = o.dinner_type_id
		WHERE o.delivery_time >= $1 AND o.delivery_time < $2 AND o.status <> 'cancelled'
		GROUP BY o.dinner_type_id, dt.name
		ORDER BY order_count DESC, total_revenue DESC
		LIMIT $3`,
		arg.From, arg.To, arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetDinnerTypeSalesRow
	for rows.Next() {
		var r GetDinnerTypeSalesRow
		if err := rows.Scan(&r.DinnerTypeID, &r.DinnerName, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetDeliverySlotSalesParams struct {
	From time.Time
	To   time.Time
}

type GetDeliverySlotSalesRow struct {
	Hour       int32
	OrderCount int64
}

// GetDeliverySlotSales counts orders by delivery hour, for spotting the
// busy evening slots.
func (q *Queries) GetDeliverySlotSales(ctx context.Context, arg GetDeliverySlotSalesParams) ([]GetDeliverySlotSalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT extract(hour FROM delivery_time)::int AS slot_hour,
			count(*) AS order_count
		FROM orders
		WHERE delivery_time >= $1 AND delivery_time < $2 AND status <> 'cancelled'
		GROUP BY slot_hour
		ORDER BY slot_hour`,
		arg.From, arg.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetDeliverySlotSalesRow
	for rows.Next() {
		var r GetDeliverySlotSalesRow
		if err := rows.Scan(&r.Hour, &r.OrderCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
