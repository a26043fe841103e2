package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const changeRequestColumns = `id, order_id, user_id, status, new_dinner_type_id,
	new_serving_style, new_delivery_time, new_delivery_address,
	original_total_amount, recalculated_amount, change_fee_amount,
	new_total_amount, already_paid_amount, extra_charge_amount,
	expected_refund_amount, requires_additional_payment, requires_refund,
	reason, admin_comment, requested_at, approved_at, rejected_at, updated_at`

func scanChangeRequest(row interface{ Scan(...interface{}) error }) (ChangeRequest, error) {
	var cr ChangeRequest
	err := row.Scan(
		&cr.ID, &cr.OrderID, &cr.UserID, &cr.Status, &cr.NewDinnerTypeID,
		&cr.NewServingStyle, &cr.NewDeliveryTime, &cr.NewDeliveryAddress,
		&cr.OriginalTotalAmount, &cr.RecalculatedAmount, &cr.ChangeFeeAmount,
		&cr.NewTotalAmount, &cr.AlreadyPaidAmount, &cr.ExtraChargeAmount,
		&cr.ExpectedRefundAmount, &cr.RequiresAdditionalPayment, &cr.RequiresRefund,
		&cr.Reason, &cr.AdminComment, &cr.RequestedAt, &cr.ApprovedAt,
		&cr.RejectedAt, &cr.UpdatedAt,
	)
	return cr, err
}

func (q *Queries) collectChangeRequests(ctx context.Context, sql string, args ...interface{}) ([]ChangeRequest, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, cr)
	}
	return requests, rows.Err()
}

type CreateChangeRequestParams struct {
	OrderID                   uuid.UUID
	UserID                    uuid.UUID
	NewDinnerTypeID           uuid.UUID
	NewServingStyle           string
	NewDeliveryTime           time.Time
	NewDeliveryAddress        string
	OriginalTotalAmount       pgtype.Numeric
	RecalculatedAmount        pgtype.Numeric
	ChangeFeeAmount           pgtype.Numeric
	NewTotalAmount            pgtype.Numeric
	AlreadyPaidAmount         pgtype.Numeric
	ExtraChargeAmount         pgtype.Numeric
	ExpectedRefundAmount      pgtype.Numeric
	RequiresAdditionalPayment bool
	RequiresRefund            bool
	Reason                    string
}

// CreateChangeRequest inserts a REQUESTED change request. The partial
// unique index on active requests makes a concurrent second insert fail
// with a unique violation (23505), which the service maps to a conflict.
func (q *Queries) CreateChangeRequest(ctx context.Context, arg CreateChangeRequestParams) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO change_requests (order_id, user_id, new_dinner_type_id,
			new_serving_style, new_delivery_time, new_delivery_address,
			original_total_amount, recalculated_amount, change_fee_amount,
			new_total_amount, already_paid_amount, extra_charge_amount,
			expected_refund_amount, requires_additional_payment, requires_refund, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+changeRequestColumns,
		arg.OrderID, arg.UserID, arg.NewDinnerTypeID, arg.NewServingStyle,
		arg.NewDeliveryTime, arg.NewDeliveryAddress, arg.OriginalTotalAmount,
		arg.RecalculatedAmount, arg.ChangeFeeAmount, arg.NewTotalAmount,
		arg.AlreadyPaidAmount, arg.ExtraChargeAmount, arg.ExpectedRefundAmount,
		arg.RequiresAdditionalPayment, arg.RequiresRefund, arg.Reason,
	)
	return scanChangeRequest(row)
}

type CreateChangeRequestItemParams struct {
	ChangeRequestID uuid.UUID
	MenuItemID      uuid.UUID
	Quantity        int32
	UnitPrice       pgtype.Numeric
}

func (q *Queries) CreateChangeRequestItem(ctx context.Context, arg CreateChangeRequestItemParams) (ChangeRequestItem, error) {
	var it ChangeRequestItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO change_request_items (change_request_id, menu_item_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, change_request_id, menu_item_id, quantity, unit_price`,
		arg.ChangeRequestID, arg.MenuItemID, arg.Quantity, arg.UnitPrice,
	).Scan(&it.ID, &it.ChangeRequestID, &it.MenuItemID, &it.Quantity, &it.UnitPrice)
	return it, err
}

func (q *Queries) GetChangeRequest(ctx context.Context, id uuid.UUID) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+changeRequestColumns+` FROM change_requests WHERE id = $1`, id)
	return scanChangeRequest(row)
}

// GetActiveChangeRequestByOrder returns the order's active request, if
// any. Returns pgx.ErrNoRows when none exists.
func (q *Queries) GetActiveChangeRequestByOrder(ctx context.Context, orderID uuid.UUID) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+changeRequestColumns+` FROM change_requests
		WHERE order_id = $1 AND status IN ('REQUESTED', 'PAYMENT_FAILED', 'REFUND_FAILED')`,
		orderID)
	return scanChangeRequest(row)
}

func (q *Queries) ListChangeRequests(ctx context.Context) ([]ChangeRequest, error) {
	return q.collectChangeRequests(ctx, `
		SELECT `+changeRequestColumns+` FROM change_requests ORDER BY requested_at DESC`)
}

func (q *Queries) ListChangeRequestsByUser(ctx context.Context, userID uuid.UUID) ([]ChangeRequest, error) {
	return q.collectChangeRequests(ctx, `
		SELECT `+changeRequestColumns+` FROM change_requests
		WHERE user_id = $1 ORDER BY requested_at DESC`, userID)
}

func (q *Queries) ListChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) ([]ChangeRequestItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, change_request_id, menu_item_id, quantity, unit_price
		FROM change_request_items WHERE change_request_id = $1`, changeRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ChangeRequestItem
	for rows.Next() {
		var it ChangeRequestItem
		if err := rows.Scan(&it.ID, &it.ChangeRequestID, &it.MenuItemID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM change_request_items WHERE change_request_id = $1`, changeRequestID)
	return err
}

type UpdateChangeRequestParams struct {
	ID                        uuid.UUID
	NewDinnerTypeID           uuid.UUID
	NewServingStyle           string
	NewDeliveryTime           time.Time
	NewDeliveryAddress        string
	RecalculatedAmount        pgtype.Numeric
	ChangeFeeAmount           pgtype.Numeric
	NewTotalAmount            pgtype.Numeric
	ExtraChargeAmount         pgtype.Numeric
	ExpectedRefundAmount      pgtype.Numeric
	RequiresAdditionalPayment bool
	RequiresRefund            bool
	Reason                    string
}

// UpdateChangeRequest rewrites an active request's proposed fields and
// derived amounts in place. requested_at is preserved.
func (q *Queries) UpdateChangeRequest(ctx context.Context, arg UpdateChangeRequestParams) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE change_requests
		SET new_dinner_type_id = $2, new_serving_style = $3, new_delivery_time = $4,
			new_delivery_address = $5, recalculated_amount = $6, change_fee_amount = $7,
			new_total_amount = $8, extra_charge_amount = $9, expected_refund_amount = $10,
			requires_additional_payment = $11, requires_refund = $12, reason = $13,
			status = 'REQUESTED', updated_at = now()
		WHERE id = $1 AND status IN ('REQUESTED', 'PAYMENT_FAILED', 'REFUND_FAILED')
		RETURNING `+changeRequestColumns,
		arg.ID, arg.NewDinnerTypeID, arg.NewServingStyle, arg.NewDeliveryTime,
		arg.NewDeliveryAddress, arg.RecalculatedAmount, arg.ChangeFeeAmount,
		arg.NewTotalAmount, arg.ExtraChargeAmount, arg.ExpectedRefundAmount,
		arg.RequiresAdditionalPayment, arg.RequiresRefund, arg.Reason,
	)
	return scanChangeRequest(row)
}

func (q *Queries) ApproveChangeRequest(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE change_requests
		SET status = 'APPROVED', admin_comment = $2, approved_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+changeRequestColumns,
		id, adminComment,
	)
	return scanChangeRequest(row)
}

func (q *Queries) RejectChangeRequest(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE change_requests
		SET status = 'REJECTED', admin_comment = $2, rejected_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+changeRequestColumns,
		id, adminComment,
	)
	return scanChangeRequest(row)
}

// ParkChangeRequest moves a request into a settlement-failure state
// (PAYMENT_FAILED or REFUND_FAILED) with the admin's comment, leaving it
// active for a later re-approval.
func (q *Queries) ParkChangeRequest(ctx context.Context, id uuid.UUID, status string, adminComment pgtype.Text) (ChangeRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE change_requests
		SET status = $2, admin_comment = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+changeRequestColumns,
		id, status, adminComment,
	)
	return scanChangeRequest(row)
}
