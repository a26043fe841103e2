package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/policy"
	"github.com/shopspring/decimal"
)

// minReasonLength is the minimum trimmed length of a change reason,
// counted in characters rather than bytes.
const minReasonLength = 5

// Errors returned by the change-request service.
var (
	ErrChangeWindowClosed        = errors.New("배송 1일 전부터는 예약을 변경할 수 없습니다")
	ErrReasonTooShort            = errors.New("change reason must be at least 5 characters")
	ErrOrderNotChangeable        = errors.New("order can no longer be changed")
	ErrActiveChangeRequestExists = errors.New("an active change request already exists for this order")
	ErrChangeRequestNotFound     = errors.New("change request not found")
	ErrChangeRequestNotActive    = errors.New("change request is no longer active")
	ErrNotChangeRequestOwner     = errors.New("change request belongs to another customer")
)

// ChangeRequestStore defines the DB methods needed by the workflow.
// Satisfied by *database.Queries (and its WithTx variant).
type ChangeRequestStore interface {
	InventoryStore

	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetDinnerType(ctx context.Context, id uuid.UUID) (database.DinnerType, error)
	GetServingStyle(ctx context.Context, name string) (database.ServingStyle, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListDinnerMenuItems(ctx context.Context, dinnerTypeID uuid.UUID) ([]database.DinnerMenuItem, error)
	CreateChangeRequest(ctx context.Context, arg database.CreateChangeRequestParams) (database.ChangeRequest, error)
	CreateChangeRequestItem(ctx context.Context, arg database.CreateChangeRequestItemParams) (database.ChangeRequestItem, error)
	GetChangeRequest(ctx context.Context, id uuid.UUID) (database.ChangeRequest, error)
	ListChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) ([]database.ChangeRequestItem, error)
	DeleteChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) error
	UpdateChangeRequest(ctx context.Context, arg database.UpdateChangeRequestParams) (database.ChangeRequest, error)
	ApproveChangeRequest(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (database.ChangeRequest, error)
	RejectChangeRequest(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (database.ChangeRequest, error)
	ParkChangeRequest(ctx context.Context, id uuid.UUID, status string, adminComment pgtype.Text) (database.ChangeRequest, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ApplyChangeToOrder(ctx context.Context, arg database.ApplyChangeToOrderParams) (database.Order, error)
	CancelScheduleByOrder(ctx context.Context, orderID uuid.UUID) error
}

// NewChangeRequestStore creates a ChangeRequestStore from a DBTX.
type NewChangeRequestStore func(db database.DBTX) ChangeRequestStore

// ChangeRequestInput is the proposed mutation of an order.
type ChangeRequestInput struct {
	OrderID         uuid.UUID
	UserID          uuid.UUID
	DinnerTypeID    uuid.UUID
	ServingStyle    string
	DeliveryTime    time.Time
	DeliveryAddress string
	Items           []ItemQuantity
	Reason          string
}

// ChangeRequestResult is a change request with its proposed items.
type ChangeRequestResult struct {
	Request database.ChangeRequest
	Items   []database.ChangeRequestItem
}

// ChangeRequestService runs the reservation-change workflow.
type ChangeRequestService struct {
	pool      TxBeginner
	newStore  NewChangeRequestStore
	inventory *InventoryService
	gateway   PaymentGateway
	now       func() time.Time
}

// NewChangeRequestService creates a new ChangeRequestService.
func NewChangeRequestService(pool TxBeginner, newStore NewChangeRequestStore, inventory *InventoryService, gateway PaymentGateway) *ChangeRequestService {
	return &ChangeRequestService{
		pool:      pool,
		newStore:  newStore,
		inventory: inventory,
		gateway:   gateway,
		now:       time.Now,
	}
}

// isActiveRequestConflict checks for the unique violation raised by the
// partial index allowing one active change request per order.
func isActiveRequestConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "idx_change_requests_one_active_per_order"
	}
	return false
}

// validateInput checks the fields shared by create and edit.
func (s *ChangeRequestService) validateInput(input ChangeRequestInput) error {
	if utf8.RuneCountInString(strings.TrimSpace(input.Reason)) < minReasonLength {
		return ErrReasonTooShort
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return ErrDeliveryAddressMissing
	}
	if input.DeliveryTime.IsZero() {
		return ErrDeliveryTimeMissing
	}
	if !enum.IsValidServingStyle(input.ServingStyle) {
		return ErrInvalidServingStyle
	}
	if len(input.Items) == 0 {
		return ErrEmptyItems
	}
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// quoteInput prices the proposed selection and derives the settlement
// quote against what the customer paid.
func (s *ChangeRequestService) quoteInput(ctx context.Context, store ChangeRequestStore, input ChangeRequestInput, order database.Order) (policy.ChangeQuote, map[uuid.UUID]decimal.Decimal, error) {
	dinner, err := store.GetDinnerType(ctx, input.DinnerTypeID)
	if err != nil {
		if isNoRows(err) {
			return policy.ChangeQuote{}, nil, ErrDinnerNotFound
		}
		return policy.ChangeQuote{}, nil, fmt.Errorf("get dinner: %w", err)
	}
	if strings.Contains(dinner.NameEn, "Champagne") && input.ServingStyle == enum.ServingStyleSimple {
		return policy.ChangeQuote{}, nil, ErrStyleNotAllowed
	}
	style, err := store.GetServingStyle(ctx, input.ServingStyle)
	if err != nil {
		if isNoRows(err) {
			return policy.ChangeQuote{}, nil, ErrInvalidServingStyle
		}
		return policy.ChangeQuote{}, nil, fmt.Errorf("get serving style: %w", err)
	}

	recalculated, unitPrices, err := priceSelection(ctx, store, dinner, style, MergeQuantities(input.Items))
	if err != nil {
		return policy.ChangeQuote{}, nil, err
	}

	window := policy.GetChangeWindow(order.DeliveryTime, s.now())
	quote := policy.NewChangeQuote(numericToDecimal(order.TotalPrice), recalculated, window.Fee)
	return quote, unitPrices, nil
}

// Create opens a change request on an approved, still-changeable order.
// The one-active-request invariant is enforced by the database: a racing
// second create loses with a conflict, not a second row.
func (s *ChangeRequestService) Create(ctx context.Context, input ChangeRequestInput) (*ChangeRequestResult, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, input.OrderID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != input.UserID {
		return nil, ErrNotOrderOwner
	}
	if !policy.IsApproved(order.AdminApprovalStatus) {
		return nil, ErrOrderNotApproved
	}
	if order.Status == enum.OrderStatusCancelled || order.Status == enum.OrderStatusDelivered {
		return nil, ErrOrderNotChangeable
	}
	window := policy.GetChangeWindow(order.DeliveryTime, s.now())
	if !window.Allowed {
		return nil, ErrChangeWindowClosed
	}

	quote, prices, err := s.quoteInput(ctx, store, input, order)
	if err != nil {
		return nil, err
	}

	cr, err := store.CreateChangeRequest(ctx, database.CreateChangeRequestParams{
		OrderID:                   input.OrderID,
		UserID:                    input.UserID,
		NewDinnerTypeID:           input.DinnerTypeID,
		NewServingStyle:           input.ServingStyle,
		NewDeliveryTime:           input.DeliveryTime,
		NewDeliveryAddress:        input.DeliveryAddress,
		OriginalTotalAmount:       decimalToNumeric(quote.OriginalPaidAmount),
		RecalculatedAmount:        decimalToNumeric(quote.RecalculatedAmount),
		ChangeFeeAmount:           decimalToNumeric(quote.ChangeFeeAmount),
		NewTotalAmount:            decimalToNumeric(quote.NewTotalAmount),
		AlreadyPaidAmount:         decimalToNumeric(quote.OriginalPaidAmount),
		ExtraChargeAmount:         decimalToNumeric(quote.ExtraChargeAmount),
		ExpectedRefundAmount:      decimalToNumeric(quote.ExpectedRefundAmount),
		RequiresAdditionalPayment: quote.RequiresAdditionalPayment,
		RequiresRefund:            quote.RequiresRefund,
		Reason:                    strings.TrimSpace(input.Reason),
	})
	if err != nil {
		if isActiveRequestConflict(err) {
			return nil, ErrActiveChangeRequestExists
		}
		return nil, fmt.Errorf("create change request: %w", err)
	}

	items, err := s.insertItems(ctx, store, cr.ID, input.Items, prices)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ChangeRequestResult{Request: cr, Items: items}, nil
}

// Edit rewrites an active request in place, recomputing every derived
// amount from scratch. requested_at is preserved.
func (s *ChangeRequestService) Edit(ctx context.Context, id uuid.UUID, input ChangeRequestInput) (*ChangeRequestResult, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cr, err := store.GetChangeRequest(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrChangeRequestNotFound
		}
		return nil, fmt.Errorf("get change request: %w", err)
	}
	if cr.UserID != input.UserID {
		return nil, ErrNotChangeRequestOwner
	}
	if !enum.IsActiveChangeRequestStatus(cr.Status) {
		return nil, ErrChangeRequestNotActive
	}

	order, err := store.GetOrder(ctx, cr.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	window := policy.GetChangeWindow(order.DeliveryTime, s.now())
	if !window.Allowed {
		return nil, ErrChangeWindowClosed
	}

	quote, prices, err := s.quoteInput(ctx, store, input, order)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateChangeRequest(ctx, database.UpdateChangeRequestParams{
		ID:                        id,
		NewDinnerTypeID:           input.DinnerTypeID,
		NewServingStyle:           input.ServingStyle,
		NewDeliveryTime:           input.DeliveryTime,
		NewDeliveryAddress:        input.DeliveryAddress,
		RecalculatedAmount:        decimalToNumeric(quote.RecalculatedAmount),
		ChangeFeeAmount:           decimalToNumeric(quote.ChangeFeeAmount),
		NewTotalAmount:            decimalToNumeric(quote.NewTotalAmount),
		ExtraChargeAmount:         decimalToNumeric(quote.ExtraChargeAmount),
		ExpectedRefundAmount:      decimalToNumeric(quote.ExpectedRefundAmount),
		RequiresAdditionalPayment: quote.RequiresAdditionalPayment,
		RequiresRefund:            quote.RequiresRefund,
		Reason:                    strings.TrimSpace(input.Reason),
	})
	if err != nil {
		if isNoRows(err) {
			return nil, ErrChangeRequestNotActive
		}
		return nil, fmt.Errorf("update change request: %w", err)
	}

	if err := store.DeleteChangeRequestItems(ctx, id); err != nil {
		return nil, fmt.Errorf("delete change request items: %w", err)
	}
	items, err := s.insertItems(ctx, store, id, input.Items, prices)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ChangeRequestResult{Request: updated, Items: items}, nil
}

// Approve settles and applies a change request. The pipeline is:
// re-validate inventory, settle the payment delta, then rewrite the
// order's reservations, items, and fields. A settlement failure parks
// the request (PAYMENT_FAILED / REFUND_FAILED) with the order untouched;
// the request stays active for a later re-approval.
func (s *ChangeRequestService) Approve(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cr, err := store.GetChangeRequest(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return database.ChangeRequest{}, ErrChangeRequestNotFound
		}
		return database.ChangeRequest{}, fmt.Errorf("get change request: %w", err)
	}
	if !enum.IsActiveChangeRequestStatus(cr.Status) {
		return database.ChangeRequest{}, ErrChangeRequestNotActive
	}

	order, err := store.GetOrder(ctx, cr.OrderID)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("get order: %w", err)
	}
	user, err := store.GetUserByID(ctx, cr.UserID)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("get user: %w", err)
	}

	crItems, err := store.ListChangeRequestItems(ctx, id)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("list change request items: %w", err)
	}
	newItems := make([]ItemQuantity, 0, len(crItems))
	for _, it := range crItems {
		newItems = append(newItems, ItemQuantity{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}

	// The order's own reservations are excluded: the change replaces
	// them rather than competing with them.
	exclude := pgtype.UUID{Bytes: order.ID, Valid: true}
	if err := s.inventory.ValidateCapacity(ctx, store, newItems, cr.NewDeliveryTime, exclude); err != nil {
		return database.ChangeRequest{}, err
	}

	comment := textOrNull(adminComment)

	// Settle the delta before touching the order. Failures park the
	// request and commit only that, leaving the order exactly as it was.
	if cr.RequiresAdditionalPayment {
		if err := s.gateway.Charge(ctx, user, numericToDecimal(cr.ExtraChargeAmount)); err != nil {
			return s.park(ctx, tx, store, id, enum.ChangeRequestStatusPaymentFailed, comment)
		}
	} else if cr.RequiresRefund {
		if err := s.gateway.Refund(ctx, user, numericToDecimal(cr.ExpectedRefundAmount)); err != nil {
			return s.park(ctx, tx, store, id, enum.ChangeRequestStatusRefundFailed, comment)
		}
	}

	if err := s.inventory.ReleaseForOrder(ctx, store, order.ID); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("release reservations: %w", err)
	}
	if err := s.inventory.CommitReservations(ctx, store, order.ID, newItems, cr.NewDeliveryTime, pgtype.UUID{}); err != nil {
		return database.ChangeRequest{}, err
	}

	if err := store.DeleteOrderItems(ctx, order.ID); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("delete order items: %w", err)
	}
	for _, it := range crItems {
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		}); err != nil {
			return database.ChangeRequest{}, fmt.Errorf("create order item: %w", err)
		}
	}

	if _, err := store.ApplyChangeToOrder(ctx, database.ApplyChangeToOrderParams{
		ID:              order.ID,
		DinnerTypeID:    cr.NewDinnerTypeID,
		ServingStyle:    cr.NewServingStyle,
		DeliveryTime:    cr.NewDeliveryTime,
		DeliveryAddress: cr.NewDeliveryAddress,
		TotalPrice:      cr.NewTotalAmount,
	}); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("apply change: %w", err)
	}
	if err := store.CancelScheduleByOrder(ctx, order.ID); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("cancel schedule: %w", err)
	}

	approved, err := store.ApproveChangeRequest(ctx, id, comment)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("approve change request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("commit tx: %w", err)
	}
	return approved, nil
}

// park records a settlement failure and commits only the status change.
func (s *ChangeRequestService) park(ctx context.Context, tx pgx.Tx, store ChangeRequestStore, id uuid.UUID, status string, comment pgtype.Text) (database.ChangeRequest, error) {
	parked, err := store.ParkChangeRequest(ctx, id, status, comment)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("park change request: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("commit tx: %w", err)
	}
	return parked, nil
}

// Reject closes the request with the admin's comment. The order is
// untouched.
func (s *ChangeRequestService) Reject(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cr, err := store.GetChangeRequest(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return database.ChangeRequest{}, ErrChangeRequestNotFound
		}
		return database.ChangeRequest{}, fmt.Errorf("get change request: %w", err)
	}
	if !enum.IsActiveChangeRequestStatus(cr.Status) {
		return database.ChangeRequest{}, ErrChangeRequestNotActive
	}

	rejected, err := store.RejectChangeRequest(ctx, id, textOrNull(adminComment))
	if err != nil {
		return database.ChangeRequest{}, fmt.Errorf("reject change request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ChangeRequest{}, fmt.Errorf("commit tx: %w", err)
	}
	return rejected, nil
}

func (s *ChangeRequestService) insertItems(ctx context.Context, store ChangeRequestStore, crID uuid.UUID, items []ItemQuantity, prices map[uuid.UUID]decimal.Decimal) ([]database.ChangeRequestItem, error) {
	merged := MergeQuantities(items)
	rows := make([]database.ChangeRequestItem, 0, len(merged))
	for _, it := range merged {
		row, err := store.CreateChangeRequestItem(ctx, database.CreateChangeRequestItemParams{
			ChangeRequestID: crID,
			MenuItemID:      it.MenuItemID,
			Quantity:        it.Quantity,
			UnitPrice:       decimalToNumeric(prices[it.MenuItemID]),
		})
		if err != nil {
			return nil, fmt.Errorf("create change request item: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
