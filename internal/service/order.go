package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/policy"
	"github.com/shopspring/decimal"
)

// duplicateContentWindow is the lookback for the same-content duplicate
// check, a belt under the idempotency key.
const duplicateContentWindow = 5 * time.Second

// Errors returned by the order service.
var (
	ErrEmptyItems             = errors.New("items are required")
	ErrInvalidQuantity        = errors.New("quantity must be > 0")
	ErrDeliveryAddressMissing = errors.New("delivery address is required")
	ErrDeliveryTimeMissing    = errors.New("delivery time is required")
	ErrDeliveryTooSoon        = errors.New("same-day delivery requires at least the minimum lead time")
	ErrDeliveryInPast         = errors.New("delivery time is in the past")
	ErrInvalidServingStyle    = errors.New("invalid serving style")
	ErrStyleNotAllowed        = errors.New("this dinner is not available in the selected serving style")
	ErrDinnerNotFound         = errors.New("dinner type not found")
	ErrMenuItemNotFound       = errors.New("menu item not found")
	ErrDuplicateOrder         = errors.New("an identical order was just placed")
	ErrOrderNotFound          = errors.New("order not found")
	ErrNotOrderOwner          = errors.New("order belongs to another customer")
	ErrOrderNotCancellable    = errors.New("order can no longer be cancelled")
	ErrAdminCannotTransition  = errors.New("관리자는 주문 상태를 변경할 수 없습니다")
	ErrInvalidTargetStatus    = errors.New("invalid target status")
	ErrOrderNotApproved       = errors.New("order has not been approved by an administrator")
	ErrTransitionNotAllowed   = errors.New("status transition not allowed")
	ErrNoTaskAssignment       = errors.New("no work assignment for the order's delivery date")
	ErrWrongTaskAssignment    = errors.New("work assignment does not authorize this transition")
	ErrStatusConflict         = errors.New("order status changed concurrently")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	InventoryStore

	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetDinnerType(ctx context.Context, id uuid.UUID) (database.DinnerType, error)
	GetServingStyle(ctx context.Context, name string) (database.ServingStyle, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListDinnerMenuItems(ctx context.Context, dinnerTypeID uuid.UUID) ([]database.DinnerMenuItem, error)
	CountDeliveredOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	GetRecentDuplicateOrder(ctx context.Context, arg database.GetRecentDuplicateOrderParams) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListApprovedOrders(ctx context.Context) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	CancelScheduleByOrder(ctx context.Context, orderID uuid.UUID) error
	GetWorkAssignment(ctx context.Context, arg database.GetWorkAssignmentParams) (database.WorkAssignment, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	UserID          uuid.UUID
	DinnerTypeID    uuid.UUID
	ServingStyle    string
	DeliveryTime    time.Time
	DeliveryAddress string
	Items           []ItemQuantity
}

// CreateOrderResult is the created order with its item rows.
type CreateOrderResult struct {
	Order          database.Order
	Items          []database.OrderItem
	LoyaltyApplied bool
}

// CancelOrderResult carries the cancelled order and the late fee owed.
type CancelOrderResult struct {
	Order database.Order
	Fee   decimal.Decimal
}

// OrderService handles order business logic. store is pool-bound for
// read paths; transactional paths build their own via newStore.
type OrderService struct {
	pool      TxBeginner
	store     OrderStore
	newStore  NewOrderStore
	inventory *InventoryService
	minLead   time.Duration
	now       func() time.Time
}

// NewOrderService creates a new OrderService. minLead is the minimum
// lead time for same-day deliveries.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, inventory *InventoryService, minLead time.Duration) *OrderService {
	return &OrderService{
		pool:      pool,
		store:     store,
		newStore:  newStore,
		inventory: inventory,
		minLead:   minLead,
		now:       time.Now,
	}
}

// CreateOrder validates, prices, reserves inventory, and creates an
// order in a single transaction. The inventory reservation re-validates
// capacity inside the transaction, so the order either gets the stock or
// is not created at all.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	now := s.now()

	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, ErrDeliveryAddressMissing
	}
	if req.DeliveryTime.IsZero() {
		return nil, ErrDeliveryTimeMissing
	}
	if req.DeliveryTime.Before(now) {
		return nil, ErrDeliveryInPast
	}
	if policy.DaysUntilDelivery(req.DeliveryTime, now) == 0 && req.DeliveryTime.Before(now.Add(s.minLead)) {
		return nil, ErrDeliveryTooSoon
	}
	if !enum.IsValidServingStyle(req.ServingStyle) {
		return nil, ErrInvalidServingStyle
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	user, err := store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.CardNumber.Valid || user.CardNumber.String == "" {
		return nil, ErrNoPaymentMethod
	}

	dinner, err := store.GetDinnerType(ctx, req.DinnerTypeID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrDinnerNotFound
		}
		return nil, fmt.Errorf("get dinner: %w", err)
	}
	// The Champagne Feast is only plated in the upper styles.
	if strings.Contains(dinner.NameEn, "Champagne") && req.ServingStyle == enum.ServingStyleSimple {
		return nil, ErrStyleNotAllowed
	}

	style, err := store.GetServingStyle(ctx, req.ServingStyle)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrInvalidServingStyle
		}
		return nil, fmt.Errorf("get serving style: %w", err)
	}

	if _, err := store.GetRecentDuplicateOrder(ctx, database.GetRecentDuplicateOrderParams{
		UserID:          req.UserID,
		DeliveryTime:    req.DeliveryTime,
		DeliveryAddress: req.DeliveryAddress,
		Since:           now.Add(-duplicateContentWindow),
	}); err == nil {
		return nil, ErrDuplicateOrder
	} else if !isNoRows(err) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	merged := MergeQuantities(req.Items)
	total, itemPrices, err := priceSelection(ctx, store, dinner, style, merged)
	if err != nil {
		return nil, err
	}

	loyaltyApplied := false
	delivered, err := store.CountDeliveredOrdersByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("count delivered: %w", err)
	}
	if policy.LoyaltyEligible(user.Consent, user.LoyaltyConsent, delivered) {
		total = policy.ApplyLoyaltyDiscount(total)
		loyaltyApplied = true
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		UserID:          req.UserID,
		DinnerTypeID:    req.DinnerTypeID,
		ServingStyle:    req.ServingStyle,
		DeliveryTime:    req.DeliveryTime,
		DeliveryAddress: req.DeliveryAddress,
		TotalPrice:      decimalToNumeric(total),
		PaymentStatus:   enum.PaymentStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.inventory.CommitReservations(ctx, store, order.ID, merged, req.DeliveryTime, pgtype.UUID{}); err != nil {
		return nil, err
	}

	items := make([]database.OrderItem, 0, len(merged))
	for _, it := range merged {
		row, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  decimalToNumeric(itemPrices[it.MenuItemID]),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items, LoyaltyApplied: loyaltyApplied}, nil
}

// CatalogStore is the slice of the query layer needed to price a dinner
// selection.
type CatalogStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListDinnerMenuItems(ctx context.Context, dinnerTypeID uuid.UUID) ([]database.DinnerMenuItem, error)
}

// priceSelection resolves catalog prices and runs the pricing rule. Also
// returns each item's unit price for persisting on the item rows.
func priceSelection(ctx context.Context, store CatalogStore, dinner database.DinnerType, style database.ServingStyle, items []ItemQuantity) (decimal.Decimal, map[uuid.UUID]decimal.Decimal, error) {
	defaults, err := store.ListDinnerMenuItems(ctx, dinner.ID)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("list dinner items: %w", err)
	}
	defaultQty := make(map[uuid.UUID]int32, len(defaults))
	for _, dm := range defaults {
		defaultQty[dm.MenuItemID] = dm.DefaultQuantity
	}

	priced := make([]policy.PricedItem, 0, len(items))
	unitPrices := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, it := range items {
		menuItem, err := store.GetMenuItem(ctx, it.MenuItemID)
		if err != nil {
			if isNoRows(err) {
				return decimal.Zero, nil, fmt.Errorf("item %s: %w", it.MenuItemID, ErrMenuItemNotFound)
			}
			return decimal.Zero, nil, fmt.Errorf("get menu item: %w", err)
		}
		price := numericToDecimal(menuItem.Price)
		unitPrices[it.MenuItemID] = price
		priced = append(priced, policy.PricedItem{
			UnitPrice:  price,
			Quantity:   it.Quantity,
			DefaultQty: defaultQty[it.MenuItemID],
		})
	}

	total := policy.CalculateTotal(numericToDecimal(dinner.BasePrice), numericToDecimal(style.Multiplier), priced)
	return total, unitPrices, nil
}

// CancelOrder cancels the order and releases whatever can be released:
// unconsumed reservations (only while cooking has not started) and the
// delivery schedule. The cancellation fee is informational; billing it
// is the payment provider's concern.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*CancelOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if actorRole != enum.UserRoleAdmin && order.UserID != actorID {
		return nil, ErrNotOrderOwner
	}

	fee := policy.GetCancellationFee(order.DeliveryTime, s.now())

	// Stock is only returned while the kitchen has not started.
	if order.Status == enum.OrderStatusPending {
		if err := s.inventory.ReleaseForOrder(ctx, store, orderID); err != nil {
			return nil, fmt.Errorf("release reservations: %w", err)
		}
	}
	if err := store.CancelScheduleByOrder(ctx, orderID); err != nil {
		return nil, fmt.Errorf("cancel schedule: %w", err)
	}

	approval := enum.ApprovalStatusCancelled
	if strings.EqualFold(order.AdminApprovalStatus, enum.ApprovalStatusRejected) {
		approval = enum.ApprovalStatusRejected
	}

	cancelled, err := store.CancelOrder(ctx, database.CancelOrderParams{
		ID:                  orderID,
		AdminApprovalStatus: approval,
	})
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotCancellable
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CancelOrderResult{Order: cancelled, Fee: fee}, nil
}

// UpdateStatus executes one employee-driven lifecycle transition. The
// admin-approval gate, the transition table, and the actor's work
// assignment are all checked; entering cooking additionally consumes
// inventory in the same transaction, so a failed debit never advances
// the status.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.Order, error) {
	if actorRole == enum.UserRoleAdmin {
		return database.Order{}, ErrAdminCannotTransition
	}
	if !enum.IsValidOrderStatus(target) || target == enum.OrderStatusPending || target == enum.OrderStatusCancelled {
		return database.Order{}, ErrInvalidTargetStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !policy.IsApproved(order.AdminApprovalStatus) {
		return database.Order{}, ErrOrderNotApproved
	}
	if !policy.CanTransition(order.Status, target) {
		return database.Order{}, fmt.Errorf("%s -> %s: %w", order.Status, target, ErrTransitionNotAllowed)
	}

	assignment, err := store.GetWorkAssignment(ctx, database.GetWorkAssignmentParams{
		EmployeeID: actorID,
		WorkDate:   dateOf(order.DeliveryTime),
	})
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrNoTaskAssignment
		}
		return database.Order{}, fmt.Errorf("get work assignment: %w", err)
	}
	if !taskAuthorized(assignment.TaskType, target) {
		return database.Order{}, ErrWrongTaskAssignment
	}

	if policy.ConsumesInventory(target) {
		if err := s.inventory.ConsumeForOrder(ctx, store, orderID); err != nil {
			return database.Order{}, err
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             orderID,
		Status:         target,
		ExpectedStatus: order.Status,
	})
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

func taskAuthorized(taskType, target string) bool {
	for _, t := range policy.TasksAuthorizedFor(target) {
		if t == taskType {
			return true
		}
	}
	return false
}

// ListBoard returns the employee order board: approved orders sorted by
// delivery time, then lifecycle progression.
func (s *OrderService) ListBoard(ctx context.Context) ([]database.Order, error) {
	orders, err := s.store.ListApprovedOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list approved orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].DeliveryTime.Equal(orders[j].DeliveryTime) {
			return orders[i].DeliveryTime.Before(orders[j].DeliveryTime)
		}
		return policy.StatusProgress(orders[i].Status) < policy.StatusProgress(orders[j].Status)
	})
	return orders, nil
}
