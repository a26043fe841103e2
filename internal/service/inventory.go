package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/policy"
)

// DefaultWindowCapacity seeds an inventory record the first time an item
// is reserved against.
const DefaultWindowCapacity = 20

// reservationShelfLifeDays is how long an unconsumed reservation is held
// past its delivery date before it may be swept.
const reservationShelfLifeDays = 3

// Errors returned by the inventory service.
var (
	ErrInsufficientCapacity = errors.New("insufficient inventory capacity for the delivery window")
	ErrInvalidRestockAmount = errors.New("restock quantity must be > 0")
	ErrInvalidOrderAmount   = errors.New("ordered quantity must be > 0")
	ErrNothingOnOrder       = errors.New("no inventory on order to receive")
)

// ItemQuantity is one requested menu item line.
type ItemQuantity struct {
	MenuItemID uuid.UUID
	Quantity   int32
}

// MergeQuantities collapses duplicate menu item ids by summing their
// quantities, preserving first-seen order.
func MergeQuantities(items []ItemQuantity) []ItemQuantity {
	index := make(map[uuid.UUID]int, len(items))
	var merged []ItemQuantity
	for _, it := range items {
		if i, ok := index[it.MenuItemID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.MenuItemID] = len(merged)
		merged = append(merged, it)
	}
	return merged
}

// InventoryStore defines the DB methods the inventory service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type InventoryStore interface {
	EnsureMenuInventory(ctx context.Context, menuItemID uuid.UUID, defaultCapacity int32) (database.MenuInventory, error)
	GetMenuInventory(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error)
	ListMenuInventory(ctx context.Context, arg database.ListMenuInventoryParams) ([]database.MenuInventoryWithReserved, error)
	SumReservedInWindow(ctx context.Context, arg database.SumReservedInWindowParams) (int64, error)
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.InventoryReservation, error)
	DeleteUnconsumedReservations(ctx context.Context, orderID uuid.UUID) error
	MarkReservationsConsumed(ctx context.Context, orderID uuid.UUID) ([]database.InventoryReservation, error)
	DecrementCapacity(ctx context.Context, arg database.DecrementCapacityParams) error
	RestockInventory(ctx context.Context, arg database.RestockInventoryParams) (database.MenuInventory, error)
	SetOrderedQuantity(ctx context.Context, menuItemID uuid.UUID, quantity int32) (database.MenuInventory, error)
	ReceiveOrderedInventory(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error)
}

// InventoryService answers availability questions and manages
// reservations. Transactional callers (order creation, change approval,
// status transitions) pass their tx-bound store; read paths use the
// pool-bound one.
type InventoryService struct {
	store        InventoryStore
	nearTermDays int
	now          func() time.Time
}

// NewInventoryService creates an InventoryService. nearTermDays is the
// threshold at or under which physical capacity is enforced.
func NewInventoryService(store InventoryStore, nearTermDays int) *InventoryService {
	return &InventoryService{
		store:        store,
		nearTermDays: nearTermDays,
		now:          time.Now,
	}
}

// CheckAvailability reports, per requested item, whether the quantity can
// be supplied for the delivery window. Near-term requests (at or under
// the threshold) require capacity minus reserved to cover the quantity;
// far-term requests are forward commitments and only need the record to
// exist. Any error is reported as unavailable, never surfaced: the check
// fails closed.
func (s *InventoryService) CheckAvailability(ctx context.Context, items []ItemQuantity, deliveryTime time.Time) map[uuid.UUID]bool {
	result := make(map[uuid.UUID]bool, len(items))
	nearTerm := policy.DaysUntilDelivery(deliveryTime, s.now()) <= s.nearTermDays
	windowStart, windowEnd := deliveryWindow(deliveryTime)

	for _, it := range MergeQuantities(items) {
		inv, err := s.store.EnsureMenuInventory(ctx, it.MenuItemID, DefaultWindowCapacity)
		if err != nil {
			result[it.MenuItemID] = false
			continue
		}
		if !nearTerm {
			result[it.MenuItemID] = true
			continue
		}
		reserved, err := s.store.SumReservedInWindow(ctx, database.SumReservedInWindowParams{
			MenuItemID:  it.MenuItemID,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
		})
		if err != nil {
			result[it.MenuItemID] = false
			continue
		}
		result[it.MenuItemID] = int64(inv.CapacityPerWindow)-reserved >= int64(it.Quantity)
	}
	return result
}

// ValidateCapacity checks every item against the delivery window inside
// the caller's transaction. excludeOrder omits that order's own
// reservations so a change does not compete with itself.
func (s *InventoryService) ValidateCapacity(ctx context.Context, store InventoryStore, items []ItemQuantity, deliveryTime time.Time, excludeOrder pgtype.UUID) error {
	if policy.DaysUntilDelivery(deliveryTime, s.now()) > s.nearTermDays {
		// Far-term orders pre-allocate against future restock.
		for _, it := range MergeQuantities(items) {
			if _, err := store.EnsureMenuInventory(ctx, it.MenuItemID, DefaultWindowCapacity); err != nil {
				return fmt.Errorf("ensure inventory: %w", err)
			}
		}
		return nil
	}

	windowStart, windowEnd := deliveryWindow(deliveryTime)
	for _, it := range MergeQuantities(items) {
		inv, err := store.EnsureMenuInventory(ctx, it.MenuItemID, DefaultWindowCapacity)
		if err != nil {
			return fmt.Errorf("ensure inventory: %w", err)
		}
		reserved, err := store.SumReservedInWindow(ctx, database.SumReservedInWindowParams{
			MenuItemID:     it.MenuItemID,
			WindowStart:    windowStart,
			WindowEnd:      windowEnd,
			ExcludeOrderID: excludeOrder,
		})
		if err != nil {
			return fmt.Errorf("sum reserved: %w", err)
		}
		if reserved+int64(it.Quantity) > int64(inv.CapacityPerWindow) {
			return fmt.Errorf("item %s: %w", it.MenuItemID, ErrInsufficientCapacity)
		}
	}
	return nil
}

// CommitReservations re-validates capacity inside the transaction and
// inserts the reservation rows. Re-validation closes the race between a
// pre-flight availability check and the commit.
func (s *InventoryService) CommitReservations(ctx context.Context, store InventoryStore, orderID uuid.UUID, items []ItemQuantity, deliveryTime time.Time, excludeOrder pgtype.UUID) error {
	if err := s.ValidateCapacity(ctx, store, items, deliveryTime, excludeOrder); err != nil {
		return err
	}

	windowStart, windowEnd := deliveryWindow(deliveryTime)
	expiresAt := pgtype.Timestamptz{
		Time:  deliveryTime.AddDate(0, 0, reservationShelfLifeDays),
		Valid: true,
	}
	for _, it := range MergeQuantities(items) {
		_, err := store.CreateReservation(ctx, database.CreateReservationParams{
			OrderID:      orderID,
			MenuItemID:   it.MenuItemID,
			Quantity:     it.Quantity,
			DeliveryTime: deliveryTime,
			WindowStart:  windowStart,
			WindowEnd:    windowEnd,
			ExpiresAt:    expiresAt,
		})
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
	}
	return nil
}

// ConsumeForOrder marks the order's reservations consumed and debits
// window capacity. Called inside the pending -> cooking transaction so a
// failed debit leaves the status untouched.
func (s *InventoryService) ConsumeForOrder(ctx context.Context, store InventoryStore, orderID uuid.UUID) error {
	consumed, err := store.MarkReservationsConsumed(ctx, orderID)
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	for _, r := range consumed {
		if err := store.DecrementCapacity(ctx, database.DecrementCapacityParams{
			MenuItemID: r.MenuItemID,
			Quantity:   r.Quantity,
		}); err != nil {
			return fmt.Errorf("decrement capacity: %w", err)
		}
	}
	return nil
}

// ReleaseForOrder drops the order's unconsumed reservations.
func (s *InventoryService) ReleaseForOrder(ctx context.Context, store InventoryStore, orderID uuid.UUID) error {
	return store.DeleteUnconsumedReservations(ctx, orderID)
}

// InventorySnapshot is one row of the admin inventory listing.
type InventorySnapshot struct {
	MenuItemID        uuid.UUID
	CapacityPerWindow int32
	WeeklyReserved    int64
	OrderedQuantity   int32
	WindowStart       time.Time
	WindowEnd         time.Time
	LastRestockedAt   *time.Time
	Notes             string
}

// ListInventory returns every inventory record with its reserved total
// for the current Sunday-start week.
func (s *InventoryService) ListInventory(ctx context.Context) ([]InventorySnapshot, error) {
	weekStart, weekEnd := weekWindow(s.now())
	rows, err := s.store.ListMenuInventory(ctx, database.ListMenuInventoryParams{
		WindowStart: weekStart,
		WindowEnd:   weekEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	snapshots := make([]InventorySnapshot, 0, len(rows))
	for _, row := range rows {
		snap := InventorySnapshot{
			MenuItemID:        row.MenuItemID,
			CapacityPerWindow: row.CapacityPerWindow,
			WeeklyReserved:    row.WeeklyReserved,
			OrderedQuantity:   row.OrderedQuantity,
			WindowStart:       weekStart,
			WindowEnd:         weekEnd,
		}
		if row.LastRestockedAt.Valid {
			t := row.LastRestockedAt.Time
			snap.LastRestockedAt = &t
		}
		if row.Notes.Valid {
			snap.Notes = row.Notes.String
		}
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].MenuItemID.String() < snapshots[j].MenuItemID.String()
	})
	return snapshots, nil
}

// Restock adds received stock to an item's window capacity.
func (s *InventoryService) Restock(ctx context.Context, menuItemID uuid.UUID, quantity int32, notes string) (database.MenuInventory, error) {
	if quantity <= 0 {
		return database.MenuInventory{}, ErrInvalidRestockAmount
	}
	if _, err := s.store.EnsureMenuInventory(ctx, menuItemID, DefaultWindowCapacity); err != nil {
		return database.MenuInventory{}, fmt.Errorf("ensure inventory: %w", err)
	}
	var n pgtype.Text
	if notes != "" {
		n = pgtype.Text{String: notes, Valid: true}
	}
	return s.store.RestockInventory(ctx, database.RestockInventoryParams{
		MenuItemID: menuItemID,
		Quantity:   quantity,
		Notes:      n,
	})
}

// OrderFromSupplier records a quantity on order from the supplier.
func (s *InventoryService) OrderFromSupplier(ctx context.Context, menuItemID uuid.UUID, quantity int32) (database.MenuInventory, error) {
	if quantity <= 0 {
		return database.MenuInventory{}, ErrInvalidOrderAmount
	}
	if _, err := s.store.EnsureMenuInventory(ctx, menuItemID, DefaultWindowCapacity); err != nil {
		return database.MenuInventory{}, fmt.Errorf("ensure inventory: %w", err)
	}
	return s.store.SetOrderedQuantity(ctx, menuItemID, quantity)
}

// Receive folds the on-order quantity into capacity and clears it.
func (s *InventoryService) Receive(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error) {
	inv, err := s.store.ReceiveOrderedInventory(ctx, menuItemID)
	if err != nil {
		if isNoRows(err) {
			return database.MenuInventory{}, ErrNothingOnOrder
		}
		return database.MenuInventory{}, fmt.Errorf("receive inventory: %w", err)
	}
	return inv, nil
}
