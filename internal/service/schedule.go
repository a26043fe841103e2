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
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/policy"
)

// A delivery run blocks the courier from thirty minutes before the
// drop-off until thirty minutes after.
const deliveryRunPadding = 30 * time.Minute

// Errors returned by the scheduling service.
var (
	ErrOutsideDeliveryShift  = errors.New("배송 시간은 15시부터 22시 사이여야 합니다")
	ErrNoCourierAvailable    = errors.New("배정 가능한 배송 직원이 없습니다")
	ErrScheduleNotFound      = errors.New("delivery schedule not found")
	ErrScheduleNotAssignee   = errors.New("schedule belongs to another employee")
	ErrScheduleStatusInvalid = errors.New("invalid schedule status")
	ErrScheduleAlreadyClosed = errors.New("schedule is already completed or cancelled")
	ErrOrderAlreadyScheduled = errors.New("order already has an active delivery schedule")
)

// ScheduleStore defines the DB methods needed for delivery scheduling.
// Satisfied by *database.Queries (and its WithTx variant).
type ScheduleStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderAssignees(ctx context.Context, arg database.UpdateOrderAssigneesParams) (database.Order, error)
	ListWorkAssignmentsByDate(ctx context.Context, workDate pgtype.Date) ([]database.WorkAssignment, error)
	ListActiveSchedulesOnDate(ctx context.Context, arg database.SchedulesOnDateParams) ([]database.DeliverySchedule, error)
	GetActiveScheduleByOrder(ctx context.Context, orderID uuid.UUID) (database.DeliverySchedule, error)
	CreateDeliverySchedule(ctx context.Context, arg database.CreateDeliveryScheduleParams) (database.DeliverySchedule, error)
	GetDeliverySchedule(ctx context.Context, id uuid.UUID) (database.DeliverySchedule, error)
	UpdateDeliveryScheduleStatus(ctx context.Context, id uuid.UUID, status string) (database.DeliverySchedule, error)
	ListDeliverySchedules(ctx context.Context) ([]database.DeliverySchedule, error)
	ListDeliverySchedulesByEmployee(ctx context.Context, employeeID uuid.UUID) ([]database.DeliverySchedule, error)
}

// NewScheduleStore creates a ScheduleStore from a DBTX.
type NewScheduleStore func(db database.DBTX) ScheduleStore

// SchedulingService assigns couriers to orders and tracks delivery runs.
type SchedulingService struct {
	pool           TxBeginner
	store          ScheduleStore
	newStore       NewScheduleStore
	shiftStartHour int
	shiftEndHour   int
}

// NewSchedulingService creates a new SchedulingService.
func NewSchedulingService(pool TxBeginner, store ScheduleStore, newStore NewScheduleStore, shiftStartHour, shiftEndHour int) *SchedulingService {
	return &SchedulingService{
		pool:           pool,
		store:          store,
		newStore:       newStore,
		shiftStartHour: shiftStartHour,
		shiftEndHour:   shiftEndHour,
	}
}

// withinShift checks the delivery hour against the evening shift.
// A drop-off at exactly the shift end is allowed.
func (s *SchedulingService) withinShift(t time.Time) bool {
	h := t.Hour()
	if h < s.shiftStartHour || h > s.shiftEndHour {
		return false
	}
	if h == s.shiftEndHour && (t.Minute() > 0 || t.Second() > 0) {
		return false
	}
	return true
}

// AssignDelivery picks the least-loaded courier on delivery duty for the
// order's date and books the run. Ties break on employee id so repeated
// runs over the same roster stay deterministic.
func (s *SchedulingService) AssignDelivery(ctx context.Context, orderID uuid.UUID) (database.DeliverySchedule, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DeliverySchedule{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if isNoRows(err) {
			return database.DeliverySchedule{}, ErrOrderNotFound
		}
		return database.DeliverySchedule{}, fmt.Errorf("get order: %w", err)
	}
	if !policy.IsApproved(order.AdminApprovalStatus) {
		return database.DeliverySchedule{}, ErrOrderNotApproved
	}
	if !s.withinShift(order.DeliveryTime) {
		return database.DeliverySchedule{}, ErrOutsideDeliveryShift
	}
	if _, err := store.GetActiveScheduleByOrder(ctx, orderID); err == nil {
		return database.DeliverySchedule{}, ErrOrderAlreadyScheduled
	} else if !isNoRows(err) {
		return database.DeliverySchedule{}, fmt.Errorf("get active schedule: %w", err)
	}

	courier, err := s.pickCourier(ctx, store, order.DeliveryTime)
	if err != nil {
		return database.DeliverySchedule{}, err
	}

	schedule, err := store.CreateDeliverySchedule(ctx, database.CreateDeliveryScheduleParams{
		OrderID:       orderID,
		EmployeeID:    courier,
		DeliveryDate:  dateOf(order.DeliveryTime),
		DepartureTime: order.DeliveryTime.Add(-deliveryRunPadding),
		ArrivalTime:   order.DeliveryTime,
		ReturnTime:    order.DeliveryTime.Add(deliveryRunPadding),
	})
	if err != nil {
		return database.DeliverySchedule{}, fmt.Errorf("create schedule: %w", err)
	}

	if _, err := store.UpdateOrderAssignees(ctx, database.UpdateOrderAssigneesParams{
		ID:                 orderID,
		DeliveryEmployeeID: pgtype.UUID{Bytes: courier, Valid: true},
	}); err != nil {
		return database.DeliverySchedule{}, fmt.Errorf("update order assignees: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.DeliverySchedule{}, fmt.Errorf("commit tx: %w", err)
	}
	return schedule, nil
}

// pickCourier selects among employees with a DELIVERY assignment on the
// delivery date, preferring the one with the fewest active runs that day
// and skipping anyone whose existing run overlaps the new slot.
func (s *SchedulingService) pickCourier(ctx context.Context, store ScheduleStore, deliveryTime time.Time) (uuid.UUID, error) {
	day := dateOf(deliveryTime)

	assignments, err := store.ListWorkAssignmentsByDate(ctx, day)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list work assignments: %w", err)
	}
	couriers := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if a.TaskType == enum.TaskTypeDelivery {
			couriers = append(couriers, a.EmployeeID)
		}
	}
	if len(couriers) == 0 {
		return uuid.Nil, ErrNoCourierAvailable
	}

	departure := deliveryTime.Add(-deliveryRunPadding)
	ret := deliveryTime.Add(deliveryRunPadding)

	load := make(map[uuid.UUID]int, len(couriers))
	busy := make(map[uuid.UUID]bool, len(couriers))
	for _, c := range couriers {
		runs, err := store.ListActiveSchedulesOnDate(ctx, database.SchedulesOnDateParams{
			EmployeeID:   c,
			DeliveryDate: day,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("list active schedules: %w", err)
		}
		load[c] = len(runs)
		for _, r := range runs {
			if r.DepartureTime.Before(ret) && departure.Before(r.ReturnTime) {
				busy[c] = true
				break
			}
		}
	}

	sort.Slice(couriers, func(i, j int) bool {
		if load[couriers[i]] != load[couriers[j]] {
			return load[couriers[i]] < load[couriers[j]]
		}
		return couriers[i].String() < couriers[j].String()
	})
	for _, c := range couriers {
		if !busy[c] {
			return c, nil
		}
	}
	return uuid.Nil, ErrNoCourierAvailable
}

// UpdateStatus moves a schedule through its run states. Employees may
// only touch their own runs; admins may touch any.
func (s *SchedulingService) UpdateStatus(ctx context.Context, scheduleID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.DeliverySchedule, error) {
	switch target {
	case enum.ScheduleStatusInProgress, enum.ScheduleStatusCompleted, enum.ScheduleStatusCancelled:
	default:
		return database.DeliverySchedule{}, ErrScheduleStatusInvalid
	}

	schedule, err := s.store.GetDeliverySchedule(ctx, scheduleID)
	if err != nil {
		if isNoRows(err) {
			return database.DeliverySchedule{}, ErrScheduleNotFound
		}
		return database.DeliverySchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	if actorRole != enum.UserRoleAdmin && schedule.EmployeeID != actorID {
		return database.DeliverySchedule{}, ErrScheduleNotAssignee
	}
	if schedule.Status == enum.ScheduleStatusCompleted || schedule.Status == enum.ScheduleStatusCancelled {
		return database.DeliverySchedule{}, ErrScheduleAlreadyClosed
	}

	updated, err := s.store.UpdateDeliveryScheduleStatus(ctx, scheduleID, target)
	if err != nil {
		return database.DeliverySchedule{}, fmt.Errorf("update schedule status: %w", err)
	}
	return updated, nil
}

// ListSchedules returns every run for admins and only the caller's own
// runs for employees.
func (s *SchedulingService) ListSchedules(ctx context.Context, actorID uuid.UUID, actorRole string) ([]database.DeliverySchedule, error) {
	if actorRole == enum.UserRoleAdmin {
		return s.store.ListDeliverySchedules(ctx)
	}
	return s.store.ListDeliverySchedulesByEmployee(ctx, actorID)
}
