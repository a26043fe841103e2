package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Work assignments ---

type CreateWorkAssignmentParams struct {
	EmployeeID uuid.UUID
	WorkDate   pgtype.Date
	TaskType   string
}

func (q *Queries) CreateWorkAssignment(ctx context.Context, arg CreateWorkAssignmentParams) (WorkAssignment, error) {
	var wa WorkAssignment
	err := q.db.QueryRow(ctx, `
		INSERT INTO work_assignments (employee_id, work_date, task_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id, work_date) DO UPDATE SET task_type = EXCLUDED.task_type
		RETURNING id, employee_id, work_date, task_type`,
		arg.EmployeeID, arg.WorkDate, arg.TaskType,
	).Scan(&wa.ID, &wa.EmployeeID, &wa.WorkDate, &wa.TaskType)
	return wa, err
}

func (q *Queries) DeleteWorkAssignment(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM work_assignments WHERE id = $1`, id)
	return err
}

func (q *Queries) ListWorkAssignmentsByDate(ctx context.Context, workDate pgtype.Date) ([]WorkAssignment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, employee_id, work_date, task_type
		FROM work_assignments WHERE work_date = $1`, workDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []WorkAssignment
	for rows.Next() {
		var wa WorkAssignment
		if err := rows.Scan(&wa.ID, &wa.EmployeeID, &wa.WorkDate, &wa.TaskType); err != nil {
			return nil, err
		}
		assignments = append(assignments, wa)
	}
	return assignments, rows.Err()
}

type GetWorkAssignmentParams struct {
	EmployeeID uuid.UUID
	WorkDate   pgtype.Date
}

// GetWorkAssignment returns the employee's assignment for the date.
// Returns pgx.ErrNoRows when the employee is not rostered that day.
func (q *Queries) GetWorkAssignment(ctx context.Context, arg GetWorkAssignmentParams) (WorkAssignment, error) {
	var wa WorkAssignment
	err := q.db.QueryRow(ctx, `
		SELECT id, employee_id, work_date, task_type
		FROM work_assignments WHERE employee_id = $1 AND work_date = $2`,
		arg.EmployeeID, arg.WorkDate,
	).Scan(&wa.ID, &wa.EmployeeID, &wa.WorkDate, &wa.TaskType)
	return wa, err
}

// --- Delivery schedules ---

const scheduleColumns = `id, order_id, employee_id, delivery_date,
	departure_time, arrival_time, return_time, status, created_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (DeliverySchedule, error) {
	var s DeliverySchedule
	err := row.Scan(
		&s.ID, &s.OrderID, &s.EmployeeID, &s.DeliveryDate,
		&s.DepartureTime, &s.ArrivalTime, &s.ReturnTime, &s.Status, &s.CreatedAt,
	)
	return s, err
}

func (q *Queries) collectSchedules(ctx context.Context, sql string, args ...interface{}) ([]DeliverySchedule, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []DeliverySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

type CreateDeliveryScheduleParams struct {
	OrderID       uuid.UUID
	EmployeeID    uuid.UUID
	DeliveryDate  pgtype.Date
	DepartureTime time.Time
	ArrivalTime   time.Time
	ReturnTime    time.Time
}

func (q *Queries) CreateDeliverySchedule(ctx context.Context, arg CreateDeliveryScheduleParams) (DeliverySchedule, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO delivery_schedules (order_id, employee_id, delivery_date,
			departure_time, arrival_time, return_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+scheduleColumns,
		arg.OrderID, arg.EmployeeID, arg.DeliveryDate,
		arg.DepartureTime, arg.ArrivalTime, arg.ReturnTime,
	)
	return scanSchedule(row)
}

func (q *Queries) ListDeliverySchedules(ctx context.Context) ([]DeliverySchedule, error) {
	return q.collectSchedules(ctx, `
		SELECT `+scheduleColumns+` FROM delivery_schedules ORDER BY departure_time`)
}

func (q *Queries) ListDeliverySchedulesByEmployee(ctx context.Context, employeeID uuid.UUID) ([]DeliverySchedule, error) {
	return q.collectSchedules(ctx, `
		SELECT `+scheduleColumns+` FROM delivery_schedules
		WHERE employee_id = $1 ORDER BY departure_time`, employeeID)
}

type SchedulesOnDateParams struct {
	EmployeeID   uuid.UUID
	DeliveryDate pgtype.Date
}

// ListActiveSchedulesOnDate returns the employee's non-cancelled
// schedules for a date, for workload balancing and overlap checks.
func (q *Queries) ListActiveSchedulesOnDate(ctx context.Context, arg SchedulesOnDateParams) ([]DeliverySchedule, error) {
	return q.collectSchedules(ctx, `
		SELECT `+scheduleColumns+` FROM delivery_schedules
		WHERE employee_id = $1 AND delivery_date = $2 AND status <> 'CANCELLED'
		ORDER BY departure_time`,
		arg.EmployeeID, arg.DeliveryDate)
}

// GetActiveScheduleByOrder returns the order's non-cancelled schedule.
// Returns pgx.ErrNoRows when none exists.
func (q *Queries) GetActiveScheduleByOrder(ctx context.Context, orderID uuid.UUID) (DeliverySchedule, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+scheduleColumns+` FROM delivery_schedules
		WHERE order_id = $1 AND status <> 'CANCELLED'`, orderID)
	return scanSchedule(row)
}

func (q *Queries) GetDeliverySchedule(ctx context.Context, id uuid.UUID) (DeliverySchedule, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+scheduleColumns+` FROM delivery_schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

// CancelScheduleByOrder is idempotent: cancelling an order with no
// active schedule is a no-op.
func (q *Queries) CancelScheduleByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE delivery_schedules SET status = 'CANCELLED'
		WHERE order_id = $1 AND status <> 'CANCELLED'`, orderID)
	return err
}

func (q *Queries) UpdateDeliveryScheduleStatus(ctx context.Context, id uuid.UUID, status string) (DeliverySchedule, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE delivery_schedules SET status = $2 WHERE id = $1
		RETURNING `+scheduleColumns,
		id, status,
	)
	return scanSchedule(row)
}
