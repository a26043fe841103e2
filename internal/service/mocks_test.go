package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
	rolledBack  bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	return m.rollbackErr
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockStore implements the store interfaces with configurable behavior,
// the way *database.Queries satisfies all of them. A nil fn panics, which
// catches queries a test did not expect.
type mockStore struct {
	// inventory
	ensureMenuInventoryFn          func(ctx context.Context, menuItemID uuid.UUID, defaultCapacity int32) (database.MenuInventory, error)
	getMenuInventoryFn             func(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error)
	listMenuInventoryFn            func(ctx context.Context, arg database.ListMenuInventoryParams) ([]database.MenuInventoryWithReserved, error)
	sumReservedInWindowFn          func(ctx context.Context, arg database.SumReservedInWindowParams) (int64, error)
	createReservationFn            func(ctx context.Context, arg database.CreateReservationParams) (database.InventoryReservation, error)
	deleteUnconsumedReservationsFn func(ctx context.Context, orderID uuid.UUID) error
	markReservationsConsumedFn     func(ctx context.Context, orderID uuid.UUID) ([]database.InventoryReservation, error)
	decrementCapacityFn            func(ctx context.Context, arg database.DecrementCapacityParams) error
	restockInventoryFn             func(ctx context.Context, arg database.RestockInventoryParams) (database.MenuInventory, error)
	setOrderedQuantityFn           func(ctx context.Context, menuItemID uuid.UUID, quantity int32) (database.MenuInventory, error)
	receiveOrderedInventoryFn      func(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error)

	// users and catalog
	getUserByIDFn         func(ctx context.Context, id uuid.UUID) (database.User, error)
	getDinnerTypeFn       func(ctx context.Context, id uuid.UUID) (database.DinnerType, error)
	getServingStyleFn     func(ctx context.Context, name string) (database.ServingStyle, error)
	getMenuItemFn         func(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	listDinnerMenuItemsFn func(ctx context.Context, dinnerTypeID uuid.UUID) ([]database.DinnerMenuItem, error)

	// orders
	countDeliveredOrdersByUserFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	getRecentDuplicateOrderFn    func(ctx context.Context, arg database.GetRecentDuplicateOrderParams) (database.Order, error)
	createOrderFn                func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn            func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderFn                   func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrderItemsFn             func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listApprovedOrdersFn         func(ctx context.Context) ([]database.Order, error)
	updateOrderStatusFn          func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	cancelOrderFn                func(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	deleteOrderItemsFn           func(ctx context.Context, orderID uuid.UUID) error
	applyChangeToOrderFn         func(ctx context.Context, arg database.ApplyChangeToOrderParams) (database.Order, error)
	updateOrderAssigneesFn       func(ctx context.Context, arg database.UpdateOrderAssigneesParams) (database.Order, error)

	// change requests
	createChangeRequestFn      func(ctx context.Context, arg database.CreateChangeRequestParams) (database.ChangeRequest, error)
	createChangeRequestItemFn  func(ctx context.Context, arg database.CreateChangeRequestItemParams) (database.ChangeRequestItem, error)
	getChangeRequestFn         func(ctx context.Context, id uuid.UUID) (database.ChangeRequest, error)
	listChangeRequestItemsFn   func(ctx context.Context, changeRequestID uuid.UUID) ([]database.ChangeRequestItem, error)
	deleteChangeRequestItemsFn func(ctx context.Context, changeRequestID uuid.UUID) error
	updateChangeRequestFn      func(ctx context.Context, arg database.UpdateChangeRequestParams) (database.ChangeRequest, error)
	approveChangeRequestFn     func(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (database.ChangeRequest, error)
	rejectChangeRequestFn      func(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (database.ChangeRequest, error)
	parkChangeRequestFn        func(ctx context.Context, id uuid.UUID, status string, adminComment pgtype.Text) (database.ChangeRequest, error)

	// scheduling
	getWorkAssignmentFn               func(ctx context.Context, arg database.GetWorkAssignmentParams) (database.WorkAssignment, error)
	listWorkAssignmentsByDateFn       func(ctx context.Context, workDate pgtype.Date) ([]database.WorkAssignment, error)
	listActiveSchedulesOnDateFn       func(ctx context.Context, arg database.SchedulesOnDateParams) ([]database.DeliverySchedule, error)
	getActiveScheduleByOrderFn        func(ctx context.Context, orderID uuid.UUID) (database.DeliverySchedule, error)
	createDeliveryScheduleFn          func(ctx context.Context, arg database.CreateDeliveryScheduleParams) (database.DeliverySchedule, error)
	getDeliveryScheduleFn             func(ctx context.Context, id uuid.UUID) (database.DeliverySchedule, error)
	updateDeliveryScheduleStatusFn    func(ctx context.Context, id uuid.UUID, status string) (database.DeliverySchedule, error)
	listDeliverySchedulesFn           func(ctx context.Context) ([]database.DeliverySchedule, error)
	listDeliverySchedulesByEmployeeFn func(ctx context.Context, employeeID uuid.UUID) ([]database.DeliverySchedule, error)
	cancelScheduleByOrderFn           func(ctx context.Context, orderID uuid.UUID) error
}

func (m *mockStore) EnsureMenuInventory(ctx context.Context, menuItemID uuid.UUID, defaultCapacity int32) (database.MenuInventory, error) {
	return m.ensureMenuInventoryFn(ctx, menuItemID, defaultCapacity)
}
func (m *mockStore) GetMenuInventory(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error) {
	return m.getMenuInventoryFn(ctx, menuItemID)
}
func (m *mockStore) ListMenuInventory(ctx context.Context, arg database.ListMenuInventoryParams) ([]database.MenuInventoryWithReserved, error) {
	return m.listMenuInventoryFn(ctx, arg)
}
func (m *mockStore) SumReservedInWindow(ctx context.Context, arg database.SumReservedInWindowParams) (int64, error) {
	return m.sumReservedInWindowFn(ctx, arg)
}
func (m *mockStore) CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.InventoryReservation, error) {
	return m.createReservationFn(ctx, arg)
}
func (m *mockStore) DeleteUnconsumedReservations(ctx context.Context, orderID uuid.UUID) error {
	return m.deleteUnconsumedReservationsFn(ctx, orderID)
}
func (m *mockStore) MarkReservationsConsumed(ctx context.Context, orderID uuid.UUID) ([]database.InventoryReservation, error) {
	return m.markReservationsConsumedFn(ctx, orderID)
}
func (m *mockStore) DecrementCapacity(ctx context.Context, arg database.DecrementCapacityParams) error {
	return m.decrementCapacityFn(ctx, arg)
}
func (m *mockStore) RestockInventory(ctx context.Context, arg database.RestockInventoryParams) (database.MenuInventory, error) {
	return m.restockInventoryFn(ctx, arg)
}
func (m *mockStore) SetOrderedQuantity(ctx context.Context, menuItemID uuid.UUID, quantity int32) (database.MenuInventory, error) {
	return m.setOrderedQuantityFn(ctx, menuItemID, quantity)
}
func (m *mockStore) ReceiveOrderedInventory(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error) {
	return m.receiveOrderedInventoryFn(ctx, menuItemID)
}
func (m *mockStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	return m.getUserByIDFn(ctx, id)
}
func (m *mockStore) GetDinnerType(ctx context.Context, id uuid.UUID) (database.DinnerType, error) {
	return m.getDinnerTypeFn(ctx, id)
}
func (m *mockStore) GetServingStyle(ctx context.Context, name string) (database.ServingStyle, error) {
	return m.getServingStyleFn(ctx, name)
}
func (m *mockStore) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	return m.getMenuItemFn(ctx, id)
}
func (m *mockStore) ListDinnerMenuItems(ctx context.Context, dinnerTypeID uuid.UUID) ([]database.DinnerMenuItem, error) {
	return m.listDinnerMenuItemsFn(ctx, dinnerTypeID)
}
func (m *mockStore) CountDeliveredOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.countDeliveredOrdersByUserFn(ctx, userID)
}
func (m *mockStore) GetRecentDuplicateOrder(ctx context.Context, arg database.GetRecentDuplicateOrderParams) (database.Order, error) {
	return m.getRecentDuplicateOrderFn(ctx, arg)
}
func (m *mockStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockStore) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockStore) ListApprovedOrders(ctx context.Context) ([]database.Order, error) {
	return m.listApprovedOrdersFn(ctx)
}
func (m *mockStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockStore) CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error) {
	return m.cancelOrderFn(ctx, arg)
}
func (m *mockStore) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	return m.deleteOrderItemsFn(ctx, orderID)
}
func (m *mockStore) ApplyChangeToOrder(ctx context.Context, arg database.ApplyChangeToOrderParams) (database.Order, error) {
	return m.applyChangeToOrderFn(ctx, arg)
}
func (m *mockStore) UpdateOrderAssignees(ctx context.Context, arg database.UpdateOrderAssigneesParams) (database.Order, error) {
	return m.updateOrderAssigneesFn(ctx, arg)
}
func (m *mockStore) CreateChangeRequest(ctx context.Context, arg database.CreateChangeRequestParams) (database.ChangeRequest, error) {
	return m.createChangeRequestFn(ctx, arg)
}
func (m *mockStore) CreateChangeRequestItem(ctx context.Context, arg database.CreateChangeRequestItemParams) (database.ChangeRequestItem, error) {
	return m.createChangeRequestItemFn(ctx, arg)
}
func (m *mockStore) GetChangeRequest(ctx context.Context, id uuid.UUID) (database.ChangeRequest, error) {
	return m.getChangeRequestFn(ctx, id)
}
func (m *mockStore) ListChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) ([]database.ChangeRequestItem, error) {
	return m.listChangeRequestItemsFn(ctx, changeRequestID)
}
func (m *mockStore) DeleteChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) error {
	return m.deleteChangeRequestItemsFn(ctx, changeRequestID)
}
func (m *mockStore) UpdateChangeRequest(ctx context.Context, arg database.UpdateChangeRequestParams) (database.ChangeRequest, error) {
	return m.updateChangeRequestFn(ctx, arg)
}
func (m *mockStore) ApproveChangeRequest(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (database.ChangeRequest, error) {
	return m.approveChangeRequestFn(ctx, id, adminComment)
}
func (m *mockStore) RejectChangeRequest(ctx context.Context, id uuid.UUID, adminComment pgtype.Text) (database.ChangeRequest, error) {
	return m.rejectChangeRequestFn(ctx, id, adminComment)
}
func (m *mockStore) ParkChangeRequest(ctx context.Context, id uuid.UUID, status string, adminComment pgtype.Text) (database.ChangeRequest, error) {
	return m.parkChangeRequestFn(ctx, id, status, adminComment)
}
func (m *mockStore) GetWorkAssignment(ctx context.Context, arg database.GetWorkAssignmentParams) (database.WorkAssignment, error) {
	return m.getWorkAssignmentFn(ctx, arg)
}
func (m *mockStore) ListWorkAssignmentsByDate(ctx context.Context, workDate pgtype.Date) ([]database.WorkAssignment, error) {
	return m.listWorkAssignmentsByDateFn(ctx, workDate)
}
func (m *mockStore) ListActiveSchedulesOnDate(ctx context.Context, arg database.SchedulesOnDateParams) ([]database.DeliverySchedule, error) {
	return m.listActiveSchedulesOnDateFn(ctx, arg)
}
func (m *mockStore) GetActiveScheduleByOrder(ctx context.Context, orderID uuid.UUID) (database.DeliverySchedule, error) {
	return m.getActiveScheduleByOrderFn(ctx, orderID)
}
func (m *mockStore) CreateDeliverySchedule(ctx context.Context, arg database.CreateDeliveryScheduleParams) (database.DeliverySchedule, error) {
	return m.createDeliveryScheduleFn(ctx, arg)
}
func (m *mockStore) GetDeliverySchedule(ctx context.Context, id uuid.UUID) (database.DeliverySchedule, error) {
	return m.getDeliveryScheduleFn(ctx, id)
}
func (m *mockStore) UpdateDeliveryScheduleStatus(ctx context.Context, id uuid.UUID, status string) (database.DeliverySchedule, error) {
	return m.updateDeliveryScheduleStatusFn(ctx, id, status)
}
func (m *mockStore) ListDeliverySchedules(ctx context.Context) ([]database.DeliverySchedule, error) {
	return m.listDeliverySchedulesFn(ctx)
}
func (m *mockStore) ListDeliverySchedulesByEmployee(ctx context.Context, employeeID uuid.UUID) ([]database.DeliverySchedule, error) {
	return m.listDeliverySchedulesByEmployeeFn(ctx, employeeID)
}
func (m *mockStore) CancelScheduleByOrder(ctx context.Context, orderID uuid.UUID) error {
	return m.cancelScheduleByOrderFn(ctx, orderID)
}

// mockGateway implements PaymentGateway.
type mockGateway struct {
	chargeFn func(ctx context.Context, user database.User, amount decimal.Decimal) error
	refundFn func(ctx context.Context, user database.User, amount decimal.Decimal) error
}

func (m *mockGateway) Charge(ctx context.Context, user database.User, amount decimal.Decimal) error {
	return m.chargeFn(ctx, user, amount)
}
func (m *mockGateway) Refund(ctx context.Context, user database.User, amount decimal.Decimal) error {
	return m.refundFn(ctx, user, amount)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	got := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return got.Equal(exp)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
