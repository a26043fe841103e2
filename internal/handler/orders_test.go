package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/auth"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/guard"
	"github.com/mr-daebak/api/internal/handler"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/policy"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

// --- Mocks ---

type mockOrderService struct {
	createFn func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	cancelFn func(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*service.CancelOrderResult, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*service.CancelOrderResult, error) {
	return m.cancelFn(ctx, orderID, actorID, actorRole)
}

type mockOrderReadStore struct {
	orders       map[uuid.UUID]database.Order
	items        map[uuid.UUID][]database.OrderItem
	activeChange map[uuid.UUID]database.ChangeRequest
}

func newMockOrderReadStore() *mockOrderReadStore {
	return &mockOrderReadStore{
		orders:       make(map[uuid.UUID]database.Order),
		items:        make(map[uuid.UUID][]database.OrderItem),
		activeChange: make(map[uuid.UUID]database.ChangeRequest),
	}
}

func (m *mockOrderReadStore) GetOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockOrderReadStore) ListOrders(_ context.Context) ([]database.Order, error) {
	var out []database.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrderReadStore) ListOrdersByUser(_ context.Context, userID uuid.UUID) ([]database.Order, error) {
	var out []database.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderReadStore) ListOrderItems(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderReadStore) GetActiveChangeRequestByOrder(_ context.Context, orderID uuid.UUID) (database.ChangeRequest, error) {
	cr, ok := m.activeChange[orderID]
	if !ok {
		return database.ChangeRequest{}, pgx.ErrNoRows
	}
	return cr, nil
}

// --- Helpers ---

func krw(amount int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(amount), Valid: true}
}

func makeOrder(userID uuid.UUID, deliveryTime time.Time) database.Order {
	return database.Order{
		ID:                  uuid.New(),
		UserID:              userID,
		DinnerTypeID:        uuid.New(),
		ServingStyle:        enum.ServingStyleGrand,
		DeliveryTime:        deliveryTime,
		DeliveryAddress:     "서울시 강남구 테헤란로 1",
		TotalPrice:          krw(102000),
		Status:              enum.OrderStatusPending,
		PaymentStatus:       enum.PaymentStatusPaid,
		AdminApprovalStatus: enum.ApprovalStatusPending,
	}
}

func setupOrderRouter(svc handler.OrderServicer, store handler.OrderReadStore, reg *guard.Registry) *chi.Mux {
	h := handler.NewOrderHandler(svc, store, reg, ws.NewHub())
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		h.RegisterRoutes(r)
	})
	return r
}

func validOrderBody(dinnerID, menuItemID uuid.UUID, deliveryTime time.Time) map[string]interface{} {
	return map[string]interface{}{
		"dinner_type_id":   dinnerID.String(),
		"serving_style":    enum.ServingStyleGrand,
		"delivery_time":    deliveryTime.Format(time.RFC3339),
		"delivery_address": "서울시 강남구 테헤란로 1",
		"items": []map[string]interface{}{
			{"menu_item_id": menuItemID.String(), "quantity": 3},
		},
	}
}

// --- Create tests ---

func TestCreateOrder_Success(t *testing.T) {
	userID := uuid.New()
	deliveryTime := time.Now().AddDate(0, 0, 5)
	order := makeOrder(userID, deliveryTime)

	svc := &mockOrderService{
		createFn: func(_ context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			if req.UserID != userID {
				t.Errorf("service called with user %s, want %s", req.UserID, userID)
			}
			if len(req.Items) != 1 || req.Items[0].Quantity != 3 {
				t.Errorf("unexpected items passed to service: %+v", req.Items)
			}
			return &service.CreateOrderResult{Order: order, LoyaltyApplied: true}, nil
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: userID, Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/orders", validOrderBody(order.DinnerTypeID, uuid.New(), deliveryTime), claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["total_price"] != "102000" {
		t.Errorf("total_price: got %v, want 102000", resp["total_price"])
	}
	if resp["loyalty_applied"] != true {
		t.Errorf("loyalty_applied: got %v, want true", resp["loyalty_applied"])
	}
}

func TestCreateOrder_RepeatRequestID(t *testing.T) {
	userID := uuid.New()
	deliveryTime := time.Now().AddDate(0, 0, 5)
	order := makeOrder(userID, deliveryTime)

	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return &service.CreateOrderResult{Order: order}, nil
		},
	}
	reg := guard.NewRegistry(time.Minute)
	r := setupOrderRouter(svc, newMockOrderReadStore(), reg)

	body, err := json.Marshal(validOrderBody(order.DinnerTypeID, uuid.New(), deliveryTime))
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	token, err := auth.GenerateToken(testSecret, userID, enum.UserRoleCustomer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Request-ID", "req-abc-123")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first submission: got %d, want %d; body: %s", first.Code, http.StatusCreated, first.Body.String())
	}

	second := send()
	if second.Code != http.StatusTooManyRequests && second.Code != http.StatusConflict {
		t.Fatalf("repeat submission: got %d, want 429 or 409", second.Code)
	}
	if second.Code == http.StatusTooManyRequests && second.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestCreateOrder_ValidationError(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return nil, service.ErrDeliveryTooSoon
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/orders", validOrderBody(uuid.New(), uuid.New(), time.Now().Add(time.Hour)), claims)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_NoPaymentMethod(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return nil, service.ErrNoPaymentMethod
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/orders", validOrderBody(uuid.New(), uuid.New(), time.Now().AddDate(0, 0, 5)), claims)

	if rr.Code != http.StatusPaymentRequired {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusPaymentRequired)
	}
}

func TestCreateOrder_CapacityConflict(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return nil, service.ErrInsufficientCapacity
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/orders", validOrderBody(uuid.New(), uuid.New(), time.Now().AddDate(0, 0, 2)), claims)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCreateOrder_ZeroQuantityRejected(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			t.Fatal("service must not be called for invalid items")
			return nil, nil
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	body := map[string]interface{}{
		"dinner_type_id":   uuid.New().String(),
		"serving_style":    enum.ServingStyleSimple,
		"delivery_time":    time.Now().AddDate(0, 0, 5).Format(time.RFC3339),
		"delivery_address": "서울시",
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 0},
		},
	}

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/orders", body, claims)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- List / Get tests ---

func TestListOrders_CustomerSeesOwnOnly(t *testing.T) {
	customerID := uuid.New()
	store := newMockOrderReadStore()
	mine := makeOrder(customerID, time.Now().AddDate(0, 0, 5))
	other := makeOrder(uuid.New(), time.Now().AddDate(0, 0, 5))
	store.orders[mine.ID] = mine
	store.orders[other.ID] = other

	r := setupOrderRouter(&mockOrderService{}, store, guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: customerID, Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "GET", "/orders", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	orders, ok := resp["orders"].([]interface{})
	if !ok {
		t.Fatalf("expected orders array, got %T", resp["orders"])
	}
	if len(orders) != 1 {
		t.Fatalf("customer sees %d orders, want 1", len(orders))
	}
}

func TestListOrders_StaffSeesAll(t *testing.T) {
	store := newMockOrderReadStore()
	a := makeOrder(uuid.New(), time.Now().AddDate(0, 0, 5))
	b := makeOrder(uuid.New(), time.Now().AddDate(0, 0, 6))
	store.orders[a.ID] = a
	store.orders[b.ID] = b

	r := setupOrderRouter(&mockOrderService{}, store, guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleEmployee}
	rr := doAuthRequest(t, r, "GET", "/orders", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	orders, _ := resp["orders"].([]interface{})
	if len(orders) != 2 {
		t.Fatalf("staff sees %d orders, want 2", len(orders))
	}
}

func TestGetOrder_OtherCustomerForbidden(t *testing.T) {
	store := newMockOrderReadStore()
	order := makeOrder(uuid.New(), time.Now().AddDate(0, 0, 5))
	store.orders[order.ID] = order

	r := setupOrderRouter(&mockOrderService{}, store, guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "GET", "/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestGetOrder_ChangeWindow(t *testing.T) {
	customerID := uuid.New()
	store := newMockOrderReadStore()

	// Far enough out that changes are free.
	open := makeOrder(customerID, time.Now().AddDate(0, 0, 10))
	store.orders[open.ID] = open

	// Delivery is tomorrow morning; the change window has closed.
	locked := makeOrder(customerID, time.Now().Add(12*time.Hour))
	store.orders[locked.ID] = locked

	r := setupOrderRouter(&mockOrderService{}, store, guard.NewRegistry(10*time.Second))
	claims := &auth.Claims{UserID: customerID, Role: enum.UserRoleCustomer}

	rr := doAuthRequest(t, r, "GET", "/orders/"+open.ID.String(), nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["change_allowed"] != true {
		t.Errorf("far-out order: change_allowed = %v, want true", resp["change_allowed"])
	}
	if resp["change_fee"] != "0" {
		t.Errorf("far-out order: change_fee = %v, want 0", resp["change_fee"])
	}

	rr = doAuthRequest(t, r, "GET", "/orders/"+locked.ID.String(), nil, claims)
	resp = decodeResponse(t, rr)
	if resp["change_allowed"] != false {
		t.Errorf("near-delivery order: change_allowed = %v, want false", resp["change_allowed"])
	}
}

func TestGetOrder_ReportsActiveChangeRequest(t *testing.T) {
	customerID := uuid.New()
	store := newMockOrderReadStore()
	order := makeOrder(customerID, time.Now().AddDate(0, 0, 10))
	store.orders[order.ID] = order

	cr := database.ChangeRequest{ID: uuid.New(), OrderID: order.ID, UserID: customerID, Status: enum.ChangeRequestStatusRequested}
	store.activeChange[order.ID] = cr

	r := setupOrderRouter(&mockOrderService{}, store, guard.NewRegistry(10*time.Second))
	claims := &auth.Claims{UserID: customerID, Role: enum.UserRoleCustomer}

	rr := doAuthRequest(t, r, "GET", "/orders/"+order.ID.String(), nil, claims)
	resp := decodeResponse(t, rr)
	if resp["active_change_request_id"] != cr.ID.String() {
		t.Errorf("active_change_request_id: got %v, want %s", resp["active_change_request_id"], cr.ID)
	}
}

// --- Cancel tests ---

func TestCancelOrder_LateFee(t *testing.T) {
	customerID := uuid.New()
	order := makeOrder(customerID, time.Now().AddDate(0, 0, 3))
	order.Status = enum.OrderStatusCancelled

	svc := &mockOrderService{
		cancelFn: func(_ context.Context, orderID, actorID uuid.UUID, actorRole string) (*service.CancelOrderResult, error) {
			if orderID != order.ID || actorID != customerID {
				t.Errorf("cancel called with order %s actor %s", orderID, actorID)
			}
			return &service.CancelOrderResult{Order: order, Fee: policy.CancellationFee}, nil
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: customerID, Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "DELETE", "/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["cancellation_fee"] != "30000" {
		t.Errorf("cancellation_fee: got %v, want 30000", resp["cancellation_fee"])
	}
	if resp["status"] != enum.OrderStatusCancelled {
		t.Errorf("status: got %v, want cancelled", resp["status"])
	}
}

func TestCancelOrder_NotCancellable(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(_ context.Context, _, _ uuid.UUID, _ string) (*service.CancelOrderResult, error) {
			return nil, service.ErrOrderNotCancellable
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "DELETE", "/orders/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCancelOrder_NotOwner(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(_ context.Context, _, _ uuid.UUID, _ string) (*service.CancelOrderResult, error) {
			return nil, service.ErrNotOrderOwner
		},
	}
	r := setupOrderRouter(svc, newMockOrderReadStore(), guard.NewRegistry(10*time.Second))

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "DELETE", "/orders/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
