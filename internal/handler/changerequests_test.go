package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/auth"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/handler"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

// --- Mocks ---

type mockChangeService struct {
	createFn  func(ctx context.Context, input service.ChangeRequestInput) (*service.ChangeRequestResult, error)
	editFn    func(ctx context.Context, id uuid.UUID, input service.ChangeRequestInput) (*service.ChangeRequestResult, error)
	approveFn func(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error)
	rejectFn  func(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error)
}

func (m *mockChangeService) Create(ctx context.Context, input service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
	return m.createFn(ctx, input)
}

func (m *mockChangeService) Edit(ctx context.Context, id uuid.UUID, input service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
	return m.editFn(ctx, id, input)
}

func (m *mockChangeService) Approve(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error) {
	return m.approveFn(ctx, id, adminComment)
}

func (m *mockChangeService) Reject(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error) {
	return m.rejectFn(ctx, id, adminComment)
}

type mockChangeReadStore struct {
	requests map[uuid.UUID]database.ChangeRequest
	items    map[uuid.UUID][]database.ChangeRequestItem
}

func newMockChangeReadStore() *mockChangeReadStore {
	return &mockChangeReadStore{
		requests: make(map[uuid.UUID]database.ChangeRequest),
		items:    make(map[uuid.UUID][]database.ChangeRequestItem),
	}
}

func (m *mockChangeReadStore) GetChangeRequest(_ context.Context, id uuid.UUID) (database.ChangeRequest, error) {
	cr, ok := m.requests[id]
	if !ok {
		return database.ChangeRequest{}, pgx.ErrNoRows
	}
	return cr, nil
}

func (m *mockChangeReadStore) ListChangeRequests(_ context.Context) ([]database.ChangeRequest, error) {
	var out []database.ChangeRequest
	for _, cr := range m.requests {
		out = append(out, cr)
	}
	return out, nil
}

func (m *mockChangeReadStore) ListChangeRequestsByUser(_ context.Context, userID uuid.UUID) ([]database.ChangeRequest, error) {
	var out []database.ChangeRequest
	for _, cr := range m.requests {
		if cr.UserID == userID {
			out = append(out, cr)
		}
	}
	return out, nil
}

func (m *mockChangeReadStore) ListChangeRequestItems(_ context.Context, id uuid.UUID) ([]database.ChangeRequestItem, error) {
	return m.items[id], nil
}

// --- Helpers ---

func makeChangeRequest(userID uuid.UUID) database.ChangeRequest {
	return database.ChangeRequest{
		ID:                        uuid.New(),
		OrderID:                   uuid.New(),
		UserID:                    userID,
		Status:                    enum.ChangeRequestStatusRequested,
		NewDinnerTypeID:           uuid.New(),
		NewServingStyle:           enum.ServingStyleDeluxe,
		NewDeliveryTime:           time.Now().AddDate(0, 0, 6),
		NewDeliveryAddress:        "서울시 강남구 테헤란로 1",
		OriginalTotalAmount:       krw(102000),
		RecalculatedAmount:        krw(126000),
		ChangeFeeAmount:           krw(0),
		NewTotalAmount:            krw(126000),
		ExtraChargeAmount:         krw(24000),
		ExpectedRefundAmount:      krw(0),
		RequiresAdditionalPayment: true,
		Reason:                    "기념일 스타일을 업그레이드하고 싶습니다",
	}
}

func setupChangeRouter(svc handler.ChangeRequestServicer, store handler.ChangeRequestReadStore) *chi.Mux {
	h := handler.NewChangeRequestHandler(svc, store, ws.NewHub())
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		h.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.UserRoleAdmin))
			h.RegisterAdminRoutes(r)
		})
	})
	return r
}

func changeRequestBody(orderID, dinnerID, menuItemID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"order_id":         orderID.String(),
		"dinner_type_id":   dinnerID.String(),
		"serving_style":    enum.ServingStyleDeluxe,
		"delivery_time":    time.Now().AddDate(0, 0, 6).Format(time.RFC3339),
		"delivery_address": "서울시 강남구 테헤란로 1",
		"items": []map[string]interface{}{
			{"menu_item_id": menuItemID.String(), "quantity": 3},
		},
		"reason": "기념일 스타일을 업그레이드하고 싶습니다",
	}
}

// --- Tests ---

func TestCreateChangeRequest_Success(t *testing.T) {
	userID := uuid.New()
	cr := makeChangeRequest(userID)

	svc := &mockChangeService{
		createFn: func(_ context.Context, input service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
			if input.UserID != userID {
				t.Errorf("service called with user %s, want %s", input.UserID, userID)
			}
			if input.Reason == "" {
				t.Error("reason not passed through")
			}
			return &service.ChangeRequestResult{Request: cr}, nil
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: userID, Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/change-requests", changeRequestBody(cr.OrderID, cr.NewDinnerTypeID, uuid.New()), claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["new_total_amount"] != "126000" {
		t.Errorf("new_total_amount: got %v, want 126000", resp["new_total_amount"])
	}
	if resp["extra_charge_amount"] != "24000" {
		t.Errorf("extra_charge_amount: got %v, want 24000", resp["extra_charge_amount"])
	}
	if resp["requires_additional_payment"] != true {
		t.Errorf("requires_additional_payment: got %v, want true", resp["requires_additional_payment"])
	}
}

func TestCreateChangeRequest_WindowClosed(t *testing.T) {
	svc := &mockChangeService{
		createFn: func(_ context.Context, _ service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
			return nil, service.ErrChangeWindowClosed
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/change-requests", changeRequestBody(uuid.New(), uuid.New(), uuid.New()), claims)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCreateChangeRequest_SecondActiveRejected(t *testing.T) {
	svc := &mockChangeService{
		createFn: func(_ context.Context, _ service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
			return nil, service.ErrActiveChangeRequestExists
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/change-requests", changeRequestBody(uuid.New(), uuid.New(), uuid.New()), claims)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCreateChangeRequest_ShortReason(t *testing.T) {
	svc := &mockChangeService{
		createFn: func(_ context.Context, _ service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
			return nil, service.ErrReasonTooShort
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/change-requests", changeRequestBody(uuid.New(), uuid.New(), uuid.New()), claims)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetChangeRequest_OtherCustomerForbidden(t *testing.T) {
	store := newMockChangeReadStore()
	cr := makeChangeRequest(uuid.New())
	store.requests[cr.ID] = cr

	r := setupChangeRouter(&mockChangeService{}, store)

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "GET", "/change-requests/"+cr.ID.String(), nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestListChangeRequests_CustomerScoped(t *testing.T) {
	customerID := uuid.New()
	store := newMockChangeReadStore()
	mine := makeChangeRequest(customerID)
	other := makeChangeRequest(uuid.New())
	store.requests[mine.ID] = mine
	store.requests[other.ID] = other

	r := setupChangeRouter(&mockChangeService{}, store)

	claims := &auth.Claims{UserID: customerID, Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "GET", "/change-requests", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	requests, _ := resp["change_requests"].([]interface{})
	if len(requests) != 1 {
		t.Fatalf("customer sees %d change requests, want 1", len(requests))
	}
}

func TestApproveChangeRequest_Success(t *testing.T) {
	cr := makeChangeRequest(uuid.New())
	cr.Status = enum.ChangeRequestStatusApproved
	cr.AdminComment = pgtype.Text{String: "확인했습니다", Valid: true}

	svc := &mockChangeService{
		approveFn: func(_ context.Context, id uuid.UUID, comment string) (database.ChangeRequest, error) {
			if id != cr.ID {
				t.Errorf("approve called with %s, want %s", id, cr.ID)
			}
			if comment != "확인했습니다" {
				t.Errorf("comment: got %q", comment)
			}
			return cr, nil
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleAdmin}
	rr := doAuthRequest(t, r, "POST", "/change-requests/"+cr.ID.String()+"/approve", map[string]string{"comment": "확인했습니다"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.ChangeRequestStatusApproved {
		t.Errorf("status: got %v, want APPROVED", resp["status"])
	}
}

func TestApproveChangeRequest_PaymentFailureParks(t *testing.T) {
	cr := makeChangeRequest(uuid.New())
	cr.Status = enum.ChangeRequestStatusPaymentFailed

	svc := &mockChangeService{
		approveFn: func(_ context.Context, _ uuid.UUID, _ string) (database.ChangeRequest, error) {
			return cr, nil
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleAdmin}
	rr := doAuthRequest(t, r, "POST", "/change-requests/"+cr.ID.String()+"/approve", nil, claims)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusPaymentRequired)
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.ChangeRequestStatusPaymentFailed {
		t.Errorf("status: got %v, want PAYMENT_FAILED", resp["status"])
	}
}

func TestApproveChangeRequest_CustomerForbidden(t *testing.T) {
	r := setupChangeRouter(&mockChangeService{}, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "POST", "/change-requests/"+uuid.New().String()+"/approve", nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRejectChangeRequest_Success(t *testing.T) {
	cr := makeChangeRequest(uuid.New())
	cr.Status = enum.ChangeRequestStatusRejected

	svc := &mockChangeService{
		rejectFn: func(_ context.Context, _ uuid.UUID, _ string) (database.ChangeRequest, error) {
			return cr, nil
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleAdmin}
	rr := doAuthRequest(t, r, "POST", "/change-requests/"+cr.ID.String()+"/reject", map[string]string{"comment": "재고 부족"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.ChangeRequestStatusRejected {
		t.Errorf("status: got %v, want REJECTED", resp["status"])
	}
}

func TestEditChangeRequest_NotActive(t *testing.T) {
	svc := &mockChangeService{
		editFn: func(_ context.Context, _ uuid.UUID, _ service.ChangeRequestInput) (*service.ChangeRequestResult, error) {
			return nil, service.ErrChangeRequestNotActive
		},
	}
	r := setupChangeRouter(svc, newMockChangeReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "PUT", "/change-requests/"+uuid.New().String(), changeRequestBody(uuid.New(), uuid.New(), uuid.New()), claims)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}
