package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mr-daebak/api/internal/auth"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/handler"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

type mockBoardService struct {
	listFn   func(ctx context.Context) ([]database.Order, error)
	updateFn func(ctx context.Context, orderID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.Order, error)
}

func (m *mockBoardService) ListBoard(ctx context.Context) ([]database.Order, error) {
	return m.listFn(ctx)
}

func (m *mockBoardService) UpdateStatus(ctx context.Context, orderID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.Order, error) {
	return m.updateFn(ctx, orderID, target, actorID, actorRole)
}

func setupBoardRouter(svc handler.BoardServicer, store handler.OrderReadStore) *chi.Mux {
	h := handler.NewBoardHandler(svc, store, ws.NewHub())
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Use(middleware.RequireStaff)
		h.RegisterRoutes(r)
	})
	return r
}

func TestBoardList_CustomerForbidden(t *testing.T) {
	r := setupBoardRouter(&mockBoardService{}, newMockOrderReadStore())

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	rr := doAuthRequest(t, r, "GET", "/board", nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestBoardList_IncludesItems(t *testing.T) {
	order := makeOrder(uuid.New(), time.Now().AddDate(0, 0, 2))
	order.Status = enum.OrderStatusCooking

	store := newMockOrderReadStore()
	store.items[order.ID] = []database.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, MenuItemID: uuid.New(), Quantity: 3, UnitPrice: krw(15000)},
	}

	svc := &mockBoardService{
		listFn: func(_ context.Context) ([]database.Order, error) {
			return []database.Order{order}, nil
		},
	}
	r := setupBoardRouter(svc, store)

	claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleEmployee}
	rr := doAuthRequest(t, r, "GET", "/board", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	orders, _ := resp["orders"].([]interface{})
	if len(orders) != 1 {
		t.Fatalf("orders: got %d, want 1", len(orders))
	}
	first, _ := orders[0].(map[string]interface{})
	items, _ := first["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("items: got %d, want 1", len(items))
	}
}

func TestBoardUpdateStatus_Advances(t *testing.T) {
	employeeID := uuid.New()
	order := makeOrder(uuid.New(), time.Now().AddDate(0, 0, 2))
	order.Status = enum.OrderStatusCooking

	svc := &mockBoardService{
		updateFn: func(_ context.Context, orderID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.Order, error) {
			if orderID != order.ID {
				t.Errorf("order: got %s, want %s", orderID, order.ID)
			}
			if target != enum.OrderStatusCooking {
				t.Errorf("target: got %s, want cooking", target)
			}
			if actorID != employeeID || actorRole != enum.UserRoleEmployee {
				t.Errorf("actor: got %s/%s", actorID, actorRole)
			}
			return order, nil
		},
	}
	r := setupBoardRouter(svc, newMockOrderReadStore())

	claims := &auth.Claims{UserID: employeeID, Role: enum.UserRoleEmployee}
	rr := doAuthRequest(t, r, "PATCH", "/board/orders/"+order.ID.String()+"/status",
		map[string]string{"status": enum.OrderStatusCooking}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusCooking {
		t.Errorf("status: got %v, want cooking", resp["status"])
	}
}

func TestBoardUpdateStatus_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"wrong task", service.ErrWrongTaskAssignment, http.StatusForbidden},
		{"no assignment", service.ErrNoTaskAssignment, http.StatusForbidden},
		{"invalid target", service.ErrInvalidTargetStatus, http.StatusBadRequest},
		{"not approved", service.ErrOrderNotApproved, http.StatusConflict},
		{"skipped step", service.ErrTransitionNotAllowed, http.StatusConflict},
		{"lost race", service.ErrStatusConflict, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockBoardService{
				updateFn: func(_ context.Context, _ uuid.UUID, _ string, _ uuid.UUID, _ string) (database.Order, error) {
					return database.Order{}, tc.err
				},
			}
			r := setupBoardRouter(svc, newMockOrderReadStore())

			claims := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleEmployee}
			rr := doAuthRequest(t, r, "PATCH", "/board/orders/"+uuid.New().String()+"/status",
				map[string]string{"status": enum.OrderStatusReady}, claims)

			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}
