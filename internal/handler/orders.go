package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/guard"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/policy"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*service.CancelOrderResult, error)
}

// OrderReadStore defines the database read methods for order listing.
// Satisfied by *database.Queries.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetActiveChangeRequestByOrder(ctx context.Context, orderID uuid.UUID) (database.ChangeRequest, error)
}

// OrderHandler handles customer-facing order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReadStore
	guard *guard.Registry
	hub   *ws.Hub
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderReadStore, reg *guard.Registry, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, guard: reg, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Delete("/orders/{id}", h.Cancel)
}

// --- Request / Response types ---

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
}

type createOrderRequest struct {
	DinnerTypeID    string             `json:"dinner_type_id"`
	ServingStyle    string             `json:"serving_style"`
	DeliveryTime    time.Time          `json:"delivery_time"`
	DeliveryAddress string             `json:"delivery_address"`
	Items           []orderItemRequest `json:"items"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
}

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	UserID              uuid.UUID           `json:"user_id"`
	DinnerTypeID        uuid.UUID           `json:"dinner_type_id"`
	ServingStyle        string              `json:"serving_style"`
	DeliveryTime        time.Time           `json:"delivery_time"`
	DeliveryAddress     string              `json:"delivery_address"`
	TotalPrice          string              `json:"total_price"`
	Status              string              `json:"status"`
	PaymentStatus       string              `json:"payment_status"`
	AdminApprovalStatus string              `json:"admin_approval_status"`
	Items               []orderItemResponse `json:"items,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

type createOrderResponse struct {
	orderResponse
	LoyaltyApplied bool `json:"loyalty_applied"`
}

// orderDetailResponse extends orderResponse with the change window and
// any active change request, for the GET detail endpoint.
type orderDetailResponse struct {
	orderResponse
	ChangeAllowed         bool    `json:"change_allowed"`
	ChangeFee             string  `json:"change_fee"`
	ActiveChangeRequestID *string `json:"active_change_request_id"`
}

type cancelOrderResponse struct {
	orderResponse
	CancellationFee string `json:"cancellation_fee"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                  o.ID,
		UserID:              o.UserID,
		DinnerTypeID:        o.DinnerTypeID,
		ServingStyle:        o.ServingStyle,
		DeliveryTime:        o.DeliveryTime,
		DeliveryAddress:     o.DeliveryAddress,
		TotalPrice:          numericToString(o.TotalPrice),
		Status:              o.Status,
		PaymentStatus:       o.PaymentStatus,
		AdminApprovalStatus: o.AdminApprovalStatus,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	out := make([]orderItemResponse, len(items))
	for i, it := range items {
		out[i] = orderItemResponse{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  numericToString(it.UnitPrice),
		}
	}
	return out
}

// --- Handlers ---

// Create handles POST /orders. A repeat submission with the same
// X-Request-ID inside the retention window returns the original order
// instead of placing a second one.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	dinnerID, err := uuid.Parse(req.DinnerTypeID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dinner_type_id"})
		return
	}

	items, err := parseItemRequests(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID != "" {
		if err := h.guard.Begin(claims.UserID, requestID); err != nil {
			h.writeGuardError(w, err)
			return
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		UserID:          claims.UserID,
		DinnerTypeID:    dinnerID,
		ServingStyle:    req.ServingStyle,
		DeliveryTime:    req.DeliveryTime,
		DeliveryAddress: req.DeliveryAddress,
		Items:           items,
	})
	if err != nil {
		if requestID != "" {
			h.guard.Fail(claims.UserID, requestID)
		}
		if errors.Is(err, service.ErrDuplicateOrder) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrInsufficientCapacity) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrNoPaymentMethod) {
			writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrPaymentDeclined) {
			writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
			return
		}
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if requestID != "" {
		h.guard.Complete(claims.UserID, requestID, result.Order.ID)
	}

	h.hub.BroadcastToStaff(orderEvent(ws.EventOrderStatus, result.Order))

	resp := createOrderResponse{
		orderResponse:  dbOrderToResponse(result.Order),
		LoyaltyApplied: result.LoyaltyApplied,
	}
	resp.Items = toOrderItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders. Customers see their own orders; staff see
// every order.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var (
		orders []database.Order
		err    error
	)
	if claims.Role == enum.UserRoleCustomer {
		orders, err = h.store.ListOrdersByUser(r.Context(), claims.UserID)
	} else {
		orders, err = h.store.ListOrders(r.Context())
	}
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if claims.Role == enum.UserRoleCustomer && order.UserID != claims.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	window := policy.GetChangeWindow(order.DeliveryTime, time.Now())
	resp := orderDetailResponse{
		orderResponse: dbOrderToResponse(order),
		ChangeAllowed: window.Allowed,
		ChangeFee:     window.Fee.StringFixed(0),
	}
	resp.Items = toOrderItemResponses(items)

	if cr, err := h.store.GetActiveChangeRequestByOrder(r.Context(), orderID); err == nil {
		s := cr.ID.String()
		resp.ActiveChangeRequestID = &s
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.svc.CancelOrder(r.Context(), orderID, claims.UserID, claims.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrNotOrderOwner):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotCancellable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: cancel order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.hub.BroadcastToUser(result.Order.UserID, orderEvent(ws.EventOrderStatus, result.Order))
	h.hub.BroadcastToStaff(orderEvent(ws.EventOrderStatus, result.Order))

	writeJSON(w, http.StatusOK, cancelOrderResponse{
		orderResponse:   dbOrderToResponse(result.Order),
		CancellationFee: result.Fee.StringFixed(0),
	})
}

// --- Helpers ---

func (h *OrderHandler) writeGuardError(w http.ResponseWriter, err error) {
	var cooldown *guard.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", strconv.Itoa(int(cooldown.Remaining.Seconds())+1))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": cooldown.Error()})
		return
	}
	var dup *guard.DuplicateError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    dup.Error(),
			"order_id": dup.OrderID,
		})
		return
	}
	if errors.Is(err, guard.ErrDuplicateInFlight) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func parseItemRequests(items []orderItemRequest) ([]service.ItemQuantity, error) {
	if len(items) == 0 {
		return nil, errors.New("items are required")
	}
	out := make([]service.ItemQuantity, len(items))
	for i, it := range items {
		id, err := uuid.Parse(it.MenuItemID)
		if err != nil {
			return nil, errors.New("items[" + strconv.Itoa(i) + "]: invalid menu_item_id")
		}
		if it.Quantity <= 0 {
			return nil, errors.New("items[" + strconv.Itoa(i) + "]: quantity must be > 0")
		}
		out[i] = service.ItemQuantity{MenuItemID: id, Quantity: it.Quantity}
	}
	return out, nil
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrDeliveryAddressMissing) ||
		errors.Is(err, service.ErrDeliveryTimeMissing) ||
		errors.Is(err, service.ErrDeliveryTooSoon) ||
		errors.Is(err, service.ErrDeliveryInPast) ||
		errors.Is(err, service.ErrInvalidServingStyle) ||
		errors.Is(err, service.ErrStyleNotAllowed) ||
		errors.Is(err, service.ErrDinnerNotFound) ||
		errors.Is(err, service.ErrMenuItemNotFound)
}

// orderEvent builds a hub event carrying the order's current state.
func orderEvent(eventType string, o database.Order) ws.Event {
	payload, _ := json.Marshal(map[string]interface{}{
		"order_id":              o.ID,
		"user_id":               o.UserID,
		"status":                o.Status,
		"admin_approval_status": o.AdminApprovalStatus,
		"delivery_time":         o.DeliveryTime,
	})
	return ws.Event{Type: eventType, Payload: payload}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0"
	}
	// Amounts are whole KRW.
	return d.StringFixed(0)
}
