package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

// ChangeRequestServicer defines the service methods needed by
// change-request handlers. Satisfied by *service.ChangeRequestService.
type ChangeRequestServicer interface {
	Create(ctx context.Context, input service.ChangeRequestInput) (*service.ChangeRequestResult, error)
	Edit(ctx context.Context, id uuid.UUID, input service.ChangeRequestInput) (*service.ChangeRequestResult, error)
	Approve(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error)
	Reject(ctx context.Context, id uuid.UUID, adminComment string) (database.ChangeRequest, error)
}

// ChangeRequestReadStore defines the database read methods for listing
// change requests. Satisfied by *database.Queries.
type ChangeRequestReadStore interface {
	GetChangeRequest(ctx context.Context, id uuid.UUID) (database.ChangeRequest, error)
	ListChangeRequests(ctx context.Context) ([]database.ChangeRequest, error)
	ListChangeRequestsByUser(ctx context.Context, userID uuid.UUID) ([]database.ChangeRequest, error)
	ListChangeRequestItems(ctx context.Context, changeRequestID uuid.UUID) ([]database.ChangeRequestItem, error)
}

// ChangeRequestHandler handles the reservation-change workflow.
type ChangeRequestHandler struct {
	svc   ChangeRequestServicer
	store ChangeRequestReadStore
	hub   *ws.Hub
}

// NewChangeRequestHandler creates a new ChangeRequestHandler.
func NewChangeRequestHandler(svc ChangeRequestServicer, store ChangeRequestReadStore, hub *ws.Hub) *ChangeRequestHandler {
	return &ChangeRequestHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers the customer-facing endpoints.
func (h *ChangeRequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/change-requests", h.Create)
	r.Get("/change-requests", h.List)
	r.Get("/change-requests/{id}", h.Get)
	r.Put("/change-requests/{id}", h.Edit)
}

// RegisterAdminRoutes registers the review endpoints.
func (h *ChangeRequestHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/change-requests/{id}/approve", h.Approve)
	r.Post("/change-requests/{id}/reject", h.Reject)
}

// --- Request / Response types ---

type changeRequestRequest struct {
	OrderID         string             `json:"order_id"`
	DinnerTypeID    string             `json:"dinner_type_id"`
	ServingStyle    string             `json:"serving_style"`
	DeliveryTime    time.Time          `json:"delivery_time"`
	DeliveryAddress string             `json:"delivery_address"`
	Items           []orderItemRequest `json:"items"`
	Reason          string             `json:"reason"`
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

type changeRequestItemResponse struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
}

type changeRequestResponse struct {
	ID                        uuid.UUID                   `json:"id"`
	OrderID                   uuid.UUID                   `json:"order_id"`
	UserID                    uuid.UUID                   `json:"user_id"`
	Status                    string                      `json:"status"`
	NewDinnerTypeID           uuid.UUID                   `json:"new_dinner_type_id"`
	NewServingStyle           string                      `json:"new_serving_style"`
	NewDeliveryTime           time.Time                   `json:"new_delivery_time"`
	NewDeliveryAddress        string                      `json:"new_delivery_address"`
	OriginalTotalAmount       string                      `json:"original_total_amount"`
	RecalculatedAmount        string                      `json:"recalculated_amount"`
	ChangeFeeAmount           string                      `json:"change_fee_amount"`
	NewTotalAmount            string                      `json:"new_total_amount"`
	ExtraChargeAmount         string                      `json:"extra_charge_amount"`
	ExpectedRefundAmount      string                      `json:"expected_refund_amount"`
	RequiresAdditionalPayment bool                        `json:"requires_additional_payment"`
	RequiresRefund            bool                        `json:"requires_refund"`
	Reason                    string                      `json:"reason"`
	AdminComment              *string                     `json:"admin_comment"`
	Items                     []changeRequestItemResponse `json:"items,omitempty"`
	RequestedAt               time.Time                   `json:"requested_at"`
	UpdatedAt                 time.Time                   `json:"updated_at"`
}

func toChangeRequestResponse(cr database.ChangeRequest) changeRequestResponse {
	resp := changeRequestResponse{
		ID:                        cr.ID,
		OrderID:                   cr.OrderID,
		UserID:                    cr.UserID,
		Status:                    cr.Status,
		NewDinnerTypeID:           cr.NewDinnerTypeID,
		NewServingStyle:           cr.NewServingStyle,
		NewDeliveryTime:           cr.NewDeliveryTime,
		NewDeliveryAddress:        cr.NewDeliveryAddress,
		OriginalTotalAmount:       numericToString(cr.OriginalTotalAmount),
		RecalculatedAmount:        numericToString(cr.RecalculatedAmount),
		ChangeFeeAmount:           numericToString(cr.ChangeFeeAmount),
		NewTotalAmount:            numericToString(cr.NewTotalAmount),
		ExtraChargeAmount:         numericToString(cr.ExtraChargeAmount),
		ExpectedRefundAmount:      numericToString(cr.ExpectedRefundAmount),
		RequiresAdditionalPayment: cr.RequiresAdditionalPayment,
		RequiresRefund:            cr.RequiresRefund,
		Reason:                    cr.Reason,
		RequestedAt:               cr.RequestedAt,
		UpdatedAt:                 cr.UpdatedAt,
	}
	if cr.AdminComment.Valid {
		resp.AdminComment = &cr.AdminComment.String
	}
	return resp
}

func toChangeRequestItemResponses(items []database.ChangeRequestItem) []changeRequestItemResponse {
	out := make([]changeRequestItemResponse, len(items))
	for i, it := range items {
		out[i] = changeRequestItemResponse{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  numericToString(it.UnitPrice),
		}
	}
	return out
}

// --- Handlers ---

// Create handles POST /change-requests.
func (h *ChangeRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	input, ok := h.decodeInput(w, r, claims.UserID)
	if !ok {
		return
	}

	result, err := h.svc.Create(r.Context(), input)
	if err != nil {
		h.writeChangeError(w, err)
		return
	}

	h.hub.BroadcastToStaff(changeRequestEvent(result.Request))

	resp := toChangeRequestResponse(result.Request)
	resp.Items = toChangeRequestItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, resp)
}

// Edit handles PUT /change-requests/{id}. Only the requesting customer
// may edit, and only while the request is still under review.
func (h *ChangeRequestHandler) Edit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid change request ID"})
		return
	}

	input, ok := h.decodeInput(w, r, claims.UserID)
	if !ok {
		return
	}

	result, err := h.svc.Edit(r.Context(), id, input)
	if err != nil {
		h.writeChangeError(w, err)
		return
	}

	h.hub.BroadcastToStaff(changeRequestEvent(result.Request))

	resp := toChangeRequestResponse(result.Request)
	resp.Items = toChangeRequestItemResponses(result.Items)
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /change-requests. Customers see their own requests;
// staff see the full review queue.
func (h *ChangeRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var (
		requests []database.ChangeRequest
		err      error
	)
	if claims.Role == enum.UserRoleCustomer {
		requests, err = h.store.ListChangeRequestsByUser(r.Context(), claims.UserID)
	} else {
		requests, err = h.store.ListChangeRequests(r.Context())
	}
	if err != nil {
		log.Printf("ERROR: list change requests: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]changeRequestResponse, len(requests))
	for i, cr := range requests {
		resp[i] = toChangeRequestResponse(cr)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"change_requests": resp})
}

// Get handles GET /change-requests/{id}.
func (h *ChangeRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid change request ID"})
		return
	}

	cr, err := h.store.GetChangeRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "change request not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if claims.Role == enum.UserRoleCustomer && cr.UserID != claims.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	items, err := h.store.ListChangeRequestItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list change request items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toChangeRequestResponse(cr)
	resp.Items = toChangeRequestItemResponses(items)
	writeJSON(w, http.StatusOK, resp)
}

// Approve handles POST /change-requests/{id}/approve. A settlement
// failure parks the request rather than failing the review, so the
// response status distinguishes the two outcomes.
func (h *ChangeRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid change request ID"})
		return
	}

	var req reviewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	cr, err := h.svc.Approve(r.Context(), id, req.Comment)
	if err != nil {
		h.writeChangeError(w, err)
		return
	}

	h.hub.BroadcastToUser(cr.UserID, changeRequestEvent(cr))
	h.hub.BroadcastToStaff(changeRequestEvent(cr))

	// Charge or refund failures leave the request parked for retry.
	if cr.Status == enum.ChangeRequestStatusPaymentFailed || cr.Status == enum.ChangeRequestStatusRefundFailed {
		writeJSON(w, http.StatusPaymentRequired, toChangeRequestResponse(cr))
		return
	}

	writeJSON(w, http.StatusOK, toChangeRequestResponse(cr))
}

// Reject handles POST /change-requests/{id}/reject.
func (h *ChangeRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid change request ID"})
		return
	}

	var req reviewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	cr, err := h.svc.Reject(r.Context(), id, req.Comment)
	if err != nil {
		h.writeChangeError(w, err)
		return
	}

	h.hub.BroadcastToUser(cr.UserID, changeRequestEvent(cr))
	h.hub.BroadcastToStaff(changeRequestEvent(cr))

	writeJSON(w, http.StatusOK, toChangeRequestResponse(cr))
}

// --- Helpers ---

func (h *ChangeRequestHandler) decodeInput(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (service.ChangeRequestInput, bool) {
	var req changeRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return service.ChangeRequestInput{}, false
	}

	var orderID uuid.UUID
	if req.OrderID != "" {
		var err error
		orderID, err = uuid.Parse(req.OrderID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
			return service.ChangeRequestInput{}, false
		}
	}

	dinnerID, err := uuid.Parse(req.DinnerTypeID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dinner_type_id"})
		return service.ChangeRequestInput{}, false
	}

	items, err := parseItemRequests(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return service.ChangeRequestInput{}, false
	}

	return service.ChangeRequestInput{
		OrderID:         orderID,
		UserID:          userID,
		DinnerTypeID:    dinnerID,
		ServingStyle:    req.ServingStyle,
		DeliveryTime:    req.DeliveryTime,
		DeliveryAddress: req.DeliveryAddress,
		Items:           items,
		Reason:          req.Reason,
	}, true
}

func (h *ChangeRequestHandler) writeChangeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrChangeRequestNotFound), errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotOrderOwner), errors.Is(err, service.ErrNotChangeRequestOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrChangeWindowClosed),
		errors.Is(err, service.ErrOrderNotChangeable),
		errors.Is(err, service.ErrActiveChangeRequestExists),
		errors.Is(err, service.ErrChangeRequestNotActive),
		errors.Is(err, service.ErrInsufficientCapacity):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrReasonTooShort), isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: change request: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func changeRequestEvent(cr database.ChangeRequest) ws.Event {
	payload, _ := json.Marshal(map[string]interface{}{
		"change_request_id": cr.ID,
		"order_id":          cr.OrderID,
		"user_id":           cr.UserID,
		"status":            cr.Status,
	})
	return ws.Event{Type: ws.EventChangeRequest, Payload: payload}
}
