package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

// BoardServicer defines the service methods needed by the staff board.
// Satisfied by *service.OrderService.
type BoardServicer interface {
	ListBoard(ctx context.Context) ([]database.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.Order, error)
}

// BoardHandler serves the kitchen and delivery work board.
type BoardHandler struct {
	svc   BoardServicer
	store OrderReadStore
	hub   *ws.Hub
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(svc BoardServicer, store OrderReadStore, hub *ws.Hub) *BoardHandler {
	return &BoardHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers board endpoints. Expected to be mounted
// behind the staff middleware.
func (h *BoardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/board", h.List)
	r.Patch("/board/orders/{id}/status", h.UpdateStatus)
}

// --- Request types ---

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// List handles GET /board: approved, undelivered orders sorted by
// delivery time then lifecycle progress.
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListBoard(r.Context())
	if err != nil {
		log.Printf("ERROR: list board: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
		items, err := h.store.ListOrderItems(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list board items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i].Items = toOrderItemResponses(items)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// UpdateStatus handles PATCH /board/orders/{id}/status. The service
// enforces the lifecycle transitions and the day's work assignments.
func (h *BoardHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status, claims.UserID, claims.Role)
	if err != nil {
		h.writeStatusError(w, err)
		return
	}

	h.hub.BroadcastToUser(order.UserID, orderEvent(ws.EventOrderStatus, order))
	h.hub.BroadcastToStaff(orderEvent(ws.EventOrderStatus, order))

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

func (h *BoardHandler) writeStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrAdminCannotTransition),
		errors.Is(err, service.ErrNoTaskAssignment),
		errors.Is(err, service.ErrWrongTaskAssignment):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTargetStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotApproved),
		errors.Is(err, service.ErrTransitionNotAllowed),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrInsufficientCapacity):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
