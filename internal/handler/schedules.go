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
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

// ScheduleServicer defines the service methods needed by schedule
// handlers. Satisfied by *service.SchedulingService.
type ScheduleServicer interface {
	AssignDelivery(ctx context.Context, orderID uuid.UUID) (database.DeliverySchedule, error)
	UpdateStatus(ctx context.Context, scheduleID uuid.UUID, target string, actorID uuid.UUID, actorRole string) (database.DeliverySchedule, error)
	ListSchedules(ctx context.Context, actorID uuid.UUID, actorRole string) ([]database.DeliverySchedule, error)
}

// ScheduleHandler handles delivery run scheduling.
type ScheduleHandler struct {
	svc ScheduleServicer
	hub *ws.Hub
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(svc ScheduleServicer, hub *ws.Hub) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers the staff endpoints.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/schedules", h.List)
	r.Patch("/schedules/{id}/status", h.UpdateStatus)
}

// RegisterAdminRoutes registers the scheduling endpoint.
func (h *ScheduleHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/orders/{id}/schedule", h.AssignDelivery)
}

// --- Response types ---

type scheduleResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	EmployeeID    uuid.UUID `json:"employee_id"`
	DeliveryDate  string    `json:"delivery_date"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	ReturnTime    time.Time `json:"return_time"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toScheduleResponse(s database.DeliverySchedule) scheduleResponse {
	resp := scheduleResponse{
		ID:            s.ID,
		OrderID:       s.OrderID,
		EmployeeID:    s.EmployeeID,
		DepartureTime: s.DepartureTime,
		ArrivalTime:   s.ArrivalTime,
		ReturnTime:    s.ReturnTime,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
	}
	if s.DeliveryDate.Valid {
		resp.DeliveryDate = s.DeliveryDate.Time.Format("2006-01-02")
	}
	return resp
}

// --- Handlers ---

// AssignDelivery handles POST /orders/{id}/schedule. The service picks
// the least-loaded courier with a delivery assignment that day.
func (h *ScheduleHandler) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	schedule, err := h.svc.AssignDelivery(r.Context(), orderID)
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}

	h.hub.BroadcastToStaff(scheduleEvent(schedule))

	writeJSON(w, http.StatusCreated, toScheduleResponse(schedule))
}

// List handles GET /schedules. Admins see every run; employees see
// their own.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	schedules, err := h.svc.ListSchedules(r.Context(), claims.UserID, claims.Role)
	if err != nil {
		log.Printf("ERROR: list schedules: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]scheduleResponse, len(schedules))
	for i, s := range schedules {
		resp[i] = toScheduleResponse(s)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": resp})
}

// UpdateStatus handles PATCH /schedules/{id}/status.
func (h *ScheduleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	scheduleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid schedule ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	schedule, err := h.svc.UpdateStatus(r.Context(), scheduleID, req.Status, claims.UserID, claims.Role)
	if err != nil {
		h.writeScheduleError(w, err)
		return
	}

	h.hub.BroadcastToStaff(scheduleEvent(schedule))

	writeJSON(w, http.StatusOK, toScheduleResponse(schedule))
}

// --- Helpers ---

func (h *ScheduleHandler) writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound), errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrScheduleNotAssignee):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrScheduleStatusInvalid), errors.Is(err, service.ErrOutsideDeliveryShift):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrScheduleAlreadyClosed),
		errors.Is(err, service.ErrOrderAlreadyScheduled),
		errors.Is(err, service.ErrOrderNotApproved),
		errors.Is(err, service.ErrNoCourierAvailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: schedule: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func scheduleEvent(s database.DeliverySchedule) ws.Event {
	payload, _ := json.Marshal(map[string]interface{}{
		"schedule_id": s.ID,
		"order_id":    s.OrderID,
		"employee_id": s.EmployeeID,
		"status":      s.Status,
	})
	return ws.Event{Type: ws.EventScheduleUpdate, Payload: payload}
}
