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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/ws"
)

// AdminStore defines the database methods needed by admin handlers.
// Satisfied by *database.Queries.
type AdminStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	ListPendingUsers(ctx context.Context) ([]database.User, error)
	UpdateUserAccountStatus(ctx context.Context, id uuid.UUID, status string) (database.User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) (database.User, error)
	UpdateUserEmployeeType(ctx context.Context, id uuid.UUID, employeeType pgtype.Text) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)

	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListPendingApprovalOrders(ctx context.Context) ([]database.Order, error)
	UpdateOrderApprovalStatus(ctx context.Context, id uuid.UUID, status string) (database.Order, error)

	CreateWorkAssignment(ctx context.Context, arg database.CreateWorkAssignmentParams) (database.WorkAssignment, error)
	DeleteWorkAssignment(ctx context.Context, id uuid.UUID) error
	ListWorkAssignmentsByDate(ctx context.Context, workDate pgtype.Date) ([]database.WorkAssignment, error)
}

// AdminHandler handles account review, order approval and the staff
// roster. Expected to be mounted behind the admin middleware.
type AdminHandler struct {
	store AdminStore
	hub   *ws.Hub
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store AdminStore, hub *ws.Hub) *AdminHandler {
	return &AdminHandler{store: store, hub: hub}
}

// RegisterRoutes registers admin endpoints on the given Chi router.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Get("/users/pending", h.ListPendingUsers)
	r.Patch("/users/{id}/status", h.UpdateUserStatus)
	r.Patch("/users/{id}/role", h.UpdateUserRole)
	r.Patch("/users/{id}/employee-type", h.UpdateEmployeeType)

	r.Get("/orders/pending", h.ListPendingOrders)
	r.Post("/orders/{id}/approve", h.ApproveOrder)
	r.Post("/orders/{id}/reject", h.RejectOrder)

	r.Get("/assignments", h.ListAssignments)
	r.Post("/assignments", h.CreateAssignment)
	r.Delete("/assignments/{id}", h.DeleteAssignment)
}

// --- Request / Response types ---

type updateAccountStatusRequest struct {
	Status string `json:"status"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type updateEmployeeTypeRequest struct {
	EmployeeType string `json:"employee_type"`
}

type createAssignmentRequest struct {
	EmployeeID string `json:"employee_id"`
	WorkDate   string `json:"work_date"`
	TaskType   string `json:"task_type"`
}

type workAssignmentResponse struct {
	ID         uuid.UUID `json:"id"`
	EmployeeID uuid.UUID `json:"employee_id"`
	WorkDate   string    `json:"work_date"`
	TaskType   string    `json:"task_type"`
}

func toWorkAssignmentResponse(wa database.WorkAssignment) workAssignmentResponse {
	resp := workAssignmentResponse{
		ID:         wa.ID,
		EmployeeID: wa.EmployeeID,
		TaskType:   wa.TaskType,
	}
	if wa.WorkDate.Valid {
		resp.WorkDate = wa.WorkDate.Time.Format("2006-01-02")
	}
	return resp
}

// --- User review handlers ---

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp})
}

// ListPendingUsers handles GET /admin/users/pending.
func (h *AdminHandler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListPendingUsers(r.Context())
	if err != nil {
		log.Printf("ERROR: list pending users: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp})
}

// UpdateUserStatus handles PATCH /admin/users/{id}/status, approving or
// rejecting a pending account.
func (h *AdminHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	var req updateAccountStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status != enum.AccountStatusApproved && req.Status != enum.AccountStatusRejected {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be approved or rejected"})
		return
	}

	user, err := h.store.UpdateUserAccountStatus(r.Context(), userID, req.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: update account status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateUserRole handles PATCH /admin/users/{id}/role.
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	switch req.Role {
	case enum.UserRoleCustomer, enum.UserRoleEmployee, enum.UserRoleAdmin:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	user, err := h.store.UpdateUserRole(r.Context(), userID, req.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: update role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateEmployeeType handles PATCH /admin/users/{id}/employee-type.
func (h *AdminHandler) UpdateEmployeeType(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	var req updateEmployeeTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.EmployeeType != enum.TaskTypeCooking && req.EmployeeType != enum.TaskTypeDelivery {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "employee_type must be COOKING or DELIVERY"})
		return
	}

	user, err := h.store.UpdateUserEmployeeType(r.Context(), userID, textOrNull(req.EmployeeType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: update employee type: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- Order approval handlers ---

// ListPendingOrders handles GET /admin/orders/pending.
func (h *AdminHandler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListPendingApprovalOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list pending orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// ApproveOrder handles POST /admin/orders/{id}/approve.
func (h *AdminHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.reviewOrder(w, r, enum.ApprovalStatusApproved)
}

// RejectOrder handles POST /admin/orders/{id}/reject.
func (h *AdminHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	h.reviewOrder(w, r, enum.ApprovalStatusRejected)
}

func (h *AdminHandler) reviewOrder(w http.ResponseWriter, r *http.Request, status string) {
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

	// Review is one-shot; approved or rejected orders stay that way.
	if order.AdminApprovalStatus != enum.ApprovalStatusPending {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order has already been reviewed"})
		return
	}

	order, err = h.store.UpdateOrderApprovalStatus(r.Context(), orderID, status)
	if err != nil {
		log.Printf("ERROR: update approval status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.BroadcastToUser(order.UserID, orderEvent(ws.EventOrderApproval, order))
	h.hub.BroadcastToStaff(orderEvent(ws.EventOrderApproval, order))

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Work assignment handlers ---

// ListAssignments handles GET /admin/assignments?date=YYYY-MM-DD.
// Defaults to today.
func (h *AdminHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	workDate := time.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
			return
		}
		workDate = t
	}

	assignments, err := h.store.ListWorkAssignmentsByDate(r.Context(), pgtype.Date{Time: workDate, Valid: true})
	if err != nil {
		log.Printf("ERROR: list assignments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]workAssignmentResponse, len(assignments))
	for i, wa := range assignments {
		resp[i] = toWorkAssignmentResponse(wa)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": resp})
}

// CreateAssignment handles POST /admin/assignments. An existing
// assignment for the same employee and date is replaced.
func (h *AdminHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid employee_id"})
		return
	}

	workDate, err := time.Parse("2006-01-02", req.WorkDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid work_date format, use YYYY-MM-DD"})
		return
	}

	if req.TaskType != enum.TaskTypeCooking && req.TaskType != enum.TaskTypeDelivery {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_type must be COOKING or DELIVERY"})
		return
	}

	employee, err := h.store.GetUserByID(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "employee not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if employee.Role != enum.UserRoleEmployee {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assignments can only target employees"})
		return
	}

	assignment, err := h.store.CreateWorkAssignment(r.Context(), database.CreateWorkAssignmentParams{
		EmployeeID: employeeID,
		WorkDate:   pgtype.Date{Time: workDate, Valid: true},
		TaskType:   req.TaskType,
	})
	if err != nil {
		log.Printf("ERROR: create assignment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toWorkAssignmentResponse(assignment))
}

// DeleteAssignment handles DELETE /admin/assignments/{id}.
func (h *AdminHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assignment ID"})
		return
	}

	if err := h.store.DeleteWorkAssignment(r.Context(), id); err != nil {
		log.Printf("ERROR: delete assignment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
