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
	"github.com/mr-daebak/api/internal/service"
)

// InventoryServicer defines the service methods needed by inventory
// handlers. Satisfied by *service.InventoryService.
type InventoryServicer interface {
	CheckAvailability(ctx context.Context, items []service.ItemQuantity, deliveryTime time.Time) map[uuid.UUID]bool
	ListInventory(ctx context.Context) ([]service.InventorySnapshot, error)
	Restock(ctx context.Context, menuItemID uuid.UUID, quantity int32, notes string) (database.MenuInventory, error)
	OrderFromSupplier(ctx context.Context, menuItemID uuid.UUID, quantity int32) (database.MenuInventory, error)
	Receive(ctx context.Context, menuItemID uuid.UUID) (database.MenuInventory, error)
}

// InventoryHandler handles availability checks and stock management.
type InventoryHandler struct {
	svc InventoryServicer
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(svc InventoryServicer) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// RegisterRoutes registers the availability check, open to any
// authenticated user.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/inventory/availability", h.CheckAvailability)
}

// RegisterAdminRoutes registers the stock management endpoints.
func (h *InventoryHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/inventory", h.List)
	r.Post("/inventory/{menuItemID}/restock", h.Restock)
	r.Post("/inventory/{menuItemID}/order", h.OrderFromSupplier)
	r.Post("/inventory/{menuItemID}/receive", h.Receive)
}

// --- Request / Response types ---

type availabilityRequest struct {
	DeliveryTime time.Time          `json:"delivery_time"`
	Items        []orderItemRequest `json:"items"`
}

type availabilityResponse struct {
	DeliveryTime time.Time       `json:"delivery_time"`
	Available    bool            `json:"available"`
	Items        map[string]bool `json:"items"`
}

type inventoryResponse struct {
	MenuItemID        uuid.UUID  `json:"menu_item_id"`
	CapacityPerWindow int32      `json:"capacity_per_window"`
	WeeklyReserved    int64      `json:"weekly_reserved"`
	OrderedQuantity   int32      `json:"ordered_quantity"`
	WindowStart       time.Time  `json:"window_start"`
	WindowEnd         time.Time  `json:"window_end"`
	LastRestockedAt   *time.Time `json:"last_restocked_at"`
	Notes             string     `json:"notes,omitempty"`
}

type stockMutationRequest struct {
	Quantity int32  `json:"quantity"`
	Notes    string `json:"notes"`
}

type stockResponse struct {
	MenuItemID        uuid.UUID  `json:"menu_item_id"`
	CapacityPerWindow int32      `json:"capacity_per_window"`
	OrderedQuantity   int32      `json:"ordered_quantity"`
	LastRestockedAt   *time.Time `json:"last_restocked_at"`
}

func toStockResponse(inv database.MenuInventory) stockResponse {
	resp := stockResponse{
		MenuItemID:        inv.MenuItemID,
		CapacityPerWindow: inv.CapacityPerWindow,
		OrderedQuantity:   inv.OrderedQuantity,
	}
	if inv.LastRestockedAt.Valid {
		t := inv.LastRestockedAt.Time
		resp.LastRestockedAt = &t
	}
	return resp
}

// --- Handlers ---

// CheckAvailability handles POST /inventory/availability. The response
// never reports an error per item; an unavailable item simply comes
// back false.
func (h *InventoryHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DeliveryTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delivery_time is required"})
		return
	}

	items, err := parseItemRequests(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result := h.svc.CheckAvailability(r.Context(), items, req.DeliveryTime)

	resp := availabilityResponse{
		DeliveryTime: req.DeliveryTime,
		Available:    true,
		Items:        make(map[string]bool, len(result)),
	}
	for id, ok := range result {
		resp.Items[id.String()] = ok
		if !ok {
			resp.Available = false
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.svc.ListInventory(r.Context())
	if err != nil {
		log.Printf("ERROR: list inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]inventoryResponse, len(snapshots))
	for i, s := range snapshots {
		resp[i] = inventoryResponse{
			MenuItemID:        s.MenuItemID,
			CapacityPerWindow: s.CapacityPerWindow,
			WeeklyReserved:    s.WeeklyReserved,
			OrderedQuantity:   s.OrderedQuantity,
			WindowStart:       s.WindowStart,
			WindowEnd:         s.WindowEnd,
			LastRestockedAt:   s.LastRestockedAt,
			Notes:             s.Notes,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"inventory": resp})
}

// Restock handles POST /inventory/{menuItemID}/restock.
func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	menuItemID, req, ok := h.decodeStockMutation(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.Restock(r.Context(), menuItemID, req.Quantity, req.Notes)
	if err != nil {
		h.writeStockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockResponse(inv))
}

// OrderFromSupplier handles POST /inventory/{menuItemID}/order.
func (h *InventoryHandler) OrderFromSupplier(w http.ResponseWriter, r *http.Request) {
	menuItemID, req, ok := h.decodeStockMutation(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.OrderFromSupplier(r.Context(), menuItemID, req.Quantity)
	if err != nil {
		h.writeStockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockResponse(inv))
}

// Receive handles POST /inventory/{menuItemID}/receive. The pending
// supplier order is folded into capacity.
func (h *InventoryHandler) Receive(w http.ResponseWriter, r *http.Request) {
	menuItemID, err := uuid.Parse(chi.URLParam(r, "menuItemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	inv, err := h.svc.Receive(r.Context(), menuItemID)
	if err != nil {
		h.writeStockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockResponse(inv))
}

// --- Helpers ---

func (h *InventoryHandler) decodeStockMutation(w http.ResponseWriter, r *http.Request) (uuid.UUID, stockMutationRequest, bool) {
	menuItemID, err := uuid.Parse(chi.URLParam(r, "menuItemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return uuid.Nil, stockMutationRequest{}, false
	}

	var req stockMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return uuid.Nil, stockMutationRequest{}, false
	}
	return menuItemID, req, true
}

func (h *InventoryHandler) writeStockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRestockAmount), errors.Is(err, service.ErrInvalidOrderAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNothingOnOrder):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
