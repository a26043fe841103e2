package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mr-daebak/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetDinnerTypeSales(ctx context.Context, arg database.GetDinnerTypeSalesParams) ([]database.GetDinnerTypeSalesRow, error)
	GetDeliverySlotSales(ctx context.Context, arg database.GetDeliverySlotSalesParams) ([]database.GetDeliverySlotSalesRow, error)
}

// ReportsHandler handles sales report endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterAdminRoutes registers report endpoints. Expected to be mounted
// inside the admin subrouter.
func (h *ReportsHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/reports/daily-sales", h.DailySales)
	r.Get("/reports/dinner-sales", h.DinnerSales)
	r.Get("/reports/delivery-slots", h.DeliverySlots)
}

// --- Response types ---

type dailySalesResponse struct {
	Date         string `json:"date"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

type dinnerSalesResponse struct {
	DinnerTypeID uuid.UUID `json:"dinner_type_id"`
	DinnerName   string    `json:"dinner_name"`
	OrderCount   int64     `json:"order_count"`
	TotalRevenue string    `json:"total_revenue"`
}

type deliverySlotResponse struct {
	Hour       int32 `json:"hour"`
	OrderCount int64 `json:"order_count"`
}

// --- Handlers ---

// DailySales returns per-day totals over delivery dates in the range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{From: from, To: to})
	if err != nil {
		log.Printf("ERROR: get daily sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format("2006-01-02")
		}
		resp[i] = dailySalesResponse{
			Date:         date,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// DinnerSales returns the dinner types ranked by orders.
func (h *ReportsHandler) DinnerSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := h.store.GetDinnerTypeSales(r.Context(), database.GetDinnerTypeSalesParams{
		From:  from,
		To:    to,
		Limit: int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: get dinner sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dinnerSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = dinnerSalesResponse{
			DinnerTypeID: row.DinnerTypeID,
			DinnerName:   row.DinnerName,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeliverySlots returns order counts per delivery hour, for staffing the
// evening shifts.
func (h *ReportsHandler) DeliverySlots(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDeliverySlotSales(r.Context(), database.GetDeliverySlotSalesParams{From: from, To: to})
	if err != nil {
		log.Printf("ERROR: get delivery slot sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]deliverySlotResponse, len(rows))
	for i, row := range rows {
		resp[i] = deliverySlotResponse{Hour: row.Hour, OrderCount: row.OrderCount}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params in KST to
// match the restaurant's delivery timestamps. Defaults to the last 30
// days. The returned end is exclusive (next day midnight).
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*3600)
	}

	now := time.Now().In(loc)

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -30)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		from = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		to = t.AddDate(0, 0, 1)
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return from, to, nil
}
