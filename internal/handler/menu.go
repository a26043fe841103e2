package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mr-daebak/api/internal/database"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries.
type MenuStore interface {
	ListDinnerTypes(ctx context.Context) ([]database.DinnerType, error)
	GetDinnerType(ctx context.Context, id uuid.UUID) (database.DinnerType, error)
	ListDinnerMenuItems(ctx context.Context, dinnerTypeID uuid.UUID) ([]database.DinnerMenuItem, error)
	ListMenuItems(ctx context.Context) ([]database.MenuItem, error)
	ListServingStyles(ctx context.Context) ([]database.ServingStyle, error)
}

// MenuHandler serves the dinner catalog. All endpoints are public.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu/dinners", h.ListDinners)
	r.Get("/menu/dinners/{id}", h.GetDinner)
	r.Get("/menu/items", h.ListItems)
	r.Get("/menu/serving-styles", h.ListServingStyles)
}

// --- Response types ---

type dinnerTypeResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	NameEn      string    `json:"name_en"`
	BasePrice   string    `json:"base_price"`
	Description *string   `json:"description"`
}

type menuItemResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	NameEn   string    `json:"name_en"`
	Price    string    `json:"price"`
	Category *string   `json:"category"`
}

type dinnerCompositionResponse struct {
	MenuItemID      uuid.UUID `json:"menu_item_id"`
	DefaultQuantity int32     `json:"default_quantity"`
}

type dinnerDetailResponse struct {
	dinnerTypeResponse
	Composition []dinnerCompositionResponse `json:"composition"`
}

type servingStyleResponse struct {
	Name       string `json:"name"`
	Multiplier string `json:"multiplier"`
}

func toDinnerTypeResponse(d database.DinnerType) dinnerTypeResponse {
	resp := dinnerTypeResponse{
		ID:        d.ID,
		Name:      d.Name,
		NameEn:    d.NameEn,
		BasePrice: numericToString(d.BasePrice),
	}
	if d.Description.Valid {
		resp.Description = &d.Description.String
	}
	return resp
}

// --- Handlers ---

// ListDinners handles GET /menu/dinners.
func (h *MenuHandler) ListDinners(w http.ResponseWriter, r *http.Request) {
	dinners, err := h.store.ListDinnerTypes(r.Context())
	if err != nil {
		log.Printf("ERROR: list dinner types: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dinnerTypeResponse, len(dinners))
	for i, d := range dinners {
		resp[i] = toDinnerTypeResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dinners": resp})
}

// GetDinner handles GET /menu/dinners/{id}, returning the dinner with
// its default item composition.
func (h *MenuHandler) GetDinner(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dinner ID"})
		return
	}

	dinner, err := h.store.GetDinnerType(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dinner not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	composition, err := h.store.ListDinnerMenuItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list dinner composition: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dinnerDetailResponse{
		dinnerTypeResponse: toDinnerTypeResponse(dinner),
		Composition:        make([]dinnerCompositionResponse, len(composition)),
	}
	for i, c := range composition {
		resp.Composition[i] = dinnerCompositionResponse{
			MenuItemID:      c.MenuItemID,
			DefaultQuantity: c.DefaultQuantity,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListItems handles GET /menu/items.
func (h *MenuHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenuItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, it := range items {
		resp[i] = menuItemResponse{
			ID:     it.ID,
			Name:   it.Name,
			NameEn: it.NameEn,
			Price:  numericToString(it.Price),
		}
		if it.Category.Valid {
			resp[i].Category = &it.Category.String
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": resp})
}

// ListServingStyles handles GET /menu/serving-styles.
func (h *MenuHandler) ListServingStyles(w http.ResponseWriter, r *http.Request) {
	styles, err := h.store.ListServingStyles(r.Context())
	if err != nil {
		log.Printf("ERROR: list serving styles: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]servingStyleResponse, len(styles))
	for i, s := range styles {
		resp[i] = servingStyleResponse{
			Name:       s.Name,
			Multiplier: numericToNumericString(s.Multiplier),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"serving_styles": resp})
}

// numericToNumericString keeps fractional digits, unlike the whole-KRW
// formatting used for prices.
func numericToNumericString(n pgtype.Numeric) string {
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
	return d.String()
}
