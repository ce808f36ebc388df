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
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/service"
	"github.com/oilmill/api/internal/ws"
	"github.com/shopspring/decimal"
)

// SaleReadStore defines the read-only database methods for sale endpoints.
type SaleReadStore interface {
	ListSales(ctx context.Context) ([]database.Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]database.SalePayment, error)
}

// SaleMutator runs the sale lifecycle transactions. Satisfied by
// *service.SaleService.
type SaleMutator interface {
	CreateSale(ctx context.Context, req service.CreateSaleRequest) (*service.SaleResult, error)
	UpdateSale(ctx context.Context, req service.UpdateSaleRequest) (*service.SaleResult, error)
	DeleteSale(ctx context.Context, id uuid.UUID, version int32) error
}

// SaleHandler handles sale endpoints.
type SaleHandler struct {
	store   SaleReadStore
	mutator SaleMutator
	hub     *ws.Hub
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(store SaleReadStore, mutator SaleMutator, hub *ws.Hub) *SaleHandler {
	return &SaleHandler{store: store, mutator: mutator, hub: hub}
}

// RegisterRoutes registers sale endpoints on the given Chi router.
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.List)
	r.Post("/sales", h.Create)
	r.Get("/sales/{id}", h.Get)
	r.Put("/sales/{id}", h.Update)
	r.Delete("/sales/{id}", h.Delete)
}

// --- Request / Response types ---

type saleLineRequest struct {
	ProductID         string `json:"product_id"`
	Qty               int32  `json:"qty"`
	Units             int32  `json:"units"`
	UsesPackaging     bool   `json:"uses_packaging"`
	PackingMaterialID string `json:"packing_material_id"`
	LineTotal         string `json:"line_total"`
	Discount          string `json:"discount"`
}

type createSaleRequest struct {
	SaleDate        string            `json:"sale_date"`
	CustomerName    string            `json:"customer_name"`
	CustomerMobile  string            `json:"customer_mobile"`
	CustomerAddress string            `json:"customer_address"`
	DeliveryType    string            `json:"delivery_type"`
	CourierPrice    string            `json:"courier_price"`
	OnlineAmount    string            `json:"online_amount"`
	CashAmount      string            `json:"cash_amount"`
	Items           []saleLineRequest `json:"items"`
}

type updateSaleRequest struct {
	createSaleRequest
	Version            int32 `json:"version"`
	SkipMaterialUpdate bool  `json:"skip_material_update"`
}

type saleItemResponse struct {
	ID                uuid.UUID  `json:"id"`
	ProductID         uuid.UUID  `json:"product_id"`
	ProductKind       string     `json:"product_kind"`
	ProductName       string     `json:"product_name"`
	Qty               int32      `json:"qty"`
	Units             int32      `json:"units"`
	UsesPackaging     bool       `json:"uses_packaging"`
	PackingMaterialID *uuid.UUID `json:"packing_material_id,omitempty"`
	LineTotal         string     `json:"line_total"`
	Discount          string     `json:"discount"`
	FinalPrice        string     `json:"final_price"`
}

type saleResponse struct {
	ID              uuid.UUID          `json:"id"`
	SaleDate        string             `json:"sale_date"`
	CustomerName    string             `json:"customer_name"`
	CustomerMobile  string             `json:"customer_mobile,omitempty"`
	CustomerAddress string             `json:"customer_address,omitempty"`
	DeliveryType    string             `json:"delivery_type"`
	CourierPrice    string             `json:"courier_price"`
	TotalAmount     string             `json:"total_amount"`
	RemainingAmount string             `json:"remaining_amount"`
	Status          string             `json:"status"`
	Version         int32              `json:"version"`
	Items           []saleItemResponse `json:"items,omitempty"`
}

// --- Handlers ---

// List handles GET /sales.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	sales, err := h.store.ListSales(r.Context())
	if err != nil {
		log.Printf("ERROR: list sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = dbSaleToResponse(s, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /sales/{id}.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	sale, err := h.store.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: get sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSaleItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list sale items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbSaleToResponse(sale, items))
}

// Create handles POST /sales.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.mutator.CreateSale(r.Context(), toServiceRequest(req))
	if err != nil {
		respondSaleError(w, err, "create sale")
		return
	}

	resp := dbSaleToResponse(result.Sale, result.Items)
	h.broadcast("sale.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// Update handles PUT /sales/{id}.
func (h *SaleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	var req updateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.mutator.UpdateSale(r.Context(), service.UpdateSaleRequest{
		ID:                 id,
		Version:            req.Version,
		SkipMaterialUpdate: req.SkipMaterialUpdate,
		CreateSaleRequest:  toServiceRequest(req.createSaleRequest),
	})
	if err != nil {
		respondSaleError(w, err, "update sale")
		return
	}

	resp := dbSaleToResponse(result.Sale, result.Items)
	h.broadcast("sale.updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /sales/{id}?version=N.
func (h *SaleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "version query parameter is required"})
		return
	}

	if err := h.mutator.DeleteSale(r.Context(), id, int32(version)); err != nil {
		respondSaleError(w, err, "delete sale")
		return
	}

	h.broadcast("sale.deleted", map[string]uuid.UUID{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func toServiceRequest(req createSaleRequest) service.CreateSaleRequest {
	out := service.CreateSaleRequest{
		SaleDate:        req.SaleDate,
		CustomerName:    req.CustomerName,
		CustomerMobile:  req.CustomerMobile,
		CustomerAddress: req.CustomerAddress,
		DeliveryType:    req.DeliveryType,
		CourierPrice:    req.CourierPrice,
		OnlineAmount:    req.OnlineAmount,
		CashAmount:      req.CashAmount,
	}
	for _, item := range req.Items {
		out.Items = append(out.Items, service.SaleLineRequest{
			ProductID:         item.ProductID,
			Qty:               item.Qty,
			Units:             item.Units,
			UsesPackaging:     item.UsesPackaging,
			PackingMaterialID: item.PackingMaterialID,
			LineTotal:         item.LineTotal,
			Discount:          item.Discount,
		})
	}
	return out
}

// respondSaleError maps service errors to HTTP statuses. Validation failures
// are 400s, missing sales 404, stale versions 409.
func respondSaleError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrSaleNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
	case errors.Is(err, service.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrCustomerName),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidSaleDate),
		errors.Is(err, service.ErrInvalidDeliveryType),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidPackingID),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrNegativeAmount),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrConfigMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *SaleHandler) broadcast(eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.Broadcast(ws.Event{Type: eventType, Payload: data})
}

func dbSaleToResponse(s database.Sale, items []database.SaleItem) saleResponse {
	resp := saleResponse{
		ID:              s.ID,
		SaleDate:        dateToString(s.SaleDate),
		CustomerName:    s.CustomerName,
		CustomerMobile:  s.CustomerMobile.String,
		CustomerAddress: s.CustomerAddress.String,
		DeliveryType:    s.DeliveryType,
		CourierPrice:    numericToString(s.CourierPrice),
		TotalAmount:     numericToString(s.TotalAmount),
		RemainingAmount: numericToString(s.RemainingAmount),
		Status:          s.Status,
		Version:         s.Version,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, dbSaleItemToResponse(item))
	}
	return resp
}

func dbSaleItemToResponse(item database.SaleItem) saleItemResponse {
	var packingID *uuid.UUID
	if item.PackingMaterialID.Valid {
		id := uuid.UUID(item.PackingMaterialID.Bytes)
		packingID = &id
	}
	return saleItemResponse{
		ID:                item.ID,
		ProductID:         item.ProductID,
		ProductKind:       item.ProductKind,
		ProductName:       item.ProductName,
		Qty:               item.Qty,
		Units:             item.Units,
		UsesPackaging:     item.UsesPackaging,
		PackingMaterialID: packingID,
		LineTotal:         numericToString(item.LineTotal),
		Discount:          numericToString(item.Discount),
		FinalPrice:        numericToString(item.FinalPrice),
	}
}

// --- Shared conversion helpers ---

const dateLayout = "2006-01-02"

func dateToString(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

// parseDateQuery parses an optional YYYY-MM-DD query parameter. Empty input
// yields a NULL date.
func parseDateQuery(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func numericToString(n pgtype.Numeric) string {
	d, ok := numericToDecimal(n)
	if !ok {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, bool) {
	if !n.Valid {
		return decimal.Zero, false
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
