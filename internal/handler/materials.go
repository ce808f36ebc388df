package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/oilmill/api/internal/service"
	"github.com/shopspring/decimal"
)

// MaterialStore defines the database methods needed by material handlers.
type MaterialStore interface {
	ListRawMaterials(ctx context.Context) ([]database.RawMaterial, error)
	GetRawMaterial(ctx context.Context, id uuid.UUID) (database.RawMaterial, error)
	CreateRawMaterial(ctx context.Context, name string) (database.RawMaterial, error)
	UpdateRawMaterial(ctx context.Context, arg database.UpdateRawMaterialParams) (database.RawMaterial, error)
	DeleteRawMaterial(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	AdjustRawMaterialStock(ctx context.Context, arg database.AdjustRawMaterialStockParams) (database.RawMaterial, error)
	ListPackingMaterials(ctx context.Context) ([]database.PackingMaterial, error)
	GetPackingMaterial(ctx context.Context, id uuid.UUID) (database.PackingMaterial, error)
	CreatePackingMaterial(ctx context.Context, arg database.CreatePackingMaterialParams) (database.PackingMaterial, error)
	UpdatePackingMaterial(ctx context.Context, arg database.UpdatePackingMaterialParams) (database.PackingMaterial, error)
	DeletePackingMaterial(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	AdjustPackingMaterialStock(ctx context.Context, arg database.AdjustPackingMaterialStockParams) (database.PackingMaterial, error)
	CreateMaterialTransaction(ctx context.Context, arg database.CreateMaterialTransactionParams) (database.MaterialTransaction, error)
	ListMaterialTransactions(ctx context.Context, arg database.ListMaterialTransactionsParams) ([]database.MaterialTransaction, error)
}

// NewMaterialStore creates a MaterialStore from a DBTX (pool or tx).
type NewMaterialStore func(db database.DBTX) MaterialStore

// MaterialHandler handles raw/packing material endpoints and the stock
// ledger.
type MaterialHandler struct {
	store    MaterialStore
	pool     service.TxBeginner
	newStore NewMaterialStore
}

// NewMaterialHandler creates a new MaterialHandler.
func NewMaterialHandler(store MaterialStore, pool service.TxBeginner, newStore NewMaterialStore) *MaterialHandler {
	return &MaterialHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers material endpoints on the given Chi router.
func (h *MaterialHandler) RegisterRoutes(r chi.Router) {
	r.Get("/materials/raw", h.ListRaw)
	r.Post("/materials/raw", h.CreateRaw)
	r.Put("/materials/raw/{id}", h.UpdateRaw)
	r.Delete("/materials/raw/{id}", h.DeleteRaw)

	r.Get("/materials/packing", h.ListPacking)
	r.Post("/materials/packing", h.CreatePacking)
	r.Put("/materials/packing/{id}", h.UpdatePacking)
	r.Delete("/materials/packing/{id}", h.DeletePacking)

	r.Get("/materials/{kind}/transactions", h.ListTransactions)
	r.Post("/materials/{kind}/transactions", h.CreateTransaction)
}

// --- Request / Response types ---

type rawMaterialRequest struct {
	Name string `json:"name"`
}

type packingMaterialRequest struct {
	Name     string `json:"name"`
	UnitType string `json:"unit_type"`
	Capacity int32  `json:"capacity"`
}

type materialTxRequest struct {
	MaterialID string `json:"material_id"`
	Type       string `json:"type"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
	Date       string `json:"date"`
	Note       string `json:"note"`
}

type rawMaterialResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CurrentStock string    `json:"current_stock"`
}

type packingMaterialResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	UnitType     string    `json:"unit_type"`
	Capacity     int32     `json:"capacity"`
	CurrentStock int32     `json:"current_stock"`
}

type materialTxResponse struct {
	ID           uuid.UUID `json:"id"`
	MaterialKind string    `json:"material_kind"`
	MaterialID   uuid.UUID `json:"material_id"`
	Type         string    `json:"type"`
	Quantity     string    `json:"quantity"`
	Price        string    `json:"price"`
	Date         string    `json:"date"`
	Note         string    `json:"note,omitempty"`
}

// --- Raw material handlers ---

// ListRaw handles GET /materials/raw.
func (h *MaterialHandler) ListRaw(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.ListRawMaterials(r.Context())
	if err != nil {
		log.Printf("ERROR: list raw materials: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]rawMaterialResponse, len(materials))
	for i, m := range materials {
		resp[i] = dbRawMaterialToResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRaw handles POST /materials/raw. New materials always start at zero
// stock; stock only moves through transactions and sales.
func (h *MaterialHandler) CreateRaw(w http.ResponseWriter, r *http.Request) {
	var req rawMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	material, err := h.store.CreateRawMaterial(r.Context(), req.Name)
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "material name already exists"})
			return
		}
		log.Printf("ERROR: create raw material: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, dbRawMaterialToResponse(material))
}

// UpdateRaw handles PUT /materials/raw/{id}.
func (h *MaterialHandler) UpdateRaw(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid material ID"})
		return
	}
	var req rawMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	material, err := h.store.UpdateRawMaterial(r.Context(), database.UpdateRawMaterialParams{ID: id, Name: req.Name})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "material name already exists"})
			return
		}
		log.Printf("ERROR: update raw material: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbRawMaterialToResponse(material))
}

// DeleteRaw handles DELETE /materials/raw/{id}.
func (h *MaterialHandler) DeleteRaw(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid material ID"})
		return
	}

	if _, err := h.store.DeleteRawMaterial(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "material is referenced by products or transactions"})
			return
		}
		log.Printf("ERROR: delete raw material: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Packing material handlers ---

// ListPacking handles GET /materials/packing.
func (h *MaterialHandler) ListPacking(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.ListPackingMaterials(r.Context())
	if err != nil {
		log.Printf("ERROR: list packing materials: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]packingMaterialResponse, len(materials))
	for i, m := range materials {
		resp[i] = dbPackingMaterialToResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreatePacking handles POST /materials/packing.
func (h *MaterialHandler) CreatePacking(w http.ResponseWriter, r *http.Request) {
	var req packingMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.UnitType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit_type are required"})
		return
	}
	if req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capacity must be positive"})
		return
	}

	material, err := h.store.CreatePackingMaterial(r.Context(), database.CreatePackingMaterialParams{
		Name:     req.Name,
		UnitType: req.UnitType,
		Capacity: req.Capacity,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "material name already exists"})
			return
		}
		log.Printf("ERROR: create packing material: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, dbPackingMaterialToResponse(material))
}

// UpdatePacking handles PUT /materials/packing/{id}.
func (h *MaterialHandler) UpdatePacking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid material ID"})
		return
	}
	var req packingMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.UnitType == "" || req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, unit_type and positive capacity are required"})
		return
	}

	material, err := h.store.UpdatePackingMaterial(r.Context(), database.UpdatePackingMaterialParams{
		ID:       id,
		Name:     req.Name,
		UnitType: req.UnitType,
		Capacity: req.Capacity,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
			return
		}
		log.Printf("ERROR: update packing material: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbPackingMaterialToResponse(material))
}

// DeletePacking handles DELETE /materials/packing/{id}.
func (h *MaterialHandler) DeletePacking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid material ID"})
		return
	}

	if _, err := h.store.DeletePackingMaterial(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "material is referenced by products or transactions"})
			return
		}
		log.Printf("ERROR: delete packing material: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Stock ledger ---

// CreateTransaction handles POST /materials/{kind}/transactions. The ledger
// row and the stock adjustment commit in the same transaction.
func (h *MaterialHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := materialKindParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req materialTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	materialID, err := uuid.Parse(req.MaterialID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid material_id"})
		return
	}
	if req.Type != enum.MaterialTxAdd && req.Type != enum.MaterialTxSubtract {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type"})
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || quantity.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be positive"})
		return
	}
	if kind == enum.MaterialKindPacking && !quantity.IsInteger() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "packing quantity must be a whole number"})
		return
	}
	price := decimal.Zero
	if req.Price != "" {
		price, err = decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
			return
		}
	}
	txDate, err := parseDateQuery(req.Date)
	if err != nil || !txDate.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	delta := quantity
	if req.Type == enum.MaterialTxSubtract {
		delta = quantity.Neg()
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for material transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	// Apply the stock move first so a missing material aborts before the
	// ledger row exists.
	if kind == enum.MaterialKindRaw {
		if _, err := txStore.AdjustRawMaterialStock(r.Context(), database.AdjustRawMaterialStockParams{
			ID:    materialID,
			Delta: decimalToNumeric(delta),
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
				return
			}
			log.Printf("ERROR: adjust raw stock: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	} else {
		if _, err := txStore.AdjustPackingMaterialStock(r.Context(), database.AdjustPackingMaterialStockParams{
			ID:    materialID,
			Delta: int32(delta.IntPart()),
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
				return
			}
			log.Printf("ERROR: adjust packing stock: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	txRow, err := txStore.CreateMaterialTransaction(r.Context(), database.CreateMaterialTransactionParams{
		MaterialKind: kind,
		MaterialID:   materialID,
		TxType:       req.Type,
		Quantity:     decimalToNumeric(delta),
		Price:        decimalToNumeric(price),
		TxDate:       txDate,
		Note:         textOrNull(req.Note),
	})
	if err != nil {
		log.Printf("ERROR: create material transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit material transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbMaterialTxToResponse(txRow))
}

// ListTransactions handles GET /materials/{kind}/transactions with optional
// material_id, type, start_date, and end_date filters.
func (h *MaterialHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	kind, err := materialKindParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	q := r.URL.Query()
	params := database.ListMaterialTransactionsParams{MaterialKind: kind}

	if s := q.Get("material_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid material_id"})
			return
		}
		params.MaterialID = pgtype.UUID{Bytes: id, Valid: true}
	}
	if s := q.Get("type"); s != "" {
		if s != enum.MaterialTxAdd && s != enum.MaterialTxSubtract {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type"})
			return
		}
		params.TxType = pgtype.Text{String: s, Valid: true}
	}
	params.StartDate, err = parseDateQuery(q.Get("start_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date"})
		return
	}
	params.EndDate, err = parseDateQuery(q.Get("end_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date"})
		return
	}

	txs, err := h.store.ListMaterialTransactions(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list material transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]materialTxResponse, len(txs))
	for i, t := range txs {
		resp[i] = dbMaterialTxToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func materialKindParam(r *http.Request) (string, error) {
	switch chi.URLParam(r, "kind") {
	case "raw":
		return enum.MaterialKindRaw, nil
	case "packing":
		return enum.MaterialKindPacking, nil
	}
	return "", errors.New("kind must be raw or packing")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func dbRawMaterialToResponse(m database.RawMaterial) rawMaterialResponse {
	return rawMaterialResponse{ID: m.ID, Name: m.Name, CurrentStock: numericToString(m.CurrentStock)}
}

func dbPackingMaterialToResponse(m database.PackingMaterial) packingMaterialResponse {
	return packingMaterialResponse{
		ID:           m.ID,
		Name:         m.Name,
		UnitType:     m.UnitType,
		Capacity:     m.Capacity,
		CurrentStock: m.CurrentStock,
	}
}

func dbMaterialTxToResponse(t database.MaterialTransaction) materialTxResponse {
	return materialTxResponse{
		ID:           t.ID,
		MaterialKind: t.MaterialKind,
		MaterialID:   t.MaterialID,
		Type:         t.TxType,
		Quantity:     numericToString(t.Quantity),
		Price:        numericToString(t.Price),
		Date:         dateToString(t.TxDate),
		Note:         t.Note.String,
	}
}
