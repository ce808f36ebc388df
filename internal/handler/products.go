package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/oilmill/api/internal/service"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]database.ListProductsRow, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	ListProductQuantities(ctx context.Context, productID uuid.UUID) ([]database.ProductQuantity, error)
	CreateProductQuantity(ctx context.Context, arg database.CreateProductQuantityParams) (database.ProductQuantity, error)
	DeleteProductQuantities(ctx context.Context, productID uuid.UUID) error
}

// NewProductStore creates a ProductStore from a DBTX (pool or tx).
type NewProductStore func(db database.DBTX) ProductStore

// ProductHandler handles product endpoints. A product and its quantity
// options are written together in one transaction.
type ProductHandler struct {
	store    ProductStore
	pool     service.TxBeginner
	newStore NewProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, pool service.TxBeginner, newStore NewProductStore) *ProductHandler {
	return &ProductHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers product endpoints on the given Chi router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Get("/products/{id}", h.Get)
	r.Put("/products/{id}", h.Update)
}

type quantityOptionRequest struct {
	Qty               int32  `json:"qty"`
	DisplayName       string `json:"display_name"`
	UnitPrice         string `json:"unit_price"`
	PackingMaterialID string `json:"packing_material_id"`
}

type productRequest struct {
	Kind          string                  `json:"kind"`
	Name          string                  `json:"name"`
	RawMaterialID string                  `json:"raw_material_id"`
	RecoveryRate  string                  `json:"recovery_rate"`
	Quantities    []quantityOptionRequest `json:"quantities"`
}

type quantityOptionResponse struct {
	ID                uuid.UUID  `json:"id"`
	Qty               int32      `json:"qty"`
	DisplayName       string     `json:"display_name,omitempty"`
	UnitPrice         string     `json:"unit_price,omitempty"`
	PackingMaterialID *uuid.UUID `json:"packing_material_id,omitempty"`
}

type productResponse struct {
	ID              uuid.UUID                `json:"id"`
	Kind            string                   `json:"kind"`
	Name            string                   `json:"name"`
	RawMaterialID   uuid.UUID                `json:"raw_material_id"`
	RawMaterialName string                   `json:"raw_material_name,omitempty"`
	RecoveryRate    string                   `json:"recovery_rate"`
	Quantities      []quantityOptionResponse `json:"quantities,omitempty"`
}

type resolvedQuantity struct {
	qty         int32
	displayName pgtype.Text
	unitPrice   pgtype.Numeric
	packingID   pgtype.UUID
}

func (req productRequest) resolve() (database.CreateProductParams, []resolvedQuantity, error) {
	var out database.CreateProductParams
	if req.Name == "" {
		return out, nil, errors.New("name is required")
	}
	if req.Kind != enum.ProductKindOil && req.Kind != enum.ProductKindOther {
		return out, nil, errors.New("invalid kind")
	}
	rawID, err := uuid.Parse(req.RawMaterialID)
	if err != nil {
		return out, nil, errors.New("invalid raw_material_id")
	}
	rate := decimal.Zero
	if req.RecoveryRate != "" {
		rate, err = decimal.NewFromString(req.RecoveryRate)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return out, nil, errors.New("recovery_rate must be between 0 and 100")
		}
	}
	// Consumption math divides by the rate, so oil products need a real one.
	if req.Kind == enum.ProductKindOil && !rate.IsPositive() {
		return out, nil, errors.New("recovery_rate must be greater than 0 for OIL products")
	}
	if len(req.Quantities) == 0 {
		return out, nil, errors.New("at least one quantity option is required")
	}

	// Each (qty, packing material) pair must be unique. The table enforces
	// this too; catching it here gives the client a readable error.
	seen := make(map[string]bool, len(req.Quantities))
	quantities := make([]resolvedQuantity, 0, len(req.Quantities))
	for i, q := range req.Quantities {
		if q.Qty <= 0 {
			return out, nil, fmt.Errorf("quantity option %d: qty must be positive", i+1)
		}
		rq := resolvedQuantity{qty: q.Qty, displayName: textOrNull(q.DisplayName)}
		if q.UnitPrice != "" {
			price, err := decimal.NewFromString(q.UnitPrice)
			if err != nil || price.IsNegative() {
				return out, nil, fmt.Errorf("quantity option %d: invalid unit_price", i+1)
			}
			rq.unitPrice = decimalToNumeric(price)
		}
		key := fmt.Sprintf("%d|", q.Qty)
		if q.PackingMaterialID != "" {
			packID, err := uuid.Parse(q.PackingMaterialID)
			if err != nil {
				return out, nil, fmt.Errorf("quantity option %d: invalid packing_material_id", i+1)
			}
			rq.packingID = pgtype.UUID{Bytes: packID, Valid: true}
			key += packID.String()
		}
		if seen[key] {
			return out, nil, fmt.Errorf("duplicate quantity option for qty %d", q.Qty)
		}
		seen[key] = true
		quantities = append(quantities, rq)
	}

	out = database.CreateProductParams{
		Kind:          req.Kind,
		Name:          req.Name,
		RawMaterialID: rawID,
		RecoveryRate:  decimalToNumeric(rate),
	}
	return out, quantities, nil
}

// List handles GET /products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = dbProductToResponse(p.Product, p.RawMaterialName, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /products/{id}, returning the product with its quantity
// options.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	quantities, err := h.store.ListProductQuantities(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list product quantities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbProductToResponse(product, "", quantities))
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	params, quantities, err := req.resolve()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	product, err := txStore.CreateProduct(r.Context(), params)
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "raw material does not exist"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "product name already exists"})
			return
		}
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	created, err := insertQuantities(r.Context(), txStore, product.ID, quantities)
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "packing material does not exist"})
			return
		}
		log.Printf("ERROR: create product quantities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, dbProductToResponse(product, "", created))
}

// Update handles PUT /products/{id}. Quantity options are replaced
// wholesale: existing sale items keep their stored snapshot, so dropping
// an option never corrupts history.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	params, quantities, err := req.resolve()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for product update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	product, err := txStore.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:            id,
		Kind:          params.Kind,
		Name:          params.Name,
		RawMaterialID: params.RawMaterialID,
		RecoveryRate:  params.RecoveryRate,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "raw material does not exist"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := txStore.DeleteProductQuantities(r.Context(), id); err != nil {
		log.Printf("ERROR: clear product quantities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	created, err := insertQuantities(r.Context(), txStore, id, quantities)
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "packing material does not exist"})
			return
		}
		log.Printf("ERROR: recreate product quantities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit product update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbProductToResponse(product, "", created))
}

func insertQuantities(ctx context.Context, store ProductStore, productID uuid.UUID, quantities []resolvedQuantity) ([]database.ProductQuantity, error) {
	created := make([]database.ProductQuantity, 0, len(quantities))
	for _, q := range quantities {
		row, err := store.CreateProductQuantity(ctx, database.CreateProductQuantityParams{
			ProductID:         productID,
			Qty:               q.qty,
			DisplayName:       q.displayName,
			UnitPrice:         q.unitPrice,
			PackingMaterialID: q.packingID,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, row)
	}
	return created, nil
}

func dbProductToResponse(p database.Product, rawMaterialName string, quantities []database.ProductQuantity) productResponse {
	resp := productResponse{
		ID:              p.ID,
		Kind:            p.Kind,
		Name:            p.Name,
		RawMaterialID:   p.RawMaterialID,
		RawMaterialName: rawMaterialName,
		RecoveryRate:    numericToString(p.RecoveryRate),
	}
	for _, q := range quantities {
		qr := quantityOptionResponse{
			ID:          q.ID,
			Qty:         q.Qty,
			DisplayName: q.DisplayName.String,
		}
		if q.UnitPrice.Valid {
			qr.UnitPrice = numericToString(q.UnitPrice)
		}
		if q.PackingMaterialID.Valid {
			packID := uuid.UUID(q.PackingMaterialID.Bytes)
			qr.PackingMaterialID = &packID
		}
		resp.Quantities = append(resp.Quantities, qr)
	}
	return resp
}
