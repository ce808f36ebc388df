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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/oilmill/api/internal/service"
	"github.com/shopspring/decimal"
)

// MiscIncomeStore defines the database methods needed by misc income
// handlers.
type MiscIncomeStore interface {
	ListMiscIncomes(ctx context.Context, arg database.ListMiscIncomesParams) ([]database.MiscIncome, error)
	GetMiscIncome(ctx context.Context, id uuid.UUID) (database.MiscIncome, error)
	CreateMiscIncome(ctx context.Context, arg database.CreateMiscIncomeParams) (database.MiscIncome, error)
	UpdateMiscIncome(ctx context.Context, arg database.UpdateMiscIncomeParams) (database.MiscIncome, error)
	DeleteMiscIncome(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	UpsertDailySummary(ctx context.Context, arg database.UpsertDailySummaryParams) (database.DailySummary, error)
}

// NewMiscIncomeStore creates a MiscIncomeStore from a DBTX (pool or tx).
type NewMiscIncomeStore func(db database.DBTX) MiscIncomeStore

// MiscIncomeHandler handles income outside of sales: scrap, oil cake,
// interest, and the like. Mutations keep the daily summary in step.
type MiscIncomeHandler struct {
	store    MiscIncomeStore
	pool     service.TxBeginner
	newStore NewMiscIncomeStore
}

// NewMiscIncomeHandler creates a new MiscIncomeHandler.
func NewMiscIncomeHandler(store MiscIncomeStore, pool service.TxBeginner, newStore NewMiscIncomeStore) *MiscIncomeHandler {
	return &MiscIncomeHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers misc income endpoints on the given Chi router.
func (h *MiscIncomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/misc-incomes", h.List)
	r.Post("/misc-incomes", h.Create)
	r.Get("/misc-incomes/{id}", h.Get)
	r.Put("/misc-incomes/{id}", h.Update)
	r.Delete("/misc-incomes/{id}", h.Delete)
}

type miscIncomeRequest struct {
	Title         string `json:"title"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Note          string `json:"note"`
}

type miscIncomeResponse struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Date          string    `json:"date"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	Note          string    `json:"note,omitempty"`
}

func (req miscIncomeRequest) validate() (decimal.Decimal, error) {
	if req.Title == "" {
		return decimal.Zero, errors.New("title is required")
	}
	if req.PaymentMethod != enum.PaymentMethodOnline && req.PaymentMethod != enum.PaymentMethodCash {
		return decimal.Zero, errors.New("invalid payment_method")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New("amount must be positive")
	}
	return amount, nil
}

// List handles GET /misc-incomes with optional start_date / end_date filters.
func (h *MiscIncomeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params database.ListMiscIncomesParams
	var err error
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

	incomes, err := h.store.ListMiscIncomes(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list misc incomes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]miscIncomeResponse, len(incomes))
	for i, m := range incomes {
		resp[i] = dbMiscIncomeToResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /misc-incomes/{id}.
func (h *MiscIncomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid income ID"})
		return
	}
	income, err := h.store.GetMiscIncome(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "income not found"})
			return
		}
		log.Printf("ERROR: get misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbMiscIncomeToResponse(income))
}

// Create handles POST /misc-incomes.
func (h *MiscIncomeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req miscIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, err := req.validate()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	date, err := parseDateQuery(req.Date)
	if err != nil || !date.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	income, err := txStore.CreateMiscIncome(r.Context(), database.CreateMiscIncomeParams{
		Title:         req.Title,
		IncomeDate:    date,
		Amount:        decimalToNumeric(amount),
		PaymentMethod: req.PaymentMethod,
		Note:          textOrNull(req.Note),
	})
	if err != nil {
		log.Printf("ERROR: create misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := shiftSummaryMiscIncome(r.Context(), txStore, date, amount); err != nil {
		log.Printf("ERROR: update summary for misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, dbMiscIncomeToResponse(income))
}

// Update handles PUT /misc-incomes/{id}.
func (h *MiscIncomeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid income ID"})
		return
	}
	var req miscIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, err := req.validate()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	date, err := parseDateQuery(req.Date)
	if err != nil || !date.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for misc income update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	existing, err := txStore.GetMiscIncome(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "income not found"})
			return
		}
		log.Printf("ERROR: get misc income for update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	income, err := txStore.UpdateMiscIncome(r.Context(), database.UpdateMiscIncomeParams{
		ID:            id,
		Title:         req.Title,
		IncomeDate:    date,
		Amount:        decimalToNumeric(amount),
		PaymentMethod: req.PaymentMethod,
		Note:          textOrNull(req.Note),
	})
	if err != nil {
		log.Printf("ERROR: update misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	oldAmount, _ := numericToDecimal(existing.Amount)
	if err := shiftSummaryMiscIncome(r.Context(), txStore, existing.IncomeDate, oldAmount.Neg()); err != nil {
		log.Printf("ERROR: reverse summary for misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := shiftSummaryMiscIncome(r.Context(), txStore, date, amount); err != nil {
		log.Printf("ERROR: apply summary for misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit misc income update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbMiscIncomeToResponse(income))
}

// Delete handles DELETE /misc-incomes/{id}.
func (h *MiscIncomeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid income ID"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for misc income delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	existing, err := txStore.GetMiscIncome(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "income not found"})
			return
		}
		log.Printf("ERROR: get misc income for delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := txStore.DeleteMiscIncome(r.Context(), id); err != nil {
		log.Printf("ERROR: delete misc income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	amount, _ := numericToDecimal(existing.Amount)
	if err := shiftSummaryMiscIncome(r.Context(), txStore, existing.IncomeDate, amount.Neg()); err != nil {
		log.Printf("ERROR: reverse summary for misc income delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit misc income delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func shiftSummaryMiscIncome(ctx context.Context, store MiscIncomeStore, date pgtype.Date, delta decimal.Decimal) error {
	zero := decimalToNumeric(decimal.Zero)
	_, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
		SummaryDate:     date,
		TotalSales:      zero,
		TotalExpenses:   zero,
		TotalMiscIncome: decimalToNumeric(delta),
		PendingAmount:   zero,
		OnlineAmount:    zero,
		CashAmount:      zero,
	})
	return err
}

func dbMiscIncomeToResponse(m database.MiscIncome) miscIncomeResponse {
	return miscIncomeResponse{
		ID:            m.ID,
		Title:         m.Title,
		Date:          dateToString(m.IncomeDate),
		Amount:        numericToString(m.Amount),
		PaymentMethod: m.PaymentMethod,
		Note:          m.Note.String,
	}
}
