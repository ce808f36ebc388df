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
	"github.com/oilmill/api/internal/service"
	"github.com/shopspring/decimal"
)

// ExpenseStore defines the database methods needed by expense handlers.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, arg database.ListExpensesParams) ([]database.Expense, error)
	GetExpense(ctx context.Context, id uuid.UUID) (database.Expense, error)
	CreateExpense(ctx context.Context, arg database.CreateExpenseParams) (database.Expense, error)
	UpdateExpense(ctx context.Context, arg database.UpdateExpenseParams) (database.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	UpsertDailySummary(ctx context.Context, arg database.UpsertDailySummaryParams) (database.DailySummary, error)
}

// NewExpenseStore creates an ExpenseStore from a DBTX (pool or tx).
type NewExpenseStore func(db database.DBTX) ExpenseStore

// ExpenseHandler handles expense endpoints. Every mutation keeps the
// daily summary's expense total in step inside the same transaction.
type ExpenseHandler struct {
	store    ExpenseStore
	pool     service.TxBeginner
	newStore NewExpenseStore
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(store ExpenseStore, pool service.TxBeginner, newStore NewExpenseStore) *ExpenseHandler {
	return &ExpenseHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers expense endpoints on the given Chi router.
func (h *ExpenseHandler) RegisterRoutes(r chi.Router) {
	r.Get("/expenses", h.List)
	r.Post("/expenses", h.Create)
	r.Get("/expenses/{id}", h.Get)
	r.Put("/expenses/{id}", h.Update)
	r.Delete("/expenses/{id}", h.Delete)
}

type expenseRequest struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

type expenseResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Date   string    `json:"date"`
	Amount string    `json:"amount"`
	Note   string    `json:"note,omitempty"`
}

func (req expenseRequest) validate() (decimal.Decimal, error) {
	if req.Name == "" {
		return decimal.Zero, errors.New("name is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New("amount must be positive")
	}
	return amount, nil
}

// List handles GET /expenses with optional start_date / end_date filters.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params database.ListExpensesParams
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

	expenses, err := h.store.ListExpenses(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list expenses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		resp[i] = dbExpenseToResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /expenses/{id}.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expense ID"})
		return
	}
	expense, err := h.store.GetExpense(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "expense not found"})
			return
		}
		log.Printf("ERROR: get expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbExpenseToResponse(expense))
}

// Create handles POST /expenses.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
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
		log.Printf("ERROR: begin tx for expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	expense, err := txStore.CreateExpense(r.Context(), database.CreateExpenseParams{
		Name:        req.Name,
		ExpenseDate: date,
		Amount:      decimalToNumeric(amount),
		Note:        textOrNull(req.Note),
	})
	if err != nil {
		log.Printf("ERROR: create expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := shiftSummaryExpenses(r.Context(), txStore, date, amount); err != nil {
		log.Printf("ERROR: update summary for expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, dbExpenseToResponse(expense))
}

// Update handles PUT /expenses/{id}. The old amount is backed out of the
// original date's summary and the new amount applied to the new date's.
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expense ID"})
		return
	}
	var req expenseRequest
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
		log.Printf("ERROR: begin tx for expense update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	existing, err := txStore.GetExpense(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "expense not found"})
			return
		}
		log.Printf("ERROR: get expense for update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	expense, err := txStore.UpdateExpense(r.Context(), database.UpdateExpenseParams{
		ID:          id,
		Name:        req.Name,
		ExpenseDate: date,
		Amount:      decimalToNumeric(amount),
		Note:        textOrNull(req.Note),
	})
	if err != nil {
		log.Printf("ERROR: update expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	oldAmount, _ := numericToDecimal(existing.Amount)
	if err := shiftSummaryExpenses(r.Context(), txStore, existing.ExpenseDate, oldAmount.Neg()); err != nil {
		log.Printf("ERROR: reverse summary for expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := shiftSummaryExpenses(r.Context(), txStore, date, amount); err != nil {
		log.Printf("ERROR: apply summary for expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit expense update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbExpenseToResponse(expense))
}

// Delete handles DELETE /expenses/{id}.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expense ID"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for expense delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)
	existing, err := txStore.GetExpense(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "expense not found"})
			return
		}
		log.Printf("ERROR: get expense for delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := txStore.DeleteExpense(r.Context(), id); err != nil {
		log.Printf("ERROR: delete expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	amount, _ := numericToDecimal(existing.Amount)
	if err := shiftSummaryExpenses(r.Context(), txStore, existing.ExpenseDate, amount.Neg()); err != nil {
		log.Printf("ERROR: reverse summary for expense delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit expense delete: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func shiftSummaryExpenses(ctx context.Context, store ExpenseStore, date pgtype.Date, delta decimal.Decimal) error {
	zero := decimalToNumeric(decimal.Zero)
	_, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
		SummaryDate:     date,
		TotalSales:      zero,
		TotalExpenses:   decimalToNumeric(delta),
		TotalMiscIncome: zero,
		PendingAmount:   zero,
		OnlineAmount:    zero,
		CashAmount:      zero,
	})
	return err
}

func dbExpenseToResponse(e database.Expense) expenseResponse {
	return expenseResponse{
		ID:     e.ID,
		Name:   e.Name,
		Date:   dateToString(e.ExpenseDate),
		Amount: numericToString(e.Amount),
		Note:   e.Note.String,
	}
}
