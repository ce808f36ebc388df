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
	"github.com/oilmill/api/internal/ws"
	"github.com/shopspring/decimal"
)

// PaymentStore defines the database methods needed by payment handlers.
type PaymentStore interface {
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]database.SalePayment, error)
	CreateSalePayment(ctx context.Context, arg database.CreateSalePaymentParams) (database.SalePayment, error)
	SumSalePayments(ctx context.Context, saleID uuid.UUID) (pgtype.Numeric, error)
	UpdateSalePaymentState(ctx context.Context, arg database.UpdateSalePaymentStateParams) (database.Sale, error)
	UpsertDailySummary(ctx context.Context, arg database.UpsertDailySummaryParams) (database.DailySummary, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store    PaymentStore
	pool     service.TxBeginner
	newStore NewPaymentStore
	hub      *ws.Hub
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, pool service.TxBeginner, newStore NewPaymentStore, hub *ws.Hub) *PaymentHandler {
	return &PaymentHandler{store: store, pool: pool, newStore: newStore, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sales/{id}/payment", h.Add)
	r.Get("/sales/{id}/payments", h.List)
}

// --- Request / Response types ---

type addPaymentRequest struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

type paymentResponse struct {
	ID     uuid.UUID `json:"id"`
	SaleID uuid.UUID `json:"sale_id"`
	Method string    `json:"method"`
	Amount string    `json:"amount"`
	PaidOn string    `json:"paid_on"`
}

// --- Handlers ---

// Add handles POST /sales/{id}/payment. The payment lands on the sale's own
// summary date regardless of when it is received.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	var req addPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Method != enum.PaymentMethodOnline && req.Method != enum.PaymentMethodCash {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid method"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	paidOn, err := parseDateQuery(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
	}

	// Begin transaction BEFORE reading sale state to prevent TOCTOU races.
	// Two concurrent payments could both pass validation outside a tx,
	// causing overpayment.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	// Lock the sale row (FOR NO KEY UPDATE) to serialize concurrent payments.
	sale, err := txStore.GetSaleForUpdate(r.Context(), saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: get sale for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	remaining, _ := numericToDecimal(sale.RemainingAmount)
	if remaining.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sale is already fully paid"})
		return
	}
	if amount.GreaterThan(remaining) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment exceeds remaining balance"})
		return
	}

	if !paidOn.Valid {
		paidOn = sale.SaleDate
	}

	payment, err := txStore.CreateSalePayment(r.Context(), database.CreateSalePaymentParams{
		SaleID: saleID,
		Method: req.Method,
		Amount: decimalToNumeric(amount),
		PaidOn: paidOn,
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	newRemaining := remaining.Sub(amount)
	status := enum.SaleStatusPending
	if newRemaining.LessThanOrEqual(decimal.Zero) {
		status = enum.SaleStatusCompleted
	}
	updatedSale, err := txStore.UpdateSalePaymentState(r.Context(), database.UpdateSalePaymentStateParams{
		ID:              saleID,
		RemainingAmount: decimalToNumeric(newRemaining),
		Status:          status,
	})
	if err != nil {
		log.Printf("ERROR: update sale payment state: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Credit the method total and release pending on the sale's date.
	online, cash := decimal.Zero, decimal.Zero
	if req.Method == enum.PaymentMethodOnline {
		online = amount
	} else {
		cash = amount
	}
	if _, err := txStore.UpsertDailySummary(r.Context(), database.UpsertDailySummaryParams{
		SummaryDate:     sale.SaleDate,
		TotalSales:      decimalToNumeric(decimal.Zero),
		TotalExpenses:   decimalToNumeric(decimal.Zero),
		TotalMiscIncome: decimalToNumeric(decimal.Zero),
		PendingAmount:   decimalToNumeric(amount.Neg()),
		OnlineAmount:    decimalToNumeric(online),
		CashAmount:      decimalToNumeric(cash),
	}); err != nil {
		log.Printf("ERROR: upsert daily summary for payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := map[string]interface{}{
		"payment": dbPaymentToResponse(payment),
		"sale":    dbSaleToResponse(updatedSale, nil),
	}
	if h.hub != nil {
		if data, err := json.Marshal(resp); err == nil {
			h.hub.Broadcast(ws.Event{Type: "payment.added", Payload: data})
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /sales/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	if _, err := h.store.GetSale(r.Context(), saleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: get sale for list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListSalePayments(r.Context(), saleID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func dbPaymentToResponse(p database.SalePayment) paymentResponse {
	return paymentResponse{
		ID:     p.ID,
		SaleID: p.SaleID,
		Method: p.Method,
		Amount: numericToString(p.Amount),
		PaidOn: dateToString(p.PaidOn),
	}
}
