package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/shopspring/decimal"
)

// AuditStore defines the database methods needed by the audit report.
type AuditStore interface {
	ListDailySummaries(ctx context.Context, arg database.ListDailySummariesParams) ([]database.DailySummary, error)
	ListMaterialTransactions(ctx context.Context, arg database.ListMaterialTransactionsParams) ([]database.MaterialTransaction, error)
}

// AuditHandler serves the period audit report: income vs outgo totals for
// tax filing.
type AuditHandler struct {
	store AuditStore
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(store AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// RegisterRoutes registers the audit endpoint on the given Chi router.
func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/audit", h.Audit)
}

type auditResponse struct {
	StartDate               string `json:"start_date,omitempty"`
	EndDate                 string `json:"end_date,omitempty"`
	TotalSales              string `json:"total_sales"`
	TotalCollected          string `json:"total_collected"`
	TotalPending            string `json:"total_pending"`
	TotalOnline             string `json:"total_online"`
	TotalCash               string `json:"total_cash"`
	TotalExpenses           string `json:"total_expenses"`
	TotalMiscIncome         string `json:"total_misc_income"`
	TotalRawMaterialExpense string `json:"total_raw_material_expense"`
	NetIncome               string `json:"net_income"`
}

// Audit handles GET /reports/audit?start_date=&end_date=. Totals come from
// the daily summaries; the raw material expense is the sum of the recorded
// purchase prices of ADD transactions in the period.
func (h *AuditHandler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var start, end pgtype.Date
	var err error
	start, err = parseDateQuery(q.Get("start_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date"})
		return
	}
	end, err = parseDateQuery(q.Get("end_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date"})
		return
	}

	summaries, err := h.store.ListDailySummaries(r.Context(), database.ListDailySummariesParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: audit summaries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var totalSales, totalPending, totalOnline, totalCash, totalExpenses, totalMisc decimal.Decimal
	for _, s := range summaries {
		v, _ := numericToDecimal(s.TotalSales)
		totalSales = totalSales.Add(v)
		v, _ = numericToDecimal(s.PendingAmount)
		totalPending = totalPending.Add(v)
		v, _ = numericToDecimal(s.OnlineAmount)
		totalOnline = totalOnline.Add(v)
		v, _ = numericToDecimal(s.CashAmount)
		totalCash = totalCash.Add(v)
		v, _ = numericToDecimal(s.TotalExpenses)
		totalExpenses = totalExpenses.Add(v)
		v, _ = numericToDecimal(s.TotalMiscIncome)
		totalMisc = totalMisc.Add(v)
	}

	// Purchases record the total paid per transaction in price, so the
	// prices sum directly without multiplying by quantity.
	purchases, err := h.store.ListMaterialTransactions(r.Context(), database.ListMaterialTransactionsParams{
		MaterialKind: enum.MaterialKindRaw,
		TxType:       pgtype.Text{String: enum.MaterialTxAdd, Valid: true},
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		log.Printf("ERROR: audit purchases: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var rawExpense decimal.Decimal
	for _, p := range purchases {
		v, _ := numericToDecimal(p.Price)
		rawExpense = rawExpense.Add(v)
	}

	collected := totalOnline.Add(totalCash)
	net := collected.Add(totalMisc).Sub(totalExpenses).Sub(rawExpense)

	writeJSON(w, http.StatusOK, auditResponse{
		StartDate:               dateToString(start),
		EndDate:                 dateToString(end),
		TotalSales:              totalSales.StringFixed(2),
		TotalCollected:          collected.StringFixed(2),
		TotalPending:            totalPending.StringFixed(2),
		TotalOnline:             totalOnline.StringFixed(2),
		TotalCash:               totalCash.StringFixed(2),
		TotalExpenses:           totalExpenses.StringFixed(2),
		TotalMiscIncome:         totalMisc.StringFixed(2),
		TotalRawMaterialExpense: rawExpense.StringFixed(2),
		NetIncome:               net.StringFixed(2),
	})
}
