package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
)

// ReportStore defines the database methods needed by reporting handlers.
type ReportStore interface {
	ListPendingSales(ctx context.Context) ([]database.Sale, error)
	ListSaleTransactions(ctx context.Context, status pgtype.Text) ([]database.ListSaleTransactionsRow, error)
	GetSalesHistory(ctx context.Context, arg database.GetSalesHistoryParams) ([]database.GetSalesHistoryRow, error)
	ListDailySummaries(ctx context.Context, arg database.ListDailySummariesParams) ([]database.DailySummary, error)
	ListDailyMaterialUsage(ctx context.Context, date pgtype.Date) ([]database.DailyMaterialUsage, error)
	ListDailyOilSales(ctx context.Context, date pgtype.Date) ([]database.DailyOilSale, error)
}

// ReportHandler serves read-only reporting endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers reporting endpoints on the given Chi router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales/pending", h.PendingSales)
	r.Get("/sales/transactions", h.SaleTransactions)
	r.Get("/sales/history", h.SalesHistory)
	r.Get("/reports/daily-summary", h.DailySummary)
}

type saleTransactionResponse struct {
	ID              uuid.UUID `json:"id"`
	Date            string    `json:"date"`
	CustomerName    string    `json:"customer_name"`
	CustomerMobile  string    `json:"customer_mobile,omitempty"`
	CustomerAddress string    `json:"customer_address,omitempty"`
	TotalAmount     string    `json:"total_amount"`
	RemainingAmount string    `json:"remaining_amount"`
	Status          string    `json:"status"`
	OnlineAmount    string    `json:"online_amount"`
	CashAmount      string    `json:"cash_amount"`
}

type salesHistoryResponse struct {
	Period        string `json:"period"`
	PeriodStart   string `json:"period_start"`
	TotalSales    string `json:"total_sales"`
	TotalPaid     string `json:"total_paid"`
	PendingAmount string `json:"pending_amount"`
	OnlineAmount  string `json:"online_amount"`
	CashAmount    string `json:"cash_amount"`
}

type materialUsageResponse struct {
	MaterialKind string `json:"material_kind"`
	MaterialID   string `json:"material_id"`
	MaterialName string `json:"material_name"`
	Quantity     string `json:"quantity"`
}

type oilSaleResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    string `json:"quantity"`
	Amount      string `json:"amount"`
}

type dailySummaryResponse struct {
	Date            string                  `json:"date"`
	TotalSales      string                  `json:"total_sales"`
	TotalExpenses   string                  `json:"total_expenses"`
	TotalMiscIncome string                  `json:"total_misc_income"`
	PendingAmount   string                  `json:"pending_amount"`
	OnlineAmount    string                  `json:"online_amount"`
	CashAmount      string                  `json:"cash_amount"`
	MaterialUsage   []materialUsageResponse `json:"material_usage"`
	OilSales        []oilSaleResponse       `json:"oil_sales"`
}

// PendingSales handles GET /sales/pending.
func (h *ReportHandler) PendingSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.store.ListPendingSales(r.Context())
	if err != nil {
		log.Printf("ERROR: list pending sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = dbSaleToResponse(s, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaleTransactions handles GET /sales/transactions with an optional
// status filter, returning each sale with its online/cash payment split.
func (h *ReportHandler) SaleTransactions(w http.ResponseWriter, r *http.Request) {
	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if s != enum.SaleStatusPending && s != enum.SaleStatusCompleted {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	rows, err := h.store.ListSaleTransactions(r.Context(), status)
	if err != nil {
		log.Printf("ERROR: list sale transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]saleTransactionResponse, len(rows))
	for i, row := range rows {
		resp[i] = saleTransactionResponse{
			ID:              row.ID,
			Date:            dateToString(row.SaleDate),
			CustomerName:    row.CustomerName,
			CustomerMobile:  row.CustomerMobile.String,
			CustomerAddress: row.CustomerAddress.String,
			TotalAmount:     numericToString(row.TotalAmount),
			RemainingAmount: numericToString(row.RemainingAmount),
			Status:          row.Status,
			OnlineAmount:    numericToString(row.OnlineAmount),
			CashAmount:      numericToString(row.CashAmount),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SalesHistory handles GET /sales/history?group_by=day|month|year with
// optional start_date / end_date bounds.
func (h *ReportHandler) SalesHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var format string
	switch q.Get("group_by") {
	case "", "day":
		format = "YYYY-MM-DD"
	case "month":
		format = "YYYY-MM"
	case "year":
		format = "YYYY"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "group_by must be day, month, or year"})
		return
	}

	params := database.GetSalesHistoryParams{PeriodFormat: format}
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

	rows, err := h.store.GetSalesHistory(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: sales history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]salesHistoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = salesHistoryResponse{
			Period:        row.Period,
			PeriodStart:   dateToString(row.PeriodStart),
			TotalSales:    numericToString(row.TotalSales),
			TotalPaid:     numericToString(row.TotalPaid),
			PendingAmount: numericToString(row.PendingAmount),
			OnlineAmount:  numericToString(row.OnlineAmount),
			CashAmount:    numericToString(row.CashAmount),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DailySummary handles GET /reports/daily-summary. Pass date= for one day
// or start_date/end_date for a range; each day carries its material usage
// and per-product oil totals.
func (h *ReportHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params database.ListDailySummariesParams
	var err error
	params.Date, err = parseDateQuery(q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
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

	summaries, err := h.store.ListDailySummaries(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list daily summaries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		usage, err := h.store.ListDailyMaterialUsage(r.Context(), s.SummaryDate)
		if err != nil {
			log.Printf("ERROR: list material usage: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		oilSales, err := h.store.ListDailyOilSales(r.Context(), s.SummaryDate)
		if err != nil {
			log.Printf("ERROR: list oil sales: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		day := dailySummaryResponse{
			Date:            dateToString(s.SummaryDate),
			TotalSales:      numericToString(s.TotalSales),
			TotalExpenses:   numericToString(s.TotalExpenses),
			TotalMiscIncome: numericToString(s.TotalMiscIncome),
			PendingAmount:   numericToString(s.PendingAmount),
			OnlineAmount:    numericToString(s.OnlineAmount),
			CashAmount:      numericToString(s.CashAmount),
			MaterialUsage:   make([]materialUsageResponse, 0, len(usage)),
			OilSales:        make([]oilSaleResponse, 0, len(oilSales)),
		}
		for _, u := range usage {
			day.MaterialUsage = append(day.MaterialUsage, materialUsageResponse{
				MaterialKind: u.MaterialKind,
				MaterialID:   u.MaterialID.String(),
				MaterialName: u.MaterialName,
				Quantity:     numericToString(u.Quantity),
			})
		}
		for _, o := range oilSales {
			day.OilSales = append(day.OilSales, oilSaleResponse{
				ProductID:   o.ProductID.String(),
				ProductName: o.ProductName,
				Quantity:    numericToString(o.Quantity),
				Amount:      numericToString(o.Amount),
			})
		}
		resp = append(resp, day)
	}
	writeJSON(w, http.StatusOK, resp)
}
