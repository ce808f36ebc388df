package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/handler"
)

type mockExpenseStore struct {
	expenses  map[uuid.UUID]database.Expense
	summaries []database.UpsertDailySummaryParams
}

func newMockExpenseStore() *mockExpenseStore {
	return &mockExpenseStore{expenses: make(map[uuid.UUID]database.Expense)}
}

func (m *mockExpenseStore) ListExpenses(ctx context.Context, arg database.ListExpensesParams) ([]database.Expense, error) {
	out := make([]database.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockExpenseStore) GetExpense(ctx context.Context, id uuid.UUID) (database.Expense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return database.Expense{}, pgx.ErrNoRows
	}
	return e, nil
}

func (m *mockExpenseStore) CreateExpense(ctx context.Context, arg database.CreateExpenseParams) (database.Expense, error) {
	e := database.Expense{
		ID:          uuid.New(),
		Name:        arg.Name,
		ExpenseDate: arg.ExpenseDate,
		Amount:      arg.Amount,
		Note:        arg.Note,
	}
	m.expenses[e.ID] = e
	return e, nil
}

func (m *mockExpenseStore) UpdateExpense(ctx context.Context, arg database.UpdateExpenseParams) (database.Expense, error) {
	e, ok := m.expenses[arg.ID]
	if !ok {
		return database.Expense{}, pgx.ErrNoRows
	}
	e.Name = arg.Name
	e.ExpenseDate = arg.ExpenseDate
	e.Amount = arg.Amount
	e.Note = arg.Note
	m.expenses[arg.ID] = e
	return e, nil
}

func (m *mockExpenseStore) DeleteExpense(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.expenses[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.expenses, id)
	return id, nil
}

func (m *mockExpenseStore) UpsertDailySummary(ctx context.Context, arg database.UpsertDailySummaryParams) (database.DailySummary, error) {
	m.summaries = append(m.summaries, arg)
	return database.DailySummary{}, nil
}

func expenseTestServer(store *mockExpenseStore) (*chi.Mux, *mockTxBeginner) {
	pool := &mockTxBeginner{}
	r := chi.NewRouter()
	h := handler.NewExpenseHandler(store, pool, func(db database.DBTX) handler.ExpenseStore { return store })
	h.RegisterRoutes(r)
	return r, pool
}

func TestCreateExpense(t *testing.T) {
	store := newMockExpenseStore()
	srv, pool := expenseTestServer(store)

	body := []byte(`{"name":"Electricity","date":"2025-03-10","amount":"1200.00","note":"march bill"}`)
	req := httptest.NewRequest(http.MethodPost, "/expenses", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !pool.tx.committed {
		t.Error("expected transaction to commit")
	}
	if len(store.summaries) != 1 {
		t.Fatalf("expected one summary upsert, got %d", len(store.summaries))
	}
	if !numericEquals(t, store.summaries[0].TotalExpenses, "1200.00") {
		t.Errorf("expected expense delta 1200.00, got %v", store.summaries[0].TotalExpenses)
	}
	if !numericEquals(t, store.summaries[0].TotalSales, "0.00") {
		t.Errorf("expected zero sales delta, got %v", store.summaries[0].TotalSales)
	}
}

func TestCreateExpenseRejectsZeroAmount(t *testing.T) {
	srv, _ := expenseTestServer(newMockExpenseStore())

	body := []byte(`{"name":"Electricity","date":"2025-03-10","amount":"0"}`)
	req := httptest.NewRequest(http.MethodPost, "/expenses", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateExpenseMovesSummary(t *testing.T) {
	store := newMockExpenseStore()
	e, _ := store.CreateExpense(context.Background(), database.CreateExpenseParams{
		Name:        "Electricity",
		ExpenseDate: makeDate(t, "2025-03-10"),
		Amount:      makeNumeric(t, "1200.00"),
	})
	srv, _ := expenseTestServer(store)

	body := []byte(`{"name":"Electricity","date":"2025-03-12","amount":"900.00"}`)
	req := httptest.NewRequest(http.MethodPut, "/expenses/"+e.ID.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.summaries) != 2 {
		t.Fatalf("expected two summary upserts, got %d", len(store.summaries))
	}
	reverse, apply := store.summaries[0], store.summaries[1]
	if reverse.SummaryDate != makeDate(t, "2025-03-10") || !numericEquals(t, reverse.TotalExpenses, "-1200.00") {
		t.Errorf("expected -1200.00 on 2025-03-10, got %v on %v", reverse.TotalExpenses, reverse.SummaryDate)
	}
	if apply.SummaryDate != makeDate(t, "2025-03-12") || !numericEquals(t, apply.TotalExpenses, "900.00") {
		t.Errorf("expected 900.00 on 2025-03-12, got %v on %v", apply.TotalExpenses, apply.SummaryDate)
	}
}

func TestDeleteExpenseReversesSummary(t *testing.T) {
	store := newMockExpenseStore()
	e, _ := store.CreateExpense(context.Background(), database.CreateExpenseParams{
		Name:        "Electricity",
		ExpenseDate: makeDate(t, "2025-03-10"),
		Amount:      makeNumeric(t, "1200.00"),
	})
	srv, _ := expenseTestServer(store)

	req := httptest.NewRequest(http.MethodDelete, "/expenses/"+e.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := store.expenses[e.ID]; ok {
		t.Error("expected expense to be deleted")
	}
	if len(store.summaries) != 1 || !numericEquals(t, store.summaries[0].TotalExpenses, "-1200.00") {
		t.Errorf("expected reversal of 1200.00, got %+v", store.summaries)
	}
}

func TestExpenseNotFound(t *testing.T) {
	srv, _ := expenseTestServer(newMockExpenseStore())

	req := httptest.NewRequest(http.MethodGet, "/expenses/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListExpenses(t *testing.T) {
	store := newMockExpenseStore()
	_, _ = store.CreateExpense(context.Background(), database.CreateExpenseParams{
		Name:        "Electricity",
		ExpenseDate: makeDate(t, "2025-03-10"),
		Amount:      makeNumeric(t, "1200.00"),
	})
	srv, _ := expenseTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/expenses", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []struct {
		Name   string `json:"name"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Amount != "1200.00" {
		t.Fatalf("unexpected expenses: %+v", resp)
	}
}
