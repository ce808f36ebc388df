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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/oilmill/api/internal/handler"
	"github.com/shopspring/decimal"
)

type mockMaterialStore struct {
	raw       map[uuid.UUID]database.RawMaterial
	packing   map[uuid.UUID]database.PackingMaterial
	txs       []database.MaterialTransaction
	inUse     map[uuid.UUID]bool
	nameTaken map[string]bool
}

func newMockMaterialStore() *mockMaterialStore {
	return &mockMaterialStore{
		raw:       make(map[uuid.UUID]database.RawMaterial),
		packing:   make(map[uuid.UUID]database.PackingMaterial),
		inUse:     make(map[uuid.UUID]bool),
		nameTaken: make(map[string]bool),
	}
}

func (m *mockMaterialStore) ListRawMaterials(ctx context.Context) ([]database.RawMaterial, error) {
	out := make([]database.RawMaterial, 0, len(m.raw))
	for _, r := range m.raw {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockMaterialStore) GetRawMaterial(ctx context.Context, id uuid.UUID) (database.RawMaterial, error) {
	r, ok := m.raw[id]
	if !ok {
		return database.RawMaterial{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockMaterialStore) CreateRawMaterial(ctx context.Context, name string) (database.RawMaterial, error) {
	if m.nameTaken[name] {
		return database.RawMaterial{}, &pgconn.PgError{Code: "23505"}
	}
	r := database.RawMaterial{ID: uuid.New(), Name: name, CurrentStock: makeZeroNumeric()}
	m.raw[r.ID] = r
	m.nameTaken[name] = true
	return r, nil
}

func (m *mockMaterialStore) UpdateRawMaterial(ctx context.Context, arg database.UpdateRawMaterialParams) (database.RawMaterial, error) {
	r, ok := m.raw[arg.ID]
	if !ok {
		return database.RawMaterial{}, pgx.ErrNoRows
	}
	r.Name = arg.Name
	m.raw[arg.ID] = r
	return r, nil
}

func (m *mockMaterialStore) DeleteRawMaterial(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.raw[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	if m.inUse[id] {
		return uuid.Nil, &pgconn.PgError{Code: "23503"}
	}
	delete(m.raw, id)
	return id, nil
}

func (m *mockMaterialStore) AdjustRawMaterialStock(ctx context.Context, arg database.AdjustRawMaterialStockParams) (database.RawMaterial, error) {
	r, ok := m.raw[arg.ID]
	if !ok {
		return database.RawMaterial{}, pgx.ErrNoRows
	}
	cur := mustDecimal(r.CurrentStock)
	delta := mustDecimal(arg.Delta)
	var n pgtype.Numeric
	_ = n.Scan(cur.Add(delta).StringFixed(2))
	r.CurrentStock = n
	m.raw[arg.ID] = r
	return r, nil
}

func (m *mockMaterialStore) ListPackingMaterials(ctx context.Context) ([]database.PackingMaterial, error) {
	out := make([]database.PackingMaterial, 0, len(m.packing))
	for _, p := range m.packing {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockMaterialStore) GetPackingMaterial(ctx context.Context, id uuid.UUID) (database.PackingMaterial, error) {
	p, ok := m.packing[id]
	if !ok {
		return database.PackingMaterial{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockMaterialStore) CreatePackingMaterial(ctx context.Context, arg database.CreatePackingMaterialParams) (database.PackingMaterial, error) {
	p := database.PackingMaterial{ID: uuid.New(), Name: arg.Name, UnitType: arg.UnitType, Capacity: arg.Capacity}
	m.packing[p.ID] = p
	return p, nil
}

func (m *mockMaterialStore) UpdatePackingMaterial(ctx context.Context, arg database.UpdatePackingMaterialParams) (database.PackingMaterial, error) {
	p, ok := m.packing[arg.ID]
	if !ok {
		return database.PackingMaterial{}, pgx.ErrNoRows
	}
	p.Name = arg.Name
	p.UnitType = arg.UnitType
	p.Capacity = arg.Capacity
	m.packing[arg.ID] = p
	return p, nil
}

func (m *mockMaterialStore) DeletePackingMaterial(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.packing[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	if m.inUse[id] {
		return uuid.Nil, &pgconn.PgError{Code: "23503"}
	}
	delete(m.packing, id)
	return id, nil
}

func (m *mockMaterialStore) AdjustPackingMaterialStock(ctx context.Context, arg database.AdjustPackingMaterialStockParams) (database.PackingMaterial, error) {
	p, ok := m.packing[arg.ID]
	if !ok {
		return database.PackingMaterial{}, pgx.ErrNoRows
	}
	p.CurrentStock += arg.Delta
	m.packing[arg.ID] = p
	return p, nil
}

func (m *mockMaterialStore) CreateMaterialTransaction(ctx context.Context, arg database.CreateMaterialTransactionParams) (database.MaterialTransaction, error) {
	tx := database.MaterialTransaction{
		ID:           uuid.New(),
		MaterialKind: arg.MaterialKind,
		MaterialID:   arg.MaterialID,
		TxType:       arg.TxType,
		Quantity:     arg.Quantity,
		Price:        arg.Price,
		TxDate:       arg.TxDate,
		Note:         arg.Note,
	}
	m.txs = append(m.txs, tx)
	return tx, nil
}

func (m *mockMaterialStore) ListMaterialTransactions(ctx context.Context, arg database.ListMaterialTransactionsParams) ([]database.MaterialTransaction, error) {
	var out []database.MaterialTransaction
	for _, tx := range m.txs {
		if tx.MaterialKind != arg.MaterialKind {
			continue
		}
		if arg.MaterialID.Valid && tx.MaterialID != uuid.UUID(arg.MaterialID.Bytes) {
			continue
		}
		if arg.TxType.Valid && tx.TxType != arg.TxType.String {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func makeZeroNumeric() pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan("0.00")
	return n
}

func mustDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	return decimal.RequireFromString(val.(string))
}

func materialTestServer(store *mockMaterialStore) (*chi.Mux, *mockTxBeginner) {
	pool := &mockTxBeginner{}
	r := chi.NewRouter()
	h := handler.NewMaterialHandler(store, pool, func(db database.DBTX) handler.MaterialStore { return store })
	h.RegisterRoutes(r)
	return r, pool
}

func TestCreateRawMaterial(t *testing.T) {
	srv, _ := materialTestServer(newMockMaterialStore())

	body := []byte(`{"name":"Sesame Seeds"}`)
	req := httptest.NewRequest(http.MethodPost, "/materials/raw", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Name         string `json:"name"`
		CurrentStock string `json:"current_stock"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "Sesame Seeds" || resp.CurrentStock != "0.00" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateRawMaterialDuplicateName(t *testing.T) {
	store := newMockMaterialStore()
	store.nameTaken["Sesame Seeds"] = true
	srv, _ := materialTestServer(store)

	req := httptest.NewRequest(http.MethodPost, "/materials/raw", bytes.NewReader([]byte(`{"name":"Sesame Seeds"}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDeleteRawMaterialInUse(t *testing.T) {
	store := newMockMaterialStore()
	m, _ := store.CreateRawMaterial(context.Background(), "Sesame Seeds")
	store.inUse[m.ID] = true
	srv, _ := materialTestServer(store)

	req := httptest.NewRequest(http.MethodDelete, "/materials/raw/"+m.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if _, ok := store.raw[m.ID]; !ok {
		t.Error("expected material to survive the failed delete")
	}
}

func TestAddStockTransaction(t *testing.T) {
	store := newMockMaterialStore()
	m, _ := store.CreateRawMaterial(context.Background(), "Sesame Seeds")
	srv, pool := materialTestServer(store)

	body, _ := json.Marshal(map[string]string{
		"material_id": m.ID.String(),
		"type":        enum.MaterialTxAdd,
		"quantity":    "50.5",
		"price":       "4000.00",
		"date":        "2025-03-10",
	})
	req := httptest.NewRequest(http.MethodPost, "/materials/raw/transactions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !pool.tx.committed {
		t.Error("expected transaction to commit")
	}
	if !numericEquals(t, store.raw[m.ID].CurrentStock, "50.5") {
		t.Errorf("expected stock 50.5, got %v", store.raw[m.ID].CurrentStock)
	}
	if len(store.txs) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(store.txs))
	}
	if !numericEquals(t, store.txs[0].Quantity, "50.5") {
		t.Errorf("expected ledger quantity 50.5, got %v", store.txs[0].Quantity)
	}
}

func TestSubtractStockTransaction(t *testing.T) {
	store := newMockMaterialStore()
	m, _ := store.CreateRawMaterial(context.Background(), "Sesame Seeds")
	_, _ = store.AdjustRawMaterialStock(context.Background(), database.AdjustRawMaterialStockParams{ID: m.ID, Delta: makeNumeric(t, "100.00")})
	srv, _ := materialTestServer(store)

	body, _ := json.Marshal(map[string]string{
		"material_id": m.ID.String(),
		"type":        enum.MaterialTxSubtract,
		"quantity":    "30",
		"date":        "2025-03-11",
	})
	req := httptest.NewRequest(http.MethodPost, "/materials/raw/transactions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !numericEquals(t, store.raw[m.ID].CurrentStock, "70") {
		t.Errorf("expected stock 70, got %v", store.raw[m.ID].CurrentStock)
	}
	// The ledger keeps the signed quantity so reports can sum deltas.
	if !numericEquals(t, store.txs[0].Quantity, "-30") {
		t.Errorf("expected ledger quantity -30, got %v", store.txs[0].Quantity)
	}
}

func TestStockTransactionUnknownMaterial(t *testing.T) {
	srv, pool := materialTestServer(newMockMaterialStore())

	body, _ := json.Marshal(map[string]string{
		"material_id": uuid.NewString(),
		"type":        enum.MaterialTxAdd,
		"quantity":    "10",
		"date":        "2025-03-10",
	})
	req := httptest.NewRequest(http.MethodPost, "/materials/raw/transactions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if pool.tx.committed {
		t.Error("expected transaction to roll back")
	}
}

func TestStockTransactionInvalidKind(t *testing.T) {
	srv, _ := materialTestServer(newMockMaterialStore())

	req := httptest.NewRequest(http.MethodPost, "/materials/bogus/transactions", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPackingTransactionRejectsFraction(t *testing.T) {
	store := newMockMaterialStore()
	p, _ := store.CreatePackingMaterial(context.Background(), database.CreatePackingMaterialParams{Name: "Bottle 500ml", UnitType: "BOTTLE", Capacity: 500})
	srv, _ := materialTestServer(store)

	body, _ := json.Marshal(map[string]string{
		"material_id": p.ID.String(),
		"type":        enum.MaterialTxAdd,
		"quantity":    "10.5",
		"date":        "2025-03-10",
	})
	req := httptest.NewRequest(http.MethodPost, "/materials/packing/transactions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListTransactionsFilters(t *testing.T) {
	store := newMockMaterialStore()
	m, _ := store.CreateRawMaterial(context.Background(), "Sesame Seeds")
	other, _ := store.CreateRawMaterial(context.Background(), "Groundnut")
	for _, id := range []uuid.UUID{m.ID, other.ID} {
		_, _ = store.CreateMaterialTransaction(context.Background(), database.CreateMaterialTransactionParams{
			MaterialKind: enum.MaterialKindRaw,
			MaterialID:   id,
			TxType:       enum.MaterialTxAdd,
			Quantity:     makeNumeric(t, "10"),
			Price:        makeNumeric(t, "800.00"),
			TxDate:       makeDate(t, "2025-03-10"),
		})
	}
	srv, _ := materialTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/materials/raw/transactions?material_id="+m.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []struct {
		MaterialID uuid.UUID `json:"material_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].MaterialID != m.ID {
		t.Fatalf("unexpected transactions: %+v", resp)
	}
}
