//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/oilmill/api/internal/config"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/router"
	"github.com/oilmill/api/internal/ws"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the full API lifecycle against a real
// PostgreSQL database: materials in, product catalog, a sale that consumes
// stock, partial payments, and the daily summary rollup.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap owner user (manual DB insert) ---
	ownerID := createOwnerUser(t, ctx, pool)

	// --- 2. Login ---
	token := login(t, server, "owner@test.com", "password123")

	// --- 3. Create raw + packing materials ---
	rawResp := httpPostJSON(t, server, "/materials/raw",
		map[string]interface{}{"name": "Sesame Seeds"}, token)
	rawID := uuid.MustParse(rawResp["id"].(string))

	packResp := httpPostJSON(t, server, "/materials/packing",
		map[string]interface{}{"name": "Bottle 500ml", "unit_type": "BOTTLE", "capacity": 500}, token)
	packID := uuid.MustParse(packResp["id"].(string))

	// --- 4. Stock up via an ADD transaction ---
	httpPostJSON(t, server, "/materials/raw/transactions", map[string]interface{}{
		"material_id": rawID.String(),
		"type":        "ADD",
		"quantity":    "100",
		"price":       "8000.00",
		"date":        "2025-03-09",
	}, token)
	httpPostJSON(t, server, "/materials/packing/transactions", map[string]interface{}{
		"material_id": packID.String(),
		"type":        "ADD",
		"quantity":    "40",
		"date":        "2025-03-09",
	}, token)

	// --- 5. Create product with a 500ml bottle option ---
	productResp := httpPostJSON(t, server, "/products", map[string]interface{}{
		"kind":            "OIL",
		"name":            "Sesame Oil",
		"raw_material_id": rawID.String(),
		"recovery_rate":   "50",
		"quantities": []map[string]interface{}{
			{"qty": 500, "unit_price": "500.00", "packing_material_id": packID.String()},
		},
	}, token)
	productID := uuid.MustParse(productResp["id"].(string))

	// --- 6. Create a sale: 2 bottles of 500ml, partial initial payment ---
	saleResp := httpPostJSON(t, server, "/sales", map[string]interface{}{
		"sale_date":     "2025-03-10",
		"customer_name": "Ravi",
		"delivery_type": "DIRECT",
		"online_amount": "500.00",
		"items": []map[string]interface{}{
			{
				"product_id":          productID.String(),
				"qty":                 500,
				"units":               2,
				"uses_packaging":      true,
				"packing_material_id": packID.String(),
				"line_total":          "1000.00",
			},
		},
	}, token)
	saleID := uuid.MustParse(saleResp["id"].(string))

	// Sold 1 liter at 50% recovery → 2kg of seed consumed.
	if saleResp["remaining_amount"].(string) != "500.00" {
		t.Fatalf("remaining: got %s, want 500.00", saleResp["remaining_amount"].(string))
	}
	if saleResp["status"].(string) != "PENDING" {
		t.Fatalf("status: got %s, want PENDING", saleResp["status"].(string))
	}
	assertRawStock(t, ctx, pool, rawID, "98.00")
	assertPackingStock(t, ctx, pool, packID, 38)

	// --- 7. Pay off the balance, sale must auto-complete ---
	httpPostJSON(t, server, fmt.Sprintf("/sales/%s/payment", saleID), map[string]interface{}{
		"method": "CASH",
		"amount": "500.00",
	}, token)

	saleAfter := httpGetJSON(t, server, fmt.Sprintf("/sales/%s", saleID), token)
	if saleAfter["status"].(string) != "COMPLETED" {
		t.Fatalf("status after payoff: got %s, want COMPLETED", saleAfter["status"].(string))
	}

	// --- 8. Overpayment must be rejected ---
	rejectPost(t, server, fmt.Sprintf("/sales/%s/payment", saleID), map[string]interface{}{
		"method": "CASH",
		"amount": "1.00",
	}, token, http.StatusConflict)

	// --- 9. Daily summary carries the rollup ---
	summaries := httpGetJSONArray(t, server, "/reports/daily-summary?date=2025-03-10", token)
	if len(summaries) != 1 {
		t.Fatalf("expected one summary day, got %d", len(summaries))
	}
	day := summaries[0].(map[string]interface{})
	if day["total_sales"].(string) != "1000.00" {
		t.Fatalf("total_sales: got %s, want 1000.00", day["total_sales"].(string))
	}
	if day["pending_amount"].(string) != "0.00" {
		t.Fatalf("pending_amount: got %s, want 0.00", day["pending_amount"].(string))
	}
	usage := day["material_usage"].([]interface{})
	if len(usage) != 2 {
		t.Fatalf("expected raw + packing usage rows, got %d", len(usage))
	}

	// --- 10. Delete restores stock ---
	version := int(saleAfter["version"].(float64))
	req, _ := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/sales/%s?version=%d", server.URL, saleID, version), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete sale: status %d, want 204", resp.StatusCode)
	}
	assertRawStock(t, ctx, pool, rawID, "100.00")
	assertPackingStock(t, ctx, pool, packID, 40)

	t.Logf("Integration test passed: container=%s, owner=%s, product=%s, sale=%s",
		pgContainer.GetContainerID(), ownerID, productID, saleID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("oilmill_test"),
		tcpostgres.WithUsername("oilmill"),
		tcpostgres.WithPassword("oilmill"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createOwnerUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		"owner@test.com", string(hashedPassword), "Test Owner", "OWNER",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create owner user: %v", err)
	}
	return id
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func assertRawStock(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, want string) {
	t.Helper()
	var stock string
	if err := pool.QueryRow(ctx,
		`SELECT current_stock::text FROM raw_materials WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read raw stock: %v", err)
	}
	if stock != want {
		t.Fatalf("raw stock: got %s, want %s", stock, want)
	}
}

func assertPackingStock(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, want int32) {
	t.Helper()
	var stock int32
	if err := pool.QueryRow(ctx,
		`SELECT current_stock FROM packing_materials WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read packing stock: %v", err)
	}
	if stock != want {
		t.Fatalf("packing stock: got %d, want %d", stock, want)
	}
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func rejectPost(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string, wantStatus int) {
	t.Helper()
	b, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: status %d, want %d", path, resp.StatusCode, wantStatus)
	}
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSONArray(t *testing.T, server *httptest.Server, path string, token string) []interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}

	var result []interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
