package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleColumns = `id, sale_date, customer_name, customer_mobile, customer_address,
delivery_type, courier_price, total_amount, remaining_amount, status, version, created_at, updated_at`

func scanSale(row interface{ Scan(...interface{}) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.SaleDate, &s.CustomerName, &s.CustomerMobile, &s.CustomerAddress,
		&s.DeliveryType, &s.CourierPrice, &s.TotalAmount, &s.RemainingAmount, &s.Status,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const createSale = `
INSERT INTO sales (sale_date, customer_name, customer_mobile, customer_address,
                   delivery_type, courier_price, total_amount, remaining_amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + saleColumns

type CreateSaleParams struct {
	SaleDate        pgtype.Date
	CustomerName    string
	CustomerMobile  pgtype.Text
	CustomerAddress pgtype.Text
	DeliveryType    string
	CourierPrice    pgtype.Numeric
	TotalAmount     pgtype.Numeric
	RemainingAmount pgtype.Numeric
	Status          string
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx, createSale,
		arg.SaleDate, arg.CustomerName, arg.CustomerMobile, arg.CustomerAddress,
		arg.DeliveryType, arg.CourierPrice, arg.TotalAmount, arg.RemainingAmount, arg.Status)
	return scanSale(row)
}

const getSale = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1
`

func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSale, id))
}

const getSaleForUpdate = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1
FOR NO KEY UPDATE
`

// GetSaleForUpdate locks the sale row, serializing concurrent edits,
// payments, and deletes of the same sale.
func (q *Queries) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSaleForUpdate, id))
}

const listSales = `
SELECT ` + saleColumns + `
FROM sales
ORDER BY sale_date DESC, created_at DESC
`

func (q *Queries) ListSales(ctx context.Context) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listSales)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

const updateSale = `
UPDATE sales
SET sale_date = $2, customer_name = $3, customer_mobile = $4, customer_address = $5,
    delivery_type = $6, courier_price = $7, total_amount = $8, remaining_amount = $9,
    status = $10, version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + saleColumns

type UpdateSaleParams struct {
	ID              uuid.UUID
	SaleDate        pgtype.Date
	CustomerName    string
	CustomerMobile  pgtype.Text
	CustomerAddress pgtype.Text
	DeliveryType    string
	CourierPrice    pgtype.Numeric
	TotalAmount     pgtype.Numeric
	RemainingAmount pgtype.Numeric
	Status          string
}

func (q *Queries) UpdateSale(ctx context.Context, arg UpdateSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx, updateSale,
		arg.ID, arg.SaleDate, arg.CustomerName, arg.CustomerMobile, arg.CustomerAddress,
		arg.DeliveryType, arg.CourierPrice, arg.TotalAmount, arg.RemainingAmount, arg.Status)
	return scanSale(row)
}

const updateSalePaymentState = `
UPDATE sales
SET remaining_amount = $2, status = $3, updated_at = now()
WHERE id = $1
RETURNING ` + saleColumns

type UpdateSalePaymentStateParams struct {
	ID              uuid.UUID
	RemainingAmount pgtype.Numeric
	Status          string
}

func (q *Queries) UpdateSalePaymentState(ctx context.Context, arg UpdateSalePaymentStateParams) (Sale, error) {
	row := q.db.QueryRow(ctx, updateSalePaymentState, arg.ID, arg.RemainingAmount, arg.Status)
	return scanSale(row)
}

const deleteSale = `
DELETE FROM sales
WHERE id = $1
RETURNING id
`

// DeleteSale removes the sale; items and payments cascade.
func (q *Queries) DeleteSale(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteSale, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

// --- Sale items ---

const createSaleItem = `
INSERT INTO sale_items (sale_id, product_id, product_kind, product_name, qty, units,
                        uses_packaging, packing_material_id, line_total, discount, final_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, sale_id, product_id, product_kind, product_name, qty, units,
          uses_packaging, packing_material_id, line_total, discount, final_price
`

type CreateSaleItemParams struct {
	SaleID            uuid.UUID
	ProductID         uuid.UUID
	ProductKind       string
	ProductName       string
	Qty               int32
	Units             int32
	UsesPackaging     bool
	PackingMaterialID pgtype.UUID
	LineTotal         pgtype.Numeric
	Discount          pgtype.Numeric
	FinalPrice        pgtype.Numeric
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	row := q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID, arg.ProductID, arg.ProductKind, arg.ProductName, arg.Qty, arg.Units,
		arg.UsesPackaging, arg.PackingMaterialID, arg.LineTotal, arg.Discount, arg.FinalPrice)
	var it SaleItem
	err := row.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductKind, &it.ProductName, &it.Qty, &it.Units,
		&it.UsesPackaging, &it.PackingMaterialID, &it.LineTotal, &it.Discount, &it.FinalPrice)
	return it, err
}

const listSaleItems = `
SELECT id, sale_id, product_id, product_kind, product_name, qty, units,
       uses_packaging, packing_material_id, line_total, discount, final_price
FROM sale_items
WHERE sale_id = $1
ORDER BY id
`

func (q *Queries) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItems, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductKind, &it.ProductName, &it.Qty, &it.Units,
			&it.UsesPackaging, &it.PackingMaterialID, &it.LineTotal, &it.Discount, &it.FinalPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteSaleItems = `
DELETE FROM sale_items
WHERE sale_id = $1
`

func (q *Queries) DeleteSaleItems(ctx context.Context, saleID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteSaleItems, saleID)
	return err
}

// --- Sale payments ---

const createSalePayment = `
INSERT INTO sale_payments (sale_id, method, amount, paid_on)
VALUES ($1, $2, $3, $4)
RETURNING id, sale_id, method, amount, paid_on, created_at
`

type CreateSalePaymentParams struct {
	SaleID uuid.UUID
	Method string
	Amount pgtype.Numeric
	PaidOn pgtype.Date
}

func (q *Queries) CreateSalePayment(ctx context.Context, arg CreateSalePaymentParams) (SalePayment, error) {
	row := q.db.QueryRow(ctx, createSalePayment, arg.SaleID, arg.Method, arg.Amount, arg.PaidOn)
	var p SalePayment
	err := row.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.PaidOn, &p.CreatedAt)
	return p, err
}

const listSalePayments = `
SELECT id, sale_id, method, amount, paid_on, created_at
FROM sale_payments
WHERE sale_id = $1
ORDER BY created_at
`

func (q *Queries) ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]SalePayment, error) {
	rows, err := q.db.Query(ctx, listSalePayments, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []SalePayment
	for rows.Next() {
		var p SalePayment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.PaidOn, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const sumSalePayments = `
SELECT COALESCE(SUM(amount), 0)
FROM sale_payments
WHERE sale_id = $1
`

func (q *Queries) SumSalePayments(ctx context.Context, saleID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumSalePayments, saleID)
	var total pgtype.Numeric
	err := row.Scan(&total)
	return total, err
}

// --- Reporting reads ---

const listPendingSales = `
SELECT ` + saleColumns + `
FROM sales
WHERE status = 'PENDING' AND remaining_amount > 0
ORDER BY sale_date DESC
`

func (q *Queries) ListPendingSales(ctx context.Context) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listPendingSales)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

const listSaleTransactions = `
SELECT s.id, s.sale_date, s.customer_name, s.customer_mobile, s.customer_address,
       s.total_amount, s.remaining_amount, s.status,
       COALESCE(SUM(p.amount) FILTER (WHERE p.method = 'ONLINE'), 0) AS online_amount,
       COALESCE(SUM(p.amount) FILTER (WHERE p.method = 'CASH'), 0) AS cash_amount
FROM sales s
LEFT JOIN sale_payments p ON p.sale_id = s.id
WHERE ($1::text IS NULL OR s.status = $1)
GROUP BY s.id
ORDER BY s.sale_date DESC, s.created_at DESC
`

type ListSaleTransactionsRow struct {
	ID              uuid.UUID
	SaleDate        pgtype.Date
	CustomerName    string
	CustomerMobile  pgtype.Text
	CustomerAddress pgtype.Text
	TotalAmount     pgtype.Numeric
	RemainingAmount pgtype.Numeric
	Status          string
	OnlineAmount    pgtype.Numeric
	CashAmount      pgtype.Numeric
}

func (q *Queries) ListSaleTransactions(ctx context.Context, status pgtype.Text) ([]ListSaleTransactionsRow, error) {
	rows, err := q.db.Query(ctx, listSaleTransactions, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ListSaleTransactionsRow
	for rows.Next() {
		var r ListSaleTransactionsRow
		if err := rows.Scan(&r.ID, &r.SaleDate, &r.CustomerName, &r.CustomerMobile, &r.CustomerAddress,
			&r.TotalAmount, &r.RemainingAmount, &r.Status, &r.OnlineAmount, &r.CashAmount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const getSalesHistory = `
SELECT to_char(s.sale_date, $1) AS period,
       MIN(s.sale_date) AS period_start,
       COALESCE(SUM(s.total_amount), 0) AS total_sales,
       COALESCE(SUM(s.total_amount - s.remaining_amount), 0) AS total_paid,
       COALESCE(SUM(s.remaining_amount), 0) AS pending_amount,
       COALESCE(SUM(p.online_amount), 0) AS online_amount,
       COALESCE(SUM(p.cash_amount), 0) AS cash_amount
FROM sales s
LEFT JOIN LATERAL (
    SELECT COALESCE(SUM(amount) FILTER (WHERE method = 'ONLINE'), 0) AS online_amount,
           COALESCE(SUM(amount) FILTER (WHERE method = 'CASH'), 0) AS cash_amount
    FROM sale_payments
    WHERE sale_id = s.id
) p ON true
WHERE ($2::date IS NULL OR s.sale_date >= $2)
  AND ($3::date IS NULL OR s.sale_date <= $3)
GROUP BY period
ORDER BY period_start DESC
`

type GetSalesHistoryParams struct {
	PeriodFormat string
	StartDate    pgtype.Date
	EndDate      pgtype.Date
}

type GetSalesHistoryRow struct {
	Period        string
	PeriodStart   pgtype.Date
	TotalSales    pgtype.Numeric
	TotalPaid     pgtype.Numeric
	PendingAmount pgtype.Numeric
	OnlineAmount  pgtype.Numeric
	CashAmount    pgtype.Numeric
}

// GetSalesHistory groups sale totals by day, month, or year depending on the
// to_char format passed in (YYYY-MM-DD, YYYY-MM, or YYYY).
func (q *Queries) GetSalesHistory(ctx context.Context, arg GetSalesHistoryParams) ([]GetSalesHistoryRow, error) {
	rows, err := q.db.Query(ctx, getSalesHistory, arg.PeriodFormat, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GetSalesHistoryRow
	for rows.Next() {
		var r GetSalesHistoryRow
		if err := rows.Scan(&r.Period, &r.PeriodStart, &r.TotalSales, &r.TotalPaid,
			&r.PendingAmount, &r.OnlineAmount, &r.CashAmount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
