package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertDailySummary = `
INSERT INTO daily_summaries (summary_date, total_sales, total_expenses, total_misc_income,
                             pending_amount, online_amount, cash_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (summary_date) DO UPDATE
SET total_sales       = daily_summaries.total_sales + EXCLUDED.total_sales,
    total_expenses    = daily_summaries.total_expenses + EXCLUDED.total_expenses,
    total_misc_income = daily_summaries.total_misc_income + EXCLUDED.total_misc_income,
    pending_amount    = daily_summaries.pending_amount + EXCLUDED.pending_amount,
    online_amount     = daily_summaries.online_amount + EXCLUDED.online_amount,
    cash_amount       = daily_summaries.cash_amount + EXCLUDED.cash_amount,
    updated_at        = now()
RETURNING summary_date, total_sales, total_expenses, total_misc_income,
          pending_amount, online_amount, cash_amount, created_at, updated_at
`

// UpsertDailySummaryParams carries signed deltas; each field is added to the
// day's running total.
type UpsertDailySummaryParams struct {
	SummaryDate     pgtype.Date
	TotalSales      pgtype.Numeric
	TotalExpenses   pgtype.Numeric
	TotalMiscIncome pgtype.Numeric
	PendingAmount   pgtype.Numeric
	OnlineAmount    pgtype.Numeric
	CashAmount      pgtype.Numeric
}

func (q *Queries) UpsertDailySummary(ctx context.Context, arg UpsertDailySummaryParams) (DailySummary, error) {
	row := q.db.QueryRow(ctx, upsertDailySummary,
		arg.SummaryDate, arg.TotalSales, arg.TotalExpenses, arg.TotalMiscIncome,
		arg.PendingAmount, arg.OnlineAmount, arg.CashAmount)
	var s DailySummary
	err := row.Scan(&s.SummaryDate, &s.TotalSales, &s.TotalExpenses, &s.TotalMiscIncome,
		&s.PendingAmount, &s.OnlineAmount, &s.CashAmount, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const upsertDailyMaterialUsage = `
INSERT INTO daily_material_usage (summary_date, material_kind, material_id, material_name, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (summary_date, material_kind, material_id) DO UPDATE
SET quantity = daily_material_usage.quantity + EXCLUDED.quantity,
    material_name = EXCLUDED.material_name
`

type UpsertDailyMaterialUsageParams struct {
	SummaryDate  pgtype.Date
	MaterialKind string
	MaterialID   uuid.UUID
	MaterialName string
	Quantity     pgtype.Numeric
}

// UpsertDailyMaterialUsage adds a signed consumption delta to the day's
// per-material running total. Reversals pass negative quantities, so a
// created-then-deleted sale nets the row back to zero.
func (q *Queries) UpsertDailyMaterialUsage(ctx context.Context, arg UpsertDailyMaterialUsageParams) error {
	_, err := q.db.Exec(ctx, upsertDailyMaterialUsage,
		arg.SummaryDate, arg.MaterialKind, arg.MaterialID, arg.MaterialName, arg.Quantity)
	return err
}

const upsertDailyOilSale = `
INSERT INTO daily_oil_sales (summary_date, product_id, product_name, quantity, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (summary_date, product_id) DO UPDATE
SET quantity = daily_oil_sales.quantity + EXCLUDED.quantity,
    amount = daily_oil_sales.amount + EXCLUDED.amount,
    product_name = EXCLUDED.product_name
`

type UpsertDailyOilSaleParams struct {
	SummaryDate pgtype.Date
	ProductID   uuid.UUID
	ProductName string
	Quantity    pgtype.Numeric
	Amount      pgtype.Numeric
}

func (q *Queries) UpsertDailyOilSale(ctx context.Context, arg UpsertDailyOilSaleParams) error {
	_, err := q.db.Exec(ctx, upsertDailyOilSale,
		arg.SummaryDate, arg.ProductID, arg.ProductName, arg.Quantity, arg.Amount)
	return err
}

const listDailySummaries = `
SELECT summary_date, total_sales, total_expenses, total_misc_income,
       pending_amount, online_amount, cash_amount, created_at, updated_at
FROM daily_summaries
WHERE ($1::date IS NULL OR summary_date = $1)
  AND ($2::date IS NULL OR summary_date >= $2)
  AND ($3::date IS NULL OR summary_date <= $3)
ORDER BY summary_date DESC
`

type ListDailySummariesParams struct {
	Date      pgtype.Date
	StartDate pgtype.Date
	EndDate   pgtype.Date
}

func (q *Queries) ListDailySummaries(ctx context.Context, arg ListDailySummariesParams) ([]DailySummary, error) {
	rows, err := q.db.Query(ctx, listDailySummaries, arg.Date, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summaries []DailySummary
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.SummaryDate, &s.TotalSales, &s.TotalExpenses, &s.TotalMiscIncome,
			&s.PendingAmount, &s.OnlineAmount, &s.CashAmount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

const listDailyMaterialUsage = `
SELECT summary_date, material_kind, material_id, material_name, quantity
FROM daily_material_usage
WHERE summary_date = $1
ORDER BY material_kind, material_name
`

func (q *Queries) ListDailyMaterialUsage(ctx context.Context, date pgtype.Date) ([]DailyMaterialUsage, error) {
	rows, err := q.db.Query(ctx, listDailyMaterialUsage, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var usage []DailyMaterialUsage
	for rows.Next() {
		var u DailyMaterialUsage
		if err := rows.Scan(&u.SummaryDate, &u.MaterialKind, &u.MaterialID, &u.MaterialName, &u.Quantity); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

const listDailyOilSales = `
SELECT summary_date, product_id, product_name, quantity, amount
FROM daily_oil_sales
WHERE summary_date = $1
ORDER BY product_name
`

func (q *Queries) ListDailyOilSales(ctx context.Context, date pgtype.Date) ([]DailyOilSale, error) {
	rows, err := q.db.Query(ctx, listDailyOilSales, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []DailyOilSale
	for rows.Next() {
		var s DailyOilSale
		if err := rows.Scan(&s.SummaryDate, &s.ProductID, &s.ProductName, &s.Quantity, &s.Amount); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
