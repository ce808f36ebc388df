package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Expenses ---

const listExpenses = `
SELECT id, name, expense_date, amount, note, created_at, updated_at
FROM expenses
WHERE ($1::date IS NULL OR expense_date >= $1)
  AND ($2::date IS NULL OR expense_date <= $2)
ORDER BY expense_date DESC, created_at DESC
`

type ListExpensesParams struct {
	StartDate pgtype.Date
	EndDate   pgtype.Date
}

func (q *Queries) ListExpenses(ctx context.Context, arg ListExpensesParams) ([]Expense, error) {
	rows, err := q.db.Query(ctx, listExpenses, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Name, &e.ExpenseDate, &e.Amount, &e.Note, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

const getExpense = `
SELECT id, name, expense_date, amount, note, created_at, updated_at
FROM expenses
WHERE id = $1
`

func (q *Queries) GetExpense(ctx context.Context, id uuid.UUID) (Expense, error) {
	row := q.db.QueryRow(ctx, getExpense, id)
	var e Expense
	err := row.Scan(&e.ID, &e.Name, &e.ExpenseDate, &e.Amount, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const createExpense = `
INSERT INTO expenses (name, expense_date, amount, note)
VALUES ($1, $2, $3, $4)
RETURNING id, name, expense_date, amount, note, created_at, updated_at
`

type CreateExpenseParams struct {
	Name        string
	ExpenseDate pgtype.Date
	Amount      pgtype.Numeric
	Note        pgtype.Text
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRow(ctx, createExpense, arg.Name, arg.ExpenseDate, arg.Amount, arg.Note)
	var e Expense
	err := row.Scan(&e.ID, &e.Name, &e.ExpenseDate, &e.Amount, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const updateExpense = `
UPDATE expenses
SET name = $2, expense_date = $3, amount = $4, note = $5, updated_at = now()
WHERE id = $1
RETURNING id, name, expense_date, amount, note, created_at, updated_at
`

type UpdateExpenseParams struct {
	ID          uuid.UUID
	Name        string
	ExpenseDate pgtype.Date
	Amount      pgtype.Numeric
	Note        pgtype.Text
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (Expense, error) {
	row := q.db.QueryRow(ctx, updateExpense, arg.ID, arg.Name, arg.ExpenseDate, arg.Amount, arg.Note)
	var e Expense
	err := row.Scan(&e.ID, &e.Name, &e.ExpenseDate, &e.Amount, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const deleteExpense = `
DELETE FROM expenses
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteExpense(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteExpense, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

// --- Miscellaneous income ---

const listMiscIncomes = `
SELECT id, title, income_date, amount, payment_method, note, created_at, updated_at
FROM misc_incomes
WHERE ($1::date IS NULL OR income_date >= $1)
  AND ($2::date IS NULL OR income_date <= $2)
ORDER BY income_date DESC, created_at DESC
`

type ListMiscIncomesParams struct {
	StartDate pgtype.Date
	EndDate   pgtype.Date
}

func (q *Queries) ListMiscIncomes(ctx context.Context, arg ListMiscIncomesParams) ([]MiscIncome, error) {
	rows, err := q.db.Query(ctx, listMiscIncomes, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var incomes []MiscIncome
	for rows.Next() {
		var m MiscIncome
		if err := rows.Scan(&m.ID, &m.Title, &m.IncomeDate, &m.Amount, &m.PaymentMethod, &m.Note, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		incomes = append(incomes, m)
	}
	return incomes, rows.Err()
}

const getMiscIncome = `
SELECT id, title, income_date, amount, payment_method, note, created_at, updated_at
FROM misc_incomes
WHERE id = $1
`

func (q *Queries) GetMiscIncome(ctx context.Context, id uuid.UUID) (MiscIncome, error) {
	row := q.db.QueryRow(ctx, getMiscIncome, id)
	var m MiscIncome
	err := row.Scan(&m.ID, &m.Title, &m.IncomeDate, &m.Amount, &m.PaymentMethod, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const createMiscIncome = `
INSERT INTO misc_incomes (title, income_date, amount, payment_method, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, title, income_date, amount, payment_method, note, created_at, updated_at
`

type CreateMiscIncomeParams struct {
	Title         string
	IncomeDate    pgtype.Date
	Amount        pgtype.Numeric
	PaymentMethod string
	Note          pgtype.Text
}

func (q *Queries) CreateMiscIncome(ctx context.Context, arg CreateMiscIncomeParams) (MiscIncome, error) {
	row := q.db.QueryRow(ctx, createMiscIncome, arg.Title, arg.IncomeDate, arg.Amount, arg.PaymentMethod, arg.Note)
	var m MiscIncome
	err := row.Scan(&m.ID, &m.Title, &m.IncomeDate, &m.Amount, &m.PaymentMethod, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const updateMiscIncome = `
UPDATE misc_incomes
SET title = $2, income_date = $3, amount = $4, payment_method = $5, note = $6, updated_at = now()
WHERE id = $1
RETURNING id, title, income_date, amount, payment_method, note, created_at, updated_at
`

type UpdateMiscIncomeParams struct {
	ID            uuid.UUID
	Title         string
	IncomeDate    pgtype.Date
	Amount        pgtype.Numeric
	PaymentMethod string
	Note          pgtype.Text
}

func (q *Queries) UpdateMiscIncome(ctx context.Context, arg UpdateMiscIncomeParams) (MiscIncome, error) {
	row := q.db.QueryRow(ctx, updateMiscIncome, arg.ID, arg.Title, arg.IncomeDate, arg.Amount, arg.PaymentMethod, arg.Note)
	var m MiscIncome
	err := row.Scan(&m.ID, &m.Title, &m.IncomeDate, &m.Amount, &m.PaymentMethod, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const deleteMiscIncome = `
DELETE FROM misc_incomes
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteMiscIncome(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteMiscIncome, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
