package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Raw materials ---

const listRawMaterials = `
SELECT id, name, current_stock, created_at, updated_at
FROM raw_materials
ORDER BY name
`

func (q *Queries) ListRawMaterials(ctx context.Context) ([]RawMaterial, error) {
	rows, err := q.db.Query(ctx, listRawMaterials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []RawMaterial
	for rows.Next() {
		var m RawMaterial
		if err := rows.Scan(&m.ID, &m.Name, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

const getRawMaterial = `
SELECT id, name, current_stock, created_at, updated_at
FROM raw_materials
WHERE id = $1
`

func (q *Queries) GetRawMaterial(ctx context.Context, id uuid.UUID) (RawMaterial, error) {
	row := q.db.QueryRow(ctx, getRawMaterial, id)
	var m RawMaterial
	err := row.Scan(&m.ID, &m.Name, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const createRawMaterial = `
INSERT INTO raw_materials (name, current_stock)
VALUES ($1, 0)
RETURNING id, name, current_stock, created_at, updated_at
`

// CreateRawMaterial always starts at zero stock; stock only moves through
// material transactions and sales.
func (q *Queries) CreateRawMaterial(ctx context.Context, name string) (RawMaterial, error) {
	row := q.db.QueryRow(ctx, createRawMaterial, name)
	var m RawMaterial
	err := row.Scan(&m.ID, &m.Name, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const updateRawMaterial = `
UPDATE raw_materials
SET name = $2, updated_at = now()
WHERE id = $1
RETURNING id, name, current_stock, created_at, updated_at
`

type UpdateRawMaterialParams struct {
	ID   uuid.UUID
	Name string
}

func (q *Queries) UpdateRawMaterial(ctx context.Context, arg UpdateRawMaterialParams) (RawMaterial, error) {
	row := q.db.QueryRow(ctx, updateRawMaterial, arg.ID, arg.Name)
	var m RawMaterial
	err := row.Scan(&m.ID, &m.Name, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const deleteRawMaterial = `
DELETE FROM raw_materials
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteRawMaterial(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteRawMaterial, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

const adjustRawMaterialStock = `
UPDATE raw_materials
SET current_stock = current_stock + $2, updated_at = now()
WHERE id = $1
RETURNING id, name, current_stock, created_at, updated_at
`

type AdjustRawMaterialStockParams struct {
	ID    uuid.UUID
	Delta pgtype.Numeric
}

// AdjustRawMaterialStock applies a signed quantity delta. Stock is allowed to
// go negative; the ledger records intent, not a reservation.
func (q *Queries) AdjustRawMaterialStock(ctx context.Context, arg AdjustRawMaterialStockParams) (RawMaterial, error) {
	row := q.db.QueryRow(ctx, adjustRawMaterialStock, arg.ID, arg.Delta)
	var m RawMaterial
	err := row.Scan(&m.ID, &m.Name, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// --- Packing materials ---

const listPackingMaterials = `
SELECT id, name, unit_type, capacity, current_stock, created_at, updated_at
FROM packing_materials
ORDER BY name
`

func (q *Queries) ListPackingMaterials(ctx context.Context) ([]PackingMaterial, error) {
	rows, err := q.db.Query(ctx, listPackingMaterials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []PackingMaterial
	for rows.Next() {
		var m PackingMaterial
		if err := rows.Scan(&m.ID, &m.Name, &m.UnitType, &m.Capacity, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

const getPackingMaterial = `
SELECT id, name, unit_type, capacity, current_stock, created_at, updated_at
FROM packing_materials
WHERE id = $1
`

func (q *Queries) GetPackingMaterial(ctx context.Context, id uuid.UUID) (PackingMaterial, error) {
	row := q.db.QueryRow(ctx, getPackingMaterial, id)
	var m PackingMaterial
	err := row.Scan(&m.ID, &m.Name, &m.UnitType, &m.Capacity, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const createPackingMaterial = `
INSERT INTO packing_materials (name, unit_type, capacity, current_stock)
VALUES ($1, $2, $3, 0)
RETURNING id, name, unit_type, capacity, current_stock, created_at, updated_at
`

type CreatePackingMaterialParams struct {
	Name     string
	UnitType string
	Capacity int32
}

func (q *Queries) CreatePackingMaterial(ctx context.Context, arg CreatePackingMaterialParams) (PackingMaterial, error) {
	row := q.db.QueryRow(ctx, createPackingMaterial, arg.Name, arg.UnitType, arg.Capacity)
	var m PackingMaterial
	err := row.Scan(&m.ID, &m.Name, &m.UnitType, &m.Capacity, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const updatePackingMaterial = `
UPDATE packing_materials
SET name = $2, unit_type = $3, capacity = $4, updated_at = now()
WHERE id = $1
RETURNING id, name, unit_type, capacity, current_stock, created_at, updated_at
`

type UpdatePackingMaterialParams struct {
	ID       uuid.UUID
	Name     string
	UnitType string
	Capacity int32
}

func (q *Queries) UpdatePackingMaterial(ctx context.Context, arg UpdatePackingMaterialParams) (PackingMaterial, error) {
	row := q.db.QueryRow(ctx, updatePackingMaterial, arg.ID, arg.Name, arg.UnitType, arg.Capacity)
	var m PackingMaterial
	err := row.Scan(&m.ID, &m.Name, &m.UnitType, &m.Capacity, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const deletePackingMaterial = `
DELETE FROM packing_materials
WHERE id = $1
RETURNING id
`

func (q *Queries) DeletePackingMaterial(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deletePackingMaterial, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

const adjustPackingMaterialStock = `
UPDATE packing_materials
SET current_stock = current_stock + $2, updated_at = now()
WHERE id = $1
RETURNING id, name, unit_type, capacity, current_stock, created_at, updated_at
`

type AdjustPackingMaterialStockParams struct {
	ID    uuid.UUID
	Delta int32
}

func (q *Queries) AdjustPackingMaterialStock(ctx context.Context, arg AdjustPackingMaterialStockParams) (PackingMaterial, error) {
	row := q.db.QueryRow(ctx, adjustPackingMaterialStock, arg.ID, arg.Delta)
	var m PackingMaterial
	err := row.Scan(&m.ID, &m.Name, &m.UnitType, &m.Capacity, &m.CurrentStock, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// --- Material transactions (stock ledger) ---

const createMaterialTransaction = `
INSERT INTO material_transactions (material_kind, material_id, tx_type, quantity, price, tx_date, note)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, material_kind, material_id, tx_type, quantity, price, tx_date, note, created_at
`

type CreateMaterialTransactionParams struct {
	MaterialKind string
	MaterialID   uuid.UUID
	TxType       string
	Quantity     pgtype.Numeric
	Price        pgtype.Numeric
	TxDate       pgtype.Date
	Note         pgtype.Text
}

func (q *Queries) CreateMaterialTransaction(ctx context.Context, arg CreateMaterialTransactionParams) (MaterialTransaction, error) {
	row := q.db.QueryRow(ctx, createMaterialTransaction,
		arg.MaterialKind, arg.MaterialID, arg.TxType, arg.Quantity, arg.Price, arg.TxDate, arg.Note)
	var t MaterialTransaction
	err := row.Scan(&t.ID, &t.MaterialKind, &t.MaterialID, &t.TxType, &t.Quantity, &t.Price, &t.TxDate, &t.Note, &t.CreatedAt)
	return t, err
}

const listMaterialTransactions = `
SELECT id, material_kind, material_id, tx_type, quantity, price, tx_date, note, created_at
FROM material_transactions
WHERE material_kind = $1
  AND ($2::uuid IS NULL OR material_id = $2)
  AND ($3::text IS NULL OR tx_type = $3)
  AND ($4::date IS NULL OR tx_date >= $4)
  AND ($5::date IS NULL OR tx_date <= $5)
ORDER BY tx_date DESC, created_at DESC
`

type ListMaterialTransactionsParams struct {
	MaterialKind string
	MaterialID   pgtype.UUID
	TxType       pgtype.Text
	StartDate    pgtype.Date
	EndDate      pgtype.Date
}

func (q *Queries) ListMaterialTransactions(ctx context.Context, arg ListMaterialTransactionsParams) ([]MaterialTransaction, error) {
	rows, err := q.db.Query(ctx, listMaterialTransactions,
		arg.MaterialKind, arg.MaterialID, arg.TxType, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []MaterialTransaction
	for rows.Next() {
		var t MaterialTransaction
		if err := rows.Scan(&t.ID, &t.MaterialKind, &t.MaterialID, &t.TxType, &t.Quantity, &t.Price, &t.TxDate, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
