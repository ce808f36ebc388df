package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listProducts = `
SELECT p.id, p.kind, p.name, p.raw_material_id, p.recovery_rate, p.created_at, p.updated_at,
       rm.name AS raw_material_name
FROM products p
JOIN raw_materials rm ON rm.id = p.raw_material_id
ORDER BY p.name
`

type ListProductsRow struct {
	Product
	RawMaterialName string
}

func (q *Queries) ListProducts(ctx context.Context) ([]ListProductsRow, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []ListProductsRow
	for rows.Next() {
		var p ListProductsRow
		if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &p.RawMaterialID, &p.RecoveryRate, &p.CreatedAt, &p.UpdatedAt, &p.RawMaterialName); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const getProduct = `
SELECT id, kind, name, raw_material_id, recovery_rate, created_at, updated_at
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	var p Product
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.RawMaterialID, &p.RecoveryRate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getProductForSale = `
SELECT p.id, p.kind, p.name, p.raw_material_id, p.recovery_rate, rm.name AS raw_material_name
FROM products p
JOIN raw_materials rm ON rm.id = p.raw_material_id
WHERE p.id = $1
`

// GetProductForSaleRow carries the recipe fields the sale orchestrator needs.
type GetProductForSaleRow struct {
	ID              uuid.UUID
	Kind            string
	Name            string
	RawMaterialID   uuid.UUID
	RecoveryRate    pgtype.Numeric
	RawMaterialName string
}

func (q *Queries) GetProductForSale(ctx context.Context, id uuid.UUID) (GetProductForSaleRow, error) {
	row := q.db.QueryRow(ctx, getProductForSale, id)
	var p GetProductForSaleRow
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.RawMaterialID, &p.RecoveryRate, &p.RawMaterialName)
	return p, err
}

const createProduct = `
INSERT INTO products (kind, name, raw_material_id, recovery_rate)
VALUES ($1, $2, $3, $4)
RETURNING id, kind, name, raw_material_id, recovery_rate, created_at, updated_at
`

type CreateProductParams struct {
	Kind          string
	Name          string
	RawMaterialID uuid.UUID
	RecoveryRate  pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.Kind, arg.Name, arg.RawMaterialID, arg.RecoveryRate)
	var p Product
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.RawMaterialID, &p.RecoveryRate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const updateProduct = `
UPDATE products
SET kind = $2, name = $3, raw_material_id = $4, recovery_rate = $5, updated_at = now()
WHERE id = $1
RETURNING id, kind, name, raw_material_id, recovery_rate, created_at, updated_at
`

type UpdateProductParams struct {
	ID            uuid.UUID
	Kind          string
	Name          string
	RawMaterialID uuid.UUID
	RecoveryRate  pgtype.Numeric
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct, arg.ID, arg.Kind, arg.Name, arg.RawMaterialID, arg.RecoveryRate)
	var p Product
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.RawMaterialID, &p.RecoveryRate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listProductQuantities = `
SELECT id, product_id, qty, display_name, unit_price, packing_material_id
FROM product_quantities
WHERE product_id = $1
ORDER BY qty
`

func (q *Queries) ListProductQuantities(ctx context.Context, productID uuid.UUID) ([]ProductQuantity, error) {
	rows, err := q.db.Query(ctx, listProductQuantities, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quantities []ProductQuantity
	for rows.Next() {
		var pq ProductQuantity
		if err := rows.Scan(&pq.ID, &pq.ProductID, &pq.Qty, &pq.DisplayName, &pq.UnitPrice, &pq.PackingMaterialID); err != nil {
			return nil, err
		}
		quantities = append(quantities, pq)
	}
	return quantities, rows.Err()
}

const createProductQuantity = `
INSERT INTO product_quantities (product_id, qty, display_name, unit_price, packing_material_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, qty, display_name, unit_price, packing_material_id
`

type CreateProductQuantityParams struct {
	ProductID         uuid.UUID
	Qty               int32
	DisplayName       pgtype.Text
	UnitPrice         pgtype.Numeric
	PackingMaterialID pgtype.UUID
}

func (q *Queries) CreateProductQuantity(ctx context.Context, arg CreateProductQuantityParams) (ProductQuantity, error) {
	row := q.db.QueryRow(ctx, createProductQuantity,
		arg.ProductID, arg.Qty, arg.DisplayName, arg.UnitPrice, arg.PackingMaterialID)
	var pq ProductQuantity
	err := row.Scan(&pq.ID, &pq.ProductID, &pq.Qty, &pq.DisplayName, &pq.UnitPrice, &pq.PackingMaterialID)
	return pq, err
}

const deleteProductQuantities = `
DELETE FROM product_quantities
WHERE product_id = $1
`

// DeleteProductQuantities clears a product's packaging options before an
// update rewrites them.
func (q *Queries) DeleteProductQuantities(ctx context.Context, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteProductQuantities, productID)
	return err
}

const findQuantityOption = `
SELECT id, product_id, qty, display_name, unit_price, packing_material_id
FROM product_quantities
WHERE product_id = $1 AND qty = $2 AND packing_material_id IS NOT DISTINCT FROM $3
`

type FindQuantityOptionParams struct {
	ProductID         uuid.UUID
	Qty               int32
	PackingMaterialID pgtype.UUID
}

// FindQuantityOption resolves a sale line's (qty, packing material) pair to
// the product's pricing configuration. pgx.ErrNoRows means the line
// references a combination the product does not offer.
func (q *Queries) FindQuantityOption(ctx context.Context, arg FindQuantityOptionParams) (ProductQuantity, error) {
	row := q.db.QueryRow(ctx, findQuantityOption, arg.ProductID, arg.Qty, arg.PackingMaterialID)
	var pq ProductQuantity
	err := row.Scan(&pq.ID, &pq.ProductID, &pq.Qty, &pq.DisplayName, &pq.UnitPrice, &pq.PackingMaterialID)
	return pq, err
}
