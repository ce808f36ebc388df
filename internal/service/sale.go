package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/shopspring/decimal"
)

const saleDateLayout = "2006-01-02"

// Errors returned by the sale service.
var (
	ErrCustomerName          = errors.New("customer_name is required")
	ErrEmptyItems            = errors.New("items are required")
	ErrInvalidSaleDate       = errors.New("invalid sale_date")
	ErrInvalidDeliveryType   = errors.New("invalid delivery_type")
	ErrInvalidQuantity       = errors.New("qty and units must be > 0")
	ErrInvalidProductID      = errors.New("invalid product_id")
	ErrInvalidPackingID      = errors.New("invalid packing_material_id")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNegativeAmount        = errors.New("amount must not be negative")
	ErrProductNotFound       = errors.New("product not found")
	ErrConfigMismatch        = errors.New("qty/packing combination not offered by product")
	ErrSaleNotFound          = errors.New("sale not found")
	ErrVersionConflict       = errors.New("sale was modified by another request")
	ErrPaymentExceedsBalance = errors.New("payment exceeds remaining balance")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SaleStore defines the DB methods needed to mutate sales.
// Satisfied by *database.Queries (and its WithTx variant).
type SaleStore interface {
	GetProductForSale(ctx context.Context, id uuid.UUID) (database.GetProductForSaleRow, error)
	FindQuantityOption(ctx context.Context, arg database.FindQuantityOptionParams) (database.ProductQuantity, error)
	AdjustRawMaterialStock(ctx context.Context, arg database.AdjustRawMaterialStockParams) (database.RawMaterial, error)
	AdjustPackingMaterialStock(ctx context.Context, arg database.AdjustPackingMaterialStockParams) (database.PackingMaterial, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (database.Sale, error)
	UpdateSale(ctx context.Context, arg database.UpdateSaleParams) (database.Sale, error)
	DeleteSale(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	DeleteSaleItems(ctx context.Context, saleID uuid.UUID) error
	CreateSalePayment(ctx context.Context, arg database.CreateSalePaymentParams) (database.SalePayment, error)
	ListSalePayments(ctx context.Context, saleID uuid.UUID) ([]database.SalePayment, error)
	SumSalePayments(ctx context.Context, saleID uuid.UUID) (pgtype.Numeric, error)
	UpsertDailySummary(ctx context.Context, arg database.UpsertDailySummaryParams) (database.DailySummary, error)
	UpsertDailyMaterialUsage(ctx context.Context, arg database.UpsertDailyMaterialUsageParams) error
	UpsertDailyOilSale(ctx context.Context, arg database.UpsertDailyOilSaleParams) error
}

// NewSaleStore creates a SaleStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewSaleStore func(db database.DBTX) SaleStore

// SaleLineRequest is a single line in a sale.
type SaleLineRequest struct {
	ProductID         string
	Qty               int32 // grams/ml per unit as configured on the product
	Units             int32
	UsesPackaging     bool
	PackingMaterialID string
	LineTotal         string
	Discount          string
}

// CreateSaleRequest is the validated input for creating a sale.
type CreateSaleRequest struct {
	SaleDate        string // YYYY-MM-DD
	CustomerName    string
	CustomerMobile  string
	CustomerAddress string
	DeliveryType    string
	CourierPrice    string
	OnlineAmount    string
	CashAmount      string
	Items           []SaleLineRequest
}

// UpdateSaleRequest replaces a sale's lines and customer fields.
// Version must match the last-seen sale version or the update is rejected.
type UpdateSaleRequest struct {
	ID                 uuid.UUID
	Version            int32
	SkipMaterialUpdate bool
	CreateSaleRequest
}

// SaleResult is the full sale with its lines.
type SaleResult struct {
	Sale  database.Sale
	Items []database.SaleItem
}

// SaleService handles sale business logic. Every mutation runs inside a
// single transaction: stock, ledger, and summary writes commit together or
// not at all.
type SaleService struct {
	pool     TxBeginner
	newStore NewSaleStore
}

// NewSaleService creates a new SaleService.
func NewSaleService(pool TxBeginner, newStore NewSaleStore) *SaleService {
	return &SaleService{pool: pool, newStore: newStore}
}

// lineEffect is a sale line's resolved impact on stock and aggregates.
type lineEffect struct {
	params         database.CreateSaleItemParams
	rawMaterialID  uuid.UUID
	rawConsumption decimal.Decimal
	oilLiters      decimal.Decimal // zero for non-oil products
	finalPrice     decimal.Decimal
}

// CreateSale validates, consumes stock, and records the sale atomically.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error) {
	if req.CustomerName == "" {
		return nil, ErrCustomerName
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	saleDate, err := parseSaleDate(req.SaleDate)
	if err != nil {
		return nil, err
	}
	if err := validateDeliveryType(req.DeliveryType); err != nil {
		return nil, err
	}
	courierPrice, err := parseAmount(req.CourierPrice)
	if err != nil {
		return nil, fmt.Errorf("courier_price: %w", err)
	}
	onlineAmount, err := parseAmount(req.OnlineAmount)
	if err != nil {
		return nil, fmt.Errorf("online_amount: %w", err)
	}
	cashAmount, err := parseAmount(req.CashAmount)
	if err != nil {
		return nil, fmt.Errorf("cash_amount: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	effects, total, err := resolveLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}
	// Courier delivery charges the customer for shipping as part of the total.
	if req.DeliveryType == enum.DeliveryTypeCourier {
		total = total.Add(courierPrice)
	}

	paid := onlineAmount.Add(cashAmount)
	remaining := total.Sub(paid)
	status := statusFor(remaining)

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		SaleDate:        saleDate,
		CustomerName:    req.CustomerName,
		CustomerMobile:  textOrNull(req.CustomerMobile),
		CustomerAddress: textOrNull(req.CustomerAddress),
		DeliveryType:    req.DeliveryType,
		CourierPrice:    decimalToNumeric(courierPrice),
		TotalAmount:     decimalToNumeric(total),
		RemainingAmount: decimalToNumeric(remaining),
		Status:          status,
	})
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	var items []database.SaleItem
	for _, eff := range effects {
		eff.params.SaleID = sale.ID
		item, err := store.CreateSaleItem(ctx, eff.params)
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
		items = append(items, item)
	}

	if err := applyEffects(ctx, store, effects, saleDate, decimal.NewFromInt(1)); err != nil {
		return nil, err
	}

	// Initial payments are recorded on the sale's own date.
	if onlineAmount.IsPositive() {
		if _, err := store.CreateSalePayment(ctx, database.CreateSalePaymentParams{
			SaleID: sale.ID,
			Method: enum.PaymentMethodOnline,
			Amount: decimalToNumeric(onlineAmount),
			PaidOn: saleDate,
		}); err != nil {
			return nil, fmt.Errorf("create online payment: %w", err)
		}
	}
	if cashAmount.IsPositive() {
		if _, err := store.CreateSalePayment(ctx, database.CreateSalePaymentParams{
			SaleID: sale.ID,
			Method: enum.PaymentMethodCash,
			Amount: decimalToNumeric(cashAmount),
			PaidOn: saleDate,
		}); err != nil {
			return nil, fmt.Errorf("create cash payment: %w", err)
		}
	}

	if _, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
		SummaryDate:     saleDate,
		TotalSales:      decimalToNumeric(total),
		TotalExpenses:   decimalToNumeric(decimal.Zero),
		TotalMiscIncome: decimalToNumeric(decimal.Zero),
		PendingAmount:   decimalToNumeric(remaining),
		OnlineAmount:    decimalToNumeric(onlineAmount),
		CashAmount:      decimalToNumeric(cashAmount),
	}); err != nil {
		return nil, fmt.Errorf("upsert daily summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SaleResult{Sale: sale, Items: items}, nil
}

// UpdateSale replaces a sale's lines and fields, reversing the original
// stock and aggregate effects before applying the new ones. With
// SkipMaterialUpdate only the financial totals move.
func (s *SaleService) UpdateSale(ctx context.Context, req UpdateSaleRequest) (*SaleResult, error) {
	if req.CustomerName == "" {
		return nil, ErrCustomerName
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	newDate, err := parseSaleDate(req.SaleDate)
	if err != nil {
		return nil, err
	}
	if err := validateDeliveryType(req.DeliveryType); err != nil {
		return nil, err
	}
	courierPrice, err := parseAmount(req.CourierPrice)
	if err != nil {
		return nil, fmt.Errorf("courier_price: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	original, err := store.GetSaleForUpdate(ctx, req.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("lock sale: %w", err)
	}
	if original.Version != req.Version {
		return nil, ErrVersionConflict
	}

	originalItems, err := store.ListSaleItems(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}

	if !req.SkipMaterialUpdate {
		// Reverse the original lines against current product recipes.
		originalEffects, err := effectsFromItems(ctx, store, originalItems)
		if err != nil {
			return nil, err
		}
		if err := applyEffects(ctx, store, originalEffects, original.SaleDate, decimal.NewFromInt(-1)); err != nil {
			return nil, err
		}
	}

	effects, total, err := resolveLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}
	if req.DeliveryType == enum.DeliveryTypeCourier {
		total = total.Add(courierPrice)
	}

	paidNum, err := store.SumSalePayments(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	paid := numericToDecimal(paidNum)
	remaining := total.Sub(paid)
	status := statusFor(remaining)

	if err := store.DeleteSaleItems(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("delete sale items: %w", err)
	}

	sale, err := store.UpdateSale(ctx, database.UpdateSaleParams{
		ID:              req.ID,
		SaleDate:        newDate,
		CustomerName:    req.CustomerName,
		CustomerMobile:  textOrNull(req.CustomerMobile),
		CustomerAddress: textOrNull(req.CustomerAddress),
		DeliveryType:    req.DeliveryType,
		CourierPrice:    decimalToNumeric(courierPrice),
		TotalAmount:     decimalToNumeric(total),
		RemainingAmount: decimalToNumeric(remaining),
		Status:          status,
	})
	if err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}

	var items []database.SaleItem
	for _, eff := range effects {
		eff.params.SaleID = sale.ID
		item, err := store.CreateSaleItem(ctx, eff.params)
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
		items = append(items, item)
	}

	if !req.SkipMaterialUpdate {
		if err := applyEffects(ctx, store, effects, newDate, decimal.NewFromInt(1)); err != nil {
			return nil, err
		}
	}

	// Shift financial totals off the original date and onto the new one.
	// Same-date edits net out through the running sums. Payment method
	// amounts were credited to the sale's date, so a date change has to
	// carry them along too or they strand on the old day.
	online, cash := decimal.Zero, decimal.Zero
	if !original.SaleDate.Time.Equal(newDate.Time) {
		online, cash, err = paymentMethodTotals(ctx, store, req.ID)
		if err != nil {
			return nil, err
		}
	}
	originalTotal := numericToDecimal(original.TotalAmount)
	originalRemaining := numericToDecimal(original.RemainingAmount)
	if _, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
		SummaryDate:     original.SaleDate,
		TotalSales:      decimalToNumeric(originalTotal.Neg()),
		TotalExpenses:   decimalToNumeric(decimal.Zero),
		TotalMiscIncome: decimalToNumeric(decimal.Zero),
		PendingAmount:   decimalToNumeric(originalRemaining.Neg()),
		OnlineAmount:    decimalToNumeric(online.Neg()),
		CashAmount:      decimalToNumeric(cash.Neg()),
	}); err != nil {
		return nil, fmt.Errorf("reverse daily summary: %w", err)
	}
	if _, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
		SummaryDate:     newDate,
		TotalSales:      decimalToNumeric(total),
		TotalExpenses:   decimalToNumeric(decimal.Zero),
		TotalMiscIncome: decimalToNumeric(decimal.Zero),
		PendingAmount:   decimalToNumeric(remaining),
		OnlineAmount:    decimalToNumeric(online),
		CashAmount:      decimalToNumeric(cash),
	}); err != nil {
		return nil, fmt.Errorf("upsert daily summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SaleResult{Sale: sale, Items: items}, nil
}

// DeleteSale reverses the sale's stock and aggregate effects, then removes
// it. Items and payments cascade in the database.
func (s *SaleService) DeleteSale(ctx context.Context, id uuid.UUID, version int32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	sale, err := store.GetSaleForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("lock sale: %w", err)
	}
	if sale.Version != version {
		return ErrVersionConflict
	}

	items, err := store.ListSaleItems(ctx, id)
	if err != nil {
		return fmt.Errorf("list sale items: %w", err)
	}
	effects, err := effectsFromItems(ctx, store, items)
	if err != nil {
		return err
	}
	if err := applyEffects(ctx, store, effects, sale.SaleDate, decimal.NewFromInt(-1)); err != nil {
		return err
	}

	// Back out the financial totals. Payment method amounts were credited to
	// the sale's date, so they come back off the same date.
	total := numericToDecimal(sale.TotalAmount)
	remaining := numericToDecimal(sale.RemainingAmount)
	if _, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
		SummaryDate:     sale.SaleDate,
		TotalSales:      decimalToNumeric(total.Neg()),
		TotalExpenses:   decimalToNumeric(decimal.Zero),
		TotalMiscIncome: decimalToNumeric(decimal.Zero),
		PendingAmount:   decimalToNumeric(remaining.Neg()),
		OnlineAmount:    decimalToNumeric(decimal.Zero),
		CashAmount:      decimalToNumeric(decimal.Zero),
	}); err != nil {
		return fmt.Errorf("reverse daily summary: %w", err)
	}

	online, cash, err := paymentMethodTotals(ctx, store, id)
	if err != nil {
		return err
	}
	if !online.IsZero() || !cash.IsZero() {
		if _, err := store.UpsertDailySummary(ctx, database.UpsertDailySummaryParams{
			SummaryDate:     sale.SaleDate,
			TotalSales:      decimalToNumeric(decimal.Zero),
			TotalExpenses:   decimalToNumeric(decimal.Zero),
			TotalMiscIncome: decimalToNumeric(decimal.Zero),
			PendingAmount:   decimalToNumeric(decimal.Zero),
			OnlineAmount:    decimalToNumeric(online.Neg()),
			CashAmount:      decimalToNumeric(cash.Neg()),
		}); err != nil {
			return fmt.Errorf("reverse payment summary: %w", err)
		}
	}

	if _, err := store.DeleteSale(ctx, id); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// resolveLines validates each sale line against the product catalog and
// computes its stock and pricing effects. Returns the effects and the sum of
// final line prices.
func resolveLines(ctx context.Context, store SaleStore, lines []SaleLineRequest) ([]lineEffect, decimal.Decimal, error) {
	total := decimal.Zero
	var effects []lineEffect

	for i, line := range lines {
		if line.Qty <= 0 || line.Units <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProductForSale(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		packingID := pgtype.UUID{}
		if line.UsesPackaging {
			pid, err := uuid.Parse(line.PackingMaterialID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidPackingID)
			}
			packingID = pgtype.UUID{Bytes: pid, Valid: true}
		}

		// The (qty, packing material) pair must be one of the product's
		// configured options; otherwise the whole sale is rejected.
		if _, err := store.FindQuantityOption(ctx, database.FindQuantityOptionParams{
			ProductID:         productID,
			Qty:               line.Qty,
			PackingMaterialID: packingID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrConfigMismatch)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: find quantity option: %w", i, err)
		}

		lineTotal, err := parseAmount(line.LineTotal)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: price: %w", i, err)
		}
		discount, err := parseAmount(line.Discount)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: discount: %w", i, err)
		}
		finalPrice := lineTotal.Sub(discount)
		if finalPrice.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: discount exceeds price: %w", i, ErrNegativeAmount)
		}
		total = total.Add(finalPrice)

		rawConsumption := consumption(line.Qty, line.Units, numericToDecimal(product.RecoveryRate))

		oilLiters := decimal.Zero
		if product.Kind == enum.ProductKindOil {
			oilLiters = decimal.NewFromInt32(line.Qty).Div(decimal.NewFromInt(1000)).Mul(decimal.NewFromInt32(line.Units))
		}

		effects = append(effects, lineEffect{
			params: database.CreateSaleItemParams{
				ProductID:         productID,
				ProductKind:       product.Kind,
				ProductName:       product.Name,
				Qty:               line.Qty,
				Units:             line.Units,
				UsesPackaging:     line.UsesPackaging,
				PackingMaterialID: packingID,
				LineTotal:         decimalToNumeric(lineTotal),
				Discount:          decimalToNumeric(discount),
				FinalPrice:        decimalToNumeric(finalPrice),
			},
			rawMaterialID:  product.RawMaterialID,
			rawConsumption: rawConsumption,
			oilLiters:      oilLiters,
			finalPrice:     finalPrice,
		})
	}

	return effects, total, nil
}

// effectsFromItems rebuilds line effects from stored sale items so a sale
// can be reversed. Consumption is recomputed against the product's current
// recovery rate; the packing material comes from the line itself.
func effectsFromItems(ctx context.Context, store SaleStore, items []database.SaleItem) ([]lineEffect, error) {
	var effects []lineEffect
	for _, item := range items {
		product, err := store.GetProductForSale(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("sale item %s: %w", item.ID, ErrProductNotFound)
			}
			return nil, fmt.Errorf("sale item %s: get product: %w", item.ID, err)
		}

		oilLiters := decimal.Zero
		if item.ProductKind == enum.ProductKindOil {
			oilLiters = decimal.NewFromInt32(item.Qty).Div(decimal.NewFromInt(1000)).Mul(decimal.NewFromInt32(item.Units))
		}

		effects = append(effects, lineEffect{
			params: database.CreateSaleItemParams{
				ProductID:         item.ProductID,
				ProductKind:       item.ProductKind,
				ProductName:       item.ProductName,
				Qty:               item.Qty,
				Units:             item.Units,
				UsesPackaging:     item.UsesPackaging,
				PackingMaterialID: item.PackingMaterialID,
				LineTotal:         item.LineTotal,
				Discount:          item.Discount,
				FinalPrice:        item.FinalPrice,
			},
			rawMaterialID:  product.RawMaterialID,
			rawConsumption: consumption(item.Qty, item.Units, numericToDecimal(product.RecoveryRate)),
			oilLiters:      oilLiters,
			finalPrice:     numericToDecimal(item.FinalPrice),
		})
	}
	return effects, nil
}

// applyEffects moves stock and the per-date running sums for a set of line
// effects. sign is +1 to apply a sale, -1 to reverse one.
func applyEffects(ctx context.Context, store SaleStore, effects []lineEffect, date pgtype.Date, sign decimal.Decimal) error {
	for _, eff := range effects {
		rawDelta := eff.rawConsumption.Mul(sign).Neg()
		material, err := store.AdjustRawMaterialStock(ctx, database.AdjustRawMaterialStockParams{
			ID:    eff.rawMaterialID,
			Delta: decimalToNumeric(rawDelta),
		})
		if err != nil {
			return fmt.Errorf("adjust raw stock: %w", err)
		}
		if err := store.UpsertDailyMaterialUsage(ctx, database.UpsertDailyMaterialUsageParams{
			SummaryDate:  date,
			MaterialKind: enum.MaterialKindRaw,
			MaterialID:   material.ID,
			MaterialName: material.Name,
			Quantity:     decimalToNumeric(eff.rawConsumption.Mul(sign)),
		}); err != nil {
			return fmt.Errorf("upsert raw usage: %w", err)
		}

		if eff.params.UsesPackaging && eff.params.PackingMaterialID.Valid {
			unitsDelta := int32(decimal.NewFromInt32(eff.params.Units).Mul(sign).IntPart())
			packing, err := store.AdjustPackingMaterialStock(ctx, database.AdjustPackingMaterialStockParams{
				ID:    eff.params.PackingMaterialID.Bytes,
				Delta: -unitsDelta,
			})
			if err != nil {
				return fmt.Errorf("adjust packing stock: %w", err)
			}
			if err := store.UpsertDailyMaterialUsage(ctx, database.UpsertDailyMaterialUsageParams{
				SummaryDate:  date,
				MaterialKind: enum.MaterialKindPacking,
				MaterialID:   packing.ID,
				MaterialName: packing.Name,
				Quantity:     decimalToNumeric(decimal.NewFromInt32(unitsDelta)),
			}); err != nil {
				return fmt.Errorf("upsert packing usage: %w", err)
			}
		}

		if !eff.oilLiters.IsZero() {
			if err := store.UpsertDailyOilSale(ctx, database.UpsertDailyOilSaleParams{
				SummaryDate: date,
				ProductID:   eff.params.ProductID,
				ProductName: eff.params.ProductName,
				Quantity:    decimalToNumeric(eff.oilLiters.Mul(sign)),
				Amount:      decimalToNumeric(eff.finalPrice.Mul(sign)),
			}); err != nil {
				return fmt.Errorf("upsert oil sale: %w", err)
			}
		}
	}
	return nil
}

// --- Helpers ---

// consumption converts a sold quantity to raw-material draw:
// (qty/1000) * units / (recovery_rate/100). A 50% recovery rate means two
// kilograms of seed per kilogram of oil.
func consumption(qty, units int32, recoveryRate decimal.Decimal) decimal.Decimal {
	sold := decimal.NewFromInt32(qty).Div(decimal.NewFromInt(1000)).Mul(decimal.NewFromInt32(units))
	if recoveryRate.IsZero() {
		return sold
	}
	return sold.Div(recoveryRate.Div(decimal.NewFromInt(100)))
}

// paymentMethodTotals sums a sale's recorded payments by method.
func paymentMethodTotals(ctx context.Context, store SaleStore, saleID uuid.UUID) (online, cash decimal.Decimal, err error) {
	payments, err := store.ListSalePayments(ctx, saleID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("list payments: %w", err)
	}
	online, cash = decimal.Zero, decimal.Zero
	for _, p := range payments {
		amount := numericToDecimal(p.Amount)
		if p.Method == enum.PaymentMethodOnline {
			online = online.Add(amount)
		} else {
			cash = cash.Add(amount)
		}
	}
	return online, cash, nil
}

func statusFor(remaining decimal.Decimal) string {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return enum.SaleStatusCompleted
	}
	return enum.SaleStatusPending
}

func parseSaleDate(s string) (pgtype.Date, error) {
	t, err := time.Parse(saleDateLayout, s)
	if err != nil {
		return pgtype.Date{}, ErrInvalidSaleDate
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func validateDeliveryType(s string) error {
	switch s {
	case enum.DeliveryTypeDirect, enum.DeliveryTypeCourier:
		return nil
	}
	return ErrInvalidDeliveryType
}

// parseAmount parses an optional money field. Empty means zero; negative
// values are rejected.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
