package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RawMaterial struct {
	ID           uuid.UUID
	Name         string
	CurrentStock pgtype.Numeric
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PackingMaterial struct {
	ID           uuid.UUID
	Name         string
	UnitType     string
	Capacity     int32
	CurrentStock int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MaterialTransaction is a signed stock-ledger entry for a raw or packing
// material. Quantity carries the sign; TxType records the operator intent.
type MaterialTransaction struct {
	ID           uuid.UUID
	MaterialKind string
	MaterialID   uuid.UUID
	TxType       string
	Quantity     pgtype.Numeric
	Price        pgtype.Numeric
	TxDate       pgtype.Date
	Note         pgtype.Text
	CreatedAt    time.Time
}

type Product struct {
	ID            uuid.UUID
	Kind          string
	Name          string
	RawMaterialID uuid.UUID
	RecoveryRate  pgtype.Numeric
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductQuantity is one sellable packaging option of a product:
// a fill quantity (ml/g), its unit price, and the packing material used.
type ProductQuantity struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	Qty               int32
	DisplayName       pgtype.Text
	UnitPrice         pgtype.Numeric
	PackingMaterialID pgtype.UUID
}

type Sale struct {
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
	Version         int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type SaleItem struct {
	ID                uuid.UUID
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

type SalePayment struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	Method    string
	Amount    pgtype.Numeric
	PaidOn    pgtype.Date
	CreatedAt time.Time
}

type DailySummary struct {
	SummaryDate     pgtype.Date
	TotalSales      pgtype.Numeric
	TotalExpenses   pgtype.Numeric
	TotalMiscIncome pgtype.Numeric
	PendingAmount   pgtype.Numeric
	OnlineAmount    pgtype.Numeric
	CashAmount      pgtype.Numeric
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DailyMaterialUsage is the per-day running consumption total of one
// material. One row per (date, kind, material); sale mutations add signed
// deltas so the row is always the net usage for the day.
type DailyMaterialUsage struct {
	SummaryDate  pgtype.Date
	MaterialKind string
	MaterialID   uuid.UUID
	MaterialName string
	Quantity     pgtype.Numeric
}

type DailyOilSale struct {
	SummaryDate pgtype.Date
	ProductID   uuid.UUID
	ProductName string
	Quantity    pgtype.Numeric
	Amount      pgtype.Numeric
}

type Expense struct {
	ID          uuid.UUID
	Name        string
	ExpenseDate pgtype.Date
	Amount      pgtype.Numeric
	Note        pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MiscIncome struct {
	ID            uuid.UUID
	Title         string
	IncomeDate    pgtype.Date
	Amount        pgtype.Numeric
	PaymentMethod string
	Note          pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
