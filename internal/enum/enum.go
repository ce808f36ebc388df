package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	SaleStatusPending   = "PENDING"
	SaleStatusCompleted = "COMPLETED"
)

// ── Group B: Reference data kinds (CHECK constrained in DB) ──

const (
	ProductKindOil   = "OIL"
	ProductKindOther = "OTHER"
)

const (
	MaterialKindRaw     = "RAW"
	MaterialKindPacking = "PACKING"
)

const (
	MaterialTxAdd      = "ADD"
	MaterialTxSubtract = "SUBTRACT"
)

// ── Group C: Configurable labels (no DB constraint beyond CHECK) ──

const (
	DeliveryTypeDirect  = "DIRECT"
	DeliveryTypeCourier = "COURIER"
)

const (
	PaymentMethodOnline = "ONLINE"
	PaymentMethodCash   = "CASH"
)

const (
	UserRoleOwner = "OWNER"
	UserRoleStaff = "STAFF"
)
