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
	Name           string
	Address        pgtype.Text
	Phone          pgtype.Text
	Consent        bool
	LoyaltyConsent bool
	Role           string
	AccountStatus  string
	EmployeeType   pgtype.Text
	CardNumber     pgtype.Text
	CardExpiry     pgtype.Text
	CardHolder     pgtype.Text
	CreatedAt      time.Time
}

type DinnerType struct {
	ID          uuid.UUID
	Name        string
	NameEn      string
	BasePrice   pgtype.Numeric
	Description pgtype.Text
}

type MenuItem struct {
	ID       uuid.UUID
	Name     string
	NameEn   string
	Price    pgtype.Numeric
	Category pgtype.Text
}

type DinnerMenuItem struct {
	DinnerTypeID    uuid.UUID
	MenuItemID      uuid.UUID
	DefaultQuantity int32
}

type ServingStyle struct {
	Name       string
	Multiplier pgtype.Numeric
}

type Order struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	DinnerTypeID        uuid.UUID
	ServingStyle        string
	DeliveryTime        time.Time
	DeliveryAddress     string
	TotalPrice          pgtype.Numeric
	Status              string
	PaymentStatus       string
	AdminApprovalStatus string
	CookingEmployeeID   pgtype.UUID
	DeliveryEmployeeID  pgtype.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
}

type ChangeRequest struct {
	ID                        uuid.UUID
	OrderID                   uuid.UUID
	UserID                    uuid.UUID
	Status                    string
	NewDinnerTypeID           uuid.UUID
	NewServingStyle           string
	NewDeliveryTime           time.Time
	NewDeliveryAddress        string
	OriginalTotalAmount       pgtype.Numeric
	RecalculatedAmount        pgtype.Numeric
	ChangeFeeAmount           pgtype.Numeric
	NewTotalAmount            pgtype.Numeric
	AlreadyPaidAmount         pgtype.Numeric
	ExtraChargeAmount         pgtype.Numeric
	ExpectedRefundAmount      pgtype.Numeric
	RequiresAdditionalPayment bool
	RequiresRefund            bool
	Reason                    string
	AdminComment              pgtype.Text
	RequestedAt               time.Time
	ApprovedAt                pgtype.Timestamptz
	RejectedAt                pgtype.Timestamptz
	UpdatedAt                 time.Time
}

type ChangeRequestItem struct {
	ID              uuid.UUID
	ChangeRequestID uuid.UUID
	MenuItemID      uuid.UUID
	Quantity        int32
	UnitPrice       pgtype.Numeric
}

type MenuInventory struct {
	MenuItemID        uuid.UUID
	CapacityPerWindow int32
	SafetyStock       int32
	OrderedQuantity   int32
	LastRestockedAt   pgtype.Timestamptz
	Notes             pgtype.Text
	UpdatedAt         time.Time
}

type InventoryReservation struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	Quantity     int32
	DeliveryTime time.Time
	WindowStart  time.Time
	WindowEnd    time.Time
	Consumed     bool
	ExpiresAt    pgtype.Timestamptz
	CreatedAt    time.Time
}

type WorkAssignment struct {
	ID         uuid.UUID
	EmployeeID uuid.UUID
	WorkDate   pgtype.Date
	TaskType   string
}

type DeliverySchedule struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	EmployeeID    uuid.UUID
	DeliveryDate  pgtype.Date
	DepartureTime time.Time
	ArrivalTime   time.Time
	ReturnTime    time.Time
	Status        string
	CreatedAt     time.Time
}
