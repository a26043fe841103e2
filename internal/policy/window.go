package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Reservations lock one day before delivery and carry a fee from
	// three days before. Cancellation is never locked but costs a fee
	// inside seven days.
	lockWindowDays      = 1
	feeWindowDays       = 3
	cancellationFeeDays = 7
)

var (
	// ChangeFee is the flat reservation-change fee in KRW.
	ChangeFee = decimal.NewFromInt(30000)
	// CancellationFee is the flat late-cancellation fee in KRW.
	CancellationFee = decimal.NewFromInt(30000)
)

// ChangeWindow is the outcome of the change-fee policy for one order.
type ChangeWindow struct {
	Allowed bool
	Fee     decimal.Decimal
	Message string
}

// GetChangeWindow evaluates the reservation-change policy at date
// granularity. Pure and total for any valid delivery timestamp:
//   - today at or past D-1: locked
//   - today in [D-3, D-1): allowed with the flat fee
//   - earlier: allowed, free
func GetChangeWindow(deliveryTime, now time.Time) ChangeWindow {
	reservationDate := atMidnight(deliveryTime)
	today := atMidnight(now)

	lockStart := reservationDate.AddDate(0, 0, -lockWindowDays)
	feeStart := reservationDate.AddDate(0, 0, -feeWindowDays)

	switch {
	case !today.Before(lockStart):
		return ChangeWindow{
			Allowed: false,
			Fee:     decimal.Zero,
			Message: "배송 1일 전부터는 예약을 변경할 수 없습니다",
		}
	case !today.Before(feeStart):
		return ChangeWindow{
			Allowed: true,
			Fee:     ChangeFee,
			Message: "배송 3일 전 이후 변경에는 수수료 30,000원이 부과됩니다",
		}
	default:
		return ChangeWindow{Allowed: true, Fee: decimal.Zero}
	}
}

// GetCancellationFee returns the fee for cancelling now. Cancellation is
// always permitted pre-delivery; only the fee varies.
func GetCancellationFee(deliveryTime, now time.Time) decimal.Decimal {
	if DaysUntilDelivery(deliveryTime, now) < cancellationFeeDays {
		return CancellationFee
	}
	return decimal.Zero
}

// DaysUntilDelivery counts whole days between today's midnight and the
// delivery date's midnight. Zero means delivery is today; negative means
// the delivery date has passed.
func DaysUntilDelivery(deliveryTime, now time.Time) int {
	delivery := atMidnight(deliveryTime)
	today := atMidnight(now)
	return int(delivery.Sub(today).Hours() / 24)
}

func atMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
