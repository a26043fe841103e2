package service

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
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

// deliveryWindow is the capacity window for a delivery: the delivery
// date from midnight to end of day, in the timestamp's own location.
func deliveryWindow(deliveryTime time.Time) (start, end time.Time) {
	start = time.Date(deliveryTime.Year(), deliveryTime.Month(), deliveryTime.Day(),
		0, 0, 0, 0, deliveryTime.Location())
	end = start.Add(24*time.Hour - time.Second)
	return start, end
}

// weekWindow is the Sunday-start week containing t, used for the
// weekly_reserved figure on inventory snapshots.
func weekWindow(t time.Time) (start, end time.Time) {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	start = midnight.AddDate(0, 0, -int(midnight.Weekday()))
	end = start.AddDate(0, 0, 7).Add(-time.Second)
	return start, end
}

func dateOf(t time.Time) pgtype.Date {
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

// textOrNull maps an empty string to SQL NULL.
func textOrNull(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
