package service

import (
	"context"
	"errors"

	"github.com/mr-daebak/api/internal/database"
	"github.com/shopspring/decimal"
)

// Errors returned by payment settlement.
var (
	ErrNoPaymentMethod = errors.New("payment method is required")
	ErrPaymentDeclined = errors.New("payment was declined")
	ErrRefundDeclined  = errors.New("refund was declined")
)

// PaymentGateway settles change-request deltas. Charge and Refund are
// no-ops for non-positive amounts.
type PaymentGateway interface {
	Charge(ctx context.Context, user database.User, amount decimal.Decimal) error
	Refund(ctx context.Context, user database.User, amount decimal.Decimal) error
}

// CardGateway is the in-house gateway stand-in: it verifies a card is on
// file and simulates settlement. Swapping in a real PG requires only
// this type.
type CardGateway struct{}

func NewCardGateway() *CardGateway {
	return &CardGateway{}
}

func (g *CardGateway) Charge(ctx context.Context, user database.User, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if !user.CardNumber.Valid || user.CardNumber.String == "" {
		return ErrNoPaymentMethod
	}
	return nil
}

func (g *CardGateway) Refund(ctx context.Context, user database.User, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return nil
}
