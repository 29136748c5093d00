package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider drives Stripe PaymentIntents. The client attaches a payment
// method out of band; Confirm only finalises the intent.
type StripeProvider struct {
	api      *client.API
	currency string
}

// NewStripeProvider builds a provider on its own API client. backends may be
// nil to use Stripe's defaults.
func NewStripeProvider(secretKey, currency string, backends *stripe.Backends) *StripeProvider {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeProvider{
		api:      client.New(secretKey, backends),
		currency: strings.ToLower(currency),
	}
}

func (p *StripeProvider) Name() string    { return ProviderStripe }
func (p *StripeProvider) Simulated() bool { return false }

// minorUnits converts a decimal amount in currency units to cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (p *StripeProvider) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(minorUnits(amount)),
		Currency: stripe.String(p.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("appointment_id", appointmentID.String())
	params.SetIdempotencyKey("intent-" + appointmentID.String())

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create payment intent: %w", err)
	}
	return pi.ID, nil
}

func (p *StripeProvider) Confirm(ctx context.Context, intentID string) (Outcome, error) {
	pi, err := p.api.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("stripe get payment intent: %w", err)
	}

	if pi.Status == stripe.PaymentIntentStatusRequiresConfirmation {
		pi, err = p.api.PaymentIntents.Confirm(intentID, &stripe.PaymentIntentConfirmParams{
			Params: stripe.Params{Context: ctx},
		})
		if err != nil {
			if reason, declined := cardDeclined(err); declined {
				return Outcome{Status: StatusFailed, Reference: intentID, FailureReason: reason}, nil
			}
			return Outcome{}, fmt.Errorf("stripe confirm payment intent: %w", err)
		}
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return Outcome{
			Status:        StatusFailed,
			Reference:     intentID,
			FailureReason: "payment intent is " + string(pi.Status),
		}, nil
	}
	return Outcome{Status: StatusSucceeded, Reference: intentID}, nil
}

func (p *StripeProvider) Refund(ctx context.Context, intentID string, amount decimal.Decimal, idempotencyKey string) (Outcome, error) {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(minorUnits(amount)),
	}
	params.SetIdempotencyKey("refund-" + idempotencyKey)

	r, err := p.api.Refunds.New(params)
	if err != nil {
		if reason, declined := cardDeclined(err); declined {
			return Outcome{Status: StatusFailed, FailureReason: reason}, nil
		}
		return Outcome{}, fmt.Errorf("stripe create refund: %w", err)
	}

	switch r.Status {
	case stripe.RefundStatusSucceeded, stripe.RefundStatusPending:
		return Outcome{Status: StatusSucceeded, Reference: r.ID}, nil
	default:
		return Outcome{Status: StatusFailed, Reference: r.ID, FailureReason: "refund is " + string(r.Status)}, nil
	}
}

func cardDeclined(err error) (string, bool) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return stripeErr.Msg, true
	}
	return "", false
}
