package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProviderSimulated = "simulated"
	ProviderStripe    = "stripe"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome is the provider's answer to a confirm or refund call. Reference is
// the provider-side id (intent id for confirms, refund id for refunds).
type Outcome struct {
	Status        Status
	Reference     string
	FailureReason string
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// Provider is the payment gateway abstraction. Implementations must treat
// idempotencyKey as the deduplication key for refunds so a retried refund
// never moves money twice.
type Provider interface {
	Name() string
	Simulated() bool
	CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal) (string, error)
	Confirm(ctx context.Context, intentID string) (Outcome, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal, idempotencyKey string) (Outcome, error)
}

type Settings struct {
	Provider        string
	StripeSecretKey string
	Currency        string
	SimulatedDelay  time.Duration
}

// NewProvider selects the gateway once at startup.
func NewProvider(s Settings) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderSimulated:
		return NewSimulatedProvider(s.SimulatedDelay), nil
	case ProviderStripe:
		if s.StripeSecretKey == "" {
			return nil, errors.New("stripe provider requires a secret key")
		}
		return NewStripeProvider(s.StripeSecretKey, s.Currency, nil), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", s.Provider)
	}
}
