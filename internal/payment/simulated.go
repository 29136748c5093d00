package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SimulatedProvider always succeeds after a fixed delay. Ids are derived from
// their inputs so repeated calls return the same references.
type SimulatedProvider struct {
	delay time.Duration
}

func NewSimulatedProvider(delay time.Duration) *SimulatedProvider {
	return &SimulatedProvider{delay: delay}
}

func (p *SimulatedProvider) Name() string    { return ProviderSimulated }
func (p *SimulatedProvider) Simulated() bool { return true }

func (p *SimulatedProvider) CreateIntent(ctx context.Context, appointmentID uuid.UUID, _ decimal.Decimal) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return "pi_sim_" + appointmentID.String(), nil
}

func (p *SimulatedProvider) Confirm(ctx context.Context, intentID string) (Outcome, error) {
	if intentID == "" {
		return Outcome{}, errors.New("intent id is required")
	}
	if err := p.wait(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusSucceeded, Reference: intentID}, nil
}

func (p *SimulatedProvider) Refund(ctx context.Context, intentID string, _ decimal.Decimal, idempotencyKey string) (Outcome, error) {
	if intentID == "" {
		return Outcome{}, errors.New("intent id is required")
	}
	if err := p.wait(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusSucceeded, Reference: "re_sim_" + idempotencyKey}, nil
}

func (p *SimulatedProvider) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
