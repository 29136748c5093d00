package appointment

import (
	"errors"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

// RefundWindowDays is the minimum number of days before the appointment date
// at which a refund may still be requested.
const RefundWindowDays = 3

var (
	ErrNotEligible = errors.New("appointment is not eligible for a refund")
	ErrNotPaid     = errors.New("appointment has not been paid")
)

// DaysUntil counts calendar days from today to date; negative once date has passed.
func DaysUntil(today, date schedule.Date) int {
	return date.DaysSince(today)
}

// CheckRefundEligibility is the single refund-eligibility predicate. It returns
// nil when a refund may be requested today, ErrNotPaid when there is nothing to
// refund and ErrNotEligible otherwise.
func CheckRefundEligibility(a *Appointment, today schedule.Date) error {
	if a.PaymentStatus != PaymentPaid {
		return ErrNotPaid
	}
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return ErrNotEligible
	}
	if DaysUntil(today, a.Date) < RefundWindowDays {
		return ErrNotEligible
	}
	return nil
}

// IsNonRefundableCancellation reports whether a cancellation by initiator today
// forfeits the payment: a paid appointment cancelled by the client inside the
// refund window.
func IsNonRefundableCancellation(a *Appointment, initiator Initiator, today schedule.Date) bool {
	return a.PaymentStatus == PaymentPaid &&
		initiator == InitiatorClient &&
		DaysUntil(today, a.Date) < RefundWindowDays
}
