package billing

import (
	"math"

	"subtrack/internal/core"
)

// DaysUntil returns the number of whole days from one calendar day to
// another, rounding partial days up.
func DaysUntil(from, to core.Date) int {
	return int(math.Ceil(to.Sub(from.Time).Hours() / 24))
}

// IsReminderDue reports whether a reminder should fire today for a bill
// projected at nextBill under the given policy.
//
// A bill due today or in the past is never due here: that means the
// projection is stale and the caller should re-project before evaluating
// again. The function is pure and idempotent; suppressing duplicate
// notifications across repeated sweeps is the caller's job.
func IsReminderDue(nextBill core.Date, policy core.ReminderPolicy, today core.Date) bool {
	if policy.Never() || nextBill.IsEmpty() {
		return false
	}
	daysUntil := DaysUntil(today, nextBill)
	return daysUntil > 0 && daysUntil <= policy.LeadDays()
}
