// Package billing holds the pure date arithmetic of the service: projecting
// the next billing occurrence of a subscription and deciding whether a
// reminder falls inside its lead window. Nothing in here performs I/O.
package billing

import (
	"errors"
	"time"

	"subtrack/internal/core"
)

// ErrNoAnchor is returned when a projection is requested for a
// subscription without an anchor date. Callers treat it as "never due"
// rather than a failure.
var ErrNoAnchor = errors.New("subscription has no anchor date")

// NextOccurrence returns the next billing date on or after reference.
//
// If anchor is on or after reference it is returned unchanged: no cycles
// have elapsed yet. Otherwise the result is the smallest anchor + k*cycle
// (k >= 1) that is >= reference. Month and year steps keep the anchor's
// day-of-month, clamping to the last day of the target month when the day
// does not exist there (Jan 31 + 1 month lands on Feb 28 or 29). The clamp
// is always computed from the anchor's own day, so repeated cycles do not
// drift toward shorter months.
//
// k is estimated by integer division over the elapsed span and then
// corrected by single steps, so the cost is constant no matter how far in
// the past the anchor lies.
func NextOccurrence(anchor core.Date, cycle core.BillingCycle, reference core.Date) (core.Date, error) {
	if anchor.IsEmpty() {
		return core.Date{}, ErrNoAnchor
	}
	if err := cycle.Validate(); err != nil {
		return core.Date{}, err
	}
	if !anchor.Before(reference.Time) {
		return anchor, nil
	}

	k := estimateSteps(anchor, cycle, reference)
	if k < 1 {
		k = 1
	}
	for k > 1 && !addCycles(anchor, cycle, k-1).Before(reference.Time) {
		k--
	}
	for addCycles(anchor, cycle, k).Before(reference.Time) {
		k++
	}
	return addCycles(anchor, cycle, k), nil
}

// estimateSteps guesses how many whole cycles fit between anchor and
// reference. The guess may be off by a step or two around clamped month
// ends; NextOccurrence corrects it.
func estimateSteps(anchor core.Date, cycle core.BillingCycle, reference core.Date) int {
	switch cycle.Unit {
	case core.UnitWeek:
		elapsedDays := int(reference.Sub(anchor.Time).Hours() / 24)
		return elapsedDays / (cycle.Amount * 7)
	case core.UnitYear:
		return (reference.Year() - anchor.Year()) / cycle.Amount
	default:
		months := (reference.Year()-anchor.Year())*12 + int(reference.Month()) - int(anchor.Month())
		return months / cycle.Amount
	}
}

func addCycles(anchor core.Date, cycle core.BillingCycle, k int) core.Date {
	switch cycle.Unit {
	case core.UnitWeek:
		return core.Date{Time: anchor.AddDate(0, 0, 7*cycle.Amount*k)}
	case core.UnitYear:
		return addMonthsClamped(anchor, 12*cycle.Amount*k)
	default:
		return addMonthsClamped(anchor, cycle.Amount*k)
	}
}

// addMonthsClamped adds months to d keeping d's day-of-month, clamped to
// the last valid day of the target month. time.AddDate is avoided because
// it normalizes overflow (Jan 31 + 1 month = Mar 3) instead of clamping.
func addMonthsClamped(d core.Date, months int) core.Date {
	y := d.Year()
	m := int(d.Month()) - 1 + months
	y += m / 12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	day := d.Day()
	if last := lastDayOfMonth(y, time.Month(m+1)); day > last {
		day = last
	}
	return core.NewDate(y, m+1, day)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
