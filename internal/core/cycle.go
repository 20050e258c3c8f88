// Package core provides the domain types shared across the service.
//
// This file defines the billing cycle: the periodic descriptor that drives
// next-bill projection and monthly-equivalent normalization. Cycles arrive
// from clients in the string form "Every 3 Month(s)" and are parsed exactly
// once at the storage boundary; downstream code only ever sees the
// structured form.
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CycleUnit is the calendar unit of a billing cycle.
type CycleUnit string

const (
	UnitWeek  CycleUnit = "Week"
	UnitMonth CycleUnit = "Month"
	UnitYear  CycleUnit = "Year"
)

// BillingCycle describes how often a subscription bills: every Amount
// Units. Immutable once parsed.
type BillingCycle struct {
	Amount int
	Unit   CycleUnit
}

// ErrInvalidCycle marks an unparseable cycle descriptor. Callers must
// treat the subscription as non-projectable, never fall back to a guessed
// cycle.
var ErrInvalidCycle = errors.New("invalid billing cycle")

var cycleRe = regexp.MustCompile(`(?i)^\s*Every\s+(\d+)\s+(Week|Month|Year)`)

// ParseCycle parses the external descriptor form, e.g. "Every 1 Month(s)"
// or "Every 2 Week(s)".
func ParseCycle(s string) (BillingCycle, error) {
	m := cycleRe.FindStringSubmatch(s)
	if m == nil {
		return BillingCycle{}, fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil || amount < 1 {
		return BillingCycle{}, fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	var unit CycleUnit
	switch strings.ToLower(m[2]) {
	case "week":
		unit = UnitWeek
	case "month":
		unit = UnitMonth
	case "year":
		unit = UnitYear
	}
	return BillingCycle{Amount: amount, Unit: unit}, nil
}

func (c BillingCycle) Validate() error {
	if c.Amount < 1 {
		return ErrInvalidCycle
	}
	switch c.Unit {
	case UnitWeek, UnitMonth, UnitYear:
		return nil
	default:
		return ErrInvalidCycle
	}
}

// String renders the cycle back to its external descriptor form.
func (c BillingCycle) String() string {
	return fmt.Sprintf("Every %d %s(s)", c.Amount, c.Unit)
}

// MonthlyFactor is the multiplier that normalizes a price billed on this
// cycle to an average per-month cost. Weekly cycles use the
// four-weeks-per-month approximation; everything else is exact in months.
func (c BillingCycle) MonthlyFactor() float64 {
	switch c.Unit {
	case UnitWeek:
		return 4.0 / float64(c.Amount)
	case UnitYear:
		return 1.0 / (12.0 * float64(c.Amount))
	default:
		return 1.0 / float64(c.Amount)
	}
}
