// Package currency converts amounts between currencies through the USD
// pivot using a rate snapshot. Pure arithmetic; the snapshot's lifecycle
// belongs to the rates package.
package currency

import (
	"errors"
	"fmt"
	"math"

	"subtrack/internal/rates"
)

// ErrUnknownCurrency marks a conversion request for a code absent from
// the snapshot. It is a caller error, never silently treated as 1:1.
var ErrUnknownCurrency = errors.New("unknown currency")

// Round2 rounds to two decimal places, half-up.
func Round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// Convert converts amount between two currencies via the pivot.
//
// Equal currencies pass through exactly, without rounding. Otherwise the
// amount moves through the pivot and the result is rounded half-up to two
// decimals once at the end; the intermediate pivot value stays unrounded
// so the error does not compound.
func Convert(amount float64, from, to string, snapshot rates.Snapshot) (float64, error) {
	if from == to {
		return amount, nil
	}

	inPivot := amount
	if from != rates.PivotCurrency {
		rate, ok := snapshot.Rate(from)
		if !ok || rate <= 0 {
			return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
		}
		inPivot = amount / rate
	}

	result := inPivot
	if to != rates.PivotCurrency {
		rate, ok := snapshot.Rate(to)
		if !ok || rate <= 0 {
			return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
		}
		result = inPivot * rate
	}

	return Round2(result), nil
}
