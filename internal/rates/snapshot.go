// Package rates maintains the exchange-rate snapshot the converter works
// from: a single table of currency rates against the USD pivot, fetched
// from an external provider, cached for 24 hours, and degraded gracefully
// to stale data or a static fallback table when the provider is down.
package rates

import "time"

// PivotCurrency is the reference currency all rates are expressed
// against. A snapshot's rate for the pivot is always exactly 1.
const PivotCurrency = "USD"

// Source records where a snapshot came from, so the stale and fallback
// degradation paths stay distinguishable in logs and telemetry.
type Source string

const (
	// SourceProvider marks a snapshot fetched fresh from the provider.
	SourceProvider Source = "provider"
	// SourceStale marks an expired snapshot served because a refresh
	// attempt failed.
	SourceStale Source = "stale"
	// SourceFallback marks the built-in approximate table, served when no
	// snapshot has ever been fetched successfully.
	SourceFallback Source = "fallback"
)

// Snapshot is an immutable view of exchange rates at a point in time.
type Snapshot struct {
	Rates     map[string]float64
	FetchedAt time.Time
	Source    Source
}

// Rate returns the rate-vs-pivot for a currency code.
func (s Snapshot) Rate(code string) (float64, bool) {
	r, ok := s.Rates[code]
	return r, ok
}

// fallbackRates are rough rates for the major currencies, good enough to
// keep totals working when the provider has never been reachable.
var fallbackRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"RUB": 92.5,
	"GBP": 0.79,
	"JPY": 149.5,
	"CNY": 7.24,
}

// FallbackSnapshot returns the static fallback table.
func FallbackSnapshot(now time.Time) Snapshot {
	rates := make(map[string]float64, len(fallbackRates))
	for code, rate := range fallbackRates {
		rates[code] = rate
	}
	return Snapshot{Rates: rates, FetchedAt: now, Source: SourceFallback}
}
