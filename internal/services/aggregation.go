// Package services orchestrates the domain packages: spend aggregation
// across currencies and the periodic reminder sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/currency"
	"subtrack/internal/rates"
)

// Aggregator normalizes per-subscription prices into comparable monthly
// totals and optionally collapses them into one target currency.
type Aggregator struct {
	rates  *rates.Cache
	logger *slog.Logger
}

func NewAggregator(rateCache *rates.Cache, logger *slog.Logger) *Aggregator {
	return &Aggregator{rates: rateCache, logger: logger}
}

// MonthlyTotalsByCurrency groups active subscriptions by currency and
// sums their monthly-equivalent prices. Buckets accumulate unrounded and
// are rounded half-up to two decimals only at the end, so per-item
// rounding error does not pile up.
func MonthlyTotalsByCurrency(subs []core.Subscription) map[string]float64 {
	totals := make(map[string]float64)
	for _, s := range subs {
		if !s.Active {
			continue
		}
		totals[s.Currency] += s.Price * s.Cycle.MonthlyFactor()
	}
	for code, amount := range totals {
		totals[code] = currency.Round2(amount)
	}
	return totals
}

// ConvertedTotal is the result of collapsing multi-currency totals into
// one currency. Failed lists the currency codes that could not be
// converted; the total covers the rest.
type ConvertedTotal struct {
	Total    float64
	Currency string
	Failed   []string
}

// ConvertTotals collapses per-currency totals into the target currency.
//
// An unknown target rejects the whole request. An unknown source
// currency only drops its own bucket: the remaining buckets still sum,
// and the failed codes are reported alongside the partial total.
func (a *Aggregator) ConvertTotals(ctx context.Context, totals map[string]float64, target string) (ConvertedTotal, error) {
	if err := core.ValidateCurrency(target); err != nil {
		return ConvertedTotal{}, fmt.Errorf("target %q: %w", target, err)
	}

	snapshot := a.rates.GetRates(ctx, time.Now())
	if target != rates.PivotCurrency {
		if _, ok := snapshot.Rate(target); !ok {
			return ConvertedTotal{}, fmt.Errorf("target %s: %w", target, currency.ErrUnknownCurrency)
		}
	}

	var sum float64
	var failed []string
	for _, code := range sortedCurrencies(totals) {
		converted, err := currency.Convert(totals[code], code, target, snapshot)
		if err != nil {
			if errors.Is(err, currency.ErrUnknownCurrency) {
				a.logger.Warn("skipping bucket with unknown currency",
					"currency", code, "target", target)
				failed = append(failed, code)
				continue
			}
			return ConvertedTotal{}, fmt.Errorf("convert %s: %w", code, err)
		}
		sum += converted
	}

	return ConvertedTotal{
		Total:    currency.Round2(sum),
		Currency: target,
		Failed:   failed,
	}, nil
}

// MonthlyTotalIn aggregates subscriptions and collapses the result into a
// single currency in one step.
func (a *Aggregator) MonthlyTotalIn(ctx context.Context, subs []core.Subscription, target string) (ConvertedTotal, error) {
	return a.ConvertTotals(ctx, MonthlyTotalsByCurrency(subs), target)
}

func sortedCurrencies(totals map[string]float64) []string {
	codes := make([]string, 0, len(totals))
	for code := range totals {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
