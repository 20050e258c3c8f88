package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subtrack/internal/billing"
	"subtrack/internal/core"
)

// Reminder is the payload handed to the notification channel for one due
// subscription. The channel collaborator owns formatting and delivery.
type Reminder struct {
	RecipientID      int64
	SubscriptionName string
	Price            float64
	Currency         string
	NextBillDate     core.Date
}

// ReminderCandidate is a subscription eligible for reminder evaluation,
// together with the bill date it was last alerted for.
type ReminderCandidate struct {
	Subscription core.Subscription
	LastNotified core.Date
}

// ReminderStore is the slice of storage the sweep needs.
type ReminderStore interface {
	ReminderCandidates(ctx context.Context) ([]ReminderCandidate, error)
	MarkNotified(ctx context.Context, subscriptionID int64, billDate core.Date) error
}

// Notifier dispatches a reminder to the notification channel.
type Notifier interface {
	PublishReminder(ctx context.Context, r Reminder) error
}

// ReminderSweep walks all active subscriptions once per tick, projects
// each next bill date, and dispatches a reminder for every subscription
// inside its lead window that has not already been alerted for that bill
// date.
type ReminderSweep struct {
	store    ReminderStore
	notifier Notifier
	logger   *slog.Logger
}

func NewReminderSweep(store ReminderStore, notifier Notifier, logger *slog.Logger) *ReminderSweep {
	return &ReminderSweep{store: store, notifier: notifier, logger: logger}
}

// Run executes one sweep at the given time and returns how many
// reminders were dispatched. A failure on one subscription is logged and
// skipped; it never aborts the rest of the sweep. Re-running within the
// lead window is safe: the per-subscription last-notified marker
// suppresses duplicates until the projected bill date moves.
func (s *ReminderSweep) Run(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOf(now)

	candidates, err := s.store.ReminderCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load reminder candidates: %w", err)
	}

	s.logger.Info("reminder sweep started",
		"candidates", len(candidates),
		"date", today.Format("2006-01-02"))

	sent := 0
	for _, c := range candidates {
		sub := c.Subscription
		if sub.Reminder.Never() || !sub.HasAnchor() {
			continue
		}

		next, err := billing.NextOccurrence(sub.Anchor, sub.Cycle, today)
		if err != nil {
			s.logger.Warn("skipping unprojectable subscription",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
			continue
		}

		if !billing.IsReminderDue(next, sub.Reminder, today) {
			continue
		}
		if !c.LastNotified.IsEmpty() && c.LastNotified.Equal(next.Time) {
			// Already alerted for this bill date on an earlier sweep.
			continue
		}

		reminder := Reminder{
			RecipientID:      sub.TelegramID,
			SubscriptionName: sub.Name,
			Price:            sub.Price,
			Currency:         sub.Currency,
			NextBillDate:     next,
		}
		if err := s.notifier.PublishReminder(ctx, reminder); err != nil {
			s.logger.Error("failed to dispatch reminder",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
			continue
		}
		if err := s.store.MarkNotified(ctx, sub.ID, next); err != nil {
			// The reminder is already out; an unmarked subscription may
			// re-alert on the next sweep, which beats losing the marker
			// silently.
			s.logger.Error("failed to record notification",
				"subscription_id", sub.ID,
				"error", err)
		}
		sent++

		s.logger.Info("reminder dispatched",
			"subscription_id", sub.ID,
			"name", sub.Name,
			"recipient", sub.TelegramID,
			"next_bill", next.Format("2006-01-02"))
	}

	s.logger.Info("reminder sweep complete",
		"dispatched", sent,
		"candidates", len(candidates))
	return sent, nil
}
