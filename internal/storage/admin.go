package storage

import (
	"context"
	"fmt"

	"subtrack/internal/core"
)

// CurrencyCount is how many users picked a default currency.
type CurrencyCount struct {
	Currency string
	Users    int
}

// NameCount is how many active subscriptions share a name.
type NameCount struct {
	Name  string
	Count int
}

// AdminStats is the service-wide dashboard snapshot.
type AdminStats struct {
	TotalUsers           int
	NewThisWeek          int
	NewThisMonth         int
	TotalSubscriptions   int
	CurrencyUsage        []CurrencyCount
	PopularSubscriptions []NameCount
}

// ExpensiveSubscription is one row of the top-by-price ranking, joined
// with its owner.
type ExpensiveSubscription struct {
	Name       string
	Price      float64
	Currency   string
	Cycle      core.BillingCycle
	Username   string
	TelegramID int64
}

// Categories lists all subscription categories ordered by name.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllUsers lists every user, newest first.
func (r *SQLiteRepository) AllUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, telegram_id, username, first_name, default_currency, display_mode, sort_mode
		 FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AdminStats collects the dashboard counters in one pass.
func (r *SQLiteRepository) AdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &stats.TotalUsers},
		{`SELECT COUNT(*) FROM users WHERE created_at >= datetime('now', '-7 days')`, &stats.NewThisWeek},
		{`SELECT COUNT(*) FROM users WHERE created_at >= date('now', 'start of month')`, &stats.NewThisMonth},
		{`SELECT COUNT(*) FROM subscriptions WHERE is_active = 1`, &stats.TotalSubscriptions},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return AdminStats{}, fmt.Errorf("admin stats: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT default_currency, COUNT(*) AS n FROM users
		 GROUP BY default_currency ORDER BY n DESC, default_currency`)
	if err != nil {
		return AdminStats{}, fmt.Errorf("currency usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CurrencyCount
		if err := rows.Scan(&c.Currency, &c.Users); err != nil {
			return AdminStats{}, fmt.Errorf("scan currency usage: %w", err)
		}
		stats.CurrencyUsage = append(stats.CurrencyUsage, c)
	}
	if err := rows.Err(); err != nil {
		return AdminStats{}, err
	}

	popRows, err := r.db.QueryContext(ctx,
		`SELECT name, COUNT(*) AS n FROM subscriptions WHERE is_active = 1
		 GROUP BY name ORDER BY n DESC, name LIMIT 10`)
	if err != nil {
		return AdminStats{}, fmt.Errorf("popular subscriptions: %w", err)
	}
	defer popRows.Close()
	for popRows.Next() {
		var n NameCount
		if err := popRows.Scan(&n.Name, &n.Count); err != nil {
			return AdminStats{}, fmt.Errorf("scan popular subscriptions: %w", err)
		}
		stats.PopularSubscriptions = append(stats.PopularSubscriptions, n)
	}
	return stats, popRows.Err()
}

// TopSubscriptionsByPrice ranks active subscriptions by raw price across
// all users. Rows with a corrupt cycle descriptor are skipped with a log
// line, same as the listing path.
func (r *SQLiteRepository) TopSubscriptionsByPrice(ctx context.Context, limit int) ([]ExpensiveSubscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.name, s.price, s.currency, s.cycle, u.username, u.telegram_id
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.is_active = 1
		 ORDER BY s.price DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list expensive subscriptions: %w", err)
	}
	defer rows.Close()

	var out []ExpensiveSubscription
	for rows.Next() {
		var (
			e     ExpensiveSubscription
			cycle string
		)
		if err := rows.Scan(&e.Name, &e.Price, &e.Currency, &cycle, &e.Username, &e.TelegramID); err != nil {
			return nil, fmt.Errorf("scan expensive subscription: %w", err)
		}
		parsed, err := core.ParseCycle(cycle)
		if err != nil {
			r.logger.WarnContext(ctx, "skipping unreadable subscription row", "error", err)
			continue
		}
		e.Cycle = parsed
		out = append(out, e)
	}
	return out, rows.Err()
}
