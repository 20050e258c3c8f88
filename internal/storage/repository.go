// Package storage owns users and subscriptions in SQLite. The string
// forms of cycles and reminder policies live only here: rows are parsed
// into structured domain values on the way out, and nothing downstream
// ever re-parses them.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/services"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FindOrCreateUser returns the user with the given Telegram ID, creating
// it on first contact.
func (r *SQLiteRepository) FindOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (core.User, error) {
	user, err := r.UserByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return core.User{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username, first_name) VALUES (?, ?, ?)`,
		telegramID, username, firstName)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	r.logger.InfoContext(ctx, "user created", "user_id", id, "telegram_id", telegramID)
	return r.userByID(ctx, id)
}

// UserByTelegramID looks a user up by Telegram ID.
func (r *SQLiteRepository) UserByTelegramID(ctx context.Context, telegramID int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, first_name, default_currency, display_mode, sort_mode
		 FROM users WHERE telegram_id = ?`, telegramID)
	return scanUser(row)
}

func (r *SQLiteRepository) userByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, first_name, default_currency, display_mode, sort_mode
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UpdateSettings stores the user's display preferences. Empty fields
// keep their current values.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, telegramID int64, s core.Settings) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET default_currency = COALESCE(NULLIF(?, ''), default_currency),
		     display_mode = COALESCE(NULLIF(?, ''), display_mode),
		     sort_mode = COALESCE(NULLIF(?, ''), sort_mode),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE telegram_id = ?`,
		s.DefaultCurrency, s.DisplayMode, s.SortMode, telegramID)
	if err != nil {
		return core.User{}, fmt.Errorf("update settings: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.User{}, ErrUserNotFound
	}
	return r.UserByTelegramID(ctx, telegramID)
}

// CreateSubscription inserts a new subscription and returns it with its
// assigned ID.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		 (user_id, name, description, price, currency, first_bill, cycle, remind_me,
		  category_id, icon, color, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		sub.UserID, sub.Name, sub.Description, sub.Price, sub.Currency,
		dateParam(sub.Anchor), sub.Cycle.String(), sub.Reminder.String(),
		categoryParam(sub.CategoryID), sub.Icon, sub.Color)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	r.logger.InfoContext(ctx, "subscription created",
		"subscription_id", id,
		"user_id", sub.UserID,
		"name", sub.Name,
		"cycle", sub.Cycle.String())

	sub.ID = id
	sub.Active = true
	return sub, nil
}

// SubscriptionsByUser returns the user's active subscriptions ordered by
// anchor date, subscriptions without an anchor last.
func (r *SQLiteRepository) SubscriptionsByUser(ctx context.Context, userID int64) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, u.telegram_id, s.name, s.description, s.price, s.currency,
		        s.first_bill, s.cycle, s.remind_me, s.is_active,
		        s.category_id, c.name, s.icon, s.color
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 LEFT JOIN categories c ON c.id = s.category_id
		 WHERE s.user_id = ? AND s.is_active = 1
		 ORDER BY s.first_bill IS NULL, s.first_bill ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	return r.collectSubscriptions(ctx, rows)
}

// UpdateSubscription rewrites a subscription owned by the given user.
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET name = ?, description = ?, price = ?, currency = ?, first_bill = ?,
		     cycle = ?, remind_me = ?, category_id = ?, icon = ?, color = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		sub.Name, sub.Description, sub.Price, sub.Currency, dateParam(sub.Anchor),
		sub.Cycle.String(), sub.Reminder.String(),
		categoryParam(sub.CategoryID), sub.Icon, sub.Color, sub.ID, sub.UserID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Subscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

// DeactivateSubscription soft-deletes a subscription; history stays in
// place.
func (r *SQLiteRepository) DeactivateSubscription(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSubscriptionNotFound
	}

	r.logger.InfoContext(ctx, "subscription deactivated", "subscription_id", id, "user_id", userID)
	return nil
}

// ReminderCandidates returns every active subscription with a reminder
// policy, joined with its owner's Telegram ID and last-notified marker.
func (r *SQLiteRepository) ReminderCandidates(ctx context.Context) ([]services.ReminderCandidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, u.telegram_id, s.name, s.description, s.price, s.currency,
		        s.first_bill, s.cycle, s.remind_me, s.is_active,
		        s.category_id, c.name, s.icon, s.color, s.last_notified
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 LEFT JOIN categories c ON c.id = s.category_id
		 WHERE s.is_active = 1 AND s.remind_me != 'Never'
		 ORDER BY s.first_bill IS NULL, s.first_bill ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []services.ReminderCandidate
	for rows.Next() {
		var lastNotified sql.NullString
		sub, err := scanSubscription(rows, &lastNotified)
		if err != nil {
			r.logger.WarnContext(ctx, "skipping unreadable subscription row", "error", err)
			continue
		}
		out = append(out, services.ReminderCandidate{
			Subscription: sub,
			LastNotified: parseDate(lastNotified),
		})
	}
	return out, rows.Err()
}

// MarkNotified records the projected bill date a reminder went out for.
func (r *SQLiteRepository) MarkNotified(ctx context.Context, subscriptionID int64, billDate core.Date) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_notified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		billDate.Format(dateLayout), subscriptionID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) collectSubscriptions(ctx context.Context, rows *sql.Rows) ([]core.Subscription, error) {
	var out []core.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows, nil)
		if err != nil {
			// A row with a corrupt cycle or reminder descriptor must not
			// take the rest of the listing down with it.
			r.logger.WarnContext(ctx, "skipping unreadable subscription row", "error", err)
			continue
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner, lastNotified *sql.NullString) (core.Subscription, error) {
	var (
		sub          core.Subscription
		firstBill    sql.NullString
		cycle        string
		remindMe     string
		categoryID   sql.NullInt64
		categoryName sql.NullString
	)
	dest := []any{
		&sub.ID, &sub.UserID, &sub.TelegramID, &sub.Name, &sub.Description,
		&sub.Price, &sub.Currency, &firstBill, &cycle, &remindMe, &sub.Active,
		&categoryID, &categoryName, &sub.Icon, &sub.Color,
	}
	if lastNotified != nil {
		dest = append(dest, lastNotified)
	}
	if err := row.Scan(dest...); err != nil {
		return core.Subscription{}, fmt.Errorf("scan subscription: %w", err)
	}
	sub.CategoryID = categoryID.Int64
	sub.Category = categoryName.String

	parsedCycle, err := core.ParseCycle(cycle)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("subscription %d: %w", sub.ID, err)
	}
	sub.Cycle = parsedCycle

	policy, err := core.ParseReminder(remindMe)
	if err != nil {
		// A corrupt reminder descriptor degrades to Never instead of
		// hiding the subscription from its owner.
		policy = core.ReminderNever
	}
	sub.Reminder = policy
	sub.Anchor = parseDate(firstBill)
	return sub, nil
}

func scanUser(row rowScanner) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName,
		&u.Settings.DefaultCurrency, &u.Settings.DisplayMode, &u.Settings.SortMode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func categoryParam(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func dateParam(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.Format(dateLayout)
}

func parseDate(s sql.NullString) core.Date {
	if !s.Valid || s.String == "" {
		return core.Date{}
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		// Dates longer than the bare layout come from older rows written
		// with a timestamp; take the day part.
		if len(s.String) >= len(dateLayout) {
			if t2, err2 := time.Parse(dateLayout, s.String[:len(dateLayout)]); err2 == nil {
				return core.Date{Time: t2}
			}
		}
		return core.Date{}
	}
	return core.Date{Time: t}
}
