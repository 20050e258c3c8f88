package core

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

type (
	// Date is a calendar day. The zero value means "no date": a
	// subscription without an anchor date has no projectable next bill
	// and is never due for a reminder.
	Date struct {
		time.Time
	}

	// User is a bot user identified by a Telegram ID.
	User struct {
		ID         int64
		TelegramID int64
		Username   string
		FirstName  string
		Settings   Settings
	}

	// Settings holds per-user display preferences.
	Settings struct {
		DefaultCurrency string
		DisplayMode     string
		SortMode        string
	}

	// Category groups subscriptions for display.
	Category struct {
		ID   int64
		Name string
		Icon string
	}

	// Subscription is a recurring paid subscription as the core consumes
	// it: an immutable snapshot for the duration of one computation.
	// Ownership and mutation live in storage.
	Subscription struct {
		ID          int64
		UserID      int64
		TelegramID  int64
		Name        string
		Description string
		Price       float64
		Currency    string
		Anchor      Date
		Cycle       BillingCycle
		Reminder    ReminderPolicy
		CategoryID  int64  // 0 means uncategorized
		Category    string // resolved category name, set on read
		Icon        string
		Color       string
		Active      bool
	}
)

var (
	ErrInvalidPrice    = errors.New("invalid price")
	ErrEmptyName       = errors.New("empty subscription name")
	ErrNameTooLong     = errors.New("subscription name too long (max 200 characters)")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
)

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// IsEmpty reports whether the date is absent.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// HasAnchor reports whether the subscription has a projectable billing
// origin. Without one the next bill date cannot be computed and the
// subscription sorts last in date-ordered listings.
func (s Subscription) HasAnchor() bool {
	return !s.Anchor.IsEmpty()
}

func (s Subscription) Validate() error {
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return ErrNameTooLong
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	if err := ValidateCurrency(s.Currency); err != nil {
		return err
	}
	if err := s.Cycle.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateCurrency checks for an ISO-4217-shaped code: three uppercase
// letters. It does not check the code against any registry; unknown but
// well-formed codes fail later at conversion time.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range code {
		if !unicode.IsUpper(r) || !unicode.IsLetter(r) {
			return ErrInvalidCurrency
		}
	}
	return nil
}
