package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ReminderUnit is the unit of a reminder lead time.
type ReminderUnit string

const (
	RemindDay   ReminderUnit = "Day"
	RemindWeek  ReminderUnit = "Week"
	RemindMonth ReminderUnit = "Month"
)

// ReminderPolicy is either Never or a lead time of Amount Units before
// the next bill. The zero value is Never.
type ReminderPolicy struct {
	Amount int
	Unit   ReminderUnit
}

// ErrInvalidReminder marks an unparseable reminder descriptor. Storage
// logs it and stores the subscription with a Never policy.
var ErrInvalidReminder = errors.New("invalid reminder policy")

var reminderRe = regexp.MustCompile(`(?i)(\d+)\s*(day|week|month)`)

// ReminderNever is the policy that never fires.
var ReminderNever = ReminderPolicy{}

// ParseReminder parses the external descriptor form, e.g. "1 week before"
// or "Never".
func ParseReminder(s string) (ReminderPolicy, error) {
	if strings.EqualFold(strings.TrimSpace(s), "never") || strings.TrimSpace(s) == "" {
		return ReminderNever, nil
	}
	m := reminderRe.FindStringSubmatch(s)
	if m == nil {
		return ReminderNever, fmt.Errorf("%w: %q", ErrInvalidReminder, s)
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil || amount < 1 {
		return ReminderNever, fmt.Errorf("%w: %q", ErrInvalidReminder, s)
	}
	var unit ReminderUnit
	switch strings.ToLower(m[2]) {
	case "day":
		unit = RemindDay
	case "week":
		unit = RemindWeek
	case "month":
		unit = RemindMonth
	}
	return ReminderPolicy{Amount: amount, Unit: unit}, nil
}

// Never reports whether the policy disables reminders.
func (p ReminderPolicy) Never() bool {
	return p.Amount == 0
}

// LeadDays converts the policy to a whole-day reminder window. A month
// counts as 30 days here; the approximation only sizes the window and is
// never used for bill-date projection.
func (p ReminderPolicy) LeadDays() int {
	switch p.Unit {
	case RemindWeek:
		return p.Amount * 7
	case RemindMonth:
		return p.Amount * 30
	default:
		return p.Amount
	}
}

// String renders the policy back to its external descriptor form.
func (p ReminderPolicy) String() string {
	if p.Never() {
		return "Never"
	}
	unit := strings.ToLower(string(p.Unit))
	if p.Amount == 1 {
		return fmt.Sprintf("1 %s before", unit)
	}
	return fmt.Sprintf("%d %ss before", p.Amount, unit)
}
