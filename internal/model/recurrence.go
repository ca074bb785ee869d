package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is how often a recurrence rule fires.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// WeekendAdjustment shifts a computed occurrence off Saturday/Sunday.
type WeekendAdjustment string

const (
	WeekendNone           WeekendAdjustment = "none"
	WeekendPreviousFriday WeekendAdjustment = "previous_friday"
	WeekendNextMonday     WeekendAdjustment = "next_monday"
)

// RecurrenceRule is a template for a transaction repeated on a calendar
// pattern. NextOccurrence and LastExecuted are caches maintained by the
// schedule runner; the recurrence engine itself never writes them.
type RecurrenceRule struct {
	ID          uuid.UUID
	Name        string
	Description string

	Frequency    Frequency
	Interval     int          // repeat every N periods, >= 1
	DayOfMonth   int          // 1-31, 0 = unset; clamped to shorter months
	DayOfWeek    time.Weekday // valid only when DayOfWeekSet
	DayOfWeekSet bool
	MonthOfYear  time.Month // 0 = unset, yearly only
	Weekend      WeekendAdjustment

	StartDate time.Time
	EndDate   time.Time // zero = open-ended

	Amount          decimal.Decimal
	Currency        string
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID

	NextOccurrence time.Time
	LastExecuted   time.Time
	IsActive       bool
}

// HasEnd reports whether the rule has a bounded end date.
func (r RecurrenceRule) HasEnd() bool {
	return !r.EndDate.IsZero()
}
