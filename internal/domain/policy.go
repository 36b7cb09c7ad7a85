package domain

import "time"

// Default lending terms, matching the classic two-week loan.
const (
	DefaultLoanPeriodDays = 14
	DefaultFinePerDay     = 100
)

// LendingPolicy computes due dates and fines from calendar dates.
// It is pure and stateless: the same dates always produce the same result.
// Callers supply "today" explicitly; the policy never reads the clock.
type LendingPolicy struct {
	// LoanPeriodDays is the number of days a loan runs before it is due.
	LoanPeriodDays int
	// FinePerDay is the fine, in integer currency units, charged per full
	// day a return is late.
	FinePerDay int64
}

// DefaultLendingPolicy returns the standard 14-day / 100-per-day policy.
func DefaultLendingPolicy() LendingPolicy {
	return LendingPolicy{
		LoanPeriodDays: DefaultLoanPeriodDays,
		FinePerDay:     DefaultFinePerDay,
	}
}

// DueDate returns the date the loan must be returned by.
func (p LendingPolicy) DueDate(startDate time.Time) time.Time {
	return DateOnly(startDate).AddDate(0, 0, p.LoanPeriodDays)
}

// Fine returns the fine owed for a loan.
//
// An open loan (nil returnDate) owes nothing: fines are assessed at return
// time only, not accrued against the current date. A return on or before
// the due date owes nothing. A late return owes FinePerDay per full day
// past due. The result is never negative.
func (p LendingPolicy) Fine(startDate time.Time, returnDate *time.Time) int64 {
	if returnDate == nil {
		return 0
	}

	due := p.DueDate(startDate)
	returned := DateOnly(*returnDate)
	if !returned.After(due) {
		return 0
	}

	daysLate := int64(returned.Sub(due) / (24 * time.Hour))
	return daysLate * p.FinePerDay
}

// IsOverdue reports whether a loan is overdue as of today: still open and
// past its due date. A closed loan is never overdue, however late it was
// returned - that shows up as a fine instead.
func (p LendingPolicy) IsOverdue(startDate time.Time, returnDate *time.Time, today time.Time) bool {
	if returnDate != nil {
		return false
	}
	return DateOnly(today).After(p.DueDate(startDate))
}

// OverdueCutoff returns the latest start date that is already overdue as of
// today. A loan is overdue iff its start date is strictly before the cutoff,
// which lets the store filter overdue loans with a single date comparison.
func (p LendingPolicy) OverdueCutoff(today time.Time) time.Time {
	return DateOnly(today).AddDate(0, 0, -p.LoanPeriodDays)
}
