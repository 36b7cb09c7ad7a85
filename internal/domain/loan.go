package domain

import "time"

// Loan represents one borrowing episode: a user holding a book from
// StartDate until ReturnDate is recorded.
//
// A loan is Open while ReturnDate is nil and transitions exactly once to
// Closed when a return is recorded. Closed is terminal; loans are never
// reopened or deleted. UserID and BookID are opaque references - a loan
// does not own its user or book.
//
// DueDate and Fine are intentionally not fields: they are derived from the
// dates by a LendingPolicy and never persisted.
type Loan struct {
	Timestamps
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`
	StartDate  time.Time  `json:"start_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// IsOpen returns true while the loan is outstanding (no return recorded).
func (l *Loan) IsOpen() bool {
	return l.ReturnDate == nil
}

// DateOnly truncates t to midnight UTC. Loan arithmetic works on calendar
// dates, not instants; every date entering the lending core goes through
// this first.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
