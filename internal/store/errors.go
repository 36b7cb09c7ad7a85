// Package store defines the persistence contract consumed by the service layer.
package store

import (
	"errors"
	"strings"
)

// Sentinel errors returned by store implementations. The service layer maps
// these onto caller-visible domain errors; nothing above the service layer
// should see them.
var (
	// ErrNotFound is returned when the requested record does not exist
	// (or is soft-deleted).
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a uniqueness constraint
	// (ID, ISBN, email) rejects a write.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrBookUnavailable is returned by ClaimBook when the conditional
	// update changed no rows: the book is already claimed or does not
	// exist. Callers distinguish the two with a preceding existence check.
	ErrBookUnavailable = errors.New("book unavailable")

	// ErrBookOnLoan is returned by DeleteBook when the book exists but is
	// currently claimed. The book has to come back before it leaves the
	// catalog.
	ErrBookOnLoan = errors.New("book on loan")

	// ErrLoanClosed is returned by CloseLoan when the loan already has a
	// return date recorded. Returns are not repeatable.
	ErrLoanClosed = errors.New("loan already closed")
)

// IsTransient reports whether err looks like a transient storage failure
// worth retrying, as opposed to a permanent or business error.
//
// SQLite surfaces write contention as SQLITE_BUSY / "database is locked"
// errors through the driver; those resolve themselves once the competing
// writer commits.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
