package store

import (
	"context"
	"time"

	"github.com/circulateapp/circulate-server/internal/domain"
)

// BookFilter narrows ListBooks results. Zero values mean "no filter".
type BookFilter struct {
	Genre         string
	Author        string
	AvailableOnly bool
}

// LoanFilter narrows ListLoans results. Zero values mean "no filter".
// Results are always ordered by start date ascending (oldest first), so the
// most urgent overdue loans surface first.
type LoanFilter struct {
	UserID   string
	BookID   string
	OpenOnly bool
	// StartedBefore keeps only loans with a start date strictly before the
	// given date. Combined with OpenOnly this selects overdue loans; the
	// caller computes the cutoff from its lending policy.
	StartedBefore time.Time
}

// Store is the persistence boundary for the lending service.
//
// Implementations must back ClaimBook with a single conditional write at the
// storage layer (not an in-process lock), so the availability invariant
// holds across multiple server instances.
type Store interface {
	BookStore
	LoanStore
	UserStore
	SessionStore

	Close() error
}

// BookStore persists the catalog and owns the availability flag.
type BookStore interface {
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]*domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error

	// DeleteBook soft-deletes a book. It must be one conditional write
	// ("delete where available"), so a checkout racing the delete cannot
	// leave a deleted book with an open loan. Returns ErrBookOnLoan when
	// the book is claimed and ErrNotFound when it does not exist.
	DeleteBook(ctx context.Context, id string) error

	// ClaimBook atomically flips the book from available to unavailable.
	// It must be implemented as one conditional update ("set unavailable
	// where available"), succeeding iff exactly one row changed. Returns
	// ErrBookUnavailable, with no side effects, when no row changed.
	ClaimBook(ctx context.Context, id string) error

	// ReleaseBook unconditionally marks the book available again. Only a
	// successful return (or checkout compensation) may call it.
	ReleaseBook(ctx context.Context, id string) error
}

// LoanStore persists borrowing episodes.
type LoanStore interface {
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error)

	// CloseLoan records the return date on an open loan and releases the
	// book in a single transaction: both happen or neither does. Returns
	// ErrLoanClosed if the loan already has a return date and ErrNotFound
	// if it does not exist.
	CloseLoan(ctx context.Context, id string, returnDate time.Time) (*domain.Loan, error)
}

// UserStore persists accounts for the auth boundary.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// SessionStore persists login sessions and their refresh token hashes.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
