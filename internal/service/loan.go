package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/circulateapp/circulate-server/internal/domain"
	domainerrors "github.com/circulateapp/circulate-server/internal/errors"
	"github.com/circulateapp/circulate-server/internal/id"
	"github.com/circulateapp/circulate-server/internal/store"
)

// LoanService orchestrates the lending lifecycle: checkouts, returns, and
// loan listings. It owns the consistency between a book's availability flag
// and its open loan.
type LoanService struct {
	store  store.Store
	policy domain.LendingPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewLoanService creates a new loan service.
func NewLoanService(store store.Store, policy domain.LendingPolicy, logger *slog.Logger) *LoanService {
	return &LoanService{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Policy returns the lending policy in effect.
func (s *LoanService) Policy() domain.LendingPolicy {
	return s.policy
}

// DueDate returns the date the loan's book is due back.
func (s *LoanService) DueDate(loan *domain.Loan) time.Time {
	return s.policy.DueDate(loan.StartDate)
}

// CheckoutRequest identifies who borrows which book.
type CheckoutRequest struct {
	UserID string `json:"user_id" validate:"required"`
	BookID string `json:"book_id" validate:"required"`
}

// Checkout lends a book to a user, starting today.
//
// The book's availability flag is claimed first with a single conditional
// write, so two concurrent checkouts of the same book can never both
// succeed. If persisting the loan record fails after the claim, the claim
// is released again; a failed checkout must never leave a book stuck
// unavailable.
func (s *LoanService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Loan, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if _, err := s.store.GetBook(ctx, req.BookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("lookup book: %w", err)
	}

	err := withRetry(ctx, func(ctx context.Context) error {
		return s.store.ClaimBook(ctx, req.BookID)
	})
	if err != nil {
		if errors.Is(err, store.ErrBookUnavailable) {
			return nil, domainerrors.Conflict("book is not available for checkout")
		}
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("claim book: %w", err)
	}

	loanID, err := id.Generate("loan")
	if err != nil {
		s.releaseClaim(ctx, req.BookID)
		return nil, fmt.Errorf("generate loan ID: %w", err)
	}

	loan := &domain.Loan{
		ID:        loanID,
		UserID:    req.UserID,
		BookID:    req.BookID,
		StartDate: domain.DateOnly(s.now()),
	}
	loan.InitTimestamps()

	err = withRetry(ctx, func(ctx context.Context) error {
		return s.store.CreateLoan(ctx, loan)
	})
	if err != nil {
		// The claim is already ours; undo it so the book does not stay
		// unavailable with no open loan.
		s.releaseClaim(ctx, req.BookID)
		return nil, domainerrors.Unavailable("could not record loan").WithCause(err)
	}

	s.logger.Info("book checked out",
		"loan_id", loan.ID,
		"user_id", loan.UserID,
		"book_id", loan.BookID,
		"due_date", s.DueDate(loan).Format(time.DateOnly),
	)

	return loan, nil
}

// releaseClaim is checkout compensation. Release failures are logged rather
// than surfaced: the caller already has a failure to report, and a book left
// stuck unavailable is an operator problem, so it needs the log line.
func (s *LoanService) releaseClaim(ctx context.Context, bookID string) {
	err := withRetry(ctx, func(ctx context.Context) error {
		return s.store.ReleaseBook(ctx, bookID)
	})
	if err != nil {
		s.logger.Error("failed to release claimed book after checkout failure",
			"book_id", bookID,
			"error", err,
		)
	}
}

// ReturnResult is the outcome of returning a book.
type ReturnResult struct {
	Loan *domain.Loan `json:"loan"`
	// DueDate the book should have been back by.
	DueDate time.Time `json:"due_date"`
	// Fine owed in cents. Zero for on-time returns.
	Fine int64 `json:"fine"`
}

// Return closes an open loan on the given date and makes the book available
// again, computing any late fine. Closing the loan and releasing the book
// happen in one storage transaction.
func (s *LoanService) Return(ctx context.Context, loanID string, returnDate time.Time) (*ReturnResult, error) {
	if loanID == "" {
		return nil, domainerrors.Validation("loan_id is required")
	}
	if returnDate.IsZero() {
		returnDate = s.now()
	}
	returnDate = domain.DateOnly(returnDate)

	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("loan not found")
		}
		return nil, fmt.Errorf("lookup loan: %w", err)
	}

	if !loan.IsOpen() {
		return nil, domainerrors.Conflict("loan is already closed")
	}
	if returnDate.Before(loan.StartDate) {
		return nil, domainerrors.Validation("return date cannot be before the loan start date")
	}

	var closed *domain.Loan
	attempts := 0
	err = withRetry(ctx, func(ctx context.Context) error {
		attempts++
		var closeErr error
		closed, closeErr = s.store.CloseLoan(ctx, loanID, returnDate)
		return closeErr
	})
	if err != nil && errors.Is(err, store.ErrLoanClosed) && attempts > 1 {
		// A commit can land and still report a transient error, so a retried
		// close may find its own earlier attempt already recorded. If the
		// loan is now closed on the requested date the state is exactly what
		// this call asked for; report success rather than a false conflict.
		reread, rerr := s.store.GetLoan(ctx, loanID)
		if rerr == nil && reread.ReturnDate != nil && reread.ReturnDate.Equal(returnDate) {
			closed = reread
			err = nil
		}
	}
	if err != nil {
		// Lost a race with a concurrent return of the same loan.
		if errors.Is(err, store.ErrLoanClosed) {
			return nil, domainerrors.Conflict("loan is already closed")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("loan not found")
		}
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("close loan: %w", err)
	}

	result := &ReturnResult{
		Loan:    closed,
		DueDate: s.DueDate(closed),
		Fine:    s.policy.Fine(closed.StartDate, closed.ReturnDate),
	}

	s.logger.Info("book returned",
		"loan_id", closed.ID,
		"book_id", closed.BookID,
		"fine", result.Fine,
	)

	return result, nil
}

// GetLoan retrieves a single loan by ID.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("loan not found")
		}
		return nil, fmt.Errorf("lookup loan: %w", err)
	}
	return loan, nil
}

// ListOpenLoans returns all open loans, oldest start date first. A non-empty
// userID restricts the listing to that user's loans.
func (s *LoanService) ListOpenLoans(ctx context.Context, userID string) ([]*domain.Loan, error) {
	loans, err := s.store.ListLoans(ctx, store.LoanFilter{
		UserID:   userID,
		OpenOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list open loans: %w", err)
	}
	return loans, nil
}

// ListOverdueLoans returns open loans whose due date has passed as of today,
// oldest start date first. A non-empty userID restricts the listing.
//
// Overdue is evaluated against the start date at the storage layer: a loan
// is overdue exactly when it started strictly before today minus the loan
// period.
func (s *LoanService) ListOverdueLoans(ctx context.Context, userID string) ([]*domain.Loan, error) {
	loans, err := s.store.ListLoans(ctx, store.LoanFilter{
		UserID:        userID,
		OpenOnly:      true,
		StartedBefore: s.policy.OverdueCutoff(s.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return loans, nil
}

// ListUserLoans returns a user's full borrowing history, oldest first.
func (s *LoanService) ListUserLoans(ctx context.Context, userID string) ([]*domain.Loan, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user_id is required")
	}
	loans, err := s.store.ListLoans(ctx, store.LoanFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("list user loans: %w", err)
	}
	return loans, nil
}
