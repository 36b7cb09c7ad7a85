package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/circulateapp/circulate-server/internal/domain"
	domainerrors "github.com/circulateapp/circulate-server/internal/errors"
	"github.com/circulateapp/circulate-server/internal/store"
	"github.com/circulateapp/circulate-server/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newServiceTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedUserAndBook inserts fixture rows directly through the store.
func seedUserAndBook(t *testing.T, s store.Store, userID, bookID string) {
	t.Helper()
	ctx := context.Background()

	user := &domain.User{
		ID:          userID,
		Email:       userID + "@example.com",
		Role:        domain.RoleMember,
		DisplayName: "Reader",
		LastLoginAt: time.Now(),
	}
	user.InitTimestamps()
	require.NoError(t, s.CreateUser(ctx, user))

	book := &domain.Book{
		ID:        bookID,
		Title:     "Fixture Book " + bookID,
		Author:    "Fixture Author",
		ISBN:      "isbn-" + bookID,
		Available: true,
	}
	book.InitTimestamps()
	require.NoError(t, s.CreateBook(ctx, book))
}

func newTestLoanService(t *testing.T, s store.Store) *LoanService {
	t.Helper()
	return NewLoanService(s, domain.DefaultLendingPolicy(), testLogger())
}

func TestLoanService_Checkout_Success(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	assert.Equal(t, "usr-1", loan.UserID)
	assert.Equal(t, "bk-1", loan.BookID)
	assert.True(t, loan.IsOpen())
	assert.Equal(t, domain.DateOnly(time.Now()), loan.StartDate)
	assert.Equal(t, loan.StartDate.AddDate(0, 0, 14), svc.DueDate(loan))

	// The book is unavailable while the loan is open.
	book, err := s.GetBook(ctx, "bk-1")
	require.NoError(t, err)
	assert.False(t, book.Available)
}

func TestLoanService_Checkout_BookAlreadyLent(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrConflict))
}

func TestLoanService_Checkout_UnknownUserAndBook(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-ghost", BookID: "bk-1"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-ghost"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	// Failed checkouts leave the book available.
	book, err := s.GetBook(ctx, "bk-1")
	require.NoError(t, err)
	assert.True(t, book.Available)
}

func TestLoanService_Checkout_MissingFields(t *testing.T) {
	s := newServiceTestStore(t)
	svc := newTestLoanService(t, s)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

// failingLoanStore makes loan persistence fail so the checkout compensation
// path can be observed.
type failingLoanStore struct {
	store.Store
}

func (f *failingLoanStore) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	return errors.New("disk full")
}

func TestLoanService_Checkout_CompensatesOnLoanFailure(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, &failingLoanStore{Store: s})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnavailable))

	// The claim was rolled back; the book must not be stuck unavailable.
	book, err := s.GetBook(ctx, "bk-1")
	require.NoError(t, err)
	assert.True(t, book.Available)

	// And the next checkout succeeds against the real store.
	okSvc := newTestLoanService(t, s)
	_, err = okSvc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	assert.NoError(t, err)
}

func TestLoanService_Return_OnTime(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	result, err := svc.Return(ctx, loan.ID, start.AddDate(0, 0, 14))
	require.NoError(t, err)

	assert.False(t, result.Loan.IsOpen())
	assert.Equal(t, int64(0), result.Fine)
	assert.Equal(t, start.AddDate(0, 0, 14), result.DueDate)

	book, err := s.GetBook(ctx, "bk-1")
	require.NoError(t, err)
	assert.True(t, book.Available)
}

func TestLoanService_Return_LateChargesFine(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	// Due March 15; returned March 20 is 5 days late at 100 cents per day.
	result, err := svc.Return(ctx, loan.ID, start.AddDate(0, 0, 19))
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Fine)
}

func TestLoanService_Return_AlreadyClosed(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, time.Time{})
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, time.Time{})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrConflict))
}

// lostCommitStore lets a close commit and then reports it as a transient
// failure once, as a busy database can after the write already landed.
type lostCommitStore struct {
	store.Store
	failed bool
}

func (f *lostCommitStore) CloseLoan(ctx context.Context, id string, returnDate time.Time) (*domain.Loan, error) {
	closed, err := f.Store.CloseLoan(ctx, id, returnDate)
	if err == nil && !f.failed {
		f.failed = true
		return nil, errors.New("database is locked")
	}
	return closed, err
}

func TestLoanService_Return_RetriedCommitThatLanded(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := NewLoanService(&lostCommitStore{Store: s}, domain.DefaultLendingPolicy(), testLogger())
	ctx := context.Background()

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	// The retry finds the loan already closed on the requested date. That is
	// this call's own commit, not a lost race, and must not surface as a
	// conflict.
	result, err := svc.Return(ctx, loan.ID, start.AddDate(0, 0, 19))
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Fine)
	assert.False(t, result.Loan.IsOpen())

	book, err := s.GetBook(ctx, "bk-1")
	require.NoError(t, err)
	assert.True(t, book.Available)
}

func TestLoanService_Return_BeforeStartDate(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	start := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, start.AddDate(0, 0, -1))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	// The rejected return changed nothing.
	got, err := svc.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
}

func TestLoanService_Return_NotFound(t *testing.T) {
	s := newServiceTestStore(t)
	svc := newTestLoanService(t, s)

	_, err := svc.Return(context.Background(), "loan-ghost", time.Time{})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestLoanService_ListOpenAndOverdue(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	seedUserAndBook(t, s, "usr-2", "bk-2")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	// An old loan, well past due.
	svc.now = func() time.Time { return today.AddDate(0, 0, -30) }
	oldLoan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	// A fresh loan, still within the period.
	svc.now = func() time.Time { return today.AddDate(0, 0, -3) }
	freshLoan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-2", BookID: "bk-2"})
	require.NoError(t, err)

	svc.now = func() time.Time { return today }

	open, err := svc.ListOpenLoans(ctx, "")
	require.NoError(t, err)
	require.Len(t, open, 2)
	// Oldest start date first.
	assert.Equal(t, oldLoan.ID, open[0].ID)
	assert.Equal(t, freshLoan.ID, open[1].ID)

	overdue, err := svc.ListOverdueLoans(ctx, "")
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, oldLoan.ID, overdue[0].ID)

	// Restricted to a user without overdue loans.
	overdue, err = svc.ListOverdueLoans(ctx, "usr-2")
	require.NoError(t, err)
	assert.Empty(t, overdue)

	// Returning the old loan clears the overdue listing.
	_, err = svc.Return(ctx, oldLoan.ID, today)
	require.NoError(t, err)

	overdue, err = svc.ListOverdueLoans(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestLoanService_OverdueBoundary(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	today := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	// Started exactly the loan period ago: due today, not overdue yet.
	svc.now = func() time.Time { return today.AddDate(0, 0, -14) }
	_, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return today }
	overdue, err := svc.ListOverdueLoans(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, overdue)

	// One day later it tips over.
	svc.now = func() time.Time { return today.AddDate(0, 0, 1) }
	overdue, err = svc.ListOverdueLoans(ctx, "")
	require.NoError(t, err)
	assert.Len(t, overdue, 1)
}

func TestLoanService_ListUserLoans(t *testing.T) {
	s := newServiceTestStore(t)
	seedUserAndBook(t, s, "usr-1", "bk-1")
	svc := newTestLoanService(t, s)
	ctx := context.Background()

	loan, err := svc.Checkout(ctx, CheckoutRequest{UserID: "usr-1", BookID: "bk-1"})
	require.NoError(t, err)
	_, err = svc.Return(ctx, loan.ID, time.Time{})
	require.NoError(t, err)

	// History includes closed loans.
	loans, err := svc.ListUserLoans(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.False(t, loans[0].IsOpen())

	_, err = svc.ListUserLoans(ctx, "")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}
