package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/circulateapp/circulate-server/internal/domain"
	"github.com/circulateapp/circulate-server/internal/store"
)

// loanColumns is the ordered list of columns selected in loan queries.
// Must match the scan order in scanLoan.
const loanColumns = `id, created_at, updated_at, user_id, book_id, start_date, return_date`

func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var l domain.Loan

	var (
		createdAt  string
		updatedAt  string
		startDate  string
		returnDate sql.NullString
	)

	err := scanner.Scan(
		&l.ID,
		&createdAt,
		&updatedAt,
		&l.UserID,
		&l.BookID,
		&startDate,
		&returnDate,
	)
	if err != nil {
		return nil, err
	}

	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	l.StartDate, err = parseDate(startDate)
	if err != nil {
		return nil, err
	}
	l.ReturnDate, err = parseNullableDate(returnDate)
	if err != nil {
		return nil, err
	}

	return &l, nil
}

// CreateLoan inserts a new loan record.
// Returns store.ErrAlreadyExists on a duplicate ID or when the book already
// has an open loan (the one-open-loan-per-book index).
func (s *Store) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (
			id, created_at, updated_at, user_id, book_id, start_date, return_date
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loan.ID,
		formatTime(loan.CreatedAt),
		formatTime(loan.UpdatedAt),
		loan.UserID,
		loan.BookID,
		formatDate(loan.StartDate),
		nullDateString(loan.ReturnDate),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetLoan retrieves a loan by ID.
// Returns store.ErrNotFound if the loan does not exist.
func (s *Store) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)

	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListLoans returns loans matching the filter, ordered by start date then ID
// so listings are stable across calls.
func (s *Store) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.BookID != "" {
		query += ` AND book_id = ?`
		args = append(args, filter.BookID)
	}
	if filter.OpenOnly {
		query += ` AND return_date IS NULL`
	}
	if !filter.StartedBefore.IsZero() {
		query += ` AND start_date < ?`
		args = append(args, formatDate(filter.StartedBefore))
	}

	query += ` ORDER BY start_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// CloseLoan records the return date on an open loan and releases the book,
// both inside one transaction so a crash between the two writes can never
// leave a closed loan with an unavailable book.
//
// The loan update is conditional on return_date IS NULL so a second close of
// the same loan changes zero rows and reports store.ErrLoanClosed without
// touching the book.
func (s *Store) CloseLoan(ctx context.Context, id string, returnDate time.Time) (*domain.Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := formatTime(timeNow())

	result, err := tx.ExecContext(ctx, `
		UPDATE loans SET return_date = ?, updated_at = ?
		WHERE id = ? AND return_date IS NULL`,
		formatDate(returnDate), now, id)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish an already-closed loan from a missing one.
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM loans WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, store.ErrLoanClosed
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET available = 1, updated_at = ?
		WHERE id = ?`,
		now, loan.BookID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loan, nil
}
