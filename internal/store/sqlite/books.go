package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/circulateapp/circulate-server/internal/domain"
	"github.com/circulateapp/circulate-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at, deleted_at, title, author,
	isbn, publish_year, genre, available`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		available int
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&b.Title,
		&b.Author,
		&b.ISBN,
		&b.PublishYear,
		&b.Genre,
		&available,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	b.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}

	b.Available = available != 0

	return &b, nil
}

// CreateBook inserts a new book into the catalog.
// Returns store.ErrAlreadyExists on a duplicate ID or ISBN.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at, deleted_at, title, author,
			isbn, publish_year, genre, available
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		nullTimeString(book.DeletedAt),
		book.Title,
		book.Author,
		book.ISBN,
		book.PublishYear,
		book.Genre,
		boolToInt(book.Available),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetBook retrieves a book by ID, excluding soft-deleted records.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND deleted_at IS NULL`, id)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookByISBN retrieves a book by ISBN, excluding soft-deleted records.
// Returns store.ErrNotFound if no live book carries the ISBN.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE isbn = ? AND deleted_at IS NULL`, isbn)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns catalog books matching the filter, ordered by title.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE deleted_at IS NULL`
	var args []any

	if filter.Genre != "" {
		query += ` AND genre = ?`
		args = append(args, filter.Genre)
	}
	if filter.Author != "" {
		query += ` AND author = ?`
		args = append(args, filter.Author)
	}
	if filter.AvailableOnly {
		query += ` AND available = 1`
	}

	query += ` ORDER BY title, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBook updates a book's catalog metadata. The available flag is NOT
// written here - it belongs exclusively to ClaimBook/ReleaseBook so catalog
// edits can never race the lending engine.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET updated_at = ?, title = ?, author = ?, isbn = ?, publish_year = ?, genre = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(book.UpdatedAt),
		book.Title,
		book.Author,
		book.ISBN,
		book.PublishYear,
		book.Genre,
		book.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteBook soft-deletes a book from the catalog. A book whose availability
// flag is claimed cannot be deleted.
//
// Like ClaimBook this is one conditional UPDATE, not a check-then-write pair:
// available = 1 holds exactly when the book has no open loan, so a checkout
// racing the delete serializes against it at the row. Zero rows changed means
// the book is claimed, already deleted, or nonexistent; the follow-up read
// splits that into store.ErrBookOnLoan and store.ErrNotFound.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	now := formatTime(timeNow())

	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND available = 1`,
		now, now, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var one int
		err = s.db.QueryRowContext(ctx,
			`SELECT 1 FROM books WHERE id = ? AND deleted_at IS NULL`, id).Scan(&one)
		if err == sql.ErrNoRows {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return store.ErrBookOnLoan
	}
	return nil
}

// ClaimBook atomically transitions a book from available to unavailable.
//
// This is deliberately a single conditional UPDATE rather than a
// read-then-write pair: under concurrent checkouts of the same book the
// database serializes the updates and exactly one caller sees a changed
// row. Zero rows changed means the book is already claimed, soft-deleted,
// or nonexistent - all reported as store.ErrBookUnavailable with no side
// effects, leaving the caller to distinguish via GetBook.
func (s *Store) ClaimBook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET available = 0, updated_at = ?
		WHERE id = ? AND available = 1 AND deleted_at IS NULL`,
		formatTime(timeNow()), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrBookUnavailable
	}
	return nil
}

// ReleaseBook unconditionally marks a book as available again.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) ReleaseBook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET available = 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(timeNow()), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
