package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/circulateapp/circulate-server/internal/domain"
	domainerrors "github.com/circulateapp/circulate-server/internal/errors"
	"github.com/circulateapp/circulate-server/internal/id"
	"github.com/circulateapp/circulate-server/internal/store"
)

// BookService manages the catalog. It never touches the availability flag;
// that belongs to the lending engine.
type BookService struct {
	store  store.Store
	logger *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(store store.Store, logger *slog.Logger) *BookService {
	return &BookService{
		store:  store,
		logger: logger,
	}
}

// CreateBookRequest contains the catalog metadata for a new book.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Author      string `json:"author" validate:"required,max=200"`
	ISBN        string `json:"isbn" validate:"required,max=20"`
	PublishYear string `json:"publish_year" validate:"max=10"`
	Genre       string `json:"genre" validate:"max=100"`
}

// CreateBook adds a book to the catalog. New books start available.
func (s *BookService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("bk")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		ID:          bookID,
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		PublishYear: req.PublishYear,
		Genre:       req.Genre,
		Available:   true,
	}
	book.InitTimestamps()

	err = withRetry(ctx, func(ctx context.Context) error {
		return s.store.CreateBook(ctx, book)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("a book with this ISBN already exists")
		}
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book added to catalog",
		"book_id", book.ID,
		"title", book.Title,
	)

	return book, nil
}

// GetBook retrieves a single book by ID.
func (s *BookService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("lookup book: %w", err)
	}
	return book, nil
}

// ListBooks returns catalog books matching the filter, ordered by title.
func (s *BookService) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, error) {
	books, err := s.store.ListBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// UpdateBookRequest contains catalog metadata edits. Empty fields are left
// unchanged.
type UpdateBookRequest struct {
	Title       string `json:"title" validate:"omitempty,max=500"`
	Author      string `json:"author" validate:"omitempty,max=200"`
	ISBN        string `json:"isbn" validate:"omitempty,max=20"`
	PublishYear string `json:"publish_year" validate:"omitempty,max=10"`
	Genre       string `json:"genre" validate:"omitempty,max=100"`
}

// UpdateBook edits a book's catalog metadata. Availability cannot be edited
// here; it changes only through checkouts and returns.
func (s *BookService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		book.Title = req.Title
	}
	if req.Author != "" {
		book.Author = req.Author
	}
	if req.ISBN != "" {
		book.ISBN = req.ISBN
	}
	if req.PublishYear != "" {
		book.PublishYear = req.PublishYear
	}
	if req.Genre != "" {
		book.Genre = req.Genre
	}
	book.Touch()

	err = withRetry(ctx, func(ctx context.Context) error {
		return s.store.UpdateBook(ctx, book)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("a book with this ISBN already exists")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	return book, nil
}

// DeleteBook removes a book from the catalog. A book with an open loan
// cannot be deleted; it has to come back first.
//
// The on-loan guard lives inside the store's conditional delete, so a
// checkout landing concurrently with the delete loses to it (or wins before
// it) but can never be stranded under a deleted book.
func (s *BookService) DeleteBook(ctx context.Context, bookID string) error {
	err := withRetry(ctx, func(ctx context.Context) error {
		return s.store.DeleteBook(ctx, bookID)
	})
	if err != nil {
		if errors.Is(err, store.ErrBookOnLoan) {
			return domainerrors.Conflict("book is currently on loan")
		}
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("book not found")
		}
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("delete book: %w", err)
	}

	s.logger.Info("book removed from catalog", "book_id", bookID)
	return nil
}
