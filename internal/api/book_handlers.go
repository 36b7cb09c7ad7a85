package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/circulateapp/circulate-server/internal/domain"
	"github.com/circulateapp/circulate-server/internal/service"
	"github.com/circulateapp/circulate-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Lists catalog books, optionally filtered by genre, author, or availability",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "createBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Add book",
		Description: "Adds a book to the catalog. Admin only.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Edits catalog metadata. Availability cannot be set here. Admin only.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Remove book",
		Description: "Removes a book from the catalog. Fails while the book is on loan. Admin only.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)
}

// === DTOs ===

// BookResponse contains book information in API responses.
type BookResponse struct {
	ID          string    `json:"id" doc:"Book ID"`
	Title       string    `json:"title" doc:"Title"`
	Author      string    `json:"author" doc:"Author"`
	ISBN        string    `json:"isbn" doc:"ISBN"`
	PublishYear string    `json:"publish_year,omitempty" doc:"Publication year"`
	Genre       string    `json:"genre,omitempty" doc:"Genre"`
	Available   bool      `json:"available" doc:"Whether the book can be checked out"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update timestamp"`
}

// BookOutput wraps a book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// BookListResponse contains a list of books.
type BookListResponse struct {
	Books []BookResponse `json:"books" doc:"Matching books"`
	Count int            `json:"count" doc:"Number of books returned"`
}

// BookListOutput wraps a book list for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// ListBooksInput carries the catalog list filters.
type ListBooksInput struct {
	Genre     string `query:"genre" doc:"Keep only books in this genre"`
	Author    string `query:"author" doc:"Keep only books by this author"`
	Available bool   `query:"available" doc:"Keep only books available for checkout"`
}

// CreateBookRequest is the request body for adding a book.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=500" doc:"Title"`
	Author      string `json:"author" validate:"required,max=200" doc:"Author"`
	ISBN        string `json:"isbn" validate:"required,max=20" doc:"ISBN"`
	PublishYear string `json:"publish_year,omitempty" validate:"omitempty,max=10" doc:"Publication year"`
	Genre       string `json:"genre,omitempty" validate:"omitempty,max=100" doc:"Genre"`
}

// CreateBookInput wraps the create request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// UpdateBookRequest is the request body for editing a book. Empty fields are
// left unchanged.
type UpdateBookRequest struct {
	Title       string `json:"title,omitempty" validate:"omitempty,max=500" doc:"Title"`
	Author      string `json:"author,omitempty" validate:"omitempty,max=200" doc:"Author"`
	ISBN        string `json:"isbn,omitempty" validate:"omitempty,max=20" doc:"ISBN"`
	PublishYear string `json:"publish_year,omitempty" validate:"omitempty,max=10" doc:"Publication year"`
	Genre       string `json:"genre,omitempty" validate:"omitempty,max=100" doc:"Genre"`
}

// UpdateBookInput wraps the update request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookRequest
}

// BookIDInput identifies a book by path parameter.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	books, err := s.services.Book.ListBooks(ctx, store.BookFilter{
		Genre:         input.Genre,
		Author:        input.Author,
		AvailableOnly: input.Available,
	})
	if err != nil {
		return nil, err
	}

	return &BookListOutput{Body: mapBookList(books)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Book.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Book.CreateBook(ctx, service.CreateBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		ISBN:        input.Body.ISBN,
		PublishYear: input.Body.PublishYear,
		Genre:       input.Body.Genre,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Book.UpdateBook(ctx, input.ID, service.UpdateBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		ISBN:        input.Body.ISBN,
		PublishYear: input.Body.PublishYear,
		Genre:       input.Body.Genre,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*MessageOutput, error) {
	if _, err := s.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Book.DeleteBook(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Book removed from catalog"}}, nil
}

// === Helpers ===

func mapBook(book *domain.Book) BookResponse {
	return BookResponse{
		ID:          book.ID,
		Title:       book.Title,
		Author:      book.Author,
		ISBN:        book.ISBN,
		PublishYear: book.PublishYear,
		Genre:       book.Genre,
		Available:   book.Available,
		CreatedAt:   book.CreatedAt,
		UpdatedAt:   book.UpdatedAt,
	}
}

func mapBookList(books []*domain.Book) BookListResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, mapBook(b))
	}
	return BookListResponse{Books: out, Count: len(out)}
}
