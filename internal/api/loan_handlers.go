package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/circulateapp/circulate-server/internal/domain"
	domainerrors "github.com/circulateapp/circulate-server/internal/errors"
	"github.com/circulateapp/circulate-server/internal/service"
)

func (s *Server) registerLoanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "checkoutBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans",
		Summary:     "Check out a book",
		Description: "Lends an available book to the authenticated user. Admins may check out on behalf of another user.",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCheckout)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans/{id}/return",
		Summary:     "Return a book",
		Description: "Closes an open loan as of today and computes any late fine. The return date is always the server's date.",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReturn)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLoan",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}",
		Summary:     "Get loan",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetLoan)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans",
		Summary:     "List loans",
		Description: "Lists the authenticated user's loans, oldest first. Admins may pass user_id to list another user's loans.",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListLoans)
}

// === DTOs ===

// LoanResponse contains loan information in API responses. Due date and fine
// are derived from the lending policy at read time, never stored.
type LoanResponse struct {
	ID         string `json:"id" doc:"Loan ID"`
	UserID     string `json:"user_id" doc:"Borrowing user ID"`
	BookID     string `json:"book_id" doc:"Borrowed book ID"`
	StartDate  string `json:"start_date" doc:"Date the loan started (YYYY-MM-DD)"`
	ReturnDate string `json:"return_date,omitempty" doc:"Date the book came back, if it has (YYYY-MM-DD)"`
	DueDate    string `json:"due_date" doc:"Date the book is due back (YYYY-MM-DD)"`
	Fine       int64  `json:"fine" doc:"Fine owed in cents. Zero until a late return is recorded."`
	Overdue    bool   `json:"overdue" doc:"Whether the loan is open and past its due date"`
}

// LoanOutput wraps a loan response for Huma.
type LoanOutput struct {
	Body LoanResponse
}

// LoanListResponse contains a list of loans.
type LoanListResponse struct {
	Loans []LoanResponse `json:"loans" doc:"Matching loans, oldest start date first"`
	Count int            `json:"count" doc:"Number of loans returned"`
}

// LoanListOutput wraps a loan list for Huma.
type LoanListOutput struct {
	Body LoanListResponse
}

// CheckoutRequest is the request body for checking out a book.
type CheckoutRequest struct {
	BookID string `json:"book_id" validate:"required" doc:"Book to check out"`
	UserID string `json:"user_id,omitempty" doc:"Borrower. Defaults to the authenticated user; setting it requires admin."`
}

// CheckoutInput wraps the checkout request for Huma.
type CheckoutInput struct {
	Body CheckoutRequest
}

// ReturnResponse is the outcome of returning a book.
type ReturnResponse struct {
	Loan    LoanResponse `json:"loan" doc:"The closed loan"`
	DueDate string       `json:"due_date" doc:"Date the book was due back (YYYY-MM-DD)"`
	Fine    int64        `json:"fine" doc:"Fine owed in cents. Zero for on-time returns."`
}

// ReturnOutput wraps the return response for Huma.
type ReturnOutput struct {
	Body ReturnResponse
}

// LoanIDInput identifies a loan by path parameter.
type LoanIDInput struct {
	ID string `path:"id" doc:"Loan ID"`
}

// ListLoansInput carries the loan list filters.
type ListLoansInput struct {
	UserID  string `query:"user_id" doc:"List this user's loans instead of your own (admin only)"`
	Open    bool   `query:"open" doc:"Keep only open loans"`
	Overdue bool   `query:"overdue" doc:"Keep only open loans past their due date"`
}

// === Handlers ===

func (s *Server) handleCheckout(ctx context.Context, input *CheckoutInput) (*LoanOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	borrowerID := user.ID
	if input.Body.UserID != "" && input.Body.UserID != user.ID {
		if !user.IsAdmin() {
			return nil, domainerrors.Forbidden("Only admins can check out for another user")
		}
		borrowerID = input.Body.UserID
	}

	loan, err := s.services.Loan.Checkout(ctx, service.CheckoutRequest{
		UserID: borrowerID,
		BookID: input.Body.BookID,
	})
	if err != nil {
		return nil, err
	}

	return &LoanOutput{Body: s.mapLoan(loan)}, nil
}

func (s *Server) handleReturn(ctx context.Context, input *LoanIDInput) (*ReturnOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	loan, err := s.services.Loan.GetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != user.ID && !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Only the borrower or an admin can return this loan")
	}

	// Zero date means "today" to the service. The API never accepts a
	// caller-supplied return date; that would allow backdating fines away.
	result, err := s.services.Loan.Return(ctx, input.ID, time.Time{})
	if err != nil {
		return nil, err
	}

	return &ReturnOutput{Body: ReturnResponse{
		Loan:    s.mapLoan(result.Loan),
		DueDate: result.DueDate.Format(time.DateOnly),
		Fine:    result.Fine,
	}}, nil
}

func (s *Server) handleGetLoan(ctx context.Context, input *LoanIDInput) (*LoanOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	loan, err := s.services.Loan.GetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != user.ID && !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Only the borrower or an admin can view this loan")
	}

	return &LoanOutput{Body: s.mapLoan(loan)}, nil
}

func (s *Server) handleListLoans(ctx context.Context, input *ListLoansInput) (*LoanListOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	userID := user.ID
	if input.UserID != "" && input.UserID != user.ID {
		if !user.IsAdmin() {
			return nil, domainerrors.Forbidden("Only admins can list another user's loans")
		}
		userID = input.UserID
	}

	var loans []*domain.Loan
	switch {
	case input.Overdue:
		loans, err = s.services.Loan.ListOverdueLoans(ctx, userID)
	case input.Open:
		loans, err = s.services.Loan.ListOpenLoans(ctx, userID)
	default:
		loans, err = s.services.Loan.ListUserLoans(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	return &LoanListOutput{Body: s.mapLoanList(loans)}, nil
}

// === Helpers ===

func (s *Server) mapLoan(loan *domain.Loan) LoanResponse {
	policy := s.services.Loan.Policy()

	resp := LoanResponse{
		ID:        loan.ID,
		UserID:    loan.UserID,
		BookID:    loan.BookID,
		StartDate: loan.StartDate.Format(time.DateOnly),
		DueDate:   policy.DueDate(loan.StartDate).Format(time.DateOnly),
		Fine:      policy.Fine(loan.StartDate, loan.ReturnDate),
		Overdue:   policy.IsOverdue(loan.StartDate, loan.ReturnDate, time.Now()),
	}
	if loan.ReturnDate != nil {
		resp.ReturnDate = loan.ReturnDate.Format(time.DateOnly)
	}
	return resp
}

func (s *Server) mapLoanList(loans []*domain.Loan) LoanListResponse {
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, s.mapLoan(l))
	}
	return LoanListResponse{Loans: out, Count: len(out)}
}
