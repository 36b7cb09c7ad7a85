package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/circulateapp/circulate-server/internal/auth"
	"github.com/circulateapp/circulate-server/internal/config"
	"github.com/circulateapp/circulate-server/internal/domain"
	"github.com/circulateapp/circulate-server/internal/service"
	"github.com/circulateapp/circulate-server/internal/store"
	"github.com/circulateapp/circulate-server/internal/store/sqlite"
)

// testServer bundles the API server with the pieces tests poke at directly.
type testServer struct {
	*Server
	api   humatest.TestAPI
	store store.Store
}

// setupTestServer creates a test server backed by a temp sqlite store.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokenService, err := auth.NewTokenService(strings.Repeat("ab", 32), 15*time.Minute, 720*time.Hour)
	require.NoError(t, err)

	sessionService := service.NewSessionService(st, tokenService, logger)
	authService := service.NewAuthService(st, tokenService, sessionService, nil, logger)
	bookService := service.NewBookService(st, logger)
	loanService := service.NewLoanService(st, domain.DefaultLendingPolicy(), logger)

	cfg := &config.Config{
		Server: config.ServerConfig{Name: "Circulate Test"},
	}

	server := NewServer(cfg, st, &Services{
		Auth:    authService,
		Session: sessionService,
		Book:    bookService,
		Loan:    loanService,
	}, logger)

	return &testServer{
		Server: server,
		api:    humatest.Wrap(t, server.api),
		store:  st,
	}
}

// decodeBody unmarshals a recorded response body into out.
func decodeBody(t *testing.T, body []byte, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, out))
}

// registerUser creates an account through the API and returns its tokens.
func registerUser(t *testing.T, ts *testServer, email, displayName string) AuthResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        email,
		"password":     "SecurePassword123!",
		"display_name": displayName,
	})
	require.Equal(t, http.StatusOK, resp.Code, "register failed: %s", resp.Body.String())

	var out AuthResponse
	decodeBody(t, resp.Body.Bytes(), &out)
	return out
}

// registerAdmin creates an account and promotes it to admin directly in the
// store. Registration itself never hands out the admin role.
func registerAdmin(t *testing.T, ts *testServer, email string) AuthResponse {
	t.Helper()

	out := registerUser(t, ts, email, "Admin")

	ctx := context.Background()
	user, err := ts.store.GetUser(ctx, out.User.ID)
	require.NoError(t, err)
	user.Role = domain.RoleAdmin
	require.NoError(t, ts.store.UpdateUser(ctx, user))

	// Re-login so the token carries the new role.
	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": "SecurePassword123!",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	decodeBody(t, resp.Body.Bytes(), &out)
	return out
}

// bearer formats an Authorization header argument for humatest.
func bearer(token string) string {
	return "Authorization: Bearer " + token
}

// createBook adds a catalog book through the API as the given admin.
func createBook(t *testing.T, ts *testServer, adminToken, title, isbn string) BookResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/books", bearer(adminToken), map[string]any{
		"title":  title,
		"author": "Test Author",
		"isbn":   isbn,
		"genre":  "fiction",
	})
	require.Equal(t, http.StatusOK, resp.Code, "create book failed: %s", resp.Body.String())

	var out BookResponse
	decodeBody(t, resp.Body.Bytes(), &out)
	return out
}
