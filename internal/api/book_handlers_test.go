package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBook_AdminOnly(t *testing.T) {
	ts := setupTestServer(t)
	member := registerUser(t, ts, "member@example.com", "Member")
	admin := registerAdmin(t, ts, "admin@example.com")

	body := map[string]any{
		"title":  "The Left Hand of Darkness",
		"author": "Ursula K. Le Guin",
		"isbn":   "978-0441478125",
	}

	resp := ts.api.Post("/api/v1/books", bearer(member.AccessToken), body)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Post("/api/v1/books", body)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/v1/books", bearer(admin.AccessToken), body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var book BookResponse
	decodeBody(t, resp.Body.Bytes(), &book)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "The Left Hand of Darkness", book.Title)
	assert.True(t, book.Available, "new books start available")
}

func TestCreateBook_DuplicateISBN(t *testing.T) {
	ts := setupTestServer(t)
	admin := registerAdmin(t, ts, "admin@example.com")

	createBook(t, ts, admin.AccessToken, "First", "isbn-1")

	resp := ts.api.Post("/api/v1/books", bearer(admin.AccessToken), map[string]any{
		"title":  "Second",
		"author": "Someone Else",
		"isbn":   "isbn-1",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetBook(t *testing.T) {
	ts := setupTestServer(t)
	member := registerUser(t, ts, "member@example.com", "Member")
	admin := registerAdmin(t, ts, "admin@example.com")
	created := createBook(t, ts, admin.AccessToken, "Dune", "isbn-dune")

	resp := ts.api.Get("/api/v1/books/"+created.ID, bearer(member.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)

	var book BookResponse
	decodeBody(t, resp.Body.Bytes(), &book)
	assert.Equal(t, created.ID, book.ID)
	assert.Equal(t, "Dune", book.Title)

	resp = ts.api.Get("/api/v1/books/bk-missing", bearer(member.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListBooks_Filters(t *testing.T) {
	ts := setupTestServer(t)
	member := registerUser(t, ts, "member@example.com", "Member")
	admin := registerAdmin(t, ts, "admin@example.com")

	ts.api.Post("/api/v1/books", bearer(admin.AccessToken), map[string]any{
		"title": "Dune", "author": "Frank Herbert", "isbn": "isbn-1", "genre": "scifi",
	})
	ts.api.Post("/api/v1/books", bearer(admin.AccessToken), map[string]any{
		"title": "Emma", "author": "Jane Austen", "isbn": "isbn-2", "genre": "romance",
	})

	resp := ts.api.Get("/api/v1/books", bearer(member.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)

	var list BookListResponse
	decodeBody(t, resp.Body.Bytes(), &list)
	assert.Equal(t, 2, list.Count)

	resp = ts.api.Get("/api/v1/books?genre=scifi", bearer(member.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	decodeBody(t, resp.Body.Bytes(), &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Dune", list.Books[0].Title)

	resp = ts.api.Get("/api/v1/books?author=Jane+Austen", bearer(member.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	decodeBody(t, resp.Body.Bytes(), &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Emma", list.Books[0].Title)
}

func TestUpdateBook(t *testing.T) {
	ts := setupTestServer(t)
	member := registerUser(t, ts, "member@example.com", "Member")
	admin := registerAdmin(t, ts, "admin@example.com")
	created := createBook(t, ts, admin.AccessToken, "Old Title", "isbn-1")

	resp := ts.api.Patch("/api/v1/books/"+created.ID, bearer(member.AccessToken), map[string]any{
		"title": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Patch("/api/v1/books/"+created.ID, bearer(admin.AccessToken), map[string]any{
		"title": "New Title",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var book BookResponse
	decodeBody(t, resp.Body.Bytes(), &book)
	assert.Equal(t, "New Title", book.Title)
	assert.Equal(t, created.Author, book.Author, "untouched fields survive a patch")
}

func TestDeleteBook(t *testing.T) {
	ts := setupTestServer(t)
	admin := registerAdmin(t, ts, "admin@example.com")
	created := createBook(t, ts, admin.AccessToken, "Doomed", "isbn-1")

	resp := ts.api.Delete("/api/v1/books/"+created.ID, bearer(admin.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/books/"+created.ID, bearer(admin.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/books/"+created.ID, bearer(admin.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteBook_OnLoanConflicts(t *testing.T) {
	ts := setupTestServer(t)
	admin := registerAdmin(t, ts, "admin@example.com")
	created := createBook(t, ts, admin.AccessToken, "Borrowed", "isbn-1")

	resp := ts.api.Post("/api/v1/loans", bearer(admin.AccessToken), map[string]any{
		"book_id": created.ID,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Delete("/api/v1/books/"+created.ID, bearer(admin.AccessToken))
	assert.Equal(t, http.StatusConflict, resp.Code)
}
