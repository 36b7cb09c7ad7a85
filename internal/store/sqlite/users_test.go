package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/circulateapp/circulate-server/internal/domain"
	"github.com/circulateapp/circulate-server/internal/store"
)

func makeTestUser(id, email string) *domain.User {
	now := time.Now()
	return &domain.User{
		Timestamps: domain.Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
		ID:           id,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		Role:         domain.RoleMember,
		DisplayName:  "Test User",
		LastLoginAt:  now,
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("usr-1", "alice@example.com")
	user.FirstName = "Alice"
	user.LastName = "Smith"

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email: got %q", got.Email)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash: got %q", got.PasswordHash)
	}
	if got.Role != domain.RoleMember {
		t.Errorf("Role: got %q", got.Role)
	}
	if got.FirstName != "Alice" || got.LastName != "Smith" {
		t.Errorf("name: got %q %q", got.FirstName, got.LastName)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "usr-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, makeTestUser("usr-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Same email, different case.
	err := s.CreateUser(ctx, makeTestUser("usr-2", "Alice@Example.com"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetUserByEmailCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, makeTestUser("usr-1", "Alice@Example.com")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "usr-1" {
		t.Errorf("ID: got %q", got.ID)
	}
	// Original casing is preserved.
	if got.Email != "Alice@Example.com" {
		t.Errorf("Email: got %q", got.Email)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("usr-1", "alice@example.com")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user.DisplayName = "Allie"
	user.Role = domain.RoleAdmin
	user.LastLoginAt = time.Now().Add(time.Hour)
	user.Touch()
	if err := s.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.DisplayName != "Allie" {
		t.Errorf("DisplayName: got %q", got.DisplayName)
	}
	if !got.IsAdmin() {
		t.Error("expected admin role after update")
	}

	missing := makeTestUser("usr-ghost", "ghost@example.com")
	if err := s.UpdateUser(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSoftDeletedUserFreesEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("usr-1", "alice@example.com")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	deletedAt := time.Now()
	user.DeletedAt = &deletedAt
	if err := s.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if _, err := s.GetUser(ctx, "usr-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected deleted user to be invisible, got %v", err)
	}

	if err := s.CreateUser(ctx, makeTestUser("usr-2", "alice@example.com")); err != nil {
		t.Errorf("CreateUser with freed email: %v", err)
	}
}
