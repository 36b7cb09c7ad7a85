package domain

import (
	"testing"
	"time"
)

func TestLoanIsOpen(t *testing.T) {
	loan := &Loan{
		ID:        "loan-1",
		UserID:    "usr-1",
		BookID:    "bk-1",
		StartDate: date(2024, time.January, 1),
	}

	if !loan.IsOpen() {
		t.Error("loan without return date should be open")
	}

	loan.ReturnDate = datePtr(2024, time.January, 10)
	if loan.IsOpen() {
		t.Error("loan with return date should be closed")
	}
}

func TestUserRoles(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	member := &User{Role: RoleMember}

	if !admin.IsAdmin() {
		t.Error("admin role should be admin")
	}
	if member.IsAdmin() {
		t.Error("member role should not be admin")
	}
}

func TestUserName(t *testing.T) {
	cases := []struct {
		name string
		user User
		want string
	}{
		{"display name wins", User{DisplayName: "Ana", FirstName: "Anastasia", Email: "a@b.c"}, "Ana"},
		{"full name fallback", User{FirstName: "Ana", LastName: "Ivanova", Email: "a@b.c"}, "Ana Ivanova"},
		{"first only", User{FirstName: "Ana", Email: "a@b.c"}, "Ana"},
		{"email last resort", User{Email: "a@b.c"}, "a@b.c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.Name(); got != tc.want {
				t.Errorf("Name: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSessionIsExpired(t *testing.T) {
	s := &Session{ExpiresAt: time.Now().Add(time.Hour)}
	if s.IsExpired() {
		t.Error("future expiry should not be expired")
	}

	s.ExpiresAt = time.Now().Add(-time.Minute)
	if !s.IsExpired() {
		t.Error("past expiry should be expired")
	}
}
