// Package main provides a tool to seed the database with an admin account
// and a starter catalog.
//
// Usage:
//
//	DATA_PATH=~/Circulate/data go run ./cmd/seed
//	go run ./cmd/seed --email librarian@example.com --password 'choose-one'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/circulateapp/circulate-server/internal/auth"
	"github.com/circulateapp/circulate-server/internal/domain"
	"github.com/circulateapp/circulate-server/internal/id"
	"github.com/circulateapp/circulate-server/internal/store"
	"github.com/circulateapp/circulate-server/internal/store/sqlite"
)

var (
	adminEmail    = flag.String("email", "admin@circulate.local", "Admin account email")
	adminPassword = flag.String("password", "", "Admin account password (required)")
	skipCatalog   = flag.Bool("skip-catalog", false, "Seed only the admin account, no books")
)

// starterCatalog is a small shelf to make a fresh install browsable.
var starterCatalog = []domain.Book{
	{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin", ISBN: "978-0441478125", PublishYear: "1969", Genre: "scifi"},
	{Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441172719", PublishYear: "1965", Genre: "scifi"},
	{Title: "Emma", Author: "Jane Austen", ISBN: "978-0141439587", PublishYear: "1815", Genre: "romance"},
	{Title: "The Name of the Rose", Author: "Umberto Eco", ISBN: "978-0544176562", PublishYear: "1980", Genre: "mystery"},
	{Title: "A Wizard of Earthsea", Author: "Ursula K. Le Guin", ISBN: "978-0547773742", PublishYear: "1968", Genre: "fantasy"},
	{Title: "The Master and Margarita", Author: "Mikhail Bulgakov", ISBN: "978-0143108276", PublishYear: "1967", Genre: "fiction"},
}

func main() {
	flag.Parse()

	if *adminPassword == "" {
		log.Fatal("--password is required")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Circulate/data")
	}

	dbPath := filepath.Join(dataPath, "circulate.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	seedAdmin(ctx, s)

	if !*skipCatalog {
		seedCatalog(ctx, s)
	}
}

func seedAdmin(ctx context.Context, s *sqlite.Store) {
	if existing, err := s.GetUserByEmail(ctx, *adminEmail); err == nil {
		fmt.Printf("Admin %s already exists (%s), skipping\n", *adminEmail, existing.ID)
		return
	}

	passwordHash, err := auth.HashPassword(*adminPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	userID, err := id.Generate("usr")
	if err != nil {
		log.Fatalf("Failed to generate user ID: %v", err)
	}

	user := &domain.User{
		ID:           userID,
		Email:        *adminEmail,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
		DisplayName:  "Librarian",
		LastLoginAt:  time.Now(),
	}
	user.InitTimestamps()

	if err := s.CreateUser(ctx, user); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Created admin %s (%s)\n", *adminEmail, userID)
}

func seedCatalog(ctx context.Context, s *sqlite.Store) {
	created := 0
	for _, book := range starterCatalog {
		bookID, err := id.Generate("bk")
		if err != nil {
			log.Fatalf("Failed to generate book ID: %v", err)
		}

		b := book
		b.ID = bookID
		b.Available = true
		b.InitTimestamps()

		if err := s.CreateBook(ctx, &b); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				fmt.Printf("  %q already in catalog, skipping\n", b.Title)
				continue
			}
			log.Fatalf("Failed to create book %q: %v", b.Title, err)
		}
		created++
	}

	fmt.Printf("Seeded %d of %d starter books\n", created, len(starterCatalog))
}
