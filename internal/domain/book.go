// Package domain contains the core business entities and lending rules for the Circulate server.
package domain

import "time"

// Book represents a catalogued book that can be lent out.
//
// Available is the single source of truth for lendability: it is false iff
// exactly one open loan references this book. The flag is only ever flipped
// through the store's conditional claim/release operations so that the
// invariant holds under concurrent checkouts.
type Book struct {
	Timestamps
	ID          string     `json:"id"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	ISBN        string     `json:"isbn"`
	PublishYear string     `json:"publish_year,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	Available   bool       `json:"available"`
}

// IsDeleted returns true if the book has been soft-deleted from the catalog.
func (b *Book) IsDeleted() bool {
	return b.DeletedAt != nil
}
