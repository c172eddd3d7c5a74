// Package collaborators defines the narrow interfaces through which
// the proxy's tool endpoints consume external systems. Implementing
// those systems is out of scope here; tests and local development use
// the in-memory fakes.
package collaborators

import (
	"context"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/identity"
)

// Person is a directory entry from the personnel directory provider.
type Person struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Groups []string `json:"groups,omitempty"`
}

// Incident is a summary document from the incident/schedule store.
type Incident struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
	Reviewed   bool      `json:"reviewed"`
	ReviewedBy string    `json:"reviewed_by,omitempty"`
}

// DispatchEntry is one record from the dispatch-log provider.
type DispatchEntry struct {
	ID         string    `json:"id"`
	Unit       string    `json:"unit"`
	DispatchAt time.Time `json:"dispatched_at"`
	Summary    string    `json:"summary"`
}

// PersonnelDirectory looks up directory entries on behalf of a user.
type PersonnelDirectory interface {
	List(ctx context.Context, caller identity.UserContext) ([]Person, error)
}

// IncidentStore reads and reviews incident documents.
type IncidentStore interface {
	List(ctx context.Context, caller identity.UserContext) ([]Incident, error)
	MarkReviewed(ctx context.Context, caller identity.UserContext, incidentID string) (*Incident, error)
}

// DispatchLog reads and prunes dispatch entries.
type DispatchLog interface {
	Delete(ctx context.Context, caller identity.UserContext, entryID string) error
}
