package clients

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory client registration repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		clients: make(map[string]*Client),
	}
}

// Upsert stores or updates a client registration
func (r *InMemoryRepo) Upsert(_ context.Context, client *Client) error {
	if client == nil || client.ID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "client and client ID are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to prevent external modifications
	stored := *client
	stored.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	stored.Scopes = append([]string(nil), client.Scopes...)
	r.clients[client.ID] = &stored

	return nil
}

// Get retrieves a client registration by client ID
func (r *InMemoryRepo) Get(_ context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "client ID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	if !exists {
		return nil, errors.ErrClientNotFound
	}

	// Return a copy to prevent external modifications
	out := *client
	out.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	out.Scopes = append([]string(nil), client.Scopes...)
	return &out, nil
}

// Delete removes a client registration
func (r *InMemoryRepo) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
	return nil
}
