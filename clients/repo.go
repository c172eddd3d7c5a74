package clients

import "context"

// Repo stores client registrations. The production implementation is
// the shared-store repo so a client registered against one replica is
// visible to every replica; the in-memory repo exists for local
// development and tests, where a lost registration only costs the
// client a re-registration, never a security property.
type Repo interface {
	Upsert(ctx context.Context, client *Client) error
	Get(ctx context.Context, clientID string) (*Client, error)
	Delete(ctx context.Context, clientID string) error
}
