package tokenstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/identity"
)

// Store is the replica-shared token store. Implementations must be
// safe for concurrent use across processes: single-use semantics come
// from the atomic Consume primitive, never from in-process locks.
//
// Errors: Get and Consume return errors.ErrNotFound for unknown or
// expired records, Consume returns errors.ErrCodeConsumed when the
// record was already taken, and every method surfaces
// errors.ErrStoreUnavailable when the backing store is unreachable.
// The store fails closed, never "assume valid".
type Store interface {
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
	Get(ctx context.Context, kind Kind, value string) (*Record, error)
	Delete(ctx context.Context, kind Kind, value string) error

	// Consume atomically removes and returns the record, leaving a
	// short-lived consumed marker behind so a second attempt fails with
	// ErrCodeConsumed rather than ErrNotFound.
	Consume(ctx context.Context, kind Kind, value string) (*Record, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// UserLookup adapts a Store to the identity.TokenLookup interface used
// by the claims resolver.
type UserLookup struct {
	Store Store
}

var _ identity.TokenLookup = UserLookup{}

func (l UserLookup) LookupAccessToken(ctx context.Context, token string) (identity.UserContext, error) {
	rec, err := l.Store.Get(ctx, KindAccessToken, token)
	if err != nil {
		return identity.UserContext{}, err
	}
	return rec.User, nil
}
