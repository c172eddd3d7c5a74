package identity_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-proxy/identity"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

const edgeSecret = "edge-shared-secret"

// fakeLookup maps token strings to users.
type fakeLookup struct {
	users map[string]identity.UserContext
	err   error
}

func (f fakeLookup) LookupAccessToken(_ context.Context, token string) (identity.UserContext, error) {
	if f.err != nil {
		return identity.UserContext{}, f.err
	}
	user, ok := f.users[token]
	if !ok {
		return identity.UserContext{}, errors.ErrNotFound
	}
	return user, nil
}

func TestBearerTokenStrategy(t *testing.T) {
	strategy := identity.BearerTokenStrategy{Lookup: fakeLookup{
		users: map[string]identity.UserContext{
			"good-token": {UserID: "u1", Email: "pat@example.com"},
		},
	}}

	t.Run("resolves a known token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		user, err := strategy.Resolve(req)
		require.NoError(t, err)
		require.Equal(t, "u1", user.UserID)
	})

	t.Run("no header means not applicable", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		user, err := strategy.Resolve(req)
		require.NoError(t, err)
		require.Nil(t, user)
	})

	t.Run("unknown token is unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Bearer bad-token")

		_, err := strategy.Resolve(req)
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})

	t.Run("malformed header is unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		_, err := strategy.Resolve(req)
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})

	t.Run("store outage propagates as infrastructure error", func(t *testing.T) {
		broken := identity.BearerTokenStrategy{Lookup: fakeLookup{err: errors.ErrStoreUnavailable}}
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		_, err := broken.Resolve(req)
		require.ErrorIs(t, err, errors.ErrStoreUnavailable)
		require.NotErrorIs(t, err, errors.ErrUnauthenticated)
	})
}

func TestEdgeHeaderStrategy(t *testing.T) {
	f := newJWTFixture(t)
	strategy := identity.EdgeHeaderStrategy{
		SharedSecret: edgeSecret,
		TokenHeader:  "X-Forwarded-Access-Token",
		Validator:    f.validator,
	}

	t.Run("resolves a forwarded token with the shared secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("X-Forwarded-Access-Token", f.sign(t, validClaims()))
		req.Header.Set(identity.DefaultEdgeSecretHeader, edgeSecret)

		user, err := strategy.Resolve(req)
		require.NoError(t, err)
		require.Equal(t, "oid-1", user.UserID)
	})

	t.Run("wrong shared secret is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("X-Forwarded-Access-Token", f.sign(t, validClaims()))
		req.Header.Set(identity.DefaultEdgeSecretHeader, "guessed")

		_, err := strategy.Resolve(req)
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})

	t.Run("forged token is rejected even with the secret", func(t *testing.T) {
		other := newJWTFixture(t)
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("X-Forwarded-Access-Token", other.sign(t, validClaims()))
		req.Header.Set(identity.DefaultEdgeSecretHeader, edgeSecret)

		_, err := strategy.Resolve(req)
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})

	t.Run("no token header means not applicable", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		user, err := strategy.Resolve(req)
		require.NoError(t, err)
		require.Nil(t, user)
	})

	t.Run("disabled when no secret is configured", func(t *testing.T) {
		disabled := identity.EdgeHeaderStrategy{TokenHeader: "X-Forwarded-Access-Token"}
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("X-Forwarded-Access-Token", f.sign(t, validClaims()))

		user, err := disabled.Resolve(req)
		require.NoError(t, err)
		require.Nil(t, user)
	})
}

func TestResolverOrdering(t *testing.T) {
	f := newJWTFixture(t)
	resolver := identity.NewResolver(
		identity.BearerTokenStrategy{Lookup: fakeLookup{
			users: map[string]identity.UserContext{"store-token": {UserID: "store-user"}},
		}},
		identity.EdgeHeaderStrategy{
			SharedSecret: edgeSecret,
			TokenHeader:  "X-Forwarded-Access-Token",
			Validator:    f.validator,
		},
	)

	t.Run("bearer token wins when present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Bearer store-token")
		req.Header.Set("X-Forwarded-Access-Token", f.sign(t, validClaims()))
		req.Header.Set(identity.DefaultEdgeSecretHeader, edgeSecret)

		user, err := resolver.Resolve(req)
		require.NoError(t, err)
		require.Equal(t, "store-user", user.UserID)
	})

	t.Run("falls through to the edge strategy", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("X-Forwarded-Access-Token", f.sign(t, validClaims()))
		req.Header.Set(identity.DefaultEdgeSecretHeader, edgeSecret)

		user, err := resolver.Resolve(req)
		require.NoError(t, err)
		require.Equal(t, "oid-1", user.UserID)
	})

	t.Run("no strategy applies", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		_, err := resolver.Resolve(req)
		require.ErrorIs(t, err, errors.ErrUnauthenticated)
	})
}
