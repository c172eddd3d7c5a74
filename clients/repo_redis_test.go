package clients_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-proxy/clients"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

func newTestRedisRepo(t *testing.T) (*clients.RedisRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return clients.NewRedisRepo(client, "oauthproxy:"), mr
}

func TestRedisRepoRoundTrip(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	client := &clients.Client{
		ID:           "client-1",
		Type:         clients.ClientTypeConfidential,
		Name:         "Assistant",
		SecretHash:   "hash",
		RedirectURIs: []string{"https://app.example.com/callback"},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Upsert(ctx, client))

	got, err := repo.Get(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, client.Name, got.Name)
	require.Equal(t, client.RedirectURIs, got.RedirectURIs)
	require.True(t, client.CreatedAt.Equal(got.CreatedAt))
}

func TestRedisRepoUnknownClient(t *testing.T) {
	repo, _ := newTestRedisRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, errors.ErrClientNotFound)
}

func TestRedisRepoRegistrationExpires(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &clients.Client{ID: "client-1"}))

	mr.FastForward(clients.RegistrationTTL + time.Second)

	_, err := repo.Get(ctx, "client-1")
	require.ErrorIs(t, err, errors.ErrClientNotFound)
}

func TestRedisRepoDelete(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &clients.Client{ID: "client-1"}))
	require.NoError(t, repo.Delete(ctx, "client-1"))

	_, err := repo.Get(ctx, "client-1")
	require.ErrorIs(t, err, errors.ErrClientNotFound)
}
