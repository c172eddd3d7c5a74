package clients

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// RegistrationTTL bounds how long an unused dynamic registration is
// kept. Assistant clients re-register when it lapses, which only costs
// a re-consent.
const RegistrationTTL = 24 * time.Hour

// RedisRepo keeps client registrations in the shared store so that a
// client registered against one replica can complete its flow on any
// other replica.
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client redis.UniversalClient, keyPrefix string) *RedisRepo {
	return &RedisRepo{client: client, keyPrefix: keyPrefix}
}

func (r *RedisRepo) key(clientID string) string {
	return r.keyPrefix + "client_reg:" + clientID
}

func (r *RedisRepo) Upsert(ctx context.Context, client *Client) error {
	if client == nil || client.ID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "client and client ID are required")
	}

	data, err := json.Marshal(client)
	if err != nil {
		return errors.Wrapf(err, "marshalling client registration")
	}
	if err := r.client.Set(ctx, r.key(client.ID), data, RegistrationTTL).Err(); err != nil {
		return errors.Wrapf(errors.ErrStoreUnavailable, "writing client registration: %v", err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "client ID cannot be empty")
	}

	data, err := r.client.Get(ctx, r.key(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.ErrClientNotFound
		}
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "reading client registration: %v", err)
	}

	var client Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling client registration")
	}
	return &client, nil
}

func (r *RedisRepo) Delete(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, r.key(clientID)).Err(); err != nil {
		return errors.Wrapf(errors.ErrStoreUnavailable, "deleting client registration: %v", err)
	}
	return nil
}
