package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// Default timeouts for Redis operations.
const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// RedisStore is the durable, replica-shared L2 store. Records are
// stored as JSON under "<prefix><kind>:<value>" with a native per-key
// TTL, so expired records disappear without a sweep job.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, keyPrefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "connecting to redis at %s: %v", addr, err)
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

// NewRedisStoreWithClient wraps an existing client. Useful for tests
// with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Client exposes the underlying connection so other Redis-backed
// repositories can share it.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

func (s *RedisStore) key(kind Kind, value string) string {
	return fmt.Sprintf("%s%s:%s", s.keyPrefix, kind, value)
}

func (s *RedisStore) consumedKey(kind Kind, value string) string {
	return fmt.Sprintf("%sconsumed:%s:%s", s.keyPrefix, kind, value)
}

func (s *RedisStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.Value == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "record and record value are required")
	}
	if ttl <= 0 {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			return errors.Wrapf(errors.ErrInvalidRequest, "record already expired")
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "marshalling record")
	}

	if err := s.client.Set(ctx, s.key(rec.Kind, rec.Value), data, ttl).Err(); err != nil {
		return errors.Wrapf(errors.ErrStoreUnavailable, "writing %s record: %v", rec.Kind, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, kind Kind, value string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(kind, value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "reading %s record: %v", kind, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling %s record", kind)
	}

	// Redis TTL already evicts expired keys; this guards against clock
	// skew between writer and store.
	if rec.Expired(time.Now()) {
		return nil, errors.ErrNotFound
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, kind Kind, value string) error {
	if err := s.client.Del(ctx, s.key(kind, value)).Err(); err != nil {
		return errors.Wrapf(errors.ErrStoreUnavailable, "deleting %s record: %v", kind, err)
	}
	return nil
}

// consumeScript atomically takes a record and leaves a consumed marker.
// Returns {2, payload} on success, {1, ""} when the record was already
// consumed, {0, ""} when it never existed or expired. A single script
// invocation means concurrent redemption attempts cannot both win.
var consumeScript = redis.NewScript(`
local val = redis.call('GET', KEYS[1])
if val then
	redis.call('DEL', KEYS[1])
	redis.call('SET', KEYS[2], '1', 'EX', ARGV[1])
	return {2, val}
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {1, ''}
end
return {0, ''}
`)

func (s *RedisStore) Consume(ctx context.Context, kind Kind, value string) (*Record, error) {
	keys := []string{s.key(kind, value), s.consumedKey(kind, value)}
	res, err := consumeScript.Run(ctx, s.client, keys, int(ConsumedMarkerTTL.Seconds())).Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "consuming %s record: %v", kind, err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return nil, errors.Wrapf(errors.ErrInternal, "unexpected consume script result %v", res)
	}
	status, _ := parts[0].(int64)

	switch status {
	case 2:
		payload, _ := parts[1].(string)
		var rec Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, errors.Wrapf(err, "unmarshalling consumed %s record", kind)
		}
		if rec.Expired(time.Now()) {
			return nil, errors.ErrNotFound
		}
		return &rec, nil
	case 1:
		return nil, errors.ErrCodeConsumed
	default:
		return nil, errors.ErrNotFound
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrapf(errors.ErrStoreUnavailable, "redis ping: %v", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
