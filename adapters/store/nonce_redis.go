package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/finsight/walletauth/adapters/siwe"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "walletauth:nonce:"

// consumeScript burns a nonce in one atomic step so concurrent verify
// attempts cannot both succeed. Returns a status code plus the stored
// record on success: 0 = consumed, 1 = not found, 2 = already used,
// 3 = expired.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local nonce = redis.call('HGET', key, 'nonce')
if not nonce or nonce ~= ARGV[1] then
	return {1}
end
if redis.call('HGET', key, 'used') == '1' then
	return {2}
end
local expires = tonumber(redis.call('HGET', key, 'expires_at'))
if expires <= tonumber(ARGV[2]) then
	return {3}
end
redis.call('HSET', key, 'used', '1')
return {0, redis.call('HGET', key, 'message'), redis.call('HGET', key, 'issued_at'), tostring(expires)}
`)

// RedisNonceStore keeps SIWE challenges in Redis hashes, one per address,
// with a key TTL as lazy garbage collection.
type RedisNonceStore struct {
	client  *redis.Client
	builder *siwe.ChallengeBuilder
	clock   core.Clock
}

// NewRedisNonceStore creates a nonce store backed by Redis.
func NewRedisNonceStore(client *redis.Client, builder *siwe.ChallengeBuilder, clock core.Clock) ports.NonceStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &RedisNonceStore{client: client, builder: builder, clock: clock}
}

// GetOrCreate returns the live challenge unchanged or writes a fresh one.
func (s *RedisNonceStore) GetOrCreate(ctx context.Context, address string) (*core.Challenge, error) {
	key := nonceKeyPrefix + address

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to look up nonce: %w", err)
	}

	if len(fields) > 0 {
		challenge, err := challengeFromFields(address, fields)
		if err == nil && !challenge.Used && !challenge.Expired(s.clock.Now()) {
			return challenge, nil
		}
	}

	challenge, err := s.builder.Generate(address)
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"nonce", challenge.Nonce,
		"message", challenge.Message,
		"issued_at", strconv.FormatInt(challenge.IssuedAt.Unix(), 10),
		"expires_at", strconv.FormatInt(challenge.ExpiresAt.Unix(), 10),
		"used", "0",
	)
	// Keep burned nonces around past their expiry so replays classify as
	// used rather than missing.
	pipe.Expire(ctx, key, s.builder.TTL+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	return challenge, nil
}

// Consume burns the (address, nonce) challenge via the Lua script.
func (s *RedisNonceStore) Consume(ctx context.Context, address, nonce string) (*core.Challenge, error) {
	key := nonceKeyPrefix + address
	now := strconv.FormatInt(s.clock.Now().Unix(), 10)

	result, err := consumeScript.Run(ctx, s.client, []string{key}, nonce, now).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("unexpected empty reply from nonce script")
	}

	status, ok := result[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type from nonce script: %T", result[0])
	}

	switch status {
	case 0:
		// fall through to decode the record
	case 1:
		return nil, core.ErrNonceNotFound
	case 2:
		return nil, core.ErrNonceUsed
	case 3:
		return nil, core.ErrNonceExpired
	default:
		return nil, fmt.Errorf("unknown nonce script status %d", status)
	}

	if len(result) != 4 {
		return nil, fmt.Errorf("unexpected reply length from nonce script: %d", len(result))
	}

	message, _ := result[1].(string)
	issuedAt, _ := result[2].(string)
	expiresAt, _ := result[3].(string)

	issued, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt issued_at for nonce: %w", err)
	}
	expires, err := strconv.ParseInt(expiresAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at for nonce: %w", err)
	}

	return &core.Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   message,
		IssuedAt:  time.Unix(issued, 0),
		ExpiresAt: time.Unix(expires, 0),
		Used:      true,
	}, nil
}

func challengeFromFields(address string, fields map[string]string) (*core.Challenge, error) {
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt issued_at for nonce: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at for nonce: %w", err)
	}

	return &core.Challenge{
		Address:   address,
		Nonce:     fields["nonce"],
		Message:   fields["message"],
		IssuedAt:  time.Unix(issued, 0),
		ExpiresAt: time.Unix(expires, 0),
		Used:      fields["used"] == "1",
	}, nil
}
