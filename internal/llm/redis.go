package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "suraksha:llm:"

// RedisMirror backs the response cache with Redis so restarted or sibling
// processes can reuse prior model responses. All failures degrade to a
// cache miss.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisMirror connects a mirror to database db of the Redis instance
// at addr.
func NewRedisMirror(addr, password string, db int, ttl time.Duration, logger *logrus.Logger) *RedisMirror {
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl:    ttl,
		logger: logger,
	}
}

// Ping verifies connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Get implements CacheMirror.
func (m *RedisMirror) Get(ctx context.Context, key string) (*Result, bool) {
	data, err := m.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		m.logger.WithError(err).Warn("discarding undecodable cached LLM response")
		return nil, false
	}
	return &res, true
}

// Set implements CacheMirror.
func (m *RedisMirror) Set(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := m.client.Set(ctx, redisKeyPrefix+key, data, m.ttl).Err(); err != nil {
		m.logger.WithError(err).Debug("redis cache write failed")
	}
}

// Close releases the underlying connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
