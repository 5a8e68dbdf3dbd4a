package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "rec:"
	redisEventsChannel = "record-events"
)

// RedisStore keeps records as JSON strings keyed by path and fans change
// events out over pub/sub.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Read(ctx context.Context, path string, out interface{}) error {
	data, err := s.client.Get(ctx, redisKeyPrefix+path).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return readErr(path, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return readErr(path, err)
	}
	return nil
}

func (s *RedisStore) Write(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return writeErr(path, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+path, data, 0).Err(); err != nil {
		return writeErr(path, err)
	}
	s.publish(ctx, Event{Path: path, Value: data})
	return nil
}

// Merge is read-modify-write; single-writer-per-key is assumed, matching
// the store contract.
func (s *RedisStore) Merge(ctx context.Context, path string, fields map[string]interface{}) error {
	current := map[string]interface{}{}
	if err := s.Read(ctx, path, &current); err != nil && err != ErrNotFound {
		return err
	}
	for k, v := range fields {
		current[k] = v
	}
	return s.Write(ctx, path, current)
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+path).Err(); err != nil {
		return writeErr(path, err)
	}
	s.publish(ctx, Event{Path: path, Deleted: true})
	return nil
}

func (s *RedisStore) Append(ctx context.Context, prefix string, value interface{}) (string, error) {
	key := NewChildKey()
	if err := s.Write(ctx, Join(prefix, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string, fn func(path string, raw []byte) error) error {
	var cursor uint64
	match := redisKeyPrefix + prefix + "/*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return readErr(prefix, err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Result()
			if err == redis.Nil {
				continue // deleted between scan and get
			}
			if err != nil {
				return readErr(prefix, err)
			}
			if err := fn(strings.TrimPrefix(key, redisKeyPrefix), []byte(data)); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) Subscribe(ctx context.Context, prefix string) (<-chan Event, func(), error) {
	ps := s.client.Subscribe(ctx, redisEventsChannel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, readErr(prefix, err)
	}

	out := make(chan Event, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)

		// Snapshot first so subscribers see current state before the stream.
		_ = s.List(ctx, prefix, func(path string, raw []byte) error {
			select {
			case out <- Event{Path: path, Value: raw}:
				return nil
			case <-done:
				return ctx.Err()
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		ch := ps.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				if !strings.HasPrefix(ev.Path, prefix+"/") {
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			ps.Close()
		})
	}
	return out, cancel, nil
}

func (s *RedisStore) publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, redisEventsChannel, data).Err()
}

// AllowSend is the shared sliding-window send limiter. It counts sends per
// user over the window with a sorted-set Lua script so the limit holds
// across server instances.
func (s *RedisStore) AllowSend(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	script := `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	return 0
end
redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
redis.call('PEXPIRE', key, window)
return 1
`
	now := time.Now().UnixMilli()
	res, err := s.client.Eval(ctx, script, []string{"sendlimit:" + userID},
		limit, window.Milliseconds(), now).Result()
	if err != nil {
		return false, err
	}
	v, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result from rate limiter: %T %v", res, res)
	}
	return v == 1, nil
}
