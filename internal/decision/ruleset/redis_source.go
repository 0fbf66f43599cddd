package ruleset

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"underwriter/pkg/platform/sentinel"
)

const (
	// DefaultRedisKey is the hash holding one document per rule set name.
	DefaultRedisKey = "underwriting:rulesets"
	// DefaultRedisChannel carries the name of each published rule set.
	DefaultRedisChannel = "underwriting:rulesets:updated"
)

// RedisSource reads rule set documents from a Redis hash and announces
// updates on a pub/sub channel so every instance can reload.
type RedisSource struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// NewRedisSource uses the default key and channel.
func NewRedisSource(client redis.UniversalClient) *RedisSource {
	return &RedisSource{client: client, key: DefaultRedisKey, channel: DefaultRedisChannel}
}

func (s *RedisSource) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.key, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("rule set %s: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rule set %s: %w", name, err)
	}
	return data, nil
}

// Publish validates and stores a document, then notifies subscribers.
// Invalid documents are rejected before they reach Redis.
func (s *RedisSource) Publish(ctx context.Context, name string, data []byte) error {
	if _, err := Parse(name, data); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, name, data).Err(); err != nil {
		return fmt.Errorf("store rule set %s: %w", name, err)
	}
	if err := s.client.Publish(ctx, s.channel, name).Err(); err != nil {
		return fmt.Errorf("announce rule set %s: %w", name, err)
	}
	return nil
}

// Subscribe returns a channel that receives the rule set name on every
// publish. The channel closes when ctx ends.
func (s *RedisSource) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
