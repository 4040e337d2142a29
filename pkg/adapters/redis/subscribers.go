// Package redis persists thread subscriptions in Redis sets.
package redis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/notify"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces subscription keys: discuss:thread:{thread_id}.
const DefaultKeyPrefix = "discuss:thread:"

// SubscriberStore implements notify.SubscriberStore with one Redis set per thread.
type SubscriberStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a SubscriberStore.
type Option func(*SubscriberStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *SubscriberStore) { s.prefix = prefix }
}

// WithTTL expires idle threads. Every subscription refreshes the TTL.
// Zero keeps threads forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *SubscriberStore) { s.ttl = ttl }
}

// NewSubscriberStore wraps an existing client.
func NewSubscriberStore(client *goredis.Client, opts ...Option) *SubscriberStore {
	s := &SubscriberStore{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *SubscriberStore) key(threadID string) string {
	return s.prefix + threadID
}

// Add subscribes address and reports whether it was new.
func (s *SubscriberStore) Add(ctx context.Context, threadID, address string) (bool, error) {
	key := s.key(threadID)

	pipe := s.client.TxPipeline()
	added := pipe.SAdd(ctx, key, address)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to add subscriber: %w", err)
	}
	return added.Val() > 0, nil
}

// Members returns the sorted addresses of a thread.
func (s *SubscriberStore) Members(ctx context.Context, threadID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	slices.Sort(members)
	return members, nil
}

// Remove unsubscribes address.
func (s *SubscriberStore) Remove(ctx context.Context, threadID, address string) error {
	if err := s.client.SRem(ctx, s.key(threadID), address).Err(); err != nil {
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}
	return nil
}

var _ notify.SubscriberStore = (*SubscriberStore)(nil)
