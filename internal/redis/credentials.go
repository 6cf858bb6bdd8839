package redisc

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "donaty:session:"

// CredentialStore keeps role-keyed session tokens in Redis so several
// clients on one machine share a login. Keys are Prefix + slot name.
type CredentialStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCredentialStore returns a store under prefix. A zero ttl keeps values
// until they are deleted.
func NewCredentialStore(client *redis.Client, prefix string, ttl time.Duration) *CredentialStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CredentialStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *CredentialStore) Key(slot string) string {
	return s.prefix + slot
}

func (s *CredentialStore) Get(ctx context.Context, slot string) (string, error) {
	v, err := s.client.Get(ctx, s.Key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *CredentialStore) Set(ctx context.Context, slot, value string) error {
	return s.client.Set(ctx, s.Key(slot), value, s.ttl).Err()
}

func (s *CredentialStore) Delete(ctx context.Context, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, len(slots))
	for i, slot := range slots {
		keys[i] = s.Key(slot)
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, keys...)
	_, err := pipe.Exec(ctx)
	return err
}
