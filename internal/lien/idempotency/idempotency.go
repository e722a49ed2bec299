// Package idempotency deduplicates lien issuance by client-supplied key, so
// a retried POST returns the lien already issued instead of consuming a new
// id and moving funds twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
)

// Store remembers which lien id a client key produced.
type Store interface {
	// Lookup returns the lien id previously recorded for key.
	Lookup(ctx context.Context, key string) (id.LienID, bool, error)

	// Remember records the id for key. The first writer wins; later writes
	// for the same key are ignored.
	Remember(ctx context.Context, key string, lienID id.LienID) error
}

// keyTTL bounds how long a key blocks reissuance. Client retry windows are
// minutes; a day is comfortably past them.
const keyTTL = 24 * time.Hour

const keyPrefix = "idempotency:lien:"

// Redis backs idempotency keys with SET NX and a TTL, shared across
// replicas.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Lookup(ctx context.Context, key string) (id.LienID, bool, error) {
	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	lienID, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse idempotency value: %w", err)
	}
	return id.LienID(lienID), true, nil
}

func (s *Redis) Remember(ctx context.Context, key string, lienID id.LienID) error {
	err := s.client.SetNX(ctx, keyPrefix+key, strconv.FormatUint(uint64(lienID), 10), keyTTL).Err()
	if err != nil {
		return fmt.Errorf("remember idempotency key: %w", err)
	}
	return nil
}

// Memory is the single-node fallback when Redis is not configured.
type Memory struct {
	mu   sync.Mutex
	keys map[string]id.LienID
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]id.LienID)}
}

func (s *Memory) Lookup(_ context.Context, key string) (id.LienID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lienID, ok := s.keys[key]
	return lienID, ok, nil
}

func (s *Memory) Remember(_ context.Context, key string, lienID id.LienID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key]; !exists {
		s.keys[key] = lienID
	}
	return nil
}
