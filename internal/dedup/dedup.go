// Package dedup remembers which applicant snapshots were already shortlisted
// so repeated runs do not insert the same lead twice.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "applicant-pipeline"
	defaultTTL    = 90 * 24 * time.Hour
)

// Leads tracks shortlisted snapshots in Redis. The key is the applicant
// record id, the value a hash of the snapshot, so a changed snapshot counts
// as new.
type Leads struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New uses defaults for an empty prefix or a non-positive ttl.
func New(client *redis.Client, prefix string, ttl time.Duration) *Leads {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Leads{client: client, prefix: prefix, ttl: ttl}
}

// Connect opens a client for addr and checks that the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return client, nil
}

// Seen reports whether a lead was recorded for this exact snapshot.
func (l *Leads) Seen(ctx context.Context, recordID, snapshot string) (bool, error) {
	stored, err := l.client.Get(ctx, l.key(recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}

	return stored == Hash(snapshot), nil
}

// Mark remembers the snapshot of a recorded lead for the configured ttl.
func (l *Leads) Mark(ctx context.Context, recordID, snapshot string) error {
	if err := l.client.Set(ctx, l.key(recordID), Hash(snapshot), l.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (l *Leads) key(recordID string) string {
	return fmt.Sprintf("%s:lead:%s", l.prefix, recordID)
}

// Hash returns the first 16 bytes of the snapshot's SHA-256 as hex.
func Hash(snapshot string) string {
	sum := sha256.Sum256([]byte(snapshot))
	return hex.EncodeToString(sum[:16])
}
