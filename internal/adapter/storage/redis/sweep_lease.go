package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SweepLease implements ports.SweepLease using Redis SET NX. Only one relay
// instance at a time wins the key, so concurrent deployments don't hammer
// the provider with duplicate sweep cycles. The lease expires on its own;
// there is no explicit release.
type SweepLease struct {
	client *goredis.Client
	key    string
}

// NewSweepLease creates a new Redis-backed sweep lease.
func NewSweepLease(client *goredis.Client) *SweepLease {
	return &SweepLease{
		client: client,
		key:    "sweep:lease",
	}
}

// Acquire returns true if this instance holds the lease for the next ttl.
func (l *SweepLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, another instance holds the lease
			return false, nil
		}
		return false, fmt.Errorf("redis sweep lease: %w", err)
	}
	return result == "OK", nil
}
