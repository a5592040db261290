package testsupport

import (
	"context"
	"testing"

	"agentsplatform/internal/adapters/redis"
)

// NewTestRedis connects to the test database and flushes it before and after the test.
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client, err := redis.NewClient(LoadRedisConfig(t))
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	ctx := context.Background()
	if err := client.Client().FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Client().FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}
