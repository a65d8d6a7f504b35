package observability

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Checker is implemented by every dependency the readiness probe verifies.
// Implementations must be safe for concurrent use and must respect the
// context deadline.
type Checker interface {
	// Name identifies the component ("postgres", "redis", ...).
	Name() string
	// Check returns nil when the dependency is reachable.
	Check(ctx context.Context) error
}

// pingChecker wraps a ping function as a Checker.
type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (c pingChecker) Name() string                    { return c.name }
func (c pingChecker) Check(ctx context.Context) error { return c.ping(ctx) }

// NewPostgresChecker reports the health of the database pool.
func NewPostgresChecker(pool *pgxpool.Pool) Checker {
	return pingChecker{name: "postgres", ping: pool.Ping}
}

// NewRedisChecker reports the health of the Redis connection.
func NewRedisChecker(client *redis.Client) Checker {
	return pingChecker{
		name: "redis",
		ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
