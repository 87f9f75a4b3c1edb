package availability

import (
	"time"

	"github.com/redis/go-redis/v9"

	redisclient "github.com/hackgods/clinic-queue/internal/redis"
	"github.com/hackgods/clinic-queue/internal/store"
)

var (
	_ Repository    = (*store.Store)(nil)
	_ SnapshotCache = (*redisclient.JSONCache[DaySnapshot])(nil)
)

// NewRedisSnapshotCache stores snapshots under availability:<doctor>:<date>.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *redisclient.JSONCache[DaySnapshot] {
	return redisclient.NewJSONCache[DaySnapshot](client, "availability", ttl)
}
