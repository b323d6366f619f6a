package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/redis/go-redis/v9"
)

// popReadyScript removes and returns the lowest-scored member whose score is
// at most ARGV[1]. Running it as a script keeps the read and the removal atomic
// across dispatcher instances.
var popReadyScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #items == 0 then
  return false
end
redis.call('ZREM', KEYS[1], items[1])
return items[1]
`)

// RedisJobStore is a durable JobStore on a Redis sorted set scored by the
// ready time in milliseconds.
type RedisJobStore struct {
	client   redis.UniversalClient
	key      string
	capacity int
}

// NewRedisJobStore creates a store under key "wmssync:queue:<name>".
// A capacity of zero or less means unbounded.
func NewRedisJobStore(client redis.UniversalClient, name string, capacity int) *RedisJobStore {
	return &RedisJobStore{
		client:   client,
		key:      "wmssync:queue:" + name,
		capacity: capacity,
	}
}

// Push implements JobStore
func (s *RedisJobStore) Push(ctx context.Context, job *wms.SyncJob) error {
	if s.capacity > 0 {
		n, err := s.client.ZCard(ctx, s.key).Result()
		if err != nil {
			return fmt.Errorf("queue length: %w", err)
		}
		if n >= int64(s.capacity) {
			return ErrJobQueueFull
		}
	}
	return s.add(ctx, job)
}

// Requeue implements JobStore
func (s *RedisJobStore) Requeue(ctx context.Context, job *wms.SyncJob) error {
	return s.add(ctx, job)
}

func (s *RedisJobStore) add(ctx context.Context, job *wms.SyncJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	err = s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(readyAt(job).UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

// PopReady implements JobStore
func (s *RedisJobStore) PopReady(ctx context.Context, now time.Time) (*wms.SyncJob, error) {
	res, err := popReadyScript.Run(ctx, s.client, []string{s.key}, strconv.FormatInt(now.UnixMilli(), 10)).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop job: %w", err)
	}
	var job wms.SyncJob
	if err := json.Unmarshal([]byte(res), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Len implements JobStore
func (s *RedisJobStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return int(n), nil
}
