// Package queue is a redis-backed job queue with per-partition FIFO
// ordering. Each target identity gets its own pending list and a short
// lease, so two inbound messages from the same target can never be
// processed concurrently or out of order, while different identities drain
// in parallel across workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job kinds.
const (
	KindInitiate = "initiate"
	KindInbound  = "inbound"
	KindScan     = "scan"
)

// Job is one unit of background work. Partition is the serialization key:
// jobs sharing a partition run strictly in enqueue order.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Partition  string          `json:"partition"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// NewJob creates a Job with the payload marshalled and an id assigned.
func NewJob(kind, partition string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("queue: marshal payload: %w", err)
	}
	return Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Partition:  partition,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

const (
	readyKey     = "queue:ready"
	scheduledKey = "queue:scheduled"
	leaseTTL     = 2 * time.Minute
)

func pendingKey(partition string) string { return "queue:pending:" + partition }
func leaseKey(partition string) string   { return "queue:lease:" + partition }

// Queue wraps a redis client with the partitioned-queue operations.
type Queue struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// New creates a Queue.
func New(rdb redis.UniversalClient) (*Queue, error) {
	if rdb == nil {
		return nil, errors.New("queue: redis client must not be nil")
	}
	return &Queue{rdb: rdb, now: time.Now}, nil
}

// Enqueue appends a job to its partition's pending list and marks the
// partition ready.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	pipe := q.rdb.TxPipeline()
	pipe.RPush(ctx, pendingKey(job.Partition), raw)
	pipe.SAdd(ctx, readyKey, job.Partition)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// EnqueueAfter schedules a job to become pending once delay has elapsed.
// Used for the staggered initiations of a bulk scan.
func (q *Queue) EnqueueAfter(ctx context.Context, job Job, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, job)
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	due := float64(q.now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, scheduledKey, redis.Z{Score: due, Member: raw}).Err(); err != nil {
		return fmt.Errorf("queue: schedule: %w", err)
	}
	return nil
}

// PromoteDue moves scheduled jobs whose time has come onto their pending
// lists. Called from the worker tick.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	nowMilli := fmt.Sprintf("%d", q.now().UnixMilli())
	members, err := q.rdb.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{Min: "-inf", Max: nowMilli}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: read scheduled jobs: %w", err)
	}
	promoted := 0
	for _, member := range members {
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			// Poisoned entry; drop it rather than stall the schedule.
			_ = q.rdb.ZRem(ctx, scheduledKey, member).Err()
			continue
		}
		if err := q.Enqueue(ctx, job); err != nil {
			return promoted, err
		}
		if err := q.rdb.ZRem(ctx, scheduledKey, member).Err(); err != nil {
			return promoted, fmt.Errorf("queue: remove promoted job: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// ReadyPartitions lists partitions that may have pending jobs.
func (q *Queue) ReadyPartitions(ctx context.Context) ([]string, error) {
	partitions, err := q.rdb.SMembers(ctx, readyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list ready partitions: %w", err)
	}
	return partitions, nil
}

// Lease tries to take the partition's exclusive processing lease. On
// success it returns a release func; on contention it returns ok=false and
// the caller moves on to another partition.
func (q *Queue) Lease(ctx context.Context, partition string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := q.rdb.SetNX(ctx, leaseKey(partition), token, leaseTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("queue: acquire lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Only the holder's token releases; an expired-and-reacquired lease
		// is left alone.
		releaseScript.Run(context.Background(), q.rdb, []string{leaseKey(partition)}, token)
	}
	return release, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// popScript pops the oldest pending job or, when the list is empty, clears
// the partition's ready flag in the same atomic step. The empty check and
// the flag removal must not be separate commands: an Enqueue landing
// between them would leave its job pending with no ready-set entry.
var popScript = redis.NewScript(`
local raw = redis.call("lpop", KEYS[1])
if raw then
	return raw
end
redis.call("srem", KEYS[2], ARGV[1])
return false
`)

// Pop removes and returns the oldest pending job of a partition. The
// caller must hold the partition lease. When the partition empties, it is
// removed from the ready set.
func (q *Queue) Pop(ctx context.Context, partition string) (*Job, error) {
	raw, err := popScript.Run(ctx, q.rdb, []string{pendingKey(partition), readyKey}, partition).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: pop: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return &job, nil
}
