// Package taskqueue serializes background indexing work per tenant: a FIFO
// waiting list plus a TTL-guarded running flag ensure at most one active
// batch per (tenant, task kind) while a backlog still drains in order.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"corpus/internal/redisx"
)

// Task is the descriptor held on a tenant's waiting list.
type Task struct {
	TenantID    string   `json:"tenant_id"`
	DatasetID   string   `json:"dataset_id"`
	DocumentIDs []string `json:"document_ids"`
}

// TenantIsolatedTaskQueue is scoped to one (tenant, task kind) pair. Two
// different tenants or kinds never share keys.
type TenantIsolatedTaskQueue struct {
	redis    redisx.Client
	tenantID string
	taskKind string
	taskTTL  time.Duration
}

func New(rdb redisx.Client, tenantID, taskKind string, taskTTL time.Duration) *TenantIsolatedTaskQueue {
	return &TenantIsolatedTaskQueue{
		redis:    rdb,
		tenantID: tenantID,
		taskKind: taskKind,
		taskTTL:  taskTTL,
	}
}

// QueueKey is the waiting-list key for this tenant and kind.
func (q *TenantIsolatedTaskQueue) QueueKey() string {
	return fmt.Sprintf("tenant_isolated_task_queue:%s:%s:waiting", q.tenantID, q.taskKind)
}

// TaskKey is the running-flag key for this tenant and kind.
func (q *TenantIsolatedTaskQueue) TaskKey() string {
	return fmt.Sprintf("tenant_isolated_task_queue:%s:%s:running", q.tenantID, q.taskKind)
}

// Push appends a task descriptor to the tail of the waiting list.
func (q *TenantIsolatedTaskQueue) Push(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal queued task: %w", err)
	}
	if err := q.redis.LPush(ctx, q.QueueKey(), string(raw)); err != nil {
		return fmt.Errorf("push task for tenant %s: %w", q.tenantID, err)
	}
	return nil
}

// PullTasks pops up to maxCount tasks from the head of the waiting list in
// original insertion order. It never pops more than requested; the caller
// enforces its concurrency ceiling through maxCount.
func (q *TenantIsolatedTaskQueue) PullTasks(ctx context.Context, maxCount int) ([]Task, error) {
	var pulled []Task
	for i := 0; i < maxCount; i++ {
		raw, ok, err := q.redis.RPop(ctx, q.QueueKey())
		if err != nil {
			return pulled, fmt.Errorf("pull task for tenant %s: %w", q.tenantID, err)
		}
		if !ok {
			break
		}
		var task Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			return pulled, fmt.Errorf("decode queued task: %w", err)
		}
		pulled = append(pulled, task)
	}
	return pulled, nil
}

// IsTaskRunning reports whether a batch is currently marked running for this
// tenant. The check-then-act sequence around this flag is not atomic: two
// dispatches racing through the unset window both execute immediately, and
// the queue corrects itself on the next completion. Accepted trade-off.
func (q *TenantIsolatedTaskQueue) IsTaskRunning(ctx context.Context) (bool, error) {
	_, ok, err := q.redis.Get(ctx, q.TaskKey())
	if err != nil {
		return false, fmt.Errorf("read running flag for tenant %s: %w", q.tenantID, err)
	}
	return ok, nil
}

// SetTaskWaitingTime refreshes the running flag and its TTL. Called once per
// dispatched task so the flag cannot expire while a batch is in flight.
func (q *TenantIsolatedTaskQueue) SetTaskWaitingTime(ctx context.Context) error {
	if err := q.redis.SetEx(ctx, q.TaskKey(), "1", q.taskTTL); err != nil {
		return fmt.Errorf("set running flag for tenant %s: %w", q.tenantID, err)
	}
	return nil
}

// DeleteTaskKey clears the running flag so the next submission for this
// tenant executes immediately instead of queueing.
func (q *TenantIsolatedTaskQueue) DeleteTaskKey(ctx context.Context) error {
	if err := q.redis.Del(ctx, q.TaskKey()); err != nil {
		return fmt.Errorf("delete running flag for tenant %s: %w", q.tenantID, err)
	}
	return nil
}
