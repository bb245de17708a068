// Package queue serializes the mutations sent to the DNS provider.
//
// Tasks are kept in memory only. Draining is strictly sequential and FIFO; a failed
// task goes back to the tail of the queue until it has been tried MaxAttempts times,
// after which it is dropped with an error log. Callers are never notified.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SIGTERM-015/dnsfik/types"
	"github.com/cenkalti/backoff/v5"
	memdb "github.com/hashicorp/go-memdb"
	"go.uber.org/zap"
)

const (
	tableName = "tasks"
	// maxRetryDelay caps the exponential retry policy
	maxRetryDelay = 10 * time.Minute
)

// Applier writes records to the DNS provider
type Applier interface {
	Create(ctx context.Context, record types.Record) (string, error)
	Update(ctx context.Context, id string, record types.Record) error
}

// Config controls the retry behaviour of the queue
type Config struct {
	// RetryDelay is the time a failed task waits before it is eligible again.
	// With Exponential it is the first delay, doubling after every failure.
	RetryDelay  time.Duration
	Exponential bool
	// Timeout bounds a single provider call
	Timeout time.Duration
}

// Queue is an in-memory FIFO of reconciliation tasks
type Queue struct {
	db      *memdb.MemDB
	applier Applier
	config  Config
	logger  *zap.SugaredLogger
	seq     atomic.Uint64
	drainMu sync.Mutex
	now     func() time.Time
}

// NewQueue returns an empty Queue applying tasks with applier
func NewQueue(applier Applier, config Config, logger *zap.SugaredLogger) (*Queue, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableName: {
				Name: tableName,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.UUIDFieldIndex{Field: "ID"},
					},
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Queue{
		db:      db,
		applier: applier,
		config:  config,
		logger:  logger.Named("queue"),
		now:     time.Now,
	}, nil
}

// Enqueue appends a task to the tail of the queue
func (q *Queue) Enqueue(task *Task) error {
	queued := *task
	queued.Status = StatusPending
	if queued.MaxAttempts <= 0 {
		queued.MaxAttempts = MaxAttempts
	}
	queued.seq = q.seq.Add(1)
	queued.backoff = q.newBackOff()

	if err := q.put(&queued); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	q.logger.Debugw("Enqueued task", "task", queued.ID, "kind", queued.Kind, "payload", queued.Payload)
	return nil
}

// Len returns the number of tasks waiting in the queue
func (q *Queue) Len() int {
	return len(q.Tasks())
}

// Tasks returns a copy of the queued tasks in processing order
func (q *Queue) Tasks() []*Task {
	txn := q.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.Get(tableName, "id")
	if err != nil {
		q.logger.Errorw("Failed to list tasks", "err", err)
		return nil
	}
	tasks := []*Task{}
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		task := *raw.(*Task)
		tasks = append(tasks, &task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].seq < tasks[j].seq })
	return tasks
}

// CountByStatus returns how many queued tasks are in the given status
func (q *Queue) CountByStatus(status Status) int {
	txn := q.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.Get(tableName, "status", string(status))
	if err != nil {
		return 0
	}
	count := 0
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		count++
	}
	return count
}

// Drain processes every task queued when it is called, one at a time.
// Tasks requeued after a failure or still waiting for their retry delay are left for the next pass.
// A cancelled context abandons the rest of the pass.
func (q *Queue) Drain(ctx context.Context) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	for _, task := range q.Tasks() {
		if ctx.Err() != nil {
			q.logger.Infow("Abandoning drain", "remaining", q.Len())
			return
		}
		if task.NotBefore.After(q.now()) {
			continue
		}
		q.process(ctx, task)
	}
}

// Run drains the queue every interval until ctx is cancelled
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Infow("Stopped queue worker", "remaining", q.Len())
			return
		case <-ticker.C:
			q.Drain(ctx)
		}
	}
}

func (q *Queue) process(ctx context.Context, task *Task) {
	task.Status = StatusInProgress
	if err := q.put(task); err != nil {
		q.logger.Errorw("Failed to mark task in progress", "task", task.ID, "err", err)
		return
	}

	err := q.apply(ctx, task)
	if err == nil {
		task.Status = StatusCompleted
		q.remove(task)
		q.logger.Infow("Applied task", "task", task.ID, "kind", task.Kind, "payload", task.Payload, "attempts", task.Attempts+1)
		return
	}

	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= task.MaxAttempts {
		task.Status = StatusFailed
		q.remove(task)
		q.logger.Errorw("Giving up on task", "task", task.ID, "kind", task.Kind, "payload", task.Payload, "attempts", task.Attempts, "err", err)
		return
	}

	task.Status = StatusPending
	task.seq = q.seq.Add(1)
	task.NotBefore = q.now().Add(task.backoff.NextBackOff())
	if err := q.put(task); err != nil {
		q.logger.Errorw("Failed to requeue task", "task", task.ID, "payload", task.Payload, "err", err)
		return
	}
	q.logger.Warnw("Task failed, will retry", "task", task.ID, "kind", task.Kind, "attempts", task.Attempts, "notBefore", task.NotBefore, "err", err)
}

func (q *Queue) apply(ctx context.Context, task *Task) error {
	if q.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.config.Timeout)
		defer cancel()
	}

	switch task.Kind {
	case KindCreate:
		id, err := q.applier.Create(ctx, task.Payload.Record)
		if err != nil {
			return err
		}
		task.Payload.RecordID = id
		return nil
	case KindUpdate:
		if task.Payload.RecordID == "" {
			return errors.New("update task without record id")
		}
		return q.applier.Update(ctx, task.Payload.RecordID, task.Payload.Record)
	default:
		return fmt.Errorf("unknown task kind `%s`", task.Kind)
	}
}

func (q *Queue) newBackOff() backoff.BackOff {
	if !q.config.Exponential {
		return backoff.NewConstantBackOff(q.config.RetryDelay)
	}
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = q.config.RetryDelay
	exponential.Multiplier = 2
	exponential.RandomizationFactor = 0
	exponential.MaxInterval = maxRetryDelay
	exponential.Reset()
	return exponential
}

func (q *Queue) put(task *Task) error {
	txn := q.db.Txn(true)
	defer txn.Abort()

	stored := *task
	if err := txn.Insert(tableName, &stored); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (q *Queue) remove(task *Task) {
	txn := q.db.Txn(true)
	defer txn.Abort()

	if err := txn.Delete(tableName, task); err != nil {
		q.logger.Errorw("Failed to remove task", "task", task.ID, "err", err)
		return
	}
	txn.Commit()
}
