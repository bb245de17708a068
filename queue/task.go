package queue

import (
	"time"

	"github.com/SIGTERM-015/dnsfik/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// MaxAttempts is how often a task is tried before it is given up
const MaxAttempts = 3

// Kind is the mutation a task applies at the provider
type Kind string

const (
	KindCreate Kind = "CREATE"
	KindUpdate Kind = "UPDATE"
)

// Status tracks where a task is in its lifecycle
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Payload is the record a task writes and where it came from
type Payload struct {
	// RecordID is the provider id of the record, set for updates and filled in after a create
	RecordID string       `json:"recordId,omitempty"`
	Record   types.Record `json:"record"`
	// Entity is the name of the container the record was derived from
	Entity string `json:"entity"`
}

// Task is a single pending mutation
type Task struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	LastError   string    `json:"lastError,omitempty"`
	NotBefore   time.Time `json:"notBefore"`
	Payload     Payload   `json:"payload"`

	// seq orders tasks by the time they were (re)queued
	seq     uint64
	backoff backoff.BackOff
}

// NewCreateTask returns a task creating record at the provider
func NewCreateTask(entity string, record types.Record) *Task {
	return newTask(KindCreate, Payload{Record: record, Entity: entity})
}

// NewUpdateTask returns a task overwriting the provider record recordID with record
func NewUpdateTask(entity string, recordID string, record types.Record) *Task {
	return newTask(KindUpdate, Payload{RecordID: recordID, Record: record, Entity: entity})
}

func newTask(kind Kind, payload Payload) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      StatusPending,
		MaxAttempts: MaxAttempts,
		Payload:     payload,
	}
}
