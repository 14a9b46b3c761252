package syncqueue

import (
	"time"

	"github.com/fuelsync/fuelsync/internal/remote"
)

// Kind distinguishes the remote write an operation replays.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Operation is a durable unit of deferred work. Every persisted
// operation is independently replayable: applying it twice must be
// safe, so a crash between "write succeeded" and "remove from queue"
// cannot corrupt data. Inserts rely on server-generated ids; updates
// and deletes are scoped by their where clause.
type Operation struct {
	// ID uniquely identifies the operation for logging and dedup.
	ID string `json:"id"`

	// Table names the logical remote collection targeted.
	Table string `json:"table"`

	Kind Kind `json:"kind"`

	// Payload carries column data for inserts and updates.
	Payload remote.Row `json:"payload,omitempty"`

	// Where identifies target rows. Required for updates and deletes.
	Where remote.Row `json:"where,omitempty"`

	// TempID is the client-generated id to reconcile once the insert
	// lands, if any.
	TempID string `json:"temp_id,omitempty"`

	// QueuedAt is the enqueue timestamp. Immutable.
	QueuedAt time.Time `json:"queued_at"`

	// RetryCount increments on each failed flush attempt. Never
	// decreases.
	RetryCount int `json:"retry_count"`
}

// Input is the caller-facing shape of an enqueue request. ID,
// QueuedAt, and RetryCount are assigned by the queue.
type Input struct {
	Table   string
	Kind    Kind
	Payload remote.Row
	Where   remote.Row
	TempID  string
}

// Result summarizes one flush pass.
type Result struct {
	// Flushed counts operations applied successfully and removed.
	Flushed int

	// Failed counts operations that failed and remain queued with an
	// incremented retry count.
	Failed int

	// Dropped counts operations discarded as stale or past the retry
	// cap. Dropped operations are never attempted again.
	Dropped int
}
