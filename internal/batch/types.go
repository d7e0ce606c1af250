// Package batch drives a speed change over a selection of records: it
// resolves each record's media references into jobs, transforms the media,
// rewrites the references, commits the fields and appends undo entries.
// A failing job never aborts the batch; cancellation is honored between
// records.
package batch

import (
	"time"

	"github.com/backmassage/retempo/internal/collection"
)

// Kind classifies a job failure.
type Kind string

const (
	KindExecutableNotFound Kind = "ExecutableNotFound"
	KindUnsupportedFormat  Kind = "UnsupportedFormat"
	KindSourceMissing      Kind = "SourceMissing"
	KindEncodeFailed       Kind = "EncodeFailed"
	KindNoReferencesFound  Kind = "NoReferencesFound"
	KindStoreReadFailed    Kind = "StoreReadFailed"
	KindStoreWriteFailed   Kind = "StoreWriteFailed"
	KindUndoLogWriteFailed Kind = "UndoLogWriteFailed"
	KindRewriteConflict    Kind = "RewriteConflict"
)

// State is the batch run state machine: idle, running, then one terminal
// state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Status is the terminal status of a job or record.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	// StatusNoMedia marks a record without any sound reference.
	StatusNoMedia Status = "no_media"
	// StatusRemaining marks a record left unvisited by a cancelled run.
	StatusRemaining Status = "remaining"
)

// Request is the input of one batch run.
type Request struct {
	RecordIDs     []collection.RecordID
	Speed         float64
	SkipProcessed bool
}

// Job transforms one referenced file of one field. Source is the file the
// transform reads: the root original when Reference was produced by an
// earlier run.
type Job struct {
	RecordID  collection.RecordID `json:"record_id"`
	FieldID   collection.FieldID  `json:"field_id"`
	Reference string              `json:"reference"`
	Source    string              `json:"source,omitempty"`
	Target    string              `json:"target,omitempty"`
	Speed     float64             `json:"speed"`
}

// JobResult is the terminal state of one job.
type JobResult struct {
	Job
	Status Status        `json:"status"`
	Kind   Kind          `json:"kind,omitempty"`
	Detail string        `json:"detail,omitempty"`
	Output string        `json:"output,omitempty"`
	Took   time.Duration `json:"took_ns,omitempty"`
}

// RecordResult groups the jobs of one record.
type RecordResult struct {
	RecordID collection.RecordID `json:"record_id"`
	Status   Status              `json:"status"`
	Kind     Kind                `json:"kind,omitempty"`
	Jobs     []JobResult         `json:"jobs,omitempty"`
}

// Counts are running job totals. Remaining counts planned jobs not yet
// attempted.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Failure identifies one failed job in the summary.
type Failure struct {
	RecordID collection.RecordID `json:"record_id"`
	FieldID  collection.FieldID  `json:"field_id"`
	Filename string              `json:"filename,omitempty"`
	Kind     Kind                `json:"kind"`
	Detail   string              `json:"detail,omitempty"`
}

// Progress is reported after each record reaches a terminal status.
// Counts never decrease during a run.
type Progress struct {
	RunID    string              `json:"run_id"`
	RecordID collection.RecordID `json:"record_id"`
	Status   Status              `json:"status"`
	Done     int                 `json:"done"`
	Total    int                 `json:"total"`
	Counts   Counts              `json:"counts"`
}

// Outcome is the structured result of a run.
type Outcome struct {
	RunID      string         `json:"run_id"`
	State      State          `json:"state"`
	Speed      float64        `json:"speed"`
	Counts     Counts         `json:"counts"`
	Records    []RecordResult `json:"records"`
	Failures   []Failure      `json:"failures,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// OK reports whether the run completed without a failed job.
func (o *Outcome) OK() bool {
	return o.State == StateCompleted && o.Counts.Failed == 0
}
