package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/logging"
	"github.com/backmassage/retempo/internal/media"
	"github.com/backmassage/retempo/internal/metrics"
	"github.com/backmassage/retempo/internal/naming"
	"github.com/backmassage/retempo/internal/undo"
)

// ErrRunning is returned when Run is called while a run is in progress.
var ErrRunning = errors.New("batch already running")

// Transformer re-encodes one file; *ffmpeg.Executor implements it.
type Transformer interface {
	Transform(ctx context.Context, inputPath string, speed float64) (string, error)
}

// preflighter is implemented by transformers that can check their
// executable up front.
type preflighter interface {
	Preflight() error
}

// RecordStore is the record store contract the coordinator consumes.
type RecordStore interface {
	Fields(ctx context.Context, id collection.RecordID) ([]collection.FieldID, error)
	FieldText(ctx context.Context, id collection.RecordID, field collection.FieldID) (string, error)
	SetFieldText(ctx context.Context, id collection.RecordID, field collection.FieldID, text string) error
}

// UndoLog is the part of *undo.Log the coordinator uses.
type UndoLog interface {
	Append(ctx context.Context, e undo.Entry) (undo.Entry, error)
	Processed(ctx context.Context, id collection.RecordID, field collection.FieldID, filename string, speed float64) (bool, error)
	Origin(ctx context.Context, id collection.RecordID, field collection.FieldID, filename string) (string, error)
}

// Options configure a Coordinator. Logger and Metrics may be nil.
type Options struct {
	Transformer Transformer
	Records     RecordStore
	Undo        UndoLog
	Media       media.Store
	Workers     int
	Logger      *logging.Logger
	Metrics     *metrics.Recorder
}

// Coordinator runs batches. Only one run may be active at a time.
type Coordinator struct {
	transformer Transformer
	records     RecordStore
	undo        UndoLog
	media       media.Store
	workers     int
	logger      *logging.Logger
	metrics     *metrics.Recorder
	newRunID    func() string

	mu    sync.Mutex
	state State
}

// New returns an idle Coordinator.
func New(opts Options) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Coordinator{
		transformer: opts.Transformer,
		records:     opts.Records,
		undo:        opts.Undo,
		media:       opts.Media,
		workers:     opts.Workers,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		newRunID:    uuid.NewString,
		state:       StateIdle,
	}
}

// State returns the state of the current or last run.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// run holds the mutable aggregate of one batch.
type run struct {
	mu       sync.Mutex
	outcome  *Outcome
	done     int
	total    int
	progress func(Progress)
}

// Run processes req.RecordIDs in order. The returned error is non-nil only
// when the run was refused (invalid speed, already running, executable
// missing); per-job failures are reported in the Outcome. progress may be
// nil; it is called serially.
func (c *Coordinator) Run(ctx context.Context, req Request, progress func(Progress)) (*Outcome, error) {
	if err := naming.ValidateSpeed(req.Speed); err != nil {
		return nil, err
	}
	speed := naming.NormalizeSpeed(req.Speed)

	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return nil, ErrRunning
	}
	c.state = StateRunning
	c.mu.Unlock()

	started := time.Now()
	out := &Outcome{
		RunID:     c.newRunID(),
		State:     StateRunning,
		Speed:     speed,
		Records:   make([]RecordResult, len(req.RecordIDs)),
		StartedAt: started,
	}
	log := c.logger.With("run_id", out.RunID)

	if naming.NeedsQualityWarning(speed) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("speed %sx is above %sx; audio quality may degrade",
			naming.FormatSpeed(speed), naming.FormatSpeed(naming.QualityWarnSpeed)))
	}

	if p, ok := c.transformer.(preflighter); ok {
		if err := p.Preflight(); err != nil {
			out.State = StateFailed
			out.Error = err.Error()
			for i, id := range req.RecordIDs {
				out.Records[i] = RecordResult{RecordID: id, Status: StatusRemaining}
			}
			c.finish(out, log)
			return out, err
		}
	}

	plans := make([]recordPlan, len(req.RecordIDs))
	for i, id := range req.RecordIDs {
		plans[i] = planRecord(ctx, c.records, id, speed)
		out.Counts.Remaining += plans[i].jobCount()
		out.Records[i] = RecordResult{RecordID: id, Status: StatusRemaining}
	}
	log.Info("Batch: %d records, %d references, speed %sx, workers %d",
		len(plans), out.Counts.Remaining, naming.FormatSpeed(speed), c.workers)

	r := &run{outcome: out, total: len(plans), progress: progress}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range plans {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			// A started record runs to the end; cancellation is only
			// observed between records.
			res := c.processRecord(context.WithoutCancel(ctx), out.RunID, req.SkipProcessed, plans[i], log)
			r.record(i, res, c.metrics)
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case r.done < r.total:
		out.State = StateCancelled
		log.Warn("Interrupted: %d of %d records not processed", r.total-r.done, r.total)
	case ctx.Err() != nil:
		out.State = StateCancelled
		log.Warn("Interrupted while finishing the last record; all %d records processed", r.total)
	default:
		out.State = StateCompleted
	}
	c.finish(out, log)
	return out, nil
}

// processRecord runs the jobs of one record sequentially.
func (c *Coordinator) processRecord(ctx context.Context, runID string, skipProcessed bool, p recordPlan, log *logging.Logger) RecordResult {
	rr := RecordResult{RecordID: p.id}
	if p.err != nil {
		rr.Status = StatusFailed
		rr.Kind = KindStoreReadFailed
		rr.Jobs = []JobResult{fail(JobResult{Job: Job{RecordID: p.id}}, KindStoreReadFailed, p.err)}
		log.Error("Record %d: %v", p.id, p.err)
		return rr
	}
	if len(p.jobs) == 0 {
		rr.Status = StatusNoMedia
		rr.Kind = KindNoReferencesFound
		log.Debug("Record %d: no sound references", p.id)
		return rr
	}

	for _, j := range p.jobs {
		res := c.runJob(ctx, runID, skipProcessed, j)
		switch res.Status {
		case StatusSucceeded:
			log.Success("Record %d: %s -> %s", p.id, res.Reference, res.Target)
		case StatusSkipped:
			log.Info("Record %d: skip %s (%s)", p.id, res.Reference, res.Detail)
		case StatusFailed:
			log.Error("Record %d: %s failed: %s", p.id, res.Reference, res.Detail)
		}
		rr.Jobs = append(rr.Jobs, res)
	}
	rr.Status, rr.Kind = summarize(rr.Jobs)
	return rr
}

// summarize derives a record status: failed if any job failed, succeeded
// if any job succeeded, skipped otherwise.
func summarize(jobs []JobResult) (Status, Kind) {
	status := StatusSkipped
	for _, j := range jobs {
		switch j.Status {
		case StatusFailed:
			return StatusFailed, j.Kind
		case StatusSucceeded:
			status = StatusSucceeded
		}
	}
	return status, ""
}

// record folds one record result into the outcome and reports progress.
func (r *run) record(i int, rr RecordResult, m *metrics.Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.outcome
	o.Records[i] = rr
	if len(rr.Jobs) > 0 {
		o.Counts.Remaining -= len(rr.Jobs)
	}
	for _, j := range rr.Jobs {
		switch j.Status {
		case StatusSucceeded:
			o.Counts.Succeeded++
		case StatusSkipped:
			o.Counts.Skipped++
		case StatusFailed:
			o.Counts.Failed++
			o.Failures = append(o.Failures, Failure{
				RecordID: j.RecordID,
				FieldID:  j.FieldID,
				Filename: j.Reference,
				Kind:     j.Kind,
				Detail:   j.Detail,
			})
		}
		m.ObserveJob(string(j.Status), string(j.Kind), j.Took)
	}
	r.done++

	if r.progress != nil {
		r.progress(Progress{
			RunID:    o.RunID,
			RecordID: rr.RecordID,
			Status:   rr.Status,
			Done:     r.done,
			Total:    r.total,
			Counts:   o.Counts,
		})
	}
}

func (c *Coordinator) finish(out *Outcome, log *logging.Logger) {
	out.FinishedAt = time.Now()
	c.metrics.ObserveRun(string(out.State), metrics.RunCounts{
		Succeeded: out.Counts.Succeeded,
		Skipped:   out.Counts.Skipped,
		Failed:    out.Counts.Failed,
		Remaining: out.Counts.Remaining,
	}, out.FinishedAt.Sub(out.StartedAt), out.FinishedAt)
	c.setState(out.State)

	log.Info("Done (%s): %d succeeded, %d skipped, %d failed, %d remaining",
		out.State, out.Counts.Succeeded, out.Counts.Skipped, out.Counts.Failed, out.Counts.Remaining)
	for _, w := range out.Warnings {
		log.Warn("%s", w)
	}
	for _, f := range out.Failures {
		log.Error("  record %d field %d %s: %s", f.RecordID, f.FieldID, f.Filename, f.Kind)
	}
}
