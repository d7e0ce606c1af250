package batch

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/backmassage/retempo/internal/ffmpeg"
	"github.com/backmassage/retempo/internal/markup"
	"github.com/backmassage/retempo/internal/undo"
)

// runJob takes one job to a terminal status. ctx is already detached from
// cancellation by processRecord; the executor bounds each transform with
// its own per-file timeout.
func (c *Coordinator) runJob(ctx context.Context, runID string, skipProcessed bool, j Job) JobResult {
	res := JobResult{Job: j}

	source, err := c.undo.Origin(ctx, j.RecordID, j.FieldID, j.Reference)
	if err != nil {
		return fail(res, KindStoreReadFailed, err)
	}
	res.Source = source
	res.Target = ffmpeg.OutputName(source, j.Speed)

	if res.Target == j.Reference {
		res.Status = StatusSkipped
		res.Detail = "already at target speed"
		return res
	}
	if skipProcessed {
		done, err := c.undo.Processed(ctx, j.RecordID, j.FieldID, j.Reference, j.Speed)
		if err != nil {
			return fail(res, KindStoreReadFailed, err)
		}
		if done {
			res.Status = StatusSkipped
			res.Detail = "already processed at this speed"
			return res
		}
	}

	text, err := c.records.FieldText(ctx, j.RecordID, j.FieldID)
	if err != nil {
		return fail(res, KindStoreReadFailed, err)
	}
	if markup.Contains(text, res.Target) {
		return fail(res, KindRewriteConflict, errors.New("field already references "+res.Target))
	}

	if !c.media.Exists(source) {
		return fail(res, KindSourceMissing, errors.New(source+" is not in the media directory"))
	}

	start := time.Now()
	out, err := c.transformer.Transform(ctx, filepath.Join(c.media.Dir(), source), j.Speed)
	res.Took = time.Since(start)
	if err != nil {
		return fail(res, Kind(ffmpeg.KindOf(err)), err)
	}
	res.Output = out

	// Re-read: the field may have changed while the transform ran.
	text, err = c.records.FieldText(ctx, j.RecordID, j.FieldID)
	if err != nil {
		return fail(res, KindStoreReadFailed, err)
	}
	updated, n, err := markup.Rewrite(text, j.Reference, res.Target)
	if err != nil {
		return fail(res, KindRewriteConflict, err)
	}
	if n == 0 {
		res.Status = StatusSkipped
		res.Detail = "reference no longer present"
		return res
	}
	if err := c.records.SetFieldText(ctx, j.RecordID, j.FieldID, updated); err != nil {
		return fail(res, KindStoreWriteFailed, err)
	}

	_, err = c.undo.Append(ctx, undo.Entry{
		RunID:    runID,
		RecordID: j.RecordID,
		FieldID:  j.FieldID,
		Original: j.Reference,
		New:      res.Target,
		Speed:    j.Speed,
	})
	if err != nil {
		// The field is committed and the new file stays on disk for
		// inspection.
		return fail(res, KindUndoLogWriteFailed, err)
	}

	res.Status = StatusSucceeded
	return res
}

func fail(res JobResult, kind Kind, err error) JobResult {
	res.Status = StatusFailed
	res.Kind = kind
	if err != nil {
		res.Detail = err.Error()
	}
	return res
}
