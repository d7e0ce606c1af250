package batch

import (
	"context"

	"github.com/backmassage/retempo/internal/ffmpeg"
	"github.com/backmassage/retempo/internal/naming"
)

// Detection summarizes what a run over a selection would do, without
// transforming or writing anything.
type Detection struct {
	Records        int   `json:"records"`
	WithAudio      int   `json:"with_audio"`
	WithoutAudio   int   `json:"without_audio"`
	Unreadable     int   `json:"unreadable"`
	References     int   `json:"references"`
	Pending        int   `json:"pending"`
	AlreadyAtSpeed int   `json:"already_at_speed"`
	Processed      int   `json:"processed"`
	Missing        int   `json:"missing"`
	Jobs           []Job `json:"jobs,omitempty"`
}

// Detect plans req and classifies every reference. Pending jobs are listed
// in Jobs with their resolved source and target.
func (c *Coordinator) Detect(ctx context.Context, req Request) (*Detection, error) {
	if err := naming.ValidateSpeed(req.Speed); err != nil {
		return nil, err
	}
	speed := naming.NormalizeSpeed(req.Speed)

	d := &Detection{Records: len(req.RecordIDs)}
	for _, id := range req.RecordIDs {
		p := planRecord(ctx, c.records, id, speed)
		switch {
		case p.err != nil:
			d.Unreadable++
			continue
		case len(p.jobs) == 0:
			d.WithoutAudio++
			continue
		}
		d.WithAudio++

		for _, j := range p.jobs {
			d.References++
			source, err := c.undo.Origin(ctx, j.RecordID, j.FieldID, j.Reference)
			if err != nil {
				return nil, err
			}
			j.Source = source
			j.Target = ffmpeg.OutputName(source, speed)

			if j.Target == j.Reference {
				d.AlreadyAtSpeed++
				continue
			}
			if req.SkipProcessed {
				done, err := c.undo.Processed(ctx, j.RecordID, j.FieldID, j.Reference, speed)
				if err != nil {
					return nil, err
				}
				if done {
					d.Processed++
					continue
				}
			}
			if !c.media.Exists(source) {
				d.Missing++
				continue
			}
			d.Pending++
			d.Jobs = append(d.Jobs, j)
		}
	}
	return d, nil
}
