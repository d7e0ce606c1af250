package batch

import (
	"context"
	"fmt"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/markup"
)

// recordPlan is the resolved job list of one record. err is set when the
// record could not be read.
type recordPlan struct {
	id   collection.RecordID
	jobs []Job
	err  error
}

// planRecord lists the record's fields and creates one job per distinct
// referenced filename per field, in field order.
func planRecord(ctx context.Context, records RecordStore, id collection.RecordID, speed float64) recordPlan {
	p := recordPlan{id: id}
	fields, err := records.Fields(ctx, id)
	if err != nil {
		p.err = fmt.Errorf("list fields: %w", err)
		return p
	}
	for _, f := range fields {
		text, err := records.FieldText(ctx, id, f)
		if err != nil {
			p.err = fmt.Errorf("read field %d: %w", f, err)
			return p
		}
		for _, name := range markup.Filenames(text) {
			p.jobs = append(p.jobs, Job{RecordID: id, FieldID: f, Reference: name, Speed: speed})
		}
	}
	return p
}

// jobCount is the number of counted units of a plan: its jobs, or one
// failure for an unreadable record.
func (p recordPlan) jobCount() int {
	if p.err != nil {
		return 1
	}
	return len(p.jobs)
}
