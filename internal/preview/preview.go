// Package preview transcodes a few sample references into a scratch
// directory so a speed can be auditioned before a batch run. It reads
// records but never writes them, never writes the media directory and never
// touches the undo log.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/ffmpeg"
	"github.com/backmassage/retempo/internal/logging"
	"github.com/backmassage/retempo/internal/markup"
	"github.com/backmassage/retempo/internal/media"
	"github.com/backmassage/retempo/internal/naming"
	"github.com/backmassage/retempo/internal/probe"
)

// DefaultCount is the number of references previewed when Options.Count is
// not set.
const DefaultCount = 3

// ErrScratchIsMedia is returned when the scratch directory resolves to the
// media directory.
var ErrScratchIsMedia = errors.New("preview scratch directory must differ from the media directory")

// RecordStore is the read-only part of the record store a preview needs.
type RecordStore interface {
	Fields(ctx context.Context, id collection.RecordID) ([]collection.FieldID, error)
	FieldText(ctx context.Context, id collection.RecordID, field collection.FieldID) (string, error)
}

// Options configure a Service. FFprobe is looked up on PATH when empty;
// durations are omitted when it cannot be found.
type Options struct {
	Records    RecordStore
	Media      *media.Dir
	FFmpeg     string
	FFprobe    string
	Timeout    time.Duration
	ScratchDir string
	Count      int
	Logger     *logging.Logger
}

// Pair is one previewed reference.
type Pair struct {
	Reference        string              `json:"reference"`
	RecordID         collection.RecordID `json:"record_id"`
	Original         string              `json:"original"`
	Preview          string              `json:"preview,omitempty"`
	OriginalSize     int64               `json:"original_size"`
	PreviewSize      int64               `json:"preview_size,omitempty"`
	OriginalDuration time.Duration       `json:"original_duration_ns,omitempty"`
	PreviewDuration  time.Duration       `json:"preview_duration_ns,omitempty"`
	Err              error               `json:"-"`
	Error            string              `json:"error,omitempty"`
}

// Service produces previews. Call Cleanup when done.
type Service struct {
	records RecordStore
	media   *media.Dir
	scratch *media.Dir
	owned   bool
	exec    *ffmpeg.Executor
	ffprobe string
	count   int
	logger  *logging.Logger
	created []string
}

// New prepares the scratch directory: opts.ScratchDir when set (created if
// missing), otherwise a fresh temp directory owned by the Service.
func New(opts Options) (*Service, error) {
	if opts.Records == nil || opts.Media == nil {
		return nil, errors.New("preview: records and media are required")
	}
	if opts.Count < 1 {
		opts.Count = DefaultCount
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	dir, owned := opts.ScratchDir, false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "retempo-preview-*")
		if err != nil {
			return nil, fmt.Errorf("preview scratch: %w", err)
		}
		dir, owned = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("preview scratch: %w", err)
	}

	scratch, err := media.Open(dir)
	if err != nil {
		return nil, err
	}
	if sameDir(scratch.Dir(), opts.Media.Dir()) {
		return nil, fmt.Errorf("%w: %s", ErrScratchIsMedia, scratch.Dir())
	}

	ffprobe := opts.FFprobe
	if ffprobe == "" {
		if p, err := exec.LookPath("ffprobe"); err == nil {
			ffprobe = p
		}
	}

	return &Service{
		records: opts.Records,
		media:   opts.Media,
		scratch: scratch,
		owned:   owned,
		exec:    ffmpeg.New(ffmpeg.Options{Binary: opts.FFmpeg, Dest: scratch, Timeout: opts.Timeout}),
		ffprobe: ffprobe,
		count:   opts.Count,
		logger:  opts.Logger,
	}, nil
}

// ScratchDir returns the directory previews are written to.
func (s *Service) ScratchDir() string { return s.scratch.Dir() }

// Preview transcodes the first distinct references found in ids, in record
// and field order. Per-reference failures are reported on the Pair; the
// returned error is set only when the preview cannot start.
func (s *Service) Preview(ctx context.Context, ids []collection.RecordID, speed float64) ([]Pair, error) {
	if err := naming.ValidateSpeed(speed); err != nil {
		return nil, err
	}
	speed = naming.NormalizeSpeed(speed)

	if err := s.exec.Preflight(); err != nil {
		return nil, err
	}

	refs, err := s.sample(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		s.logger.Warn("No sound references in the %d selected records", len(ids))
		return nil, nil
	}

	pairs := make([]Pair, 0, len(refs))
	for _, r := range refs {
		if ctx.Err() != nil {
			break
		}
		p := s.previewOne(ctx, r, speed)
		if p.Err != nil {
			p.Error = p.Err.Error()
			s.logger.Error("Preview %s: %v", p.Reference, p.Err)
		} else {
			s.logger.Success("Preview %s -> %s", p.Reference, p.Preview)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

type sampleRef struct {
	record collection.RecordID
	name   string
}

// sample collects up to count distinct references.
func (s *Service) sample(ctx context.Context, ids []collection.RecordID) ([]sampleRef, error) {
	seen := make(map[string]bool)
	var refs []sampleRef
	for _, id := range ids {
		fields, err := s.records.Fields(ctx, id)
		if err != nil {
			if errors.Is(err, collection.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		for _, f := range fields {
			text, err := s.records.FieldText(ctx, id, f)
			if err != nil {
				return nil, err
			}
			for _, name := range markup.Filenames(text) {
				if seen[name] {
					continue
				}
				seen[name] = true
				refs = append(refs, sampleRef{record: id, name: name})
				if len(refs) == s.count {
					return refs, nil
				}
			}
		}
	}
	return refs, nil
}

func (s *Service) previewOne(ctx context.Context, r sampleRef, speed float64) Pair {
	p := Pair{Reference: r.name, RecordID: r.record}
	orig, err := s.media.Path(r.name)
	if err != nil {
		p.Err = err
		return p
	}
	p.Original = orig

	// An output already in a user scratch dir is reused and left to its owner.
	existed := s.scratch.Exists(ffmpeg.OutputName(orig, speed))
	out, err := s.exec.Transform(ctx, orig, speed)
	if err != nil {
		p.Err = err
		return p
	}
	p.Preview = out
	if !existed {
		s.created = append(s.created, out)
	}
	p.OriginalSize, p.PreviewSize = fileSize(orig), fileSize(out)

	if s.ffprobe != "" {
		p.OriginalDuration = s.duration(ctx, orig)
		p.PreviewDuration = s.duration(ctx, out)
	}
	return p
}

func (s *Service) duration(ctx context.Context, path string) time.Duration {
	res, err := probe.Probe(ctx, s.ffprobe, path)
	if err != nil {
		s.logger.Debug("ffprobe %s: %v", filepath.Base(path), err)
		return 0
	}
	return res.Duration()
}

// Cleanup removes the preview files. An owned scratch directory is removed
// entirely; in a user-supplied one only files this Service created are
// removed, so everything it held before is kept.
func (s *Service) Cleanup() error {
	if s.owned {
		return os.RemoveAll(s.scratch.Dir())
	}
	var errs []error
	for _, p := range s.created {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.created = nil
	return errors.Join(errs...)
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func sameDir(a, b string) bool {
	ai, err1 := os.Stat(a)
	bi, err2 := os.Stat(b)
	if err1 == nil && err2 == nil {
		return os.SameFile(ai, bi)
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
