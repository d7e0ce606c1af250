package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/ffmpeg"
	"github.com/backmassage/retempo/internal/media"
	"github.com/backmassage/retempo/internal/metrics"
	"github.com/backmassage/retempo/internal/undo"
)

const copyScript = `#!/bin/sh
in=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  out="$a"
done
cp "$in" "$out"
`

// TestRun_EndToEnd drives the executor, the SQLite collection and the
// SQLite undo log together.
func TestRun_EndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a POSIX shell script")
	}
	ctx := context.Background()
	root := t.TempDir()

	bin := filepath.Join(root, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte(copyScript), 0o755))

	mediaDir := filepath.Join(root, "collection.media")
	require.NoError(t, os.Mkdir(mediaDir, 0o755))
	m, err := media.Open(mediaDir)
	require.NoError(t, err)
	require.NoError(t, m.WriteFile("orig.mp3", bytes.Repeat([]byte{7}, 2048)))

	records, err := collection.Open(filepath.Join(root, "collection.anki2"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })
	cardA, err := records.Add(ctx, []string{"[sound:orig.mp3]", "answer"})
	require.NoError(t, err)
	cardB, err := records.Add(ctx, []string{"no sound", ""})
	require.NoError(t, err)

	store, err := undo.NewSqliteStore(filepath.Join(root, "undo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	log := undo.NewLog(store, records, nil)

	rec := metrics.New()
	c := New(Options{
		Transformer: ffmpeg.New(ffmpeg.Options{Binary: bin, Dest: m}),
		Records:     records,
		Undo:        log,
		Media:       m,
		Workers:     2,
		Metrics:     rec,
	})

	out, err := c.Run(ctx, Request{RecordIDs: []collection.RecordID{cardA, cardB}, Speed: 1.5, SkipProcessed: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, Counts{Succeeded: 1}, out.Counts)
	assert.Equal(t, StatusNoMedia, out.Records[1].Status)
	assert.Equal(t, filepath.Join(mediaDir, "orig_1.5x.mp3"), out.Records[0].Jobs[0].Output)

	text, err := records.FieldText(ctx, cardA, 0)
	require.NoError(t, err)
	assert.Equal(t, "[sound:orig_1.5x.mp3]", text)

	metricsFile := filepath.Join(root, "retempo.prom")
	require.NoError(t, rec.WriteFile(metricsFile))
	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `retempo_jobs_total{status="succeeded"} 1`)

	again, err := c.Run(ctx, Request{RecordIDs: []collection.RecordID{cardA}, Speed: 1.5, SkipProcessed: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, Counts{Skipped: 1}, again.Counts)

	outcomes, err := log.RevertRun(ctx, out.RunID)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].Reverted)

	text, err = records.FieldText(ctx, cardA, 0)
	require.NoError(t, err)
	assert.Equal(t, "[sound:orig.mp3]", text)
	assert.True(t, m.Exists("orig_1.5x.mp3"))
}

// TestRun_CancelMidRecordSQLite cancels while the first reference of a
// two-reference record is transcoding. The SQLite stores honor ctx, so
// every store call of the running record must see a live context.
func TestRun_CancelMidRecordSQLite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()

	m, err := media.Open(root)
	require.NoError(t, err)
	for _, n := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		require.NoError(t, m.WriteFile(n, bytes.Repeat([]byte{3}, 512)))
	}

	records, err := collection.Open(filepath.Join(root, "collection.anki2"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })
	first, err := records.Add(ctx, []string{"[sound:a.mp3] [sound:b.mp3]"})
	require.NoError(t, err)
	second, err := records.Add(ctx, []string{"[sound:c.mp3]"})
	require.NoError(t, err)

	store, err := undo.NewSqliteStore(filepath.Join(root, "undo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	log := undo.NewLog(store, records, nil)

	tr := &fakeTransformer{fail: make(map[string]error), hook: cancel}
	c := New(Options{Transformer: tr, Records: records, Undo: log, Media: m})

	out, err := c.Run(ctx, Request{RecordIDs: []collection.RecordID{first, second}, Speed: 1.5}, nil)
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, Counts{Succeeded: 2, Remaining: 1}, out.Counts)
	assert.Empty(t, out.Failures)
	assert.Equal(t, StatusSucceeded, out.Records[0].Status)
	assert.Equal(t, StatusRemaining, out.Records[1].Status)

	bg := context.Background()
	text, err := records.FieldText(bg, first, 0)
	require.NoError(t, err)
	assert.Equal(t, "[sound:a_1.5x.mp3] [sound:b_1.5x.mp3]", text)
	entries, err := log.EntriesFor(bg, first)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "both committed rewrites are revertible")

	_, err = log.Revert(bg, first)
	require.NoError(t, err)
	text, err = records.FieldText(bg, first, 0)
	require.NoError(t, err)
	assert.Equal(t, "[sound:a.mp3] [sound:b.mp3]", text)
}
