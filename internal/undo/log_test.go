package undo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/naming"
)

func newLog(t *testing.T) (*Log, *collection.Memory) {
	t.Helper()
	records := collection.NewMemory()
	return NewLog(NewMemoryStore(), records, nil), records
}

func TestAppend_NormalizesAndStamps(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()

	e1, err := l.Append(ctx, Entry{RecordID: 1, Original: "a.mp3", New: "a_1.2x.mp3", Speed: 1.2000000000000002})
	require.NoError(t, err)
	e2, err := l.Append(ctx, Entry{RecordID: 1, Original: "b.mp3", New: "b_1.2x.mp3", Speed: 1.2})
	require.NoError(t, err)

	assert.Equal(t, 1.2, e1.Speed)
	assert.True(t, e2.CreatedAt.After(e1.CreatedAt))
}

func TestProcessed(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()
	_, err := l.Append(ctx, Entry{RecordID: 1, FieldID: 0, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5})
	require.NoError(t, err)

	tests := []struct {
		name     string
		field    collection.FieldID
		filename string
		speed    float64
		want     bool
	}{
		{"original at same speed", 0, "a.mp3", 1.5, true},
		{"output at same speed", 0, "a_1.5x.mp3", 1.5, true},
		{"different speed", 0, "a.mp3", 2.0, false},
		{"different field", 1, "a.mp3", 1.5, false},
		{"unknown file", 0, "b.mp3", 1.5, false},
		{"output at other speed", 0, "a_1.5x.mp3", 2.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Processed(ctx, 1, tt.field, tt.filename, tt.speed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrigin_FollowsChain(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()
	_, err := l.Append(ctx, Entry{RecordID: 1, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5})
	require.NoError(t, err)
	_, err = l.Append(ctx, Entry{RecordID: 1, Original: "a_1.5x.mp3", New: "a_2.0x.mp3", Speed: 2.0})
	require.NoError(t, err)

	got, err := l.Origin(ctx, 1, 0, "a_2.0x.mp3")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", got)

	got, err = l.Origin(ctx, 1, 0, "b.mp3")
	require.NoError(t, err)
	assert.Equal(t, "b.mp3", got)

	got, err = l.Origin(ctx, 2, 0, "a_2.0x.mp3")
	require.NoError(t, err)
	assert.Equal(t, "a_2.0x.mp3", got, "other records do not count")
}

func TestOrigin_CycleTerminates(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()
	_, err := l.Append(ctx, Entry{RecordID: 1, Original: "a.mp3", New: "b.mp3", Speed: 1.5})
	require.NoError(t, err)
	_, err = l.Append(ctx, Entry{RecordID: 1, Original: "b.mp3", New: "a.mp3", Speed: 2.0})
	require.NoError(t, err)

	got, err := l.Origin(ctx, 1, 0, "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", got)
}

// toggle appends the rewrites of a.mp3 in field 0 taken through speeds in
// order.
func toggle(t *testing.T, l *Log, id collection.RecordID, speeds ...float64) {
	t.Helper()
	cur := "a.mp3"
	for _, sp := range speeds {
		next := naming.SpeedFilename("a.mp3", sp)
		_, err := l.Append(context.Background(), Entry{RecordID: id, Original: cur, New: next, Speed: sp})
		require.NoError(t, err)
		cur = next
	}
}

func TestOrigin_ToggledSpeeds(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()
	toggle(t, l, 1, 1.5, 2.0, 1.5)

	got, err := l.Origin(ctx, 1, 0, "a_1.5x.mp3")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", got)

	toggle(t, l, 2, 1.5, 2.0, 1.5, 2.0)
	got, err = l.Origin(ctx, 2, 0, "a_2.0x.mp3")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", got)
}

func TestProcessed_ToggledSpeeds(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()
	toggle(t, l, 1, 1.5, 2.0, 1.5)

	done, err := l.Processed(ctx, 1, 0, "a_1.5x.mp3", 1.5)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = l.Processed(ctx, 1, 0, "a_1.5x.mp3", 2.0)
	require.NoError(t, err)
	assert.False(t, done, "an output that an earlier 2.0x run consumed is not processed at 2.0x")
}

func TestRevert_AfterToggles(t *testing.T) {
	l, records := newLog(t)
	ctx := context.Background()
	id := records.Add("[sound:a_2.0x.mp3]")
	toggle(t, l, id, 1.5, 2.0, 1.5, 2.0)

	entries, err := l.EntriesFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 4, "every rewrite keeps its own entry")

	out, err := l.Revert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Reverted)
	assert.Equal(t, []string{"[sound:a.mp3]"}, records.Snapshot(id))
}

func TestRevert_NewestFirst(t *testing.T) {
	l, records := newLog(t)
	ctx := context.Background()
	id := records.Add("x [sound:a_2.0x.mp3] y", "[sound:b_2.0x.mp3]")

	for _, e := range []Entry{
		{RecordID: id, FieldID: 0, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5},
		{RecordID: id, FieldID: 0, Original: "a_1.5x.mp3", New: "a_2.0x.mp3", Speed: 2.0},
		{RecordID: id, FieldID: 1, Original: "b.mp3", New: "b_2.0x.mp3", Speed: 2.0},
	} {
		_, err := l.Append(ctx, e)
		require.NoError(t, err)
	}

	out, err := l.Revert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Reverted)
	assert.Zero(t, out.Stale)
	assert.ElementsMatch(t, []collection.FieldID{0, 1}, out.Fields)
	assert.Equal(t, []string{"x [sound:a.mp3] y", "[sound:b.mp3]"}, records.Snapshot(id))

	left, err := l.EntriesFor(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRevert_NoEntriesIsNoop(t *testing.T) {
	l, records := newLog(t)
	id := records.Add("[sound:a.mp3]")

	out, err := l.Revert(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RevertOutcome{RecordID: id}, out)
	assert.Equal(t, []string{"[sound:a.mp3]"}, records.Snapshot(id))
}

func TestRevert_StaleEntryDropped(t *testing.T) {
	l, records := newLog(t)
	ctx := context.Background()
	id := records.Add("edited by hand")
	_, err := l.Append(ctx, Entry{RecordID: id, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5})
	require.NoError(t, err)

	out, err := l.Revert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stale)
	assert.Equal(t, []string{"edited by hand"}, records.Snapshot(id))
	left, _ := l.EntriesFor(ctx, id)
	assert.Empty(t, left)
}

func TestRevert_OriginalReaddedStillReverts(t *testing.T) {
	l, records := newLog(t)
	ctx := context.Background()
	id := records.Add("[sound:a_1.5x.mp3] [sound:a.mp3]")
	_, err := l.Append(ctx, Entry{RecordID: id, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5})
	require.NoError(t, err)

	_, err = l.Revert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"[sound:a.mp3] [sound:a.mp3]"}, records.Snapshot(id))
}

func TestRevertRun_BlockedBySupersedingRun(t *testing.T) {
	l, records := newLog(t)
	ctx := context.Background()
	a := records.Add("[sound:a_2.0x.mp3]")
	b := records.Add("[sound:b_1.5x.mp3]")

	for _, e := range []Entry{
		{RunID: "r1", RecordID: a, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5},
		{RunID: "r1", RecordID: b, Original: "b.mp3", New: "b_1.5x.mp3", Speed: 1.5},
		{RunID: "r2", RecordID: a, Original: "a_1.5x.mp3", New: "a_2.0x.mp3", Speed: 2.0},
	} {
		_, err := l.Append(ctx, e)
		require.NoError(t, err)
	}

	outs, err := l.RevertRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, 1, outs[0].Blocked)
	assert.Equal(t, 1, outs[1].Reverted)
	assert.Equal(t, []string{"[sound:a_2.0x.mp3]"}, records.Snapshot(a))
	assert.Equal(t, []string{"[sound:b.mp3]"}, records.Snapshot(b))

	outs, err = l.RevertRun(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, []string{"[sound:a_1.5x.mp3]"}, records.Snapshot(a))

	outs, err = l.RevertRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, []string{"[sound:a.mp3]"}, records.Snapshot(a))
}

func TestRevert_RequiresRecordStore(t *testing.T) {
	l := NewLog(NewMemoryStore(), nil, nil)
	ctx := context.Background()
	_, err := l.Append(ctx, Entry{RecordID: 1, Original: "a.mp3", New: "a_1.5x.mp3", Speed: 1.5})
	require.NoError(t, err)
	_, err = l.Revert(ctx, 1)
	assert.Error(t, err)
}
