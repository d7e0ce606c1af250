package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/retempo/internal/persistence/sqlite"
)

// mockLogger records the level of each logged line.
type mockLogger struct {
	lines []string
}

func (m *mockLogger) Info(f string, a ...interface{})    { m.add("info", f, a) }
func (m *mockLogger) Success(f string, a ...interface{}) { m.add("ok", f, a) }
func (m *mockLogger) Warn(f string, a ...interface{})    { m.add("warn", f, a) }
func (m *mockLogger) Error(f string, a ...interface{})   { m.add("error", f, a) }

func (m *mockLogger) add(level, f string, a []interface{}) {
	m.lines = append(m.lines, level+" "+fmt.Sprintf(f, a...))
}

const fakeFFmpeg = `#!/bin/sh
case "$*" in
  *-version*) echo "ffmpeg version 6.1.1 Copyright (c) 2000-2023"; echo "built with gcc" ;;
  *-filters*) echo " ... atempo            A->A       Adjust audio tempo." ;;
  *-encoders*) printf ' A....D libmp3lame           libmp3lame MP3\n A....D aac                  AAC\n A....D pcm_s16le            PCM\n' ;;
  *) exit 0 ;;
esac
`

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries are POSIX shell scripts")
	}
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
	return p
}

func byName(rep *Report) map[string]Result {
	m := make(map[string]Result)
	for _, r := range rep.Results {
		m[r.Name] = r
	}
	return m
}

func TestRun_HealthyFFmpeg(t *testing.T) {
	bin := writeScript(t, "ffmpeg", fakeFFmpeg)
	probe := writeScript(t, "ffprobe", "#!/bin/sh\nexit 0\n")
	log := &mockLogger{}

	rep := Run(context.Background(), Options{FFmpeg: bin, FFprobe: probe}, log)

	assert.True(t, rep.OK())
	assert.Equal(t, bin, rep.FFmpeg)
	res := byName(rep)
	assert.Equal(t, StatusOK, res["ffmpeg"].Status)
	assert.Contains(t, res["ffmpeg"].Detail, "ffmpeg version 6.1.1")
	assert.NotContains(t, res["ffmpeg"].Detail, "built with gcc")
	assert.Equal(t, StatusOK, res["ffprobe"].Status)
	assert.Equal(t, StatusOK, res["atempo"].Status)
	assert.Equal(t, StatusOK, res["encoder libmp3lame"].Status)
	assert.Equal(t, StatusOK, res["encoder aac"].Status)
	assert.Equal(t, StatusWarn, res["encoder libopus"].Status)
	assert.Equal(t, StatusWarn, res["encoder libvorbis"].Status)
	assert.Equal(t, "info === System Check ===", log.lines[0])
}

func TestRun_MissingFFmpeg(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "ffmpeg")
	rep := Run(context.Background(), Options{FFmpeg: missing, FFprobe: missing + "probe"}, &mockLogger{})

	assert.False(t, rep.OK())
	res := byName(rep)
	assert.ErrorIs(t, res["ffmpeg"].Err, ErrFFmpegNotFound)
	assert.Equal(t, StatusWarn, res["ffprobe"].Status)
	_, ran := res["atempo"]
	assert.False(t, ran, "filter checks need a binary")
}

func TestRun_NoAtempo(t *testing.T) {
	bin := writeScript(t, "ffmpeg", `#!/bin/sh
case "$*" in
  *-version*) echo "ffmpeg version n4" ;;
  *-filters*) echo " ... volume            A->A       Change input volume." ;;
  *) exit 0 ;;
esac
`)
	rep := Run(context.Background(), Options{FFmpeg: bin}, &mockLogger{})
	assert.False(t, rep.OK())
	assert.ErrorIs(t, byName(rep)["atempo"].Err, ErrAtempoMissing)
}

func TestRun_AtempoEncodeFails(t *testing.T) {
	bin := writeScript(t, "ffmpeg", `#!/bin/sh
case "$*" in
  *-version*) echo "ffmpeg version n4" ;;
  *-filters*) echo " ... atempo            A->A       Adjust audio tempo." ;;
  *-encoders*) echo "" ;;
  *) exit 1 ;;
esac
`)
	rep := Run(context.Background(), Options{FFmpeg: bin}, &mockLogger{})
	assert.ErrorIs(t, byName(rep)["atempo"].Err, ErrAtempoFailed)
}

func TestRun_Databases(t *testing.T) {
	bin := writeScript(t, "ffmpeg", fakeFFmpeg)
	dir := t.TempDir()

	good := filepath.Join(dir, "undo.sqlite")
	db, err := sqlite.Open(good, sqlite.DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	bad := filepath.Join(dir, "collection.anki2")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a database, just text padding the header"), 0o644))

	rep := Run(context.Background(), Options{FFmpeg: bin, UndoDB: good, Collection: bad}, &mockLogger{})
	res := byName(rep)
	assert.Equal(t, StatusOK, res["undo log"].Status)
	assert.Equal(t, StatusFail, res["collection"].Status)
	assert.False(t, rep.OK())
}

func TestRun_SkipsUnsetDatabases(t *testing.T) {
	bin := writeScript(t, "ffmpeg", fakeFFmpeg)
	rep := Run(context.Background(), Options{
		FFmpeg:     bin,
		UndoDB:     sqlite.Memory,
		Collection: filepath.Join(t.TempDir(), "absent.anki2"),
	}, &mockLogger{})
	res := byName(rep)
	_, undoChecked := res["undo log"]
	_, collChecked := res["collection"]
	assert.False(t, undoChecked)
	assert.False(t, collChecked)
}

func TestHasListed(t *testing.T) {
	listing := " A....D aac   AAC\n A....D libopus  Opus\n"
	assert.True(t, hasListed(listing, "aac"))
	assert.True(t, hasListed(listing, "libopus"))
	assert.False(t, hasListed(listing, "opus"))
	assert.False(t, hasListed("", "aac"))
}
