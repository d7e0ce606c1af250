package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/config"
	"github.com/backmassage/retempo/internal/display"
	"github.com/backmassage/retempo/internal/logging"
	"github.com/backmassage/retempo/internal/media"
	"github.com/backmassage/retempo/internal/report"
	"github.com/backmassage/retempo/internal/term"
	"github.com/backmassage/retempo/internal/undo"
)

// defaultUndoName is placed next to the media directory when no undo
// database is configured.
const defaultUndoName = "retempo-undo.sqlite"

// app carries what every subcommand shares: the layered configuration,
// the logger and the output streams.
type app struct {
	cfg    config.Config
	binder *config.Binder
	log    *logging.Logger

	stdin          io.Reader
	stdout, stderr io.Writer

	// Record selection, shared by run and preview.
	all bool
	tag string
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	a := &app{cfg: config.DefaultConfig(), stdin: stdin, stdout: stdout, stderr: stderr}
	a.binder = config.NewBinder(&a.cfg)
	return a
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

// setup layers the config file under the flags, validates, and opens the
// logger. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.binder.Finalize(cmd.Flags()); err != nil {
		return err
	}
	log, err := logging.NewLogger(&a.cfg)
	if err != nil {
		return err
	}
	a.log = log
	if !a.cfg.JSON {
		display.PrintBanner(a.stderr, a.colorFor(a.stderr))
	}
	return nil
}

// colorFor resolves the color mode for w; writers that are not files get
// color only when forced.
func (a *app) colorFor(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.Enabled(a.cfg.ColorMode, f)
	}
	return a.cfg.ColorMode == config.ColorAlways
}

func isTTY(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(f)
}

// undoPath resolves the undo database location.
func (a *app) undoPath() string {
	if a.cfg.UndoDBPath != "" {
		return a.cfg.UndoDBPath
	}
	if a.cfg.MediaDir == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(a.cfg.MediaDir), defaultUndoName)
}

// stores bundles the opened persistence layers of one command.
type stores struct {
	media   *media.Dir
	records *collection.SQLite
	undo    undo.Store
	log     *undo.Log
}

func (a *app) openStores() (*stores, error) {
	if err := a.cfg.RequireStores(); err != nil {
		return nil, err
	}
	m, err := media.Open(a.cfg.MediaDir)
	if err != nil {
		return nil, err
	}
	records, err := collection.Open(a.cfg.CollectionPath)
	if err != nil {
		return nil, err
	}
	u, err := undo.NewStore(a.undoPath())
	if err != nil {
		_ = records.Close()
		return nil, fmt.Errorf("open undo log: %w", err)
	}
	a.log.Debug("Stores: media=%s collection=%s undo=%s", m.Dir(), a.cfg.CollectionPath, a.undoPath())
	return &stores{
		media:   m,
		records: records,
		undo:    u,
		log:     undo.NewLog(u, records, a.log),
	}, nil
}

func (s *stores) Close() error {
	return errors.Join(s.undo.Close(), s.records.Close())
}

// bindSelection registers the record selection flags.
func (a *app) bindSelection(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&a.all, "all", false, "Select every record in the collection")
	cmd.Flags().StringVar(&a.tag, "tag", "", "Select records carrying this tag")
}

// selection resolves positional record ids and the selection flags.
func (a *app) selection(ctx context.Context, records collection.Store, args []string) ([]collection.RecordID, error) {
	ids, err := parseIDs(args)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && !a.all && a.tag == "" {
		return nil, errors.New("select records by id, --tag or --all")
	}
	sel, err := records.Select(ctx, collection.Selection{IDs: ids, All: a.all, Tag: a.tag})
	if err != nil {
		return nil, err
	}
	if len(ids) > len(sel) {
		a.log.Warn("%d of %d record ids not found in the collection", len(ids)-len(sel), len(ids))
	}
	return sel, nil
}

func parseIDs(args []string) ([]collection.RecordID, error) {
	ids := make([]collection.RecordID, 0, len(args))
	for _, s := range args {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q", s)
		}
		ids = append(ids, collection.RecordID(n))
	}
	return ids, nil
}

// interruptible cancels the returned context on SIGINT/SIGTERM so a batch
// stops between records without leaving a half-rewritten field.
func (a *app) interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			a.log.Warn("Received interrupt, finishing current record…")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// emit prints v as JSON when --json is set, otherwise calls human. The
// report file, when configured, always receives the JSON form.
func (a *app) emit(v any, human func()) error {
	if a.cfg.ReportFile != "" {
		if err := report.WriteFile(a.cfg.ReportFile, v); err != nil {
			return err
		}
		a.log.Debug("Report written to %s", a.cfg.ReportFile)
	}
	if a.cfg.JSON {
		return report.Encode(a.stdout, v)
	}
	human()
	return nil
}
