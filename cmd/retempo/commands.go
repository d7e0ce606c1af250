package main

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backmassage/retempo/internal/batch"
	"github.com/backmassage/retempo/internal/check"
	"github.com/backmassage/retempo/internal/collection"
	"github.com/backmassage/retempo/internal/display"
	"github.com/backmassage/retempo/internal/ffmpeg"
	"github.com/backmassage/retempo/internal/metrics"
	"github.com/backmassage/retempo/internal/naming"
	"github.com/backmassage/retempo/internal/preview"
	"github.com/backmassage/retempo/internal/report"
	"github.com/backmassage/retempo/internal/undo"
)

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "retempo",
		Short: "Change the speed of flashcard audio without changing its pitch",
		Long: `retempo re-encodes the audio files referenced by [sound:...] markers in
flashcard records at a new speed (0.5x-3.0x, pitch preserved), rewrites the
references to the new files and records every rewrite in an undo log.`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	a.binder.BindGlobal(root.PersistentFlags())
	root.AddCommand(a.runCmd(), a.previewCmd(), a.undoCmd(), a.historyCmd(), a.checkCmd())
	return root
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [record-id...]",
		Short: "Re-encode the selected records' audio at --speed and rewrite the references",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStores()
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := a.selection(cmd.Context(), s.records, args)
			if err != nil {
				return err
			}

			rec := metrics.New()
			coord := batch.New(batch.Options{
				Transformer: ffmpeg.New(ffmpeg.Options{
					Binary:  a.cfg.FFmpegPath,
					Dest:    s.media,
					Timeout: a.cfg.FileTimeout,
					Verbose: a.cfg.Verbose,
					Stderr:  a.stderr,
				}),
				Records: s.records,
				Undo:    s.log,
				Media:   s.media,
				Workers: a.cfg.Workers,
				Logger:  a.log,
				Metrics: rec,
			})
			req := batch.Request{RecordIDs: ids, Speed: a.cfg.Speed, SkipProcessed: a.cfg.SkipProcessed}

			if a.cfg.DryRun {
				a.log.Warn("DRY RUN: no files or records will be written")
				d, err := coord.Detect(cmd.Context(), req)
				if err != nil {
					return err
				}
				return a.emit(d, func() { display.PrintDetection(a.stdout, d, a.cfg.Speed) })
			}

			ctx, stop := a.interruptible(cmd.Context())
			defer stop()

			progress := display.NewProgress(a.stderr, isTTY(a.stderr) && !a.cfg.JSON)
			out, runErr := coord.Run(ctx, req, progress.Update)
			progress.Clear()
			if out == nil {
				return runErr
			}

			if err := rec.WriteFile(a.cfg.MetricsFile); err != nil {
				a.log.Warn("metrics: %v", err)
			}
			color := a.colorFor(a.stdout)
			if err := a.emit(out, func() {
				if a.cfg.Verbose {
					display.PrintRecords(a.stdout, out.Records, color)
				}
				display.PrintOutcome(a.stdout, out, color)
			}); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if !out.OK() {
				return errFailures
			}
			return nil
		},
	}
	a.binder.BindTransform(cmd.Flags())
	a.binder.BindRun(cmd.Flags())
	a.bindSelection(cmd)
	return cmd
}

func (a *app) previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [record-id...]",
		Short: "Render a few sample references at --speed into a scratch directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStores()
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := a.selection(cmd.Context(), s.records, args)
			if err != nil {
				return err
			}
			svc, err := preview.New(preview.Options{
				Records:    s.records,
				Media:      s.media,
				FFmpeg:     a.cfg.FFmpegPath,
				FFprobe:    a.cfg.FFprobePath,
				Timeout:    a.cfg.FileTimeout,
				ScratchDir: a.cfg.ScratchDir,
				Count:      a.cfg.PreviewCount,
				Logger:     a.log,
			})
			if err != nil {
				return err
			}
			if a.cfg.SpeedNeedsWarning() {
				a.log.Warn("Speed %sx is above %sx; audio quality may degrade",
					naming.FormatSpeed(a.cfg.Speed), naming.FormatSpeed(naming.QualityWarnSpeed))
			}

			pairs, err := svc.Preview(cmd.Context(), ids, a.cfg.Speed)
			if err != nil {
				_ = svc.Cleanup()
				return err
			}
			if err := a.emit(pairs, func() { display.PrintPreview(a.stdout, pairs, a.colorFor(a.stdout)) }); err != nil {
				_ = svc.Cleanup()
				return err
			}

			switch {
			case a.cfg.KeepPreview:
				a.log.Info("Preview files kept in %s", svc.ScratchDir())
			case isTTY(a.stdin) && !a.cfg.JSON:
				fmt.Fprint(a.stderr, "Press Enter to remove the preview files… ")
				_, _ = bufio.NewReader(a.stdin).ReadString('\n')
				fallthrough
			default:
				if err := svc.Cleanup(); err != nil {
					a.log.Warn("preview cleanup: %v", err)
				}
			}

			for _, p := range pairs {
				if p.Err != nil {
					return errFailures
				}
			}
			return nil
		},
	}
	a.binder.BindTransform(cmd.Flags())
	a.binder.BindPreview(cmd.Flags())
	a.bindSelection(cmd)
	return cmd
}

func (a *app) undoCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "undo [record-id...]",
		Short: "Restore the original references of records, or of one run with --run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if (runID == "") == (len(ids) == 0) {
				return errors.New("pass either record ids or --run")
			}

			s, err := a.openStores()
			if err != nil {
				return err
			}
			defer s.Close()

			var outcomes []undo.RevertOutcome
			if runID != "" {
				outcomes, err = s.log.RevertRun(cmd.Context(), runID)
			} else {
				for _, id := range ids {
					o, rerr := s.log.Revert(cmd.Context(), id)
					outcomes = append(outcomes, o)
					if rerr != nil {
						err = rerr
						break
					}
				}
			}
			if emitErr := a.emit(outcomes, func() { display.PrintReverts(a.stdout, outcomes) }); emitErr != nil {
				return emitErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Revert every rewrite of this run id (see history)")
	a.binder.BindReport(cmd.Flags())
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		runID  string
		record int64
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List undo log entries grouped by run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.undoPath() == "" {
				return errors.New("undo log location unknown (pass --undo-db or --media)")
			}
			u, err := undo.NewStore(a.undoPath())
			if err != nil {
				return err
			}
			defer u.Close()
			log := undo.NewLog(u, nil, a.log)

			var entries []undo.Entry
			switch {
			case runID != "":
				entries, err = log.ForRun(cmd.Context(), runID)
			case record != 0:
				entries, err = log.EntriesFor(cmd.Context(), collection.RecordID(record))
			default:
				entries, err = log.All(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.emit(entries, func() { display.PrintHistory(a.stdout, entries, a.colorFor(a.stdout)) })
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only entries of this run id")
	cmd.Flags().Int64Var(&record, "record", 0, "Only entries of this record id")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Diagnose ffmpeg, ffprobe, encoders and the databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep := check.Run(cmd.Context(), check.Options{
				FFmpeg:     a.cfg.FFmpegPath,
				FFprobe:    a.cfg.FFprobePath,
				UndoDB:     a.undoPath(),
				Collection: a.cfg.CollectionPath,
			}, a.log)
			if a.cfg.JSON {
				if err := report.Encode(a.stdout, rep); err != nil {
					return err
				}
			}
			if !rep.OK() {
				return errFailures
			}
			return nil
		},
	}
}
