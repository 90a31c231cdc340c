package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		req  export.Settings
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "export [project-id]",
		Short: "Queue an export of a project",
		Long: "Queue an export of a project's current timeline. A running server picks the job up; " +
			"with --wait and no server running, the export runs in this process.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := cliLogger(cfg)
			st, err := openStores(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if req.OutputDir == "" {
				if err := os.MkdirAll(cfg.ExportDefaults().OutputDir, 0755); err != nil {
					return fmt.Errorf("failed to create export dir: %w", err)
				}
			}

			runner := export.NewRunner(st.jobs, newExporters(cfg, logger), cfg.ExportDefaults(), logger)
			runner.SetPollInterval(250 * time.Millisecond)
			svc := newProjectService(cfg, st, runner, logger)

			id, err := resolveProjectID(cmd, svc, args)
			if err != nil {
				return err
			}
			job, err := svc.RequestExport(cmd.Context(), id, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued export %s (%s, %s, %s @ %d fps)\n",
				job.ID, job.Settings.Format, job.Settings.Quality, job.Settings.Resolution, job.Settings.FrameRate)
			if job.Settings.Format.IsVideo() {
				size := export.EstimateSize(job.Snapshot.Duration(), job.Settings.Quality)
				fmt.Fprintf(out, "Estimated size: %s\n", humanize.Bytes(uint64(size)))
			}
			if !wait {
				return nil
			}

			// Without a server holding the lock nobody else will run the job.
			lock := flock.New(cfg.LockPath())
			if locked, err := lock.TryLock(); err == nil && locked {
				defer lock.Unlock()
				runCtx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go runner.Start(runCtx)
			}

			done, err := waitForJob(cmd.Context(), st.jobs, job.ID, 250*time.Millisecond)
			if err != nil {
				return err
			}
			switch done.Status {
			case export.JobCompleted:
				fmt.Fprintf(out, "Wrote %s (%s)\n", done.OutputPath, humanize.Bytes(uint64(done.SizeBytes)))
				return nil
			case export.JobCanceled:
				return fmt.Errorf("export %s was canceled", done.ID)
			default:
				return fmt.Errorf("export %s failed: %s", done.ID, done.Error)
			}
		},
	}

	cmd.Flags().StringVarP((*string)(&req.Format), "format", "f", "", "Output format (mp4, mov, webm, edl, json)")
	cmd.Flags().StringVarP((*string)(&req.Quality), "quality", "q", "", "Quality preset (low, medium, high, ultra)")
	cmd.Flags().StringVar(&req.Resolution, "resolution", "", "Output resolution (defaults to the project's)")
	cmd.Flags().IntVar(&req.FrameRate, "fps", 0, "Frame rate (defaults to the project's)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Output file title (defaults to the project name)")
	cmd.Flags().StringVarP(&req.OutputDir, "output-dir", "o", "", "Absolute output directory")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the export to finish")
	return cmd
}

// waitForJob polls the job store until the job reaches a terminal status.
func waitForJob(ctx context.Context, store export.JobStore, id string, interval time.Duration) (*export.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := store.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("%w: %s", export.ErrJobNotFound, id)
		}
		if job.Status.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
