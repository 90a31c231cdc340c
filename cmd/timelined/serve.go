package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-timeline/internal/api"
	"github.com/heimdex/heimdex-timeline/internal/config"
	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/project"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timeline HTTP server and export worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Port()
			}
			return runServe(cmd.Context(), cfg, port, quiet)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the startup banner")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, port int, quiet bool) error {
	startTime := time.Now()

	for _, dir := range []string{cfg.DataDir(), cfg.ExportDefaults().OutputDir, cfg.FramesDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another timelined server is already running for this data directory")
	}
	defer lock.Unlock()

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting timeline server", "version", config.Version, "data_dir", cfg.DataDir(), "config", cfg.Source())

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	authToken, err := ensureAuthToken(parent, st.projects)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	if !quiet {
		printBanner(os.Stdout, port, authToken, cfg.ExportDefaults().OutputDir)
	}

	runner := export.NewRunner(st.jobs, newExporters(cfg, logger), cfg.ExportDefaults(), logger)
	runner.SetPollInterval(cfg.ExportPollInterval())

	projects := newProjectService(cfg, st, runner, logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:      port,
		Projects:  projects,
		Tokens:    st.projects,
		Jobs:      st.jobs,
		Runner:    runner,
		Media:     playback.NewMediaServer(logger),
		Logger:    logger,
		Version:   config.Version,
		StartTime: startTime,
	})

	if err := apiServer.Listen(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	case <-parent.Done():
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	saveOpenProjects(shutdownCtx, projects, logger)

	logger.Info("shutdown complete")
	return nil
}

// saveOpenProjects flushes every live session before exit. Close is a no-op
// for projects that were never opened.
func saveOpenProjects(ctx context.Context, projects *project.Service, logger *slog.Logger) {
	list, err := projects.List(ctx)
	if err != nil {
		logger.Error("failed to list projects for final save", "error", err)
		return
	}
	for _, p := range list {
		if err := projects.Close(ctx, p.ID); err != nil {
			logger.Error("failed to save project", "project_id", p.ID, "error", err)
		}
	}
}

// printBanner draws the boxed startup banner on a terminal and plain
// key/value lines when stdout is redirected.
func printBanner(w io.Writer, port int, token, exportDir string) {
	if !isTerminal(w) {
		fmt.Fprintf(w, "version=%s url=http://127.0.0.1:%d token=%s exports=%s\n",
			config.Version, port, token, logging.SanitizePath(exportDir))
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  HEIMDEX TIMELINE %-39s ║\n", "v"+config.Version)
	fmt.Fprintln(w, "╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  API URL:    http://127.0.0.1:%-27d ║\n", port)
	fmt.Fprintf(w, "║  Auth Token: %-45s ║\n", token)
	fmt.Fprintf(w, "║  Exports:    %-45s ║\n", logging.SanitizePath(exportDir))
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func ensureAuthToken(ctx context.Context, repo project.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
