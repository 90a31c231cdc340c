package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-timeline/internal/config"
	"github.com/heimdex/heimdex-timeline/internal/db"
	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/render"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "timelined",
		Short:         "Timeline composition server",
		Version:       fmt.Sprintf("%s (%s, %s)", config.Version, config.GitCommit, config.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProjectsCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))

	return rootCmd
}

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		path := os.Getenv(config.EnvConfigFile)
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger keeps one-shot commands quiet unless something goes wrong.
func cliLogger(cfg config.Config) *slog.Logger {
	level := "warn"
	if logging.ParseLevel(cfg.LogLevel()) == slog.LevelDebug {
		level = "debug"
	}
	return logging.New(os.Stderr, level, "text")
}

// stores bundles the database-backed collaborators every command needs.
type stores struct {
	db       *db.DB
	projects *project.SQLiteRepository
	jobs     *export.SQLiteJobStore
}

func openStores(cfg config.Config, logger *slog.Logger) (*stores, error) {
	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &stores{
		db:       database,
		projects: project.NewRepository(database.Conn()),
		jobs:     export.NewJobStore(database.Conn()),
	}, nil
}

func (s *stores) Close() error {
	return s.db.Close()
}

func newExporters(cfg config.Config, logger *slog.Logger) export.Set {
	ffmpeg := export.NewFFmpegExporter(cfg.FFmpegPath(), logger)
	return export.Set{
		export.FormatMP4:  ffmpeg,
		export.FormatMOV:  ffmpeg,
		export.FormatWebM: ffmpeg,
		export.FormatEDL:  export.NewEDLExporter(logger),
		export.FormatJSON: export.JSONExporter{},
	}
}

func newProjectService(cfg config.Config, st *stores, exports project.ExportSubmitter, logger *slog.Logger) *project.Service {
	return project.NewService(st.projects, exports, project.Options{
		HistoryCapacity: cfg.HistoryCapacity(),
		Autosave:        cfg.Autosave(),
		Renderer: func(clips render.ClipResolver) render.Renderer {
			return render.NewFFmpegRenderer(clips, cfg.FFmpegPath(), cfg.FramesDir(), logger)
		},
		Logger: logger,
	})
}
