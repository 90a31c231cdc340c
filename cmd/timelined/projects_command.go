package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-timeline/internal/project"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List timeline projects",
		Args:  cobra.NoArgs,
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

			list, err := st.projects.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No projects")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, p := range list {
				length := "-"
				if rec, err := st.projects.GetRecord(cmd.Context(), p.ID); err == nil && rec != nil {
					length = project.FormatTime(rec.Duration())
				}
				rows = append(rows, []string{
					p.ID,
					p.Name,
					p.Settings.Resolution,
					strconv.Itoa(p.Settings.FrameRate),
					length,
					p.ModifiedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Resolution", "FPS", "Length", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.AddCommand(newProjectCreateCommand(ctx))
	return cmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var settings project.Settings

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Args:  cobra.MinimumNArgs(1),
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

			svc := newProjectService(cfg, st, nil, logger)
			p, err := svc.Create(cmd.Context(), strings.Join(args, " "), settings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s, %s, %d fps)\n",
				p.ID, p.Settings.Resolution, p.Settings.AspectRatio, p.Settings.FrameRate)
			return nil
		},
	}
	cmd.Flags().StringVar(&settings.Resolution, "resolution", "", "Output resolution (360p, 480p, 720p, 1080p, 4K)")
	cmd.Flags().IntVar(&settings.FrameRate, "fps", 0, "Frame rate (24, 30 or 60)")
	cmd.Flags().StringVar(&settings.AspectRatio, "aspect", "", "Aspect ratio (16:9, 9:16, 1:1, 4:3)")
	return cmd
}
