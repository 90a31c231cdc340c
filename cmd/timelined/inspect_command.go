package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [project-id]",
		Short: "Show the tracks, transitions and markers of a project",
		Long:  "Show a project's timeline. Without an id the most recently opened project is used.",
		Args:  cobra.MaximumNArgs(1),
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
			id, err := resolveProjectID(cmd, svc, args)
			if err != nil {
				return err
			}

			var (
				p   project.Project
				rec timeline.Record
			)
			err = svc.View(cmd.Context(), id, func(s *project.Session) error {
				p = s.Project()
				rec = s.Snapshot()
				return nil
			})
			if err != nil {
				return err
			}
			markers, err := svc.ListMarkers(cmd.Context(), id)
			if err != nil {
				return err
			}

			printTimeline(cmd.OutOrStdout(), p, rec, markers)
			return nil
		},
	}
}

func resolveProjectID(cmd *cobra.Command, svc *project.Service, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	id, err := svc.LastProject(cmd.Context())
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("no project id given and no project has been opened yet")
	}
	return id, nil
}

func printTimeline(out io.Writer, p project.Project, rec timeline.Record, markers []*project.Marker) {
	fmt.Fprintf(out, "%s  %s\n", p.Name, p.ID)
	fmt.Fprintf(out, "%s, %d fps, %s, length %s\n\n",
		p.Settings.Resolution, p.Settings.FrameRate, p.Settings.AspectRatio, project.FormatTime(rec.Duration()))

	clipNames := make(map[string]string, len(rec.Clips))
	for _, c := range rec.Clips {
		name := c.Name
		if name == "" {
			name = string(c.Kind)
		}
		clipNames[c.ID] = name
	}

	rows := [][]string{}
	for i, tr := range rec.Tracks {
		for _, pl := range tr.Placements {
			rows = append(rows, []string{
				strconv.Itoa(i),
				strconv.Itoa(tr.ZOrder),
				pl.ID,
				clipNames[pl.ClipID],
				seconds(pl.Start),
				seconds(pl.Start + pl.Duration),
				fmt.Sprintf("%s-%s", seconds(pl.SourceIn), seconds(pl.SourceOut)),
				fmt.Sprintf("%.2f", pl.Volume),
			})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "Timeline is empty")
	} else {
		fmt.Fprintln(out, renderTable(
			[]string{"Track", "Z", "Placement", "Clip", "Start", "End", "Source", "Volume"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
		))
	}

	if len(rec.Transitions) > 0 {
		rows = rows[:0]
		for _, tr := range rec.Transitions {
			rows = append(rows, []string{tr.ID, string(tr.Kind), tr.From, tr.To, seconds(tr.Duration)})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Transition", "Kind", "From", "To", "Duration"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
	}

	if len(markers) > 0 {
		rows = rows[:0]
		for _, m := range markers {
			rows = append(rows, []string{project.FormatTime(m.Time), m.Label})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Marker", "Label"}, rows, []columnAlignment{alignRight, alignLeft}))
	}
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
