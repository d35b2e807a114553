package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/jobs"
	"github.com/forPelevin/vodclips/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show job records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg.Paths.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				jobID, err := resolveJobID(args[0], false)
				if err != nil {
					return err
				}
				job, err := store.Get(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				printJob(out, *job)
				return nil
			}
			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "no jobs")
				return nil
			}
			printJobs(out, list)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to list (0 for all)")
	return cmd
}

func printJobs(w io.Writer, list []jobs.Job) {
	rows := make([][]string, 0, len(list))
	for _, j := range list {
		rows = append(rows, []string{
			j.ID,
			string(j.Status),
			orDash(j.CurrentStage),
			orDash(j.ErrorKind),
			strconv.Itoa(j.ClipsCount),
			j.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	printTable(w,
		[]string{"Job", "Status", "Stage", "Error", "Clips", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func printJob(w io.Writer, j jobs.Job) {
	fmt.Fprintf(w, "Job:      %s\n", j.ID)
	fmt.Fprintf(w, "Source:   %s\n", orDash(j.SourceURL))
	fmt.Fprintf(w, "Status:   %s\n", j.Status)
	fmt.Fprintf(w, "Stage:    %s\n", orDash(j.CurrentStage))
	if j.Status == jobs.StatusFailed {
		fmt.Fprintf(w, "Failed:   %s (%s)\n", j.FailedStage, orDash(j.ErrorKind))
		fmt.Fprintf(w, "Error:    %s\n", j.ErrorMessage)
	}
	fmt.Fprintf(w, "Clips:    %d\n", j.ClipsCount)
	fmt.Fprintf(w, "Created:  %s\n", j.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Updated:  %s\n", j.UpdatedAt.Local().Format(time.DateTime))
}

func newClipsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clips <job-id>",
		Short: "Show the clip manifest of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := resolveJobID(args[0], false)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := pipeline.OpenStore(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			m, err := artifacts.LoadManifest(cmd.Context(), store, jobID)
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), m)
			return nil
		},
	}
}
