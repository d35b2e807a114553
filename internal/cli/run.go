package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vodclips/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		jobFlag  string
		maxClips int
	)
	cmd := &cobra.Command{
		Use:   "run <source-url>",
		Short: "Download a video and run every stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := positiveFlag(cmd, "max-clips", maxClips); err != nil {
				return err
			}
			jobID, err := resolveJobID(jobFlag, true)
			if err != nil {
				return err
			}
			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()

			orch := app.Orchestrator
			if cmd.Flags().Changed("max-clips") {
				p := orch.Params()
				p.MaxClips = maxClips
				orch = orch.WithParams(p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s\n", jobID)
			res, err := orch.Run(cmd.Context(), pipeline.Request{JobID: jobID, SourceURL: args[0]})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobFlag, "job", "", "Job id (default: a new random id)")
	cmd.Flags().IntVar(&maxClips, "max-clips", 0, "Number of clips to cut (default from config)")
	return cmd
}

// resolveJobID normalizes a user supplied id, or mints one when allowed.
func resolveJobID(raw string, mint bool) (string, error) {
	if raw == "" {
		if !mint {
			return "", fmt.Errorf("job id is required")
		}
		return pipeline.NewJobID(), nil
	}
	id := pipeline.NormalizeJobID(raw)
	if err := pipeline.ValidateJobID(id); err != nil {
		return "", err
	}
	return id, nil
}
