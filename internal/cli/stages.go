package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vodclips/internal/pipeline"
	"github.com/forPelevin/vodclips/internal/usecase"
)

// runStage runs one stage under the orchestrator after tune adjusts the
// configured parameters.
func runStage(cmd *cobra.Command, ctx *commandContext, req pipeline.Request, stage string, tune func(*pipeline.Params)) error {
	app, err := ctx.app()
	if err != nil {
		return err
	}
	defer app.Close()

	orch := app.Orchestrator
	if tune != nil {
		p := orch.Params()
		tune(&p)
		orch = orch.WithParams(p)
	}
	res, err := orch.RunStage(cmd.Context(), req, stage)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var jobFlag string
	cmd := &cobra.Command{
		Use:   "ingest <source-url>",
		Short: "Download a video and extract its audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := resolveJobID(jobFlag, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s\n", jobID)
			return runStage(cmd, ctx, pipeline.Request{JobID: jobID, SourceURL: args[0]}, usecase.StageIngest, nil)
		},
	}
	cmd.Flags().StringVar(&jobFlag, "job", "", "Job id (default: a new random id)")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <job-id>",
		Short: "Transcribe the audio of an ingested job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := resolveJobID(args[0], false)
			if err != nil {
				return err
			}
			return runStage(cmd, ctx, pipeline.Request{JobID: jobID}, usecase.StageTranscribe, nil)
		},
	}
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		window    float64
		step      float64
		threshold float64
		top       int
	)
	cmd := &cobra.Command{
		Use:   "analyze <job-id>",
		Short: "Score the audio of a job and rank the loudest windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := resolveJobID(args[0], false)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if err := positiveFlag(cmd, "top", top); err != nil {
				return err
			}
			return runStage(cmd, ctx, pipeline.Request{JobID: jobID}, usecase.StageAnalyze, func(p *pipeline.Params) {
				if flags.Changed("window") {
					p.WindowSize = window
				}
				if flags.Changed("step") {
					p.StepSize = step
				}
				if flags.Changed("threshold") {
					p.EnergyThreshold = threshold
				}
				if flags.Changed("top") {
					p.TopN = top
				}
			})
		},
	}
	cmd.Flags().Float64Var(&window, "window", 0, "Window size in seconds")
	cmd.Flags().Float64Var(&step, "step", 0, "Step between windows in seconds")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum RMS energy of a kept window")
	cmd.Flags().IntVar(&top, "top", 0, "Number of ranked windows to keep")
	return cmd
}

func newSynthesizeCommand(ctx *commandContext) *cobra.Command {
	var maxClips int
	cmd := &cobra.Command{
		Use:   "synthesize <job-id>",
		Short: "Cut clips and subtitles from an analyzed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := resolveJobID(args[0], false)
			if err != nil {
				return err
			}
			if err := positiveFlag(cmd, "max-clips", maxClips); err != nil {
				return err
			}
			changed := cmd.Flags().Changed("max-clips")
			return runStage(cmd, ctx, pipeline.Request{JobID: jobID}, usecase.StageSynthesize, func(p *pipeline.Params) {
				if changed {
					p.MaxClips = maxClips
				}
			})
		},
	}
	cmd.Flags().IntVar(&maxClips, "max-clips", 0, "Number of clips to cut (default from config)")
	return cmd
}

func positiveFlag(cmd *cobra.Command, name string, v int) error {
	if cmd.Flags().Changed(name) && v <= 0 {
		return fmt.Errorf("--%s must be > 0, got %d", name, v)
	}
	return nil
}
