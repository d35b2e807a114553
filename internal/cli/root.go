package cli

import (
	"github.com/spf13/cobra"
)

const skipConfigLoad = "skipConfigLoad"

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	root := &cobra.Command{
		Use:           "vodclips",
		Short:         "Cut highlight clips with subtitles from long videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigLoad] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(newRunCommand(ctx))
	root.AddCommand(newIngestCommand(ctx))
	root.AddCommand(newTranscribeCommand(ctx))
	root.AddCommand(newAnalyzeCommand(ctx))
	root.AddCommand(newSynthesizeCommand(ctx))
	root.AddCommand(newStatusCommand(ctx))
	root.AddCommand(newClipsCommand(ctx))
	root.AddCommand(newServeCommand(ctx))
	root.AddCommand(newDoctorCommand(ctx))
	root.AddCommand(newConfigCommand())
	return root
}
