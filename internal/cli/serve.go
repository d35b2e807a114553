package cli

import (
	"github.com/spf13/cobra"

	"github.com/forPelevin/vodclips/internal/httpapi"
	"github.com/forPelevin/vodclips/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve job status, manifests and clip downloads over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()

			addr := app.Config.Server.Bind
			if bind != "" {
				addr = bind
			}

			// Load the transcriber in the background so /health reports its progress.
			go func() {
				if err := app.Transcriber.Warmup(cmd.Context()); err != nil {
					app.Logger.Warn("transcriber not ready", logging.Error(err))
				}
			}()

			srv := httpapi.New(httpapi.Deps{
				Store:       app.Store,
				Jobs:        app.Jobs,
				Transcriber: app.Transcriber,
				Logger:      app.Logger,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from config)")
	return cmd
}
