package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vodclips/internal/config"
	"github.com/forPelevin/vodclips/internal/ports"
)

const doctorTimeout = 15 * time.Second

type check struct {
	name   string
	ok     bool
	detail string
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, storage and the transcription backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.app()
			if err != nil {
				return err
			}
			defer app.Close()
			cfg := app.Config

			c, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			checks := []check{
				versionCheck("ffmpeg", cfg.Tools.FFmpeg, func() (string, error) { return app.Video.Version(c) }),
				lookCheck("ffprobe", cfg.Tools.FFprobe),
				versionCheck("yt-dlp", cfg.Tools.YtDlp, func() (string, error) { return app.Downloader.Version(c) }),
			}
			if cfg.Transcription.Backend == config.TranscriberWhisperCPP {
				checks = append(checks, lookCheck("whisper.cpp", cfg.Transcription.WhisperBin))
			}
			checks = append(checks, storeCheck(c, cfg, app.Store), pingCheck(c, "job database", cfg.Paths.DBPath, app.Jobs.Ping))

			warmErr := app.Transcriber.Warmup(c)
			tc := check{name: "transcriber (" + cfg.Transcription.Backend + ")", ok: warmErr == nil, detail: app.Transcriber.State()}
			if warmErr != nil {
				tc.detail += ": " + warmErr.Error()
			}
			checks = append(checks, tc)

			rows := make([][]string, 0, len(checks))
			failed := 0
			for _, ch := range checks {
				status := "ok"
				if !ch.ok {
					status = "FAIL"
					failed++
				}
				rows = append(rows, []string{ch.name, status, ch.detail})
			}
			printTable(cmd.OutOrStdout(), []string{"Check", "Status", "Detail"}, rows, nil)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func lookCheck(name, bin string) check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return check{name: name, detail: err.Error()}
	}
	return check{name: name, ok: true, detail: path}
}

func versionCheck(name, bin string, version func() (string, error)) check {
	c := lookCheck(name, bin)
	if !c.ok {
		return c
	}
	v, err := version()
	if err != nil {
		return check{name: name, detail: err.Error()}
	}
	return check{name: name, ok: true, detail: strings.TrimSpace(v)}
}

func storeCheck(ctx context.Context, cfg *config.Config, store ports.BlobStore) check {
	name := "store (" + cfg.Store.Backend + ")"
	if p, ok := store.(ports.Pinger); ok {
		return pingCheck(ctx, name, cfg.Store.Dir, p.Ping)
	}
	return check{name: name, ok: true, detail: cfg.Store.Dir}
}

func pingCheck(ctx context.Context, name, detail string, ping func(context.Context) error) check {
	if err := ping(ctx); err != nil {
		return check{name: name, detail: err.Error()}
	}
	return check{name: name, ok: true, detail: detail}
}
