package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yavdl/yavdl/internal/catalog"
	"github.com/yavdl/yavdl/internal/config"
	"github.com/yavdl/yavdl/internal/downloader"
	"github.com/yavdl/yavdl/internal/logging"
	"github.com/yavdl/yavdl/internal/muxer"
	"github.com/yavdl/yavdl/internal/orchestrator"
	"github.com/yavdl/yavdl/internal/playlist"
	"github.com/yavdl/yavdl/internal/subtitle"
	"github.com/yavdl/yavdl/internal/types"
)

type rootFlags struct {
	configPath string
	format     string
	fpl        string
	playlistID string
	mangler    string
	dataType   string
	mkv        bool
	nomkv      bool
	quiet      bool
	verbose    bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "yavdl [video id or url]...",
		Short:         "Download videos with unified ASS subtitles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, flags, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "configuration file path")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "only log warnings and errors")
	pf.BoolVar(&flags.verbose, "verbose", false, "enable debug logging")

	f := rootCmd.Flags()
	f.StringVar(&flags.format, "fmt", "", "force a format id, bypassing preference lists")
	f.StringVar(&flags.fpl, "fpl", "", "named format preference list")
	f.StringVar(&flags.playlistID, "playlist", "", "expand a playlist id into video ids")
	f.StringVarP(&flags.mangler, "url-mangler", "u", "", "URL mangler to apply to outbound requests")
	f.StringVar(&flags.dataType, "data-type", "", "data streams to fetch: any of v (media), a (annotations), t (captions)")
	f.BoolVar(&flags.mkv, "mkv", false, "mux media and subtitles into a Matroska container")
	f.BoolVar(&flags.nomkv, "nomkv", false, "keep media and subtitle files separate")
	rootCmd.MarkFlagsMutuallyExclusive("mkv", "nomkv")
	rootCmd.MarkFlagsMutuallyExclusive("fmt", "fpl")

	rootCmd.AddCommand(newListManglersCommand(flags))
	rootCmd.AddCommand(newFormatsCommand())

	return rootCmd
}

func runDownload(cmd *cobra.Command, flags *rootFlags, args []string) error {
	if len(args) == 0 && flags.playlistID == "" {
		return fmt.Errorf("nothing to do: give video ids/urls or --playlist")
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	rt, err := cfg.Compile()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, logging.Config{
		Quiet:   flags.quiet,
		Verbose: flags.verbose,
		Console: true,
	})
	ctx := logger.WithContext(cmd.Context())

	transform, err := rt.Registry.Resolve(flags.mangler)
	if err != nil {
		return err
	}

	videoIDs := make([]types.VideoID, 0, len(args))
	for _, arg := range args {
		id, err := types.NormalizeVideoID(arg)
		if err != nil {
			return fmt.Errorf("%q is not a video id or watch url", arg)
		}
		videoIDs = append(videoIDs, id)
	}
	if flags.playlistID != "" {
		expanded, err := playlist.New(playlist.Config{Transform: transform}).VideoIDs(ctx, flags.playlistID)
		if err != nil {
			return err
		}
		videoIDs = append(videoIDs, expanded...)
	}
	if len(videoIDs) == 0 {
		return fmt.Errorf("no videos to process")
	}

	list := rt.DefaultList
	var forced *types.FormatID
	switch {
	case flags.format != "":
		id, err := types.ParseFormatID(flags.format)
		if err != nil {
			return err
		}
		forced = &id
	case flags.fpl != "":
		if list, err = rt.List(flags.fpl); err != nil {
			return err
		}
	}

	mask, err := orchestrator.ParseDataMask(flags.dataType)
	if err != nil {
		return err
	}

	mkv := cfg.Output.MKV
	if flags.mkv {
		mkv = true
	}
	if flags.nomkv {
		mkv = false
	}

	engine := orchestrator.New(orchestrator.Config{
		Catalog: catalog.New(catalog.Config{
			BaseURL:        cfg.Catalog.BaseURL,
			Transform:      transform,
			Experimental:   cfg.Catalog.ExperimentalFormats,
			MaxRetries:     cfg.Download.MaxRetries,
			InitialBackoff: time.Duration(cfg.Download.InitialBackoffMS) * time.Millisecond,
		}),
		Downloader: downloader.New(downloader.Config{
			Transform: transform,
			Transport: downloader.TransportConfig{
				MaxRetries:     cfg.Download.MaxRetries,
				InitialBackoff: time.Duration(cfg.Download.InitialBackoffMS) * time.Millisecond,
				MaxBackoff:     time.Duration(cfg.Download.MaxBackoffMS) * time.Millisecond,
			},
			Progress:          newProgressPrinter(flags.quiet),
			ShrinkTolerance:   cfg.Download.ShrinkToleranceMiB << 20,
			ResumeVerifyBytes: cfg.Download.ResumeVerifyKiB << 10,
		}),
		Unifier: subtitle.New(subtitle.Config{
			Transform: transform,
			KeepSpam:  !cfg.Subtitles.FilterSpam,
		}),
		Muxer:     muxer.New(),
		OutputDir: cfg.Paths.OutputDir,
		TempDir:   cfg.Paths.TempDir,
		Workers:   cfg.Download.Workers,
		List:      list,
		Forced:    forced,
		Mask:      mask,
		MKV:       mkv,
	})

	failures := engine.Run(ctx, videoIDs)
	for _, failure := range failures {
		logger.Error().Str("video_id", string(failure.VideoID)).Err(failure.Err).Msg("video failed")
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d videos failed", len(failures), len(videoIDs))
	}
	return nil
}

// newProgressPrinter reports download progress on stderr. Reports arrive
// rate-limited from the downloader, so printing each one is fine.
func newProgressPrinter(quiet bool) downloader.ProgressFunc {
	if quiet {
		return nil
	}
	return func(written, total int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%6.1f%% (%d/%d bytes)", float64(written)*100/float64(total), written, total)
		} else {
			fmt.Fprintf(os.Stderr, "\r%d bytes", written)
		}
		if written == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
