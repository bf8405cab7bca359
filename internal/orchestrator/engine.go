// Package orchestrator drives the per-video pipeline: catalog lookup,
// format selection, media download, subtitle unification, and muxing,
// across a bounded pool of concurrent video workers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yavdl/yavdl/internal/catalog"
	"github.com/yavdl/yavdl/internal/downloader"
	"github.com/yavdl/yavdl/internal/logging"
	"github.com/yavdl/yavdl/internal/muxer"
	"github.com/yavdl/yavdl/internal/selector"
	"github.com/yavdl/yavdl/internal/subtitle"
	"github.com/yavdl/yavdl/internal/types"
)

// Config assembles the collaborators and run options for one engine.
type Config struct {
	Catalog    *catalog.Catalog
	Downloader *downloader.Downloader
	Unifier    *subtitle.Unifier
	Muxer      *muxer.Muxer

	// OutputDir receives final artifacts; TempDir holds partial downloads.
	// TempDir defaults to OutputDir.
	OutputDir string
	TempDir   string

	// Workers bounds how many videos are processed concurrently.
	Workers int

	// List is the active preference list. Forced, when set, bypasses it
	// with a single explicitly requested format.
	List   selector.PreferenceList
	Forced *types.FormatID

	// Mask selects which data streams to fetch.
	Mask DataMask

	// MKV muxes media and subtitles into one container per video.
	MKV bool
}

// Engine runs the pipeline. Failures are scoped to one video id; one
// video failing never aborts its siblings.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.TempDir == "" {
		cfg.TempDir = cfg.OutputDir
	}
	if cfg.List.Name == "" {
		cfg.List = selector.DefaultPreferenceList()
	}
	return &Engine{cfg: cfg}
}

// VideoError records one video's failure.
type VideoError struct {
	VideoID types.VideoID
	Err     error
}

func (e VideoError) Error() string {
	return fmt.Sprintf("video %s: %v", e.VideoID, e.Err)
}

// Run processes the given videos concurrently up to the configured worker
// bound and returns the per-video failures.
func (e *Engine) Run(ctx context.Context, videoIDs []types.VideoID) []VideoError {
	var mu sync.Mutex
	var failures []VideoError

	group := &errgroup.Group{}
	group.SetLimit(e.cfg.Workers)
	for _, id := range videoIDs {
		id := id
		group.Go(func() error {
			if err := e.processVideo(logging.WithVideo(ctx, id), id); err != nil {
				mu.Lock()
				failures = append(failures, VideoError{VideoID: id, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return failures
}

func (e *Engine) processVideo(ctx context.Context, videoID types.VideoID) error {
	logger := zerolog.Ctx(ctx)

	listing, err := e.cfg.Catalog.Lookup(ctx, videoID)
	if err != nil {
		return err
	}

	list := e.cfg.List
	if e.cfg.Forced != nil {
		list = selector.ForcedPreferenceList(*e.cfg.Forced)
	}
	format, err := selector.Select(list, listing)
	if err != nil {
		return err
	}
	logger.Info().Int("format", format.ID).Str("title", listing.Title).Msg("format selected")

	baseName := outputBaseName(listing.Title, videoID, format.ID)
	mediaPath := filepath.Join(e.cfg.OutputDir, baseName+"."+e.mediaExt(ctx, format))
	subsPath := filepath.Join(e.cfg.OutputDir, baseName+".ass")
	containerPath := filepath.Join(e.cfg.OutputDir, baseName+".mkv")

	if e.cfg.MKV {
		if _, err := os.Stat(containerPath); err == nil {
			logger.Info().Str("path", containerPath).Msg("container already exists")
			return nil
		}
	}

	// Media download and subtitle unification run concurrently; muxing
	// waits for both.
	var unified *subtitle.Result
	group, groupCtx := errgroup.WithContext(ctx)
	if e.cfg.Mask.Media {
		group.Go(func() error {
			return e.downloadMedia(groupCtx, videoID, format, mediaPath)
		})
	}
	if e.cfg.Mask.subtitles() {
		group.Go(func() error {
			result, err := e.unify(groupCtx, videoID)
			if err != nil {
				return err
			}
			unified = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	var subs []muxer.SubtitleTrack
	if unified != nil && len(unified.Events) > 0 {
		if err := writeSubtitleFile(subsPath, unified.Events); err != nil {
			return err
		}
		lang := "und"
		if unified.Track != nil {
			lang = subtitle.LanguageTag(unified.Track.LangCode)
		}
		subs = append(subs, muxer.SubtitleTrack{Path: subsPath, Language: lang, VideoID: videoID})
		logger.Info().Str("path", subsPath).Int("events", len(unified.Events)).Msg("subtitle track written")
	}

	if !e.cfg.MKV || !e.cfg.Mask.Media {
		return nil
	}
	out, err := e.cfg.Muxer.Mux(ctx, muxer.Job{
		VideoID:      videoID,
		MediaPath:    mediaPath,
		MediaVideoID: videoID,
		Subtitles:    subs,
		OutputPath:   containerPath,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("path", out).Msg("container written")
	return nil
}

// mediaExt picks the output extension from the format-number table,
// falling back to a MIME probe for numbers the table does not know.
func (e *Engine) mediaExt(ctx context.Context, format types.FormatDescriptor) string {
	ext := catalog.ContainerExt(format.ID)
	if ext != "bin" {
		return ext
	}
	_, mime, err := e.cfg.Catalog.Probe(ctx, format.SourceURL)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("format", format.ID).Msg("mime probe failed")
		return ext
	}
	if probed := catalog.ExtForMIME(mime); probed != "" {
		return probed
	}
	return ext
}

func (e *Engine) downloadMedia(ctx context.Context, videoID types.VideoID, format types.FormatDescriptor, mediaPath string) error {
	session := downloader.NewSession(videoID, format.ID, format.SourceURL, mediaPath)
	if e.cfg.TempDir != e.cfg.OutputDir {
		session.TempPath = filepath.Join(e.cfg.TempDir, filepath.Base(mediaPath)+downloader.TempSuffix)
	}
	return e.cfg.Downloader.Download(ctx, session)
}

// unify fetches the masked subset of subtitle streams and merges them.
func (e *Engine) unify(ctx context.Context, videoID types.VideoID) (*subtitle.Result, error) {
	if e.cfg.Mask.TimedText && e.cfg.Mask.Annotations {
		return e.cfg.Unifier.Unify(ctx, videoID)
	}

	result := &subtitle.Result{}
	var captions, annotations []subtitle.Event
	if e.cfg.Mask.TimedText {
		tracks, err := e.cfg.Unifier.Tracks(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if len(tracks) > 0 {
			track := tracks[0]
			result.Track = &track
			var warnings []*types.ParseError
			captions, warnings, err = e.cfg.Unifier.CaptionEvents(ctx, videoID, track)
			if err != nil {
				return nil, err
			}
			result.Warnings = append(result.Warnings, warnings...)
		}
	}
	if e.cfg.Mask.Annotations {
		events, warnings, err := e.cfg.Unifier.AnnotationEvents(ctx, videoID)
		if err != nil {
			return nil, err
		}
		annotations = events
		result.Warnings = append(result.Warnings, warnings...)
	}
	result.Events = subtitle.MergeEvents(captions, annotations)
	return result, nil
}

func writeSubtitleFile(path string, events []subtitle.Event) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := subtitle.WriteASS(file, events); err != nil {
		file.Close()
		return errors.Join(err, os.Remove(path))
	}
	return file.Close()
}
