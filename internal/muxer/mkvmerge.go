// Package muxer joins a downloaded media file and its subtitle tracks
// into one Matroska container by invoking the external mkvmerge binary.
package muxer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yavdl/yavdl/internal/types"
)

const mkvmergeCommand = "mkvmerge"

// diagnosticTailLimit bounds how much muxer output a MuxError carries.
const diagnosticTailLimit = 2048

// CommandRunner executes the external muxer and returns its combined
// output. Injectable for tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// SubtitleTrack is one subtitle input for a mux job.
type SubtitleTrack struct {
	Path     string
	Language string
	VideoID  types.VideoID
}

// Job describes one mux invocation: exactly one media input and zero or
// more subtitle tracks, all for the same video.
type Job struct {
	VideoID      types.VideoID
	MediaPath    string
	MediaVideoID types.VideoID
	Subtitles    []SubtitleTrack
	OutputPath   string
}

// Muxer runs mux jobs. The zero value is not usable; construct with New.
type Muxer struct {
	run CommandRunner
}

func New() *Muxer {
	return &Muxer{run: defaultCommandRunner}
}

// WithCommandRunner replaces the external command runner, for tests.
func (m *Muxer) WithCommandRunner(r CommandRunner) {
	if r != nil {
		m.run = r
	}
}

// Mux produces the job's output container. The muxer writes to a temp
// path and renames into place on success only; a failed run never leaves
// a partial file at OutputPath.
func (m *Muxer) Mux(ctx context.Context, job Job) (string, error) {
	if err := validateJob(job); err != nil {
		return "", err
	}

	tmpPath := job.OutputPath + ".tmp"
	args := buildArgs(job, tmpPath)

	zerolog.Ctx(ctx).Debug().
		Str("video_id", string(job.VideoID)).
		Str("output", job.OutputPath).
		Int("subtitle_tracks", len(job.Subtitles)).
		Msg("invoking mkvmerge")

	output, err := m.run(ctx, mkvmergeCommand, args...)
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", &types.MuxError{VideoID: job.VideoID, Diagnostic: diagnosticTail(output), Err: err}
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return "", &types.MuxError{
			VideoID:    job.VideoID,
			Diagnostic: diagnosticTail(output),
			Err:        fmt.Errorf("muxer produced no output: %w", err),
		}
	}
	if err := os.Rename(tmpPath, job.OutputPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", &types.MuxError{VideoID: job.VideoID, Err: err}
	}
	return job.OutputPath, nil
}

// validateJob checks input presence and id correlation. Every input must
// carry the job's video id; correlation is asserted by the caller's
// bookkeeping, not by inspecting file contents.
func validateJob(job Job) error {
	if job.MediaPath == "" {
		return errors.New("mux job requires a media path")
	}
	if job.OutputPath == "" {
		return errors.New("mux job requires an output path")
	}
	if job.MediaVideoID != job.VideoID {
		return fmt.Errorf("media input for video %s offered to mux job for video %s", job.MediaVideoID, job.VideoID)
	}
	if _, err := os.Stat(job.MediaPath); err != nil {
		return fmt.Errorf("media input missing: %w", err)
	}
	for _, sub := range job.Subtitles {
		if sub.VideoID != job.VideoID {
			return fmt.Errorf("subtitle input for video %s offered to mux job for video %s", sub.VideoID, job.VideoID)
		}
		if _, err := os.Stat(sub.Path); err != nil {
			return fmt.Errorf("subtitle input missing: %w", err)
		}
	}
	return nil
}

func buildArgs(job Job, outputPath string) []string {
	args := []string{"-o", outputPath, job.MediaPath}
	for _, sub := range job.Subtitles {
		lang := sub.Language
		if lang == "" {
			lang = "und"
		}
		args = append(args, "--language", "0:"+lang, sub.Path)
	}
	return args
}

// diagnosticTail keeps the end of the muxer's output, where mkvmerge
// prints its error summary.
func diagnosticTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > diagnosticTailLimit {
		text = "..." + text[len(text)-diagnosticTailLimit:]
	}
	return text
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
