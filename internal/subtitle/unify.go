package subtitle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/yavdl/yavdl/internal/types"
	"github.com/yavdl/yavdl/internal/urlmangle"
)

// Config controls subtitle fetching and unification.
type Config struct {
	// HTTPClient is the client used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// CaptionBaseURL is the timedtext endpoint base. Defaults to
	// http://video.google.com.
	CaptionBaseURL string

	// AnnotationBaseURL is the annotation endpoint base. Defaults to
	// http://www.google.com.
	AnnotationBaseURL string

	// Transform is applied to every outbound URL before dispatch.
	Transform urlmangle.Transform

	// KeepSpam disables the spam filter on annotation events.
	KeepSpam bool
}

// Unifier fetches both subtitle streams for a video and merges them into
// one ordered event timeline. Absence of either stream is not an error.
type Unifier struct {
	client         *http.Client
	captionBase    string
	annotationBase string
	transform      urlmangle.Transform
	filterSpam     bool
}

func New(cfg Config) *Unifier {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	captionBase := cfg.CaptionBaseURL
	if captionBase == "" {
		captionBase = "http://video.google.com"
	}
	annotationBase := cfg.AnnotationBaseURL
	if annotationBase == "" {
		annotationBase = "http://www.google.com"
	}
	transform := cfg.Transform
	if transform == nil {
		transform = urlmangle.Identity
	}
	return &Unifier{
		client:         client,
		captionBase:    captionBase,
		annotationBase: annotationBase,
		transform:      transform,
		filterSpam:     !cfg.KeepSpam,
	}
}

// Result is the outcome of unifying one video's subtitle streams.
type Result struct {
	// Events is the unified timeline, ascending by start time; captions
	// precede annotations at equal start.
	Events []Event

	// Track is the caption track the events were built from, if any.
	Track *Track

	// Warnings records individual entries that were skipped as malformed.
	Warnings []*types.ParseError
}

// Unify fetches the caption and annotation streams for a video, parses
// both, and merges them. Captions come from the first listed track. A
// missing stream contributes zero events; malformed entries are skipped
// and recorded, never failing the video.
func (u *Unifier) Unify(ctx context.Context, videoID types.VideoID) (*Result, error) {
	logger := zerolog.Ctx(ctx)
	result := &Result{}

	tracks, err := u.Tracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	var captions []Event
	if len(tracks) > 0 {
		track := tracks[0]
		result.Track = &track
		var warnings []*types.ParseError
		captions, warnings, err = u.CaptionEvents(ctx, videoID, track)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)
	} else {
		logger.Debug().Str("video_id", string(videoID)).Msg("no timedtext tracks")
	}

	annotations, warnings, err := u.AnnotationEvents(ctx, videoID)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	result.Events = MergeEvents(captions, annotations)
	for _, w := range result.Warnings {
		logger.Warn().Str("video_id", string(videoID)).Msg(w.Error())
	}
	return result, nil
}

// Tracks lists the video's timedtext caption tracks. An absent listing
// yields an empty slice.
func (u *Unifier) Tracks(ctx context.Context, videoID types.VideoID) ([]Track, error) {
	listURL := fmt.Sprintf("%s/timedtext?v=%s&type=list", u.captionBase, url.QueryEscape(string(videoID)))
	body, err := u.fetch(ctx, listURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return ParseTrackList(body)
}

// CaptionEvents fetches and parses one timedtext track.
func (u *Unifier) CaptionEvents(ctx context.Context, videoID types.VideoID, track Track) ([]Event, []*types.ParseError, error) {
	trackURL := fmt.Sprintf("%s/timedtext?hl=en&v=%s&type=track&name=%s&lang=%s",
		u.captionBase, url.QueryEscape(string(videoID)), url.QueryEscape(track.Name), url.QueryEscape(track.LangCode))
	body, err := u.fetch(ctx, trackURL)
	if err != nil {
		return nil, nil, err
	}
	if len(body) == 0 {
		return nil, nil, nil
	}
	events, warnings := ParseCaptions(body)
	return events, warnings, nil
}

// AnnotationEvents fetches and parses the video's annotation stream.
func (u *Unifier) AnnotationEvents(ctx context.Context, videoID types.VideoID) ([]Event, []*types.ParseError, error) {
	annoURL := fmt.Sprintf("%s/reviews/y/read2?video_id=%s", u.annotationBase, url.QueryEscape(string(videoID)))
	body, err := u.fetch(ctx, annoURL)
	if err != nil {
		return nil, nil, err
	}
	if len(body) == 0 {
		return nil, nil, nil
	}
	events, warnings := ParseAnnotations(body, u.filterSpam)
	return events, warnings, nil
}

// fetch issues one mangled GET. A 404 counts as stream absence, not an
// error; other non-2xx statuses are network failures.
func (u *Unifier) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target := u.transform(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &types.NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &types.NetworkError{URL: target, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{URL: target, Err: err}
	}
	return body, nil
}
