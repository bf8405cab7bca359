// Package catalog obtains the list of formats currently offered for a
// video id from the remote video-info endpoint.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yavdl/yavdl/internal/types"
	"github.com/yavdl/yavdl/internal/urlmangle"
)

// DefaultBaseURL is the production video-info endpoint host.
const DefaultBaseURL = "http://www.youtube.com"

// Config controls catalog construction.
type Config struct {
	// HTTPClient is the client used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// BaseURL overrides the video-info endpoint host, mainly for tests.
	BaseURL string

	// Transform is applied to every outbound URL before dispatch.
	// Defaults to the identity transform.
	Transform urlmangle.Transform

	// Experimental requests the experimental format tier from the endpoint.
	Experimental bool

	// MaxRetries bounds transient-failure retries per lookup.
	MaxRetries int

	// InitialBackoff is the first retry delay. Doubled per attempt up to 3s.
	InitialBackoff time.Duration
}

// Catalog fetches format listings. Safe for concurrent use.
type Catalog struct {
	client         *http.Client
	baseURL        string
	transform      urlmangle.Transform
	experimental   bool
	maxRetries     int
	initialBackoff time.Duration
}

func New(cfg Config) *Catalog {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transform := cfg.Transform
	if transform == nil {
		transform = urlmangle.Identity
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Catalog{
		client:         client,
		baseURL:        baseURL,
		transform:      transform,
		experimental:   cfg.Experimental,
		maxRetries:     maxRetries,
		initialBackoff: backoff,
	}
}

// Lookup fetches and parses the format listing for one video id.
func (c *Catalog) Lookup(ctx context.Context, videoID types.VideoID) (*types.Listing, error) {
	infoURL := fmt.Sprintf("%s/get_video_info?video_id=%s", c.baseURL, url.QueryEscape(string(videoID)))
	if c.experimental {
		infoURL += "&experimental_formats=1"
	}
	infoURL = c.transform(infoURL)

	body, err := c.getWithRetry(ctx, infoURL)
	if err != nil {
		return nil, err
	}
	listing, err := parseVideoInfo(videoID, string(body))
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Int("formats", len(listing.Formats)).
		Bool("has_default", listing.HasDefault).
		Msg("format catalog fetched")
	return listing, nil
}

// Probe issues a zero-length ranged request to learn a resource's total
// size and MIME type without fetching its body. A server that ignores the
// range still reports both via its plain 200 response.
func (c *Catalog) Probe(ctx context.Context, rawURL string) (size int64, mime string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.transform(rawURL), nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", &types.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	mime, _, _ = strings.Cut(resp.Header.Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)
	switch resp.StatusCode {
	case http.StatusPartialContent:
		total := int64(-1)
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if slash := strings.LastIndex(cr, "/"); slash >= 0 {
				if n, err := strconv.ParseInt(cr[slash+1:], 10, 64); err == nil {
					total = n
				}
			}
		}
		return total, mime, nil
	case http.StatusOK:
		return resp.ContentLength, mime, nil
	default:
		return 0, "", &types.NetworkError{URL: rawURL, Err: &statusError{Code: resp.StatusCode}}
	}
}

// ExtForMIME maps a probed media MIME type to a filename extension.
func ExtForMIME(mime string) string {
	switch mime {
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/x-flv":
		return "flv"
	case "video/3gpp":
		return "3gp"
	}
	return ""
}

func (c *Catalog) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := c.initialBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		body, err := c.getOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !isTransientStatus(err) || attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff *= 2; backoff > 3*time.Second {
			backoff = 3 * time.Second
		}
	}
	return nil, &types.NetworkError{URL: rawURL, Err: lastErr}
}

func (c *Catalog) getOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("catalog request failed: status=%d", e.Code)
}

func isTransientStatus(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		// Connection-level failures are assumed transient.
		return true
	}
	switch se.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseVideoInfo decodes the url-encoded video-info form:
// status=ok&title=...&fmt_url_map=22|url,35|url&default_fmt=34
func parseVideoInfo(videoID types.VideoID, body string) (*types.Listing, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, fmt.Errorf("malformed video info response: %w", err)
	}
	if status := values.Get("status"); status != "ok" {
		reason := values.Get("reason")
		if reason == "" {
			reason = "status=" + status
		}
		return nil, fmt.Errorf("%w: %s", types.ErrVideoUnavailable, reason)
	}

	listing := &types.Listing{
		VideoID: videoID,
		Title:   values.Get("title"),
	}
	fmtMap := values.Get("fmt_url_map")
	if fmtMap == "" {
		return nil, fmt.Errorf("video info for %s carries no format map", videoID)
	}
	for _, pair := range strings.Split(fmtMap, ",") {
		idStr, sourceURL, ok := strings.Cut(pair, "|")
		if !ok {
			return nil, fmt.Errorf("malformed format map entry %q", pair)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("malformed format id %q", idStr)
		}
		listing.Formats = append(listing.Formats, describeFormat(id, sourceURL))
	}

	if defaultStr := values.Get("default_fmt"); defaultStr != "" {
		id, err := strconv.Atoi(defaultStr)
		if err == nil {
			if _, offered := listing.Find(id); offered {
				listing.DefaultFormat = id
				listing.HasDefault = true
			}
		}
	}
	return listing, nil
}
