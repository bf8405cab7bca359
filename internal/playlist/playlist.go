// Package playlist reduces a remote playlist feed to an ordered,
// de-duplicated list of video ids. It is a thin collaborator; a failure
// here aborts only playlist expansion, never sibling work.
package playlist

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/yavdl/yavdl/internal/types"
	"github.com/yavdl/yavdl/internal/urlmangle"
)

// Config controls playlist feed retrieval.
type Config struct {
	// HTTPClient is the client used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// BaseURL is the feed endpoint base. Defaults to http://gdata.youtube.com.
	BaseURL string

	// Transform is applied to the feed URL before dispatch.
	Transform urlmangle.Transform
}

// Client fetches playlist feeds.
type Client struct {
	client    *http.Client
	baseURL   string
	transform urlmangle.Transform
}

func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://gdata.youtube.com"
	}
	transform := cfg.Transform
	if transform == nil {
		transform = urlmangle.Identity
	}
	return &Client{client: client, baseURL: baseURL, transform: transform}
}

type feedDoc struct {
	Links []feedLink `xml:"entry>link"`
}

type feedLink struct {
	Type string `xml:"type,attr"`
	Href string `xml:"href,attr"`
}

// VideoIDs fetches a playlist feed and returns its video ids in feed
// order with duplicates removed.
func (c *Client) VideoIDs(ctx context.Context, playlistID string) ([]types.VideoID, error) {
	feedURL := c.transform(fmt.Sprintf("%s/feeds/api/playlists/%s?v=2", c.baseURL, url.PathEscape(playlistID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.NetworkError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &types.NetworkError{URL: feedURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{URL: feedURL, Err: err}
	}

	ids, err := parseFeed(body)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Str("playlist_id", playlistID).
		Int("entries", len(ids)).
		Msg("playlist expanded")
	return ids, nil
}

// parseFeed extracts video ids from the feed's text/html entry links.
// Links that do not resolve to a video id are skipped.
func parseFeed(data []byte) ([]types.VideoID, error) {
	var doc feedDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse playlist feed: %w", err)
	}

	seen := make(map[types.VideoID]struct{})
	var ids []types.VideoID
	for _, link := range doc.Links {
		if link.Type != "text/html" {
			continue
		}
		id, err := types.NormalizeVideoID(link.Href)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
