package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yavdl/yavdl/internal/types"
)

func videoInfoBody(t *testing.T, status, title, fmtMap, defaultFmt string) string {
	t.Helper()
	v := url.Values{}
	v.Set("status", status)
	if title != "" {
		v.Set("title", title)
	}
	if fmtMap != "" {
		v.Set("fmt_url_map", fmtMap)
	}
	if defaultFmt != "" {
		v.Set("default_fmt", defaultFmt)
	}
	return v.Encode()
}

func TestLookup_ParsesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_video_info", r.URL.Path)
		assert.Equal(t, "dQw4w9WgXcQ", r.URL.Query().Get("video_id"))
		body := videoInfoBody(t, "ok", "Test Video",
			"22|http://media.invalid/22,34|http://media.invalid/34", "34")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	listing, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "Test Video", listing.Title)
	require.Len(t, listing.Formats, 2)
	assert.Equal(t, 22, listing.Formats[0].ID)
	assert.Equal(t, "mp4", listing.Formats[0].Container)
	assert.Equal(t, 720, listing.Formats[0].QualityRank)
	assert.Equal(t, "http://media.invalid/22", listing.Formats[0].SourceURL)
	assert.True(t, listing.HasDefault)
	assert.Equal(t, 34, listing.DefaultFormat)
}

func TestLookup_NoDeclaredDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(videoInfoBody(t, "ok", "x", "18|http://media.invalid/18", "")))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	listing, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.False(t, listing.HasDefault)
}

func TestLookup_UnavailableVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := url.Values{}
		v.Set("status", "fail")
		v.Set("reason", "Video removed by uploader")
		_, _ = w.Write([]byte(v.Encode()))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	require.ErrorIs(t, err, types.ErrVideoUnavailable)
	assert.Contains(t, err.Error(), "removed by uploader")
}

func TestLookup_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(videoInfoBody(t, "ok", "x", "18|http://media.invalid/18", "")))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client(), MaxRetries: 2, InitialBackoff: 1})
	_, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLookup_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client(), MaxRetries: 3, InitialBackoff: 1})
	_, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	var ne *types.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_AppliesURLTransform(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(videoInfoBody(t, "ok", "x", "18|http://media.invalid/18", "")))
	}))
	defer srv.Close()

	// Transform reroutes the catalog request onto a gateway-style path.
	c := New(Config{
		BaseURL:    "http://unreachable.invalid",
		HTTPClient: srv.Client(),
		Transform: func(string) string {
			return srv.URL + "/gateway"
		},
	})
	_, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "/gateway", gotPath)
}

func TestProbe_RangedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 0-0/123456")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte{0})
	}))
	defer srv.Close()

	c := New(Config{HTTPClient: srv.Client()})
	size, mime, err := c.Probe(context.Background(), srv.URL+"/media")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), size)
	assert.Equal(t, "video/mp4", mime)
}

func TestProbe_PlainResponseFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/webm; charset=binary")
		_, _ = w.Write(make([]byte, 512))
	}))
	defer srv.Close()

	c := New(Config{HTTPClient: srv.Client()})
	size, mime, err := c.Probe(context.Background(), srv.URL+"/media")
	require.NoError(t, err)
	assert.Equal(t, int64(512), size)
	assert.Equal(t, "video/webm", mime)
}

func TestProbe_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{HTTPClient: srv.Client()})
	_, _, err := c.Probe(context.Background(), srv.URL+"/media")
	var ne *types.NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestExtForMIME(t *testing.T) {
	assert.Equal(t, "mp4", ExtForMIME("video/mp4"))
	assert.Equal(t, "3gp", ExtForMIME("video/3gpp"))
	assert.Equal(t, "", ExtForMIME("application/octet-stream"))
}

func TestLookup_ExperimentalTierFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("experimental_formats"))
		_, _ = w.Write([]byte(videoInfoBody(t, "ok", "x", "18|http://media.invalid/18", "")))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client(), Experimental: true})
	_, err := c.Lookup(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
}
