package downloader

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yavdl/yavdl/internal/types"
)

// mediaServer serves a byte blob with range support and fault injection.
type mediaServer struct {
	content    []byte
	noRanges   bool
	failAfter  int64 // abort the first data response after this many bytes
	failedOnce atomic.Bool
	requests   atomic.Int32
	dataBytes  atomic.Int64 // media payload bytes served, excluding probes
}

func (m *mediaServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		total := int64(len(m.content))
		rangeHeader := r.Header.Get("Range")

		if m.noRanges || rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
			w.WriteHeader(http.StatusOK)
			m.writeBody(w, m.content, rangeHeader == "")
			return
		}

		start, end, ok := parseRangeHeader(rangeHeader, total)
		if !ok || start >= total {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		body := m.content[start : end+1]
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusPartialContent)
		m.writeBody(w, body, start != 0 || end != 0)
	})
}

func (m *mediaServer) writeBody(w http.ResponseWriter, body []byte, isData bool) {
	if isData && m.failAfter > 0 && !m.failedOnce.Load() && int64(len(body)) > m.failAfter {
		m.failedOnce.Store(true)
		n, _ := w.Write(body[:m.failAfter])
		m.dataBytes.Add(int64(n))
		return
	}
	n, _ := w.Write(body)
	if isData {
		m.dataBytes.Add(int64(n))
	}
}

func parseRangeHeader(h string, total int64) (start, end int64, ok bool) {
	h = strings.TrimPrefix(h, "bytes=")
	startStr, endStr, found := strings.Cut(h, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end = total - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end >= total {
			return 0, 0, false
		}
	}
	return start, end, true
}

func randomContent(t *testing.T, n int) []byte {
	t.Helper()
	content := make([]byte, n)
	_, err := rand.Read(content)
	require.NoError(t, err)
	return content
}

func newTestSession(t *testing.T, url string) *Session {
	t.Helper()
	return NewSession("dQw4w9WgXcQ", 22, url, filepath.Join(t.TempDir(), "video.mp4"))
}

func TestDownload_Uninterrupted(t *testing.T) {
	content := randomContent(t, 300_000)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	d := New(Config{HTTPClient: srv.Client()})
	require.NoError(t, d.Download(context.Background(), s))

	assert.Equal(t, StateComplete, s.State)
	assert.Equal(t, int64(len(content)), s.BytesWritten)
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
	_, err = os.Stat(s.TempPath)
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestDownload_InterruptedThenResumedIsByteIdentical(t *testing.T) {
	content := randomContent(t, 1_000_000)
	m := &mediaServer{content: content, failAfter: 400_000}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	d := New(Config{HTTPClient: srv.Client(), Transport: TransportConfig{MaxRetries: 0}})

	err := d.Download(context.Background(), s)
	require.Error(t, err)
	var ne *types.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, StateInterrupted, s.State)
	assert.Equal(t, int64(400_000), fileSize(s.TempPath), "temp file preserved exactly as written")

	// Retry re-enters PROBING and resumes from the partial file.
	require.NoError(t, d.Download(context.Background(), s))
	assert.Equal(t, StateComplete, s.State)
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "resumed file must match an uninterrupted fetch")
}

func TestDownload_ResumeDoesNotRefetchWrittenBytes(t *testing.T) {
	content := randomContent(t, 100_000)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	require.NoError(t, os.WriteFile(s.TempPath, content[:60_000], 0o644))

	d := New(Config{HTTPClient: srv.Client()})
	require.NoError(t, d.Download(context.Background(), s))

	// One probe byte plus the missing suffix.
	assert.Equal(t, int64(100_000-60_000), m.dataBytes.Load())
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestDownload_CompletedRunPerformsNoFetch(t *testing.T) {
	m := &mediaServer{content: randomContent(t, 1000)}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	require.NoError(t, os.WriteFile(s.FinalPath, m.content, 0o644))

	d := New(Config{HTTPClient: srv.Client()})
	require.NoError(t, d.Download(context.Background(), s))
	assert.Equal(t, StateComplete, s.State)
	assert.Equal(t, int32(0), m.requests.Load(), "no network activity for a completed session")
}

func TestDownload_TempAlreadyCompletePromotedWithoutDataFetch(t *testing.T) {
	content := randomContent(t, 5000)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	require.NoError(t, os.WriteFile(s.TempPath, content, 0o644))

	d := New(Config{HTTPClient: srv.Client()})
	require.NoError(t, d.Download(context.Background(), s))
	assert.Equal(t, StateComplete, s.State)
	assert.Equal(t, int64(0), m.dataBytes.Load(), "probe only, no media bytes")
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestDownload_ShrunkRemoteRestartsFromZero(t *testing.T) {
	content := randomContent(t, 100_000)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	// Stale partial file larger than the remote resource.
	require.NoError(t, os.WriteFile(s.TempPath, randomContent(t, 120_000), 0o644))

	d := New(Config{HTTPClient: srv.Client()})
	require.NoError(t, d.Download(context.Background(), s))
	assert.Equal(t, StateComplete, s.State)
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestDownload_ShrinkBeyondToleranceFails(t *testing.T) {
	m := &mediaServer{content: randomContent(t, 1000)}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	require.NoError(t, os.WriteFile(s.TempPath, randomContent(t, 2000), 0o644))

	d := New(Config{HTTPClient: srv.Client(), ShrinkTolerance: 100})
	err := d.Download(context.Background(), s)
	var ce *types.CorruptionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, int64(2000), ce.TempBytes)
	assert.Equal(t, int64(1000), ce.RemoteBytes)
}

func TestDownload_NoRangeSupportFallsBackToFullFetch(t *testing.T) {
	content := randomContent(t, 50_000)
	m := &mediaServer{content: content, noRanges: true}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	// An existing partial file cannot be trusted without ranges.
	require.NoError(t, os.WriteFile(s.TempPath, content[:10_000], 0o644))

	d := New(Config{HTTPClient: srv.Client()})
	require.NoError(t, d.Download(context.Background(), s))
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestDownload_PermanentStatusIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	d := New(Config{HTTPClient: srv.Client(), Transport: TransportConfig{MaxRetries: 2}})
	err := d.Download(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State)
}

func TestDownload_CancellationLeavesSessionInterrupted(t *testing.T) {
	content := randomContent(t, 16<<20)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSession(t, srv.URL)
	d := New(Config{
		HTTPClient: srv.Client(),
		Progress: func(written, total int64) {
			if written > 0 {
				cancel()
			}
		},
		ProgressInterval: 1,
	})

	err := d.Download(ctx, s)
	require.Error(t, err)
	assert.Equal(t, StateInterrupted, s.State)
}

func TestDownload_SessionBusy(t *testing.T) {
	m := &mediaServer{content: randomContent(t, 1000)}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	lock := flock.New(s.TempPath + ".lock")
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = lock.Unlock() }()

	d := New(Config{HTTPClient: srv.Client()})
	err = d.Download(context.Background(), s)
	require.ErrorIs(t, err, types.ErrSessionBusy)
	assert.Equal(t, int64(0), fileSize(s.TempPath), "temp file untouched while busy")
}

func TestDownload_FinalProgressReportIsExact(t *testing.T) {
	content := randomContent(t, 250_000)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	var lastWritten, lastTotal atomic.Int64
	s := newTestSession(t, srv.URL)
	d := New(Config{
		HTTPClient: srv.Client(),
		Progress: func(written, total int64) {
			lastWritten.Store(written)
			lastTotal.Store(total)
		},
	})
	require.NoError(t, d.Download(context.Background(), s))
	assert.Equal(t, int64(len(content)), lastWritten.Load())
	assert.Equal(t, int64(len(content)), lastTotal.Load())
}

func TestDownload_ResumeTailVerificationDetectsChangedContent(t *testing.T) {
	content := randomContent(t, 80_000)
	m := &mediaServer{content: content}
	srv := httptest.NewServer(m.handler())
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	// Same length as a plausible partial file, different bytes.
	require.NoError(t, os.WriteFile(s.TempPath, randomContent(t, 40_000), 0o644))

	d := New(Config{HTTPClient: srv.Client(), ResumeVerifyBytes: 128, Transport: TransportConfig{MaxRetries: 1}})
	require.NoError(t, d.Download(context.Background(), s))
	got, err := os.ReadFile(s.FinalPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "mismatched tail forces a clean restart")
}

func TestParseContentRangeTotal(t *testing.T) {
	total, ok := parseContentRangeTotal("bytes 0-0/12345")
	require.True(t, ok)
	assert.Equal(t, int64(12345), total)

	_, ok = parseContentRangeTotal("bytes 0-0/*")
	assert.False(t, ok)
	_, ok = parseContentRangeTotal("")
	assert.False(t, ok)
}
