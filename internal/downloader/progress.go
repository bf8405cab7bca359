package downloader

import (
	"time"
)

// ProgressFunc receives download progress. Delivery is best-effort and
// rate-limited; it never blocks the download path.
type ProgressFunc func(bytesWritten, totalBytes int64)

type progressUpdate struct {
	written int64
	total   int64
}

// progressReporter decouples progress delivery from the write loop. Updates
// are pushed with a non-blocking send; the consumer applies the rate limit.
type progressReporter struct {
	fn       ProgressFunc
	interval time.Duration
	updates  chan progressUpdate
	done     chan struct{}
}

func newProgressReporter(fn ProgressFunc, interval time.Duration) *progressReporter {
	if fn == nil {
		return nil
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	r := &progressReporter{
		fn:       fn,
		interval: interval,
		updates:  make(chan progressUpdate, 1),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *progressReporter) loop() {
	defer close(r.done)
	var last time.Time
	for u := range r.updates {
		if time.Since(last) < r.interval {
			continue
		}
		last = time.Now()
		r.fn(u.written, u.total)
	}
}

// Update offers a progress sample, dropping it if the consumer is busy.
func (r *progressReporter) Update(written, total int64) {
	if r == nil {
		return
	}
	select {
	case r.updates <- progressUpdate{written: written, total: total}:
	default:
	}
}

// Close drains the reporter and delivers one final exact report.
func (r *progressReporter) Close(written, total int64) {
	if r == nil {
		return
	}
	close(r.updates)
	<-r.done
	r.fn(written, total)
}
