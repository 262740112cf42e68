// Package session streams a single remote resource to a local file,
// reporting byte-level progress and classifying every outcome.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// PartSuffix marks files still being written. A destination is only visible
// under its final name after the stream completed and was synced.
const PartSuffix = ".part"

const (
	defaultStallTimeout   = 15 * time.Second
	defaultReportInterval = 150 * time.Millisecond
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	readBufferSize = 32 * 1024
	sniffSize      = 262 // enough for filetype magic numbers
)

// StartRequest describes one transfer. All callbacks are optional and are
// invoked from the session goroutine, never synchronously from Start.
type StartRequest struct {
	URL       string
	Dest      string // final destination path; data is staged at Dest+PartSuffix
	KnownSize int64  // expected size in bytes, 0 when unknown

	// OnStarted fires once the connection is established and the first
	// bytes are arriving. dest is the final destination path, which may
	// gain an extension discovered from response headers or content.
	OnStarted func(totalSize int64, dest string)
	// OnProgress fires at a bounded rate with non-decreasing byte counts.
	OnProgress func(received, total int64)
	// OnDone fires exactly once, after every other callback: nil on
	// success, ErrCancelled on cancellation, *TransferError otherwise.
	OnDone func(err error)
}

// Handle controls a session in flight.
type Handle interface {
	// Cancel requests best-effort termination. OnDone still fires.
	Cancel()
}

// Starter begins transfer sessions. The manager depends on this interface so
// tests can substitute scripted sessions.
type Starter interface {
	Start(ctx context.Context, req StartRequest) Handle
}

// Config tunes the HTTP factory.
type Config struct {
	Client         *http.Client
	UserAgent      string
	StallTimeout   time.Duration // no bytes for this long fails the attempt
	ReportInterval time.Duration // minimum spacing of OnProgress callbacks
}

// Factory creates real HTTP transfer sessions.
type Factory struct {
	cfg Config
}

// NewFactory returns a Factory, filling unset Config fields with defaults.
func NewFactory(cfg Config) *Factory {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = defaultStallTimeout
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = defaultReportInterval
	}
	return &Factory{cfg: cfg}
}

// Start begins the fetch asynchronously and returns a handle for cancelling it.
func (f *Factory) Start(ctx context.Context, req StartRequest) Handle {
	ctx, cancel := context.WithCancel(ctx)
	t := &transfer{cancel: cancel, done: make(chan struct{})}
	go t.run(ctx, f.cfg, req)
	return t
}

type transfer struct {
	cancel  context.CancelFunc
	stalled atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (t *transfer) Cancel() {
	t.cancel()
}

// Wait blocks until the completion callback has been delivered.
func (t *transfer) Wait() {
	<-t.done
}

func (t *transfer) finish(req StartRequest, err error) {
	t.once.Do(func() {
		if req.OnDone != nil {
			req.OnDone(err)
		}
	})
}

func (t *transfer) run(ctx context.Context, cfg Config, req StartRequest) {
	defer close(t.done)
	defer t.cancel()
	t.finish(req, t.fetch(ctx, cfg, req))
}

func (t *transfer) fetch(ctx context.Context, cfg Config, req StartRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return &TransferError{Kind: FailureConnect, URL: req.URL, Err: err}
	}
	httpReq.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := cfg.Client.Do(httpReq)
	if err != nil {
		return t.classify(ctx, req.URL, 0, req.KnownSize, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &TransferError{
			Kind: FailureHTTPStatus,
			URL:  req.URL,
			Err:  fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	// The caller's expected size wins over the server's Content-Length: a
	// server that declares fewer bytes than the clip actually has must not
	// turn a short stream into a clean completion.
	total := req.KnownSize
	if total == 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	dest := req.Dest
	part := dest + PartSuffix

	out, err := os.Create(part)
	if err != nil {
		return &TransferError{Kind: FailureStorage, URL: req.URL, Err: err}
	}

	// Watchdog: a stream that goes quiet without closing would otherwise
	// hang forever. Cancel the context so the blocked read returns.
	lastActivity := new(atomic.Int64)
	lastActivity.Store(time.Now().UnixNano())
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go t.watchStall(watchdogDone, lastActivity, cfg.StallTimeout)

	var received int64
	var lastReport time.Time
	started := false
	buf := make([]byte, readBufferSize)

	report := func(final bool) {
		if req.OnProgress == nil {
			return
		}
		now := time.Now()
		if final || now.Sub(lastReport) >= cfg.ReportInterval {
			req.OnProgress(received, total)
			lastReport = now
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = out.Close()
			return t.abort(req.URL, part, received, total)
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if !started {
				dest = destWithExt(req.Dest, resp.Header, buf[:min(n, sniffSize)])
				part = renamePart(part, dest)
				started = true
				if req.OnStarted != nil {
					req.OnStarted(total, dest)
				}
			}
			wn, werr := out.Write(buf[:n])
			if werr != nil {
				_ = out.Close()
				return &TransferError{Kind: FailureStorage, URL: req.URL, Err: werr}
			}
			if wn != n {
				_ = out.Close()
				return &TransferError{Kind: FailureStorage, URL: req.URL, Err: io.ErrShortWrite}
			}
			received += int64(n)
			lastActivity.Store(time.Now().UnixNano())
			report(false)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = out.Close()
			cls := t.classify(ctx, req.URL, received, total, readErr)
			if errors.Is(cls, ErrCancelled) {
				_ = os.Remove(part)
			}
			return cls
		}
	}

	if !started {
		// Empty body: the connection was still established.
		started = true
		if req.OnStarted != nil {
			req.OnStarted(total, dest)
		}
	}

	if total > 0 && received < total {
		_ = out.Close()
		return &TransferError{
			Kind: FailureTruncated,
			URL:  req.URL,
			Err:  fmt.Errorf("stream ended at %d of %d bytes", received, total),
		}
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return &TransferError{Kind: FailureStorage, URL: req.URL, Err: err}
	}
	if err := out.Close(); err != nil {
		return &TransferError{Kind: FailureStorage, URL: req.URL, Err: err}
	}
	if err := os.Rename(part, dest); err != nil {
		return &TransferError{Kind: FailureStorage, URL: req.URL, Err: err}
	}

	report(true)
	return nil
}

// abort resolves a context interruption: either a stalled stream detected by
// the watchdog, or a genuine cancel request.
func (t *transfer) abort(url, part string, received, total int64) error {
	if err := t.stallError(url, received, total); err != nil {
		return err
	}
	_ = os.Remove(part)
	return ErrCancelled
}

func (t *transfer) watchStall(done <-chan struct{}, lastActivity *atomic.Int64, timeout time.Duration) {
	interval := timeout / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			last := time.Unix(0, lastActivity.Load())
			if time.Since(last) > timeout {
				t.stalled.Store(true)
				t.cancel()
				return
			}
		}
	}
}

func (t *transfer) stallError(url string, received, total int64) error {
	if !t.stalled.Load() {
		return nil
	}
	if total > 0 {
		return &TransferError{
			Kind: FailureTruncated,
			URL:  url,
			Err:  fmt.Errorf("stream stalled at %d of %d bytes", received, total),
		}
	}
	return &TransferError{
		Kind: FailureTimeout,
		URL:  url,
		Err:  errors.New("stream stalled"),
	}
}

func (t *transfer) classify(ctx context.Context, url string, received, total int64, err error) error {
	if stallErr := t.stallError(url, received, total); stallErr != nil {
		return stallErr
	}
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return ErrCancelled
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransferError{Kind: FailureTimeout, URL: url, Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) && received > 0 {
		return &TransferError{Kind: FailureTruncated, URL: url, Err: err}
	}
	return &TransferError{Kind: FailureConnect, URL: url, Err: err}
}

// destWithExt returns dest with a file extension when it has none, derived
// from the Content-Disposition filename or from content magic numbers.
func destWithExt(dest string, hdr http.Header, head []byte) string {
	if filepath.Ext(dest) != "" {
		return dest
	}
	if _, filename, _ := httpheader.ContentDisposition(hdr); filename != "" {
		if ext := filepath.Ext(filename); ext != "" {
			return dest + ext
		}
	}
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return dest + "." + kind.Extension
	}
	return dest
}

// renamePart moves the staging file alongside an updated destination path.
// The open file descriptor stays valid across the rename. Falls back to the
// old name if the rename fails; only the final rename to dest decides success.
func renamePart(oldPart, dest string) string {
	newPart := dest + PartSuffix
	if newPart == oldPart {
		return oldPart
	}
	if err := os.Rename(oldPart, newPart); err != nil {
		return oldPart
	}
	return newPart
}
