// Package whisperhttp talks to a remote whisper service that accepts a
// multipart WAV upload on POST /transcribe and answers with
// {"text": ..., "segments": [{"start", "end", "text"}, ...]}.
package whisperhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/types"
	"github.com/forPelevin/vodclips/internal/warmup"
)

const (
	DefaultTimeout = 1200 * time.Second
	probeTimeout   = 10 * time.Second
)

type Adapter struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	ready   *warmup.Resource
}

var (
	_ ports.ASR               = (*Adapter)(nil)
	_ ports.ReadinessReporter = (*Adapter)(nil)
)

// New validates baseURL against allowedHosts. timeout bounds one transcription
// request; zero means DefaultTimeout.
func New(baseURL string, allowedHosts []string, timeout time.Duration) (*Adapter, error) {
	if err := ValidateBaseURL(baseURL, allowedHosts); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := &Adapter{
		baseURL: normalizeBaseURL(baseURL),
		timeout: timeout,
		client:  &http.Client{},
	}
	a.ready = warmup.New("whisper service", a.probe)
	return a, nil
}

func (a *Adapter) State() string { return a.ready.State() }
func (a *Adapter) Err() error { return a.ready.Err() }

// Warmup probes the service ahead of the first request.
func (a *Adapter) Warmup(ctx context.Context) error { return a.ready.Ensure(ctx) }

// probe treats any non-5xx answer on /health as reachable; the service may not
// implement the route.
func (a *Adapter) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("whisper health status %d", resp.StatusCode)
	}
	return nil
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath string) (types.Transcript, error) {
	const op = "POST /transcribe"

	if err := a.ready.Ensure(ctx); err != nil {
		return types.Transcript{}, failure.Transcription(failure.ErrServiceUnavailable, "probe "+a.baseURL, err)
	}

	f, err := os.Open(wavPath)
	if err != nil {
		return types.Transcript{}, failure.Transcription(nil, "open audio", err)
	}
	defer f.Close()

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(wavPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/transcribe", pr)
	if err != nil {
		return types.Transcript{}, failure.Transcription(nil, op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return types.Transcript{}, failure.Transcription(failure.ErrTimeout, op,
				fmt.Errorf("no answer after %s: %w", a.timeout, err))
		}
		return types.Transcript{}, failure.Transcription(classify(ctx, err), op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("whisper status %d: %s", resp.StatusCode, truncate(string(rb), 400))
		if resp.StatusCode >= 500 {
			return types.Transcript{}, failure.Transcription(failure.ErrServiceUnavailable, op, err)
		}
		return types.Transcript{}, failure.Transcription(nil, op, err)
	}

	var tr types.Transcript
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return types.Transcript{}, failure.Transcription(failure.ErrTimeout, op, err)
		}
		return types.Transcript{}, failure.Transcription(nil, "decode response", err)
	}
	tr.Text = strings.TrimSpace(tr.Text)
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
	}
	if tr.Segments == nil {
		tr.Segments = []types.Segment{}
	}
	return tr, nil
}

// classify maps a transport error onto a transcription sub-kind.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failure.ErrTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return failure.ErrServiceUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return failure.ErrServiceUnavailable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return failure.ErrServiceUnavailable
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
