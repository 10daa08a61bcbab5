package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// Fetcher opens the body of a job's address. Implementations return a
// *FetchError for anything but a 2xx response.
type Fetcher interface {
	Fetch(ctx context.Context, job domain.Job) (io.ReadCloser, error)
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	// DialTimeout bounds connection setup, including TLS.
	// Default: 10s
	DialTimeout time.Duration

	// RequestTimeout bounds waiting for response headers, and any single
	// stall while reading the body.
	// Default: 60s
	RequestTimeout time.Duration

	// ConnectRetries is how many times a failed dial is retried.
	// Default: 3
	ConnectRetries int

	// MaxIdleConnsPerHost sets the idle pool per host.
	// Default: 5
	MaxIdleConnsPerHost int

	UserAgent string
}

func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		DialTimeout:         10 * time.Second,
		RequestTimeout:      60 * time.Second,
		ConnectRetries:      3,
		MaxIdleConnsPerHost: 5,
		UserAgent:           "hydrofetch",
	}
}

// HTTPFetcher fetches jobs over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.DialTimeout,
		ResponseHeaderTimeout: opts.RequestTimeout,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		// certificates are always verified, credentials never go out unchecked
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &HTTPFetcher{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, job domain.Job) (io.ReadCloser, error) {
	for attempt := 0; ; attempt++ {
		reqCtx, cancel := context.WithCancel(ctx)

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, job.Address, nil)
		if err != nil {
			cancel()
			return nil, &FetchError{Class: domain.ClassOther, Err: fmt.Errorf("create request: %w", err)}
		}
		if f.opts.UserAgent != "" {
			req.Header.Set("User-Agent", f.opts.UserAgent)
		}
		if c := job.Credentials; c != nil {
			req.SetBasicAuth(c.Username, c.Password)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			cancel()
			// the caller gave up, this is not a network failure
			if cerr := ctx.Err(); cerr != nil {
				return nil, &FetchError{Class: domain.ClassOther, Err: cerr}
			}
			if isDialError(err) && attempt < f.opts.ConnectRetries && ctx.Err() == nil {
				continue
			}
			return nil, &FetchError{Class: domain.ClassConnection, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			cancel()
			return nil, StatusError(resp.StatusCode)
		}

		if f.opts.RequestTimeout <= 0 {
			return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
		}
		return newIdleBody(resp.Body, f.opts.RequestTimeout, cancel), nil
	}
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// idleBody cancels the request when a single Read stalls for longer than
// the timeout. Total transfer time is not bounded, large grids take a while.
type idleBody struct {
	io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
}

func newIdleBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleBody {
	return &idleBody{
		ReadCloser: rc,
		timeout:    timeout,
		timer:      time.AfterFunc(timeout, cancel),
		cancel:     cancel,
	}
}

func (b *idleBody) Read(p []byte) (int, error) {
	b.timer.Reset(b.timeout)
	return b.ReadCloser.Read(p)
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	defer b.cancel()
	return b.ReadCloser.Close()
}
