package repository

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/netutil"
)

// Read limits per artifact class. The manifest and descriptor bounds are
// fixed; the archive bound is the ConfigFetchMaxBytes default.
const (
	manifestLimit       = 1 << 20
	descriptorLimit     = 4 << 20
	defaultArchiveLimit = int64(512) << 20
)

// defaultHTTPClient builds the client remote repositories fall back to:
// HTTP/2 where available, TLS 1.2 minimum, a modest idle pool, a bounded wait
// for response headers, and file:// support for directory-published codebases.
// There is no whole-request timeout; archive downloads are bounded by the
// caller's context.
func defaultHTTPClient() *http.Client {
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       netutil.TLSConfig(),
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Transport: transport}
}

// fetcher wraps an http.Client with bounded reads and fetch error mapping.
// It never retries; callers opt in by installing netutil.RetryTransport.
type fetcher struct {
	client *http.Client
	logger *slog.Logger
}

func newFetcher(client *http.Client, logger *slog.Logger) *fetcher {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &fetcher{client: client, logger: logger}
}

// fetch GETs url and returns at most limit bytes. Credentials never appear in
// errors or logs.
func (f *fetcher) fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	safe := netutil.StripCredentials(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &entities.FetchError{URL: safe, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &entities.FetchError{URL: safe, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &entities.FetchError{URL: safe, Status: resp.StatusCode}
	}

	data, err := netutil.ReadAllLimited(resp.Body, limit)
	if err != nil {
		return nil, &entities.FetchError{URL: safe, Err: err}
	}
	f.logger.Debug("fetched", "url", safe, "bytes", len(data))
	return data, nil
}

func (f *fetcher) close() {
	f.client.CloseIdleConnections()
}

// isNotFound distinguishes an absent artifact from a failing endpoint during
// candidate probing.
func isNotFound(err error) bool {
	var fe *entities.FetchError
	return errors.As(err, &fe) && fe.Status == http.StatusNotFound
}
