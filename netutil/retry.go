package netutil

import (
	"net/http"
	"strconv"
	"time"
)

// RetryTransport wraps an http.RoundTripper with exponential backoff and
// Retry-After handling for transient failures.
//
// The repository layer never retries on its own; callers that want retries
// install this transport into the http.Client they inject:
//
//	client := &http.Client{Transport: &netutil.RetryTransport{MaxRetries: 5}}
type RetryTransport struct {
	// Base is the underlying transport, http.DefaultTransport if nil.
	Base http.RoundTripper

	// OnRetry, when set, observes each retry with the 1-based attempt
	// number, the wait before it, and the status code that triggered it
	// (zero for transport errors).
	OnRetry func(attempt int, wait time.Duration, statusCode int)

	// MaxRetries is the retry budget after the first attempt. Default 3.
	MaxRetries int

	// InitialBackoff is the first wait. Default 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait, including Retry-After. Default 30s.
	MaxBackoff time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxRetries := t.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initial := t.InitialBackoff
	if initial == 0 {
		initial = time.Second
	}
	maxWait := t.MaxBackoff
	if maxWait == 0 {
		maxWait = 30 * time.Second
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= maxRetries; attempt++ {
		clone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}

		resp, err := base.RoundTrip(clone)
		if err != nil {
			// Any response kept from an earlier attempt had its body closed
			// before the wait; the transport error is what the caller gets.
			lastErr = err
			lastResp = nil
			if attempt == maxRetries {
				break
			}
			if werr := t.wait(req, backoff(attempt, initial, maxWait, nil), attempt, 0); werr != nil {
				return nil, werr
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = nil
		if attempt == maxRetries {
			break
		}
		wait := backoff(attempt, initial, maxWait, resp)
		resp.Body.Close()
		if werr := t.wait(req, wait, attempt, resp.StatusCode); werr != nil {
			return nil, werr
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// wait sleeps for the backoff duration, honoring request cancellation.
func (t *RetryTransport) wait(req *http.Request, d time.Duration, attempt, status int) error {
	if t.OnRetry != nil {
		t.OnRetry(attempt+1, d, status)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

// backoff derives the wait for an attempt: Retry-After when the server sent
// one, exponential doubling otherwise, capped at maxWait either way.
func backoff(attempt int, initial, maxWait time.Duration, resp *http.Response) time.Duration {
	if resp != nil {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if seconds, err := strconv.Atoi(after); err == nil {
				return min(time.Duration(seconds)*time.Second, maxWait)
			}
			if at, err := http.ParseTime(after); err == nil {
				d := time.Until(at)
				if d < 0 {
					return initial
				}
				return min(d, maxWait)
			}
		}
	}
	return min(initial*(1<<attempt), maxWait)
}

// retryableStatus reports whether a status code indicates a transient
// condition. Client errors other than 429 are final.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
