package netutil

import (
	"errors"
	"fmt"
	"io"
)

// LimitedReader reads at most limit bytes from the underlying reader and
// fails with a SizeLimitExceededError when the source holds more. Unlike
// io.LimitReader it distinguishes "exactly at the limit" from "truncated":
// reaching the limit triggers a one-byte probe of the source.
type LimitedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
	consumed  int64
	exhausted bool
}

// NewLimitedReader creates a reader bounded at limit bytes.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{r: r, remaining: limit, limit: limit}
}

// Read implements io.Reader.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.exhausted {
		return 0, io.EOF
	}
	if l.remaining <= 0 {
		return 0, &SizeLimitExceededError{Limit: l.limit, Read: l.consumed}
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}

	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	l.consumed += int64(n)

	if l.remaining == 0 && err == nil {
		var probe [1]byte
		extra, perr := l.r.Read(probe[:])
		if extra > 0 {
			return n, &SizeLimitExceededError{Limit: l.limit, Read: l.consumed + 1}
		}
		if perr != nil && perr != io.EOF {
			return n, perr
		}
		// Source ended exactly at the limit.
		l.exhausted = true
	}
	return n, err
}

// BytesRead returns the bytes consumed so far.
func (l *LimitedReader) BytesRead() int64 {
	return l.consumed
}

// ReadAllLimited drains r, failing when it holds more than limit bytes.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(NewLimitedReader(r, limit))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SizeLimitExceededError is returned when a bounded read overruns its limit.
type SizeLimitExceededError struct {
	Limit int64
	Read  int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("size limit exceeded: read %d bytes, limit is %s", e.Read, FormatSize(e.Limit))
}

// IsSizeLimitExceededError reports whether err is a SizeLimitExceededError.
func IsSizeLimitExceededError(err error) bool {
	var limitErr *SizeLimitExceededError
	return errors.As(err, &limitErr)
}

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
