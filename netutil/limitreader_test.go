package netutil_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/modarc-dev/modarc/netutil"
)

func Test_LimitedReader_EnforcesLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		limit     int64
		wantError bool
		wantBytes int64
	}{
		{
			name:      "content under limit",
			content:   "hello",
			limit:     10,
			wantError: false,
			wantBytes: 5,
		},
		{
			name:      "content at limit",
			content:   "hello",
			limit:     5,
			wantError: false,
			wantBytes: 5,
		},
		{
			name:      "content over limit",
			content:   "hello world",
			limit:     5,
			wantError: true,
		},
		{
			name:      "empty content",
			content:   "",
			limit:     5,
			wantError: false,
			wantBytes: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := netutil.NewLimitedReader(strings.NewReader(tt.content), tt.limit)
			data, err := io.ReadAll(r)

			if tt.wantError {
				if !netutil.IsSizeLimitExceededError(err) {
					t.Fatalf("error = %v, want SizeLimitExceededError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if int64(len(data)) != tt.wantBytes {
				t.Errorf("read %d bytes, want %d", len(data), tt.wantBytes)
			}
			if data != nil && string(data) != tt.content {
				t.Errorf("read %q, want %q", data, tt.content)
			}
		})
	}
}

func Test_ReadAllLimited(t *testing.T) {
	t.Parallel()

	data, err := netutil.ReadAllLimited(strings.NewReader("manifest"), 64)
	if err != nil {
		t.Fatalf("ReadAllLimited() error = %v", err)
	}
	if string(data) != "manifest" {
		t.Errorf("data = %q", data)
	}

	_, err = netutil.ReadAllLimited(strings.NewReader("too large for the limit"), 4)
	var limitErr *netutil.SizeLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error = %v, want SizeLimitExceededError", err)
	}
	if limitErr.Limit != 4 {
		t.Errorf("Limit = %d, want 4", limitErr.Limit)
	}
}

func Test_LimitedReader_BytesRead(t *testing.T) {
	t.Parallel()

	r := netutil.NewLimitedReader(strings.NewReader("0123456789"), 100)
	buf := make([]byte, 4)
	if _, err := r.Read(buf); err != nil {
		t.Fatal(err)
	}
	if r.BytesRead() != 4 {
		t.Errorf("BytesRead() = %d, want 4", r.BytesRead())
	}
}

func Test_FormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := netutil.FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
