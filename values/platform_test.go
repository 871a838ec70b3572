package values

import (
	"runtime"
	"testing"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantOS  string
	}{
		{name: "LinuxAmd64", input: "linux-amd64", wantOS: "linux"},
		{name: "DarwinArm64", input: "darwin-arm64", wantOS: "darwin"},
		{name: "MissingArch", input: "linux", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
		{name: "DanglingDash", input: "linux-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlatform(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlatform() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.OS() != tt.wantOS {
				t.Errorf("OS() = %v, want %v", got.OS(), tt.wantOS)
			}
		})
	}
}

func TestHostPlatform(t *testing.T) {
	p := HostPlatform()
	if p.OS() != runtime.GOOS || p.Arch() != runtime.GOARCH {
		t.Errorf("HostPlatform() = %v", p)
	}
	if p.IsZero() {
		t.Error("host platform should not be zero")
	}
}

func TestPlatformOCIRoundTrip(t *testing.T) {
	p := NewPlatform("linux", "arm64")
	got := PlatformFromOCI(p.OCI())
	if !got.Matches(p) {
		t.Errorf("round trip = %v, want %v", got, p)
	}
}

func TestPlatformZero(t *testing.T) {
	var p Platform
	if !p.IsZero() {
		t.Error("zero value should be zero")
	}
	if p.String() != "" {
		t.Errorf("zero String() = %q", p.String())
	}
	if !p.Matches(Platform{}) {
		t.Error("zero should match zero")
	}
}
