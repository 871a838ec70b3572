package values

import (
	"fmt"
	"runtime"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Platform is an operating system / architecture pair, e.g. linux-amd64.
type Platform struct {
	os   string
	arch string
}

// NewPlatform creates a platform from its components.
func NewPlatform(os, arch string) Platform {
	return Platform{os: os, arch: arch}
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return Platform{os: runtime.GOOS, arch: runtime.GOARCH}
}

// ParsePlatform parses an os-arch string.
func ParsePlatform(s string) (Platform, error) {
	osName, arch, ok := strings.Cut(s, "-")
	if !ok || osName == "" || arch == "" {
		return Platform{}, fmt.Errorf("invalid platform %q, want os-arch", s)
	}
	return Platform{os: osName, arch: arch}, nil
}

// PlatformFromOCI converts an OCI image platform.
func PlatformFromOCI(p ocispec.Platform) Platform {
	return Platform{os: p.OS, arch: p.Architecture}
}

// OS returns the operating system component.
func (p Platform) OS() string {
	return p.os
}

// Arch returns the architecture component.
func (p Platform) Arch() string {
	return p.arch
}

// IsZero reports whether no platform is set.
func (p Platform) IsZero() bool {
	return p.os == "" && p.arch == ""
}

// Matches checks for exact equality with another platform.
func (p Platform) Matches(other Platform) bool {
	return p.os == other.os && p.arch == other.arch
}

// String returns the canonical os-arch form, or the empty string for the zero value.
func (p Platform) String() string {
	if p.IsZero() {
		return ""
	}
	return p.os + "-" + p.arch
}

// OCI converts to an OCI image platform.
func (p Platform) OCI() ocispec.Platform {
	return ocispec.Platform{OS: p.os, Architecture: p.arch}
}
