// Package sysinfo implements pkg/updateengine.SystemState against the
// running Linux system: the kernel boot id, the os-release version, and a
// URL policy derived from the build type.
package sysinfo

import (
	"bufio"
	"os"
	"strings"
)

const (
	defaultBootIDPath    = "/proc/sys/kernel/random/boot_id"
	defaultOSReleasePath = "/etc/os-release"
)

// SystemState reads device facts from the filesystem. Paths are fields so
// tests can point them at fixtures; zero values mean the standard
// locations.
type SystemState struct {
	BootIDPath    string
	OSReleasePath string

	// AllowHTTP permits plain-http payload URLs. Official builds default
	// to https-only; dev images flip this on to test against local
	// servers.
	AllowHTTP bool
}

// New returns a SystemState reading from the standard system locations.
func New(allowHTTP bool) *SystemState {
	return &SystemState{
		BootIDPath:    defaultBootIDPath,
		OSReleasePath: defaultOSReleasePath,
		AllowHTTP:     allowHTTP,
	}
}

// BootID returns the kernel's per-boot UUID, or "" if it cannot be read.
// The update engine treats "" as "boot identity unknown" and skips reboot
// detection rather than failing.
func (s *SystemState) BootID() string {
	data, err := os.ReadFile(s.bootIDPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// RunningOSVersion returns the os-release VERSION_ID (falling back to
// BUILD_ID), or "" if neither is present.
func (s *SystemState) RunningOSVersion() string {
	fields := s.osRelease()
	if v := fields["VERSION_ID"]; v != "" {
		return v
	}
	return fields["BUILD_ID"]
}

// IsOfficialBuild reports whether the image identifies itself as an
// official release. Dev and CI images set BUILD_TYPE=dev in os-release;
// anything else counts as official.
func (s *SystemState) IsOfficialBuild() bool {
	return s.osRelease()["BUILD_TYPE"] != "dev"
}

// HardwarePolicyAllows reports whether device policy permits downloading
// from url. HTTPS is always allowed; plain HTTP only on non-official
// builds or when AllowHTTP is set. Anything else (file://, ftp://,
// malformed) is rejected.
func (s *SystemState) HardwarePolicyAllows(url string) bool {
	switch {
	case strings.HasPrefix(url, "https://"):
		return true
	case strings.HasPrefix(url, "http://"):
		return s.AllowHTTP || !s.IsOfficialBuild()
	default:
		return false
	}
}

func (s *SystemState) bootIDPath() string {
	if s.BootIDPath != "" {
		return s.BootIDPath
	}
	return defaultBootIDPath
}

func (s *SystemState) osReleasePath() string {
	if s.OSReleasePath != "" {
		return s.OSReleasePath
	}
	return defaultOSReleasePath
}

// osRelease parses the os-release file into a key-value map. Quoting per
// os-release(5): values may be wrapped in single or double quotes.
func (s *SystemState) osRelease() map[string]string {
	fields := make(map[string]string)

	f, err := os.Open(s.osReleasePath())
	if err != nil {
		return fields
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"'`)
		fields[key] = value
	}
	return fields
}
