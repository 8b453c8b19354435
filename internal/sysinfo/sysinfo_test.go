package sysinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestBootID_TrimsWhitespace(t *testing.T) {
	t.Parallel()

	s := &SystemState{BootIDPath: writeFixture(t, "boot_id", "abc-123-def\n")}

	assert.Equal(t, "abc-123-def", s.BootID())
}

func TestBootID_MissingFileReturnsEmpty(t *testing.T) {
	t.Parallel()

	s := &SystemState{BootIDPath: filepath.Join(t.TempDir(), "missing")}

	assert.Empty(t, s.BootID())
}

func TestRunningOSVersion_PrefersVersionID(t *testing.T) {
	t.Parallel()

	s := &SystemState{OSReleasePath: writeFixture(t, "os-release",
		"NAME=\"DittoFS OS\"\nVERSION_ID=\"2.4.1\"\nBUILD_ID=20260801\n")}

	assert.Equal(t, "2.4.1", s.RunningOSVersion())
}

func TestRunningOSVersion_FallsBackToBuildID(t *testing.T) {
	t.Parallel()

	s := &SystemState{OSReleasePath: writeFixture(t, "os-release",
		"NAME='DittoFS OS'\nBUILD_ID=20260801\n")}

	assert.Equal(t, "20260801", s.RunningOSVersion())
}

func TestIsOfficialBuild(t *testing.T) {
	t.Parallel()

	official := &SystemState{OSReleasePath: writeFixture(t, "os-release", "VERSION_ID=1.0\n")}
	dev := &SystemState{OSReleasePath: writeFixture(t, "os-release", "VERSION_ID=1.0\nBUILD_TYPE=dev\n")}

	assert.True(t, official.IsOfficialBuild())
	assert.False(t, dev.IsOfficialBuild())
}

func TestHardwarePolicyAllows(t *testing.T) {
	t.Parallel()

	official := &SystemState{OSReleasePath: writeFixture(t, "os-release", "VERSION_ID=1.0\n")}
	dev := &SystemState{OSReleasePath: writeFixture(t, "os-release", "BUILD_TYPE=dev\n")}

	tests := []struct {
		name   string
		state  *SystemState
		url    string
		wantOK bool
	}{
		{"https always allowed", official, "https://updates.example.com/p", true},
		{"http rejected on official build", official, "http://updates.example.com/p", false},
		{"http allowed on dev build", dev, "http://updates.example.com/p", true},
		{"http allowed when AllowHTTP set", &SystemState{OSReleasePath: official.OSReleasePath, AllowHTTP: true}, "http://x/p", true},
		{"file urls rejected", dev, "file:///tmp/payload", false},
		{"garbage rejected", dev, "not-a-url", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantOK, tt.state.HardwarePolicyAllows(tt.url))
		})
	}
}
