package device

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformFromGOOS(t *testing.T) {
	tests := []struct {
		goos   string
		want   Platform
		wantOK bool
	}{
		{"linux", PlatformLinux, true},
		{"darwin", PlatformMacOS, true},
		{"windows", PlatformWindows, true},
		{"android", PlatformLinux, true},
		{"freebsd", PlatformLinux, false},
		{"plan9", PlatformLinux, false},
	}
	for _, tt := range tests {
		got, ok := PlatformFromGOOS(tt.goos)
		assert.Equal(t, tt.want, got, tt.goos)
		assert.Equal(t, tt.wantOK, ok, tt.goos)
	}
}

func TestDetectPlatform(t *testing.T) {
	want, _ := PlatformFromGOOS(runtime.GOOS)
	assert.Equal(t, want, DetectPlatform())
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("macos")
	require.NoError(t, err)
	assert.Equal(t, PlatformMacOS, p)
	assert.True(t, p.IsApple())

	p, err = ParsePlatform("darwin")
	require.NoError(t, err)
	assert.Equal(t, PlatformMacOS, p)

	p, err = ParsePlatform(" Windows ")
	require.NoError(t, err)
	assert.Equal(t, PlatformWindows, p)
	assert.False(t, p.IsApple())

	p, err = ParsePlatform("")
	require.NoError(t, err)
	assert.Equal(t, DetectPlatform(), p)

	_, err = ParsePlatform("beos")
	assert.ErrorIs(t, err, ErrInvalidPlatform)
}
