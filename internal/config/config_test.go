package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, DefaultHydrationTimeout, s.HydrationTimeout)
	assert.Equal(t, DefaultPollInterval, s.PollInterval)
	assert.Equal(t, DefaultDebugMaxLength, s.DebugMaxLength)
	assert.Equal(t, DefaultBaseURL, s.BaseURL)
	assert.Empty(t, s.AssetRoot)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ASTROBRIDGE_HYDRATION_TIMEOUT", "12s")
	t.Setenv("ASTROBRIDGE_POLL_INTERVAL", "5ms")
	t.Setenv("ASTROBRIDGE_DEBUG_MAX_LENGTH", "100")
	t.Setenv("ASTROBRIDGE_BASE_URL", "http://ci.internal/")
	t.Setenv("ASTROBRIDGE_ASSET_ROOT", "/srv/assets")

	s := FromEnv()
	assert.Equal(t, 12*time.Second, s.HydrationTimeout)
	assert.Equal(t, 5*time.Millisecond, s.PollInterval)
	assert.Equal(t, 100, s.DebugMaxLength)
	assert.Equal(t, "http://ci.internal/", s.BaseURL)
	assert.Equal(t, "/srv/assets", s.AssetRoot)
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("ASTROBRIDGE_HYDRATION_TIMEOUT", "soon")
	t.Setenv("ASTROBRIDGE_POLL_INTERVAL", "-3ms")
	t.Setenv("ASTROBRIDGE_DEBUG_MAX_LENGTH", "lots")

	s := FromEnv()
	assert.Equal(t, DefaultHydrationTimeout, s.HydrationTimeout)
	assert.Equal(t, DefaultPollInterval, s.PollInterval)
	assert.Equal(t, DefaultDebugMaxLength, s.DebugMaxLength)
}
