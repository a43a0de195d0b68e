package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse("grapple", nil)
	require.NoError(t, err)

	assert.Equal(t, 800, c.Width)
	assert.Equal(t, 600, c.Height)
	assert.Equal(t, "Grapple", c.Title)
	assert.True(t, c.VSync)
	assert.Equal(t, 1024, c.QuadsPerBatch)
	assert.Equal(t, "res/icons/magnifying_glass.bmp", c.TexturePath)
}

func TestParseClamps(t *testing.T) {
	c, err := Parse("grapple", []string{"-width", "10", "-batch", "100000", "-fps-limit", "-5"})
	require.NoError(t, err)

	assert.Equal(t, minWindowSize, c.Width)
	assert.Equal(t, maxQuadsPerBatch, c.QuadsPerBatch)
	assert.Zero(t, c.FPSLimit)
}

func TestParseRejectsBadValues(t *testing.T) {
	_, err := Parse("grapple", []string{"-log-level", "loud"})
	assert.Error(t, err)

	_, err = Parse("grapple", []string{"-texture", ""})
	assert.Error(t, err)

	_, err = Parse("grapple", []string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestRegisterAllowsExtraFlags(t *testing.T) {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	c := Register(fs)
	quads := fs.Int("quads", 1000, "")
	require.NoError(t, fs.Parse([]string{"-quads", "5", "-vsync=false"}))

	assert.Equal(t, 5, *quads)
	assert.False(t, c.VSync)
}

func TestRenderSettings(t *testing.T) {
	c := &Config{VSync: true, ShowStats: true, FPSLimit: 144}
	c.Apply()

	assert.True(t, GetVSync())
	assert.Zero(t, GetFPSLimit(), "vsync paces frames")
	assert.False(t, ToggleVSync())
	assert.Equal(t, 144, GetFPSLimit())

	assert.False(t, ToggleShowStats())
	assert.False(t, GetShowStats())
}
