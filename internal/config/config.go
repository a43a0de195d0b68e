package config

import (
	"errors"
	"flag"
	"fmt"
	"sync"

	"grapple/internal/log"
)

const (
	minWindowSize    = 64
	maxQuadsPerBatch = 16384
)

// Config holds startup settings read from the command line
type Config struct {
	Width         int
	Height        int
	Title         string
	VSync         bool
	FPSLimit      int
	QuadsPerBatch int
	TexturePath   string
	LogLevel      string
	LogDir        string
	ShowStats     bool
}

// Register defines the common flags on fs and returns the Config they fill.
// Commands may add their own flags to fs before parsing.
func Register(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.IntVar(&c.Width, "width", 800, "window width in pixels")
	fs.IntVar(&c.Height, "height", 600, "window height in pixels")
	fs.StringVar(&c.Title, "title", "Grapple", "window title")
	fs.BoolVar(&c.VSync, "vsync", true, "wait for vertical sync on present")
	fs.IntVar(&c.FPSLimit, "fps-limit", 0, "frame rate cap when vsync is off (0 = uncapped)")
	fs.IntVar(&c.QuadsPerBatch, "batch", 1024, "quads per GPU submission")
	fs.StringVar(&c.TexturePath, "texture", "res/icons/magnifying_glass.bmp", "BMP image to draw")
	fs.StringVar(&c.LogLevel, "log-level", "info", "logging level: debug, info, warn, error")
	fs.StringVar(&c.LogDir, "log-dir", "", "directory for log files (default: current directory)")
	fs.BoolVar(&c.ShowStats, "stats", true, "show frame statistics")
	return c
}

// Parse registers the common flags on a new FlagSet, parses args and
// validates the result
func Parse(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// Validate clamps sizes into range and rejects values that cannot be fixed
func (c *Config) Validate() error {
	var errs []error

	// Clamp to reasonable values
	c.Width = max(c.Width, minWindowSize)
	c.Height = max(c.Height, minWindowSize)
	c.QuadsPerBatch = min(max(c.QuadsPerBatch, 1), maxQuadsPerBatch)
	c.FPSLimit = max(c.FPSLimit, 0)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.TexturePath == "" {
		errs = append(errs, fmt.Errorf("-texture must not be empty"))
	}
	return errors.Join(errs...)
}

// RenderSettings holds toggles that change while the app runs
type RenderSettings struct {
	mu        sync.RWMutex
	vsync     bool
	showStats bool
	fpsLimit  int
}

var globalRenderSettings = &RenderSettings{vsync: true, showStats: true}

// Apply copies the startup values into the runtime settings
func (c *Config) Apply() {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.vsync = c.VSync
	globalRenderSettings.showStats = c.ShowStats
	globalRenderSettings.fpsLimit = c.FPSLimit
}

func GetVSync() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.vsync
}

// ToggleVSync flips vsync and returns the new value
func ToggleVSync() bool {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.vsync = !globalRenderSettings.vsync
	return globalRenderSettings.vsync
}

func GetShowStats() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.showStats
}

func ToggleShowStats() bool {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.showStats = !globalRenderSettings.showStats
	return globalRenderSettings.showStats
}

// GetFPSLimit returns the frame cap, or 0 when frames are paced by vsync or
// uncapped
func GetFPSLimit() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	if globalRenderSettings.vsync {
		return 0
	}
	return globalRenderSettings.fpsLimit
}
