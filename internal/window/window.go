// Package window opens the OS window and its OpenGL context with GLFW.
// Every function must be called from the main thread.
package window

import (
	"fmt"
	"time"

	"grapple/internal/log"

	"github.com/go-gl/glfw/v3.3/glfw"
)

type Config struct {
	Width, Height int
	Title         string
	VSync         bool
	Resizable     bool
}

type Window struct {
	win    *glfw.Window
	log    *log.Logger
	width  int
	height int

	last     time.Time
	onResize []func(width, height int)
}

// Open initializes GLFW and creates a window with a current 4.1 core
// context.
func Open(cfg Config, lg *log.Logger) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	if cfg.Resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	gw, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	gw.MakeContextCurrent()

	w := &Window{win: gw, log: lg, last: time.Now()}
	// the framebuffer can be larger than the window on high-DPI displays
	w.width, w.height = gw.GetFramebufferSize()
	gw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		for _, fn := range w.onResize {
			fn(width, height)
		}
	})
	w.SetVSync(cfg.VSync)

	lg.Info("window open",
		"title", cfg.Title,
		"width", cfg.Width, "height", cfg.Height,
		"framebuffer_width", w.width, "framebuffer_height", w.height,
		"vsync", cfg.VSync)
	return w, nil
}

// Size returns the framebuffer size in pixels.
func (w *Window) Size() (width, height int) { return w.width, w.height }

// OnResize registers fn to run whenever the framebuffer is resized.
func (w *Window) OnResize(fn func(width, height int)) {
	w.onResize = append(w.onResize, fn)
}

// IsOpen reports whether the window has not been asked to close.
func (w *Window) IsOpen() bool { return !w.win.ShouldClose() }

func (w *Window) Close() { w.win.SetShouldClose(true) }

func (w *Window) PollEvents() { glfw.PollEvents() }

// CursorPos returns the cursor position in framebuffer pixels, which differ
// from window coordinates on high-DPI displays.
func (w *Window) CursorPos() (x, y float32) {
	cx, cy := w.win.GetCursorPos()
	if ww, wh := w.win.GetSize(); ww > 0 && wh > 0 {
		cx *= float64(w.width) / float64(ww)
		cy *= float64(w.height) / float64(wh)
	}
	return float32(cx), float32(cy)
}

// FrameSeconds returns the seconds elapsed since the previous call.
func (w *Window) FrameSeconds() float64 {
	now := time.Now()
	dt := now.Sub(w.last).Seconds()
	w.last = now
	return dt
}

// SwapBuffers presents the back buffer. With vsync on it blocks until the
// next vertical blank.
func (w *Window) SwapBuffers() { w.win.SwapBuffers() }

func (w *Window) SetVSync(on bool) {
	if on {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
}

func (w *Window) SetTitle(title string) { w.win.SetTitle(title) }

// GLFW returns the underlying window for input callbacks.
func (w *Window) GLFW() *glfw.Window { return w.win }

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.win.Destroy()
	glfw.Terminate()
}
