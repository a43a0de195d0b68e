package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"runtime"
	"time"

	"grapple/internal/arena"
	"grapple/internal/config"
	"grapple/internal/gpu"
	"grapple/internal/gpu/opengl"
	"grapple/internal/input"
	"grapple/internal/log"
	"grapple/internal/pacing"
	"grapple/internal/profiling"
	"grapple/internal/renderer"
	"grapple/internal/text"
	"grapple/internal/texture"
	"grapple/internal/window"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
)

const (
	arenaSize   = 10 << 20
	scratchSize = 4 << 10
)

var background = gpu.RGBA(0.125, 0.125, 0.125, 1)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.Parse("grapple", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.Apply()

	lg := log.New(cfg.LogLevel, cfg.LogDir, true)
	closer.Bind(func() {
		if err := lg.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})

	if err := run(cfg, lg); err != nil {
		lg.Errorf("fatal: %v", err)
		closer.Fatalln(err)
	}
	closer.Close()
}

func run(cfg *config.Config, lg *log.Logger) error {
	win, err := window.Open(window.Config{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Title:     cfg.Title,
		VSync:     cfg.VSync,
		Resizable: true,
	}, lg)
	if err != nil {
		return err
	}
	defer win.Destroy()

	backend, err := opengl.New(win, lg)
	if err != nil {
		return err
	}

	mem := arena.New(arenaSize)
	defer mem.Release()
	scratch := arena.New(scratchSize)
	defer scratch.Release()

	r, err := renderer.New(backend, win, mem,
		renderer.WithQuadsPerBatch(cfg.QuadsPerBatch),
		renderer.WithLogger(lg))
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Destroy(); err != nil {
			lg.Error("destroy renderer", "error", err)
		}
	}()
	atlas := r.Text().Atlas()
	lg.Infof("glyph atlas %dx%d with %d glyphs", atlas.Width, atlas.Height, len(atlas.Glyphs))

	textures := texture.NewCache(r, mem)
	icon, err := textures.Get(cfg.TexturePath)
	if err != nil {
		lg.Warnf("texture %s unavailable, using checkerboard: %v", cfg.TexturePath, err)
		if icon, err = checkerboard(r, mem, 32, color.RGBA{255, 0, 255, 255}); err != nil {
			return err
		}
	}
	tile, err := checkerboard(r, mem, 8, color.RGBA{60, 140, 220, 255})
	if err != nil {
		return err
	}
	lg.Info("resources ready",
		"textures_cached", textures.Len(),
		"arena_used", mem.Len(), "arena_cap", mem.Cap(),
		"texture_bytes", backend.TextureBytes())

	im := input.NewInputManager()
	im.Attach(win.GLFW())

	w, h := win.Size()
	sc := newScene(icon, tile, scratch, w, h)
	win.OnResize(sc.resize)
	limiter := pacing.NewLimiter()
	var meter fpsMeter

	for win.IsOpen() {
		profiling.ResetFrame()
		start := time.Now()
		win.PollEvents()
		dt := win.FrameSeconds()
		if meter.tick(dt) {
			win.SetTitle(fmt.Sprintf("%s - %.0f fps", cfg.Title, meter.fps))
		}

		if im.JustPressed(input.ActionQuit) {
			win.Close()
		}
		if im.JustPressed(input.ActionToggleVSync) {
			win.SetVSync(config.ToggleVSync())
		}
		if im.JustPressed(input.ActionToggleStats) {
			config.ToggleShowStats()
		}
		if im.JustPressed(input.ActionToggleGrid) {
			sc.showGrid = !sc.showGrid
		}
		if im.JustPressed(input.ActionPause) {
			sc.paused = !sc.paused
		}

		cx, cy := win.CursorPos()
		cursor := mgl32.Vec2{cx, cy}
		switch {
		case im.JustPressed(input.ActionMouseLeft):
			sc.press(cursor)
		case im.IsActive(input.ActionMouseLeft):
			sc.dragTo(cursor)
		}
		if im.JustReleased(input.ActionMouseLeft) {
			sc.release()
		}
		sc.update(dt)

		if err := frame(r, win, sc, &meter); err != nil {
			return err
		}
		im.PostUpdate()

		if d := time.Since(start); d > 16*time.Millisecond {
			lg.Debugf("slow frame %v, top: %s", d, profiling.TopN(3))
		}
		limiter.Wait(config.GetFPSLimit())
	}
	return nil
}

func frame(r *renderer.Renderer, win renderer.Surface, sc *scene, meter *fpsMeter) error {
	if err := r.BeginFrame(win); err != nil {
		return err
	}
	if err := r.Clear(background); err != nil {
		return err
	}

	stop := profiling.Track("scene.draw")
	err := sc.draw(r)
	stop()
	if err != nil {
		return err
	}

	tr := r.Text()
	w, h := r.Size()
	tr.Draw("Hello, Grapple! αβγδεζηθ", text.Rect{X: 50, Y: 100, W: float32(w) - 100}, gpu.White)
	if config.GetShowStats() {
		s := r.Stats()
		tr.Draw(fmt.Sprintf("%.2f ms  %.0f fps  vsync %v", meter.ms, meter.fps, config.GetVSync()),
			text.Rect{X: 10, Y: float32(h) - 40}, gpu.Green)
		tr.Draw(fmt.Sprintf("quads %d  batches %d  glyphs %d  text batches %d",
			s.Quads, s.Batches, s.Glyphs, s.TextBatches),
			text.Rect{X: 10, Y: float32(h) - 20}, gpu.Green)
	}

	defer profiling.Track("renderer.EndFrame")()
	return r.EndFrame()
}

// checkerboard builds and uploads a two-tone n x n texture.
func checkerboard(r *renderer.Renderer, mem *arena.Arena, n int, c color.RGBA) (*texture.Texture, error) {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := range n {
		for x := range n {
			if (x/4+y/4)%2 == 0 {
				img.SetRGBA(x, y, c)
			} else {
				img.SetRGBA(x, y, color.RGBA{A: 255})
			}
		}
	}
	t, err := texture.FromImage(img, 4, mem)
	if err != nil {
		return nil, err
	}
	if err := r.UploadTexture(t); err != nil {
		return nil, err
	}
	return t, nil
}

// fpsMeter smooths frame times over half a second.
type fpsMeter struct {
	acc    float64
	frames int
	ms     float64
	fps    float64
}

// tick adds one frame and reports whether the averages were refreshed.
func (m *fpsMeter) tick(dt float64) bool {
	m.acc += dt
	m.frames++
	if m.acc < 0.5 {
		return false
	}
	m.ms = m.acc * 1000 / float64(m.frames)
	m.fps = float64(m.frames) / m.acc
	m.acc, m.frames = 0, 0
	return true
}
