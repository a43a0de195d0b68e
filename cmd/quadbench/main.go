// Command quadbench draws many textured quads with vsync off and prints the
// frame rate and batch count once per second.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"runtime"
	"time"

	"grapple/internal/arena"
	"grapple/internal/config"
	"grapple/internal/gpu"
	"grapple/internal/gpu/opengl"
	"grapple/internal/log"
	"grapple/internal/renderer"
	"grapple/internal/texture"
	"grapple/internal/window"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	fs := flag.NewFlagSet("quadbench", flag.ExitOnError)
	cfg := registerFlags(fs)
	quads := fs.Int("quads", 10000, "quads drawn per frame")
	textures := fs.Int("textures", 4, "distinct textures, cycled every -run quads")
	run := fs.Int("run", 64, "consecutive quads sharing a texture")
	_ = fs.Parse(os.Args[1:])
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lg := log.New(cfg.LogLevel, cfg.LogDir, true)
	err := bench(cfg, lg, max(*quads, 0), max(*textures, 1), max(*run, 1))
	if err != nil {
		lg.Error("quadbench", "error", err)
	}
	lg.Close()
	if err != nil {
		os.Exit(1)
	}
}

// registerFlags is config.Register with benchmark defaults.
func registerFlags(fs *flag.FlagSet) *config.Config {
	cfg := config.Register(fs)
	fs.Lookup("vsync").DefValue = "false"
	cfg.VSync = false
	cfg.Title = "Grapple quad benchmark"
	fs.Lookup("title").DefValue = cfg.Title
	return cfg
}

func bench(cfg *config.Config, lg *log.Logger, quads, textures, run int) error {
	win, err := window.Open(window.Config{
		Width:  cfg.Width,
		Height: cfg.Height,
		Title:  cfg.Title,
		VSync:  cfg.VSync,
	}, lg)
	if err != nil {
		return err
	}
	defer win.Destroy()

	backend, err := opengl.New(win, lg)
	if err != nil {
		return err
	}
	mem := arena.New(4 << 20)
	defer mem.Release()
	r, err := renderer.New(backend, win, mem,
		renderer.WithQuadsPerBatch(cfg.QuadsPerBatch),
		renderer.WithLogger(lg))
	if err != nil {
		return err
	}
	defer r.Destroy()

	set := make([]*texture.Texture, textures)
	for i := range set {
		if set[i], err = solid(mem, hue(i, textures)); err != nil {
			return err
		}
		if err := r.UploadTexture(set[i]); err != nil {
			return err
		}
	}

	w, h := win.Size()
	pos := layout(quads, w, h)
	dim := mgl32.Vec2{16, 16}

	frames := 0
	last := time.Now()
	fpsTicker := time.NewTicker(time.Second)
	defer fpsTicker.Stop()

	for win.IsOpen() {
		// close on Esc
		if win.GLFW().GetKey(glfw.KeyEscape) == glfw.Press {
			win.Close()
		}

		if err := r.BeginFrame(win); err != nil {
			return err
		}
		if err := r.Clear(gpu.Black); err != nil {
			return err
		}
		for i, p := range pos {
			if err := r.DrawTexture(set[(i/run)%textures], p, dim); err != nil {
				return err
			}
		}
		if err := r.EndFrame(); err != nil {
			return err
		}
		win.PollEvents()

		frames++

		select {
		case <-fpsTicker.C:
			now := time.Now()
			elapsed := now.Sub(last).Seconds()
			if elapsed > 0 {
				s := r.Stats()
				fmt.Printf("FPS: %d  quads: %d  batches: %d\n", int(float64(frames)/elapsed+0.5), s.Quads, s.Batches)
			}
			frames = 0
			last = now
		default:
		}
	}
	return nil
}

// layout scatters n quad origins over a w by h area with a fixed LCG so
// every run draws the same frame.
func layout(n, w, h int) []mgl32.Vec2 {
	pos := make([]mgl32.Vec2, max(n, 0))
	seed := uint32(1)
	for i := range pos {
		seed = seed*1664525 + 1013904223
		x := float32(seed>>16) / 65536 * float32(max(w-16, 0))
		seed = seed*1664525 + 1013904223
		y := float32(seed>>16) / 65536 * float32(max(h-16, 0))
		pos[i] = mgl32.Vec2{x, y}
	}
	return pos
}

func hue(i, n int) color.RGBA {
	f := float64(i) / float64(n)
	return color.RGBA{
		R: uint8(255 * (1 - f)),
		G: uint8(255 * f),
		B: uint8(128 + 127*f),
		A: 255,
	}
}

func solid(mem *arena.Arena, c color.RGBA) (*texture.Texture, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return texture.FromImage(img, 4, mem)
}
