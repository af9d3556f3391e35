// Command triangle renders a scene of meshes with one dynamic uniform
// descriptor set per frame in flight.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	sdl "github.com/NOT-REAL-GAMES/sdl3go"
	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/NOT-REAL-GAMES/trianglego/camera"
	"github.com/NOT-REAL-GAMES/trianglego/config"
	"github.com/NOT-REAL-GAMES/trianglego/descriptor"
	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/frame"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/vkgpu"
	"github.com/NOT-REAL-GAMES/trianglego/scene"
	"github.com/NOT-REAL-GAMES/trianglego/systems"
	"github.com/NOT-REAL-GAMES/trianglego/texture"
	"github.com/NOT-REAL-GAMES/trianglego/uniform"
)

func init() {
	// SDL video calls must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "triangle:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file, reloaded while running")
	scenePath := flag.String("scene", "", "scene file, overrides the config")
	profileMode := flag.String("profile", "", `write a "cpu" or "mem" profile to the working directory`)
	logLevel := flag.String("log-level", "", "debug, info, warn or error, overrides the config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *scenePath != "" {
		cfg.Scene = *scenePath
	}
	if *logLevel != "" {
		if _, err := config.ParseLevel(*logLevel); err != nil {
			return err
		}
		cfg.LogLevel = *logLevel
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return errors.Errorf("unknown profile mode %q", *profileMode)
	}

	if runtime.GOOS == "linux" && os.Getenv("SDL_VIDEODRIVER") == "" {
		os.Setenv("SDL_VIDEODRIVER", "x11")
	}
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return errors.Wrap(err, "init SDL")
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, sdl.WINDOW_VULKAN)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer window.Destroy()

	exts, err := sdl.VulkanGetInstanceExtensions()
	if err != nil {
		return errors.Wrap(err, "query Vulkan instance extensions")
	}

	instance, err := vkgpu.NewInstance(vkgpu.InstanceOptions{
		AppName:    cfg.Window.Title,
		Extensions: exts,
		Validation: cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	surface, err := window.VulkanCreateSurface(instance.Handle())
	if err != nil {
		return errors.Wrap(err, "create surface")
	}

	windowExtent := gpu.Extent{Width: uint32(cfg.Window.Width), Height: uint32(cfg.Window.Height)}
	dev, err := vkgpu.Open(instance, surface, vkgpu.DeviceOptions{
		PresentMode:  cfg.Renderer.PresentMode,
		Validation:   cfg.Renderer.Validation,
		DrawableSize: func() gpu.Extent { return windowExtent },
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer dev.Destroy()

	tex, err := texture.Open(dev, cfg.Texture, logger)
	if err != nil {
		return err
	}
	defer tex.Destroy()

	sc := scene.Default()
	if cfg.Scene != "" {
		if sc, err = scene.Load(cfg.Scene); err != nil {
			return err
		}
	}

	store := ecs.NewStore()
	materials := systems.NewMaterials(logger)
	defer materials.Destroy()

	populated, err := sc.Populate(store, materials.ByName())
	if err != nil {
		return err
	}
	logger.Info("scene loaded", "path", cfg.Scene, "entities", len(populated.Entities), "meshes", len(populated.Meshes))

	table, err := systems.PackMeshes(dev, store, packProgress())
	if err != nil {
		return err
	}
	defer table.Destroy()

	frames := cfg.Renderer.FramesInFlight
	alloc, err := uniform.New(dev, frames, table.Len())
	if err != nil {
		return err
	}
	defer alloc.Destroy()

	binder, err := descriptor.Build(dev, frames, alloc.Buffers(), ecs.MVPSize, tex)
	if err != nil {
		return err
	}
	defer binder.Destroy()

	shaders, err := compileShaders(true)
	if err != nil {
		return err
	}
	if err := materials.Build(dev, binder.Layout(), shaders); err != nil {
		return err
	}

	sched, err := frame.New(dev, frame.Options{
		FramesInFlight: frames,
		FenceTimeout:   cfg.Renderer.FenceTimeout,
		ClearColor:     cfg.Renderer.ClearColor,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer sched.Destroy()

	renderer := systems.NewRenderer(store, table, alloc, binder, camera.New(), logger)
	renderer.SetProjection(systems.Projection{
		FovY: cfg.Renderer.FovY,
		Near: cfg.Renderer.Near,
		Far:  cfg.Renderer.Far,
	})
	renderer.SetWireframe(cfg.Renderer.Wireframe)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	updates := make(chan config.Live, 1)
	var watcher *config.Watcher
	if *configPath != "" {
		if watcher, err = config.Watch(*configPath); err != nil {
			logger.Warn("config hot reload disabled", "err", err)
		} else {
			g.Go(func() error { return forwardChanges(gctx, watcher, updates, logger) })
		}
	}

	loop := &liveLoop{
		sched:    sched,
		renderer: renderer,
		level:    level,
		updates:  updates,
		meter:    frame.NewMeter(frame.DefaultMeterWindow),
		logger:   logger,
	}
	logger.Info("rendering", "frames_in_flight", frames, "entities", table.Len())
	runErr := sched.Run(gctx, &eventPump{}, loop)

	stop()
	if watcher != nil {
		watcher.Close()
	}
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("stopped", "frames", sched.Frames(), "recreations", sched.Recreations())
	return runErr
}

// packProgress draws a progress bar on stderr once packing starts.
func packProgress() func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "packing meshes")
		}
		_ = bar.Set(done)
	}
}
