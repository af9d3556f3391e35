package main

import (
	"context"
	"log/slog"

	"github.com/NOT-REAL-GAMES/trianglego/config"
	"github.com/NOT-REAL-GAMES/trianglego/frame"
	"github.com/NOT-REAL-GAMES/trianglego/systems"
)

// forwardChanges relays reloaded configs to the render loop until ctx is
// done or the watcher closes. Only the newest pending change is kept.
func forwardChanges(ctx context.Context, w *config.Watcher, updates chan config.Live, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-w.Changes:
			if !ok {
				return nil
			}
			logger.Info("config reloaded", "path", w.Path())
			select {
			case <-updates:
			default:
			}
			updates <- cfg.Live()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config reload rejected", "err", err)
		}
	}
}

// liveLoop wraps the renderer, applying config changes between frames and
// logging the frame rate.
type liveLoop struct {
	sched    *frame.Scheduler
	renderer *systems.Renderer
	level    *slog.LevelVar
	updates  <-chan config.Live
	meter    *frame.Meter
	logger   *slog.Logger
}

func (l *liveLoop) Record(fc frame.Context) error {
	select {
	case live := <-l.updates:
		l.apply(live)
	default:
	}

	if _, fps, report := l.meter.Tick(); report {
		l.logger.Info("frame rate",
			"fps", int(fps+0.5),
			"frames", l.sched.Frames(),
			"recreations", l.sched.Recreations(),
			"draws", l.renderer.Draws(),
		)
	}
	return l.renderer.Record(fc)
}

func (l *liveLoop) apply(live config.Live) {
	l.sched.SetClearColor(live.ClearColor)
	proj := l.renderer.Projection()
	proj.FovY = live.FovY
	l.renderer.SetProjection(proj)
	l.renderer.SetWireframe(live.Wireframe)
	l.level.Set(live.LogLevel)
	l.logger.Debug("live settings applied",
		"fov_y", live.FovY,
		"wireframe", live.Wireframe,
		"log_level", live.LogLevel.String(),
	)
}
