package browser

import (
	"context"
	"log/slog"
	"time"

	"example.com/focusforge/internal/sampler"
)

// Notifier receives tracking events.
type Notifier interface {
	Notify(ctx context.Context, ev sampler.Event) error
}

type snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Watcher polls the browser and converts observed changes into sampler events.
type Watcher struct {
	source   snapshotter
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher polls host every interval.
func NewWatcher(host *Host, notifier Notifier, interval time.Duration, logger *slog.Logger) *Watcher {
	return newWatcher(host, notifier, interval, logger)
}

func newWatcher(source snapshotter, notifier Notifier, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{source: source, notifier: notifier, interval: interval, logger: logger}
}

// Run polls until ctx ends. Poll failures are logged and retried on the next interval.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	prev := Snapshot{Focused: true}
	for {
		next, err := w.source.Snapshot(ctx)
		if err != nil {
			w.logger.Warn("browser poll failed", slog.Any("error", err))
		} else {
			for _, ev := range diff(prev, next) {
				if err := w.notifier.Notify(ctx, ev); err != nil {
					return err
				}
			}
			prev = next
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
