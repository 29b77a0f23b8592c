package config

import (
	"context"
	"os"
	"time"
)

// WatchFile polls path and calls onUpdate with the reloaded config whenever
// its modification time advances. It performs an initial load before
// entering the watch loop.
func WatchFile(ctx context.Context, path string, interval time.Duration, onUpdate func(*Config)) error {
	if path == "" {
		path = "configs/config.yaml"
	}
	return watch(ctx, path, interval, Load, onUpdate)
}

// WatchResources reloads resources.yaml on change.
func WatchResources(ctx context.Context, path string, interval time.Duration, onUpdate func(*ResourcesConfig)) error {
	if path == "" {
		path = "configs/resources.yaml"
	}
	return watch(ctx, path, interval, LoadResourcesConfig, onUpdate)
}

func watch[T any](ctx context.Context, path string, interval time.Duration, load func(string) (T, error), onUpdate func(T)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := load(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := load(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
