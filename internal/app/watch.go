package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/metrics"
)

// DefaultCheckInterval is how often Watch pings the backing stores.
const DefaultCheckInterval = 30 * time.Second

// CheckDependencies pings the backing stores once and records each result in
// skycast_dependency_up. It returns the number of failed checks.
func (a *App) CheckDependencies(ctx context.Context) int {
	checks := map[string]func(context.Context) error{
		"sessions": a.Sessions.Ping,
	}
	if a.Archive != nil {
		checks["archive"] = a.Archive.TestConnection
	}

	failed := 0
	for name, check := range checks {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(pctx)
		cancel()
		if err != nil {
			failed++
			metrics.DependencyUp.WithLabelValues(name).Set(0)
			log.Warn().Err(err).Str("dependency", name).Msg("dependency check failed")
			continue
		}
		metrics.DependencyUp.WithLabelValues(name).Set(1)
	}
	return failed
}

// Watch checks the backing stores every interval until ctx is done.
func (a *App) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.CheckDependencies(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.CheckDependencies(ctx)
		}
	}
}
