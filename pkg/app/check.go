package app

import (
	"context"
	"time"
)

// CheckResult is the outcome of one provider health check.
type CheckResult struct {
	Name    string
	Err     error
	Latency time.Duration
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// Check pings every remote provider. Call after Init.
func (a *App) Check(ctx context.Context) []CheckResult {
	targets := []struct {
		name string
		h    healthChecker
	}{
		{"llm", a.llm},
		{"vision", a.vision},
		{"voice", a.primary},
		{"backup voice", a.secondary},
	}

	var out []CheckResult
	seen := make(map[healthChecker]bool)
	for _, t := range targets {
		if t.h == nil || seen[t.h] {
			continue
		}
		seen[t.h] = true

		start := time.Now()
		err := t.h.Health(ctx)
		out = append(out, CheckResult{Name: t.name, Err: err, Latency: time.Since(start)})
	}
	return out
}
