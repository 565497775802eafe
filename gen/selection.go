package gen

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/filmforge/types"
)

// Criteria narrows the eligible providers for a kind. Zero values mean
// "don't care".
type Criteria struct {
	MaxCostPerUnit   float64
	RequireSync      bool // exclude async providers (interactive flows)
	RequireBatch     bool
	RequiredFeatures []string
}

// Select picks the cheapest registered provider for kind that satisfies the
// criteria. Ties keep the lexicographically first name, which keeps the
// choice deterministic across processes.
func (r *Registry) Select(kind types.Kind, c Criteria) (Entry, error) {
	var best *Entry
	for _, e := range r.List(kind) {
		if !matches(e.Meta, c) {
			continue
		}
		if best == nil || e.Meta.CostPerUnit < best.Meta.CostPerUnit {
			e := e
			best = &e
		}
	}
	if best == nil {
		return Entry{}, types.NewError(types.ErrProviderNotFound,
			fmt.Sprintf("no %s provider satisfies the selection criteria", kind))
	}
	return *best, nil
}

func matches(m Metadata, c Criteria) bool {
	if c.RequireSync && m.IsAsync {
		return false
	}
	if c.RequireBatch && !m.SupportsBatch {
		return false
	}
	if c.MaxCostPerUnit > 0 && m.CostPerUnit > c.MaxCostPerUnit {
		return false
	}
	for _, want := range c.RequiredFeatures {
		found := false
		for _, f := range m.Features {
			if f == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HealthResult is one provider's health-check outcome.
type HealthResult struct {
	Kind     types.Kind    `json:"kind"`
	Provider string        `json:"provider"`
	Healthy  bool          `json:"healthy"`
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
}

// ConfigFunc resolves a per-call ProviderConfig for a registered identity.
type ConfigFunc func(ctx context.Context, kind types.Kind, provider string) (ProviderConfig, error)

// HealthCheckAll probes every registered provider concurrently and returns
// one result per entry. Probe failures are recorded per provider, never
// propagated: an unreachable vendor must not mask the others.
func (r *Registry) HealthCheckAll(ctx context.Context, cfgFor ConfigFunc, logger *zap.Logger) []HealthResult {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries := r.List()
	results := make([]HealthResult, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			res := HealthResult{Kind: e.Kind, Provider: e.Provider}

			cfg, err := cfgFor(ctx, e.Kind, e.Provider)
			if err != nil {
				res.Error = err.Error()
				results[i] = res
				return nil
			}

			p, err := r.New(cfg)
			if err != nil {
				res.Error = err.Error()
				results[i] = res
				return nil
			}

			start := time.Now()
			err = p.ValidateConfig(ctx)
			res.Latency = time.Since(start)
			if err != nil {
				res.Error = err.Error()
				logger.Debug("provider health check failed",
					zap.String("kind", string(e.Kind)),
					zap.String("provider", e.Provider),
					zap.Error(err))
			} else {
				res.Healthy = true
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
