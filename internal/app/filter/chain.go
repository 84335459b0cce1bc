package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig creates a chain with the playable filter followed by
// every registered filter enabled in configuration, in name order.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	chain := NewChain()
	chain.Add(NewPlayableFilter())

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(cfg.Filters[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "invalid config for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("enabled filter: name=%s", name)
	}

	for name := range cfg.Filters {
		if _, ok := registry[name]; !ok {
			zlog.Warn().Msgf("unknown filter in config: %s", name)
		}
	}

	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Check runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, accepted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the tracks that pass every filter, in their original order,
// and the number of rejections per code.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track) ([]track.Track, map[string]int) {
	accepted := make([]track.Track, 0, len(tracks))
	rejected := make(map[string]int)

	for _, t := range tracks {
		result := c.Check(ctx, t, accepted)
		if !result.Accepted {
			rejected[result.Code]++
			zlog.Trace().Msgf("track rejected: id=%s title=%q code=%s", t.ID, t.Title, result.Code)
			continue
		}
		accepted = append(accepted, t)
	}

	if len(rejected) > 0 {
		zlog.Debug().Msgf("filtered catalog result: accepted=%d rejected=%v", len(accepted), rejected)
	}
	return accepted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
