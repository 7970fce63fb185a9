package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/vetref/electrolyte-cli/internal/config"
	"github.com/vetref/electrolyte-cli/internal/consensus"
	"github.com/vetref/electrolyte-cli/internal/dosing"
	"github.com/vetref/electrolyte-cli/internal/fetcher"
	"github.com/vetref/electrolyte-cli/internal/resilience"
	"github.com/vetref/electrolyte-cli/internal/store"
)

// openStore opens the configured ruleset store and applies its schema.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func rulesPolicy(c *config.Config) resilience.Policy {
	return resilience.DefaultPolicy().WithAttempts(c.Rules.MaxRetries + 1)
}

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:  time.Duration(c.Rules.TimeoutSecs) * time.Second,
		Retry:    rulesPolicy(c),
		HostRate: rate.Limit(c.Rules.RatePerSec),
	})
}

// newSource builds the ruleset source named by rules.source. The returned
// close func releases the store, if one was opened.
func newSource(ctx context.Context, c *config.Config) (consensus.Source, func(), error) {
	noop := func() {}
	switch c.Rules.Source {
	case config.SourceEmbedded, "":
		return consensus.EmbeddedSource{}, noop, nil
	case config.SourceFile:
		return consensus.FileSource{Path: c.Rules.Path}, noop, nil
	case config.SourceHTTP:
		return consensus.NewHTTPSource(c.Rules.URL, newFetcher(c)), noop, nil
	case config.SourceStore:
		st, err := openStore(ctx, c)
		if err != nil {
			return nil, noop, err
		}
		return consensus.StoreSource{Store: st}, func() { _ = st.Close() }, nil
	}
	return nil, noop, eris.Errorf("unknown rules source %q", c.Rules.Source)
}

// newLoader returns an unloaded loader over the configured source.
func newLoader(ctx context.Context, c *config.Config) (*consensus.Loader, func(), error) {
	src, closeFn, err := newSource(ctx, c)
	if err != nil {
		return nil, closeFn, err
	}
	return consensus.NewLoader(src, consensus.WithFetchTimeout(loadBudget(c))), closeFn, nil
}

// loadBudget bounds one ruleset load by the fetcher's retry schedule.
func loadBudget(c *config.Config) time.Duration {
	if c.Rules.TimeoutSecs <= 0 {
		return 0
	}
	return rulesPolicy(c).Budget(time.Duration(c.Rules.TimeoutSecs) * time.Second)
}

func engineOptions(c *config.Config) dosing.Options {
	return dosing.Options{
		SodiumTBWCoef: c.Sodium.TBWCoef,
		UseRulesetTBW: c.Sodium.UseRulesetTBW,
	}
}
