// Package resolver turns a content ID into a ranked list of downloadable
// asset descriptors. Three strategies are tried in a fixed order: the
// authenticated metadata API, an HTML scrape of the watch page, and
// deterministic construction of likely CDN URLs. Each strategy is attempted
// only after the previous one produced zero usable descriptors.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/types"
)

// Doer abstracts HTTP execution for testability.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource provides the provider bearer token. An empty token means
// "proceed unauthenticated".
type TokenSource interface {
	Token(ctx context.Context) string
	Invalidate()
}

// Strategy is one independent method of resolving a content ID.
// Implementations absorb their own upstream failures and report them as
// errors; the resolver converts every strategy error into "try the next
// strategy".
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, id types.ContentID) (*types.ResolutionResult, error)
}

// Resolver runs the strategy chain and ranks the combined result.
type Resolver struct {
	strategies      []Strategy
	strategyTimeout time.Duration
	log             *logging.Logger
}

// Options configures the standard strategy chain.
type Options struct {
	Client          Doer
	Tokens          TokenSource
	APIBaseURL      string
	ProviderDomain  string
	UserAgent       string
	StrategyTimeout time.Duration
}

// New builds a Resolver with the standard three-strategy chain. The
// construction strategy needs no network access and always produces
// candidates, so it terminates the chain.
func New(opts Options, log *logging.Logger) *Resolver {
	origin := "https://www." + opts.ProviderDomain
	table := DefaultVariantTable(opts.ProviderDomain)

	return &Resolver{
		strategies: []Strategy{
			newAPIStrategy(opts.Client, opts.Tokens, opts.APIBaseURL, opts.UserAgent, origin, log),
			newScrapeStrategy(opts.Client, opts.UserAgent, origin, log),
			newConstructStrategy(table),
		},
		strategyTimeout: opts.StrategyTimeout,
		log:             log.WithComponent("resolver"),
	}
}

// NewWithStrategies builds a Resolver over an explicit chain. Used by tests
// and by callers that need a reduced chain.
func NewWithStrategies(timeout time.Duration, log *logging.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies:      strategies,
		strategyTimeout: timeout,
		log:             log.WithComponent("resolver"),
	}
}

// Resolve runs the chain until a strategy yields at least one descriptor,
// then ranks the descriptors. A response lacking usable asset URLs counts as
// zero descriptors and the chain continues; nothing a strategy does can
// abort the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, id types.ContentID) (*types.ResolutionResult, error) {
	for _, s := range r.strategies {
		start := time.Now()
		res, err := r.runStrategy(ctx, s, id)

		switch {
		case err != nil:
			r.log.Warn("strategy failed",
				"strategy", s.Name(),
				"content_id", string(id),
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		case res == nil || len(res.Downloads) == 0:
			r.log.Debug("strategy found nothing", "strategy", s.Name(), "content_id", string(id))
		default:
			res.Downloads = Rank(res.Downloads)
			r.log.Info("resolved",
				"strategy", s.Name(),
				"content_id", string(id),
				"descriptors", len(res.Downloads),
			)
			return res, nil
		}
	}

	return nil, fmt.Errorf("%w: content %q may be private, deleted, or the URL is incorrect", types.ErrResolutionFailed, id)
}

// runStrategy bounds one strategy with the per-strategy timeout so a hung
// upstream is treated as a failed strategy instead of blocking fallthrough.
func (r *Resolver) runStrategy(ctx context.Context, s Strategy, id types.ContentID) (*types.ResolutionResult, error) {
	if r.strategyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.strategyTimeout)
		defer cancel()
	}
	return s.Resolve(ctx, id)
}
