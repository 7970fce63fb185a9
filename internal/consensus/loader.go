package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrRulesUnavailable is returned by every ruleset-dependent operation while
// no ruleset has been loaded successfully.
var ErrRulesUnavailable = eris.New("consensus: rules unavailable")

// State is the loader lifecycle.
type State int

// Loader states.
const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// UnavailableError is a failed load. It matches both ErrRulesUnavailable
// and the underlying cause with errors.Is.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return ErrRulesUnavailable.Error() + ": " + e.Cause.Error()
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrRulesUnavailable, e.Cause}
}

// Loader fetches, parses and caches a ruleset. At most one fetch is in
// flight at a time; concurrent Load calls share its result. Load never
// refetches a ready ruleset; Reload does. A failed load is retried by the
// next Load call.
//
// The shared fetch is detached from the cancellation of the caller that
// started it. A cancelled caller stops waiting; the others still get the
// result.
type Loader struct {
	source  Source
	group   singleflight.Group
	timeout time.Duration

	mu       sync.RWMutex
	state    State
	rules    *Ruleset
	err      error
	loadedAt time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFetchTimeout bounds one shared fetch, retries included. Zero leaves it
// unbounded apart from the source's own timeouts.
func WithFetchTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// NewLoader returns an unloaded Loader reading from src.
func NewLoader(src Source, opts ...LoaderOption) *Loader {
	l := &Loader{source: src}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the cached ruleset, fetching it first if needed. If ctx ends
// before the fetch does, Load returns the context error and the fetch keeps
// running for the other callers.
func (l *Loader) Load(ctx context.Context) (*Ruleset, error) {
	if rs, ok := l.ready(); ok {
		return rs, nil
	}

	ch := l.group.DoChan("ruleset", func() (any, error) {
		if rs, ok := l.ready(); ok {
			return rs, nil
		}
		return l.detached(ctx, false)
	})
	return l.wait(ctx, ch)
}

// Reload fetches the ruleset again even when one is ready. A failed reload
// keeps the ready ruleset and its state, and returns the error.
func (l *Loader) Reload(ctx context.Context) (*Ruleset, error) {
	ch := l.group.DoChan("ruleset", func() (any, error) {
		return l.detached(ctx, true)
	})
	return l.wait(ctx, ch)
}

// detached runs fetch on a context that outlives ctx's cancellation.
func (l *Loader) detached(ctx context.Context, reload bool) (*Ruleset, error) {
	fctx := context.WithoutCancel(ctx)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(fctx, l.timeout)
		defer cancel()
	}
	return l.fetch(fctx, reload)
}

func (l *Loader) wait(ctx context.Context, ch <-chan singleflight.Result) (*Ruleset, error) {
	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "consensus: wait for ruleset")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Ruleset), nil
	}
}

func (l *Loader) fetch(ctx context.Context, reload bool) (*Ruleset, error) {
	prev, wasReady := l.ready()
	if !reload || !wasReady {
		l.setState(StateLoading, nil, nil)
	}
	log := zap.L().With(zap.String("source", l.source.Name()), zap.Bool("reload", reload))
	log.Info("consensus: loading")

	start := time.Now()
	data, err := l.source.Fetch(ctx)
	if err == nil {
		var rs *Ruleset
		if rs, err = Parse(data); err == nil {
			if wasReady && rs.Checksum() == prev.Checksum() {
				log.Info("consensus: ruleset unchanged", zap.String("version", prev.Version))
				return prev, nil
			}
			l.setState(StateReady, rs, nil)
			log.Info("consensus: ruleset ready",
				zap.String("version", rs.Version),
				zap.String("checksum", rs.Checksum()),
				zap.Duration("elapsed", time.Since(start)),
			)
			return rs, nil
		}
	}

	uerr := &UnavailableError{Cause: err}
	if reload && wasReady {
		log.Warn("consensus: reload failed, keeping current ruleset",
			zap.String("version", prev.Version), zap.Error(err))
		return nil, uerr
	}
	l.setState(StateFailed, nil, uerr)
	log.Error("consensus: load failed", zap.Error(err))
	return nil, uerr
}

func (l *Loader) ready() (*Ruleset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rules, l.state == StateReady
}

func (l *Loader) setState(s State, rs *Ruleset, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
	l.rules = rs
	l.err = err
	if s == StateReady {
		l.loadedAt = time.Now()
	}
}

// Rules returns the ruleset without loading. It fails with
// ErrRulesUnavailable (wrapping the last load error, if any) unless the
// loader is ready.
func (l *Loader) Rules() (*Ruleset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch l.state {
	case StateReady:
		return l.rules, nil
	case StateFailed:
		return nil, l.err
	}
	return nil, eris.Wrapf(ErrRulesUnavailable, "loader is %s", l.state)
}

// State reports the lifecycle state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// LoadedAt is when the ruleset became ready; zero before that.
func (l *Loader) LoadedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}
