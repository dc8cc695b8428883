package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/llm"
	"github.com/inkwell-ai/inkwell/internal/observability"
)

// Executor composes the three policies around every upstream model call in
// fixed order: breaker check first (a known-degraded dependency is never
// cache-checked or retried), then cache, then retry around the call itself.
type Executor struct {
	breaker *Breaker
	cache   *Cache
	retrier *Retrier
	monitor *observability.Monitor
	logger  *zap.Logger

	callTimeout time.Duration
}

// NewExecutor wires the resilience policies together. cache may be nil to
// disable caching entirely; monitor may be nil.
func NewExecutor(breaker *Breaker, cache *Cache, retrier *Retrier, monitor *observability.Monitor, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		breaker:     breaker,
		cache:       cache,
		retrier:     retrier,
		monitor:     monitor,
		logger:      logger,
		callTimeout: 30 * time.Second,
	}
}

// SetCallTimeout bounds each upstream call independently of the request
// deadline. Exceeding it classifies as a retryable timeout.
func (e *Executor) SetCallTimeout(d time.Duration) {
	if d > 0 {
		e.callTimeout = d
	}
}

// Ready reports whether the model dependency is accepting calls. It never
// consumes the half-open probe slot.
func (e *Executor) Ready() error {
	if e.breaker != nil && e.breaker.State() == StateOpen {
		return ErrServiceDegraded
	}
	return nil
}

// Do executes call under the composed policies. key is the request
// fingerprint; cacheable requests are served from and stored to the cache.
// Outcomes of calls whose context was cancelled are discarded: they mutate
// neither the cache nor the breaker.
func (e *Executor) Do(ctx context.Context, key string, cacheable bool, call Call) (llm.ChatResponse, error) {
	if e.breaker != nil {
		if err := e.breaker.Allow(); err != nil {
			e.logger.Warn("circuit open, failing fast")
			return llm.ChatResponse{}, err
		}
	}

	if e.cache != nil && cacheable {
		if resp, ok := e.cache.Get(key); ok {
			e.monitor.RecordCacheHit()
			// The admitted call never ran; the probe slot is returned, not
			// counted as a trial outcome.
			if e.breaker != nil {
				e.breaker.Release()
			}
			return resp, nil
		}
		e.monitor.RecordCacheMiss()
	}

	start := time.Now()
	callCtx := ctx
	var cancel context.CancelFunc
	if e.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	var resp llm.ChatResponse
	var err error
	if e.retrier != nil {
		resp, err = e.retrier.Do(callCtx, call)
	} else {
		resp, err = call(callCtx)
	}

	if ctx.Err() != nil {
		// Aborted by the caller: the eventual result is discarded and must
		// leave no residual cache or circuit state.
		if e.breaker != nil {
			e.breaker.Release()
		}
		return llm.ChatResponse{}, ctx.Err()
	}

	e.monitor.RecordRequest(time.Since(start), err != nil)
	if err != nil {
		if e.breaker != nil {
			e.breaker.RecordFailure()
		}
		return llm.ChatResponse{}, err
	}

	if e.breaker != nil {
		e.breaker.RecordSuccess()
	}
	e.monitor.RecordTokens(resp.Usage.CompletionTokens)
	if e.cache != nil && cacheable {
		e.cache.Set(key, resp)
	}
	return resp, nil
}

// Admit guards an upstream call that streams its result and so cannot pass
// through Do: cache and retry do not apply because already-emitted deltas
// cannot be replayed, but the call still counts toward the breaker and the
// monitor. The returned record func must be called exactly once with the
// call's outcome; outcomes of cancelled calls are discarded as in Do. A nil
// Executor admits everything and records nothing.
func (e *Executor) Admit(ctx context.Context) (func(error), error) {
	if e == nil {
		return func(error) {}, nil
	}
	if e.breaker != nil {
		if err := e.breaker.Allow(); err != nil {
			e.logger.Warn("circuit open, failing fast")
			return nil, err
		}
	}

	start := time.Now()
	return func(err error) {
		if ctx.Err() != nil {
			if e.breaker != nil {
				e.breaker.Release()
			}
			return
		}
		e.monitor.RecordRequest(time.Since(start), err != nil)
		if e.breaker == nil {
			return
		}
		if err != nil {
			e.breaker.RecordFailure()
			return
		}
		e.breaker.RecordSuccess()
	}, nil
}

// RunSweeper periodically drops expired cache entries until ctx is done.
func (e *Executor) RunSweeper(ctx context.Context, interval time.Duration) {
	if e.cache == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.cache.Sweep(); n > 0 {
				e.logger.Debug("cache sweep", zap.Int("evicted", n))
			}
		}
	}
}
