package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

// Call performs one upstream model invocation.
type Call func(ctx context.Context) (llm.ChatResponse, error)

// Retrier reruns retryable upstream failures with capped exponential backoff
// (delay = base * 2^attempt). Non-retryable failures return immediately.
type Retrier struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Logger      *zap.Logger

	// OnRetry is invoked before each retry sleep with the failure kind.
	OnRetry func(kind ErrorKind)
}

// NewRetrier builds a retrier with defaults filled in.
func NewRetrier(maxRetries int, base, max time.Duration, logger *zap.Logger) *Retrier {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{MaxRetries: maxRetries, BaseBackoff: base, MaxBackoff: max, Logger: logger}
}

// Do runs call, retrying per policy. The context deadline bounds the whole
// sequence; a cancelled context stops immediately.
func (r *Retrier) Do(ctx context.Context, call Call) (llm.ChatResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return llm.ChatResponse{}, err
		}

		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}

		kind := Classify(err)
		if !kind.Retryable() || attempt >= r.MaxRetries {
			return llm.ChatResponse{}, err
		}
		if r.OnRetry != nil {
			r.OnRetry(kind)
		}

		delay := r.backoff(attempt)
		r.Logger.Warn("upstream call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("kind", string(kind)),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return llm.ChatResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (r *Retrier) backoff(attempt int) time.Duration {
	delay := r.BaseBackoff << uint(attempt)
	if delay > r.MaxBackoff || delay <= 0 {
		return r.MaxBackoff
	}
	return delay
}
