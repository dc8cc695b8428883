package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

func TestClassify(t *testing.T) {
	require.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
	require.Equal(t, KindDegraded, Classify(ErrServiceDegraded))
	require.Equal(t, KindAuth, Classify(&llm.StatusError{Status: 401}))
	require.Equal(t, KindClient, Classify(&llm.StatusError{Status: 422}))
	require.Equal(t, KindServer, Classify(&llm.StatusError{Status: 503}))
	require.Equal(t, KindTimeout, Classify(&llm.StatusError{Status: 429}))
	require.Equal(t, KindUnknown, Classify(errors.New("boom")))

	require.True(t, KindServer.Retryable())
	require.True(t, KindTimeout.Retryable())
	require.True(t, KindConnection.Retryable())
	require.False(t, KindAuth.Retryable())
	require.False(t, KindClient.Retryable())
	require.False(t, KindUnknown.Retryable())
}

func TestRetrierRetriesTransientFailures(t *testing.T) {
	r := NewRetrier(3, time.Millisecond, 10*time.Millisecond, nil)

	calls := 0
	resp, err := r.Do(context.Background(), func(context.Context) (llm.ChatResponse, error) {
		calls++
		if calls < 3 {
			return llm.ChatResponse{}, &llm.StatusError{Status: 503}
		}
		return llm.ChatResponse{Message: llm.ChatMessage{Content: "ok"}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Message.Content)
	require.Equal(t, 3, calls)
}

func TestRetrierNonRetryableReturnsImmediately(t *testing.T) {
	r := NewRetrier(3, time.Millisecond, 10*time.Millisecond, nil)

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) (llm.ChatResponse, error) {
		calls++
		return llm.ChatResponse{}, &llm.StatusError{Status: 401}
	})
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 1, calls)
}

func TestRetrierExhaustsBudget(t *testing.T) {
	r := NewRetrier(2, time.Millisecond, 10*time.Millisecond, nil)

	var kinds []ErrorKind
	r.OnRetry = func(k ErrorKind) { kinds = append(kinds, k) }

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) (llm.ChatResponse, error) {
		calls++
		return llm.ChatResponse{}, &llm.StatusError{Status: 500}
	})
	require.Error(t, err)
	require.Equal(t, 3, calls) // initial attempt plus two retries
	require.Equal(t, []ErrorKind{KindServer, KindServer}, kinds)
}

func TestRetrierStopsOnCancel(t *testing.T) {
	r := NewRetrier(5, time.Hour, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Do(ctx, func(context.Context) (llm.ChatResponse, error) {
		cancel()
		return llm.ChatResponse{}, &llm.StatusError{Status: 503}
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	r := NewRetrier(5, time.Second, 4*time.Second, nil)

	require.Equal(t, time.Second, r.backoff(0))
	require.Equal(t, 2*time.Second, r.backoff(1))
	require.Equal(t, 4*time.Second, r.backoff(2))
	require.Equal(t, 4*time.Second, r.backoff(3))
	require.Equal(t, 4*time.Second, r.backoff(40))
}
