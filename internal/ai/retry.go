package ai

import (
	"context"
	"errors"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/qrengage/docpipe/internal/pkg/backoff"
)

// WrapRetryToEmbedder adds a per-call timeout plus exponential backoff
// around the embedder. An unavailable provider is not retried.
func WrapRetryToEmbedder(e IEmbedder, maxRetries int, baseDelay, timeout time.Duration) IEmbedder {
	if e == nil || maxRetries <= 1 {
		return e
	}
	return &retryEmbedder{
		next:       e,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		timeout:    timeout,
	}
}

type retryEmbedder struct {
	next       IEmbedder
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
}

func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var result []float32
	attempt := 0
	err := backoff.Do(ctx, r.maxRetries, r.baseDelay, func() error {
		attempt++
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		values, err := r.next.Embed(callCtx, text, taskType)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				// No credentials, retrying cannot help.
				return nil
			}
			logutil.GetLogger(ctx).Warn("embed attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.maxRetries),
				zap.Error(err),
			)
			return err
		}
		result = values
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrUnavailable
	}
	return result, nil
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}
