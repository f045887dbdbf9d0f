package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/exchange"
)

// ErrExhausted 表示重试次数已用尽。
var ErrExhausted = errors.New("retry: 重试次数已用尽")

// ExhaustedError 携带最后一次失败的原因。
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%d 次尝试后仍失败: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Policy 为固定间隔的有限重试策略。
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable 判断错误是否值得再试，为空时使用 exchange.IsRetryable。
	Retryable func(error) bool
	Logger    *zap.Logger
}

// FromConfig 根据配置构建策略。
func FromConfig(cfg config.RetryConfig, logger *zap.Logger) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.Delay,
		Logger:      logger,
	}
}

// Do 调用 fn，可重试错误最多尝试 MaxAttempts 次，两次尝试之间等待 Delay，最后一次失败后不再等待。
// 不可重试的错误立即返回；次数耗尽时返回 *ExhaustedError。
func Do[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = exchange.IsRetryable
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (上次错误: %v)", ctxErr, lastErr)
			}
			return zero, ctxErr
		}

		start := time.Now()
		result, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info("重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", time.Since(start)),
				)
			}
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			logger.Error("调用失败（不可重试）",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return zero, err
		}

		if attempt == maxAttempts {
			break
		}

		logger.Warn("调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", p.Delay),
			zap.Error(err),
		)

		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%w (上次错误: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}
	}

	logger.Error("重试次数已用尽",
		zap.String("operation", operation),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}
