package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TimeSyncError 表示无法获取交易所服务器时间。签名依赖服务器时间，因此该错误不重试、不回退本地时钟。
type TimeSyncError struct {
	Cause error
}

func (e *TimeSyncError) Error() string {
	return fmt.Sprintf("exchange: 同步服务器时间失败: %v", e.Cause)
}

func (e *TimeSyncError) Unwrap() error {
	return e.Cause
}

// TransportError 表示网络层失败或交易所返回 5xx/429。
type TransportError struct {
	Path       string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("exchange: 请求 %s 失败 (HTTP %d)", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("exchange: 请求 %s 失败: %v", e.Path, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// OperationError 表示交易所拒绝了请求：retCode 非零，或返回了其他非 2xx 状态。
type OperationError struct {
	Path       string
	Code       int
	Message    string
	StatusCode int
}

func (e *OperationError) Error() string {
	if e.StatusCode > 0 && e.Code == 0 {
		return fmt.Sprintf("exchange: %s 返回 HTTP %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("exchange: %s 返回错误 %d: %s", e.Path, e.Code, e.Message)
}

// IsRetryable 判断错误是否可重试。
func IsRetryable(err error) bool {
	_, retry := classifyError(err)
	return retry
}

func classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var syncErr *TimeSyncError
	if errors.As(err, &syncErr) {
		return err, false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err, true
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
