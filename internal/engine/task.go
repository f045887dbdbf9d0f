package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"accountops/internal/account"
	"accountops/internal/log"
	"accountops/internal/retry"
)

// Task 在单个账户上执行业务操作，所有错误与 panic 都在此处收敛为 Outcome。
type Task struct {
	op      Op
	dialer  Dialer
	policy  retry.Policy
	timeout time.Duration
	logger  *zap.Logger
}

// NewTask 创建账户任务。timeout 为零表示不限制整条链路的耗时。
func NewTask(op Op, dialer Dialer, policy retry.Policy, timeout time.Duration, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		op:      op,
		dialer:  dialer,
		policy:  policy,
		timeout: timeout,
		logger:  logger,
	}
}

// Op 返回任务执行的业务操作。
func (t *Task) Op() Op {
	return t.op
}

// Execute 实现 Runner。
func (t *Task) Execute(ctx context.Context, acct account.Account) Outcome {
	start := time.Now()
	logger := log.ForAccount(t.logger, acct.ID, t.op.Name())

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var (
		result   Result
		attempts int
		runErr   error
	)
	recovered := panics.Try(func() {
		result, attempts, runErr = t.run(ctx, acct, logger)
	})
	if recovered != nil {
		runErr = fmt.Errorf("engine: 任务异常: %w", recovered.AsError())
		logger.Error("账户任务 panic", zap.Any("panic", recovered.Value), zap.ByteString("stack", recovered.Stack))
	}

	var outcome Outcome
	if runErr != nil {
		outcome = failureOutcome(acct.ID, runErr, describe(runErr))
		logger.Warn("账户任务失败", zap.Int("attempts", attempts), zap.Error(runErr))
	} else {
		outcome = Outcome{
			AccountID: acct.ID,
			Status:    StatusSuccess,
			Result:    result,
			Message:   result.Display,
		}
		logger.Info("账户任务完成", zap.Int("attempts", attempts), zap.String("result", result.Display))
	}
	outcome.Attempts = attempts
	outcome.Duration = time.Since(start)
	return outcome
}

func (t *Task) run(ctx context.Context, acct account.Account, logger *zap.Logger) (Result, int, error) {
	conn, err := t.dialer.Dial(acct, logger)
	if err != nil {
		return Result{}, 0, fmt.Errorf("engine: 创建连接失败: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Debug("关闭连接失败", zap.Error(closeErr))
		}
	}()

	session := Session{
		Account: acct,
		Client:  conn,
		Logger:  logger,
	}

	if !t.op.Retryable() {
		result, err := t.op.Execute(ctx, session)
		return result, 1, err
	}

	policy := t.policy
	policy.Logger = logger

	attempts := 0
	result, err := retry.Do(ctx, policy, t.op.Name(), func(ctx context.Context, attempt int) (Result, error) {
		attempts = attempt
		return t.op.Execute(ctx, session)
	})
	return result, attempts, err
}

func describe(err error) string {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return fmt.Sprintf("%d 次尝试后失败: %v", exhausted.Attempts, exhausted.Last)
	}
	return err.Error()
}
