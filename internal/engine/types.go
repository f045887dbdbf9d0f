package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"accountops/internal/account"
	"accountops/internal/exchange"
)

// Status 为单个账户的执行结果状态。
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Session 为业务操作在单个账户上执行时可用的上下文，Client 只属于该账户。
type Session struct {
	Account account.Account
	Client  exchange.API
	Logger  *zap.Logger
}

// Result 为业务操作的返回值。Value 有效时是汇总的唯一依据，Display 仅用于展示。
type Result struct {
	Display string
	Value   decimal.NullDecimal
	Flagged bool
	Fields  map[string]string
}

// Op 为在每个账户上执行的业务操作。
type Op interface {
	Name() string
	// Retryable 为 false 时只执行一次，例如不可安全重放的资金划转。
	Retryable() bool
	// NumericField 为报告汇总列名，空串表示无汇总。
	NumericField() string
	Execute(ctx context.Context, s Session) (Result, error)
}

// Outcome 为单个账户的最终结果，由对应任务写入一次。
type Outcome struct {
	AccountID string
	Status    Status
	Result    Result
	Err       error
	Message   string
	Attempts  int
	Duration  time.Duration
}

// Succeeded 表示该账户执行成功。
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func failureOutcome(accountID string, err error, message string) Outcome {
	return Outcome{
		AccountID: accountID,
		Status:    StatusFailure,
		Err:       err,
		Message:   message,
	}
}

// Conn 为账户独占的交易所连接。
type Conn interface {
	exchange.API
	Close() error
}

// Dialer 为账户创建独立连接。
type Dialer interface {
	Dial(acct account.Account, logger *zap.Logger) (Conn, error)
}

// DialerFunc 将函数适配为 Dialer。
type DialerFunc func(acct account.Account, logger *zap.Logger) (Conn, error)

func (f DialerFunc) Dial(acct account.Account, logger *zap.Logger) (Conn, error) {
	return f(acct, logger)
}

// Runner 在单个账户上执行任务，总是返回一个 Outcome。
type Runner interface {
	Execute(ctx context.Context, acct account.Account) Outcome
}

// RunnerFunc 将函数适配为 Runner。
type RunnerFunc func(ctx context.Context, acct account.Account) Outcome

func (f RunnerFunc) Execute(ctx context.Context, acct account.Account) Outcome {
	return f(ctx, acct)
}
