package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"accountops/internal/account"
	"accountops/internal/config"
	"accountops/internal/engine"
	"accountops/internal/ops"
	"accountops/internal/report"
	"accountops/internal/retry"
	"accountops/internal/store"
)

// App 聚合核心依赖并驱动一次批量执行。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	dialer engine.Dialer
	out    io.Writer
}

// Option 调整 App 的可选依赖。
type Option func(*App)

// WithDialer 替换默认的交易所连接方式。
func WithDialer(d engine.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// WithOutput 指定终端报告的输出位置，默认 os.Stdout。
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		dialer: engine.ExchangeDialer(cfg.Exchange),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 在全部账户上执行指定操作，输出报告并写入结果文件。
// 单个账户失败只体现在报告中；账户加载失败、操作未知或调度无法开始时返回错误。
func (a *App) Run(ctx context.Context, opName string) (report.Report, error) {
	desc, err := ops.Lookup(opName)
	if err != nil {
		return report.Report{}, err
	}
	op, err := desc.Build(a.cfg.Ops)
	if err != nil {
		return report.Report{}, fmt.Errorf("app: 初始化操作 %s 失败: %w", opName, err)
	}

	accounts, err := account.Load(a.cfg.Accounts.Path, a.logger)
	if err != nil {
		return report.Report{}, err
	}
	if first, ok := op.(ops.FirstAccountOnly); ok && first.FirstAccountOnly() {
		accounts = accounts[:1]
	}

	a.logger.Info("开始批量执行",
		zap.String("op", op.Name()),
		zap.Int("accounts", len(accounts)),
		zap.String("environment", a.cfg.App.Environment),
		zap.Bool("retryable", op.Retryable()),
	)

	task := engine.NewTask(op, a.dialer, retry.FromConfig(a.cfg.Retry, a.logger), a.cfg.Scheduler.TaskTimeout, a.logger)
	scheduler := engine.NewScheduler(a.cfg.Scheduler, a.logger)

	outcomes, err := scheduler.Run(ctx, accounts, task)
	if err != nil {
		return report.Report{}, err
	}

	rep := report.Build(desc.Title, op.NumericField(), outcomes)
	if _, err := io.WriteString(a.out, rep.Human()); err != nil {
		a.logger.Warn("输出报告失败", zap.Error(err))
	}

	if err := a.persist(op, rep, outcomes); err != nil {
		return rep, err
	}

	a.logger.Info("批量执行完成",
		zap.String("op", op.Name()),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
	)

	if errors.Is(ctx.Err(), context.Canceled) {
		a.logger.Warn("执行被中断，报告包含未启动的账户")
	}
	return rep, nil
}

func (a *App) persist(op engine.Op, rep report.Report, outcomes []engine.Outcome) error {
	if a.store == nil {
		return nil
	}

	path, err := a.store.WriteText(op.Name(), rep.Plain())
	if err != nil {
		return fmt.Errorf("app: 保存结果失败: %w", err)
	}
	a.logger.Info("结果已保存", zap.String("path", path))

	tabular, ok := op.(ops.Tabular)
	if !ok {
		return nil
	}
	header, rows := tabular.Table(outcomes)
	path, err = a.store.WriteCSV(op.Name(), header, rows)
	if err != nil {
		return fmt.Errorf("app: 保存 CSV 失败: %w", err)
	}
	a.logger.Info("CSV 已保存", zap.String("path", path))
	return nil
}
