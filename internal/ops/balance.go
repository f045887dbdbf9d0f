package ops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/engine"
)

// Balance 查询单币种余额，低于阈值时标记。
type Balance struct {
	cfg config.BalanceConfig
}

// NewBalance 创建余额查询操作。
func NewBalance(cfg config.BalanceConfig) *Balance {
	return &Balance{cfg: cfg}
}

func (b *Balance) Name() string         { return "balance" }
func (b *Balance) Retryable() bool      { return false }
func (b *Balance) NumericField() string { return b.cfg.Coin }

func (b *Balance) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	balance, err := queryBalance(ctx, s.Client, b.cfg.AccountType, b.cfg.Coin)
	if err != nil {
		return engine.Result{}, err
	}

	result := valued(fmt.Sprintf("%s 余额 (%s): %s", b.cfg.Coin, b.cfg.AccountType, balance.String()), balance)
	if b.cfg.Threshold.IsPositive() && balance.LessThan(b.cfg.Threshold) {
		result.Flagged = true
		s.Logger.Warn("余额低于阈值",
			zap.String("balance", balance.String()),
			zap.String("threshold", b.cfg.Threshold.String()),
		)
	}
	return result, nil
}
