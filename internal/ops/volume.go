package ops

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/engine"
	"accountops/internal/execution"
)

const (
	volumeBase  = "USDC"
	volumeQuote = "USDT"
)

// Volume 在 USDC/USDT 之间往返兑换以产生成交量，结束时报告 USDT 余额。
type Volume struct {
	cfg   config.VolumeConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewVolume 创建刷量操作。
func NewVolume(cfg config.VolumeConfig) *Volume {
	return &Volume{cfg: cfg, sleep: sleepCtx}
}

func (v *Volume) Name() string         { return "volume" }
func (v *Volume) Retryable() bool      { return false }
func (v *Volume) NumericField() string { return volumeQuote }

func (v *Volume) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	executor := execution.NewExecutor(s.Logger)

	var roundErrs error
	completed := 0
	for round := 1; round <= v.cfg.Repeats; round++ {
		logger := s.Logger.With(zap.Int("round", round), zap.Int("repeats", v.cfg.Repeats))

		if err := v.round(ctx, s, executor, logger); err != nil {
			if ctx.Err() != nil {
				return engine.Result{}, err
			}
			logger.Warn("本轮兑换失败", zap.Error(err))
			roundErrs = multierr.Append(roundErrs, fmt.Errorf("第 %d 轮: %w", round, err))
		} else {
			completed++
		}

		if round < v.cfg.Repeats {
			if err := v.sleep(ctx, v.pause()); err != nil {
				return engine.Result{}, err
			}
		}
	}

	final, err := queryBalance(ctx, s.Client, unifiedAccount, volumeQuote)
	if err != nil {
		return engine.Result{}, err
	}

	result := valued(fmt.Sprintf("完成 %d/%d 轮，%s 余额 %s", completed, v.cfg.Repeats, volumeQuote, final.String()), final)
	if roundErrs != nil {
		result.Flagged = true
		result.Fields = map[string]string{"errors": roundErrs.Error()}
	}
	return result, nil
}

func (v *Volume) round(ctx context.Context, s engine.Session, executor *execution.Executor, logger *zap.Logger) error {
	usdt, err := queryBalance(ctx, s.Client, unifiedAccount, volumeQuote)
	if err != nil {
		return err
	}
	if usdt.IsPositive() {
		if err := v.trade(ctx, s, executor, execution.OrderSideBuy, usdt); err != nil {
			return err
		}
	}

	usdc, err := queryBalance(ctx, s.Client, unifiedAccount, volumeBase)
	if err != nil {
		return err
	}
	if usdc.IsPositive() {
		if err := v.trade(ctx, s, executor, execution.OrderSideSell, usdc); err != nil {
			return err
		}
	}

	logger.Info("本轮兑换完成", zap.String("usdt", usdt.String()), zap.String("usdc", usdc.String()))
	return nil
}

func (v *Volume) trade(ctx context.Context, s engine.Session, executor *execution.Executor, side execution.OrderSide, qty decimal.Decimal) error {
	order, err := execution.BuildMarketOrder(volumeBase, volumeQuote, side, qty, v.cfg.DecimalPlaces, false)
	if errors.Is(err, execution.ErrQtyTooSmall) {
		s.Logger.Debug("余额不足一个最小单位，跳过", zap.String("side", string(side)), zap.String("qty", qty.String()))
		return nil
	}
	if err != nil {
		return err
	}
	_, err = executor.Submit(ctx, s.Client, order)
	return err
}

func (v *Volume) pause() time.Duration {
	if v.cfg.PauseMax <= v.cfg.PauseMin {
		return v.cfg.PauseMin
	}
	return v.cfg.PauseMin + rand.N(v.cfg.PauseMax-v.cfg.PauseMin+1)
}
