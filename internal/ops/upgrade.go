package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/engine"
)

const (
	pathAccountInfo = "/v5/account/info"
	pathUpgradeUTA  = "/v5/account/upgrade-to-uta"

	// unifiedMarginStatus >= 3 均为统一账户。
	minUnifiedStatus = 3
)

// UpgradeUTA 将账户升级为统一交易账户，并轮询直到升级完成。
type UpgradeUTA struct {
	cfg   config.UpgradeConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewUpgradeUTA 创建升级操作。
func NewUpgradeUTA(cfg config.UpgradeConfig) *UpgradeUTA {
	return &UpgradeUTA{cfg: cfg, sleep: sleepCtx}
}

func (u *UpgradeUTA) Name() string         { return "upgrade-uta" }
func (u *UpgradeUTA) Retryable() bool      { return false }
func (u *UpgradeUTA) NumericField() string { return "" }

type accountInfoResult struct {
	UnifiedMarginStatus int `json:"unifiedMarginStatus"`
}

type upgradeResult struct {
	UnifiedUpdateStatus string `json:"unifiedUpdateStatus"`
	UnifiedUpdateMsg    struct {
		Msg []string `json:"msg"`
	} `json:"unifiedUpdateMsg"`
}

func (u *UpgradeUTA) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	status, err := u.status(ctx, s)
	if err != nil {
		return engine.Result{}, err
	}
	if status >= minUnifiedStatus {
		return engine.Result{Display: fmt.Sprintf("已是统一账户 (状态 %d)，无需升级", status)}, nil
	}

	s.Logger.Info("开始升级统一账户", zap.Int("status", status))

	var upgrade upgradeResult
	if err := s.Client.Post(ctx, pathUpgradeUTA, struct{}{}, &upgrade); err != nil {
		return engine.Result{}, err
	}

	switch upgrade.UnifiedUpdateStatus {
	case "SUCCESS":
		return engine.Result{Display: "升级统一账户成功"}, nil
	case "PROCESS":
		s.Logger.Info("升级处理中，开始轮询")
	default:
		msgs := strings.Join(upgrade.UnifiedUpdateMsg.Msg, "; ")
		return engine.Result{}, fmt.Errorf("ops: 升级失败，状态 %q: %s", upgrade.UnifiedUpdateStatus, msgs)
	}

	for attempt := 1; attempt <= u.cfg.PollAttempts; attempt++ {
		if err := u.sleep(ctx, u.cfg.PollInterval); err != nil {
			return engine.Result{}, err
		}

		status, err := u.status(ctx, s)
		if err != nil {
			s.Logger.Warn("查询升级状态失败", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if status >= minUnifiedStatus {
			return engine.Result{Display: fmt.Sprintf("升级统一账户成功 (轮询 %d 次)", attempt)}, nil
		}
	}

	return engine.Result{Display: "升级仍在处理中，请稍后手动确认", Flagged: true}, nil
}

func (u *UpgradeUTA) status(ctx context.Context, s engine.Session) (int, error) {
	var info accountInfoResult
	if err := s.Client.Get(ctx, pathAccountInfo, nil, &info); err != nil {
		return 0, err
	}
	return info.UnifiedMarginStatus, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
