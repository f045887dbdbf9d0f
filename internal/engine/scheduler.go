package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"accountops/internal/account"
	"accountops/internal/config"
)

// ErrNoAccounts 表示调度时账户列表为空。
var ErrNoAccounts = errors.New("engine: 账户列表为空")

// Scheduler 按加载顺序错峰启动账户任务，等待全部完成后按原顺序返回结果。
type Scheduler struct {
	delayMin    time.Duration
	delayMax    time.Duration
	maxParallel int
	logger      *zap.Logger
}

// NewScheduler 创建调度器。
func NewScheduler(cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	delayMax := cfg.LaunchDelayMax
	if delayMax < cfg.LaunchDelayMin {
		delayMax = cfg.LaunchDelayMin
	}
	return &Scheduler{
		delayMin:    cfg.LaunchDelayMin,
		delayMax:    delayMax,
		maxParallel: cfg.MaxParallel,
		logger:      logger,
	}
}

// Run 为每个账户启动一个任务，每次启动后（最后一个除外）随机等待 [min, max]。
// 单个账户的失败不会影响其他账户；仅当账户列表为空或存在重复编号时返回错误。
// ctx 取消后尚未启动的账户记为失败，保证每个账户恰好一个结果。
func (s *Scheduler) Run(ctx context.Context, accounts []account.Account, runner Runner) ([]Outcome, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if err := checkUnique(accounts); err != nil {
		return nil, err
	}

	collector := NewCollector(len(accounts))

	// 并发上限通过可取消的信号量等待空位，取消后剩余账户不再启动。
	var slots *semaphore.Weighted
	if s.maxParallel > 0 {
		slots = semaphore.NewWeighted(int64(s.maxParallel))
	}

	var group errgroup.Group
	launched := 0
	for i, acct := range accounts {
		if ctx.Err() != nil {
			break
		}
		if slots != nil {
			if err := slots.Acquire(ctx, 1); err != nil {
				break
			}
		}

		s.logger.Debug("启动账户任务",
			zap.String("account", acct.ID),
			zap.Int("index", i+1),
			zap.Int("total", len(accounts)),
		)
		group.Go(func() error {
			if slots != nil {
				defer slots.Release(1)
			}
			collector.Put(runner.Execute(ctx, acct))
			return nil
		})
		launched++

		if i == len(accounts)-1 {
			break
		}
		if err := s.pause(ctx); err != nil {
			break
		}
	}

	if launched < len(accounts) {
		s.logger.Warn("调度被取消，剩余账户未启动",
			zap.Int("launched", launched),
			zap.Int("total", len(accounts)),
		)
		for _, acct := range accounts[launched:] {
			collector.Put(failureOutcome(acct.ID, ctx.Err(), "未启动: 已取消"))
		}
	}

	_ = group.Wait()

	return collector.Ordered(accounts), nil
}

func (s *Scheduler) pause(ctx context.Context) error {
	d := s.jitter()
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

func (s *Scheduler) jitter() time.Duration {
	if s.delayMax <= s.delayMin {
		return s.delayMin
	}
	return s.delayMin + rand.N(s.delayMax-s.delayMin+1)
}

func checkUnique(accounts []account.Account) error {
	seen := make(map[string]struct{}, len(accounts))
	for _, acct := range accounts {
		if _, dup := seen[acct.ID]; dup {
			return fmt.Errorf("engine: 账户编号重复 %q", acct.ID)
		}
		seen[acct.ID] = struct{}{}
	}
	return nil
}
