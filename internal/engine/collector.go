package engine

import (
	"errors"
	"sync"

	"accountops/internal/account"
)

// ErrNoData 表示某账户没有写入任何结果。
var ErrNoData = errors.New("engine: 无数据")

// Collector 汇总各账户结果，是调度期间唯一的共享可变状态。
type Collector struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
}

// NewCollector 创建结果收集器。
func NewCollector(capacity int) *Collector {
	return &Collector{outcomes: make(map[string]Outcome, capacity)}
}

// Put 写入账户结果。同一账户只接受第一次写入。
func (c *Collector) Put(outcome Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.outcomes[outcome.AccountID]; exists {
		return false
	}
	c.outcomes[outcome.AccountID] = outcome
	return true
}

// Get 返回账户结果。
func (c *Collector) Get(accountID string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome, ok := c.outcomes[accountID]
	return outcome, ok
}

// Len 返回已写入的结果数。
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Ordered 按账户加载顺序返回结果，缺失的账户以“无数据”失败结果补齐。
func (c *Collector) Ordered(accounts []account.Account) []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := make([]Outcome, 0, len(accounts))
	for _, acct := range accounts {
		outcome, ok := c.outcomes[acct.ID]
		if !ok {
			outcome = failureOutcome(acct.ID, ErrNoData, "无数据")
		}
		ordered = append(ordered, outcome)
	}
	return ordered
}
