package ops

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accountops/internal/engine"
	"accountops/internal/exchange"
)

const (
	pathCoinBalance = "/v5/asset/transfer/query-account-coin-balance"

	amountPlaces = 4
)

// balanceReserve 为划转、提现时保留的余额，避免精度误差导致的余额不足。
var balanceReserve = decimal.New(1, -4)

// ErrMissingBalance 表示交易所响应中缺少余额字段。
var ErrMissingBalance = errors.New("ops: 响应中缺少余额")

type coinBalanceResult struct {
	AccountType string `json:"accountType"`
	Balance     struct {
		Coin            string `json:"coin"`
		WalletBalance   string `json:"walletBalance"`
		TransferBalance string `json:"transferBalance"`
	} `json:"balance"`
}

// queryBalance 查询单币种余额。
func queryBalance(ctx context.Context, api exchange.API, accountType, coin string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("accountType", accountType)
	params.Set("coin", coin)

	var result coinBalanceResult
	if err := api.Get(ctx, pathCoinBalance, params, &result); err != nil {
		return decimal.Zero, err
	}

	raw := strings.TrimSpace(result.Balance.WalletBalance)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrMissingBalance, accountType, coin)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ops: 解析余额 %q 失败: %w", raw, err)
	}
	return balance, nil
}

// spendable 计算可动用金额：min(configured, balance-reserve)，configured 非正表示全部，结果截断到 4 位小数。
func spendable(balance, configured decimal.Decimal) decimal.Decimal {
	available := balance.Sub(balanceReserve)
	amount := available
	if configured.IsPositive() && configured.LessThan(available) {
		amount = configured
	}
	return amount.Truncate(amountPlaces)
}

func valued(display string, value decimal.Decimal) engine.Result {
	return engine.Result{
		Display: display,
		Value:   decimal.NullDecimal{Decimal: value, Valid: true},
	}
}

// skipped 为余额不足等无需执行的情形，记为成功并标记，汇总值为零。
func skipped(display string) engine.Result {
	r := valued(display, decimal.Zero)
	r.Flagged = true
	return r
}

// runIDs 为每个账户保存本次运行内固定的请求编号，同一账户的重试复用同一编号，交易所据此去重。
type runIDs struct {
	mu       sync.Mutex
	ids      map[string]string
	generate func() string
}

func newRunIDs(generate func() string) *runIDs {
	return &runIDs{ids: make(map[string]string), generate: generate}
}

func (r *runIDs) get(accountID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.ids[accountID]
	if !ok {
		id = r.generate()
		r.ids[accountID] = id
	}
	return id
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
