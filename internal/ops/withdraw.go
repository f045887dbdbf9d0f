package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/engine"
)

const (
	pathWithdraw = "/v5/asset/withdraw/create"
	fundAccount  = "FUND"
)

// ErrNoWithdrawAddress 表示账户记录未提供提现地址。
var ErrNoWithdrawAddress = errors.New("ops: 账户未配置提现地址")

// Withdraw 将资金账户中的币提到账户记录里的地址。同一账户的重试复用同一个 requestId。
type Withdraw struct {
	cfg        config.WithdrawConfig
	requestIDs *runIDs
}

// NewWithdraw 创建提现操作。
func NewWithdraw(cfg config.WithdrawConfig) *Withdraw {
	return &Withdraw{cfg: cfg, requestIDs: newRunIDs(compactUUID)}
}

func (w *Withdraw) Name() string         { return "withdraw" }
func (w *Withdraw) Retryable() bool      { return true }
func (w *Withdraw) NumericField() string { return w.cfg.Coin }

type withdrawBody struct {
	Coin        string `json:"coin"`
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Tag         string `json:"tag,omitempty"`
	Amount      string `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
	ForceChain  int    `json:"forceChain"`
	AccountType string `json:"accountType"`
	FeeType     int    `json:"feeType"`
	RequestID   string `json:"requestId"`
}

type withdrawResult struct {
	ID string `json:"id"`
}

func (w *Withdraw) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	address := strings.TrimSpace(s.Account.WithdrawAddress)
	if address == "" {
		return engine.Result{}, ErrNoWithdrawAddress
	}

	balance, err := queryBalance(ctx, s.Client, fundAccount, w.cfg.Coin)
	if err != nil {
		return engine.Result{}, err
	}

	amount := spendable(balance, w.cfg.Amount)
	s.Logger.Info("计算提现金额",
		zap.String("balance", balance.String()),
		zap.String("amount", amount.String()),
		zap.String("chain", w.cfg.Chain),
	)
	if !amount.IsPositive() {
		return skipped(fmt.Sprintf("%s 余额 %s 不足，跳过提现", fundAccount, balance.String())), nil
	}

	now, err := s.Client.ServerTime(ctx)
	if err != nil {
		return engine.Result{}, err
	}

	body := withdrawBody{
		Coin:        w.cfg.Coin,
		Chain:       w.cfg.Chain,
		Address:     address,
		Tag:         s.Account.WithdrawTag,
		Amount:      amount.String(),
		Timestamp:   now,
		ForceChain:  1,
		AccountType: fundAccount,
		FeeType:     1,
		RequestID:   w.requestIDs.get(s.Account.ID),
	}

	var result withdrawResult
	if err := s.Client.Post(ctx, pathWithdraw, body, &result); err != nil {
		return engine.Result{}, err
	}

	r := valued(fmt.Sprintf("已提现 %s %s (%s)，提现编号 %s", amount.String(), w.cfg.Coin, w.cfg.Chain, result.ID), amount)
	r.Fields = map[string]string{"withdraw_id": result.ID, "address": address}
	return r, nil
}
