package ops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/engine"
)

const pathInterTransfer = "/v5/asset/transfer/inter-transfer"

// Transfer 在同一账户的子账户类型之间划转资金。划转不可安全重放，因此不重试。
type Transfer struct {
	cfg config.TransferConfig
}

// NewTransfer 创建划转操作。
func NewTransfer(cfg config.TransferConfig) *Transfer {
	return &Transfer{cfg: cfg}
}

func (t *Transfer) Name() string         { return "transfer" }
func (t *Transfer) Retryable() bool      { return false }
func (t *Transfer) NumericField() string { return t.cfg.Coin }

type transferBody struct {
	TransferID      string `json:"transferId"`
	Coin            string `json:"coin"`
	Amount          string `json:"amount"`
	FromAccountType string `json:"fromAccountType"`
	ToAccountType   string `json:"toAccountType"`
}

type transferResult struct {
	TransferID string `json:"transferId"`
	Status     string `json:"status"`
}

func (t *Transfer) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	balance, err := queryBalance(ctx, s.Client, t.cfg.FromAccountType, t.cfg.Coin)
	if err != nil {
		return engine.Result{}, err
	}

	amount := spendable(balance, t.cfg.Amount)
	s.Logger.Info("计算划转金额",
		zap.String("balance", balance.String()),
		zap.String("amount", amount.String()),
	)
	if !amount.IsPositive() {
		return skipped(fmt.Sprintf("%s 余额 %s 不足，跳过划转", t.cfg.FromAccountType, balance.String())), nil
	}

	body := transferBody{
		TransferID:      compactUUID(),
		Coin:            t.cfg.Coin,
		Amount:          amount.String(),
		FromAccountType: t.cfg.FromAccountType,
		ToAccountType:   t.cfg.ToAccountType,
	}

	var result transferResult
	if err := s.Client.Post(ctx, pathInterTransfer, body, &result); err != nil {
		return engine.Result{}, err
	}

	r := valued(fmt.Sprintf("已划转 %s %s: %s -> %s", amount.String(), t.cfg.Coin, t.cfg.FromAccountType, t.cfg.ToAccountType), amount)
	r.Fields = map[string]string{"transfer_id": result.TransferID, "status": result.Status}
	return r, nil
}
