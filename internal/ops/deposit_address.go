package ops

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"accountops/internal/config"
	"accountops/internal/engine"
)

const pathDepositAddress = "/v5/asset/deposit/query-address"

// ErrNoDepositAddress 表示交易所未返回该网络的充值地址。
var ErrNoDepositAddress = errors.New("ops: 未返回充值地址")

// DepositAddress 查询充值地址，结果同时导出为 CSV。
type DepositAddress struct {
	cfg config.DepositAddressConfig
}

// NewDepositAddress 创建充值地址查询操作。
func NewDepositAddress(cfg config.DepositAddressConfig) *DepositAddress {
	return &DepositAddress{cfg: cfg}
}

func (d *DepositAddress) Name() string         { return "deposit-address" }
func (d *DepositAddress) Retryable() bool      { return false }
func (d *DepositAddress) NumericField() string { return "" }

type depositAddressResult struct {
	Coin   string `json:"coin"`
	Chains []struct {
		ChainType      string `json:"chainType"`
		AddressDeposit string `json:"addressDeposit"`
		TagDeposit     string `json:"tagDeposit"`
		Chain          string `json:"chain"`
	} `json:"chains"`
}

func (d *DepositAddress) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	params := url.Values{}
	params.Set("coin", d.cfg.Coin)
	params.Set("chainType", d.cfg.Chain)

	var result depositAddressResult
	if err := s.Client.Get(ctx, pathDepositAddress, params, &result); err != nil {
		return engine.Result{}, err
	}
	if len(result.Chains) == 0 || result.Chains[0].AddressDeposit == "" {
		return engine.Result{}, fmt.Errorf("%w: %s/%s", ErrNoDepositAddress, d.cfg.Coin, d.cfg.Chain)
	}

	chain := result.Chains[0]
	display := fmt.Sprintf("%s 充值地址 (%s): %s", d.cfg.Coin, d.cfg.Chain, chain.AddressDeposit)
	if chain.TagDeposit != "" {
		display += " 标签: " + chain.TagDeposit
	}

	return engine.Result{
		Display: display,
		Fields: map[string]string{
			"chain":   d.cfg.Chain,
			"token":   d.cfg.Coin,
			"address": chain.AddressDeposit,
			"tag":     chain.TagDeposit,
		},
	}, nil
}

// Table 将结果整理为 CSV 行，失败的账户写入占位地址。
func (d *DepositAddress) Table(outcomes []engine.Outcome) ([]string, [][]string) {
	header := []string{"Account ID", "Chain", "Token", "Deposit Address"}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		address := "Error or no address"
		if o.Succeeded() && o.Result.Fields["address"] != "" {
			address = o.Result.Fields["address"]
		}
		rows = append(rows, []string{o.AccountID, d.cfg.Chain, d.cfg.Coin, address})
	}
	return header, rows
}
