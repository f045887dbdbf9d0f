package ops

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"accountops/internal/config"
	"accountops/internal/engine"
)

const pathCoinInfo = "/v5/asset/coin/query-info"

// Chains 查询币种支持的链。结果与账户无关，只需在第一个账户上执行。
type Chains struct {
	cfg config.ChainsConfig
}

// NewChains 创建链查询操作。
func NewChains(cfg config.ChainsConfig) *Chains {
	return &Chains{cfg: cfg}
}

func (c *Chains) Name() string           { return "chains" }
func (c *Chains) Retryable() bool        { return false }
func (c *Chains) NumericField() string   { return "" }
func (c *Chains) FirstAccountOnly() bool { return true }

type coinInfoResult struct {
	Rows []struct {
		Coin   string `json:"coin"`
		Chains []struct {
			Chain         string `json:"chain"`
			ChainType     string `json:"chainType"`
			WithdrawFee   string `json:"withdrawFee"`
			ChainDeposit  string `json:"chainDeposit"`
			ChainWithdraw string `json:"chainWithdraw"`
		} `json:"chains"`
	} `json:"rows"`
}

func (c *Chains) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	coin := strings.ToUpper(c.cfg.Coin)
	params := url.Values{}
	params.Set("coin", coin)

	var result coinInfoResult
	if err := s.Client.Get(ctx, pathCoinInfo, params, &result); err != nil {
		return engine.Result{}, err
	}

	fields := make(map[string]string)
	var names []string
	for _, row := range result.Rows {
		if !strings.EqualFold(row.Coin, coin) {
			continue
		}
		for _, chain := range row.Chains {
			names = append(names, chain.Chain)
			fields[chain.Chain] = fmt.Sprintf("type=%s fee=%s deposit=%s withdraw=%s",
				chain.ChainType, chain.WithdrawFee, chain.ChainDeposit, chain.ChainWithdraw)
		}
	}
	if len(names) == 0 {
		return engine.Result{}, fmt.Errorf("ops: 未找到 %s 的链信息", coin)
	}

	return engine.Result{
		Display: fmt.Sprintf("%s 可用网络: %s", coin, strings.Join(names, ", ")),
		Fields:  fields,
	}, nil
}
