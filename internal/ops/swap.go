package ops

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"accountops/internal/config"
	"accountops/internal/engine"
	"accountops/internal/execution"
)

const unifiedAccount = "UNIFIED"

// Swap 在统一账户内以市价兑换现货。同一账户的重试复用同一个 orderLinkId。
type Swap struct {
	cfg   config.SwapConfig
	side  execution.OrderSide
	links *runIDs
}

// NewSwap 创建现货兑换操作。
func NewSwap(cfg config.SwapConfig) (*Swap, error) {
	side, err := execution.ParseSide(cfg.Side)
	if err != nil {
		return nil, err
	}
	return &Swap{cfg: cfg, side: side, links: newRunIDs(execution.NewOrderLinkID)}, nil
}

func (o *Swap) Name() string         { return "swap" }
func (o *Swap) Retryable() bool      { return true }
func (o *Swap) NumericField() string { return "" }

func (o *Swap) Execute(ctx context.Context, s engine.Session) (engine.Result, error) {
	coin := execution.SpendCoin(o.cfg.Base, o.cfg.Quote, o.side)
	balance, err := queryBalance(ctx, s.Client, unifiedAccount, coin)
	if err != nil {
		return engine.Result{}, err
	}

	minQty := decimal.New(1, -o.cfg.DecimalPlaces)
	if balance.LessThan(minQty) {
		return skipped(fmt.Sprintf("%s 余额 %s 低于最小下单精度 %s", coin, balance.String(), minQty.String())), nil
	}

	qty := balance
	if o.cfg.Amount.IsPositive() {
		qty = o.cfg.Amount
	}
	s.Logger.Info("计算兑换数量", zap.String("coin", coin), zap.String("balance", balance.String()), zap.String("qty", qty.String()))

	order, err := execution.BuildMarketOrder(o.cfg.Base, o.cfg.Quote, o.side, qty, o.cfg.DecimalPlaces, false)
	if err != nil {
		return engine.Result{}, err
	}
	order.OrderLinkID = o.links.get(s.Account.ID)

	placed, err := execution.NewExecutor(s.Logger).Submit(ctx, s.Client, order)
	if err != nil {
		return engine.Result{}, err
	}

	return orderResult(order, placed), nil
}

func orderResult(order execution.OrderRequest, placed execution.OrderResult) engine.Result {
	return engine.Result{
		Display: fmt.Sprintf("市价 %s %s 数量 %s，订单 %s", order.Side, order.Symbol, order.Qty.String(), placed.OrderID),
		Fields: map[string]string{
			"order_id":      placed.OrderID,
			"order_link_id": order.OrderLinkID,
			"qty":           order.Qty.String(),
		},
	}
}
