package execution

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"accountops/internal/exchange"
)

const (
	pathCreateOrder  = "/v5/order/create"
	pathOpenOrders   = "/v5/order/realtime"
	pathOrderHistory = "/v5/order/history"
)

// 交易所对重复 orderLinkId 的拒绝码（合约与现货各一个）。
var duplicateLinkIDCodes = map[int]struct{}{
	110072: {},
	170141: {},
}

var (
	// ErrQtyTooSmall 表示截断后的下单数量为零。
	ErrQtyTooSmall = errors.New("execution: 下单数量截断后为零")
	// ErrOrderNotFound 表示按 orderLinkId 查不到已提交的委托。
	ErrOrderNotFound = errors.New("execution: 未找到委托")
)

// BuildMarketOrder 生成现货市价委托，数量按 places 位小数截断，不做四舍五入。
func BuildMarketOrder(base, quote string, side OrderSide, qty decimal.Decimal, places int32, leverage bool) (OrderRequest, error) {
	if base == "" || quote == "" {
		return OrderRequest{}, errors.New("execution: 交易对不能为空")
	}
	truncated := qty.Truncate(places)
	if !truncated.IsPositive() {
		return OrderRequest{}, fmt.Errorf("%w: 原始数量 %s", ErrQtyTooSmall, qty.String())
	}
	return OrderRequest{
		Symbol:      strings.ToUpper(base + quote),
		Side:        side,
		Qty:         truncated,
		OrderLinkID: NewOrderLinkID(),
		IsLeverage:  leverage,
	}, nil
}

// SpendCoin 返回该方向下单时消耗的币种：卖出消耗 base，买入消耗 quote。
func SpendCoin(base, quote string, side OrderSide) string {
	if side == OrderSideSell {
		return base
	}
	return quote
}

// NewOrderLinkID 生成客户端委托编号。
func NewOrderLinkID() string {
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// Executor 将委托提交到交易所。
type Executor struct {
	logger *zap.Logger
}

// NewExecutor 创建执行器。
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Submit 提交一笔市价委托。重试由调用方的重试策略负责，调用方需在重试间复用 OrderLinkID：
// 交易所以重复编号拒绝时视为已下单，按编号查回原委托。
func (e *Executor) Submit(ctx context.Context, api exchange.API, order OrderRequest) (OrderResult, error) {
	body := createOrderBody{
		Category:    "spot",
		Symbol:      order.Symbol,
		Side:        string(order.Side),
		OrderType:   "Market",
		Qty:         order.Qty.String(),
		OrderLinkID: order.OrderLinkID,
	}
	if order.IsLeverage {
		one := 1
		body.IsLeverage = &one
	}

	e.logger.Info("提交市价委托",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("qty", body.Qty),
		zap.Bool("leverage", order.IsLeverage),
		zap.String("order_link_id", order.OrderLinkID),
	)

	var result OrderResult
	err := api.Post(ctx, pathCreateOrder, body, &result)
	if isDuplicateLinkID(err) {
		e.logger.Warn("委托编号已存在，按编号查询原委托", zap.String("order_link_id", order.OrderLinkID))
		return e.Lookup(ctx, api, order.OrderLinkID)
	}
	if err != nil {
		return OrderResult{}, fmt.Errorf("execution: 下单失败: %w", err)
	}
	return result, nil
}

type orderListResult struct {
	List []OrderResult `json:"list"`
}

// Lookup 按 orderLinkId 查询现货委托，先查当前委托，再查历史委托。
func (e *Executor) Lookup(ctx context.Context, api exchange.API, orderLinkID string) (OrderResult, error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("orderLinkId", orderLinkID)

	for _, path := range []string{pathOpenOrders, pathOrderHistory} {
		var result orderListResult
		if err := api.Get(ctx, path, params, &result); err != nil {
			return OrderResult{}, fmt.Errorf("execution: 查询委托失败: %w", err)
		}
		for _, o := range result.List {
			if o.OrderLinkID == orderLinkID {
				return o, nil
			}
		}
	}
	return OrderResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderLinkID)
}

func isDuplicateLinkID(err error) bool {
	var opErr *exchange.OperationError
	if !errors.As(err, &opErr) {
		return false
	}
	_, ok := duplicateLinkIDCodes[opErr.Code]
	return ok
}
