package execution

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderSide 表示下单方向，取值与交易所接口一致。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// ParseSide 解析配置中的方向，大小写不敏感。
func ParseSide(s string) (OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return OrderSideBuy, nil
	case "sell":
		return OrderSideSell, nil
	default:
		return "", fmt.Errorf("execution: 无效的下单方向 %q", s)
	}
}

// OrderRequest 为现货市价委托。
type OrderRequest struct {
	Symbol      string
	Side        OrderSide
	Qty         decimal.Decimal
	OrderLinkID string
	IsLeverage  bool
}

// OrderResult 为委托提交结果。
type OrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type createOrderBody struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	OrderLinkID string `json:"orderLinkId"`
	IsLeverage  *int   `json:"isLeverage,omitempty"`
}
