package exchange

import (
	"context"
	"encoding/json"
	"net/url"
)

const (
	// PathServerTime 为服务器时间接口，不需要签名。
	PathServerTime = "/v5/market/time"
)

// API 为业务操作可见的交易所调用面。每个账户持有独立实例。
type API interface {
	// ServerTime 返回交易所服务器时间（毫秒）。
	ServerTime(ctx context.Context) (int64, error)
	// Get 发起签名 GET 请求，并将 result 字段解码到 out。
	Get(ctx context.Context, path string, params url.Values, out any) error
	// Post 发起签名 POST 请求，并将 result 字段解码到 out。
	Post(ctx context.Context, path string, body any, out any) error
}

// envelope 为统一响应结构。
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

type serverTimeResult struct {
	TimeSecond string `json:"timeSecond"`
	TimeNano   string `json:"timeNano"`
}
