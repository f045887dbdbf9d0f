package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"accountops/internal/account"
	"accountops/internal/config"
)

const (
	transportRetryWait    = 300 * time.Millisecond
	transportRetryMaxWait = 3 * time.Second
	maxErrorBody          = 256
)

// Client 为单个账户的交易所客户端。所有请求（包括服务器时间）都经由该账户的代理发出，实例不在账户间共享。
type Client struct {
	http    *resty.Client
	signer  Signer
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient 为账户创建独立的 HTTP 客户端并绑定其代理。
func NewClient(cfg config.ExchangeConfig, creds account.Credentials, proxy account.Proxy, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("exchange: base_url 不能为空")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.New("exchange: request_timeout 必须大于0")
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())

	if !proxy.IsZero() {
		proxyURL := proxy.URL()
		if _, err := url.Parse(proxyURL); err != nil {
			httpClient.Close()
			return nil, fmt.Errorf("exchange: 代理地址无效 %s: %w", proxy.Redacted(), err)
		}
		httpClient.SetProxy(proxyURL)
	}

	// 只对幂等 GET 生效，POST 不会被传输层重放。
	if cfg.TransportRetries > 0 {
		httpClient.
			SetRetryCount(cfg.TransportRetries).
			SetRetryWaitTime(transportRetryWait).
			SetRetryMaxWaitTime(transportRetryMaxWait).
			AddRetryConditions(retryCondition).
			AddRetryHooks(retryHook(logger))
	}

	var limiter *rate.Limiter
	if cfg.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), 1)
	}

	return &Client{
		http:    httpClient,
		signer:  NewSigner(creds.APIKey, creds.APISecret, cfg.RecvWindow),
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Close 释放底层连接。
func (c *Client) Close() error {
	return c.http.Close()
}

// ServerTime 通过账户代理获取交易所服务器时间（毫秒）。任何失败都包装为 TimeSyncError。
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	raw, err := c.do(ctx, http.MethodGet, PathServerTime, "", nil, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &TimeSyncError{Cause: err}
	}

	var result serverTimeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, &TimeSyncError{Cause: fmt.Errorf("解析服务器时间失败: %w", err)}
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(result.TimeSecond), 10, 64)
	if err != nil || seconds <= 0 {
		return 0, &TimeSyncError{Cause: fmt.Errorf("服务器时间无效 %q", result.TimeSecond)}
	}

	return seconds * 1000, nil
}

// Get 发起签名 GET 请求。
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	timestamp, err := c.ServerTime(ctx)
	if err != nil {
		return err
	}

	query := CanonicalQuery(params)
	headers := c.signer.Headers(timestamp, c.signer.CanonicalGET(timestamp, query))

	raw, err := c.do(ctx, http.MethodGet, path, query, nil, headers)
	if err != nil {
		return err
	}
	return decodeResult(path, raw, out)
}

// Post 发起签名 POST 请求。body 序列化后的字节即签名字节。
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	payload := []byte("{}")
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("exchange: 序列化请求体失败: %w", err)
		}
		payload = encoded
	}

	timestamp, err := c.ServerTime(ctx)
	if err != nil {
		return err
	}

	headers := c.signer.Headers(timestamp, c.signer.CanonicalPOST(timestamp, payload))
	headers["Content-Type"] = "application/json"

	raw, err := c.do(ctx, http.MethodPost, path, "", payload, headers)
	if err != nil {
		return err
	}
	return decodeResult(path, raw, out)
}

func (c *Client) do(ctx context.Context, method, path, query string, body []byte, headers map[string]string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := path
	if query != "" {
		target = path + "?" + query
	}

	req := c.http.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	start := time.Now()
	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = req.Get(target)
	case http.MethodPost:
		resp, err = req.SetBody(body).Post(target)
	default:
		return nil, fmt.Errorf("exchange: 不支持的请求方法 %s", method)
	}
	latency := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Path: path, Cause: err}
	}

	status := resp.StatusCode()
	c.logger.Debug("交易所调用完成",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
	)

	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return nil, &TransportError{Path: path, StatusCode: status}
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return nil, &OperationError{Path: path, StatusCode: status, Message: truncate(resp.String())}
	}

	var env envelope
	if err := json.Unmarshal(resp.Bytes(), &env); err != nil {
		return nil, &OperationError{Path: path, Code: -1, StatusCode: status, Message: fmt.Sprintf("响应解析失败: %v", err)}
	}
	if env.RetCode != 0 {
		return nil, &OperationError{Path: path, Code: env.RetCode, Message: env.RetMsg}
	}

	return env.Result, nil
}

func decodeResult(path string, raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &OperationError{Path: path, Code: -1, Message: fmt.Sprintf("result 解析失败: %v", err)}
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

func retryHook(logger *zap.Logger) resty.RetryHookFunc {
	return func(r *resty.Response, err error) {
		fields := []zap.Field{}
		if r != nil && r.Request != nil {
			fields = append(fields,
				zap.String("url", r.Request.URL),
				zap.Int("attempt", r.Request.Attempt),
			)
		}
		if err != nil {
			logger.Debug("传输层重试（网络错误）", append(fields, zap.Error(err))...)
			return
		}
		if r != nil {
			fields = append(fields, zap.Int("status", r.StatusCode()))
		}
		logger.Debug("传输层重试（状态码）", fields...)
	}
}
