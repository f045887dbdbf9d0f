package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
)

const (
	headerAPIKey     = "X-BAPI-API-KEY"
	headerSign       = "X-BAPI-SIGN"
	headerTimestamp  = "X-BAPI-TIMESTAMP"
	headerRecvWindow = "X-BAPI-RECV-WINDOW"
)

// Sign 计算 payload 的 HMAC-SHA256 签名，返回小写十六进制。
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// CanonicalQuery 返回按键排序并完成 URL 编码的查询串，签名与实际发送使用同一字符串。
func CanonicalQuery(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return params.Encode()
}

// Signer 持有单个账户的凭证，生成签名请求头。
type Signer struct {
	apiKey     string
	secret     string
	recvWindow string
}

// NewSigner 创建签名器。
func NewSigner(apiKey, secret string, recvWindow int) Signer {
	return Signer{
		apiKey:     apiKey,
		secret:     secret,
		recvWindow: strconv.Itoa(recvWindow),
	}
}

// CanonicalGET 返回 GET 请求的待签名串：timestamp + api_key + recv_window + query。
func (s Signer) CanonicalGET(timestamp int64, query string) string {
	return strconv.FormatInt(timestamp, 10) + s.apiKey + s.recvWindow + query
}

// CanonicalPOST 返回 POST 请求的待签名串：timestamp + api_key + recv_window + body。
// body 必须与实际发送的字节完全一致。
func (s Signer) CanonicalPOST(timestamp int64, body []byte) string {
	return strconv.FormatInt(timestamp, 10) + s.apiKey + s.recvWindow + string(body)
}

// Headers 生成签名请求头。
func (s Signer) Headers(timestamp int64, canonical string) map[string]string {
	return map[string]string{
		headerAPIKey:     s.apiKey,
		headerSign:       Sign(s.secret, canonical),
		headerTimestamp:  strconv.FormatInt(timestamp, 10),
		headerRecvWindow: s.recvWindow,
	}
}
