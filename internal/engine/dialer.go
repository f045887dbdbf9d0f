package engine

import (
	"go.uber.org/zap"

	"accountops/internal/account"
	"accountops/internal/config"
	"accountops/internal/exchange"
)

// ExchangeDialer 为每个账户创建绑定其代理的 exchange.Client。
func ExchangeDialer(cfg config.ExchangeConfig) Dialer {
	return DialerFunc(func(acct account.Account, logger *zap.Logger) (Conn, error) {
		if logger != nil {
			logger.Debug("创建账户连接", zap.String("proxy", acct.Proxy.Redacted()))
		}
		client, err := exchange.NewClient(cfg, acct.Credentials, acct.Proxy, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}
