package account

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	minFields = 7
	maxFields = 9
)

// ErrNoAccounts 表示账户文件中没有任何可用账户，整批执行没有意义。
var ErrNoAccounts = errors.New("account: 未加载到任何有效账户")

// ConfigError 描述账户文件中的一条无效记录，该账户被跳过，不影响整批。
type ConfigError struct {
	Line   int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("account: 第 %d 行无效: %s", e.Line, e.Reason)
}

// Load 读取账户文件。无效行记录警告后跳过；文件不可读或结果为空时返回错误。
func Load(path string, logger *zap.Logger) ([]Account, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("account: 打开账户文件失败: %w", err)
	}
	defer f.Close()

	accounts, skipped, err := Parse(f)
	if err != nil {
		return nil, err
	}

	for _, warn := range multierr.Errors(skipped) {
		logger.Warn("跳过无效账户记录", zap.String("path", path), zap.Error(warn))
	}

	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	logger.Info("账户加载完成",
		zap.String("path", path),
		zap.Int("accounts", len(accounts)),
		zap.Int("skipped", len(multierr.Errors(skipped))),
	)
	return accounts, nil
}

// Parse 按行解析账户记录：
//
//	id:api_key:api_secret:proxy_host:proxy_port:proxy_user:proxy_pass[:withdraw_address[:withdraw_tag]]
//
// 空行与 # 开头的行忽略。返回值 skipped 聚合了所有被跳过记录的 *ConfigError。
func Parse(r io.Reader) (accounts []Account, skipped error, err error) {
	seen := make(map[string]int)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		acct, parseErr := parseLine(lineNo, line)
		if parseErr != nil {
			skipped = multierr.Append(skipped, parseErr)
			continue
		}

		if first, dup := seen[acct.ID]; dup {
			skipped = multierr.Append(skipped, &ConfigError{
				Line:   lineNo,
				Reason: fmt.Sprintf("账户编号 %q 与第 %d 行重复", acct.ID, first),
			})
			continue
		}
		seen[acct.ID] = lineNo
		accounts = append(accounts, acct)
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return nil, nil, fmt.Errorf("account: 读取账户文件失败: %w", scanErr)
	}

	return accounts, skipped, nil
}

func parseLine(lineNo int, line string) (Account, error) {
	parts := strings.Split(line, ":")
	if len(parts) < minFields {
		return Account{}, &ConfigError{Line: lineNo, Reason: fmt.Sprintf("字段不足，需要至少 %d 个，实际 %d 个", minFields, len(parts))}
	}
	if len(parts) > maxFields {
		return Account{}, &ConfigError{Line: lineNo, Reason: fmt.Sprintf("字段过多，最多 %d 个，实际 %d 个", maxFields, len(parts))}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	acct := Account{
		ID: parts[0],
		Credentials: Credentials{
			APIKey:    parts[1],
			APISecret: parts[2],
		},
		Proxy: Proxy{
			Scheme: "http",
			Host:   parts[3],
			Port:   parts[4],
			User:   parts[5],
			Pass:   parts[6],
		},
	}
	if len(parts) > 7 {
		acct.WithdrawAddress = parts[7]
	}
	if len(parts) > 8 {
		acct.WithdrawTag = parts[8]
	}

	switch {
	case acct.ID == "":
		return Account{}, &ConfigError{Line: lineNo, Reason: "账户编号为空"}
	case acct.Credentials.APIKey == "" || acct.Credentials.APISecret == "":
		return Account{}, &ConfigError{Line: lineNo, Reason: "api_key 或 api_secret 为空"}
	case acct.Proxy.Host == "":
		return Account{}, &ConfigError{Line: lineNo, Reason: "代理地址为空"}
	}

	port, err := strconv.Atoi(acct.Proxy.Port)
	if err != nil || port <= 0 || port > 65535 {
		return Account{}, &ConfigError{Line: lineNo, Reason: fmt.Sprintf("代理端口无效 %q", acct.Proxy.Port)}
	}

	return acct, nil
}
