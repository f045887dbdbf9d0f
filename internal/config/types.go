package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Accounts  AccountsConfig  `mapstructure:"accounts"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Ops       OpsConfig       `mapstructure:"ops"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所 REST 接入参数，所有账户共用，但每个账户各自建立连接。
type ExchangeConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	RecvWindow       int           `mapstructure:"recv_window"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	TransportRetries int           `mapstructure:"transport_retries"`
	RequestRate      float64       `mapstructure:"request_rate"`
}

// SchedulerConfig 控制账户启动节奏。
type SchedulerConfig struct {
	LaunchDelayMin time.Duration `mapstructure:"launch_delay_min"`
	LaunchDelayMax time.Duration `mapstructure:"launch_delay_max"`
	MaxParallel    int           `mapstructure:"max_parallel"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
}

// RetryConfig 统一控制业务重试机制（固定间隔）。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// AccountsConfig 指定账户文件。
type AccountsConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig 指定结果文件目录。
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// OpsConfig 汇总各业务操作的参数。
type OpsConfig struct {
	Balance        BalanceConfig        `mapstructure:"balance"`
	Transfer       TransferConfig       `mapstructure:"transfer"`
	Swap           SwapConfig           `mapstructure:"swap"`
	MarginSwap     MarginSwapConfig     `mapstructure:"margin_swap"`
	Withdraw       WithdrawConfig       `mapstructure:"withdraw"`
	DepositAddress DepositAddressConfig `mapstructure:"deposit_address"`
	Upgrade        UpgradeConfig        `mapstructure:"upgrade"`
	Volume         VolumeConfig         `mapstructure:"volume"`
	Chains         ChainsConfig         `mapstructure:"chains"`
}

// BalanceConfig 余额查询。Threshold 为零表示不做低余额标记。
type BalanceConfig struct {
	Coin        string          `mapstructure:"coin"`
	AccountType string          `mapstructure:"account_type"`
	Threshold   decimal.Decimal `mapstructure:"threshold"`
}

// TransferConfig 账户内划转。Amount 为零表示划转全部可用余额。
type TransferConfig struct {
	Coin            string          `mapstructure:"coin"`
	FromAccountType string          `mapstructure:"from_account_type"`
	ToAccountType   string          `mapstructure:"to_account_type"`
	Amount          decimal.Decimal `mapstructure:"amount"`
}

// SwapConfig 现货市价兑换。
type SwapConfig struct {
	Base          string          `mapstructure:"base"`
	Quote         string          `mapstructure:"quote"`
	Side          string          `mapstructure:"side"`
	Amount        decimal.Decimal `mapstructure:"amount"`
	DecimalPlaces int32           `mapstructure:"decimal_places"`
}

// MarginSwapConfig 杠杆现货兑换。
type MarginSwapConfig struct {
	Base          string          `mapstructure:"base"`
	Quote         string          `mapstructure:"quote"`
	Side          string          `mapstructure:"side"`
	Amount        decimal.Decimal `mapstructure:"amount"`
	Leverage      int             `mapstructure:"leverage"`
	DecimalPlaces int32           `mapstructure:"decimal_places"`
}

// WithdrawConfig 链上提现。
type WithdrawConfig struct {
	Coin   string          `mapstructure:"coin"`
	Chain  string          `mapstructure:"chain"`
	Amount decimal.Decimal `mapstructure:"amount"`
}

// DepositAddressConfig 充值地址查询。
type DepositAddressConfig struct {
	Coin  string `mapstructure:"coin"`
	Chain string `mapstructure:"chain"`
}

// UpgradeConfig 统一账户升级后的状态轮询。
type UpgradeConfig struct {
	PollAttempts int           `mapstructure:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// VolumeConfig USDC/USDT 刷量循环。
type VolumeConfig struct {
	Repeats       int           `mapstructure:"repeats"`
	PauseMin      time.Duration `mapstructure:"pause_min"`
	PauseMax      time.Duration `mapstructure:"pause_max"`
	DecimalPlaces int32         `mapstructure:"decimal_places"`
}

// ChainsConfig 币种可用网络查询。
type ChainsConfig struct {
	Coin string `mapstructure:"coin"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.BaseURL == "" {
		err = multierr.Append(err, errors.New("exchange.base_url 不能为空"))
	}
	if c.Exchange.RecvWindow <= 0 {
		err = multierr.Append(err, errors.New("exchange.recv_window 必须大于0"))
	}
	if c.Exchange.RequestTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.request_timeout 必须大于0"))
	}
	if c.Exchange.TransportRetries < 0 {
		err = multierr.Append(err, errors.New("exchange.transport_retries 不能为负"))
	}
	if c.Exchange.RequestRate < 0 {
		err = multierr.Append(err, errors.New("exchange.request_rate 不能为负"))
	}
	if c.Scheduler.LaunchDelayMin < 0 || c.Scheduler.LaunchDelayMax < 0 {
		err = multierr.Append(err, errors.New("scheduler.launch_delay 不能为负"))
	}
	if c.Scheduler.LaunchDelayMin > c.Scheduler.LaunchDelayMax {
		err = multierr.Append(err, errors.New("scheduler.launch_delay_min 不能大于 launch_delay_max"))
	}
	if c.Scheduler.MaxParallel < 0 {
		err = multierr.Append(err, errors.New("scheduler.max_parallel 不能为负"))
	}
	if c.Scheduler.TaskTimeout < 0 {
		err = multierr.Append(err, errors.New("scheduler.task_timeout 不能为负"))
	}
	if c.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("retry.max_attempts 必须大于0"))
	}
	if c.Retry.Delay < 0 {
		err = multierr.Append(err, errors.New("retry.delay 不能为负"))
	}
	if c.Accounts.Path == "" {
		err = multierr.Append(err, errors.New("accounts.path 不能为空"))
	}
	if c.Output.Dir == "" {
		err = multierr.Append(err, errors.New("output.dir 不能为空"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	err = multierr.Append(err, c.Ops.validate())

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (o OpsConfig) validate() error {
	var err error

	if o.Balance.Threshold.IsNegative() {
		err = multierr.Append(err, errors.New("ops.balance.threshold 不能为负"))
	}
	if o.Transfer.Amount.IsNegative() {
		err = multierr.Append(err, errors.New("ops.transfer.amount 不能为负"))
	}
	if !validSide(o.Swap.Side) {
		err = multierr.Append(err, fmt.Errorf("ops.swap.side 只能为 Buy 或 Sell，当前 %q", o.Swap.Side))
	}
	if o.Swap.DecimalPlaces < 0 {
		err = multierr.Append(err, errors.New("ops.swap.decimal_places 不能为负"))
	}
	if !validSide(o.MarginSwap.Side) {
		err = multierr.Append(err, fmt.Errorf("ops.margin_swap.side 只能为 Buy 或 Sell，当前 %q", o.MarginSwap.Side))
	}
	if o.MarginSwap.Leverage <= 0 {
		err = multierr.Append(err, errors.New("ops.margin_swap.leverage 必须大于0"))
	}
	if o.Withdraw.Amount.IsNegative() {
		err = multierr.Append(err, errors.New("ops.withdraw.amount 不能为负"))
	}
	if o.Upgrade.PollAttempts < 0 {
		err = multierr.Append(err, errors.New("ops.upgrade.poll_attempts 不能为负"))
	}
	if o.Volume.Repeats < 0 {
		err = multierr.Append(err, errors.New("ops.volume.repeats 不能为负"))
	}
	if o.Volume.PauseMin > o.Volume.PauseMax {
		err = multierr.Append(err, errors.New("ops.volume.pause_min 不能大于 pause_max"))
	}

	return err
}

func validSide(side string) bool {
	return strings.EqualFold(side, "buy") || strings.EqualFold(side, "sell")
}
