package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "accountops"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 未显式指定路径且默认文件不存在时，仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if _, statErr := os.Stat(path); statErr == nil || explicit {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
			}
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "production")

	v.SetDefault("exchange.base_url", "https://api.bybit.com")
	v.SetDefault("exchange.recv_window", 20000)
	v.SetDefault("exchange.request_timeout", "15s")
	v.SetDefault("exchange.transport_retries", 2)
	v.SetDefault("exchange.request_rate", 0)

	v.SetDefault("scheduler.launch_delay_min", "1s")
	v.SetDefault("scheduler.launch_delay_max", "5s")
	v.SetDefault("scheduler.max_parallel", 0)
	v.SetDefault("scheduler.task_timeout", "0s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", "5s")

	v.SetDefault("accounts.path", "accounts.txt")
	v.SetDefault("output.dir", "results")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"stderr"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("ops.balance.coin", "USDT")
	v.SetDefault("ops.balance.account_type", "UNIFIED")
	v.SetDefault("ops.balance.threshold", "0")

	v.SetDefault("ops.transfer.coin", "USDT")
	v.SetDefault("ops.transfer.from_account_type", "FUND")
	v.SetDefault("ops.transfer.to_account_type", "UNIFIED")
	v.SetDefault("ops.transfer.amount", "0")

	v.SetDefault("ops.swap.base", "USDC")
	v.SetDefault("ops.swap.quote", "USDT")
	v.SetDefault("ops.swap.side", "Buy")
	v.SetDefault("ops.swap.amount", "0")
	v.SetDefault("ops.swap.decimal_places", 2)

	v.SetDefault("ops.margin_swap.base", "USDC")
	v.SetDefault("ops.margin_swap.quote", "USDT")
	v.SetDefault("ops.margin_swap.side", "Buy")
	v.SetDefault("ops.margin_swap.amount", "0")
	v.SetDefault("ops.margin_swap.leverage", 2)
	v.SetDefault("ops.margin_swap.decimal_places", 2)

	v.SetDefault("ops.withdraw.coin", "USDT")
	v.SetDefault("ops.withdraw.chain", "TRX")
	v.SetDefault("ops.withdraw.amount", "0")

	v.SetDefault("ops.deposit_address.coin", "USDT")
	v.SetDefault("ops.deposit_address.chain", "TRX")

	v.SetDefault("ops.upgrade.poll_attempts", 30)
	v.SetDefault("ops.upgrade.poll_interval", "10s")

	v.SetDefault("ops.volume.repeats", 1)
	v.SetDefault("ops.volume.pause_min", "5s")
	v.SetDefault("ops.volume.pause_max", "15s")
	v.SetDefault("ops.volume.decimal_places", 2)

	v.SetDefault("ops.chains.coin", "USDT")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToDecimalHookFunc(),
		)
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// stringToDecimalHookFunc 将 YAML/环境变量中的数值解析为 decimal.Decimal，空串视为零。
func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != decimalType {
			return data, nil
		}

		switch value := data.(type) {
		case string:
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				return decimal.Zero, nil
			}
			d, err := decimal.NewFromString(trimmed)
			if err != nil {
				return nil, fmt.Errorf("无法解析数值 %q: %w", value, err)
			}
			return d, nil
		case int:
			return decimal.NewFromInt(int64(value)), nil
		case int64:
			return decimal.NewFromInt(value), nil
		case float64:
			return decimal.NewFromFloat(value), nil
		case decimal.Decimal:
			return value, nil
		default:
			return data, nil
		}
	}
}
