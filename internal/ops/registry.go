package ops

import (
	"fmt"
	"sort"

	"accountops/internal/config"
	"accountops/internal/engine"
)

// FirstAccountOnly 由只需在第一个账户上执行的操作实现。
type FirstAccountOnly interface {
	FirstAccountOnly() bool
}

// Tabular 由需要额外导出 CSV 的操作实现。
type Tabular interface {
	Table(outcomes []engine.Outcome) (header []string, rows [][]string)
}

// Descriptor 描述一个可执行的操作。
type Descriptor struct {
	Name  string
	Title string
	Build func(cfg config.OpsConfig) (engine.Op, error)
}

var registry = map[string]Descriptor{}

func register(d Descriptor) {
	registry[d.Name] = d
}

func init() {
	register(Descriptor{Name: "balance", Title: "余额查询", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewBalance(cfg.Balance), nil
	}})
	register(Descriptor{Name: "transfer", Title: "账户间划转", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewTransfer(cfg.Transfer), nil
	}})
	register(Descriptor{Name: "swap", Title: "现货兑换", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewSwap(cfg.Swap)
	}})
	register(Descriptor{Name: "margin-swap", Title: "杠杆兑换", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewMarginSwap(cfg.MarginSwap)
	}})
	register(Descriptor{Name: "withdraw", Title: "链上提现", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewWithdraw(cfg.Withdraw), nil
	}})
	register(Descriptor{Name: "deposit-address", Title: "充值地址", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewDepositAddress(cfg.DepositAddress), nil
	}})
	register(Descriptor{Name: "upgrade-uta", Title: "升级统一账户", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewUpgradeUTA(cfg.Upgrade), nil
	}})
	register(Descriptor{Name: "volume", Title: "现货刷量", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewVolume(cfg.Volume), nil
	}})
	register(Descriptor{Name: "chains", Title: "可用网络", Build: func(cfg config.OpsConfig) (engine.Op, error) {
		return NewChains(cfg.Chains), nil
	}})
}

// Lookup 返回操作描述。
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("ops: 未知操作 %q", name)
	}
	return d, nil
}

// Descriptors 按名称排序返回全部操作。
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
