package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accountops/internal/app"
	"accountops/internal/config"
	"accountops/internal/log"
	"accountops/internal/ops"
	"accountops/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "accountops",
		Short:         "在多个 Bybit 账户上并发执行批量操作",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")

	for _, d := range ops.Descriptors() {
		root.AddCommand(newOpCmd(d, &configPath))
	}
	return root
}

func newOpCmd(d ops.Descriptor, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   d.Name,
		Short: d.Title,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath, d.Name)
		},
	}
}

func run(parent context.Context, configPath, opName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return err
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return err
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	resultStore, err := store.New(cfg.Output)
	if err != nil {
		logger.Error("初始化结果目录失败", zap.Error(err))
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := app.New(cfg, logger, resultStore).Run(ctx, opName); err != nil {
		logger.Error("批量执行失败", zap.Error(err))
		return err
	}
	return nil
}
