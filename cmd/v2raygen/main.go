package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/v2raygen/internal/config"
	"github.com/John-Robertt/v2raygen/pkg/logger"
)

var (
	configPath = "config.yml"
	skipConfig = false

	flagURL       string
	flagFile      string
	flagOutput    string
	flagMap       string
	flagSocksPort int
	flagHTTPPort  int
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "v2raygen",
		Short:        "从 VMess 订阅链接生成 V2Ray/Xray 客户端配置",
		Long:         "下载并解析 VMess 订阅，为每个节点分配独立的 SOCKS5/HTTP 入站端口，\n生成本地监听（127.0.0.1）与局域网监听（0.0.0.0）两份配置文件，\n以及 inbound-outbound 映射表（JSON + CSV）。",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configPath, skipConfig)
			if err != nil {
				return fmt.Errorf("unable to initialize config: %w", err)
			}
			applyFlagOverrides(cmd, cfg)

			log := logger.New(cfg.Logger)
			defer func() { _ = log.Sync() }()

			if err := run(cmd.Context(), cfg, log); err != nil {
				log.Errorf("generation failed: %v", err)
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to yml config")
	cmd.PersistentFlags().BoolVar(&skipConfig, "skip-config", false, "skips config and uses ENV only")

	cmd.Flags().StringVarP(&flagURL, "url", "u", "", "订阅链接（不提供时读取本地订阅文件）")
	cmd.Flags().StringVarP(&flagFile, "file", "f", "", "本地订阅文件路径")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "配置文件基础输出路径（生成 _local/_lan 两份）")
	cmd.Flags().StringVarP(&flagMap, "map", "m", "", "in-out 映射表 JSON 输出路径")
	cmd.Flags().IntVar(&flagSocksPort, "socks-port", 0, "SOCKS5 入站起始端口")
	cmd.Flags().IntVar(&flagHTTPPort, "http-port", 0, "HTTP 入站起始端口")

	return cmd
}

// applyFlagOverrides layers explicitly set flags over file/env config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("url") {
		cfg.Subscription.URL = flagURL
	}
	if cmd.Flags().Changed("file") {
		cfg.Subscription.File = flagFile
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.ConfigFile = flagOutput
	}
	if cmd.Flags().Changed("map") {
		cfg.Output.MapFile = flagMap
	}
	if cmd.Flags().Changed("socks-port") {
		cfg.Ports.SocksBase = flagSocksPort
	}
	if cmd.Flags().Changed("http-port") {
		cfg.Ports.HTTPBase = flagHTTPPort
	}
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
