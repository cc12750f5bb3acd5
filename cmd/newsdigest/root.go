package main

import (
	"fmt"
	"os"

	"github.com/LJTian/NewsDigest/internal/config"
	"github.com/LJTian/NewsDigest/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagEnvFile string
)

var rootCmd = &cobra.Command{
	Use:           "newsdigest",
	Short:         "Fetch today's news, summarize it and send one digest email",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file (env vars take precedence)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(previewCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsdigest %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig 每次调用都重新读取配置；配置不可用时也返回一个可用的 logger 用于记录错误
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFiles: []string{flagEnvFile}, ConfigFile: flagConfig})
	if err != nil {
		log := fallbackLogger()
		log.Error("load config failed", zap.Error(err))
		return nil, log, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log = fallbackLogger()
		log.Error("init logger failed", zap.Error(err))
		return nil, log, err
	}
	return cfg, log, nil
}

func fallbackLogger() *zap.Logger {
	l, err := logger.New("info", "json")
	if err != nil {
		return zap.NewExample()
	}
	return l
}
