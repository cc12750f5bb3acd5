package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"github.com/LJTian/NewsDigest/internal/config"
	"github.com/LJTian/NewsDigest/internal/logger"
	"github.com/LJTian/NewsDigest/internal/mailer"
	"github.com/LJTian/NewsDigest/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const checkTimeout = 30 * time.Second

var (
	flagConfig  string
	flagEnvFile string
)

// selftest 检查新闻源与 SMTP 是否可用，不发送邮件
var rootCmd = &cobra.Command{
	Use:           "selftest",
	Short:         "Check that the news source and SMTP account are reachable",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to a YAML config file (env vars take precedence)")
	rootCmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{EnvFiles: []string{flagEnvFile}, ConfigFile: flagConfig})
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateRun(); err != nil {
		log.Error("invalid config", zap.Error(err))
		return err
	}

	checks := []struct {
		name string
		fn   func(ctx context.Context) (string, error)
	}{
		{"news", func(ctx context.Context) (string, error) { return checkNews(ctx, cfg, log) }},
		{"smtp", func(ctx context.Context) (string, error) { return checkSMTP(ctx, cfg) }},
	}

	for _, c := range checks {
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		start := time.Now()
		detail, err := c.fn(ctx)
		cancel()
		if err != nil {
			log.Error("check failed", zap.String("check", c.name), zap.Error(err))
			return fmt.Errorf("%s: %w", c.name, err)
		}
		log.Info("check ok", zap.String("check", c.name), zap.String("detail", detail), zap.Duration("took", time.Since(start)))
	}
	log.Info("all checks passed")
	return nil
}

// checkNews NewsAPI 请求来源列表；Reuters 直接抓取一次首页
func checkNews(ctx context.Context, cfg *config.Config, log *zap.Logger) (string, error) {
	if cfg.NewsProvider == config.ProviderReuters {
		items, err := pipeline.NewFetcher(cfg, log).Fetch(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("reuters: %d stories", len(items)), nil
	}

	f := collector.NewNewsAPIFetcher(collector.NewsAPIOptions{
		BaseURL: cfg.NewsAPIBaseURL,
		APIKey:  cfg.NewsAPIKey,
	}, log)
	n, err := f.Ping(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("newsapi: %d sources", n), nil
}

func checkSMTP(ctx context.Context, cfg *config.Config) (string, error) {
	s := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPassword,
	})
	if err := s.Ping(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("login ok as %s on %s:%d", cfg.EmailUser, cfg.SMTPServer, cfg.SMTPPort), nil
}
