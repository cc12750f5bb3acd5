package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsDigest/internal/config"
	"github.com/LJTian/NewsDigest/internal/mailer"
	"github.com/LJTian/NewsDigest/internal/metrics"
	"github.com/LJTian/NewsDigest/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const metricsPushTimeout = 10 * time.Second

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runDigest(ctx, cfg, nil, log); err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}
	return nil
}

// runDigest 校验配置后执行一次完整流程，并在结束时推送指标；sender 为 nil 时走 SMTP
func runDigest(ctx context.Context, cfg *config.Config, sender mailer.Sender, log *zap.Logger) error {
	start := time.Now()
	m := metrics.NewRun()

	report, err := func() (pipeline.Report, error) {
		p, err := pipeline.FromConfig(cfg, sender, log)
		if err != nil {
			return pipeline.Report{}, err
		}
		return p.Run(ctx)
	}()

	sent := 0
	if err == nil {
		sent = report.Kept
	}
	m.Observe(report.Fetched, sent, report.FallbackReason != "")
	m.Finish(start, err)
	pushMetrics(m, cfg.PushgatewayURL, log)

	if err != nil {
		return err
	}
	log.Info("digest sent",
		zap.String("subject", report.Subject),
		zap.Strings("to", report.Recipients),
		zap.Int("fetched", report.Fetched),
		zap.Int("sent", report.Kept),
		zap.Bool("summarized", report.Summarized),
		zap.Duration("took", report.Took),
	)
	return nil
}

// pushMetrics 推送失败只记录日志，不影响退出码
func pushMetrics(m *metrics.Run, url string, log *zap.Logger) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
	defer cancel()
	if err := m.Push(ctx, url); err != nil {
		log.Warn("push metrics failed", zap.String("url", url), zap.Error(err))
	}
}
