package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/LJTian/NewsDigest/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagRunNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Stay in the foreground and send one digest per CRON_SPEC tick",
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&flagRunNow, "now", false, "run once immediately before waiting for the first tick")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateSchedule(); err != nil {
		log.Error("invalid config", zap.Error(err))
		return err
	}

	// 每个触发点重新加载配置，保证各次运行互相独立
	job := func(ctx context.Context) error {
		cfg, runLog, err := loadConfig()
		if err != nil {
			return err
		}
		return runDigest(ctx, cfg, nil, runLog)
	}

	s, err := scheduler.New(cfg.CronSpec, job, log)
	if err != nil {
		log.Error("init scheduler failed", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flagRunNow {
		_ = s.RunOnce(ctx)
	}

	s.Start()
	log.Info("waiting for schedule", zap.String("cron", cfg.CronSpec))
	<-ctx.Done()

	log.Info("shutting down scheduler")
	s.Stop()
	return nil
}
