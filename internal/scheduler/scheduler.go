package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 一次完整的运行，每个触发点独立执行
type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	job    Job
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New spec 为标准 5 段 cron 表达式；上一轮未结束时跳过本轮，避免重叠运行
func New(spec string, job Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{l: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		job:    job,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scheduler started", zap.Time("next", e.Next))
	}
}

// Stop 停止触发新的运行，取消进行中的运行并等待其返回
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("run started")
	err := s.job(ctx)
	if err != nil {
		s.logger.Error("run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return err
	}
	s.logger.Info("run done", zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Scheduler) runOnce() {
	// 失败只记录日志，等待下一个触发点
	_ = s.RunOnce(s.ctx)
}

// cronLogger 把 cron 内部日志转到 zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
