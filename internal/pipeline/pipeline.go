package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"github.com/LJTian/NewsDigest/internal/config"
	"github.com/LJTian/NewsDigest/internal/mailer"
	"github.com/LJTian/NewsDigest/internal/processor"
	"github.com/LJTian/NewsDigest/internal/summarizer"
	"go.uber.org/zap"
)

// Report 一次运行的结果摘要，用于日志与指标
type Report struct {
	Fetched    int
	Kept       int
	Summarized bool
	// FallbackReason 摘要失败时的原因，为空表示未降级
	FallbackReason string
	Subject        string
	Recipients     []string
	Took           time.Duration
}

// Pipeline 串联 获取 → 清洗 → 摘要 → 发送，每次调用互不影响
type Pipeline struct {
	fetcher    collector.Fetcher
	processor  *processor.Processor
	summarizer summarizer.Summarizer // 可为 nil
	translator *collector.Translator // 可为 nil
	mailer     *mailer.Mailer
	logger     *zap.Logger
	now        func() time.Time
}

func New(f collector.Fetcher, p *processor.Processor, s summarizer.Summarizer, m *mailer.Mailer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:    f,
		processor:  p,
		summarizer: s,
		mailer:     m,
		logger:     logger,
		now:        time.Now,
	}
}

// FromConfig 按配置组装各阶段；sender 为 nil 时使用 SMTP。
// 配置不完整时直接返回错误，不发起任何网络请求
func FromConfig(cfg *config.Config, sender mailer.Sender, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.ValidateRun(); err != nil {
		return nil, err
	}
	if sender == nil {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailPassword,
		})
	}
	return fromConfig(cfg, sender, logger)
}

// PreviewFromConfig 只需要获取与摘要的配置，不能发送邮件
func PreviewFromConfig(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.ValidateFetch(); err != nil {
		return nil, err
	}
	return fromConfig(cfg, previewSender{}, logger)
}

func fromConfig(cfg *config.Config, sender mailer.Sender, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	procOpts := processor.Options{Window: cfg.NewsWindow(), Limit: cfg.PageSize}
	if cfg.NewsProvider == config.ProviderNewsAPI {
		procOpts.AllowSources = cfg.NewsSources
	}

	sum, err := NewSummarizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := mailer.New(sender, mailer.Options{
		From:     cfg.EmailUser,
		FromName: cfg.EmailFromName,
		To:       cfg.Recipients,
		Subject:  cfg.EmailSubject,
	}, logger.With(zap.String("stage", "mail")))

	p := New(NewFetcher(cfg, logger), processor.New(procOpts), sum, m, logger)
	if cfg.TranslateTitles {
		p.SetTranslator(collector.NewTranslator(cfg.TranslateTarget, logger.With(zap.String("stage", "translate"))))
	}
	return p, nil
}

// SetTranslator 开启标题翻译；只翻译过滤后保留下来的文章
func (p *Pipeline) SetTranslator(t *collector.Translator) {
	p.translator = t
}

var errPreviewOnly = errors.New("sending is disabled in preview mode")

type previewSender struct{}

func (previewSender) Send(context.Context, mailer.Message) error { return errPreviewOnly }

// NewFetcher 根据 NEWS_PROVIDER 选择来源
func NewFetcher(cfg *config.Config, logger *zap.Logger) collector.Fetcher {
	fl := logger.With(zap.String("stage", "fetch"))

	switch cfg.NewsProvider {
	case config.ProviderReuters:
		return collector.NewReutersFetcher(cfg.ReutersURL, cfg.PageSize, fl)
	default:
		return collector.NewNewsAPIFetcher(collector.NewsAPIOptions{
			BaseURL:   cfg.NewsAPIBaseURL,
			APIKey:    cfg.NewsAPIKey,
			Endpoint:  cfg.NewsEndpoint,
			Sources:   cfg.NewsSources,
			Query:     cfg.NewsQuery,
			Language:  cfg.NewsLanguage,
			SortBy:    cfg.NewsSortBy,
			PageSize:  cfg.PageSize,
			Days:      cfg.NewsDays,
			PerSource: cfg.NewsPerSource,
		}, fl)
	}
}

// NewSummarizer 未配置任何模型时返回 nil
func NewSummarizer(cfg *config.Config, logger *zap.Logger) (summarizer.Summarizer, error) {
	opts := summarizer.Options{
		Provider: cfg.SummaryProvider,
		Language: cfg.SummaryLanguage,
		MaxInput: cfg.SummaryMaxInput,
	}
	switch cfg.SummaryProvider {
	case config.SummaryOpenAI:
		opts.APIKey, opts.Model, opts.BaseURL = cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL
	case config.SummaryGemini:
		opts.APIKey, opts.Model, opts.BaseURL = cfg.GeminiKey, cfg.GeminiModel, cfg.GeminiBaseURL
	}
	return summarizer.New(opts, logger.With(zap.String("stage", "summarize")))
}

// Build 获取并整理内容，不发送；摘要失败时降级为原始列表
func (p *Pipeline) Build(ctx context.Context) (mailer.Content, Report, error) {
	var report Report
	content := mailer.Content{Date: p.now()}

	items, err := p.fetcher.Fetch(ctx)
	if err != nil {
		var fe *collector.FetchError
		if !errors.As(err, &fe) {
			err = &collector.FetchError{Source: p.fetcher.Name(), Err: err}
		}
		return content, report, err
	}
	report.Fetched = len(items)

	content.Articles = p.processor.Process(items)
	report.Kept = len(content.Articles)
	p.logger.Info("articles ready",
		zap.String("stage", "process"),
		zap.String("source", p.fetcher.Name()),
		zap.Int("fetched", report.Fetched),
		zap.Int("kept", report.Kept),
	)

	if p.translator != nil && len(content.Articles) > 0 {
		content.Articles = p.translator.TranslateArticles(ctx, content.Articles)
	}

	if p.summarizer == nil || len(content.Articles) == 0 {
		return content, report, nil
	}

	start := time.Now()
	digest, err := p.summarizer.Summarize(ctx, content.Articles)
	if err != nil {
		report.FallbackReason = err.Error()
		p.logger.Warn("summary failed, sending article list instead",
			zap.String("stage", "summarize"),
			zap.String("provider", p.summarizer.Name()),
			zap.Error(err),
		)
		return content, report, nil
	}
	content.Digest = digest
	report.Summarized = true
	p.logger.Info("summary done",
		zap.String("stage", "summarize"),
		zap.String("provider", p.summarizer.Name()),
		zap.Int("chars", len([]rune(digest))),
		zap.Duration("took", time.Since(start)),
	)
	return content, report, nil
}

// Preview 渲染邮件但不发送
func (p *Pipeline) Preview(ctx context.Context) (mailer.Message, mailer.Content, error) {
	content, _, err := p.Build(ctx)
	if err != nil {
		return mailer.Message{}, content, err
	}
	msg, err := p.mailer.Compose(content)
	return msg, content, err
}

// Run 完整执行一次：要么发送一封邮件，要么一封也不发送
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	content, report, err := p.Build(ctx)
	if err != nil {
		report.Took = time.Since(start)
		return report, err
	}

	report.Subject = p.mailer.Subject(content.Date)
	if err := p.mailer.Deliver(ctx, content); err != nil {
		report.Took = time.Since(start)
		return report, err
	}
	report.Recipients = p.mailer.Recipients()
	report.Took = time.Since(start)
	return report, nil
}
