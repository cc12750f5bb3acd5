package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"go.uber.org/zap"
)

const (
	clientTimeout        = 60 * time.Second
	articleMaxRunes      = 1000
	defaultMaxInputRunes = 12000
	errorBodyMaxBytes    = 1024
)

// Summarizer 把一组文章压缩成一段摘要文本
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, articles []collector.Article) (string, error)
}

// SummaryError 摘要生成失败；调用方应回退为原始文章列表
type SummaryError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *SummaryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("summarize via %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("summarize via %s: %v", e.Provider, e.Err)
}

func (e *SummaryError) Unwrap() error { return e.Err }

// Options 对应 SUMMARY_* / OPENAI_* / GEMINI_* 配置
type Options struct {
	Provider  string // openai | gemini | none
	APIKey    string
	Model     string
	BaseURL   string
	Language  string
	MaxInput  int
	MaxTokens int
}

// New 根据 Provider 创建 Summarizer；Provider 为 none 或空时返回 nil
func New(opts Options, logger *zap.Logger) (Summarizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxInput <= 0 {
		opts.MaxInput = defaultMaxInputRunes
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	client := &http.Client{Timeout: clientTimeout}

	switch opts.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai: api key not configured")
		}
		if opts.Model == "" {
			opts.Model = "gpt-3.5-turbo"
		}
		if opts.BaseURL == "" {
			opts.BaseURL = "https://api.openai.com"
		}
		return &openaiProvider{opts: opts, client: client, logger: logger}, nil
	case "gemini":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini: api key not configured")
		}
		if opts.Model == "" {
			opts.Model = "gemini-1.5-flash-latest"
		}
		if opts.BaseURL == "" {
			opts.BaseURL = "https://generativelanguage.googleapis.com"
		}
		return &geminiProvider{opts: opts, client: client, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown summary provider: %q (valid: openai, gemini, none)", opts.Provider)
	}
}

const promptHeader = `You are a professional news editor. Below are %d news articles published recently.
Write a concise daily news digest in %s:
- start with a one-paragraph overview of the most important events;
- then one short paragraph per significant story, most important first;
- keep facts accurate and neutral, do not invent details that are not in the articles;
- plain text only, separate paragraphs with a blank line.

Articles:
`

// BuildPrompt 拼接提示词：每篇文章截断到 articleMaxRunes，整体截断到 maxInput（超出部分直接丢弃）
func BuildPrompt(articles []collector.Article, language string, maxInput int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, promptHeader, len(articles), language)

	for i, a := range articles {
		var item strings.Builder
		fmt.Fprintf(&item, "\n%d. %s\n", i+1, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&item, "Source: %s\n", a.Source)
		}
		if !a.PublishedAt.IsZero() {
			fmt.Fprintf(&item, "Published: %s\n", a.PublishedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		if a.Description != "" && a.Description != a.Title {
			fmt.Fprintf(&item, "Summary: %s\n", a.Description)
		}
		fmt.Fprintf(&item, "URL: %s\n", a.URL)
		sb.WriteString(cutRunes(item.String(), articleMaxRunes))
	}

	return cutRunes(sb.String(), maxInput)
}

func cutRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
