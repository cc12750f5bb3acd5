package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	ProviderNewsAPI = "newsapi"
	ProviderReuters = "reuters"

	SummaryOpenAI = "openai"
	SummaryGemini = "gemini"
	SummaryNone   = "none"
)

// Config 单次运行的配置，加载后只读
type Config struct {
	NewsProvider   string
	NewsAPIKey     string
	NewsAPIBaseURL string
	NewsEndpoint   string
	NewsSources    []string
	NewsQuery      string
	NewsLanguage   string
	NewsSortBy     string
	NewsPerSource  bool
	PageSize       int
	NewsDays       int
	ReutersURL     string

	SummaryProvider string
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiKey       string
	GeminiModel     string
	GeminiBaseURL   string
	SummaryLanguage string
	SummaryMaxInput int

	SMTPServer    string
	SMTPPort      int
	EmailUser     string
	EmailPassword string
	EmailFromName string
	Recipients    []string
	EmailSubject  string

	TranslateTitles bool
	TranslateTarget string

	CronSpec       string
	PreviewAddr    string
	PushgatewayURL string
	LogLevel       string
	LogFormat      string
}

// LoadOptions 指定额外的配置来源；环境变量优先级最高
type LoadOptions struct {
	// EnvFiles 中不存在的文件会被忽略
	EnvFiles []string
	// ConfigFile 为 YAML，键名与环境变量一致；为空时读取 NEWSDIGEST_CONFIG
	ConfigFile string
}

// MissingKeysError 缺少必需配置项；在任何网络请求之前返回
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required config: " + strings.Join(e.Keys, ", ")
}

// Load 依次读取 .env、YAML 文件与环境变量，只做解析，不校验必需项
func Load(opts LoadOptions) (*Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if opts.ConfigFile == "" {
		opts.ConfigFile = strings.TrimSpace(os.Getenv("NEWSDIGEST_CONFIG"))
	}
	file := map[string]string{}
	if opts.ConfigFile != "" {
		var err error
		if file, err = readYAML(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	r := &reader{file: file}

	cfg := &Config{
		NewsProvider:   strings.ToLower(r.str("NEWS_PROVIDER", ProviderNewsAPI)),
		NewsAPIKey:     r.str("NEWS_API_KEY", ""),
		NewsAPIBaseURL: r.str("NEWS_API_BASE_URL", "https://newsapi.org"),
		NewsEndpoint:   r.str("NEWS_ENDPOINT", "everything"),
		NewsSources:    splitList(r.str("NEWS_SOURCES", "bbc-news,reuters")),
		NewsQuery:      r.str("NEWS_QUERY", ""),
		NewsLanguage:   r.str("NEWS_LANGUAGE", "en"),
		NewsSortBy:     r.str("NEWS_SORT_BY", "publishedAt"),
		NewsPerSource:  r.boolean("NEWS_PER_SOURCE", false),
		PageSize:       r.integer("PAGE_SIZE", 5),
		NewsDays:       r.integer("NEWS_DAYS", 2),
		ReutersURL:     r.str("REUTERS_URL", "https://www.reuters.com/"),

		SummaryProvider: strings.ToLower(r.str("SUMMARY_PROVIDER", "")),
		OpenAIKey:       r.str("OPENAI_API_KEY", ""),
		OpenAIModel:     r.str("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL:   r.str("OPENAI_BASE_URL", "https://api.openai.com"),
		GeminiKey:       r.str("GEMINI_API_KEY", ""),
		GeminiModel:     r.str("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		GeminiBaseURL:   r.str("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		SummaryLanguage: r.str("SUMMARY_LANGUAGE", "Chinese"),
		SummaryMaxInput: r.integer("SUMMARY_MAX_INPUT", 12000),

		SMTPServer:    r.str("SMTP_SERVER", ""),
		SMTPPort:      r.integer("SMTP_PORT", 0),
		EmailUser:     r.str("EMAIL_USER", ""),
		EmailPassword: r.str("EMAIL_PASSWORD", ""),
		EmailFromName: r.str("EMAIL_FROM_NAME", ""),
		Recipients:    splitList(r.str("TO_EMAIL", "")),
		EmailSubject:  r.str("EMAIL_SUBJECT", "每日新闻简报"),

		TranslateTitles: r.boolean("TRANSLATE_TITLES", false),
		TranslateTarget: r.str("TRANSLATE_TARGET", "zh-CN"),

		CronSpec:       r.str("CRON_SPEC", "0 8 * * *"),
		PreviewAddr:    r.str("PREVIEW_ADDR", ":9000"),
		PushgatewayURL: r.str("PUSHGATEWAY_URL", ""),
		LogLevel:       r.str("LOG_LEVEL", "info"),
		LogFormat:      r.str("LOG_FORMAT", "json"),
	}

	if cfg.SummaryProvider == "" {
		switch {
		case cfg.OpenAIKey != "":
			cfg.SummaryProvider = SummaryOpenAI
		case cfg.GeminiKey != "":
			cfg.SummaryProvider = SummaryGemini
		default:
			cfg.SummaryProvider = SummaryNone
		}
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}

// ValidateFetch 校验获取新闻所需的配置
func (c *Config) ValidateFetch() error {
	var missing []string
	if c.NewsProvider == ProviderNewsAPI && c.NewsAPIKey == "" {
		missing = append(missing, "NEWS_API_KEY")
	}
	if err := c.checkMissing(missing); err != nil {
		return err
	}

	switch c.NewsProvider {
	case ProviderNewsAPI, ProviderReuters:
	default:
		return fmt.Errorf("NEWS_PROVIDER: unknown provider %q (valid: newsapi, reuters)", c.NewsProvider)
	}
	switch c.NewsEndpoint {
	case "everything", "top-headlines":
	default:
		return fmt.Errorf("NEWS_ENDPOINT: unknown endpoint %q (valid: everything, top-headlines)", c.NewsEndpoint)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE: must be between 1 and 100, got %d", c.PageSize)
	}
	if c.NewsDays < 0 {
		return fmt.Errorf("NEWS_DAYS: must not be negative, got %d", c.NewsDays)
	}

	switch c.SummaryProvider {
	case SummaryNone:
	case SummaryOpenAI:
		if c.OpenAIKey == "" {
			return &MissingKeysError{Keys: []string{"OPENAI_API_KEY"}}
		}
	case SummaryGemini:
		if c.GeminiKey == "" {
			return &MissingKeysError{Keys: []string{"GEMINI_API_KEY"}}
		}
	default:
		return fmt.Errorf("SUMMARY_PROVIDER: unknown provider %q (valid: openai, gemini, none)", c.SummaryProvider)
	}
	return nil
}

// ValidateRun 校验完整运行（获取 + 发送）所需的配置，一次性报告所有缺失项
func (c *Config) ValidateRun() error {
	var missing []string
	if c.NewsProvider == ProviderNewsAPI && c.NewsAPIKey == "" {
		missing = append(missing, "NEWS_API_KEY")
	}
	missing = append(missing, c.missingSMTP()...)
	if err := c.checkMissing(missing); err != nil {
		return err
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT: must be between 1 and 65535, got %d", c.SMTPPort)
	}
	return c.ValidateFetch()
}

// ValidateSchedule 额外校验 CRON_SPEC
func (c *Config) ValidateSchedule() error {
	if _, err := cron.ParseStandard(c.CronSpec); err != nil {
		return fmt.Errorf("CRON_SPEC: %w", err)
	}
	return c.ValidateRun()
}

func (c *Config) missingSMTP() []string {
	var missing []string
	if c.SMTPServer == "" {
		missing = append(missing, "SMTP_SERVER")
	}
	if c.SMTPPort == 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if c.EmailUser == "" {
		missing = append(missing, "EMAIL_USER")
	}
	if c.EmailPassword == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if len(c.Recipients) == 0 {
		missing = append(missing, "TO_EMAIL")
	}
	return missing
}

func (c *Config) checkMissing(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return &MissingKeysError{Keys: missing}
}

// NewsWindow 对应 NEWS_DAYS，0 表示不限制
func (c *Config) NewsWindow() time.Duration {
	return time.Duration(c.NewsDays) * 24 * time.Hour
}

type reader struct {
	file map[string]string
	errs []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.file[key]); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

// readYAML 读取扁平的 KEY: value 文件，列表值以逗号拼接
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, val := range raw {
		switch v := val.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				parts = append(parts, fmt.Sprint(p))
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config file %s: key %s: nested values are not supported", path, k)
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
