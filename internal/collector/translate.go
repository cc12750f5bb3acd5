package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

const (
	translateMaxResponseBytes = 256 * 1024
	translateMaxLen           = 500
	translateClientTimeout    = 20 * time.Second

	googleTranslateURL = "https://translate.googleapis.com/translate_a/single"
	myMemoryURL        = "https://api.mymemory.translated.net/get"
)

// Translator 依次尝试 Google Translate 公开接口 → MyMemory，均失败则返回空串
type Translator struct {
	GoogleURL   string
	MyMemoryURL string
	Target      string // 例如 zh-CN

	client *http.Client
	logger *zap.Logger
}

func NewTranslator(target string, logger *zap.Logger) *Translator {
	if target == "" {
		target = "zh-CN"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		GoogleURL:   googleTranslateURL,
		MyMemoryURL: myMemoryURL,
		Target:      target,
		client:      &http.Client{Timeout: translateClientTimeout},
		logger:      logger,
	}
}

// Translate 翻译失败时返回空串，调用方保留原文
func (t *Translator) Translate(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if rs := []rune(text); len(rs) > translateMaxLen {
		text = string(rs[:translateMaxLen])
	}

	if out, err := t.viaGoogle(ctx, text); err == nil && out != "" {
		return out
	} else if err != nil {
		t.logger.Debug("translate (google-gtx) failed", zap.Error(err))
	}

	if out, err := t.viaMyMemory(ctx, text); err == nil && out != "" {
		return out
	} else if err != nil {
		t.logger.Debug("translate (mymemory) failed", zap.Error(err))
	}
	return ""
}

// client=gtx 不需要密钥
func (t *Translator) viaGoogle(ctx context.Context, text string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", t.Target)
	params.Set("dt", "t")
	params.Set("q", text)

	body, err := t.get(ctx, t.GoogleURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	// 响应格式: [[["翻译文本","原文",...],...],...]
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}
	outer, ok := raw[0].([]any)
	if !ok {
		return "", nil
	}

	var result strings.Builder
	for _, seg := range outer {
		pair, ok := seg.([]any)
		if !ok || len(pair) < 1 {
			continue
		}
		if s, ok := pair[0].(string); ok {
			result.WriteString(s)
		}
	}
	return strings.TrimSpace(result.String()), nil
}

func (t *Translator) viaMyMemory(ctx context.Context, text string) (string, error) {
	target := t.Target
	if i := strings.Index(target, "-"); i > 0 {
		target = target[:i]
	}
	params := url.Values{}
	params.Set("langpair", sourceLangForMyMemory(text)+"|"+target)
	params.Set("q", text)

	body, err := t.get(ctx, t.MyMemoryURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return strings.TrimSpace(out.ResponseData.TranslatedText), nil
}

func (t *Translator) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, translateMaxResponseBytes))
}

// TranslateArticles 返回补充了标题译文的副本，不修改入参；中文标题跳过
func (t *Translator) TranslateArticles(ctx context.Context, items []Article) []Article {
	out := make([]Article, len(items))
	for i, it := range items {
		out[i] = it
		if isMostlyChinese(it.Title) {
			continue
		}
		out[i].TranslatedTitle = t.Translate(ctx, it.Title)
	}
	return out
}

func isMostlyChinese(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	var cjk, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return true
	}
	return cjk >= 1 && (cjk*4 >= total || cjk >= 2)
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4e00 && r <= 0x9fff:
		return true
	case r >= 0x3400 && r <= 0x4dbf:
		return true
	case r >= 0x3000 && r <= 0x303f:
		return true
	}
	return false
}

func sourceLangForMyMemory(s string) string {
	for _, r := range s {
		if r >= 0x3040 && r <= 0x309f || r >= 0x30a0 && r <= 0x30ff {
			return "ja"
		}
	}
	return "en"
}
