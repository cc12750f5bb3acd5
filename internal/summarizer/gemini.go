package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"go.uber.org/zap"
)

type geminiProvider struct {
	opts   Options
	client *http.Client
	logger *zap.Logger
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *geminiProvider) Name() string {
	return "gemini"
}

func (g *geminiProvider) Summarize(ctx context.Context, articles []collector.Article) (string, error) {
	prompt := BuildPrompt(articles, g.opts.Language, g.opts.MaxInput)

	maxTokens := g.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.7,
			TopP:            0.95,
			MaxOutputTokens: maxTokens,
		},
	})
	if err != nil {
		return "", &SummaryError{Provider: g.Name(), Err: err}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.opts.BaseURL, "/"), url.PathEscape(g.opts.Model), url.QueryEscape(g.opts.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &SummaryError{Provider: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		// url.Error 会带上完整 URL，去掉以免 key 出现在日志里
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
		}
		return "", &SummaryError{Provider: g.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxBytes))
		return "", &SummaryError{Provider: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(b)))}
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", &SummaryError{Provider: g.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gr.Candidates) == 0 {
		reason := "no candidates"
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + gr.PromptFeedback.BlockReason
		}
		return "", &SummaryError{Provider: g.Name(), Err: fmt.Errorf("%s", reason)}
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &SummaryError{Provider: g.Name(), Err: fmt.Errorf("empty digest")}
	}

	g.logger.Info("digest generated",
		zap.String("model", g.opts.Model),
		zap.Int("prompt_runes", len([]rune(prompt))),
		zap.Duration("took", time.Since(start)),
	)
	return text, nil
}
