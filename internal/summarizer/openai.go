package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"go.uber.org/zap"
)

type openaiProvider struct {
	opts   Options
	client *http.Client
	logger *zap.Logger
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *openaiProvider) Name() string {
	return "openai"
}

func (o *openaiProvider) Summarize(ctx context.Context, articles []collector.Article) (string, error) {
	prompt := BuildPrompt(articles, o.opts.Language, o.opts.MaxInput)

	body, err := json.Marshal(chatCompletionRequest{
		Model:       o.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return "", &SummaryError{Provider: o.Name(), Err: err}
	}

	endpoint := strings.TrimRight(o.opts.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &SummaryError{Provider: o.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.opts.APIKey)

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return "", &SummaryError{Provider: o.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxBytes))
		return "", &SummaryError{Provider: o.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(b)))}
	}

	var cr chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &SummaryError{Provider: o.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &SummaryError{Provider: o.Name(), Err: fmt.Errorf("empty response")}
	}
	text := strings.TrimSpace(cr.Choices[0].Message.Content)
	if text == "" {
		return "", &SummaryError{Provider: o.Name(), Err: fmt.Errorf("empty digest")}
	}

	o.logger.Info("digest generated",
		zap.String("model", o.opts.Model),
		zap.Int("prompt_runes", len([]rune(prompt))),
		zap.Int("total_tokens", cr.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)),
	)
	return text, nil
}
