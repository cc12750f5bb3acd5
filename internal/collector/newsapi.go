package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	newsAPIDefaultBaseURL     = "https://newsapi.org"
	newsAPIMaxResponseBytes   = 4 << 20 // 4MB
	newsAPIClientTimeout      = 15 * time.Second
	newsAPIErrorBodyMaxBytes  = 1024
	newsAPIEndpointEverything = "everything"
	newsAPIEndpointHeadlines  = "top-headlines"
)

// ErrMalformedPayload 响应中缺少 articles 等必需字段
var ErrMalformedPayload = errors.New("malformed payload")

// NewsAPIOptions 对应 newsapi.org 的查询参数
type NewsAPIOptions struct {
	BaseURL  string
	APIKey   string
	Endpoint string // everything | top-headlines
	Sources  []string
	Query    string
	Language string
	SortBy   string
	PageSize int
	// Days 为 0 时不限制时间范围（仅 everything 生效）
	Days      int
	PerSource bool
}

// NewsAPIFetcher 通过 newsapi.org 检索新闻
type NewsAPIFetcher struct {
	opts   NewsAPIOptions
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewNewsAPIFetcher(opts NewsAPIOptions, logger *zap.Logger) *NewsAPIFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = newsAPIDefaultBaseURL
	}
	if opts.Endpoint == "" {
		opts.Endpoint = newsAPIEndpointEverything
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsAPIFetcher{
		opts:   opts,
		client: &http.Client{Timeout: newsAPIClientTimeout},
		logger: logger,
		now:    time.Now,
	}
}

func (f *NewsAPIFetcher) Name() string {
	return "newsapi"
}

type newsAPIResponse struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     *[]newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   *string `json:"id"`
		Name *string `json:"name"`
	} `json:"source"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	PublishedAt *string `json:"publishedAt"`
}

func (f *NewsAPIFetcher) Fetch(ctx context.Context) ([]Article, error) {
	if !f.opts.PerSource || len(f.opts.Sources) <= 1 {
		return f.fetchOnce(ctx, f.opts.Sources)
	}

	// 每个来源单独请求一次，顺序执行
	var all []Article
	for _, src := range f.opts.Sources {
		items, err := f.fetchOnce(ctx, []string{src})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

func (f *NewsAPIFetcher) fetchOnce(ctx context.Context, sources []string) ([]Article, error) {
	endpoint := f.opts.BaseURL + "/v2/" + f.opts.Endpoint
	params := f.query(sources)

	f.logger.Info("fetch news",
		zap.String("endpoint", f.opts.Endpoint),
		zap.Strings("sources", sources),
		zap.Int("page_size", f.opts.PageSize),
	)

	body, status, err := f.get(ctx, endpoint, params)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), StatusCode: status, Err: err}
	}

	var payload newsAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Source: f.Name(), Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	if payload.Status == "error" {
		return nil, &FetchError{Source: f.Name(), Err: fmt.Errorf("api error %s: %s", payload.Code, payload.Message)}
	}
	if payload.Articles == nil {
		return nil, &FetchError{Source: f.Name(), Err: fmt.Errorf("%w: missing articles", ErrMalformedPayload)}
	}

	out := make([]Article, 0, len(*payload.Articles))
	for _, a := range *payload.Articles {
		out = append(out, a.toArticle())
	}

	f.logger.Info("fetch news done", zap.Int("articles", len(out)), zap.Int("total_results", payload.TotalResults))
	return out, nil
}

func (f *NewsAPIFetcher) query(sources []string) url.Values {
	params := url.Values{}
	if len(sources) > 0 {
		params.Set("sources", strings.Join(sources, ","))
	}
	if f.opts.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(f.opts.PageSize))
	}
	if f.opts.Query != "" {
		params.Set("q", f.opts.Query)
	}

	// top-headlines 不支持 sortBy / from / to / language 与 sources 混用
	if f.opts.Endpoint == newsAPIEndpointEverything {
		if f.opts.Language != "" {
			params.Set("language", f.opts.Language)
		}
		if f.opts.SortBy != "" {
			params.Set("sortBy", f.opts.SortBy)
		}
		if f.opts.Days > 0 {
			to := f.now().UTC()
			from := to.AddDate(0, 0, -f.opts.Days)
			params.Set("from", from.Format("2006-01-02"))
			params.Set("to", to.Format("2006-01-02"))
		}
	}
	return params
}

func (f *NewsAPIFetcher) get(ctx context.Context, endpoint string, params url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "NewsDigest/1.0")
	// key 放在请求头里，不出现在 URL 中
	req.Header.Set("X-Api-Key", f.opts.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		// url.Error 会带上完整 URL，只保留底层错误
		if ue, ok := err.(*url.Error); ok {
			err = fmt.Errorf("%s %s: %w", ue.Op, endpoint, ue.Err)
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, newsAPIErrorBodyMaxBytes))
		return nil, resp.StatusCode, fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(b)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, newsAPIMaxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Ping 请求来源列表接口，用于连通性自检，返回可用来源数量
func (f *NewsAPIFetcher) Ping(ctx context.Context) (int, error) {
	body, status, err := f.get(ctx, f.opts.BaseURL+"/v2/top-headlines/sources", url.Values{})
	if err != nil {
		return 0, &FetchError{Source: f.Name(), StatusCode: status, Err: err}
	}

	var payload struct {
		Status  string            `json:"status"`
		Sources []json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, &FetchError{Source: f.Name(), Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	if payload.Sources == nil {
		return 0, &FetchError{Source: f.Name(), Err: fmt.Errorf("%w: missing sources", ErrMalformedPayload)}
	}
	return len(payload.Sources), nil
}

func (a newsAPIArticle) toArticle() Article {
	out := Article{
		Title:       deref(a.Title),
		Description: deref(a.Description),
		URL:         deref(a.URL),
		Source:      deref(a.Source.Name),
		SourceID:    deref(a.Source.ID),
	}
	if out.Source == "" {
		out.Source = out.SourceID
	}
	if ts := deref(a.PublishedAt); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			out.PublishedAt = t
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
