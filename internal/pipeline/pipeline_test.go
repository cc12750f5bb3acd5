package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"github.com/LJTian/NewsDigest/internal/config"
	"github.com/LJTian/NewsDigest/internal/mailer"
	"github.com/LJTian/NewsDigest/internal/processor"
	"github.com/LJTian/NewsDigest/internal/summarizer"
)

var runDate = time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)

type staticFetcher struct {
	items []collector.Article
	err   error
}

func (f *staticFetcher) Name() string { return "static" }

func (f *staticFetcher) Fetch(ctx context.Context) ([]collector.Article, error) {
	return f.items, f.err
}

type stubSummarizer struct {
	digest string
	err    error
	got    []collector.Article
}

func (s *stubSummarizer) Name() string { return "stub" }

func (s *stubSummarizer) Summarize(ctx context.Context, articles []collector.Article) (string, error) {
	s.got = articles
	return s.digest, s.err
}

type recordingSender struct {
	calls int
	last  mailer.Message
	err   error
}

func (r *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	r.calls++
	r.last = msg
	return r.err
}

func articles(n int) []collector.Article {
	out := make([]collector.Article, n)
	for i := range out {
		out[i] = collector.Article{
			Title:       fmt.Sprintf("Headline %d", i+1),
			Description: fmt.Sprintf("Description %d", i+1),
			URL:         fmt.Sprintf("https://example.com/%d", i+1),
			Source:      "BBC News",
			PublishedAt: runDate.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func newTestPipeline(f collector.Fetcher, s summarizer.Summarizer, sender mailer.Sender) *Pipeline {
	m := mailer.New(sender, mailer.Options{From: "bot@example.com", To: []string{"reader@example.com"}, Subject: "Daily"}, nil)
	p := New(f, processor.New(processor.Options{}), s, m, nil)
	p.now = func() time.Time { return runDate }
	return p
}

func TestRunSummaryFailureSendsUnmodifiedList(t *testing.T) {
	items := articles(3)
	sum := &stubSummarizer{err: &summarizer.SummaryError{Provider: "stub", StatusCode: 500, Err: errors.New("boom")}}
	sender := &recordingSender{}

	report, err := newTestPipeline(&staticFetcher{items: items}, sum, sender).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("Send called %d times, want 1", sender.calls)
	}
	if report.Summarized || report.FallbackReason == "" {
		t.Fatalf("report should record fallback: %+v", report)
	}
	if !reflect.DeepEqual(sum.got, items) {
		t.Fatalf("summarizer got %+v, want %+v", sum.got, items)
	}
	for _, a := range items {
		if !strings.Contains(sender.last.HTML, a.Title) || !strings.Contains(sender.last.HTML, a.Description) {
			t.Fatalf("email missing article %q", a.Title)
		}
	}
}

func TestBuildFallbackKeepsArticles(t *testing.T) {
	items := articles(2)
	p := newTestPipeline(&staticFetcher{items: items}, &stubSummarizer{err: errors.New("timeout")}, &recordingSender{})

	content, _, err := p.Build(context.Background())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if content.Digest != "" {
		t.Fatalf("digest = %q, want empty", content.Digest)
	}
	if !reflect.DeepEqual(content.Articles, items) {
		t.Fatalf("articles = %+v, want %+v", content.Articles, items)
	}
}

func TestRunSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("535 authentication failed")}
	_, err := newTestPipeline(&staticFetcher{items: articles(2)}, nil, sender).Run(context.Background())

	var se *mailer.SendError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *mailer.SendError", err)
	}
	if sender.calls != 1 {
		t.Fatalf("Send called %d times, want exactly 1", sender.calls)
	}
}

func TestRunFetchFailureSendsNothing(t *testing.T) {
	sum := &stubSummarizer{digest: "x"}
	sender := &recordingSender{}
	_, err := newTestPipeline(&staticFetcher{err: errors.New("connection refused")}, sum, sender).Run(context.Background())

	var fe *collector.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *collector.FetchError", err)
	}
	if fe.Source != "static" {
		t.Fatalf("source = %q", fe.Source)
	}
	if sender.calls != 0 || sum.got != nil {
		t.Fatalf("later stages should not run: sends=%d summarized=%v", sender.calls, sum.got != nil)
	}
}

func TestRunEmptyListSkipsSummarizer(t *testing.T) {
	sum := &stubSummarizer{digest: "x"}
	sender := &recordingSender{}
	report, err := newTestPipeline(&staticFetcher{}, sum, sender).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if sum.got != nil {
		t.Fatalf("summarizer should not be called for an empty list")
	}
	if sender.calls != 1 || report.Kept != 0 {
		t.Fatalf("sends=%d kept=%d, want 1 and 0", sender.calls, report.Kept)
	}
}

func TestFromConfigMissingKeysNoNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := &config.Config{
		NewsProvider:    config.ProviderNewsAPI,
		NewsAPIBaseURL:  srv.URL,
		NewsEndpoint:    "everything",
		PageSize:        5,
		SummaryProvider: config.SummaryNone,
	}
	sender := &recordingSender{}
	_, err := FromConfig(cfg, sender, nil)

	var mk *config.MissingKeysError
	if !errors.As(err, &mk) {
		t.Fatalf("err = %v, want *config.MissingKeysError", err)
	}
	want := []string{"NEWS_API_KEY", "SMTP_SERVER", "SMTP_PORT", "EMAIL_USER", "EMAIL_PASSWORD", "TO_EMAIL"}
	if !reflect.DeepEqual(mk.Keys, want) {
		t.Fatalf("missing = %v, want %v", mk.Keys, want)
	}
	if atomic.LoadInt32(&hits) != 0 || sender.calls != 0 {
		t.Fatalf("network touched before validation: hits=%d sends=%d", hits, sender.calls)
	}
}

func TestEndToEndFiveArticles(t *testing.T) {
	now := time.Now().UTC()
	var sb strings.Builder
	sb.WriteString(`{"status":"ok","totalResults":5,"articles":[`)
	for i := 0; i < 5; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"source":{"id":"bbc-news","name":"BBC News"},"title":"Story %d","description":"Body %d","url":"https://www.bbc.co.uk/news/%d","publishedAt":%q}`,
			i+1, i+1, i+1, now.Add(-time.Duration(i+1)*time.Hour).Format(time.RFC3339))
	}
	sb.WriteString(`]}`)

	news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "news-key" {
			t.Errorf("X-Api-Key = %q", r.Header.Get("X-Api-Key"))
		}
		_, _ = w.Write([]byte(sb.String()))
	}))
	defer news.Close()

	var llmCalls int32
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&llmCalls, 1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Five stories today.\n\nStory 1 leads."}}]}`))
	}))
	defer llm.Close()

	cfg := &config.Config{
		NewsProvider:    config.ProviderNewsAPI,
		NewsAPIKey:      "news-key",
		NewsAPIBaseURL:  news.URL,
		NewsEndpoint:    "everything",
		NewsSources:     []string{"bbc-news", "reuters"},
		PageSize:        5,
		NewsDays:        2,
		SummaryProvider: config.SummaryOpenAI,
		OpenAIKey:       "sk-test",
		OpenAIModel:     "gpt-test",
		OpenAIBaseURL:   llm.URL,
		SummaryLanguage: "English",
		SummaryMaxInput: 12000,
		SMTPServer:      "smtp.example.com",
		SMTPPort:        465,
		EmailUser:       "bot@example.com",
		EmailPassword:   "secret",
		Recipients:      []string{"reader@example.com"},
		EmailSubject:    "Daily",
	}
	sender := &recordingSender{}
	p, err := FromConfig(cfg, sender, nil)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	p.now = func() time.Time { return runDate }

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Fetched != 5 || report.Kept != 5 || !report.Summarized {
		t.Fatalf("report = %+v", report)
	}
	if sender.calls != 1 || atomic.LoadInt32(&llmCalls) != 1 {
		t.Fatalf("sends=%d llm=%d, want 1 and 1", sender.calls, llmCalls)
	}
	if !reflect.DeepEqual(sender.last.To, []string{"reader@example.com"}) {
		t.Fatalf("to = %v", sender.last.To)
	}
	if sender.last.Subject != "Daily 2024-05-03" {
		t.Fatalf("subject = %q", sender.last.Subject)
	}
	if !strings.Contains(sender.last.HTML, "Five stories today.") {
		t.Fatalf("digest missing from email body")
	}
}

func TestPreviewDoesNotSend(t *testing.T) {
	sender := &recordingSender{}
	msg, content, err := newTestPipeline(&staticFetcher{items: articles(2)}, &stubSummarizer{digest: "Short digest."}, sender).Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("Preview sent %d emails", sender.calls)
	}
	if content.Digest != "Short digest." || !strings.Contains(msg.HTML, "Short digest.") {
		t.Fatalf("preview missing digest: %q", msg.HTML)
	}
}

func TestPreviewFromConfigCannotSend(t *testing.T) {
	cfg := &config.Config{
		NewsProvider:    config.ProviderReuters,
		NewsEndpoint:    "everything",
		PageSize:        5,
		SummaryProvider: config.SummaryNone,
	}
	p, err := PreviewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("PreviewFromConfig error: %v", err)
	}
	p.fetcher = &staticFetcher{items: articles(1)}

	_, err = p.Run(context.Background())
	var se *mailer.SendError
	if !errors.As(err, &se) || !errors.Is(err, errPreviewOnly) {
		t.Fatalf("err = %v, want preview-only SendError", err)
	}
}

func TestBuildTranslatesOnlyKeptArticles(t *testing.T) {
	var calls int32
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[[["译文","src",null,null]],null,"en"]`))
	}))
	defer google.Close()

	tr := collector.NewTranslator("zh-CN", nil)
	tr.GoogleURL = google.URL

	m := mailer.New(&recordingSender{}, mailer.Options{To: []string{"reader@example.com"}, Subject: "Daily"}, nil)
	p := New(&staticFetcher{items: articles(5)}, processor.New(processor.Options{Limit: 2}), nil, m, nil)
	p.SetTranslator(tr)

	content, _, err := p.Build(context.Background())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(content.Articles) != 2 {
		t.Fatalf("kept %d articles, want 2", len(content.Articles))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("translated %d titles, want 2", got)
	}
	for _, a := range content.Articles {
		if a.TranslatedTitle != "译文" {
			t.Fatalf("TranslatedTitle = %q", a.TranslatedTitle)
		}
	}
}
