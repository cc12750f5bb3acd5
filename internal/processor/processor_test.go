package processor

import (
	"testing"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
)

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	url1 := "https://example.com/a"
	url2 := "https://example.com/b"

	h1a := hashURL(url1)
	h1b := hashURL(url1)
	h2 := hashURL(url2)

	if h1a != h1b {
		t.Fatalf("hashURL not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashURL should differ for different URLs: %q", h1a)
	}
}

func TestTruncateRunesHandlesChineseAndEllipsis(t *testing.T) {
	s := "你好，世界，这是一个很长的中文句子，用来测试截断逻辑。"
	out := truncateRunes(s, 5)
	if len([]rune(out)) != 6 { // 5 个字符 + 1 个省略号
		t.Fatalf("truncateRunes length = %d, want 6 (including ellipsis): %q", len([]rune(out)), out)
	}
	if out[len(out)-len("…"):] != "…" {
		t.Fatalf("truncateRunes should append ellipsis: %q", out)
	}

	// limit 大于长度时不应截断
	if full := truncateRunes("短文本", 10); full != "短文本" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}
}

func TestProcessDeduplicateAndFillDescription(t *testing.T) {
	p := New(Options{})
	now := time.Now()

	items := []collector.Article{
		{Title: "Title 1", URL: "https://example.com/1", Source: "test", Description: "desc 1", PublishedAt: now},
		{Title: "Title 1 duplicate by URL", URL: "https://example.com/1", Source: "test", Description: "desc 1 dup", PublishedAt: now},
		{Title: "Title 2 no desc", URL: "https://example.com/2", Source: "test", PublishedAt: now.Add(-time.Minute)},
		{Title: "[Removed]", URL: "https://removed.com", Source: "[Removed]"},
		{Title: "no url"},
	}

	out := p.Process(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 processed items after dedupe, got %d", len(out))
	}
	if out[0].Description != "desc 1" {
		t.Fatalf("first item should keep its description: %q", out[0].Description)
	}
	if out[1].Description != "Title 2 no desc" {
		t.Fatalf("unexpected fallback description: %q", out[1].Description)
	}
	if items[2].Description != "" {
		t.Fatalf("input slice must not be modified")
	}
}

func TestProcessWindowSourcesAndLimit(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	p := New(Options{
		Window:       48 * time.Hour,
		AllowSources: []string{"bbc-news", "Reuters"},
		Limit:        2,
	})
	p.now = func() time.Time { return now }

	items := []collector.Article{
		{Title: "old", URL: "https://e/old", SourceID: "bbc-news", PublishedAt: now.Add(-72 * time.Hour)},
		{Title: "bbc by name", URL: "https://e/1", Source: "BBC News", PublishedAt: now.Add(-3 * time.Hour)},
		{Title: "blocked", URL: "https://e/2", Source: "Daily Gossip", PublishedAt: now.Add(-time.Hour)},
		{Title: "reuters undated", URL: "https://e/3", Source: "reuters"},
		{Title: "reuters newest", URL: "https://e/4", SourceID: "reuters", PublishedAt: now.Add(-time.Hour)},
	}

	out := p.Process(items)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2: %+v", len(out), out)
	}
	if out[0].Title != "reuters newest" || out[1].Title != "bbc by name" {
		t.Fatalf("unexpected order: %q, %q", out[0].Title, out[1].Title)
	}
}

func TestNormalizeSource(t *testing.T) {
	cases := map[string]string{
		"BBC News":  "bbc-news",
		" bbc-news": "bbc-news",
		"the_verge": "the-verge",
		"":          "",
	}
	for in, want := range cases {
		if got := normalizeSource(in); got != want {
			t.Fatalf("normalizeSource(%q) = %q, want %q", in, got, want)
		}
	}
}
