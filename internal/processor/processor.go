package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
)

const (
	// newsapi 对已下架文章返回的占位内容
	removedPlaceholder = "[Removed]"

	descriptionMaxRunes = 300
)

// Options 控制过滤规则；零值表示不过滤
type Options struct {
	// Window 早于 now-Window 的文章被丢弃，0 表示不限制
	Window time.Duration
	// AllowSources 为空时不过滤来源；同时匹配来源 ID 与名称，忽略大小写
	AllowSources []string
	// Limit 保留的最大条数，0 表示不限制
	Limit int
}

// Processor 在发送前做基础的数据清洗、过滤与去重
type Processor struct {
	opts  Options
	allow map[string]struct{}
	now   func() time.Time
}

func New(opts Options) *Processor {
	p := &Processor{opts: opts, now: time.Now}
	if len(opts.AllowSources) > 0 {
		p.allow = make(map[string]struct{}, len(opts.AllowSources))
		for _, s := range opts.AllowSources {
			if s = normalizeSource(s); s != "" {
				p.allow[s] = struct{}{}
			}
		}
	}
	return p
}

// Process 返回新的切片，不修改入参
func (p *Processor) Process(items []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(items))
	seen := make(map[string]struct{})

	var cutoff time.Time
	if p.opts.Window > 0 {
		cutoff = p.now().Add(-p.opts.Window)
	}

	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		it.URL = strings.TrimSpace(it.URL)
		it.Source = strings.TrimSpace(it.Source)
		if it.URL == "" || it.Title == "" || it.Title == removedPlaceholder {
			continue
		}
		if !cutoff.IsZero() && !it.PublishedAt.IsZero() && it.PublishedAt.Before(cutoff) {
			continue
		}
		if !p.sourceAllowed(it) {
			continue
		}

		id := hashURL(it.URL)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		desc := strings.TrimSpace(it.Description)
		if desc == "" || desc == removedPlaceholder {
			desc = it.Title
		}
		it.Description = truncateRunes(desc, descriptionMaxRunes)

		out = append(out, it)
	}

	// 发布时间倒序；没有时间的排在最后
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PublishedAt, out[j].PublishedAt
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})

	if p.opts.Limit > 0 && len(out) > p.opts.Limit {
		out = out[:p.opts.Limit]
	}
	return out
}

func (p *Processor) sourceAllowed(it collector.Article) bool {
	if p.allow == nil {
		return true
	}
	for _, s := range []string{it.SourceID, it.Source} {
		if _, ok := p.allow[normalizeSource(s)]; ok {
			return true
		}
	}
	return false
}

// normalizeSource 使 "BBC News" 与 "bbc-news" 可以互相匹配
func normalizeSource(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "-")
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
