package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const (
	reutersDefaultURL    = "https://www.reuters.com/"
	reutersUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	reutersTimeout       = 10 * time.Second
	reutersMinTitleRunes = 20
	reutersSourceName    = "Reuters"
)

// ReutersFetcher 直接抓取 Reuters 首页的新闻链接，不需要 API key
type ReutersFetcher struct {
	pageURL  string
	maxItems int
	logger   *zap.Logger
}

func NewReutersFetcher(pageURL string, maxItems int, logger *zap.Logger) *ReutersFetcher {
	if pageURL == "" {
		pageURL = reutersDefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReutersFetcher{pageURL: pageURL, maxItems: maxItems, logger: logger}
}

func (r *ReutersFetcher) Name() string {
	return "reuters"
}

func (r *ReutersFetcher) Fetch(ctx context.Context) ([]Article, error) {
	u, err := url.Parse(r.pageURL)
	if err != nil {
		return nil, &FetchError{Source: r.Name(), Err: err}
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.UserAgent(reutersUserAgent),
	)
	c.SetRequestTimeout(reutersTimeout)
	c.OnRequest(func(req *colly.Request) {
		if ctx.Err() != nil {
			req.Abort()
			return
		}
		req.Headers.Set("Accept", "text/html,application/xhtml+xml")
		req.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		results    []Article
		seen       = make(map[string]struct{})
		statusCode int
	)

	c.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			statusCode = resp.StatusCode
		}
	})

	// 页面结构经常调整：优先取 <main> 内的 <section>，找不到再退回 <main> / <body>
	c.OnHTML("html", func(e *colly.HTMLElement) {
		root := e.DOM.Find("main").First()
		if root.Length() == 0 {
			root = e.DOM.Find("body")
		}
		scope := root.Find("section")
		if scope.Length() == 0 {
			scope = root
		}

		scope.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if r.maxItems > 0 && len(results) >= r.maxItems {
				return false
			}
			title := collapseSpace(s.Text())
			href, _ := s.Attr("href")
			if len([]rune(title)) < reutersMinTitleRunes || href == "" || strings.HasPrefix(href, "#") {
				return true
			}
			link := e.Request.AbsoluteURL(href)
			if link == "" {
				return true
			}
			if _, ok := seen[link]; ok {
				return true
			}
			seen[link] = struct{}{}

			results = append(results, storyFromSelection(s, title, link))
			return true
		})
	})

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: r.Name(), Err: err}
	}
	if err := c.Visit(r.pageURL); err != nil {
		return nil, &FetchError{Source: r.Name(), StatusCode: statusCode, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: r.Name(), Err: err}
	}

	if len(results) == 0 {
		return nil, &FetchError{Source: r.Name(), Err: fmt.Errorf("%w: no stories found", ErrMalformedPayload)}
	}

	r.logger.Info("scrape reuters done", zap.Int("articles", len(results)))
	return results, nil
}

// storyFromSelection 在链接所在的卡片内查找摘要与发布时间
func storyFromSelection(s *goquery.Selection, title, link string) Article {
	a := Article{
		Title:  title,
		URL:    link,
		Source: reutersSourceName,
	}

	card := s.Closest("li, article, div")
	if card.Length() == 0 {
		return a
	}
	if desc := collapseSpace(card.Find("p").First().Text()); desc != "" && desc != title {
		a.Description = desc
	}
	if ts, ok := card.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			a.PublishedAt = t
		}
	}
	return a
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
