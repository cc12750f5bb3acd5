package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "newsdigest"

// Run 单次运行的指标；进程每次只运行一轮，因此使用独立 registry 并推送到 Pushgateway
type Run struct {
	registry *prometheus.Registry

	ArticlesFetched prometheus.Gauge
	ArticlesSent    prometheus.Gauge
	SummaryFallback prometheus.Gauge
	Duration        prometheus.Gauge
	LastSuccess     prometheus.Gauge
	Failed          prometheus.Gauge
}

func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		ArticlesFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_articles_fetched",
			Help: "Articles returned by the news source in the last run.",
		}),
		ArticlesSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_articles_sent",
			Help: "Articles included in the last email.",
		}),
		SummaryFallback: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_summary_fallback",
			Help: "1 if the last run fell back to the raw article list.",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		Failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_run_failed",
			Help: "1 if the last run failed.",
		}),
	}
	r.registry.MustRegister(r.ArticlesFetched, r.ArticlesSent, r.SummaryFallback, r.Duration, r.LastSuccess, r.Failed)
	return r
}

// Observe 记录本轮的文章数量与是否降级为原始列表
func (r *Run) Observe(fetched, sent int, fallback bool) {
	r.ArticlesFetched.Set(float64(fetched))
	r.ArticlesSent.Set(float64(sent))
	if fallback {
		r.SummaryFallback.Set(1)
	} else {
		r.SummaryFallback.Set(0)
	}
}

// Finish 记录运行结果；仅在成功时更新 LastSuccess
func (r *Run) Finish(start time.Time, err error) {
	r.Duration.Set(time.Since(start).Seconds())
	if err != nil {
		r.Failed.Set(1)
		return
	}
	r.Failed.Set(0)
	r.LastSuccess.SetToCurrentTime()
}

// Push 推送到 Pushgateway；url 为空时什么也不做
func (r *Run) Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	return push.New(url, jobName).Gatherer(r.registry).PushContext(ctx)
}
