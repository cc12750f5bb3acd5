package collector

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Article 统一采集后的新闻结构，采集完成后不再修改
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	SourceID    string    `json:"sourceId,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	// 可选：开启 TRANSLATE_TITLES 后填充
	TranslatedTitle string `json:"translatedTitle,omitempty"`
}

// Fetcher 抽象每一个新闻来源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Article, error)
}

// FetchError 新闻获取失败（网络错误、非 2xx 状态码或响应缺少关键字段），对本次运行是致命的
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError 判断错误链中是否有 FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
