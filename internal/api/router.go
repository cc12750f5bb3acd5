package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
	"github.com/LJTian/NewsDigest/internal/mailer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Previewer 生成当天的邮件内容但不发送
type Previewer interface {
	Preview(ctx context.Context) (mailer.Message, mailer.Content, error)
}

// DefaultCacheTTL 每次预览都会实际请求新闻源和模型，结果在此时间内复用
const DefaultCacheTTL = 5 * time.Minute

type Server struct {
	previewer Previewer
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	cached   *previewResult
	cachedAt time.Time
}

type previewResult struct {
	msg     mailer.Message
	content mailer.Content
}

func NewServer(p Previewer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{previewer: p, logger: logger, ttl: DefaultCacheTTL, now: time.Now}
}

// load 失败的结果不缓存；持锁期间构建，避免并发请求重复调用上游
func (s *Server) load(ctx context.Context) (mailer.Message, mailer.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		return s.cached.msg, s.cached.content, nil
	}
	msg, content, err := s.previewer.Preview(ctx)
	if err != nil {
		return msg, content, err
	}
	s.cached = &previewResult{msg: msg, content: content}
	s.cachedAt = s.now()
	return msg, content, nil
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/preview", s.preview)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) preview(c *gin.Context) {
	msg, _, err := s.load(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(msg.HTML))
}

func (s *Server) listArticles(c *gin.Context) {
	msg, content, err := s.load(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	articles := content.Articles
	if articles == nil {
		articles = []collector.Article{}
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"subject":  msg.Subject,
			"date":     content.Date.Format("2006-01-02"),
			"digest":   content.Digest,
			"articles": articles,
		},
	})
}

// fail 上游新闻源失败返回 502，其余返回 500；不向外暴露错误细节
func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("preview failed", zap.String("path", c.FullPath()), zap.Error(err))

	if collector.IsFetchError(err) {
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "fetch_error",
			"message": "news source unavailable",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
