package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Message 一封已经渲染完成的邮件
type Message struct {
	From     string
	FromName string
	To       []string
	Subject  string
	HTML     string
	Text     string
}

// Sender 负责实际投递，便于替换实现与测试
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendError 发送失败（连接、认证或投递），对本次运行是致命的
type SendError struct {
	Recipients []string
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send email to %s: %v", strings.Join(e.Recipients, ","), e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Options 发件人与收件人配置
type Options struct {
	From     string
	FromName string
	To       []string
	// Subject 前缀，实际主题为 "Subject YYYY-MM-DD"
	Subject string
}

type Mailer struct {
	sender Sender
	opts   Options
	logger *zap.Logger
}

func New(sender Sender, opts Options, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{sender: sender, opts: opts, logger: logger}
}

// Subject 主题包含运行日期
func (m *Mailer) Subject(date time.Time) string {
	return strings.TrimSpace(m.opts.Subject + " " + date.Format("2006-01-02"))
}

func (m *Mailer) Recipients() []string {
	return m.opts.To
}

// Compose 渲染邮件但不发送
func (m *Mailer) Compose(c Content) (Message, error) {
	subject := m.Subject(c.Date)
	html, err := RenderHTML(subject, c)
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:     m.opts.From,
		FromName: m.opts.FromName,
		To:       m.opts.To,
		Subject:  subject,
		HTML:     html,
		Text:     RenderText(subject, c),
	}, nil
}

// Deliver 渲染并只发送一次，不做重试
func (m *Mailer) Deliver(ctx context.Context, c Content) error {
	msg, err := m.Compose(c)
	if err != nil {
		return &SendError{Recipients: m.opts.To, Err: err}
	}

	start := time.Now()
	if err := m.sender.Send(ctx, msg); err != nil {
		return &SendError{Recipients: m.opts.To, Err: err}
	}

	m.logger.Info("email sent",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Bool("digest", c.Digest != ""),
		zap.Int("articles", len(c.Articles)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
