package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/LJTian/NewsDigest/internal/collector"
)

// Content 一封邮件的内容：Digest 为空时按原始文章列表渲染
type Content struct {
	Date     time.Time
	Digest   string
	Articles []collector.Article
}

var htmlTmpl = template.Must(template.New("email").Funcs(template.FuncMap{
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
}).Parse(`<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style type="text/css">
body { margin: 0; padding: 10px; background: #f5f5f5; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
.container { max-width: 800px; margin: 0 auto; padding: 20px; }
.title { color: #2c3e50; text-align: center; font-size: 20px; margin: 0 0 15px 0; }
.digest { background: #ffffff; padding: 15px; margin-bottom: 20px; border-radius: 10px; line-height: 1.6; font-size: 14px; color: #222; white-space: pre-line; }
.article { background: #ffffff; padding: 15px; margin-bottom: 20px; border-radius: 10px; box-shadow: 0 2px 8px rgba(0,0,0,0.05); }
.article h3 { font-size: 16px; line-height: 1.4; margin: 0 0 10px 0; }
.article a { color: #2980b9; text-decoration: none; }
.translation { color: #2c3e50; font-size: 14px; margin-bottom: 8px; }
.summary { margin: 10px 0; line-height: 1.5; font-size: 14px; color: #222; }
.meta { color: #7f8c8d; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<h2 class="title">{{.Heading}}</h2>
{{- if .Paragraphs}}
<div class="digest">
{{- range .Paragraphs}}
<p>{{.}}</p>
{{- end}}
</div>
{{- end}}
{{- if not .Articles}}
<p class="summary">No articles matched today's filters.</p>
{{- end}}
{{- range .Articles}}
<div class="article">
<h3><a href="{{.URL}}" target="_blank">{{.Title}}</a></h3>
{{- if .TranslatedTitle}}
<div class="translation">{{.TranslatedTitle}}</div>
{{- end}}
{{- if not $.Paragraphs}}
<div class="summary">{{.Description}}</div>
{{- end}}
<div class="meta">{{if .Source}}来源：{{.Source}}{{end}}{{with when .PublishedAt}} · {{.}}{{end}}</div>
</div>
{{- end}}
</div>
</body>
</html>
`))

type htmlView struct {
	Heading    string
	Paragraphs []string
	Articles   []collector.Article
}

// RenderHTML 渲染 HTML 正文；有摘要时文章只列标题与链接
func RenderHTML(heading string, c Content) (string, error) {
	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, htmlView{
		Heading:    heading,
		Paragraphs: paragraphs(c.Digest),
		Articles:   c.Articles,
	})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// RenderText 渲染纯文本备选正文
func RenderText(heading string, c Content) string {
	var sb strings.Builder
	sb.WriteString(heading)
	sb.WriteString("\n\n")

	if p := paragraphs(c.Digest); len(p) > 0 {
		sb.WriteString(strings.Join(p, "\n\n"))
		sb.WriteString("\n\n")
	}
	if len(c.Articles) == 0 {
		sb.WriteString("No articles matched today's filters.\n")
		return sb.String()
	}

	for i, a := range c.Articles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, a.Title)
		if a.TranslatedTitle != "" {
			fmt.Fprintf(&sb, "   %s\n", a.TranslatedTitle)
		}
		if c.Digest == "" && a.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", a.Description)
		}
		if a.Source != "" {
			fmt.Fprintf(&sb, "   来源：%s\n", a.Source)
		}
		fmt.Fprintf(&sb, "   %s\n\n", a.URL)
	}
	return sb.String()
}

func paragraphs(s string) []string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
