package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsMostlyChinese(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"你好世界", true},
		{"Hello world", false},
		{"GPT 发布", true},
	}
	for _, c := range cases {
		if got := isMostlyChinese(c.in); got != c.want {
			t.Fatalf("isMostlyChinese(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTranslateArticlesFallsBackToMyMemory(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer google.Close()
	mymemory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("langpair") != "en|zh" {
			t.Errorf("langpair = %q", r.URL.Query().Get("langpair"))
		}
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"市场上涨"}}`))
	}))
	defer mymemory.Close()

	tr := NewTranslator("zh-CN", nil)
	tr.GoogleURL = google.URL
	tr.MyMemoryURL = mymemory.URL

	in := []Article{
		{Title: "Markets rally", URL: "https://e/1"},
		{Title: "中文标题", URL: "https://e/2"},
	}
	items := tr.TranslateArticles(context.Background(), in)
	if items[0].TranslatedTitle != "市场上涨" {
		t.Fatalf("TranslatedTitle = %q", items[0].TranslatedTitle)
	}
	if items[1].TranslatedTitle != "" {
		t.Fatalf("chinese title should not be translated: %q", items[1].TranslatedTitle)
	}
	if in[0].TranslatedTitle != "" {
		t.Fatalf("input articles must not be modified")
	}
}

func TestTranslatorGoogleResponse(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[["风暴","Storm",null,null,1],["袭击海岸"," hits coast",null,null,1]],null,"en"]`))
	}))
	defer google.Close()

	tr := NewTranslator("", nil)
	tr.GoogleURL = google.URL
	tr.MyMemoryURL = "http://127.0.0.1:0"
	if got := tr.Translate(context.Background(), "Storm hits coast"); got != "风暴袭击海岸" {
		t.Fatalf("Translate = %q", got)
	}
}
