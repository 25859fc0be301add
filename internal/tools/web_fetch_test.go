package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/weave-logic-ai/clawft/internal/security"
)

func TestWebFetchTool_MissingURL(t *testing.T) {
	tool := NewWebFetchTool(0, nil)
	result := tool.Execute(context.Background(), "c1", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected error for missing url")
	}
}

func TestWebFetchTool_InvalidURL(t *testing.T) {
	tool := NewWebFetchTool(0, nil)
	result := tool.Execute(context.Background(), "c1", map[string]interface{}{"url": "://bad"})
	if !result.IsError {
		t.Error("expected error for invalid url")
	}
}

func TestWebFetchTool_SSRFBlocked(t *testing.T) {
	policy := security.NewUrlPolicy(true, nil, nil, false)
	tool := NewWebFetchTool(0, policy)
	result := tool.Execute(context.Background(), "c1", map[string]interface{}{"url": "http://169.254.169.254/latest/meta-data/"})
	if !result.IsError || !strings.Contains(result.ForLLM, "SSRF protection") {
		t.Errorf("expected SSRF protection error, got %+v", result)
	}
}

func TestWebFetchTool_FetchesAndWraps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	tool := NewWebFetchTool(0, security.NewUrlPolicy(true, nil, nil, true))
	result := tool.Execute(context.Background(), "c1", map[string]interface{}{"url": srv.URL})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "hello world") {
		t.Errorf("expected fetched body in result, got %q", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "<web_content") {
		t.Error("expected external-content wrapper")
	}
}

func TestWebFetchTool_CachesRepeatedFetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("cached body"))
	}))
	defer srv.Close()

	tool := NewWebFetchTool(0, security.NewUrlPolicy(true, nil, nil, true))
	tool.Execute(context.Background(), "c1", map[string]interface{}{"url": srv.URL})
	tool.Execute(context.Background(), "c2", map[string]interface{}{"url": srv.URL})
	if calls != 1 {
		t.Errorf("expected single upstream fetch due to caching, got %d calls", calls)
	}
}

func TestHtmlToText_StripsScriptsAndTags(t *testing.T) {
	html := "<html><head><script>evil()</script></head><body><p>Hello</p><p>World</p></body></html>"
	text := htmlToText(html)
	if strings.Contains(text, "evil()") {
		t.Error("expected script content to be stripped")
	}
	if !strings.Contains(text, "Hello") || !strings.Contains(text, "World") {
		t.Errorf("expected visible text preserved, got %q", text)
	}
}

func TestFetchCache_ExpiresEntries(t *testing.T) {
	c := newFetchCache(10 * time.Millisecond)
	c.set("k", "v")
	if v, ok := c.get("k"); !ok || v != "v" {
		t.Fatal("expected immediate cache hit")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.get("k"); ok {
		t.Error("expected cache entry to expire")
	}
}
