package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/paralogia/internal/cache"
	"github.com/ppiankov/paralogia/internal/detect"
	"github.com/ppiankov/paralogia/internal/llm"
	"github.com/ppiankov/paralogia/internal/logger"
	"github.com/ppiankov/paralogia/internal/model"
	"github.com/ppiankov/paralogia/internal/ratelimit"
)

// scriptedProvider serves a fixed blocking completion and a fixed delta
// sequence.
type scriptedProvider struct {
	completion string
	deltas     []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) Complete(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
	return &llm.Completion{ID: "cmpl-1", Content: p.completion}, nil
}

func (p *scriptedProvider) Stream(context.Context, llm.CompletionRequest) (llm.Stream, error) {
	return &scriptedStream{deltas: p.deltas}, nil
}

type scriptedStream struct {
	deltas []string
	pos    int
}

func (s *scriptedStream) Recv() (llm.Delta, error) {
	if s.pos >= len(s.deltas) {
		return llm.Delta{}, io.EOF
	}
	d := llm.Delta{ID: "stream-1", Content: s.deltas[s.pos]}
	s.pos++
	return d, nil
}

func (s *scriptedStream) Close() error { return nil }

func newTestServer(t *testing.T, provider llm.Provider, limit int) *Server {
	t.Helper()
	nop := logger.NewNop()
	cacheSvc := cache.NewService(nil, nop)
	detector := detect.NewService(provider, cacheSvc, nop, detect.WithBatchInterval(time.Hour))
	limiter := ratelimit.NewLimiter(limit, time.Minute)
	return New(model.ServerConfig{Host: "127.0.0.1", Port: 0}, detector, cacheSvc, limiter, nop)
}

func postAnalyze(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Analyze_Blocking(t *testing.T) {
	provider := &scriptedProvider{
		completion: `{"fallacies": [{"type": "AD_HOMINEM", "description": "d", "startIndex": 0, "endIndex": 10, "explanation": "e", "confidence": 0.9}]}`,
	}
	srv := newTestServer(t, provider, 10)

	w := postAnalyze(t, srv, `{"text": "You are an idiot, so your argument is wrong."}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Fallacies) != 1 || result.Fallacies[0].Type != model.AdHominem {
		t.Errorf("unexpected findings: %v", result.Fallacies)
	}

	if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("expected X-RateLimit-Limit 10, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "9" {
		t.Errorf("expected X-RateLimit-Remaining 9, got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=86400" {
		t.Errorf("expected cacheable response, got %q", got)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("expected ETag on cacheable response")
	}
}

func TestServer_Analyze_SkipCacheHeaders(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{completion: `{"fallacies": []}`}, 10)

	w := postAnalyze(t, srv, `{"text": "some text", "skipCache": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
	if w.Header().Get("ETag") != "" {
		t.Error("expected no ETag with skipCache")
	}
}

func TestServer_Analyze_Validation(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{completion: `{"fallacies": []}`}, 100)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `not json`},
		{"missing text", `{"stream": false}`},
		{"empty text", `{"text": ""}`},
		{"text too long", `{"text": "` + strings.Repeat("a", 5001) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postAnalyze(t, srv, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestServer_Analyze_RateLimited(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{completion: `{"fallacies": []}`}, 2)

	postAnalyze(t, srv, `{"text": "one"}`)
	postAnalyze(t, srv, `{"text": "two"}`)
	w := postAnalyze(t, srv, `{"text": "three"}`)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset header")
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "Too many requests" {
		t.Errorf("unexpected error body: %v", resp)
	}

	// Even malformed requests consume admission; validation runs after
	w = postAnalyze(t, srv, `not json`)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected rate limit checked before validation, got %d", w.Code)
	}
}

func TestServer_Analyze_Streaming(t *testing.T) {
	obj := `{"fallacy": {"type": "STRAW_MAN", "description": "d", "startIndex": 0, "endIndex": 8, "explanation": "e", "confidence": 0.7}}`
	srv := newTestServer(t, &scriptedProvider{deltas: []string{obj[:30], obj[30:]}}, 10)

	w := postAnalyze(t, srv, `{"text": "some text", "stream": true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", got)
	}

	var finals int
	for _, line := range strings.Split(w.Body.String(), "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var result model.AnalysisResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			t.Fatalf("undecodable event payload %q: %v", payload, err)
		}
		if result.IsFinalResult {
			finals++
			if len(result.Fallacies) != 1 {
				t.Errorf("expected 1 finding in final, got %d", len(result.Fallacies))
			}
			if result.AnalysisID != "final" {
				t.Errorf("expected analysisId final, got %s", result.AnalysisID)
			}
		}
	}
	if finals != 1 {
		t.Errorf("expected exactly one final event, got %d", finals)
	}
}

func TestServer_CacheStats(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{completion: `{"fallacies": []}`}, 10)

	postAnalyze(t, srv, `{"text": "warm the cache"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stats cache.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalKeys != 1 {
		t.Errorf("expected 1 cached key, got %d", stats.TotalKeys)
	}
	if stats.PrimaryEnabled {
		t.Error("expected primary disabled in test setup")
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{}, 10)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
