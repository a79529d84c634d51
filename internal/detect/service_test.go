package detect

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/paralogia/internal/cache"
	"github.com/ppiankov/paralogia/internal/llm"
	"github.com/ppiankov/paralogia/internal/logger"
	"github.com/ppiankov/paralogia/internal/model"
)

// fakeProvider is a scripted model: Complete returns a fixed body, Stream
// replays fixed deltas.
type fakeProvider struct {
	completion  string
	deltas      []string
	streamErr   error
	completeErr error

	completeCalls atomic.Int32
	streamCalls   atomic.Int32
	closed        atomic.Bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) IsAvailable(context.Context) bool { return true }

func (p *fakeProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
	p.completeCalls.Add(1)
	if p.completeErr != nil {
		return nil, p.completeErr
	}
	return &llm.Completion{ID: "cmpl-1", Content: p.completion}, nil
}

func (p *fakeProvider) Stream(ctx context.Context, _ llm.CompletionRequest) (llm.Stream, error) {
	p.streamCalls.Add(1)
	return &fakeStream{ctx: ctx, provider: p, deltas: p.deltas, err: p.streamErr}, nil
}

type fakeStream struct {
	ctx      context.Context
	provider *fakeProvider
	deltas   []string
	err      error
	pos      int
}

func (s *fakeStream) Recv() (llm.Delta, error) {
	if s.ctx.Err() != nil {
		return llm.Delta{}, s.ctx.Err()
	}
	if s.pos >= len(s.deltas) {
		if s.err != nil {
			return llm.Delta{}, s.err
		}
		return llm.Delta{}, io.EOF
	}
	d := llm.Delta{ID: "stream-1", Content: s.deltas[s.pos]}
	s.pos++
	return d, nil
}

func (s *fakeStream) Close() error {
	s.provider.closed.Store(true)
	return nil
}

func newTestService(p llm.Provider, opts ...Option) *Service {
	cacheSvc := cache.NewService(nil, logger.NewNop())
	return NewService(p, cacheSvc, logger.NewNop(), opts...)
}

func TestService_Analyze(t *testing.T) {
	provider := &fakeProvider{
		completion: `{"fallacies": [
			{"type": "AD_HOMINEM", "description": "d", "startIndex": 0, "endIndex": 10, "explanation": "e", "confidence": 0.4},
			{"type": "STRAW_MAN", "description": "d", "startIndex": 20, "endIndex": 30, "explanation": "e", "confidence": 0.9}
		]}`,
	}
	svc := newTestService(provider)

	result, err := svc.Analyze(context.Background(), "some argument")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Text != "some argument" {
		t.Errorf("expected input echoed, got %q", result.Text)
	}
	if result.AnalysisID != "cmpl-1" {
		t.Errorf("expected upstream completion ID, got %s", result.AnalysisID)
	}
	if len(result.Fallacies) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(result.Fallacies))
	}
	if result.Fallacies[0].Type != model.StrawMan {
		t.Errorf("expected confidence-descending order, got %s first", result.Fallacies[0].Type)
	}
	if result.IsFinalResult {
		t.Error("blocking results are not stream finals")
	}
}

func TestService_Analyze_CacheHitSkipsModel(t *testing.T) {
	provider := &fakeProvider{completion: `{"fallacies": []}`}
	svc := newTestService(provider)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, "same text")
	if err != nil {
		t.Fatalf("first Analyze failed: %v", err)
	}

	second, err := svc.Analyze(ctx, "same text")
	if err != nil {
		t.Fatalf("second Analyze failed: %v", err)
	}

	if got := provider.completeCalls.Load(); got != 1 {
		t.Errorf("expected 1 model call for identical text, got %d", got)
	}
	if !first.Timestamp.Equal(second.Timestamp) {
		t.Error("expected the cached result returned verbatim")
	}
}

func TestService_Analyze_NoFindings(t *testing.T) {
	svc := newTestService(&fakeProvider{completion: `{"fallacies": []}`})

	result, err := svc.Analyze(context.Background(), "clean text")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Fallacies == nil || len(result.Fallacies) != 0 {
		t.Errorf("expected empty non-nil findings, got %v", result.Fallacies)
	}
}

func TestService_Analyze_ModelError(t *testing.T) {
	svc := newTestService(&fakeProvider{completeErr: errors.New("upstream 500")})

	_, err := svc.Analyze(context.Background(), "text")
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed, got %v", err)
	}
}

func TestService_Analyze_UnparsableResponse(t *testing.T) {
	svc := newTestService(&fakeProvider{completion: "I cannot answer that."})

	_, err := svc.Analyze(context.Background(), "text")
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed for unparsable output, got %v", err)
	}
}

func TestService_AnalyzeStream_FinalCached(t *testing.T) {
	obj := `{"fallacy": {"type": "AD_HOMINEM", "description": "d", "startIndex": 0, "endIndex": 4, "explanation": "e", "confidence": 0.8}}`
	provider := &fakeProvider{deltas: []string{obj[:20], obj[20:]}}
	// A long batch interval suppresses intermediates; only the final arrives
	svc := newTestService(provider, WithBatchInterval(time.Hour))
	ctx := context.Background()

	var results []*model.AnalysisResult
	for result, err := range svc.AnalyzeStream(ctx, "some text", false) {
		if err != nil {
			t.Fatalf("stream yielded error: %v", err)
		}
		results = append(results, result)
	}

	if len(results) != 1 {
		t.Fatalf("expected only the final snapshot, got %d", len(results))
	}
	final := results[0]
	if !final.IsFinalResult {
		t.Error("expected IsFinalResult set")
	}
	if final.AnalysisID != "final" {
		t.Errorf("expected analysisId final, got %s", final.AnalysisID)
	}
	if len(final.Fallacies) != 1 {
		t.Errorf("expected 1 finding, got %d", len(final.Fallacies))
	}
	if !provider.closed.Load() {
		t.Error("expected upstream stream closed")
	}

	// A second streaming run for the same text is served from cache
	var cached []*model.AnalysisResult
	for result, err := range svc.AnalyzeStream(ctx, "some text", false) {
		if err != nil {
			t.Fatalf("cached stream yielded error: %v", err)
		}
		cached = append(cached, result)
	}
	if got := provider.streamCalls.Load(); got != 1 {
		t.Errorf("expected 1 model stream for identical text, got %d", got)
	}
	if len(cached) != 1 || !cached[0].IsFinalResult {
		t.Error("expected a single final snapshot from cache")
	}
}

func TestService_AnalyzeStream_SkipCache(t *testing.T) {
	provider := &fakeProvider{deltas: []string{""}}
	svc := newTestService(provider, WithBatchInterval(time.Hour))
	ctx := context.Background()

	for range 2 {
		for _, err := range svc.AnalyzeStream(ctx, "same text", true) {
			if err != nil {
				t.Fatalf("stream yielded error: %v", err)
			}
		}
	}
	if got := provider.streamCalls.Load(); got != 2 {
		t.Errorf("expected skipCache to bypass the read path, got %d streams", got)
	}
}

func TestService_AnalyzeStream_ConsumerBreak(t *testing.T) {
	obj1 := `{"fallacy": {"type": "AD_HOMINEM", "description": "d", "startIndex": 0, "endIndex": 4, "explanation": "e", "confidence": 0.8}}`
	obj2 := `{"fallacy": {"type": "STRAW_MAN", "description": "d", "startIndex": 9, "endIndex": 15, "explanation": "e", "confidence": 0.6}}`
	provider := &fakeProvider{deltas: []string{obj1, obj2}}
	// Zero-delay batching so every ingested finding emits a snapshot
	svc := newTestService(provider, WithBatchInterval(time.Nanosecond))
	ctx := context.Background()

	sawFinal := false
	for result, err := range svc.AnalyzeStream(ctx, "some text", false) {
		if err != nil {
			t.Fatalf("stream yielded error: %v", err)
		}
		if result.IsFinalResult {
			sawFinal = true
		}
		break
	}

	if sawFinal {
		t.Error("breaking the range must suppress the final snapshot")
	}
	if !provider.closed.Load() {
		t.Error("expected upstream stream closed on cancellation")
	}

	// Nothing was cached: the next stream invokes the model again
	for range svc.AnalyzeStream(ctx, "some text", false) {
	}
	if got := provider.streamCalls.Load(); got != 2 {
		t.Errorf("expected cancelled analysis left nothing cached, got %d streams", got)
	}
}

func TestService_AnalyzeStream_ContextCancelled(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"partial"}}
	svc := newTestService(provider, WithBatchInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var yields int
	for _, err := range svc.AnalyzeStream(ctx, "some text", true) {
		if err != nil {
			t.Fatalf("cancellation must not surface as an error, got %v", err)
		}
		yields++
	}
	if yields != 0 {
		t.Errorf("expected no snapshots after cancellation, got %d", yields)
	}
	if !provider.closed.Load() {
		t.Error("expected upstream stream closed")
	}
}

func TestService_AnalyzeStream_UpstreamError(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"partial"}, streamErr: errors.New("connection reset")}
	svc := newTestService(provider, WithBatchInterval(time.Hour))
	ctx := context.Background()

	var got error
	for _, err := range svc.AnalyzeStream(ctx, "some text", false) {
		if err != nil {
			got = err
		}
	}
	if !errors.Is(got, ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed, got %v", got)
	}

	// The failure must not have poisoned the cache
	for _, err := range svc.AnalyzeStream(ctx, "some text", false) {
		if !errors.Is(err, ErrAnalysisFailed) {
			t.Errorf("expected second attempt to reach the model, got %v", err)
		}
	}
	if calls := provider.streamCalls.Load(); calls != 2 {
		t.Errorf("expected 2 model streams, got %d", calls)
	}
}
