package detect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/paralogia/internal/cache"
	"github.com/ppiankov/paralogia/internal/llm"
	"github.com/ppiankov/paralogia/internal/model"
)

// ErrAnalysisFailed is the generic analysis failure surfaced to callers.
// Upstream model detail is suppressed into logs; no partial or garbage
// result is cached or returned alongside it.
var ErrAnalysisFailed = errors.New("failed to analyze text")

// finalAnalysisID marks the terminal snapshot of a stream.
const finalAnalysisID = "final"

// Service orchestrates fallacy analysis: cache short-circuit, model
// invocation (blocking or streaming), extraction, and cache write-through.
type Service struct {
	provider llm.Provider
	cache    *cache.Service
	log      *log.Logger

	interval time.Duration // Snapshot batching window
	ttl      time.Duration // Analysis result cache TTL
}

// Option configures a Service.
type Option func(*Service)

// WithBatchInterval overrides the snapshot batching window.
func WithBatchInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// WithTTL overrides the analysis result cache TTL.
func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// NewService creates an analysis service.
func NewService(provider llm.Provider, cacheSvc *cache.Service, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		cache:    cacheSvc,
		log:      logger,
		interval: DefaultBatchInterval,
		ttl:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// blockingResponse is the wire shape of a complete model answer.
type blockingResponse struct {
	Fallacies []model.Fallacy `json:"fallacies"`
}

// Analyze performs a blocking analysis. A cache hit short-circuits the model
// entirely; a miss invokes the model once, sorts the findings by confidence
// descending, writes the result through to the cache, and returns it.
func (s *Service) Analyze(ctx context.Context, text string) (*model.AnalysisResult, error) {
	key := cache.AnalysisKey(text)
	if cached, ok := cache.Get[model.AnalysisResult](ctx, s.cache, key); ok {
		s.log.Debug("cache hit for blocking analysis")
		return &cached, nil
	}

	completion, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System: llm.SystemPrompt,
		User:   llm.BlockingPrompt(text),
	})
	if err != nil {
		s.log.Error("model completion failed", "error", err)
		return nil, ErrAnalysisFailed
	}

	var resp blockingResponse
	if err := json.Unmarshal([]byte(completion.Content), &resp); err != nil {
		s.log.Error("model response unparsable", "error", err)
		return nil, ErrAnalysisFailed
	}

	fallacies := resp.Fallacies
	if fallacies == nil {
		fallacies = []model.Fallacy{}
	}
	sort.SliceStable(fallacies, func(i, j int) bool {
		return fallacies[i].Confidence > fallacies[j].Confidence
	})

	result := &model.AnalysisResult{
		Text:       text,
		Fallacies:  fallacies,
		AnalysisID: completion.ID,
		Timestamp:  time.Now().UTC(),
	}

	if err := cache.Set(ctx, s.cache, key, *result, cache.Config{TTL: s.ttl}); err != nil {
		s.log.Error("cache analysis result failed", "error", err)
	}
	return result, nil
}

// AnalyzeStream performs a streaming analysis, yielding snapshots whose
// finding sets only grow, terminated by exactly one snapshot with
// IsFinalResult set. Unless skipCache is set, a cache hit yields a single
// re-finalized element with no model call. The consumer breaking out of the
// range is the cancellation signal: the upstream stream is closed, no final
// snapshot is emitted, and nothing is cached.
func (s *Service) AnalyzeStream(ctx context.Context, text string, skipCache bool) iter.Seq2[*model.AnalysisResult, error] {
	return func(yield func(*model.AnalysisResult, error) bool) {
		key := cache.AnalysisKey(text)
		if !skipCache {
			if cached, ok := cache.Get[model.AnalysisResult](ctx, s.cache, key); ok {
				s.log.Debug("cache hit for streaming analysis")
				cached.IsFinalResult = true
				yield(&cached, nil)
				return
			}
		}

		stream, err := s.provider.Stream(ctx, llm.CompletionRequest{
			System: llm.SystemPrompt,
			User:   llm.StreamingPrompt(text),
		})
		if err != nil {
			s.log.Error("model stream start failed", "error", err)
			yield(nil, ErrAnalysisFailed)
			return
		}
		defer stream.Close()

		extractor := NewExtractor(text, s.interval)
		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				// Cancellation is not an error and is not reported as one.
				if ctx.Err() != nil {
					return
				}
				s.log.Error("model stream failed", "error", err)
				yield(nil, ErrAnalysisFailed)
				return
			}

			extractor.Ingest(delta.Content)
			if snapshot := extractor.Snapshot(delta.ID); snapshot != nil {
				if !yield(snapshot, nil) {
					return
				}
			}
		}

		final := extractor.Final(finalAnalysisID)
		if err := cache.Set(ctx, s.cache, key, *final, cache.Config{TTL: s.ttl}); err != nil {
			s.log.Error("cache final streaming result failed", "error", err)
		}
		yield(final, nil)
	}
}
