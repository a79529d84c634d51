package detect

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/paralogia/internal/model"
)

// DefaultBatchInterval throttles snapshot emission: at most one snapshot per
// interval regardless of token arrival rate, trading latency for stability.
const DefaultBatchInterval = time.Second

// objectPattern matches balanced brace-delimited JSON object literals with
// one level of nested-brace tolerance. The model is instructed to emit one
// finding object per emission wrapped in a single envelope, so one nesting
// level is sufficient. The string alternatives keep braces inside quoted
// text, at either level, from unbalancing the match.
var objectPattern = regexp.MustCompile(`\{(?:[^{}"]|"(?:[^"\\]|\\.)*"|\{(?:[^{}"]|"(?:[^"\\]|\\.)*")*\})*\}`)

// findingEnvelope is the per-finding wire shape the model emits while
// streaming.
type findingEnvelope struct {
	Fallacy *model.Fallacy `json:"fallacy"`
}

// Extractor turns an ordered sequence of incremental text deltas into
// deduplicated, time-batched, confidence-sorted result snapshots. It owns
// only the transient buffer and dedup set for one active analysis; both are
// discarded with the extractor when the analysis terminates.
type Extractor struct {
	text     string
	interval time.Duration
	now      func() time.Time

	buf      string
	seen     map[string]struct{}
	findings []model.Fallacy // Discovery order; ties stay stable through sorting
	pending  int
	lastEmit time.Time
}

// NewExtractor creates an extractor for one analysis of text.
func NewExtractor(text string, interval time.Duration) *Extractor {
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	e := &Extractor{
		text:     text,
		interval: interval,
		now:      time.Now,
		seen:     make(map[string]struct{}),
	}
	e.lastEmit = e.now()
	return e
}

// Ingest appends one delta to the accumulation buffer and consumes every
// structurally balanced object found. Balanced objects are removed from the
// buffer whether or not they parse, so the buffer cannot grow unbounded on
// persistently malformed fragments. Objects that parse but repeat an already
// seen identity key (type, startIndex, endIndex) are consumed without being
// re-added.
func (e *Extractor) Ingest(delta string) {
	if delta == "" {
		return
	}
	e.buf += delta

	matches := objectPattern.FindAllStringIndex(e.buf, -1)
	if len(matches) == 0 {
		return
	}

	var rest strings.Builder
	last := 0
	for _, m := range matches {
		rest.WriteString(e.buf[last:m[0]])
		last = m[1]
		e.consume(e.buf[m[0]:m[1]])
	}
	rest.WriteString(e.buf[last:])
	e.buf = rest.String()
}

// consume parses one balanced object. Parse failures and objects without the
// finding envelope are silently dropped; they are presumed malformed output,
// not errors.
func (e *Extractor) consume(match string) {
	var env findingEnvelope
	if err := json.Unmarshal([]byte(match), &env); err != nil || env.Fallacy == nil {
		return
	}

	key := env.Fallacy.Key()
	if _, dup := e.seen[key]; dup {
		return
	}
	e.seen[key] = struct{}{}
	e.findings = append(e.findings, *env.Fallacy)
	e.pending++
}

// Snapshot returns an intermediate snapshot, or nil unless at least one
// pending finding exists and the batching interval has elapsed since the
// previous emission.
func (e *Extractor) Snapshot(analysisID string) *model.AnalysisResult {
	now := e.now()
	if e.pending == 0 || now.Sub(e.lastEmit) < e.interval {
		return nil
	}
	e.pending = 0
	e.lastEmit = now
	return e.result(analysisID, false, now)
}

// Final returns the terminal snapshot. Finalization is never throttled: the
// final snapshot is produced even when no findings exist and even when the
// last regular emission was recent. The buffer is released.
func (e *Extractor) Final(analysisID string) *model.AnalysisResult {
	e.buf = ""
	e.pending = 0
	return e.result(analysisID, true, e.now())
}

// result builds a self-contained snapshot over a fresh copy of the running
// finding set, sorted by confidence descending with discovery-order ties.
func (e *Extractor) result(analysisID string, final bool, at time.Time) *model.AnalysisResult {
	fallacies := make([]model.Fallacy, len(e.findings))
	copy(fallacies, e.findings)
	sort.SliceStable(fallacies, func(i, j int) bool {
		return fallacies[i].Confidence > fallacies[j].Confidence
	})

	return &model.AnalysisResult{
		Text:          e.text,
		Fallacies:     fallacies,
		AnalysisID:    analysisID,
		Timestamp:     at.UTC(),
		IsFinalResult: final,
	}
}
