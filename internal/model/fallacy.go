package model

import (
	"fmt"
	"time"
)

// Fallacy represents a single detected logical fallacy: a typed, located
// annotation over a region of the analyzed text.
type Fallacy struct {
	Type        FallacyType `json:"type"`        // Fallacy classification
	Description string      `json:"description"` // Brief, specific description
	StartIndex  int         `json:"startIndex"`  // Span start (inclusive) in the input text
	EndIndex    int         `json:"endIndex"`    // Span end (exclusive) in the input text
	Explanation string      `json:"explanation"` // Explanation referencing the specific text
	Confidence  float64     `json:"confidence"`  // Model confidence in [0,1]
}

// FallacyType classifies the kind of logical fallacy
type FallacyType string

const (
	AdHominem           FallacyType = "AD_HOMINEM"           // Attack on the person rather than their argument
	StrawMan            FallacyType = "STRAW_MAN"            // Misrepresenting an opponent's position
	FalseEquivalence    FallacyType = "FALSE_EQUIVALENCE"    // Invalid comparison between different things
	AppealToAuthority   FallacyType = "APPEAL_TO_AUTHORITY"  // Using authority as proof without merit
	SlipperySlope       FallacyType = "SLIPPERY_SLOPE"       // Claiming one event leads to extreme consequences
	FalseDichotomy      FallacyType = "FALSE_DICHOTOMY"      // Presenting only two options when more exist
	CircularReasoning   FallacyType = "CIRCULAR_REASONING"   // Using conclusion to prove premises
	HastyGeneralization FallacyType = "HASTY_GENERALIZATION" // Drawing conclusions from insufficient evidence
	AppealToEmotion     FallacyType = "APPEAL_TO_EMOTION"    // Using emotions instead of logic
	RedHerring          FallacyType = "RED_HERRING"          // Introducing irrelevant information to distract
)

// FallacyTypes lists all supported categories in prompt order.
func FallacyTypes() []FallacyType {
	return []FallacyType{
		AdHominem,
		StrawMan,
		FalseEquivalence,
		AppealToAuthority,
		SlipperySlope,
		FalseDichotomy,
		CircularReasoning,
		HastyGeneralization,
		AppealToEmotion,
		RedHerring,
	}
}

// Key returns the identity key for deduplication. Two findings with the same
// key are the same logical finding even when their description or explanation
// text differs across partial emissions.
func (f Fallacy) Key() string {
	return fmt.Sprintf("%s-%d-%d", f.Type, f.StartIndex, f.EndIndex)
}

// AnalysisResult is one complete, self-describing snapshot of an in-progress
// or completed analysis. Snapshots are immutable once emitted: producers hand
// out fresh copies of the findings slice, never shared backing arrays.
type AnalysisResult struct {
	Text          string    `json:"text"`          // The analyzed input text
	Fallacies     []Fallacy `json:"fallacies"`     // Findings, sorted by confidence descending
	AnalysisID    string    `json:"analysisId"`    // Upstream completion ID, or "final"
	Timestamp     time.Time `json:"timestamp"`     // When the snapshot was produced
	IsFinalResult bool      `json:"isFinalResult"` // True only on the terminal snapshot of a stream
}
