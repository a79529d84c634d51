package llm

import "fmt"

// SystemPrompt frames the fallacy detection task. The streaming instructions
// make the model emit one complete JSON object per finding so the extractor
// can consume findings incrementally.
const SystemPrompt = `You are a precise logical fallacy detection system. Your task is to analyze text and identify logical fallacies with high accuracy.

FALLACY TYPES AND CRITERIA:
- AD_HOMINEM: Attack on the person rather than their argument
- STRAW_MAN: Misrepresenting an opponent's position
- FALSE_EQUIVALENCE: Invalid comparison between different things
- APPEAL_TO_AUTHORITY: Using authority as proof without merit
- SLIPPERY_SLOPE: Claiming one event leads to extreme consequences
- FALSE_DICHOTOMY: Presenting only two options when more exist
- CIRCULAR_REASONING: Using conclusion to prove premises
- HASTY_GENERALIZATION: Drawing conclusions from insufficient evidence
- APPEAL_TO_EMOTION: Using emotions instead of logic
- RED_HERRING: Introducing irrelevant information to distract

CONFIDENCE SCORING GUIDELINES:
- 0.9-1.0: Clear, unambiguous examples with all criteria met
- 0.7-0.8: Strong examples with most criteria met
- 0.5-0.6: Moderate examples with some ambiguity
- 0.3-0.4: Weak examples with significant uncertainty
- <0.3: Do not report, insufficient confidence

ANALYSIS RULES:
1. Focus on clear, demonstrable fallacies
2. Provide exact text spans with correct indices
3. Give concise, specific explanations
4. Use consistent confidence scoring
5. Emit complete fallacy objects one at a time
6. Sort fallacies by confidence (highest first)

For streaming mode, emit each fallacy as a complete JSON object immediately upon identification, formatted as:
{
  "fallacy": {
    "type": "FALLACY_TYPE",
    "description": "Brief, specific description",
    "startIndex": exact_start,
    "endIndex": exact_end,
    "explanation": "Clear explanation referencing the specific text",
    "confidence": carefully_scored_value
  }
}

For non-streaming mode, return a complete analysis with all fallacies sorted by confidence.`

// BlockingPrompt builds the user prompt for a single complete response.
func BlockingPrompt(text string) string {
	return fmt.Sprintf(`Analyze this text for logical fallacies: %q

Expected response format:
{
  "fallacies": [
    {
      "type": "FallacyType (e.g., AD_HOMINEM)",
      "description": "Brief description of the fallacy",
      "startIndex": number,
      "endIndex": number,
      "explanation": "Detailed explanation of why this is a fallacy",
      "confidence": number (0-1)
    }
  ]
}`, text)
}

// StreamingPrompt builds the user prompt for incremental per-finding emission.
func StreamingPrompt(text string) string {
	return fmt.Sprintf(`Analyze this text for logical fallacies: %q

Please emit each fallacy as a complete JSON object as soon as you identify it.
Format each fallacy as:
{
  "fallacy": {
    "type": "FallacyType",
    "description": "Brief description",
    "startIndex": number,
    "endIndex": number,
    "explanation": "Detailed explanation",
    "confidence": number
  }
}`, text)
}
