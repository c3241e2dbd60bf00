// Package prompts builds the prompts sent to the semantic-matching oracle.
package prompts

import (
	"fmt"
	"strings"
)

// CandidatePrompt provides candidate details for oracle scoring.
type CandidatePrompt struct {
	ID               string
	SourceTable      string
	SourceColumn     string
	SourceColumnType string
	TargetTable      string
	TargetColumn     string
	TargetColumnType string
	HeuristicType    string
	HeuristicScore   float64
	Evidence         string
}

// BuildSemanticMatchSystemMessage returns the system message for the oracle.
func BuildSemanticMatchSystemMessage() string {
	return `You are a database schema matching expert. Your task is to judge whether column pairs drawn from independently designed schemas refer to the same real-world concept, and how confidently.`
}

// BuildSemanticMatchPrompt creates the prompt for scoring a batch of
// ambiguous relationship candidates. The oracle returns a confidence and a
// short justification per candidate ID.
func BuildSemanticMatchPrompt(candidates []CandidatePrompt) string {
	var prompt strings.Builder

	prompt.WriteString("# Cross-Schema Column Match Scoring\n\n")
	prompt.WriteString("Score each candidate column pair below. The pairs were produced by naming heuristics and are ambiguous; your semantic judgment takes precedence over the heuristic score.\n\n")

	prompt.WriteString("## Candidates\n\n")
	for i, c := range candidates {
		prompt.WriteString(fmt.Sprintf("### Candidate %d: %s.%s → %s.%s\n",
			i+1, c.SourceTable, c.SourceColumn, c.TargetTable, c.TargetColumn))
		prompt.WriteString(fmt.Sprintf("- **ID**: %s\n", c.ID))
		if c.SourceColumnType != "" && c.TargetColumnType != "" {
			prompt.WriteString(fmt.Sprintf("- **Column types**: %s → %s\n", c.SourceColumnType, c.TargetColumnType))
		}
		prompt.WriteString(fmt.Sprintf("- **Heuristic classification**: %s (%.0f%%)\n", c.HeuristicType, c.HeuristicScore*100))
		if c.Evidence != "" {
			prompt.WriteString(fmt.Sprintf("- **Heuristic evidence**: %s\n", c.Evidence))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Scoring Guidelines\n\n")
	prompt.WriteString("**Score high (0.8-1.0) when**:\n")
	prompt.WriteString("- Both columns clearly denote the same business concept (e.g., material number vs product SKU)\n")
	prompt.WriteString("- Types are compatible and naming differences are vocabulary, not meaning\n\n")

	prompt.WriteString("**Score low (0.0-0.4) when**:\n")
	prompt.WriteString("- Names coincide but domains differ (e.g., order code vs country code)\n")
	prompt.WriteString("- One side is an attribute, the other an identifier\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `scores`: Array with one entry per candidate\n")
	prompt.WriteString("  - `candidate_id`: The candidate ID from above\n")
	prompt.WriteString("  - `confidence`: 0.0-1.0\n")
	prompt.WriteString("  - `relationship_type`: One of \"MATCHES\", \"REFERENCES\", \"SEMANTIC_REFERENCE\", \"TEMPORAL\", \"LOOKUP\"\n")
	prompt.WriteString("  - `reasoning`: Brief justification (1-2 sentences)\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "scores": [
    {
      "candidate_id": "abc-123",
      "confidence": 0.85,
      "relationship_type": "SEMANTIC_REFERENCE",
      "reasoning": "material_no and product_sku both identify sellable items; the vocabularies differ but the value spaces align."
    }
  ]
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}
