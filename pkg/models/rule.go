package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchType selects the comparison semantics a reconciliation rule uses.
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypeFuzzy    MatchType = "fuzzy"
	MatchTypeSemantic MatchType = "semantic"
)

// ValidMatchTypes contains all valid match type values.
var ValidMatchTypes = []MatchType{MatchTypeExact, MatchTypeFuzzy, MatchTypeSemantic}

// IsValidMatchType checks if the given match type is valid.
func IsValidMatchType(m MatchType) bool {
	for _, v := range ValidMatchTypes {
		if v == m {
			return true
		}
	}
	return false
}

// ValidationStatus grades how trustworthy a compiled rule is.
type ValidationStatus string

const (
	ValidationValid        ValidationStatus = "VALID"
	ValidationLikely       ValidationStatus = "LIKELY"
	ValidationUncertain    ValidationStatus = "UNCERTAIN"
	ValidationQuestionable ValidationStatus = "QUESTIONABLE"
)

// Confidence bands for validation status assignment.
const (
	ValidConfidenceBand     = 0.90
	LikelyConfidenceBand    = 0.75
	UncertainConfidenceBand = 0.60
)

// StatusForConfidence maps a confidence score onto its validation band.
func StatusForConfidence(confidence float64) ValidationStatus {
	switch {
	case confidence >= ValidConfidenceBand:
		return ValidationValid
	case confidence >= LikelyConfidenceBand:
		return ValidationLikely
	case confidence >= UncertainConfidenceBand:
		return ValidationUncertain
	default:
		return ValidationQuestionable
	}
}

// ReconciliationRule is an executable comparison specification locating
// matched and unmatched records between a source and a target table.
// Rules are immutable after creation.
type ReconciliationRule struct {
	RuleID           uuid.UUID        `json:"rule_id"`
	SourceSchema     string           `json:"source_schema"`
	SourceTable      string           `json:"source_table"`
	SourceColumns    []string         `json:"source_columns"`
	TargetSchema     string           `json:"target_schema"`
	TargetTable      string           `json:"target_table"`
	TargetColumns    []string         `json:"target_columns"`
	MatchType        MatchType        `json:"match_type"`
	Bidirectional    bool             `json:"bidirectional"`
	Confidence       float64          `json:"confidence"`
	Reasoning        string           `json:"reasoning"`
	ValidationStatus ValidationStatus `json:"validation_status"`
}

// RuleSet is the append-only ordered collection of rules produced by one
// pipeline run. Ordering is descending confidence with lexical
// (sourceTable, targetTable) tie-break for reproducibility.
type RuleSet struct {
	RulesetID   uuid.UUID             `json:"ruleset_id"`
	Rules       []*ReconciliationRule `json:"rules"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// ExplicitPair is an operator-declared column pairing. It enters the
// pipeline as an explicit-origin candidate and bypasses heuristic scoring.
type ExplicitPair struct {
	SourceTable   string    `json:"source_table"`
	SourceColumns []string  `json:"source_columns"`
	TargetTable   string    `json:"target_table"`
	TargetColumns []string  `json:"target_columns"`
	MatchType     MatchType `json:"match_type"`
	Bidirectional bool      `json:"bidirectional"`
}

// GenerateRulesRequest is the service-boundary input for one generation run.
type GenerateRulesRequest struct {
	SchemaNames            []string       `json:"schema_names"`
	KGName                 string         `json:"kg_name"`
	UseOracleEnhancement   bool           `json:"use_oracle_enhancement"`
	MinConfidence          float64        `json:"min_confidence"`
	ExplicitPairs          []ExplicitPair `json:"explicit_pairs,omitempty"`
	AutoDiscoverAdditional bool           `json:"auto_discover_additional"`
}

// GenerateRulesResponse reports the outcome of one generation run.
// A zero RulesCount with no error means nothing cleared the confidence
// bar, which is a valid result, not a failure.
type GenerateRulesResponse struct {
	RulesetID        uuid.UUID             `json:"ruleset_id"`
	Rules            []*ReconciliationRule `json:"rules"`
	RulesCount       int                   `json:"rules_count"`
	GenerationTimeMs int64                 `json:"generation_time_ms"`
}
