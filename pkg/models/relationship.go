package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType classifies how two columns relate across schemas.
// The set is closed; every directional type has a registered inverse.
type RelationshipType string

const (
	// Symmetric equivalence: both columns denote the same value space.
	RelTypeMatches RelationshipType = "MATCHES"

	// Directional foreign-key style reference and its inverse.
	RelTypeReferences   RelationshipType = "REFERENCES"
	RelTypeReferencedBy RelationshipType = "REFERENCED_BY"

	// Hierarchical containment pair.
	RelTypeContains    RelationshipType = "CONTAINS"
	RelTypeContainedBy RelationshipType = "CONTAINED_BY"

	// Ownership pair.
	RelTypeBelongsTo RelationshipType = "BELONGS_TO"
	RelTypeHas       RelationshipType = "HAS"

	// Synonym-based reference pair (same concept under different names).
	RelTypeSemanticReference    RelationshipType = "SEMANTIC_REFERENCE"
	RelTypeSemanticReferencedBy RelationshipType = "SEMANTIC_REFERENCED_BY"

	// Self-inverse classifications.
	RelTypeHierarchical RelationshipType = "HIERARCHICAL"
	RelTypeTemporal     RelationshipType = "TEMPORAL"
	RelTypeLookup       RelationshipType = "LOOKUP"
)

// inverseTypes registers the inverse of every known relationship type.
// Self-inverse types map to themselves.
var inverseTypes = map[RelationshipType]RelationshipType{
	RelTypeMatches:              RelTypeMatches,
	RelTypeReferences:           RelTypeReferencedBy,
	RelTypeReferencedBy:         RelTypeReferences,
	RelTypeContains:             RelTypeContainedBy,
	RelTypeContainedBy:          RelTypeContains,
	RelTypeBelongsTo:            RelTypeHas,
	RelTypeHas:                  RelTypeBelongsTo,
	RelTypeSemanticReference:    RelTypeSemanticReferencedBy,
	RelTypeSemanticReferencedBy: RelTypeSemanticReference,
	RelTypeHierarchical:         RelTypeHierarchical,
	RelTypeTemporal:             RelTypeTemporal,
	RelTypeLookup:               RelTypeLookup,
}

// Inverse returns the registered inverse of t. The second return value is
// false for unrecognized types; callers must pass those through unchanged
// rather than dropping them.
func (t RelationshipType) Inverse() (RelationshipType, bool) {
	inv, ok := inverseTypes[t]
	return inv, ok
}

// IsKnown reports whether t belongs to the closed type set.
func (t RelationshipType) IsKnown() bool {
	_, ok := inverseTypes[t]
	return ok
}

// bidirectionalTypes holds the types whose canonical bidirectional value is
// true: symmetric equivalence, the semantic-reference family, and the
// self-inverse classifications. Reference, containment, and ownership pairs
// are strictly directional.
var bidirectionalTypes = map[RelationshipType]bool{
	RelTypeMatches:              true,
	RelTypeSemanticReference:    true,
	RelTypeSemanticReferencedBy: true,
	RelTypeHierarchical:         true,
	RelTypeTemporal:             true,
	RelTypeLookup:               true,
}

// CanonicalBidirectional returns the bidirectional value implied by t.
// A stored value disagreeing with this is a data-quality defect and is
// repaired during normalization.
func (t RelationshipType) CanonicalBidirectional() bool {
	return bidirectionalTypes[t]
}

// CandidateOrigin records which step produced a candidate.
type CandidateOrigin string

const (
	OriginPattern  CandidateOrigin = "pattern"  // naming-pattern heuristic
	OriginDomain   CandidateOrigin = "domain"   // business-domain synonym set
	OriginOracle   CandidateOrigin = "oracle"   // semantic-matching oracle
	OriginExplicit CandidateOrigin = "explicit" // operator-declared pair
)

// Candidate is an unvalidated relationship proposal between two columns.
// Candidates are transient: they exist only within one pipeline run and are
// never mutated in place. Normalization produces new records so provenance
// stays traceable.
type Candidate struct {
	ID           uuid.UUID        `json:"id"`
	SourceSchema string           `json:"source_schema"`
	SourceTable  string           `json:"source_table"`
	SourceColumn string           `json:"source_column"`
	TargetSchema string           `json:"target_schema"`
	TargetTable  string           `json:"target_table"`
	TargetColumn string           `json:"target_column"`
	Type         RelationshipType `json:"relationship_type"`
	Confidence   float64          `json:"confidence"`
	Origin       CandidateOrigin  `json:"origin"`
	Evidence     string           `json:"evidence"`
}

// ClampConfidence bounds a confidence score to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Relationship is the normalized, audit-preserving output of one pipeline
// run. When direction normalization inverted a candidate, the original
// endpoints are preserved alongside the swap marker.
type Relationship struct {
	ID               uuid.UUID        `json:"id"`
	SourceSchema     string           `json:"source_schema"`
	SourceTable      string           `json:"source_table"`
	SourceColumn     string           `json:"source_column"`
	TargetSchema     string           `json:"target_schema"`
	TargetTable      string           `json:"target_table"`
	TargetColumn     string           `json:"target_column"`
	Type             RelationshipType `json:"relationship_type"`
	Confidence       float64          `json:"confidence"`
	Origin           CandidateOrigin  `json:"origin"`
	Evidence         string           `json:"evidence"`
	Bidirectional    bool             `json:"bidirectional"`
	DirectionSwapped bool             `json:"direction_swapped"`
	OriginalSource   string           `json:"original_source,omitempty"`
	OriginalTarget   string           `json:"original_target,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
