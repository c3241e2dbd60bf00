package services

import (
	"strings"
	"time"
)

// Heuristic confidence scores assigned by the candidate generator.
const (
	ConfidenceExactNameMatch   = 0.95 // identical names, compatible type family
	ConfidenceFKConvention     = 0.85 // <entity>_id pointing at <entity>s
	ConfidenceDomainSynonym    = 0.75 // synonym-set base with identifier suffix
	ConfidenceTemporalPattern  = 0.70 // audit/temporal field naming
	ConfidenceExplicitPair     = 0.95 // operator-declared pair
)

// Column role priority weights for deduplication. A direct identifier
// outranks a hierarchical identifier carrying a textual prefix, which
// outranks a generic code field.
const (
	WeightDirectIdentifier       = 3.0
	WeightHierarchicalIdentifier = 2.0
	WeightCodeField              = 1.0
	WeightOtherColumn            = 0.5
)

// PipelineOptions is the immutable per-run configuration snapshot for the
// rule-generation pipeline. Concurrent runs with different options do not
// interfere; nothing here is process-wide state.
type PipelineOptions struct {
	// StoragePrefix is the inconsistent physical-naming prefix stripped
	// during identity normalization.
	StoragePrefix string

	// MasterEntities lists canonical names of master (reference/dimension)
	// entities. Masters are always the relationship target, never the source.
	MasterEntities map[string]bool

	// SynonymSets groups business vocabulary denoting the same concept.
	// Each inner slice is one concept.
	SynonymSets [][]string

	// AmbiguousThreshold is the confidence below which candidates are
	// forwarded to the oracle.
	AmbiguousThreshold float64

	// DefaultMinConfidence applies when a request omits min_confidence.
	DefaultMinConfidence float64

	// Oracle batching controls.
	OracleBatchSize    int
	OracleBatchTimeout time.Duration
}

// DefaultSynonymSets covers common cross-system vocabulary for the same
// business concept.
func DefaultSynonymSets() [][]string {
	return [][]string{
		{"material", "product", "item", "sku", "article"},
		{"customer", "client", "account", "buyer"},
		{"vendor", "supplier", "seller"},
		{"order", "purchase_order", "sales_order"},
		{"employee", "staff", "worker"},
		{"location", "site", "plant", "warehouse"},
	}
}

// DefaultPipelineOptions returns the baseline options used when the caller
// supplies none.
func DefaultPipelineOptions() *PipelineOptions {
	return &PipelineOptions{
		StoragePrefix:        "table_",
		MasterEntities:       map[string]bool{},
		SynonymSets:          DefaultSynonymSets(),
		AmbiguousThreshold:   0.80,
		DefaultMinConfidence: 0.70,
		OracleBatchSize:      20,
		OracleBatchTimeout:   60 * time.Second,
	}
}

// WithMasterEntities returns a copy of the options with the master-entity
// set replaced. Names are stored lowercase.
func (o *PipelineOptions) WithMasterEntities(names []string) *PipelineOptions {
	out := *o
	out.MasterEntities = make(map[string]bool, len(names))
	for _, n := range names {
		out.MasterEntities[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return &out
}

// synonymConcept returns the index of the synonym set containing word, or -1.
func (o *PipelineOptions) synonymConcept(word string) int {
	word = strings.ToLower(word)
	for i, set := range o.SynonymSets {
		for _, s := range set {
			if s == word {
				return i
			}
		}
	}
	return -1
}
