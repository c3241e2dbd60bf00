package services

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/models"
)

// ColumnRole classifies a column for deduplication priority.
type ColumnRole string

const (
	RoleDirectIdentifier       ColumnRole = "direct_identifier"
	RoleHierarchicalIdentifier ColumnRole = "hierarchical_identifier"
	RoleCodeField              ColumnRole = "code_field"
	RoleOther                  ColumnRole = "other"
)

// hierarchicalPrefixes mark identifiers that qualify another identifier
// ("parent_material_id") rather than naming the row itself.
var hierarchicalPrefixes = []string{"parent_", "root_", "hier_", "super_", "top_"}

// ClassifyColumnRole buckets a column name for the priority table. A
// direct, unprefixed identifier outranks a hierarchical identifier carrying
// a textual prefix, which outranks a generic code field.
func ClassifyColumnRole(name string) ColumnRole {
	lower := strings.ToLower(name)

	for _, prefix := range hierarchicalPrefixes {
		if strings.HasPrefix(lower, prefix) && isIdentifierStyle(strings.TrimPrefix(lower, prefix)) {
			return RoleHierarchicalIdentifier
		}
	}

	if strings.HasSuffix(lower, "_code") || lower == "code" {
		return RoleCodeField
	}

	if isIdentifierStyle(lower) {
		return RoleDirectIdentifier
	}

	return RoleOther
}

// columnRoleWeight maps a role onto the fixed priority scale.
func columnRoleWeight(name string) float64 {
	switch ClassifyColumnRole(name) {
	case RoleDirectIdentifier:
		return WeightDirectIdentifier
	case RoleHierarchicalIdentifier:
		return WeightHierarchicalIdentifier
	case RoleCodeField:
		return WeightCodeField
	default:
		return WeightOtherColumn
	}
}

// originRank orders origins for tie-breaking: explicit beats oracle beats
// everything else.
func originRank(origin models.CandidateOrigin) int {
	switch origin {
	case models.OriginExplicit:
		return 2
	case models.OriginOracle:
		return 1
	default:
		return 0
	}
}

// Deduplicator collapses multiple relationships between the same table pair
// down to the highest-value one.
type Deduplicator interface {
	Deduplicate(relationships []*models.Relationship) []*models.Relationship
}

type deduplicator struct {
	logger *zap.Logger
}

// NewDeduplicator creates a new relationship deduplicator.
func NewDeduplicator(logger *zap.Logger) Deduplicator {
	return &deduplicator{logger: logger.Named("deduplicator")}
}

var _ Deduplicator = (*deduplicator)(nil)

// scored pairs a relationship with its priority score and insertion index.
type scored struct {
	rel   *models.Relationship
	score float64
	index int
}

// Deduplicate groups relationships by unordered table pair and retains only
// the highest-scoring relationship per group, where the score is the
// source-column role weight plus confidence. Ties prefer explicit origin,
// then oracle origin, then earliest insertion order; the result is
// deterministic, never random. Discarded relationships survive only in logs.
func (d *deduplicator) Deduplicate(relationships []*models.Relationship) []*models.Relationship {
	groups := make(map[string][]scored)
	var order []string

	for i, rel := range relationships {
		key := pairKey(rel)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], scored{
			rel:   rel,
			score: columnRoleWeight(rel.SourceColumn) + rel.Confidence,
			index: i,
		})
	}

	retained := make([]*models.Relationship, 0, len(groups))
	discarded := 0

	for _, key := range order {
		group := groups[key]
		best := d.selectBest(group)
		retained = append(retained, best.rel)

		for _, s := range group {
			if s.rel == best.rel {
				continue
			}
			discarded++
			d.logger.Debug("discarded lower-priority relationship",
				zap.String("pair", key),
				zap.String("source_column", s.rel.SourceColumn),
				zap.String("target_column", s.rel.TargetColumn),
				zap.String("type", string(s.rel.Type)),
				zap.Float64("score", s.score),
				zap.String("evidence", s.rel.Evidence))
		}
	}

	d.logger.Info("deduplication complete",
		zap.Int("input", len(relationships)),
		zap.Int("retained", len(retained)),
		zap.Int("discarded", discarded))

	return retained
}

func (d *deduplicator) selectBest(group []scored) scored {
	best := group[0]
	for _, s := range group[1:] {
		if s.score > best.score {
			best = s
			continue
		}
		if s.score == best.score {
			if originRank(s.rel.Origin) > originRank(best.rel.Origin) {
				best = s
			} else if originRank(s.rel.Origin) == originRank(best.rel.Origin) && s.index < best.index {
				best = s
			}
		}
	}
	return best
}

// pairKey builds the unordered grouping key from schema-qualified canonical
// table names.
func pairKey(rel *models.Relationship) string {
	a := rel.SourceSchema + "." + rel.SourceTable
	b := rel.TargetSchema + "." + rel.TargetTable
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// SortForOutput orders relationships for stable presentation: descending
// confidence, then lexical table pair.
func SortForOutput(relationships []*models.Relationship) {
	sort.SliceStable(relationships, func(i, j int) bool {
		if relationships[i].Confidence != relationships[j].Confidence {
			return relationships[i].Confidence > relationships[j].Confidence
		}
		if relationships[i].SourceTable != relationships[j].SourceTable {
			return relationships[i].SourceTable < relationships[j].SourceTable
		}
		return relationships[i].TargetTable < relationships[j].TargetTable
	})
}
