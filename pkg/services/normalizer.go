package services

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/models"
)

// Normalizer canonicalizes table identities and enforces the master-entity
// direction invariant: after normalization, no retained relationship has a
// master entity as its source.
type Normalizer interface {
	// Normalize converts scored candidates into audit-preserving
	// relationships. Inputs are never mutated.
	Normalize(candidates []*models.Candidate) []*models.Relationship

	// CanonicalTableName strips the inconsistent storage prefix from a
	// table identifier. Idempotent: normalizing an already-normalized name
	// returns it unchanged.
	CanonicalTableName(name string) string
}

type normalizer struct {
	opts   *PipelineOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewNormalizer creates a new direction and identity normalizer.
func NewNormalizer(opts *PipelineOptions, logger *zap.Logger) Normalizer {
	return &normalizer{
		opts:   opts,
		logger: logger.Named("normalizer"),
		now:    time.Now,
	}
}

var _ Normalizer = (*normalizer)(nil)

// CanonicalTableName strips the storage prefix, repeatedly if the prefix was
// stacked by inconsistent tooling, so the function is idempotent.
func (n *normalizer) CanonicalTableName(name string) string {
	canonical := strings.ToLower(strings.TrimSpace(name))
	if n.opts.StoragePrefix == "" {
		return canonical
	}
	for strings.HasPrefix(canonical, n.opts.StoragePrefix) && canonical != n.opts.StoragePrefix {
		canonical = strings.TrimPrefix(canonical, n.opts.StoragePrefix)
	}
	return canonical
}

// isMaster reports whether the canonical table name is a designated master
// (reference/dimension) entity.
func (n *normalizer) isMaster(canonicalName string) bool {
	return n.opts.MasterEntities[canonicalName]
}

// Normalize canonicalizes identities and flips any relationship whose
// source is a master entity while its target is not. Flips swap endpoints
// and columns and replace the type with its registered inverse; symmetric
// types are unchanged by inversion. Every flip is recorded on the output
// record for auditability.
func (n *normalizer) Normalize(candidates []*models.Candidate) []*models.Relationship {
	relationships := make([]*models.Relationship, 0, len(candidates))
	swapped := 0

	for _, c := range candidates {
		rel := &models.Relationship{
			ID:           c.ID,
			SourceSchema: c.SourceSchema,
			SourceTable:  n.CanonicalTableName(c.SourceTable),
			SourceColumn: c.SourceColumn,
			TargetSchema: c.TargetSchema,
			TargetTable:  n.CanonicalTableName(c.TargetTable),
			TargetColumn: c.TargetColumn,
			Type:         c.Type,
			Confidence:   models.ClampConfidence(c.Confidence),
			Origin:       c.Origin,
			Evidence:     c.Evidence,
			CreatedAt:    n.now(),
		}

		if n.shouldFlip(rel) {
			n.flip(rel)
			if rel.DirectionSwapped {
				swapped++
			}
		}

		// The type implies the correct bidirectional value; a mismatch is a
		// data-quality defect repaired here, not a valid state.
		rel.Bidirectional = rel.Type.CanonicalBidirectional()

		relationships = append(relationships, rel)
	}

	if swapped > 0 {
		n.logger.Info("direction normalization flipped relationships",
			zap.Int("swapped", swapped),
			zap.Int("total", len(relationships)))
	}

	return relationships
}

// shouldFlip reports whether the master-as-target invariant requires
// inverting this relationship. Master entities are reference data; other
// tables look up into them, so they are always the target.
func (n *normalizer) shouldFlip(rel *models.Relationship) bool {
	return n.isMaster(rel.SourceTable) && !n.isMaster(rel.TargetTable)
}

// flip inverts direction in place on the not-yet-published record: swap
// endpoints, swap columns, and replace the type with its registered
// inverse. An unrecognized type is passed through unchanged with a warning,
// never silently dropped.
func (n *normalizer) flip(rel *models.Relationship) {
	inverse, ok := rel.Type.Inverse()
	if !ok {
		n.logger.Warn("relationship type has no registered inverse, passing through",
			zap.String("type", string(rel.Type)),
			zap.String("source", rel.SourceTable+"."+rel.SourceColumn),
			zap.String("target", rel.TargetTable+"."+rel.TargetColumn))
		return
	}

	rel.OriginalSource = rel.SourceTable + "." + rel.SourceColumn
	rel.OriginalTarget = rel.TargetTable + "." + rel.TargetColumn

	rel.SourceSchema, rel.TargetSchema = rel.TargetSchema, rel.SourceSchema
	rel.SourceTable, rel.TargetTable = rel.TargetTable, rel.SourceTable
	rel.SourceColumn, rel.TargetColumn = rel.TargetColumn, rel.SourceColumn
	rel.Type = inverse
	rel.DirectionSwapped = true
}
