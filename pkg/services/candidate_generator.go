package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/models"
)

// typeFamily buckets column data types for compatibility checks. Columns
// whose families differ never become candidates, regardless of naming.
type typeFamily string

const (
	familyNumeric  typeFamily = "numeric"
	familyText     typeFamily = "text"
	familyTemporal typeFamily = "temporal"
	familyBoolean  typeFamily = "boolean"
	familyUUID     typeFamily = "uuid"
	familyBinary   typeFamily = "binary"
	familyOther    typeFamily = "other"
)

var typeFamilies = map[string]typeFamily{
	// Numeric types
	"integer": familyNumeric, "int": familyNumeric, "int2": familyNumeric,
	"int4": familyNumeric, "int8": familyNumeric, "bigint": familyNumeric,
	"smallint": familyNumeric, "serial": familyNumeric, "bigserial": familyNumeric,
	"numeric": familyNumeric, "decimal": familyNumeric, "real": familyNumeric,
	"double precision": familyNumeric, "float": familyNumeric,
	"float4": familyNumeric, "float8": familyNumeric, "number": familyNumeric,
	// Text types
	"text": familyText, "varchar": familyText, "char": familyText,
	"character": familyText, "character varying": familyText,
	"nvarchar": familyText, "nchar": familyText, "string": familyText,
	// Temporal types
	"timestamp": familyTemporal, "timestamptz": familyTemporal,
	"date": familyTemporal, "time": familyTemporal, "timetz": familyTemporal,
	"datetime": familyTemporal, "datetime2": familyTemporal, "interval": familyTemporal,
	// Boolean
	"boolean": familyBoolean, "bool": familyBoolean,
	// UUID
	"uuid": familyUUID, "uniqueidentifier": familyUUID,
	// Binary/LOB
	"bytea": familyBinary, "blob": familyBinary, "binary": familyBinary,
	"varbinary": familyBinary,
}

// normalizeType lowercases a declared type and strips length qualifiers
// ("VARCHAR(40)") and array suffixes.
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if idx := strings.Index(t, "("); idx > 0 {
		t = t[:idx]
	}
	t = strings.TrimSuffix(t, "[]")
	return t
}

func familyOf(dataType string) typeFamily {
	if f, ok := typeFamilies[normalizeType(dataType)]; ok {
		return f
	}
	return familyOther
}

// areTypeFamiliesCompatible reports whether two columns can plausibly hold
// the same values. UUID and text are mutually compatible because identifiers
// are frequently stored as strings on one side.
func areTypeFamiliesCompatible(a, b string) bool {
	fa, fb := familyOf(a), familyOf(b)
	if fa == familyOther || fb == familyOther {
		return false
	}
	if fa == fb {
		return true
	}
	if (fa == familyUUID && fb == familyText) || (fa == familyText && fb == familyUUID) {
		return true
	}
	return false
}

// identifierSuffixes mark identifier-style columns for the synonym and
// priority heuristics.
var identifierSuffixes = []string{"_id", "_no", "_num", "_number", "_code", "_key", "_sku"}

func isIdentifierStyle(name string) bool {
	lower := strings.ToLower(name)
	if lower == "id" || lower == "sku" {
		return true
	}
	for _, suffix := range identifierSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// identifierBase strips the identifier suffix from a column name, returning
// the business word it identifies ("material_no" -> "material").
func identifierBase(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range identifierSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSuffix(lower, suffix)
		}
	}
	return lower
}

// auditFieldNames are temporal bookkeeping columns matched by heuristic (d).
var auditFieldNames = map[string]bool{
	"created_at": true, "updated_at": true, "modified_at": true,
	"deleted_at": true, "created_on": true, "updated_on": true,
	"created_date": true, "updated_date": true, "change_date": true,
	"last_modified": true, "valid_from": true, "valid_to": true,
}

func isAuditField(name string) bool {
	return auditFieldNames[strings.ToLower(name)]
}

// CandidateGenerator produces unscored relationship candidates between
// column pairs using naming-pattern heuristics and type compatibility
// checks. Duplicates across heuristics are permitted; deduplication is
// deferred to the prioritizer.
type CandidateGenerator interface {
	Generate(catalog *models.Catalog) []*models.Candidate
}

type candidateGenerator struct {
	opts   *PipelineOptions
	logger *zap.Logger
}

// NewCandidateGenerator creates a new candidate generator.
func NewCandidateGenerator(opts *PipelineOptions, logger *zap.Logger) CandidateGenerator {
	return &candidateGenerator{
		opts:   opts,
		logger: logger.Named("candidate-generator"),
	}
}

var _ CandidateGenerator = (*candidateGenerator)(nil)

// Generate walks every column pair across distinct tables and applies the
// heuristics in priority order:
//
//	(a) exact name equality with compatible type family -> MATCHES
//	(b) FK naming convention (<entity>_id against <entity>s) -> REFERENCES
//	(c) domain synonym base with identifier suffix on both sides -> SEMANTIC_REFERENCE
//	(d) audit/temporal field naming -> TEMPORAL
//
// The first heuristic that fires wins for a given column pair.
func (g *candidateGenerator) Generate(catalog *models.Catalog) []*models.Candidate {
	tables := catalog.AllTables()
	var candidates []*models.Candidate

	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			candidates = append(candidates, g.generateForTablePair(tables[i], tables[j])...)
		}
	}

	g.logger.Info("candidate generation complete",
		zap.Int("tables", len(tables)),
		zap.Int("candidates", len(candidates)))

	return candidates
}

func (g *candidateGenerator) generateForTablePair(a, b *models.Table) []*models.Candidate {
	var out []*models.Candidate

	for _, colA := range a.Columns {
		for _, colB := range b.Columns {
			if !areTypeFamiliesCompatible(colA.DataType, colB.DataType) {
				continue
			}
			if c := g.matchColumnPair(a, colA, b, colB); c != nil {
				out = append(out, c)
			}
		}
	}

	// FK convention is directional: check both orientations at table level.
	out = append(out, g.fkConventionCandidates(a, b)...)
	out = append(out, g.fkConventionCandidates(b, a)...)

	return out
}

// matchColumnPair applies the symmetric heuristics (a), (c), (d).
func (g *candidateGenerator) matchColumnPair(ta *models.Table, ca *models.Column, tb *models.Table, cb *models.Column) *models.Candidate {
	nameA := strings.ToLower(ca.Name)
	nameB := strings.ToLower(cb.Name)

	// (a) exact name equality
	if nameA == nameB {
		return g.newCandidate(ta, ca, tb, cb, models.RelTypeMatches, ConfidenceExactNameMatch,
			models.OriginPattern,
			fmt.Sprintf("columns share the name %q with compatible types (%s, %s)", ca.Name, ca.DataType, cb.DataType))
	}

	// (c) domain synonym set membership with identifier suffix on both sides
	if isIdentifierStyle(nameA) && isIdentifierStyle(nameB) {
		baseA, baseB := identifierBase(nameA), identifierBase(nameB)
		conceptA := g.opts.synonymConcept(baseA)
		if conceptA >= 0 && (conceptA == g.opts.synonymConcept(baseB) || baseA == baseB) {
			return g.newCandidate(ta, ca, tb, cb, models.RelTypeSemanticReference, ConfidenceDomainSynonym,
				models.OriginDomain,
				fmt.Sprintf("identifier bases %q and %q denote the same business concept", baseA, baseB))
		}
		if baseA == baseB {
			return g.newCandidate(ta, ca, tb, cb, models.RelTypeSemanticReference, ConfidenceDomainSynonym,
				models.OriginPattern,
				fmt.Sprintf("identifier columns share the base %q under different suffixes", baseA))
		}
	}

	// (d) audit/temporal field naming
	if isAuditField(nameA) && isAuditField(nameB) && familyOf(ca.DataType) == familyTemporal {
		return g.newCandidate(ta, ca, tb, cb, models.RelTypeTemporal, ConfidenceTemporalPattern,
			models.OriginPattern,
			fmt.Sprintf("audit fields %q and %q track record lifecycle timestamps", ca.Name, cb.Name))
	}

	return nil
}

// fkConventionCandidates applies heuristic (b): a column named <entity>_id
// in src referencing a table named like the pluralized entity in dst.
func (g *candidateGenerator) fkConventionCandidates(src, dst *models.Table) []*models.Candidate {
	var out []*models.Candidate

	dstName := strings.ToLower(dst.Name)
	for _, col := range src.Columns {
		lower := strings.ToLower(col.Name)
		if !strings.HasSuffix(lower, "_id") {
			continue
		}
		entity := strings.TrimSuffix(lower, "_id")
		if entity == "" {
			continue
		}

		if dstName != entity && dstName != inflection.Plural(entity) {
			continue
		}

		target := findPKStyleColumn(dst, entity)
		if target == nil {
			continue
		}
		if !areTypeFamiliesCompatible(col.DataType, target.DataType) {
			continue
		}

		out = append(out, g.newCandidate(src, col, dst, target, models.RelTypeReferences, ConfidenceFKConvention,
			models.OriginPattern,
			fmt.Sprintf("%s.%s follows the foreign-key convention for table %s", src.Name, col.Name, dst.Name)))
	}

	return out
}

// findPKStyleColumn picks the column a foreign key would reference: "id",
// "<entity>_id", or the table's only identifier-style column.
func findPKStyleColumn(table *models.Table, entity string) *models.Column {
	var identifier *models.Column
	identifierCount := 0

	for _, col := range table.Columns {
		lower := strings.ToLower(col.Name)
		if lower == "id" || lower == entity+"_id" {
			return col
		}
		if isIdentifierStyle(lower) {
			identifier = col
			identifierCount++
		}
	}

	if identifierCount == 1 {
		return identifier
	}
	return nil
}

func (g *candidateGenerator) newCandidate(
	ta *models.Table, ca *models.Column,
	tb *models.Table, cb *models.Column,
	relType models.RelationshipType,
	confidence float64,
	origin models.CandidateOrigin,
	evidence string,
) *models.Candidate {
	return &models.Candidate{
		ID:           uuid.New(),
		SourceSchema: ta.SchemaName,
		SourceTable:  ta.Name,
		SourceColumn: ca.Name,
		TargetSchema: tb.SchemaName,
		TargetTable:  tb.Name,
		TargetColumn: cb.Name,
		Type:         relType,
		Confidence:   confidence,
		Origin:       origin,
		Evidence:     evidence,
	}
}
