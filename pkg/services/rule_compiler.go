package services

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/models"
)

// RuleCompiler turns normalized relationships into an executable rule set.
type RuleCompiler interface {
	Compile(relationships []*models.Relationship, explicitByID map[uuid.UUID]*models.ExplicitPair, minConfidence float64) *models.RuleSet
}

type ruleCompiler struct {
	logger *zap.Logger
}

// NewRuleCompiler creates a new rule compiler.
func NewRuleCompiler(logger *zap.Logger) RuleCompiler {
	return &ruleCompiler{logger: logger.Named("rule_compiler")}
}

var _ RuleCompiler = (*ruleCompiler)(nil)

// Compile filters relationships by the confidence threshold, derives match
// semantics and validation status for the survivors, and packages them as an
// ordered rule set. Relationships exactly at the threshold are kept; the
// comparison is strictly-below for exclusion. explicitByID maps
// explicit-origin relationship IDs back to their declared pair so compiled
// rules carry the full column lists and the operator's match type.
func (c *ruleCompiler) Compile(relationships []*models.Relationship, explicitByID map[uuid.UUID]*models.ExplicitPair, minConfidence float64) *models.RuleSet {
	rules := make([]*models.ReconciliationRule, 0, len(relationships))
	excluded := 0

	for _, rel := range relationships {
		if rel.Confidence < minConfidence {
			excluded++
			c.logger.Debug("relationship below confidence threshold",
				zap.String("source", rel.SourceTable+"."+rel.SourceColumn),
				zap.String("target", rel.TargetTable+"."+rel.TargetColumn),
				zap.Float64("confidence", rel.Confidence),
				zap.Float64("min_confidence", minConfidence))
			continue
		}
		rules = append(rules, c.buildRule(rel, explicitByID[rel.ID]))
	}

	sortRules(rules)

	c.logger.Info("rule compilation complete",
		zap.Int("input", len(relationships)),
		zap.Int("rules", len(rules)),
		zap.Int("excluded", excluded),
		zap.Float64("min_confidence", minConfidence))

	return &models.RuleSet{
		RulesetID:   uuid.New(),
		Rules:       rules,
		GeneratedAt: time.Now().UTC(),
	}
}

func (c *ruleCompiler) buildRule(rel *models.Relationship, pair *models.ExplicitPair) *models.ReconciliationRule {
	rule := &models.ReconciliationRule{
		RuleID:           uuid.New(),
		SourceSchema:     rel.SourceSchema,
		SourceTable:      rel.SourceTable,
		SourceColumns:    []string{rel.SourceColumn},
		TargetSchema:     rel.TargetSchema,
		TargetTable:      rel.TargetTable,
		TargetColumns:    []string{rel.TargetColumn},
		MatchType:        matchTypeFor(rel.Type),
		Bidirectional:    rel.Bidirectional,
		Confidence:       rel.Confidence,
		Reasoning:        rel.Evidence,
		ValidationStatus: models.StatusForConfidence(rel.Confidence),
	}

	if pair != nil {
		// Operator-declared pairs carry the full multi-column alignment
		// and the requested comparison semantics.
		rule.SourceColumns = append([]string(nil), pair.SourceColumns...)
		rule.TargetColumns = append([]string(nil), pair.TargetColumns...)
		if rel.DirectionSwapped {
			rule.SourceColumns, rule.TargetColumns = rule.TargetColumns, rule.SourceColumns
		}
		if models.IsValidMatchType(pair.MatchType) {
			rule.MatchType = pair.MatchType
		}
		rule.Bidirectional = pair.Bidirectional
	}

	return rule
}

// matchTypeFor derives comparison semantics from the relationship type.
// Every inferred relationship compiles to exact comparison: even a
// semantic-reference link is between column meanings, not stored values, so
// the values themselves must still match exactly. Operators opt into fuzzy
// or semantic matching through explicit pairs.
func matchTypeFor(t models.RelationshipType) models.MatchType {
	return models.MatchTypeExact
}

// sortRules orders rules descending by confidence, breaking ties lexically
// on (sourceTable, targetTable) so two runs over the same input produce the
// same ordering.
func sortRules(rules []*models.ReconciliationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		if rules[i].SourceTable != rules[j].SourceTable {
			return rules[i].SourceTable < rules[j].SourceTable
		}
		return rules[i].TargetTable < rules[j].TargetTable
	})
}
