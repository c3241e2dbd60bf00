package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/apperrors"
	"github.com/crosschema/reconcile-engine/pkg/models"
)

// RuleGenerationService is the service boundary for rule generation runs.
type RuleGenerationService interface {
	// GenerateRules runs the full pipeline for one request. An empty rule
	// set is a successful outcome; errors mean the run itself failed.
	GenerateRules(ctx context.Context, req *models.GenerateRulesRequest) (*models.GenerateRulesResponse, error)

	// DiscoverRelationships runs the pipeline up to and including
	// normalization and deduplication, without compiling rules.
	DiscoverRelationships(ctx context.Context, schemaNames []string, useOracle bool) ([]*models.Relationship, error)
}

type ruleGenerationService struct {
	catalog    CatalogProvider
	generator  CandidateGenerator
	enhancer   OracleEnhancer
	normalizer Normalizer
	dedup      Deduplicator
	compiler   RuleCompiler
	opts       *PipelineOptions
	logger     *zap.Logger
}

// NewRuleGenerationService wires the pipeline stages together. The enhancer
// may be nil when no oracle is configured; requests asking for enhancement
// then fall back to heuristic scores with a warning.
func NewRuleGenerationService(
	catalog CatalogProvider,
	generator CandidateGenerator,
	enhancer OracleEnhancer,
	normalizer Normalizer,
	dedup Deduplicator,
	compiler RuleCompiler,
	opts *PipelineOptions,
	logger *zap.Logger,
) RuleGenerationService {
	return &ruleGenerationService{
		catalog:    catalog,
		generator:  generator,
		enhancer:   enhancer,
		normalizer: normalizer,
		dedup:      dedup,
		compiler:   compiler,
		opts:       opts,
		logger:     logger.Named("rule-generation"),
	}
}

var _ RuleGenerationService = (*ruleGenerationService)(nil)

func (s *ruleGenerationService) GenerateRules(ctx context.Context, req *models.GenerateRulesRequest) (*models.GenerateRulesResponse, error) {
	started := time.Now()

	if len(req.SchemaNames) == 0 {
		return nil, fmt.Errorf("generate rules: %w", apperrors.ErrNoSchemas)
	}

	minConfidence := req.MinConfidence
	if minConfidence == 0 {
		minConfidence = s.opts.DefaultMinConfidence
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, fmt.Errorf("min_confidence must be in [0,1], got %v", minConfidence)
	}

	catalog, err := s.catalog.LoadSchemas(ctx, req.SchemaNames)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	explicitCandidates, explicitByID, err := s.explicitCandidates(catalog, req.ExplicitPairs)
	if err != nil {
		return nil, err
	}

	var candidates []*models.Candidate
	if len(req.ExplicitPairs) == 0 || req.AutoDiscoverAdditional {
		candidates = s.generator.Generate(catalog)
	}
	candidates = append(explicitCandidates, candidates...)

	if req.UseOracleEnhancement {
		candidates, err = s.enhance(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	relationships := s.dedup.Deduplicate(s.normalizer.Normalize(candidates))
	ruleset := s.compiler.Compile(relationships, explicitByID, minConfidence)

	elapsed := time.Since(started)
	s.logger.Info("rule generation complete",
		zap.String("kg_name", req.KGName),
		zap.Strings("schemas", req.SchemaNames),
		zap.Int("candidates", len(candidates)),
		zap.Int("relationships", len(relationships)),
		zap.Int("rules", len(ruleset.Rules)),
		zap.Duration("elapsed", elapsed))

	return &models.GenerateRulesResponse{
		RulesetID:        ruleset.RulesetID,
		Rules:            ruleset.Rules,
		RulesCount:       len(ruleset.Rules),
		GenerationTimeMs: elapsed.Milliseconds(),
	}, nil
}

func (s *ruleGenerationService) DiscoverRelationships(ctx context.Context, schemaNames []string, useOracle bool) ([]*models.Relationship, error) {
	if len(schemaNames) == 0 {
		return nil, fmt.Errorf("discover relationships: %w", apperrors.ErrNoSchemas)
	}

	catalog, err := s.catalog.LoadSchemas(ctx, schemaNames)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	candidates := s.generator.Generate(catalog)
	if useOracle {
		candidates, err = s.enhance(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	relationships := s.dedup.Deduplicate(s.normalizer.Normalize(candidates))
	SortForOutput(relationships)
	return relationships, nil
}

func (s *ruleGenerationService) enhance(ctx context.Context, candidates []*models.Candidate) ([]*models.Candidate, error) {
	if s.enhancer == nil {
		s.logger.Warn("oracle enhancement requested but no oracle is configured, keeping heuristic scores")
		return candidates, nil
	}
	enhanced, err := s.enhancer.Enhance(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("oracle enhancement: %w", err)
	}
	return enhanced, nil
}

// explicitCandidates converts operator-declared pairs into explicit-origin
// candidates, one per aligned column position so each column pairing is
// visible to downstream stages. The returned map keys every candidate ID
// back to its pair so the compiler can restore the full column lists.
func (s *ruleGenerationService) explicitCandidates(catalog *models.Catalog, pairs []models.ExplicitPair) ([]*models.Candidate, map[uuid.UUID]*models.ExplicitPair, error) {
	if len(pairs) == 0 {
		return nil, nil, nil
	}

	candidates := make([]*models.Candidate, 0, len(pairs))
	byID := make(map[uuid.UUID]*models.ExplicitPair)

	for i := range pairs {
		pair := &pairs[i]
		if len(pair.SourceColumns) == 0 || len(pair.SourceColumns) != len(pair.TargetColumns) {
			return nil, nil, fmt.Errorf("explicit pair %s -> %s: source and target column lists must be non-empty and the same length",
				pair.SourceTable, pair.TargetTable)
		}
		if pair.MatchType != "" && !models.IsValidMatchType(pair.MatchType) {
			return nil, nil, fmt.Errorf("explicit pair %s -> %s: unknown match type %q",
				pair.SourceTable, pair.TargetTable, pair.MatchType)
		}

		sourceSchema := s.schemaOfTable(catalog, pair.SourceTable)
		targetSchema := s.schemaOfTable(catalog, pair.TargetTable)

		for j := range pair.SourceColumns {
			c := &models.Candidate{
				ID:           uuid.New(),
				SourceSchema: sourceSchema,
				SourceTable:  pair.SourceTable,
				SourceColumn: pair.SourceColumns[j],
				TargetSchema: targetSchema,
				TargetTable:  pair.TargetTable,
				TargetColumn: pair.TargetColumns[j],
				Type:         models.RelTypeMatches,
				Confidence:   ConfidenceExplicitPair,
				Origin:       models.OriginExplicit,
				Evidence:     "operator-declared column pairing",
			}
			candidates = append(candidates, c)
			byID[c.ID] = pair
		}
	}

	return candidates, byID, nil
}

// schemaOfTable locates the schema holding the named table. Explicit pairs
// identify tables by name only; an unknown table yields an empty schema and
// a warning rather than a failed run, since the operator may be pairing a
// table outside the loaded schemas.
func (s *ruleGenerationService) schemaOfTable(catalog *models.Catalog, table string) string {
	canonical := s.normalizer.CanonicalTableName(table)
	for _, schema := range catalog.Schemas {
		for _, t := range schema.Tables {
			if s.normalizer.CanonicalTableName(t.Name) == canonical {
				return schema.Name
			}
		}
	}
	s.logger.Warn("explicit pair references a table outside the loaded schemas", zap.String("table", table))
	return ""
}
