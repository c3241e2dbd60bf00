package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/llm"
	"github.com/crosschema/reconcile-engine/pkg/models"
	"github.com/crosschema/reconcile-engine/pkg/prompts"
	"github.com/crosschema/reconcile-engine/pkg/retry"
)

// OracleScore is one scored candidate returned by the semantic oracle.
type OracleScore struct {
	CandidateID uuid.UUID
	Confidence  float64
	Type        models.RelationshipType // empty when the oracle kept the heuristic type
	Reasoning   string
}

// CandidateScorer is the capability interface over the external semantic
// matching oracle. One call scores one bounded batch.
type CandidateScorer interface {
	ScoreCandidates(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error)
}

// llmCandidateScorer implements CandidateScorer on top of an LLM client.
type llmCandidateScorer struct {
	client llm.LLMClient
	logger *zap.Logger
}

// NewLLMCandidateScorer creates a CandidateScorer backed by an LLM client.
func NewLLMCandidateScorer(client llm.LLMClient, logger *zap.Logger) CandidateScorer {
	return &llmCandidateScorer{
		client: client,
		logger: logger.Named("oracle-scorer"),
	}
}

var _ CandidateScorer = (*llmCandidateScorer)(nil)

// oracleScoreResponse wraps the oracle response for standardization.
type oracleScoreResponse struct {
	Scores []oracleScoreEntry `json:"scores"`
}

type oracleScoreEntry struct {
	CandidateID      string  `json:"candidate_id"`
	Confidence       float64 `json:"confidence"`
	RelationshipType string  `json:"relationship_type"`
	Reasoning        string  `json:"reasoning"`
}

// ScoreCandidates sends one batch to the oracle and parses the per-candidate
// scores. Entries with unparseable IDs are dropped with a warning; unknown
// relationship types keep the heuristic classification.
func (s *llmCandidateScorer) ScoreCandidates(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
	contexts := make([]prompts.CandidatePrompt, len(batch))
	for i, c := range batch {
		contexts[i] = prompts.CandidatePrompt{
			ID:             c.ID.String(),
			SourceTable:    c.SourceTable,
			SourceColumn:   c.SourceColumn,
			TargetTable:    c.TargetTable,
			TargetColumn:   c.TargetColumn,
			HeuristicType:  string(c.Type),
			HeuristicScore: c.Confidence,
			Evidence:       c.Evidence,
		}
	}

	prompt := prompts.BuildSemanticMatchPrompt(contexts)
	systemMsg := prompts.BuildSemanticMatchSystemMessage()

	result, err := s.client.GenerateResponse(ctx, prompt, systemMsg, 0.2)
	if err != nil {
		return nil, fmt.Errorf("oracle call: %w", err)
	}

	response, err := llm.ParseJSONResponse[oracleScoreResponse](result.Content)
	if err != nil {
		return nil, fmt.Errorf("parse oracle response: %w", err)
	}

	scores := make([]*OracleScore, 0, len(response.Scores))
	for _, entry := range response.Scores {
		id, err := uuid.Parse(entry.CandidateID)
		if err != nil {
			s.logger.Warn("oracle returned unparseable candidate id",
				zap.String("candidate_id", entry.CandidateID))
			continue
		}

		score := &OracleScore{
			CandidateID: id,
			Confidence:  models.ClampConfidence(entry.Confidence),
			Reasoning:   entry.Reasoning,
		}
		if t := models.RelationshipType(entry.RelationshipType); t.IsKnown() {
			score.Type = t
		}
		scores = append(scores, score)
	}

	return scores, nil
}

// OracleEnhancer refines confidence and classification for ambiguous
// candidates by consulting the semantic oracle.
type OracleEnhancer interface {
	// Enhance returns a new candidate slice; inputs are never mutated.
	// Oracle scores take precedence over heuristic scores. Oracle failures
	// are recoverable: affected candidates keep their heuristic score.
	Enhance(ctx context.Context, candidates []*models.Candidate) ([]*models.Candidate, error)
}

type oracleEnhancer struct {
	scorer   CandidateScorer
	pool     *llm.WorkerPool
	opts     *PipelineOptions
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewOracleEnhancer creates a new oracle enhancement service.
func NewOracleEnhancer(
	scorer CandidateScorer,
	pool *llm.WorkerPool,
	opts *PipelineOptions,
	logger *zap.Logger,
) OracleEnhancer {
	return &oracleEnhancer{
		scorer:   scorer,
		pool:     pool,
		opts:     opts,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("oracle-enhancer"),
	}
}

var _ OracleEnhancer = (*oracleEnhancer)(nil)

// Enhance dispatches ambiguous candidates to the oracle in bounded batches
// with bounded concurrency. Batches may complete out of order; results are
// merged back by candidate identity, so the final output is deterministic
// regardless of oracle response timing. A cancelled run returns an error
// rather than a partially enhanced list.
func (e *oracleEnhancer) Enhance(ctx context.Context, candidates []*models.Candidate) ([]*models.Candidate, error) {
	ambiguous := e.selectAmbiguous(candidates)
	if len(ambiguous) == 0 {
		return candidates, nil
	}

	batches := chunkCandidates(ambiguous, e.opts.OracleBatchSize)
	items := make([]llm.WorkItem[[]*OracleScore], len(batches))
	for i, batch := range batches {
		batch := batch
		items[i] = llm.WorkItem[[]*OracleScore]{
			ID: fmt.Sprintf("batch-%d", i),
			Execute: func(ctx context.Context) ([]*OracleScore, error) {
				batchCtx, cancel := context.WithTimeout(ctx, e.opts.OracleBatchTimeout)
				defer cancel()
				return retry.DoWithResult(batchCtx, e.retryCfg, func() ([]*OracleScore, error) {
					return e.scorer.ScoreCandidates(batchCtx, batch)
				})
			},
		}
	}

	results := llm.Process(ctx, e.pool, items, nil)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("oracle enhancement aborted: %w", err)
	}

	scoreByID := make(map[uuid.UUID]*OracleScore)
	failedBatches := 0
	for _, res := range results {
		if res.Err != nil {
			// Recoverable: candidates in this batch keep heuristic scores.
			failedBatches++
			e.logger.Warn("oracle batch failed, keeping heuristic scores",
				zap.String("batch", res.ID),
				zap.Error(res.Err))
			continue
		}
		for _, score := range res.Result {
			scoreByID[score.CandidateID] = score
		}
	}

	out := make([]*models.Candidate, len(candidates))
	enhanced := 0
	for i, c := range candidates {
		score, ok := scoreByID[c.ID]
		if !ok {
			out[i] = c
			continue
		}

		next := *c
		next.Confidence = models.ClampConfidence(score.Confidence)
		next.Origin = models.OriginOracle
		if score.Type != "" {
			next.Type = score.Type
		}
		if score.Reasoning != "" {
			next.Evidence = score.Reasoning
		}
		out[i] = &next
		enhanced++
	}

	e.logger.Info("oracle enhancement complete",
		zap.Int("ambiguous", len(ambiguous)),
		zap.Int("enhanced", enhanced),
		zap.Int("failed_batches", failedBatches))

	return out, nil
}

// selectAmbiguous picks candidates below the ambiguity threshold. Explicit
// operator-declared pairs bypass oracle scoring entirely.
func (e *oracleEnhancer) selectAmbiguous(candidates []*models.Candidate) []*models.Candidate {
	var out []*models.Candidate
	for _, c := range candidates {
		if c.Origin == models.OriginExplicit {
			continue
		}
		if c.Confidence < e.opts.AmbiguousThreshold {
			out = append(out, c)
		}
	}
	return out
}

func chunkCandidates(candidates []*models.Candidate, size int) [][]*models.Candidate {
	if size < 1 {
		size = 1
	}
	var batches [][]*models.Candidate
	for i := 0; i < len(candidates); i += size {
		end := i + size
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[i:end])
	}
	return batches
}
