package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/llm"
	"github.com/crosschema/reconcile-engine/pkg/models"
)

// mockScorer is a configurable CandidateScorer for enhancer tests.
type mockScorer struct {
	scoreFunc func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error)
	calls     int32
}

func (m *mockScorer) ScoreCandidates(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.scoreFunc != nil {
		return m.scoreFunc(ctx, batch)
	}
	return nil, nil
}

func newTestEnhancer(scorer CandidateScorer, opts *PipelineOptions) OracleEnhancer {
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())
	return NewOracleEnhancer(scorer, pool, opts, zap.NewNop())
}

func ambiguousCandidate(confidence float64) *models.Candidate {
	return &models.Candidate{
		ID:           uuid.New(),
		SourceTable:  "materials",
		SourceColumn: "material_no",
		TargetTable:  "products",
		TargetColumn: "product_sku",
		Type:         models.RelTypeSemanticReference,
		Confidence:   confidence,
		Origin:       models.OriginDomain,
		Evidence:     "heuristic evidence",
	}
}

func TestEnhance_ScoresAmbiguousCandidates(t *testing.T) {
	candidate := ambiguousCandidate(0.75)

	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
			require.Len(t, batch, 1)
			return []*OracleScore{{
				CandidateID: batch[0].ID,
				Confidence:  0.91,
				Reasoning:   "both identify sellable items",
			}}, nil
		},
	}

	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())
	out, err := enhancer.Enhance(context.Background(), []*models.Candidate{candidate})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, 0.91, out[0].Confidence)
	assert.Equal(t, models.OriginOracle, out[0].Origin)
	assert.Equal(t, "both identify sellable items", out[0].Evidence)
	assert.Equal(t, candidate.ID, out[0].ID, "identity survives enhancement")

	// Input is never mutated.
	assert.Equal(t, 0.75, candidate.Confidence)
	assert.Equal(t, models.OriginDomain, candidate.Origin)
}

func TestEnhance_SkipsConfidentCandidates(t *testing.T) {
	confident := ambiguousCandidate(0.95)

	scorer := &mockScorer{}
	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())

	out, err := enhancer.Enhance(context.Background(), []*models.Candidate{confident})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, int32(0), atomic.LoadInt32(&scorer.calls), "no oracle call for confident candidates")
	assert.Same(t, confident, out[0])
}

func TestEnhance_SkipsExplicitCandidates(t *testing.T) {
	explicit := ambiguousCandidate(0.5)
	explicit.Origin = models.OriginExplicit

	scorer := &mockScorer{}
	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())

	out, err := enhancer.Enhance(context.Background(), []*models.Candidate{explicit})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int32(0), atomic.LoadInt32(&scorer.calls), "explicit pairs bypass the oracle")
}

func TestEnhance_FailedBatchKeepsHeuristicScores(t *testing.T) {
	candidate := ambiguousCandidate(0.7)

	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
			return nil, llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("401"))
		},
	}

	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())
	out, err := enhancer.Enhance(context.Background(), []*models.Candidate{candidate})
	require.NoError(t, err, "a failed batch is recoverable, not fatal")
	require.Len(t, out, 1)

	assert.Equal(t, 0.7, out[0].Confidence, "heuristic score retained")
	assert.Equal(t, models.OriginDomain, out[0].Origin)
}

func TestEnhance_BatchesBySize(t *testing.T) {
	opts := DefaultPipelineOptions()
	opts.OracleBatchSize = 2

	candidates := make([]*models.Candidate, 5)
	for i := range candidates {
		candidates[i] = ambiguousCandidate(0.6)
	}

	var batchSizes []int
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
			batchSizes = append(batchSizes, len(batch))
			scores := make([]*OracleScore, len(batch))
			for i, c := range batch {
				scores[i] = &OracleScore{CandidateID: c.ID, Confidence: 0.85}
			}
			return scores, nil
		},
	}

	// MaxConcurrent 1 keeps batchSizes appends race-free.
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 1}, zap.NewNop())
	enhancer := NewOracleEnhancer(scorer, pool, opts, zap.NewNop())

	out, err := enhancer.Enhance(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, int32(3), atomic.LoadInt32(&scorer.calls), "5 candidates in batches of 2 is 3 calls")
	for _, size := range batchSizes {
		assert.LessOrEqual(t, size, 2)
	}
	for _, c := range out {
		assert.Equal(t, 0.85, c.Confidence)
	}
}

func TestEnhance_CancelledRunReturnsError(t *testing.T) {
	candidate := ambiguousCandidate(0.6)

	ctx, cancel := context.WithCancel(context.Background())
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())
	_, err := enhancer.Enhance(ctx, []*models.Candidate{candidate})
	require.Error(t, err, "a cancelled run must not produce partial output")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnhance_NoAmbiguousCandidates(t *testing.T) {
	scorer := &mockScorer{}
	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())

	out, err := enhancer.Enhance(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEnhance_OracleTypeOverride(t *testing.T) {
	candidate := ambiguousCandidate(0.7)

	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
			return []*OracleScore{{
				CandidateID: batch[0].ID,
				Confidence:  0.88,
				Type:        models.RelTypeMatches,
			}}, nil
		},
	}

	enhancer := newTestEnhancer(scorer, DefaultPipelineOptions())
	out, err := enhancer.Enhance(context.Background(), []*models.Candidate{candidate})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.RelTypeMatches, out[0].Type)
}

func TestLLMCandidateScorer_ParsesOracleResponse(t *testing.T) {
	candidate := ambiguousCandidate(0.7)

	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResponseResult, error) {
		assert.Contains(t, prompt, candidate.ID.String(), "prompt carries candidate IDs")
		content := fmt.Sprintf("```json\n{\"scores\": [{\"candidate_id\": %q, \"confidence\": 0.9, \"relationship_type\": \"MATCHES\", \"reasoning\": \"same concept\"}]}\n```", candidate.ID)
		return &llm.GenerateResponseResult{Content: content}, nil
	}

	scorer := NewLLMCandidateScorer(client, zap.NewNop())
	scores, err := scorer.ScoreCandidates(context.Background(), []*models.Candidate{candidate})
	require.NoError(t, err)
	require.Len(t, scores, 1)

	assert.Equal(t, candidate.ID, scores[0].CandidateID)
	assert.Equal(t, 0.9, scores[0].Confidence)
	assert.Equal(t, models.RelTypeMatches, scores[0].Type)
	assert.Equal(t, "same concept", scores[0].Reasoning)
}

func TestLLMCandidateScorer_DropsUnparseableIDs(t *testing.T) {
	candidate := ambiguousCandidate(0.7)

	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `{"scores": [{"candidate_id": "not-a-uuid", "confidence": 0.9}]}`,
		}, nil
	}

	scorer := NewLLMCandidateScorer(client, zap.NewNop())
	scores, err := scorer.ScoreCandidates(context.Background(), []*models.Candidate{candidate})
	require.NoError(t, err)
	assert.Empty(t, scores, "entries without valid IDs are dropped, not fatal")
}

func TestLLMCandidateScorer_UnknownTypeKeepsHeuristic(t *testing.T) {
	candidate := ambiguousCandidate(0.7)

	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*llm.GenerateResponseResult, error) {
		content := fmt.Sprintf(`{"scores": [{"candidate_id": %q, "confidence": 0.9, "relationship_type": "SOMETHING_ODD"}]}`, candidate.ID)
		return &llm.GenerateResponseResult{Content: content}, nil
	}

	scorer := NewLLMCandidateScorer(client, zap.NewNop())
	scores, err := scorer.ScoreCandidates(context.Background(), []*models.Candidate{candidate})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Empty(t, scores[0].Type, "unknown type leaves heuristic classification in place")
}

func TestEnhance_TimeoutIsBounded(t *testing.T) {
	opts := DefaultPipelineOptions()
	opts.OracleBatchTimeout = 20 * time.Millisecond

	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, batch []*models.Candidate) ([]*OracleScore, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	enhancer := newTestEnhancer(scorer, opts)
	candidate := ambiguousCandidate(0.6)

	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := enhancer.Enhance(context.Background(), []*models.Candidate{candidate})
		assert.NoError(t, err, "batch timeout degrades to heuristic scores")
		assert.Len(t, out, 1)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("enhancement did not respect the batch timeout")
	}
}
