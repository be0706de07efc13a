// Package retriever holds retrievers layered over a vector store.
package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	DefaultLambda       = 0.7
	DefaultDedupJaccard = 0.9
	defaultFetchFactor  = 4
)

// MMRRetriever fetches fetchK candidates and keeps the k that balance
// relevance against similarity to the documents already selected
// (Maximal Marginal Relevance). Similarity is the Jaccard overlap of the
// candidates' word sets.
type MMRRetriever struct {
	store        port.VectorStore
	k            int
	fetchK       int
	lambda       float64
	dedupJaccard float64
	logger       *zap.Logger
}

var _ port.Retriever = (*MMRRetriever)(nil)

// NewMMRRetriever creates an MMR retriever. fetchK <= k defaults to 4*k;
// lambda outside (0, 1] defaults to DefaultLambda.
func NewMMRRetriever(store port.VectorStore, k, fetchK int, lambda float64, logger *zap.Logger) *MMRRetriever {
	if k <= 0 {
		k = 4
	}
	if fetchK <= k {
		fetchK = k * defaultFetchFactor
	}
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultLambda
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MMRRetriever{
		store:        store,
		k:            k,
		fetchK:       fetchK,
		lambda:       lambda,
		dedupJaccard: DefaultDedupJaccard,
		logger:       logger,
	}
}

type candidate struct {
	doc       domain.Document
	relevance float64
	words     map[string]struct{}
}

// Retrieve returns up to k diverse documents for query.
func (r *MMRRetriever) Retrieve(ctx context.Context, query string) ([]domain.Document, error) {
	cands, err := r.candidates(ctx, query)
	if err != nil {
		return nil, err
	}
	selected := r.rerank(cands, r.k)

	docs := make([]domain.Document, len(selected))
	for i, c := range selected {
		docs[i] = c.doc
	}
	r.logger.Debug("mmr rerank",
		zap.Int("candidates", len(cands)),
		zap.Int("selected", len(docs)),
	)
	return docs, nil
}

// candidates prefers scored results. Stores without scores are ranked by
// position: the i-th hit gets relevance 1/(i+1).
func (r *MMRRetriever) candidates(ctx context.Context, query string) ([]candidate, error) {
	scored, err := r.store.SimilaritySearchWithScore(ctx, query, r.fetchK)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	if len(scored) > 0 {
		out := make([]candidate, len(scored))
		for i, s := range scored {
			out[i] = candidate{doc: s.Document, relevance: s.Score, words: wordSet(s.Document.Content)}
		}
		return out, nil
	}

	docs, err := r.store.SimilaritySearch(ctx, query, r.fetchK)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	out := make([]candidate, len(docs))
	for i, d := range docs {
		out[i] = candidate{doc: d, relevance: 1 / float64(i+1), words: wordSet(d.Content)}
	}
	return out, nil
}

// rerank applies MMR(c) = λ*relevance(c) - (1-λ)*max_sim(c, selected).
// Candidates more similar than dedupJaccard to a selected one are dropped.
func (r *MMRRetriever) rerank(cands []candidate, k int) []candidate {
	if len(cands) == 0 {
		return nil
	}
	if k > len(cands) {
		k = len(cands)
	}

	maxRel := cands[0].relevance
	for _, c := range cands {
		if c.relevance > maxRel {
			maxRel = c.relevance
		}
	}
	if maxRel <= 0 {
		maxRel = 1
	}

	selected := make([]candidate, 0, k)
	remaining := make([]candidate, len(cands))
	copy(remaining, cands)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestScore := -1e9

		for i, c := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if sim := jaccard(c.words, s.words); sim > maxSim {
					maxSim = sim
				}
			}
			if maxSim > r.dedupJaccard {
				continue
			}

			score := r.lambda*(c.relevance/maxRel) - (1-r.lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
