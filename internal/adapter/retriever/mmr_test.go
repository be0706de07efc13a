package retriever

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/domain"
)

type fakeStore struct {
	scored []domain.ScoredDocument
	docs   []domain.Document
	err    error
	gotK   int
}

func (f *fakeStore) AddTexts(context.Context, []string, []map[string]string) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, k int) ([]domain.Document, error) {
	f.gotK = k
	return f.docs, f.err
}

func (f *fakeStore) SimilaritySearchWithScore(_ context.Context, _ string, k int) ([]domain.ScoredDocument, error) {
	f.gotK = k
	return f.scored, f.err
}

func scoredDoc(id, content string, score float64) domain.ScoredDocument {
	return domain.ScoredDocument{
		Document: domain.Document{Content: content, Metadata: map[string]string{"source": id}},
		Score:    score,
	}
}

func TestMMRRetriever_PrefersDiverseResults(t *testing.T) {
	store := &fakeStore{scored: []domain.ScoredDocument{
		scoredDoc("c1", "auth login user password", 1.0),
		scoredDoc("c2", "auth login user session", 0.9),
		scoredDoc("c3", "database query sql connection", 0.8),
		scoredDoc("c4", "auth jwt token oauth", 0.7),
	}}
	r := NewMMRRetriever(store, 2, 8, 0.5, nil)

	docs, err := r.Retrieve(context.Background(), "auth")
	if err != nil {
		t.Fatal(err)
	}
	if store.gotK != 8 {
		t.Errorf("expected fetchK 8, got %d", store.gotK)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Source() != "c1" {
		t.Errorf("most relevant should come first, got %s", docs[0].Source())
	}
	if docs[1].Source() == "c2" {
		t.Error("near-duplicate c2 should lose to a diverse candidate")
	}
}

func TestMMRRetriever_DropsDuplicates(t *testing.T) {
	store := &fakeStore{scored: []domain.ScoredDocument{
		scoredDoc("a", "same words here", 1.0),
		scoredDoc("b", "same words here", 0.99),
	}}
	docs, err := NewMMRRetriever(store, 2, 4, 0.7, nil).Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("identical candidates should be deduplicated, got %d", len(docs))
	}
}

func TestMMRRetriever_FallsBackToUnscored(t *testing.T) {
	store := &fakeStore{docs: []domain.Document{
		{Content: "alpha beta", Metadata: map[string]string{"source": "x"}},
		{Content: "gamma delta", Metadata: map[string]string{"source": "y"}},
	}}
	docs, err := NewMMRRetriever(store, 2, 0, 0, nil).Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Source() != "x" {
		t.Errorf("rank order should be kept for unscored hits, got %+v", docs)
	}
	if store.gotK != 8 {
		t.Errorf("fetchK should default to 4*k, got %d", store.gotK)
	}
}

func TestMMRRetriever_Error(t *testing.T) {
	store := &fakeStore{err: domain.ErrUnavailable}
	_, err := NewMMRRetriever(store, 2, 4, 0.7, nil).Retrieve(context.Background(), "q")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestWordSet(t *testing.T) {
	set := wordSet("The quick, brown fox_1 is a FOX_1!")
	for _, want := range []string{"quick", "brown", "fox_1"} {
		if _, ok := set[want]; !ok {
			t.Errorf("missing %q in %v", want, set)
		}
	}
	for _, stop := range []string{"the", "is", "a"} {
		if _, ok := set[stop]; ok {
			t.Errorf("stopword %q kept", stop)
		}
	}
	if len(set) != 3 {
		t.Errorf("expected 3 words, got %v", set)
	}
}

func TestJaccard(t *testing.T) {
	a := wordSet("alpha beta gamma")
	b := wordSet("beta gamma delta")
	if got := jaccard(a, b); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
	if jaccard(map[string]struct{}{}, map[string]struct{}{}) != 1 {
		t.Error("two empty sets are identical")
	}
}
