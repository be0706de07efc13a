package idol

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"docqa/internal/domain"
)

// fakeEmbedder returns a fixed two-dimensional vector per text and counts calls.
type fakeEmbedder struct {
	mu         sync.Mutex
	docCalls   int
	queryCalls int
	err        error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) Dimension() int    { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

// recorder is a fake engine that stores every request it receives.
type recorder struct {
	mu       sync.Mutex
	bodies   []string
	paths    []string
	types    []string
	status   int
	response string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, string(body))
	r.paths = append(r.paths, req.URL.EscapedPath()+"?"+req.URL.RawQuery)
	r.types = append(r.types, req.Header.Get("Content-Type"))
	status, response := r.status, r.response
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, response)
}

func newEngine(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return srv
}

func TestAddTexts_IDsAndSections(t *testing.T) {
	rec := &recorder{}
	srv := newEngine(t, rec)
	emb := &fakeEmbedder{}
	s := New(emb, DefaultConfig(srv.URL))

	texts := []string{"t1", "t2", "t3", "t4"}
	metas := []map[string]string{
		{"source": "A"}, {"source": "A"}, {"source": "B"}, {"source": "A"},
	}
	ids, err := s.AddTexts(context.Background(), texts, metas)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"A#0", "A#1", "B#0", "A#0"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if emb.docCalls != 1 {
		t.Errorf("expected one embedding call, got %d", emb.docCalls)
	}
	if len(rec.bodies) != 1 {
		t.Fatalf("expected a single batch, got %d", len(rec.bodies))
	}
	if !strings.HasSuffix(rec.bodies[0], "\n#DREENDDATAREFERENCE") {
		t.Error("batch must end with the end-of-data marker")
	}
	if strings.Count(rec.bodies[0], "#DREENDDOC\n") != 4 {
		t.Errorf("expected 4 records in batch")
	}
	if !strings.Contains(rec.bodies[0], "#DREREFERENCE B\n#DREFIELD VECTOR=\"0.1,0.2\"\n#DRESECTION 0\n#DREDBNAME DOCQA\n#DRECONTENT\nt3\n") {
		t.Errorf("record block not found in body:\n%s", rec.bodies[0])
	}
	if rec.paths[0] != "/DREADDDATA?CreateDatabase=true" {
		t.Errorf("unexpected path %s", rec.paths[0])
	}
	if rec.types[0] != "text/plain; charset=UTF-8" {
		t.Errorf("unexpected content type %s", rec.types[0])
	}
}

func TestAddTexts_UnknownSource(t *testing.T) {
	rec := &recorder{}
	srv := newEngine(t, rec)
	s := New(&fakeEmbedder{}, DefaultConfig(srv.URL))

	ids, err := s.AddTexts(context.Background(), []string{"x", "y"}, []map[string]string{{}, {"page": "1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids[0] != "unknown_0#0" || ids[1] != "unknown_1#0" {
		t.Errorf("unexpected ids %v", ids)
	}

	ids, err = s.AddTexts(context.Background(), []string{"x"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids[0] != "unknown_0#0" {
		t.Errorf("unexpected id %v", ids[0])
	}
}

func TestAddTexts_MetadataMismatch(t *testing.T) {
	emb := &fakeEmbedder{}
	s := New(emb, DefaultConfig("http://127.0.0.1:1"))

	_, err := s.AddTexts(context.Background(), []string{"a", "b"}, []map[string]string{{}})
	if !errors.Is(err, domain.ErrMetadataMismatch) {
		t.Fatalf("expected ErrMetadataMismatch, got %v", err)
	}
	if emb.docCalls != 0 {
		t.Error("embedder must not be called on argument errors")
	}
}

func TestAddTexts_EmbeddingErrorSkipsHTTP(t *testing.T) {
	rec := &recorder{}
	srv := newEngine(t, rec)
	s := New(&fakeEmbedder{err: errors.New("boom")}, DefaultConfig(srv.URL))

	if _, err := s.AddTexts(context.Background(), []string{"a"}, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.bodies) != 0 {
		t.Errorf("expected no requests, got %d", len(rec.bodies))
	}
}

func TestAddTexts_MultipleBatches(t *testing.T) {
	rec := &recorder{}
	srv := newEngine(t, rec)
	cfg := DefaultConfig(srv.URL)
	cfg.IndexBatchSize = 1
	s := New(&fakeEmbedder{}, cfg)

	texts := []string{"one", "two", "three"}
	metas := []map[string]string{{"source": "s"}, {"source": "s"}, {"source": "s"}}
	if _, err := s.AddTexts(context.Background(), texts, metas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.bodies) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(rec.bodies))
	}
	for i, body := range rec.bodies {
		if strings.Count(body, "#DREREFERENCE") != 1 {
			t.Errorf("batch %d: expected exactly one record", i)
		}
		if !strings.HasSuffix(body, "#DREENDDOC\n\n#DREENDDATAREFERENCE") {
			t.Errorf("batch %d: record split across batches: %q", i, body)
		}
		if !strings.Contains(body, "\n"+texts[i]+"\n") {
			t.Errorf("batch %d: expected content %q", i, texts[i])
		}
	}
}

func TestAddTexts_RejectedBatch(t *testing.T) {
	rec := &recorder{status: http.StatusBadRequest, response: "ERROR"}
	srv := newEngine(t, rec)
	s := New(&fakeEmbedder{}, DefaultConfig(srv.URL))

	ids, err := s.AddTexts(context.Background(), []string{"a", "b"}, nil)
	if len(ids) != 2 {
		t.Errorf("ids must be returned even when batches fail, got %v", ids)
	}
	if !errors.Is(err, domain.ErrIngest) {
		t.Fatalf("expected ErrIngest, got %v", err)
	}
	var be *domain.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if be.StatusCode != http.StatusBadRequest || be.Records != 2 || be.Index != 0 {
		t.Errorf("unexpected batch error %+v", be)
	}
}

func TestSimilaritySearch_VectorMode(t *testing.T) {
	rec := &recorder{response: `{"autnresponse":{"responsedata":{
		"autn:numhits":{"$":2},
		"autn:hit":[
			{"autn:reference":{"$":"a.pdf"},"autn:content":{"DOCUMENT":[{"DRECONTENT":[{"$":"alpha"}]}]}},
			{"autn:reference":{"$":"b.pdf"},"autn:content":{"DOCUMENT":[{"DRECONTENT":[{"$":"beta"}]}]}}
		]}}}`}
	srv := newEngine(t, rec)
	emb := &fakeEmbedder{}
	s := New(emb, DefaultConfig(srv.URL))

	docs, err := s.SimilaritySearch(context.Background(), "question", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Content != "alpha" || docs[0].Source() != "a.pdf" {
		t.Errorf("unexpected first doc %+v", docs[0])
	}
	if docs[1].Content != "beta" || docs[1].Source() != "b.pdf" {
		t.Errorf("unexpected second doc %+v", docs[1])
	}
	if emb.queryCalls != 1 {
		t.Errorf("expected one query embedding, got %d", emb.queryCalls)
	}
	if !strings.Contains(rec.paths[0], "maxresults=2") || !strings.Contains(rec.paths[0], "VECTOR%7B0.1,0.2%7D:VECTOR") {
		t.Errorf("unexpected request path %s", rec.paths[0])
	}
}

func TestSimilaritySearch_TextMode(t *testing.T) {
	rec := &recorder{response: `{"autnresponse":{"responsedata":{"autn:numhits":{"$":0}}}}`}
	srv := newEngine(t, rec)
	emb := &fakeEmbedder{}
	cfg := DefaultConfig(srv.URL)
	cfg.VectorSearch = false
	s := New(emb, cfg)

	docs, err := s.SimilaritySearch(context.Background(), "hello world", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
	if emb.queryCalls != 0 {
		t.Error("text mode must not embed the query")
	}
	if !strings.Contains(rec.paths[0], "maxresults=4") {
		t.Errorf("k<=0 should default to 4: %s", rec.paths[0])
	}
	if !strings.Contains(rec.paths[0], "DetectLanguageType=true&anylanguage=true&text=hello%20world") {
		t.Errorf("unexpected request path %s", rec.paths[0])
	}
}

func TestSimilaritySearch_ProtocolError(t *testing.T) {
	rec := &recorder{response: `{"autnresponse":{"responsedata":{}}}`}
	srv := newEngine(t, rec)
	s := New(&fakeEmbedder{}, DefaultConfig(srv.URL))

	docs, err := s.SimilaritySearch(context.Background(), "q", 4)
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("expected empty non-nil result, got %v", docs)
	}
}

func TestSimilaritySearch_ServerError(t *testing.T) {
	rec := &recorder{status: http.StatusServiceUnavailable}
	srv := newEngine(t, rec)
	s := New(&fakeEmbedder{}, DefaultConfig(srv.URL))

	_, err := s.SimilaritySearch(context.Background(), "q", 4)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSimilaritySearch_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := New(&fakeEmbedder{}, DefaultConfig("http://"+addr))
	docs, err := s.SimilaritySearch(context.Background(), "q", 4)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty result, got %v", docs)
	}
}

func TestSimilaritySearchWithScore_Empty(t *testing.T) {
	s := New(&fakeEmbedder{}, DefaultConfig("http://127.0.0.1:1"))
	docs, err := s.SimilaritySearchWithScore(context.Background(), "q", 4)
	if err != nil || len(docs) != 0 {
		t.Errorf("expected empty result and nil error, got %v, %v", docs, err)
	}
}

func TestFromTexts(t *testing.T) {
	rec := &recorder{}
	srv := newEngine(t, rec)

	s, ids, err := FromTexts(context.Background(), []string{"a"}, &fakeEmbedder{},
		[]map[string]string{{"source": "doc"}}, DefaultConfig(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil || len(ids) != 1 || ids[0] != "doc#0" {
		t.Errorf("unexpected result %v %v", s, ids)
	}
	if len(rec.bodies) != 1 {
		t.Errorf("expected one batch, got %d", len(rec.bodies))
	}
}
