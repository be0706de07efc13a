package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docqa/internal/domain"
	"docqa/internal/metrics"
)

type fakeQA struct {
	got string
	res *domain.QAResult
	err error
}

func (f *fakeQA) Answer(_ context.Context, q string) (*domain.QAResult, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestQuery_OK(t *testing.T) {
	qa := &fakeQA{res: &domain.QAResult{
		Query:    "q",
		Answer:   "yes",
		Duration: 1500 * time.Millisecond,
		Sources: []domain.Document{
			{Content: "text", Metadata: map[string]string{"source": "a.pdf", "page": "1"}},
		},
	}}
	h := NewServer(qa, nil).Router()

	rr := do(t, h, http.MethodPost, "/v1/query", `{"query":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if qa.got != "q" {
		t.Errorf("query not forwarded, got %q", qa.got)
	}

	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "yes" || resp.DurationMS != 1500 {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "a.pdf" || resp.Sources[0].Page != "1" {
		t.Errorf("unexpected sources %+v", resp.Sources)
	}
}

func TestQuery_BadRequests(t *testing.T) {
	h := NewServer(&fakeQA{}, nil).Router()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"empty query", `{"query":""}`},
		{"missing query", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/query", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", rr.Code)
			}
		})
	}
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("wrap: %w", domain.ErrEmbedding), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewServer(&fakeQA{err: tt.err}, nil).Router()
		rr := do(t, h, http.MethodPost, "/v1/query", `{"query":"q"}`)
		if rr.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, rr.Code, tt.want)
		}
		if strings.Contains(rr.Body.String(), "boom") {
			t.Error("internal error text must not leak")
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics.Register()
	h := NewServer(&fakeQA{}, nil).Router()

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("healthz: %d %s", rr.Code, rr.Body.String())
	}

	do(t, h, http.MethodGet, "/healthz", "")
	rr = do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "docqa_http_requests_total") {
		t.Error("metrics should include http request counter")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer(&fakeQA{}, nil).Router()
	rr := do(t, h, http.MethodGet, "/v1/query", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", rr.Code)
	}
}
