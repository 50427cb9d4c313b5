package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	answeruc "github.com/marysss1/QiAIchemy-backend/internal/usecase/answer"
	healthuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/health"
	ingestuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/ingest"
)

// --- Mocks ---

type mockAnswers struct {
	result answeruc.Result
	err    error

	gotQuestion string
	gotTopK     int
}

func (m *mockAnswers) Ask(_ context.Context, question, _ string, topK int) (answeruc.Result, error) {
	m.gotQuestion = question
	m.gotTopK = topK
	return m.result, m.err
}

type mockRetrieval struct {
	ranked []dompas.Ranked
	err    error
}

func (m *mockRetrieval) Retrieve(_ context.Context, _, _ string, _ int) ([]dompas.Ranked, error) {
	return m.ranked, m.err
}

type mockIngest struct {
	result  ingestuc.Result
	err     error
	sources []ingestuc.Source
}

func (m *mockIngest) IngestSource(_ context.Context, src ingestuc.Source) (ingestuc.Result, error) {
	m.sources = append(m.sources, src)
	if m.err != nil {
		return ingestuc.Result{}, m.err
	}
	res := m.result
	res.SourceID = src.ID
	return res, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type serverMocks struct {
	answers   *mockAnswers
	retrieval *mockRetrieval
	ingest    *mockIngest
	health    *mockHealth
}

func newTestRouter(t *testing.T) (chi.Router, *serverMocks) {
	t.Helper()
	m := &serverMocks{
		answers:   &mockAnswers{},
		retrieval: &mockRetrieval{},
		ingest:    &mockIngest{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}},
	}
	srv := NewServer(m.answers, m.retrieval, m.ingest, m.health, zap.NewNop())
	r := chi.NewRouter()
	srv.Mount(r)
	return r, m
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func testRanked(t *testing.T) dompas.Ranked {
	t.Helper()
	p := dompas.Reconstruct(
		"tizhi", "体质学说", "corpus/tizhi.md", "气虚体质",
		0, "气虚体质的人容易乏力。", 11,
		nil, nil, time.Unix(1700000000, 0).UTC(),
	)
	return dompas.NewRanked(p, 0.5, 0.4, 0.1, 0.02, 0.45)
}

// --- Ask ---

func TestAsk_Success(t *testing.T) {
	r, m := newTestRouter(t)
	m.answers.result = answeruc.Result{
		Text:        "气虚者宜补气健脾 [1]。",
		Passages:    []dompas.Ranked{testRanked(t)},
		TotalTokens: 120,
	}

	rr := doJSON(t, r, "POST", "/v1/ask", askRequest{Question: "气虚怎么调理", TopK: 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp askResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != m.answers.result.Text || resp.TotalTokens != 120 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Passages) != 1 || resp.Passages[0].SourceID != "tizhi" {
		t.Errorf("passages = %+v", resp.Passages)
	}
	if resp.Passages[0].Scores.Final != 0.45 {
		t.Errorf("final score = %f", resp.Passages[0].Scores.Final)
	}
	if m.answers.gotQuestion != "气虚怎么调理" || m.answers.gotTopK != 3 {
		t.Errorf("service args: %q %d", m.answers.gotQuestion, m.answers.gotTopK)
	}
}

func TestAsk_MissingQuestion_400(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := doJSON(t, r, "POST", "/v1/ask", askRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAsk_InvalidBody_400(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/v1/ask", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- Retrieve ---

func TestRetrieve_Success(t *testing.T) {
	r, m := newTestRouter(t)
	m.retrieval.ranked = []dompas.Ranked{testRanked(t)}

	rr := doJSON(t, r, "POST", "/v1/retrieve", retrieveRequest{Query: "气虚乏力"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp retrieveResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Passages) != 1 {
		t.Fatalf("passages = %d", len(resp.Passages))
	}
	got := resp.Passages[0]
	if got.Scores.Lexical != 0.5 || got.Scores.Embedding != 0.4 || got.Scores.Graph != 0.1 || got.Scores.RRF != 0.02 {
		t.Errorf("scores = %+v", got.Scores)
	}
}

func TestRetrieve_MissingQuery_400(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := doJSON(t, r, "POST", "/v1/retrieve", retrieveRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- Error mapping ---

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   errorCode
	}{
		{"validation", domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed},
		{"provider auth", domain.ErrProviderAuth, http.StatusUnauthorized, codeProviderAuth},
		{"quota", domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
		{"embedding outage", domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError},
		{"completion outage", domain.ErrCompletionProviderError, http.StatusBadGateway, codeProviderError},
		{"store failure", domain.ErrPassageStoreUnavailable, http.StatusInternalServerError, codeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, m := newTestRouter(t)
			m.retrieval.err = tc.err

			rr := doJSON(t, r, "POST", "/v1/retrieve", retrieveRequest{Query: "气虚"})
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}

			var resp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.code {
				t.Errorf("code = %s, want %s", resp.Code, tc.code)
			}
		})
	}
}

func TestErrorMapping_NoInternalDetail(t *testing.T) {
	r, m := newTestRouter(t)
	m.retrieval.err = domain.ErrPassageStoreUnavailable

	rr := doJSON(t, r, "POST", "/v1/retrieve", retrieveRequest{Query: "气虚"})

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "internal error" {
		t.Errorf("message leaks detail: %q", resp.Message)
	}
}

// --- Ingest ---

func TestUpsertPassages_Success(t *testing.T) {
	r, m := newTestRouter(t)
	m.ingest.result = ingestuc.Result{Chunks: 2, Deleted: 1, TotalTokens: 14}

	rr := doJSON(t, r, "PUT", "/v1/passages", ingestRequest{Sources: []ingestSource{
		{ID: "tizhi", Title: "体质学说", Sections: []ingestSection{{Title: "气虚体质", Text: "气虚体质的人容易乏力。"}}},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].SourceID != "tizhi" || resp.Results[0].Chunks != 2 {
		t.Errorf("results = %+v", resp.Results)
	}
	if len(m.ingest.sources) != 1 || m.ingest.sources[0].Sections[0].Title != "气虚体质" {
		t.Errorf("ingested sources = %+v", m.ingest.sources)
	}
}

func TestUpsertPassages_EmptySources_400(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := doJSON(t, r, "PUT", "/v1/passages", ingestRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- Health ---

func TestHealthz_OK(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := doJSON(t, r, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealthz_Degraded_503(t *testing.T) {
	r, m := newTestRouter(t)
	m.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "embedding": healthuc.CheckError},
	}

	rr := doJSON(t, r, "GET", "/healthz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}
