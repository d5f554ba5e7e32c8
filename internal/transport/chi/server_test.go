package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mindfit/coachd/internal/domain"
	answeruc "github.com/mindfit/coachd/internal/usecase/answer"
	healthuc "github.com/mindfit/coachd/internal/usecase/health"
)

// --- Mocks ---

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

type mockRetriever struct {
	passages []domain.ScoredPassage
	err      error
}

func (m *mockRetriever) Retrieve(_ string, _ []float32) ([]domain.ScoredPassage, error) {
	return m.passages, m.err
}

type mockCompleter struct {
	result domain.CompletionResult
	err    error
}

func (m *mockCompleter) Complete(_ context.Context, _ string) (domain.CompletionResult, error) {
	return m.result, m.err
}

type mockStoreChecker struct {
	err error
}

func (m *mockStoreChecker) Ready() error { return m.err }

func newTestServer(emb *mockEmbedder, ret *mockRetriever, comp *mockCompleter) *Server {
	return newTestServerWithStore(emb, ret, comp, nil)
}

func newTestServerWithStore(emb *mockEmbedder, ret *mockRetriever, comp *mockCompleter, storeErr error) *Server {
	answerSvc := answeruc.New(emb, ret, comp)
	healthSvc := healthuc.New(&mockStoreChecker{err: storeErr}, nil)
	return NewServer(answerSvc, healthSvc, zap.NewNop())
}

func healthyMocks() (*mockEmbedder, *mockRetriever, *mockCompleter) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 0}}}
	ret := &mockRetriever{passages: []domain.ScoredPassage{
		{Passage: domain.Passage{Text: "Week 1: Breathe.", Embedding: []float32{1, 0}}, Score: 0.9},
	}}
	comp := &mockCompleter{result: domain.CompletionResult{Text: "Breathe before every point."}}
	return emb, ret, comp
}

func askCoach(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/coach", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.AskCoach(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestAskCoach(t *testing.T) {
	s := newTestServer(healthyMocks())

	rec := askCoach(t, s, `{"query":"how do I stay calm?","user_id":"u-42"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Breathe before every point." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAskCoach_InvalidBody(t *testing.T) {
	s := newTestServer(healthyMocks())

	rec := askCoach(t, s, `{"query":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeBadRequest {
		t.Errorf("code = %q, expected %q", resp.Code, CodeBadRequest)
	}
}

func TestAskCoach_MissingQuery(t *testing.T) {
	s := newTestServer(healthyMocks())

	for _, body := range []string{`{}`, `{"query":""}`, `{"user_id":"u-1"}`} {
		rec := askCoach(t, s, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
			continue
		}
		if resp := decodeError(t, rec); resp.Code != CodeValidationFailed {
			t.Errorf("body %s: code = %q, expected %q", body, resp.Code, CodeValidationFailed)
		}
	}
}

func TestAskCoach_StoreNotReady(t *testing.T) {
	emb, ret, comp := healthyMocks()
	ret.passages = nil
	ret.err = domain.ErrStoreUnavailable
	s := newTestServer(emb, ret, comp)

	rec := askCoach(t, s, `{"query":"hello"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeNotReady {
		t.Errorf("code = %q, expected %q", resp.Code, CodeNotReady)
	}
}

func TestAskCoach_NoPassages(t *testing.T) {
	emb, ret, comp := healthyMocks()
	ret.passages = nil
	ret.err = domain.ErrNoPassagesAvailable
	s := newTestServer(emb, ret, comp)

	rec := askCoach(t, s, `{"query":"hello"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeNotReady {
		t.Errorf("code = %q, expected %q", resp.Code, CodeNotReady)
	}
}

func TestAskCoach_EmbeddingDown(t *testing.T) {
	emb, ret, comp := healthyMocks()
	emb.err = domain.ErrEmbeddingUnavailable
	s := newTestServer(emb, ret, comp)

	rec := askCoach(t, s, `{"query":"hello"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeAnswerFailed {
		t.Errorf("code = %q, expected %q", resp.Code, CodeAnswerFailed)
	}
}

func TestAskCoach_CompletionDown(t *testing.T) {
	emb, ret, comp := healthyMocks()
	comp.err = domain.ErrCompletionUnavailable
	s := newTestServer(emb, ret, comp)

	rec := askCoach(t, s, `{"query":"hello"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeAnswerFailed {
		t.Errorf("code = %q, expected %q", resp.Code, CodeAnswerFailed)
	}
}

func TestAskCoach_UnknownError(t *testing.T) {
	emb, ret, comp := healthyMocks()
	comp.err = context.DeadlineExceeded
	s := newTestServer(emb, ret, comp)

	rec := askCoach(t, s, `{"query":"hello"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != CodeInternalError {
		t.Errorf("code = %q, expected %q", resp.Code, CodeInternalError)
	}
	if resp.Message != "internal error" {
		t.Errorf("internal details leaked to client: %q", resp.Message)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(healthyMocks())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, expected ok", resp.Status)
	}
	if resp.Checks["knowledge_base"] != "ok" {
		t.Errorf("knowledge_base check = %q", resp.Checks["knowledge_base"])
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	emb, ret, comp := healthyMocks()
	s := newTestServerWithStore(emb, ret, comp, domain.ErrStoreUnavailable)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.HealthCheck(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, expected degraded", resp.Status)
	}
	if resp.Checks["knowledge_base"] != "error" {
		t.Errorf("knowledge_base check = %q", resp.Checks["knowledge_base"])
	}
}
