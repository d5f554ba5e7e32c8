package coach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAsk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/coach" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "how do I focus?" {
			t.Errorf("query = %q", req.Query)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "One point at a time."})
	}))
	defer server.Close()

	client := New(server.URL, WithAPIKey("test-key"))

	answer, err := client.Ask(context.Background(), "how do I focus?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "One point at a time." {
		t.Errorf("answer = %q", answer)
	}
}

func TestAskWith_UserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.UserID != "u-7" {
			t.Errorf("user_id = %q", req.UserID)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "ok"})
	}))
	defer server.Close()

	client := New(server.URL)

	if _, err := client.AskWith(context.Background(), AskRequest{Query: "q", UserID: "u-7"}); err != nil {
		t.Fatalf("AskWith failed: %v", err)
	}
}

func errorServer(status int, code, message string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
	}))
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, "unauthorized", ErrUnauthorized},
		{"not ready", http.StatusServiceUnavailable, "not_ready", ErrNotReady},
		{"answer failed", http.StatusBadGateway, "answer_failed", ErrAnswerFailed},
		{"bad request", http.StatusBadRequest, "bad_request", ErrBadRequest},
		{"validation failed", http.StatusBadRequest, "validation_failed", ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := errorServer(tt.status, tt.code, "boom")
			defer server.Close()

			client := New(server.URL)

			_, err := client.Ask(context.Background(), "q")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, expected %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != "boom" {
				t.Errorf("Message = %q", apiErr.Message)
			}
		})
	}
}

func TestAsk_UnknownErrorCode(t *testing.T) {
	server := errorServer(http.StatusInternalServerError, "internal_error", "internal error")
	defer server.Close()

	client := New(server.URL)

	_, err := client.Ask(context.Background(), "q")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	for _, sentinel := range []error{ErrUnauthorized, ErrNotReady, ErrAnswerFailed, ErrBadRequest} {
		if errors.Is(err, sentinel) {
			t.Errorf("internal_error must not map to %v", sentinel)
		}
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthStatus{
			Status: "degraded",
			Checks: map[string]string{"knowledge_base": "error"},
		})
	}))
	defer server.Close()

	client := New(server.URL)

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("status = %q", status.Status)
	}
	if status.Checks["knowledge_base"] != "error" {
		t.Errorf("knowledge_base = %q", status.Checks["knowledge_base"])
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client := New("http://localhost:8080/")
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
}
