package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Chat(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hello"},"done":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL + "/"))
	body, err := c.Chat(context.Background(), &ChatRequest{
		Model:    "llama3",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Stream:   true,
		Options:  &ChatOptions{NumPredict: 64},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got.Stream {
		t.Error("Chat() sent stream=true, want false")
	}
	if got.Model != "llama3" || len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("Chat() sent %+v", got)
	}
	if got.Options == nil || got.Options.NumPredict != 64 {
		t.Errorf("Chat() options = %+v, want num_predict 64", got.Options)
	}
	if len(body) == 0 {
		t.Error("Chat() returned empty body")
	}
}

func TestClient_ChatStatusError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"ollama error body", http.StatusNotFound, `{"error":"model 'nope' not found"}`, "model 'nope' not found"},
		{"plain body", http.StatusInternalServerError, `boom`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).Chat(context.Background(), &ChatRequest{Model: "x"})
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("Chat() error = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.status)
			}
			if statusErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", statusErr.Message, tt.wantMsg)
			}
			if string(statusErr.Body) != tt.body {
				t.Errorf("Body = %q, want %q", statusErr.Body, tt.body)
			}
		})
	}
}

func TestClient_ChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).Chat(context.Background(), &ChatRequest{Model: "x"})
	if err == nil {
		t.Fatal("Chat() error = nil, want transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Errorf("Chat() error = %v, want transport error", err)
	}
}
