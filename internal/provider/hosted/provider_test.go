package hosted

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/testutil"
)

func apiKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && testutil.Recording() {
		return key
	}
	return "test-key"
}

func TestProvider_Complete(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && testutil.Recording() {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	p := New(apiKey(), option.WithHTTPClient(testutil.NewVCRClient(t, "hosted_complete")))

	resp, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model: "gpt-3.5-turbo",
		Messages: []domain.Message{
			{Role: "system", Content: "You are a concise tutor."},
			{Role: "user", Content: "Give one fact about the moon."},
		},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(resp.Content, "Moon") {
		t.Errorf("Complete() content = %q", resp.Content)
	}
}

func TestProvider_Unauthorized(t *testing.T) {
	if testutil.Recording() {
		t.Skip("cassette holds a deliberately invalid key")
	}

	p := New("sk-invalid", option.WithHTTPClient(testutil.NewVCRClient(t, "hosted_unauthorized")))

	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:    "gpt-3.5-turbo",
		Messages: []domain.Message{{Role: "user", Content: "Hello"}},
	})
	if !domain.IsType(err, domain.ErrorTypeUpstream) {
		t.Fatalf("Complete() error = %v, want upstream error", err)
	}
	apiErr := domain.ToAPIError(err)
	if apiErr.HTTPStatusCode() != http.StatusBadGateway {
		t.Errorf("HTTPStatusCode() = %d, want 502", apiErr.HTTPStatusCode())
	}
	if !strings.Contains(apiErr.Message, "401") {
		t.Errorf("Message = %q, want upstream status", apiErr.Message)
	}
	if !strings.Contains(apiErr.Details, "Incorrect API key") {
		t.Errorf("Details = %q, want upstream message", apiErr.Details)
	}
}

func TestProvider_ResponseShapes(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantErr     bool
	}{
		{"chat completion", "application/json", `{"choices":[{"message":{"role":"assistant","content":"chat"}}]}`, "chat", false},
		{"legacy completion", "application/json", `{"choices":[{"text":"legacy"}]}`, "legacy", false},
		{"responses style", "application/json", `{"output_text":"responses"}`, "responses", false},
		{"null content", "application/json", `{"choices":[{"message":{"role":"assistant","content":null}}]}`, "", false},
		{"html error page", "text/html", `<html>upstream proxy error</html>`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := New("test-key", option.WithBaseURL(srv.URL+"/v1"))
			resp, err := p.Complete(context.Background(), &domain.GenerationRequest{
				Model:    "gpt-4o-mini",
				Messages: []domain.Message{{Role: "user", Content: "hi"}},
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Complete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !domain.IsType(err, domain.ErrorTypeUpstream) {
					t.Errorf("Complete() error type = %v, want upstream", err)
				}
				return
			}
			if resp.Content != tt.want {
				t.Errorf("Complete() content = %q, want %q", resp.Content, tt.want)
			}
		})
	}
}

func TestProvider_ForwardsRequest(t *testing.T) {
	var (
		got   map[string]any
		path  string
		auth  string
		calls atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := New("sk-abc", option.WithBaseURL(srv.URL+"/v1"))
	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model: "gpt-4o",
		Messages: []domain.Message{
			{Role: "system", Content: "sys"},
			{Role: "assistant", Content: "prev"},
			{Role: "user", Content: "next"},
		},
		MaxTokens: 10,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if path != "/v1/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer sk-abc" {
		t.Errorf("Authorization = %q", auth)
	}
	if got["model"] != "gpt-4o" {
		t.Errorf("model = %v", got["model"])
	}
	if got["max_tokens"] != float64(10) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %v", got["messages"])
	}
	for i, role := range []string{"system", "assistant", "user"} {
		m, _ := msgs[i].(map[string]any)
		if m["role"] != role {
			t.Errorf("messages[%d].role = %v, want %s", i, m["role"], role)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestProvider_NoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	p := New("test-key", option.WithBaseURL(srv.URL+"/v1"))
	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr := domain.ToAPIError(err)
	if apiErr.Type != domain.ErrorTypeUpstream || !strings.Contains(apiErr.Message, "503") {
		t.Errorf("Complete() error = %v, want upstream 503", err)
	}
	if apiErr.Details != "overloaded" {
		t.Errorf("Details = %q, want overloaded", apiErr.Details)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	p := New("test-key", option.WithBaseURL(addr+"/v1"))
	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr := domain.ToAPIError(err)
	if apiErr.Type != domain.ErrorTypeUpstream || !strings.Contains(apiErr.Message, "unreachable") {
		t.Errorf("Complete() error = %v, want unreachable upstream error", err)
	}
}

func TestCreateFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.HostedConfig
		want bool
	}{
		{"enabled with key", config.HostedConfig{Enabled: true, APIKey: "sk-x"}, true},
		{"enabled without key", config.HostedConfig{Enabled: true}, false},
		{"disabled", config.HostedConfig{Enabled: false, APIKey: "sk-x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CreateFromConfig(tt.cfg) != nil; got != tt.want {
				t.Errorf("CreateFromConfig() present = %v, want %v", got, tt.want)
			}
		})
	}
}
