package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/config"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/testutil"
)

func TestProvider_Complete(t *testing.T) {
	p := New(WithHTTPClient(testutil.NewVCRClient(t, "local_complete")))

	req := &domain.GenerationRequest{
		Model: "llama3",
		Messages: []domain.Message{
			{Role: "system", Content: "You are a concise tutor."},
			{Role: "user", Content: "Define photosynthesis in one sentence."},
		},
	}

	resp, err := p.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.HasPrefix(resp.Content, "Photosynthesis is") {
		t.Errorf("Complete() content = %q", resp.Content)
	}
}

func TestProvider_ModelMissing(t *testing.T) {
	p := New(WithHTTPClient(testutil.NewVCRClient(t, "local_model_missing")))

	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:    "not-pulled",
		Messages: []domain.Message{{Role: "user", Content: "Hello"}},
	})
	if !domain.IsType(err, domain.ErrorTypeUpstream) {
		t.Fatalf("Complete() error = %v, want upstream error", err)
	}
	apiErr := domain.ToAPIError(err)
	if apiErr.HTTPStatusCode() != http.StatusBadGateway {
		t.Errorf("HTTPStatusCode() = %d, want 502", apiErr.HTTPStatusCode())
	}
	if !strings.Contains(apiErr.Message, "404") {
		t.Errorf("Message = %q, want upstream status", apiErr.Message)
	}
	if !strings.Contains(apiErr.Details, "not found") {
		t.Errorf("Details = %q, want upstream body", apiErr.Details)
	}
}

func TestProvider_ResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"chat", 200, `{"message":{"role":"assistant","content":"native"}}`, "native", false},
		{"generate", 200, `{"response":"generated"}`, "generated", false},
		{"openai compatible", 200, `{"choices":[{"message":{"content":"compat"}}]}`, "compat", false},
		{"unknown shape", 200, `{"something":"else"}`, "", false},
		{"not json", 200, `not json at all`, "", true},
		{"server error", 500, `{"error":"out of memory"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := New(WithBaseURL(srv.URL))
			resp, err := p.Complete(context.Background(), &domain.GenerationRequest{
				Model:    "llama3",
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
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"message":{"content":"ok"}}`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:     "mistral",
		Messages:  []domain.Message{{Role: "user", Content: "hi"}},
		MaxTokens: 128,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got["model"] != "mistral" {
		t.Errorf("model = %v, want mistral", got["model"])
	}
	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	opts, _ := got["options"].(map[string]any)
	if opts["num_predict"] != float64(128) {
		t.Errorf("options = %v, want num_predict 128", got["options"])
	}
}

func TestProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	p := New(WithBaseURL(addr))
	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:    "llama3",
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr := domain.ToAPIError(err)
	if apiErr.Type != domain.ErrorTypeUpstream || !strings.Contains(apiErr.Message, "unreachable") {
		t.Errorf("Complete() error = %v, want unreachable upstream error", err)
	}
}

func TestProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := p.Complete(context.Background(), &domain.GenerationRequest{
		Model:    "llama3",
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	apiErr := domain.ToAPIError(err)
	if apiErr.Type != domain.ErrorTypeUpstream || apiErr.Details != "upstream timeout" {
		t.Errorf("Complete() error = %v, want upstream timeout", err)
	}
}

func TestCreateFromConfig(t *testing.T) {
	if p := CreateFromConfig(config.LocalConfig{Enabled: false}); p != nil {
		t.Error("CreateFromConfig() returned provider for disabled config")
	}

	p := CreateFromConfig(config.LocalConfig{Enabled: true, BaseURL: "http://ollama:11434/", Timeout: time.Second})
	if p == nil {
		t.Fatal("CreateFromConfig() = nil for enabled config")
	}
	if got := p.client.BaseURL(); got != "http://ollama:11434" {
		t.Errorf("base URL = %q", got)
	}
}
