package extract

import (
	"errors"
	"testing"
)

func TestPaths_Text(t *testing.T) {
	paths := Paths{"message.content", "response", "choices.0.message.content", "choices.0.text"}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "chat envelope",
			body: `{"model":"llama3","message":{"role":"assistant","content":"hi there"},"done":true}`,
			want: "hi there",
		},
		{
			name: "generate envelope",
			body: `{"response":"plain","done":true}`,
			want: "plain",
		},
		{
			name: "first match wins",
			body: `{"message":{"content":"first"},"response":"second"}`,
			want: "first",
		},
		{
			name: "empty string falls through",
			body: `{"message":{"content":""},"choices":[{"message":{"content":"from choices"}}]}`,
			want: "from choices",
		},
		{
			name: "non-string value falls through",
			body: `{"message":{"content":42},"choices":[{"text":"legacy"}]}`,
			want: "legacy",
		},
		{
			name: "unknown fields are tolerated",
			body: `{"output":[{"blocks":["x"]}],"usage":{"total":3}}`,
			want: "",
		},
		{
			name: "empty object",
			body: `{}`,
			want: "",
		},
		{
			name:    "not json",
			body:    `<html>bad gateway</html>`,
			wantErr: ErrMalformed,
		},
		{
			name:    "truncated json",
			body:    `{"message":{"content":"cut`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paths.Text([]byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Text() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
