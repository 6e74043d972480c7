// Package testutil provides cassette-backed HTTP clients for upstream
// adapter tests. Set VCR_MODE=record to refresh cassettes against live
// services.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// secretHeaders are dropped from recorded interactions.
var secretHeaders = []string{"Authorization", "X-Proxy-Key", "Openai-Organization", "Openai-Project"}

// Recording reports whether cassettes are being re-recorded.
func Recording() bool {
	return os.Getenv("VCR_MODE") == "record"
}

// NewVCRRecorder creates a recorder backed by testdata/fixtures/<cassetteName>.yaml.
// Interactions are matched on method and URL.
func NewVCRRecorder(t *testing.T, cassetteName string) *recorder.Recorder {
	t.Helper()

	mode := recorder.ModeReplaying
	if Recording() {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	r.AddFilter(func(i *cassette.Interaction) error {
		for _, h := range secretHeaders {
			delete(i.Request.Headers, h)
		}
		return nil
	})

	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	})

	return r
}

// NewVCRClient returns an HTTP client that replays (or records) the named cassette.
func NewVCRClient(t *testing.T, cassetteName string) *http.Client {
	t.Helper()
	return &http.Client{Transport: NewVCRRecorder(t, cassetteName)}
}
