package domain

import (
	"context"
)

// Provider defines the interface for upstream generation backends.
type Provider interface {
	Name() string

	// Kind reports which provider family the adapter serves.
	Kind() ProviderKind

	// Complete sends the conversation upstream and returns the extracted reply.
	// Failures are returned as *APIError of type ErrorTypeUpstream.
	Complete(ctx context.Context, req *GenerationRequest) (*NormalizedReply, error)
}
