package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/tokens"
)

// DefaultMaxBodyBytes is the default cap on request body size.
const DefaultMaxBodyBytes = 100 * 1024

// Validator decodes and checks generation payloads.
type Validator struct {
	maxBodyBytes    int64
	maxPromptTokens int
	counter         tokens.Counter
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMaxBodyBytes bounds the accepted body size.
func WithMaxBodyBytes(n int64) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.maxBodyBytes = n
		}
	}
}

// WithPromptBudget rejects prompts counted above max tokens. A max of zero
// disables the check.
func WithPromptBudget(counter tokens.Counter, max int) ValidatorOption {
	return func(v *Validator) {
		v.counter = counter
		v.maxPromptTokens = max
	}
}

// NewValidator creates a validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reads body and returns the request it describes, or a
// ValidationError. promptTokens is zero when no budget is configured.
func (v *Validator) Validate(body io.Reader) (req *domain.GenerationRequest, promptTokens int, err error) {
	data, err := io.ReadAll(io.LimitReader(body, v.maxBodyBytes+1))
	if err != nil {
		return nil, 0, domain.ErrInvalidRequest("failed to read request body").WithCause(err)
	}
	if int64(len(data)) > v.maxBodyBytes {
		return nil, 0, domain.ErrInvalidRequest(fmt.Sprintf("request body exceeds %d bytes", v.maxBodyBytes))
	}

	req, err = decodeRequest(data)
	if err != nil {
		return nil, 0, err
	}

	if v.counter != nil && v.maxPromptTokens > 0 {
		n, err := v.counter.Count(req)
		if err != nil {
			return nil, 0, domain.ErrServer("failed to count prompt tokens").WithCause(err)
		}
		if n > v.maxPromptTokens {
			return nil, n, domain.ErrInvalidRequest(fmt.Sprintf("prompt is %d tokens, limit is %d", n, v.maxPromptTokens))
		}
		promptTokens = n
	}

	return req, promptTokens, nil
}

type rawRequest struct {
	Model     json.RawMessage `json:"model"`
	Messages  json.RawMessage `json:"messages"`
	MaxTokens json.RawMessage `json:"max_tokens"`
}

func decodeRequest(data []byte) (*domain.GenerationRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, domain.ErrInvalidRequest("request body must be a JSON object")
	}

	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.ErrInvalidRequest("invalid JSON body").WithCause(err)
	}

	req := &domain.GenerationRequest{}

	if present(raw.Model) {
		if err := json.Unmarshal(raw.Model, &req.Model); err != nil {
			return nil, domain.ErrInvalidRequest("model must be a string")
		}
	}

	if present(raw.MaxTokens) {
		if err := json.Unmarshal(raw.MaxTokens, &req.MaxTokens); err != nil || req.MaxTokens < 0 {
			return nil, domain.ErrInvalidRequest("max_tokens must be a non-negative integer")
		}
	}

	if !present(raw.Messages) {
		return nil, domain.ErrInvalidRequest("messages is required and must be an array")
	}
	var items []json.RawMessage
	if raw.Messages[0] != '[' || json.Unmarshal(raw.Messages, &items) != nil {
		return nil, domain.ErrInvalidRequest("messages must be an array")
	}
	if len(items) == 0 {
		return nil, domain.ErrInvalidRequest("messages must not be empty")
	}

	req.Messages = make([]domain.Message, 0, len(items))
	for i, item := range items {
		msg, err := decodeMessage(i, item)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, msg)
	}

	return req, nil
}

func decodeMessage(i int, item json.RawMessage) (domain.Message, error) {
	var fields map[string]json.RawMessage
	if len(item) == 0 || item[0] != '{' || json.Unmarshal(item, &fields) != nil {
		return domain.Message{}, domain.ErrInvalidRequest(fmt.Sprintf("messages[%d] must be an object", i))
	}

	var msg domain.Message
	if !nonEmptyString(fields["role"], &msg.Role) {
		return domain.Message{}, domain.ErrInvalidRequest(fmt.Sprintf("messages[%d].role must be a non-empty string", i))
	}
	if !nonEmptyString(fields["content"], &msg.Content) {
		return domain.Message{}, domain.ErrInvalidRequest(fmt.Sprintf("messages[%d].content must be a non-empty string", i))
	}
	return msg, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func nonEmptyString(raw json.RawMessage, dst *string) bool {
	if !present(raw) || raw[0] != '"' {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return *dst != ""
}
