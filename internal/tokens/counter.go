// Package tokens estimates prompt sizes for the optional prompt budget.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
)

// Chat framing overhead used by OpenAI's accounting:
// 3 tokens per message, 1 for the role, 3 for assistant priming.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	primingTokens    = 3
)

// Counter counts the prompt tokens of a generation request.
type Counter interface {
	Count(req *domain.GenerationRequest) (int, error)
}

// TiktokenCounter counts tokens with tiktoken encodings. Models it does not
// recognise (including local model names) are counted with cl100k_base.
type TiktokenCounter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewTiktokenCounter creates a counter with an empty codec cache.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

func (c *TiktokenCounter) codec(model string) (tokenizer.Codec, error) {
	encoding := encodingFor(model)

	c.mu.RLock()
	if cached, ok := c.codecs[encoding]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.mu.Lock()
	c.codecs[encoding] = codec
	c.mu.Unlock()

	return codec, nil
}

// Count implements Counter.
func (c *TiktokenCounter) Count(req *domain.GenerationRequest) (int, error) {
	codec, err := c.codec(req.Model)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range req.Messages {
		total += tokensPerMessage + tokensPerRole
		ids, _, err := codec.Encode(msg.Content)
		if err != nil {
			return 0, err
		}
		total += len(ids)
	}
	return total + primingTokens, nil
}

// encodingFor maps a model name onto its tiktoken encoding.
//
//   - O200kBase: gpt-4o, gpt-4.1, gpt-5, o-series
//   - Cl100kBase: gpt-4, gpt-3.5-turbo and everything unknown
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// NewCounter returns the counter named by the limits.token_counter setting.
func NewCounter(name string) (Counter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tiktoken":
		return NewTiktokenCounter(), nil
	case "estimate":
		return NewEstimator(), nil
	default:
		return nil, fmt.Errorf("unknown token counter %q", name)
	}
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count implements Counter.
func (e *Estimator) Count(req *domain.GenerationRequest) (int, error) {
	chars := 0
	for _, msg := range req.Messages {
		chars += len(msg.Role) + len(msg.Content) + 4
	}
	return int(float64(chars) / e.CharsPerToken), nil
}
