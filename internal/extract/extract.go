// Package extract pulls reply text out of provider response bodies whose
// shape is not fully known in advance.
package extract

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a body is not valid JSON.
var ErrMalformed = errors.New("malformed response body")

// Paths is an ordered list of gjson paths tried against a response.
type Paths []string

// Text returns the first path in order that resolves to a non-empty string.
// A valid body with no matching path yields "" and no error.
func (p Paths) Text(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrMalformed
	}

	for _, path := range p {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str, nil
		}
	}
	return "", nil
}
