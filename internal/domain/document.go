package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentSpec is the caller input to the markup templater.
type DocumentSpec struct {
	Title      string     `json:"title"`
	Objectives Objectives `json:"objectives,omitempty"`
	Content    string     `json:"content"`
}

// Objectives accepts either an ordered list of strings or a free-text blob.
type Objectives struct {
	List   []string
	Text   string
	IsList bool
}

// ObjectivesList builds list-form objectives.
func ObjectivesList(items ...string) Objectives {
	return Objectives{List: items, IsList: true}
}

// ObjectivesText builds free-text objectives.
func ObjectivesText(text string) Objectives {
	return Objectives{Text: text}
}

// Empty reports whether no objectives were supplied.
func (o Objectives) Empty() bool {
	if o.IsList {
		return len(o.List) == 0
	}
	return o.Text == ""
}

func (o *Objectives) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = Objectives{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = ObjectivesText(s)
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("objectives must be a list of strings: %w", err)
		}
		*o = ObjectivesList(items...)
		return nil
	}

	return fmt.Errorf("objectives must be a string or a list of strings")
}

func (o Objectives) MarshalJSON() ([]byte, error) {
	if o.IsList {
		return json.Marshal(o.List)
	}
	return json.Marshal(o.Text)
}

// Artifact describes one compiled document.
type Artifact struct {
	Title      string    `json:"title"`
	FileName   string    `json:"fileName"`
	SourcePath string    `json:"-"`
	OutputPath string    `json:"-"`
	Size       int64     `json:"size"`
	URL        string    `json:"pdfUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}
