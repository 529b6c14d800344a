package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Difficulty represents problem difficulty level
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Points is the rank score awarded for solving a problem of this difficulty.
// Unknown difficulties count as Easy.
func (d Difficulty) Points() int {
	switch d {
	case DifficultyMedium:
		return 20
	case DifficultyHard:
		return 40
	default:
		return 10
	}
}

// Problem is a coding exercise: statement, examples and starter code per
// language. A delivered Problem is treated as immutable.
type Problem struct {
	ID           int64      `json:"id,omitempty" yaml:"-"`
	Slug         string     `json:"slug" yaml:"slug"`
	Title        string     `json:"title" yaml:"title"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	Description  string     `json:"description" yaml:"description"`
	Topics       []string   `json:"topics,omitempty" yaml:"topics"`
	Examples     []Example  `json:"examples,omitempty" yaml:"examples"`
	CodeSnippets Snippets   `json:"codeSnippets" yaml:"code_snippets"`
}

// Example is a display-only worked example attached to a problem.
type Example struct {
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Text    string `json:"text" yaml:"text"`
}

// ProblemSummary is the list view of a problem.
type ProblemSummary struct {
	ID         int64      `json:"id,omitempty"`
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Topics     []string   `json:"topics,omitempty"`
}

// Summary returns the list view of the problem.
func (p *Problem) Summary() ProblemSummary {
	return ProblemSummary{
		ID:         p.ID,
		Slug:       p.Slug,
		Title:      p.Title,
		Difficulty: p.Difficulty,
		Topics:     p.Topics,
	}
}

// HasTopic reports whether the problem is tagged with topic.
func (s ProblemSummary) HasTopic(topic string) bool {
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Matches reports whether the query matches the title or slug, ignoring case.
func (s ProblemSummary) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Title), q) ||
		strings.Contains(strings.ToLower(s.Slug), q)
}

// Validate checks the fields a workspace relies on.
func (p *Problem) Validate() error {
	if p.Slug == "" {
		return fmt.Errorf("%w: missing slug", ErrInvalidInput)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidInput)
	}
	if len(p.CodeSnippets) == 0 {
		return fmt.Errorf("%s: %w", p.Slug, ErrNoSnippets)
	}
	return nil
}

// Snippet is the starter code for one language.
type Snippet struct {
	Language LanguageID
	Code     string
}

// Snippets is an ordered language to starter-code mapping. It encodes as a
// JSON object (or YAML mapping) and keeps key order when decoded.
type Snippets []Snippet

// Languages returns the snippet languages in insertion order.
func (s Snippets) Languages() []LanguageID {
	langs := make([]LanguageID, len(s))
	for i, sn := range s {
		langs[i] = sn.Language
	}
	return langs
}

// Lookup returns the starter code for lang.
func (s Snippets) Lookup(lang LanguageID) (string, bool) {
	for _, sn := range s {
		if sn.Language == lang {
			return sn.Code, true
		}
	}
	return "", false
}

// Has reports whether a snippet exists for lang.
func (s Snippets) Has(lang LanguageID) bool {
	_, ok := s.Lookup(lang)
	return ok
}

// set replaces an existing entry in place or appends a new one.
func (s *Snippets) set(lang LanguageID, code string) {
	for i := range *s {
		if (*s)[i].Language == lang {
			(*s)[i].Code = code
			return
		}
	}
	*s = append(*s, Snippet{Language: lang, Code: code})
}

// MarshalJSON encodes the snippets as an object in insertion order.
func (s Snippets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sn := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(sn.Language))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(sn.Code)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order. Null code values decode
// as empty strings.
func (s *Snippets) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode snippets: %w", err)
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode snippets: expected object, got %v", tok)
	}

	out := Snippets{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode snippets: %w", err)
		}
		key, _ := keyTok.(string)
		var code *string
		if err := dec.Decode(&code); err != nil {
			return fmt.Errorf("decode snippet %q: %w", key, err)
		}
		value := ""
		if code != nil {
			value = *code
		}
		out.set(LanguageID(key), value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode snippets: %w", err)
	}
	*s = out
	return nil
}

// UnmarshalYAML decodes a mapping node keeping key order.
func (s *Snippets) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: code_snippets must be a mapping", value.Line)
	}
	out := Snippets{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		out.set(LanguageID(value.Content[i].Value), value.Content[i+1].Value)
	}
	*s = out
	return nil
}

// MarshalYAML encodes the snippets as a mapping in insertion order.
func (s Snippets) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, sn := range s {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(sn.Language)},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: sn.Code},
		)
	}
	return node, nil
}
