package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Unknown is used for a page or source the retrieval backend did not report.
const Unknown = "unknown"

// Passage is one retrieved unit of source text.
type Passage struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Page returns metadata "page" unless it is blank, then "page_number" as
// stored (a zero page_number is kept), or Unknown when neither is set.
func (p Passage) Page() any {
	if v, ok := p.Metadata["page"]; ok && !isBlank(v) {
		return v
	}
	if v, ok := p.Metadata["page_number"]; ok && v != nil {
		return v
	}
	return Unknown
}

// Source returns metadata "source", or Unknown.
func (p Passage) Source() string {
	v, ok := p.Metadata["source"]
	if !ok || isBlank(v) {
		return Unknown
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// isBlank mirrors the loader convention where a zero or empty value means "not set".
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case int:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case float32:
		return t == 0
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

// CitationRecord is the metadata kept for one citation identifier.
type CitationRecord struct {
	Page        any    `json:"page"`
	Snippet     string `json:"snippet"`
	Source      string `json:"source"`
	FullContent string `json:"full_content"`
}

// CitationMap maps citation identifiers (C1, C2, ...) to their records and
// remembers insertion order.
type CitationMap struct {
	ids     []string
	records map[string]CitationRecord
}

func NewCitationMap() *CitationMap {
	return &CitationMap{records: make(map[string]CitationRecord)}
}

// Add inserts a record. Adding an id twice is a programming error.
func (m *CitationMap) Add(id string, record CitationRecord) error {
	if _, exists := m.records[id]; exists {
		return fmt.Errorf("citation %s already present", id)
	}
	m.ids = append(m.ids, id)
	m.records[id] = record
	return nil
}

func (m *CitationMap) Get(id string) (CitationRecord, bool) {
	if m == nil {
		return CitationRecord{}, false
	}
	r, ok := m.records[id]
	return r, ok
}

func (m *CitationMap) Has(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// IDs returns the identifiers in retrieval order.
func (m *CitationMap) IDs() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

func (m *CitationMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// Clone returns a deep copy; nil stays nil.
func (m *CitationMap) Clone() *CitationMap {
	if m == nil {
		return nil
	}
	c := &CitationMap{
		ids:     make([]string, len(m.ids)),
		records: make(map[string]CitationRecord, len(m.records)),
	}
	copy(c.ids, m.ids)
	for k, v := range m.records {
		c.records[k] = v
	}
	return c
}

// Equal reports whether both maps hold the same records in the same order.
func (m *CitationMap) Equal(other *CitationMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m == nil || other == nil {
		return m == other
	}
	for i, id := range m.ids {
		if other.ids[i] != id {
			return false
		}
		a, b := m.records[id], other.records[id]
		if fmt.Sprint(a.Page) != fmt.Sprint(b.Page) || a.Snippet != b.Snippet ||
			a.Source != b.Source || a.FullContent != b.FullContent {
			return false
		}
	}
	return true
}

// MarshalJSON writes a JSON object whose keys keep retrieval order.
func (m *CitationMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.records[id])
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

// UnmarshalJSON reads a JSON object, keeping key order.
func (m *CitationMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("citation map: expected object, got %v", tok)
	}
	m.ids = nil
	m.records = make(map[string]CitationRecord)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("citation map: expected key, got %v", tok)
		}
		var rec CitationRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("citation map: record %s: %w", id, err)
		}
		if n, ok := rec.Page.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				rec.Page = int(i)
			} else {
				rec.Page = n.String()
			}
		}
		if err := m.Add(id, rec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
