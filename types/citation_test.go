package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassage_Page(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		want     any
	}{
		{"page wins", map[string]any{"page": 5, "page_number": 9}, 5},
		{"page_number fallback", map[string]any{"page_number": 9}, 9},
		{"zero page falls through", map[string]any{"page": 0, "page_number": 3}, 3},
		{"zero page_number kept", map[string]any{"page_number": 0}, 0},
		{"zero page and zero page_number", map[string]any{"page": 0, "page_number": 0}, 0},
		{"nil page_number", map[string]any{"page_number": nil}, Unknown},
		{"string page", map[string]any{"page": "iv"}, "iv"},
		{"blank string page", map[string]any{"page": "  "}, Unknown},
		{"nil metadata", nil, Unknown},
		{"no keys", map[string]any{"source": "a.pdf"}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Passage{Content: "x", Metadata: tt.metadata}
			assert.Equal(t, tt.want, p.Page())
		})
	}
}

func TestPassage_Source(t *testing.T) {
	assert.Equal(t, "paper.pdf", Passage{Metadata: map[string]any{"source": "paper.pdf"}}.Source())
	assert.Equal(t, Unknown, Passage{}.Source())
	assert.Equal(t, Unknown, Passage{Metadata: map[string]any{"source": ""}}.Source())
	assert.Equal(t, "42", Passage{Metadata: map[string]any{"source": 42}}.Source())
}

func TestCitationMap_AddRejectsDuplicate(t *testing.T) {
	m := NewCitationMap()
	require.NoError(t, m.Add("C1", CitationRecord{Page: 1}))
	assert.Error(t, m.Add("C1", CitationRecord{Page: 2}))
	assert.Equal(t, 1, m.Len())
}

func TestCitationMap_JSONKeepsOrder(t *testing.T) {
	m := NewCitationMap()
	for _, id := range []string{"C1", "C2", "C10", "C3"} {
		require.NoError(t, m.Add(id, CitationRecord{Page: 7, Source: "s", Snippet: id, FullContent: id}))
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t,
		`{"C1":{"page":7,"snippet":"C1","source":"s","full_content":"C1"},`+
			`"C2":{"page":7,"snippet":"C2","source":"s","full_content":"C2"},`+
			`"C10":{"page":7,"snippet":"C10","source":"s","full_content":"C10"},`+
			`"C3":{"page":7,"snippet":"C3","source":"s","full_content":"C3"}}`,
		string(data))

	var decoded CitationMap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"C1", "C2", "C10", "C3"}, decoded.IDs())
	assert.True(t, m.Equal(&decoded))
	rec, ok := decoded.Get("C10")
	require.True(t, ok)
	assert.Equal(t, 7, rec.Page)
}

func TestCitationMap_NilMarshalsNull(t *testing.T) {
	resp := QAResponse{Answer: "a"}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"a","context":"","citations":null}`, string(data))

	resp.Citations = NewCitationMap()
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"a","context":"","citations":{}}`, string(data))
}

func TestCitationMap_CloneIsIndependent(t *testing.T) {
	m := NewCitationMap()
	require.NoError(t, m.Add("C1", CitationRecord{Page: 1}))
	c := m.Clone()
	require.NoError(t, c.Add("C2", CitationRecord{Page: 2}))

	assert.Equal(t, 1, m.Len())
	assert.False(t, m.Equal(c))
	assert.Nil(t, (*CitationMap)(nil).Clone())
}

func TestDocument_ToPassage(t *testing.T) {
	doc := Document{
		ID:      "abc",
		Content: "HNSW provides fast search.",
		Metadata: Metadata{
			Title:  "paper.pdf",
			Custom: map[string]string{"page": "5", "distance": "0.120000"},
		},
	}
	p := doc.ToPassage()
	assert.Equal(t, 5, p.Page())
	assert.Equal(t, "paper.pdf", p.Source())
	assert.Equal(t, "0.120000", p.Metadata["distance"])
}
