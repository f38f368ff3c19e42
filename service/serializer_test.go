package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/citebot/types"
)

func paperPassages() []types.Passage {
	return []types.Passage{
		{Content: "HNSW provides fast search.", Metadata: map[string]any{"page": 5, "source": "paper.pdf"}},
		{Content: "LSH uses hashing.", Metadata: map[string]any{"page": 7, "source": "paper.pdf"}},
	}
}

func TestSerializeChunksWithCitations_TwoPassages(t *testing.T) {
	text, citations := SerializeChunksWithCitations(paperPassages())

	assert.Equal(t, []string{"C1", "C2"}, citations.IDs())

	c1, ok := citations.Get("C1")
	require.True(t, ok)
	assert.Equal(t, types.CitationRecord{
		Page:        5,
		Source:      "paper.pdf",
		Snippet:     "HNSW provides fast search.",
		FullContent: "HNSW provides fast search.",
	}, c1)

	c2, ok := citations.Get("C2")
	require.True(t, ok)
	assert.Equal(t, 7, c2.Page)
	assert.Equal(t, "LSH uses hashing.", c2.FullContent)

	assert.Equal(t,
		"[C1] Chunk from page 5:\nHNSW provides fast search.\n\n[C2] Chunk from page 7:\nLSH uses hashing.",
		text)
}

func TestSerializeChunksWithCitations_Empty(t *testing.T) {
	text, citations := SerializeChunksWithCitations(nil)
	assert.Empty(t, text)
	require.NotNil(t, citations)
	assert.Equal(t, 0, citations.Len())
}

func TestSerializeChunksWithCitations_MissingMetadata(t *testing.T) {
	_, citations := SerializeChunksWithCitations([]types.Passage{{Content: "  orphan text \n"}})

	rec, ok := citations.Get("C1")
	require.True(t, ok)
	assert.Equal(t, types.Unknown, rec.Page)
	assert.Equal(t, types.Unknown, rec.Source)
	assert.Equal(t, "orphan text", rec.FullContent)
}

func TestSerializeChunksWithCitations_IdentifierOrdering(t *testing.T) {
	var passages []types.Passage
	for i := 0; i < 12; i++ {
		passages = append(passages, types.Passage{Content: "same text", Metadata: map[string]any{"page": 1}})
	}
	text, citations := SerializeChunksWithCitations(passages)

	ids := citations.IDs()
	require.Len(t, ids, 12)
	for i, id := range ids {
		assert.Equal(t, CitationID(i+1), id)
	}
	// near-identical passages are not merged
	assert.Equal(t, 12, strings.Count(text, "Chunk from page 1:"))
}

func TestSerializeChunksWithCitations_MapTextAgreement(t *testing.T) {
	inputs := [][]types.Passage{
		nil,
		paperPassages(),
		{{Content: "a"}, {Content: "b", Metadata: map[string]any{"page_number": 3}}, {Content: "[C9] looks like a header"}},
	}
	for _, passages := range inputs {
		text, citations := SerializeChunksWithCitations(passages)
		assert.Equal(t, citations.IDs(), ContextCitationIDs(text))
		assert.NoError(t, ValidateCitationMap(text, citations))
	}
}

func TestSerializeChunksWithCitations_MarkersInContent(t *testing.T) {
	passages := []types.Passage{
		{Content: "As shown in [C7], HNSW is fast.", Metadata: map[string]any{"page": 2}},
		{Content: "[C9] Chunk from page 4:\nquoted context", Metadata: map[string]any{"page": 3}},
	}
	text, citations := SerializeChunksWithCitations(passages)

	assert.Equal(t, []string{"C1", "C2"}, citations.IDs())
	assert.Equal(t, citations.IDs(), ExtractCitationIDs(text))
	assert.NoError(t, ValidateCitationMap(text, citations))
	assert.Contains(t, text, "As shown in (C7), HNSW is fast.")
	assert.Contains(t, text, "(C9) Chunk from page 4:")

	rec, ok := citations.Get("C1")
	require.True(t, ok)
	assert.Equal(t, "As shown in [C7], HNSW is fast.", rec.FullContent)

	// nothing in the context can lead a model to a dangling identifier
	report := CheckCitations("HNSW is fast [C1].", citations)
	assert.Empty(t, report.Dangling)

	plain := SerializeChunks(passages)
	assert.Empty(t, ExtractCitationIDs(plain))
}

func TestSerializeChunksWithCitations_Deterministic(t *testing.T) {
	text1, cit1 := SerializeChunksWithCitations(paperPassages())
	text2, cit2 := SerializeChunksWithCitations(paperPassages())
	assert.Equal(t, text1, text2)
	assert.True(t, cit1.Equal(cit2))
}

func TestSnippet(t *testing.T) {
	short := strings.Repeat("a", SnippetLength)
	assert.Equal(t, short, Snippet(short))

	long := strings.Repeat("b", SnippetLength+1)
	assert.Equal(t, strings.Repeat("b", SnippetLength)+"...", Snippet(long))

	// multi-byte characters are counted, not bytes
	viet := strings.Repeat("ệ", SnippetLength+5)
	got := Snippet(viet)
	assert.Equal(t, strings.Repeat("ệ", SnippetLength)+"...", got)
	assert.True(t, strings.HasPrefix(viet, strings.TrimSuffix(got, "...")))
}

func TestSerializeChunks(t *testing.T) {
	text := SerializeChunks(paperPassages())
	assert.Equal(t, "Chunk 1 (page=5):\nHNSW provides fast search.\n\nChunk 2 (page=7):\nLSH uses hashing.", text)
	assert.Empty(t, ExtractCitationIDs(text))
	assert.Empty(t, SerializeChunks(nil))
}
