package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/citebot/types"
)

func citationMap(t *testing.T, ids ...string) *types.CitationMap {
	t.Helper()
	m := types.NewCitationMap()
	for _, id := range ids {
		require.NoError(t, m.Add(id, types.CitationRecord{Page: 1, Source: "s", Snippet: id, FullContent: id}))
	}
	return m
}

func TestCheckCitations_DanglingAndUnused(t *testing.T) {
	report := CheckCitations("HNSW is fast [C1][C2]. LSH is simple [C4].", citationMap(t, "C1", "C2", "C3"))

	assert.Equal(t, []string{"C1", "C2", "C4"}, report.Referenced)
	assert.Equal(t, []string{"C4"}, report.Dangling)
	assert.Equal(t, []string{"C3"}, report.Unused)
	assert.False(t, report.Consistent())
}

func TestCheckCitations_NilMapAndNoCitations(t *testing.T) {
	report := CheckCitations("No citations here.", nil)
	assert.Empty(t, report.Referenced)
	assert.Empty(t, report.Dangling)
	assert.Empty(t, report.Unused)
	assert.True(t, report.Consistent())

	report = CheckCitations("Claim [C1].", nil)
	assert.Equal(t, []string{"C1"}, report.Dangling)
}

func TestExtractCitationIDs(t *testing.T) {
	assert.Equal(t, []string{"C2", "C1", "C10"}, ExtractCitationIDs("a [C2] b [C1][C2] c [C10] [c3] [C] (C4)"))
}

func TestValidCitationID(t *testing.T) {
	assert.True(t, ValidCitationID("C1"))
	assert.True(t, ValidCitationID("C42"))
	assert.False(t, ValidCitationID("C"))
	assert.False(t, ValidCitationID("c1"))
	assert.False(t, ValidCitationID("C1a"))
}

func TestValidateCitations(t *testing.T) {
	citations := citationMap(t, "C1", "C2")

	assert.NoError(t, ValidateCitations("Fine [C1].", citations))
	assert.NoError(t, ValidateCitations("Nothing cited.", citations))

	err := ValidateCitations("Bad [C1][C7].", citations)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedCitationFailure))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformedCitation, kind)
	assert.Contains(t, err.Error(), "C7")
}

func TestValidateCitationMap(t *testing.T) {
	context := "[C1] Chunk from page 1:\na\n\n[C2] Chunk from page 2:\nb"
	assert.NoError(t, ValidateCitationMap(context, citationMap(t, "C1", "C2")))
	assert.Error(t, ValidateCitationMap(context, citationMap(t, "C1")))
	assert.Error(t, ValidateCitationMap(context, citationMap(t, "C2", "C1")))
	assert.Error(t, ValidateCitationMap("[X1] Chunk from page 1:\na", citationMap(t, "X1")))
}
