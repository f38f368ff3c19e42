package service

import (
	"fmt"
	"strings"

	"github.com/tieubaoca/citebot/types"
)

// SnippetLength is the number of characters kept in a citation snippet.
const SnippetLength = 100

// CitationID returns the identifier of the n-th (1-based) retrieved passage.
func CitationID(n int) string {
	return fmt.Sprintf("C%d", n)
}

// SerializeChunks renders passages as plain "Chunk N (page=X):" blocks with
// no citation identifiers.
func SerializeChunks(passages []types.Passage) string {
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		header := fmt.Sprintf("Chunk %d (page=%v):", i+1, p.Page())
		parts = append(parts, header+"\n"+neutralizeMarkers(strings.TrimSpace(p.Content)))
	}
	return strings.Join(parts, "\n\n")
}

// neutralizeMarkers rewrites [C<n>] markers found in passage text to (C<n>)
// so the only identifiers in a serialized context are the ones assigned here.
func neutralizeMarkers(content string) string {
	return inlineCitationPattern.ReplaceAllString(content, "($1)")
}

// SerializeChunksWithCitations assigns C1, C2, ... in input order and returns
// the context text embedding those identifiers together with the citation map.
// An empty input yields an empty text and an empty map. Records keep the
// passage text as retrieved; only the context text has its markers rewritten.
func SerializeChunksWithCitations(passages []types.Passage) (string, *types.CitationMap) {
	citations := types.NewCitationMap()
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		id := CitationID(i + 1)
		page := p.Page()
		content := strings.TrimSpace(p.Content)

		// ids are generated here and are unique, Add cannot fail
		_ = citations.Add(id, types.CitationRecord{
			Page:        page,
			Snippet:     Snippet(content),
			Source:      p.Source(),
			FullContent: content,
		})

		header := fmt.Sprintf("[%s] Chunk from page %v:", id, page)
		parts = append(parts, header+"\n"+neutralizeMarkers(content))
	}
	return strings.Join(parts, "\n\n"), citations
}

// Snippet keeps the first SnippetLength characters of content and appends
// "..." when something was cut.
func Snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= SnippetLength {
		return content
	}
	return string(runes[:SnippetLength]) + "..."
}
