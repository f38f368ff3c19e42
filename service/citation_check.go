package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tieubaoca/citebot/types"
)

var (
	inlineCitationPattern = regexp.MustCompile(`\[(C\d+)\]`)
	contextHeaderPattern  = regexp.MustCompile(`(?m)^\[(C\d+)\] Chunk from page `)
	citationIDPattern     = regexp.MustCompile(`^C\d+$`)
)

// CitationReport compares the identifiers cited in a text with a citation map.
type CitationReport struct {
	Referenced []string `json:"referenced"`
	Dangling   []string `json:"dangling"`
	Unused     []string `json:"unused"`
}

// Consistent is true when every referenced identifier has a record.
func (r CitationReport) Consistent() bool {
	return len(r.Dangling) == 0
}

// ValidCitationID reports whether id has the C<n> shape.
func ValidCitationID(id string) bool {
	return citationIDPattern.MatchString(id)
}

// ExtractCitationIDs returns the distinct [C<n>] markers of text in order of
// first appearance.
func ExtractCitationIDs(text string) []string {
	return distinctMatches(inlineCitationPattern, text)
}

// ContextCitationIDs returns the identifiers named by the chunk headers of a
// serialized context.
func ContextCitationIDs(context string) []string {
	return distinctMatches(contextHeaderPattern, context)
}

func distinctMatches(re *regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}

// CheckCitations reports dangling references (cited, no record) and unused
// records (recorded, never cited). It never fails.
func CheckCitations(answer string, citations *types.CitationMap) CitationReport {
	report := CitationReport{Referenced: ExtractCitationIDs(answer)}
	cited := make(map[string]bool, len(report.Referenced))
	for _, id := range report.Referenced {
		cited[id] = true
		if !citations.Has(id) {
			report.Dangling = append(report.Dangling, id)
		}
	}
	for _, id := range citations.IDs() {
		if !cited[id] {
			report.Unused = append(report.Unused, id)
		}
	}
	return report
}

// ValidateCitations returns a MalformedCitationFailure when answer cites an
// identifier that has no record in citations.
func ValidateCitations(answer string, citations *types.CitationMap) error {
	report := CheckCitations(answer, citations)
	if report.Consistent() {
		return nil
	}
	return &StageError{
		Kind:  KindMalformedCitation,
		Stage: stageVerification,
		Err:   fmt.Errorf("answer cites unknown identifiers %s", strings.Join(report.Dangling, ", ")),
	}
}

// ValidateCitationMap checks that every key has the C<n> shape and that the
// keys match the headers of context exactly.
func ValidateCitationMap(context string, citations *types.CitationMap) error {
	ids := citations.IDs()
	for _, id := range ids {
		if !ValidCitationID(id) {
			return fmt.Errorf("invalid citation id %q", id)
		}
	}
	headers := ContextCitationIDs(context)
	if len(headers) != len(ids) {
		return fmt.Errorf("context names %d citations, map holds %d", len(headers), len(ids))
	}
	for i := range ids {
		if headers[i] != ids[i] {
			return fmt.Errorf("context citation %s does not match map entry %s", headers[i], ids[i])
		}
	}
	return nil
}
