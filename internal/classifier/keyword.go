package classifier

import (
	"math"
	"sort"
	"strings"

	"github.com/liliang-cn/askpaper/internal/taxonomy"
)

// KeywordResult is what the rule-based classifier found in a query
type KeywordResult struct {
	QuerySections     []string
	DetectedSection   string
	SectionConfidence float64

	// GlobalOperations lists every matched operation in table order
	GlobalOperations []string
	GlobalOperation  string
	GlobalConfidence float64

	OutOfContextCategory   string
	OutOfContextConfidence float64
}

// HasSection reports whether any section keyword matched
func (r KeywordResult) HasSection() bool { return r.DetectedSection != "" }

// SectionKeywordClassifier maps a query to paper sections, global operations
// and out-of-context categories by whole-word keyword matching.
type SectionKeywordClassifier struct{}

// NewSectionKeywordClassifier creates a keyword classifier
func NewSectionKeywordClassifier() *SectionKeywordClassifier {
	return &SectionKeywordClassifier{}
}

// Classify matches the query against all three keyword tables
func (c *SectionKeywordClassifier) Classify(query string) KeywordResult {
	q := strings.ToLower(strings.TrimSpace(query))
	var res KeywordResult

	sectionHits := 0
	for _, s := range taxonomy.Sections() {
		matched := taxonomy.MatchWords(q, s.Keywords)
		if len(matched) == 0 {
			continue
		}
		sectionHits += len(matched)
		res.QuerySections = append(res.QuerySections, s.Label)
	}
	if len(res.QuerySections) > 0 {
		sort.Strings(res.QuerySections)
		// Greatest label wins, not the most frequently matched one.
		res.DetectedSection = res.QuerySections[len(res.QuerySections)-1]
		res.SectionConfidence = math.Min(1.0, float64(sectionHits)*0.3)
	}

	for _, g := range taxonomy.GlobalOperations {
		if len(taxonomy.MatchWords(q, g.Keywords)) > 0 {
			res.GlobalOperations = append(res.GlobalOperations, g.Label)
		}
	}
	if len(res.GlobalOperations) > 0 {
		res.GlobalOperation = res.GlobalOperations[0]
		res.GlobalConfidence = math.Min(1.0, float64(len(res.GlobalOperations))*0.4)
	}

	oocHits := 0
	for _, g := range taxonomy.OutOfContext {
		matched := taxonomy.MatchWords(q, g.Keywords)
		if len(matched) == 0 {
			continue
		}
		oocHits += len(matched)
		res.OutOfContextCategory = g.Label
	}
	if oocHits > 0 {
		res.OutOfContextConfidence = math.Min(1.0, float64(oocHits)*0.3)
	}

	return res
}
