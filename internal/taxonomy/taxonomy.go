// Package taxonomy holds the canonical paper-section, global-operation and
// out-of-context keyword tables shared by query classification and
// retrieval boosting.
package taxonomy

import (
	"regexp"
	"strings"
)

// Section labels
const (
	Abstract     = "abstract"
	Introduction = "introduction"
	Methodology  = "methodology"
	Results      = "results"
	Conclusion   = "conclusion"
	Discussion   = "discussion"
	FutureWork   = "future_work"
	References   = "references"
)

// Global operation labels
const (
	OpSummary   = "summary"
	OpOverview  = "overview"
	OpTranslate = "translate"
	OpRewrite   = "rewrite"
	OpBullet    = "bullet"
	OpCompare   = "compare"
	OpExplain   = "explain"
)

// Out-of-context categories
const (
	CategoryGreeting = "greeting"
	CategoryCasual   = "casual"
	CategoryMeta     = "meta"
)

// Section describes one paper section. Keywords are matched against query
// text (whole word) and chunk text (substring). Aliases are matched against
// the section label a chunk was tagged with at ingestion.
type Section struct {
	Label       string
	Keywords    []string
	Aliases     []string
	Description string
}

// Group is a labeled keyword list
type Group struct {
	Label    string
	Keywords []string
}

var sections = []Section{
	{
		Label:       Abstract,
		Keywords:    []string{"abstract", "summary", "overview"},
		Aliases:     []string{"abstract", "summary", "overview"},
		Description: "Brief overview of the paper's purpose, methods, and findings",
	},
	{
		Label:       Introduction,
		Keywords:    []string{"introduction", "intro", "background", "related work", "motivation"},
		Aliases:     []string{"introduction", "intro", "related work", "background"},
		Description: "Background, motivation, and related work leading to the research",
	},
	{
		Label:       Methodology,
		Keywords:    []string{"methodology", "method", "approach", "framework", "architecture", "system", "design"},
		Aliases:     []string{"methodology", "method", "approach", "framework", "design", "system", "system design", "implementation"},
		Description: "Research methods, frameworks, and technical approach used",
	},
	{
		Label:       Results,
		Keywords:    []string{"results", "result", "findings", "experiments", "experimental", "evaluation", "performance"},
		Aliases:     []string{"results", "findings", "experiments", "evaluation", "performance"},
		Description: "Experimental findings, data, and quantitative results",
	},
	{
		Label:       Conclusion,
		Keywords:    []string{"conclusion", "conclusions", "summary", "final remarks", "concluding"},
		Aliases:     []string{"conclusion", "conclusions", "summary"},
		Description: "Summary of findings, implications, and future directions",
	},
	{
		Label:       Discussion,
		Keywords:    []string{"discussion", "analysis", "implications", "impact"},
		Aliases:     []string{"discussion", "analysis"},
		Description: "In-depth analysis and interpretation of results",
	},
	{
		Label:       FutureWork,
		Keywords:    []string{"future work", "future research", "future directions", "limitations", "open problems"},
		Aliases:     []string{"future work", "limitations"},
		Description: "Suggested areas for future research and current limitations",
	},
	{
		Label:       References,
		Keywords:    []string{"references", "citations", "bibliography"},
		Aliases:     []string{"references", "citations"},
		Description: "Cited sources and bibliography",
	},
}

// GlobalOperations is ordered; the first matching group wins.
var GlobalOperations = []Group{
	{OpSummary, []string{"summary", "summarize", "summarization", "summed up", "tl;dr"}},
	{OpOverview, []string{"overview", "big picture", "high level"}},
	{OpTranslate, []string{"translate", "translation", "convert", "rephrase"}},
	{OpRewrite, []string{"rewrite", "rewriting", "paraphrase", "simplify"}},
	{OpBullet, []string{"bullet", "bullets", "points", "list"}},
	{OpCompare, []string{"compare", "comparison", "vs", "versus", "difference"}},
	{OpExplain, []string{"explain", "explanation", "clarify", "elaborate"}},
}

// FallbackOperations are the operations a GLOBAL classification may carry,
// in the order the scope classifier checks them when the model is
// unavailable. explain is missing: explaining a section is a local query.
var FallbackOperations = []Group{
	{OpSummary, []string{"summary", "summarize", "summarization", "tl;dr"}},
	{OpCompare, []string{"compare", "comparison", "vs", "versus", "difference", "different"}},
	{OpTranslate, []string{"translate", "translation", "convert", "rephrase"}},
	{OpRewrite, []string{"rewrite", "simplify", "paraphrase", "easier"}},
	{OpOverview, []string{"overview", "big picture", "high level", "general"}},
	{OpBullet, []string{"bullet", "bullets", "points", "list"}},
}

// OutOfContext groups greetings, small talk and questions about the assistant
var OutOfContext = []Group{
	{CategoryGreeting, []string{"hi", "hello", "hey", "greetings", "howdy"}},
	{CategoryCasual, []string{"how are you", "how's it going", "what's up", "thanks", "thank you"}},
	{CategoryMeta, []string{"what can you do", "help", "what is this", "who are you", "tell me about yourself"}},
}

var (
	sectionIndex = map[string]int{}
	wordPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for i, s := range sections {
		sectionIndex[s.Label] = i
		for _, kw := range s.Keywords {
			compile(kw)
		}
	}
	for _, groups := range [][]Group{GlobalOperations, FallbackOperations, OutOfContext} {
		for _, g := range groups {
			for _, kw := range g.Keywords {
				compile(kw)
			}
		}
	}
}

func compile(keyword string) *regexp.Regexp {
	if re, ok := wordPatterns[keyword]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	wordPatterns[keyword] = re
	return re
}

// Sections returns the section table in declaration order
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

// Normalize turns a free-form section name into a table label
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

// Lookup finds a section by label, tolerating case and spaces
func Lookup(name string) (Section, bool) {
	i, ok := sectionIndex[Normalize(name)]
	if !ok {
		return Section{}, false
	}
	return sections[i], true
}

// Description returns what a section typically contains
func Description(name string) string {
	if s, ok := Lookup(name); ok {
		return s.Description
	}
	return "Paper section content"
}

// ContainsWord reports whether keyword occurs in text as a whole word,
// ignoring case.
func ContainsWord(text, keyword string) bool {
	re, ok := wordPatterns[keyword]
	if !ok {
		re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	}
	return re.MatchString(text)
}

// MatchWords returns the keywords that occur in text as whole words
func MatchWords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if ContainsWord(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// CountSubstrings counts how many keywords occur anywhere in text, ignoring case
func CountSubstrings(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// ScopeOperation returns the scope operation named by text, accepting the
// bare label or any of its fallback keywords ("summarize" names summary).
func ScopeOperation(text string) (string, bool) {
	text = strings.ToLower(text)
	for _, g := range FallbackOperations {
		if strings.Contains(text, g.Label) {
			return g.Label, true
		}
	}
	for _, g := range FallbackOperations {
		if len(MatchWords(text, g.Keywords)) > 0 {
			return g.Label, true
		}
	}
	return "", false
}
