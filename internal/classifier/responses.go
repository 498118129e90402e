package classifier

import (
	"fmt"

	"github.com/liliang-cn/askpaper/internal/taxonomy"
)

// Clarification issues
const (
	IssueLowContext = "low_context"
	IssueAmbiguous  = "ambiguous"
	IssueNoContext  = "no_context"
)

var clarificationPrompts = map[string]string{
	IssueLowContext: "I couldn't find enough relevant information in the papers. Could you provide more details about what you're looking for? For example, which paper or which section?",
	IssueAmbiguous:  "Your query seems a bit unclear. Could you be more specific? You can ask about sections like abstract, introduction, methodology, results, or conclusion.",
	IssueNoContext:  "This question doesn't seem to be about the research papers. I'm here to help you understand the content of the uploaded papers. Feel free to ask questions about their methodology, results, conclusions, or other sections!",
}

var categoryResponses = map[string]string{
	taxonomy.CategoryGreeting: "Hi! I'm a research assistant here to help you understand the uploaded research papers. You can ask me about specific sections, request summaries, or get explanations about concepts. What would you like to know?",
	taxonomy.CategoryCasual:   "I'm doing well, thanks for asking! I'm ready to help you explore the research papers. What would you like to know about them?",
	taxonomy.CategoryMeta: "I'm a research paper assistant powered by retrieval augmented generation. I can help you:\n" +
		"- Find information in specific sections (abstract, methodology, results, etc.)\n" +
		"- Summarize papers or specific sections\n" +
		"- Compare content across papers\n" +
		"- Explain complex concepts\n\n" +
		"Just upload your research papers and ask away!",
}

// CategoryResponse returns the canned answer for an out-of-context category
func CategoryResponse(category string) string {
	if r, ok := categoryResponses[category]; ok {
		return r
	}
	return "How can I help you with your research papers?"
}

// ClarificationPrompt returns the follow-up question for an issue
func ClarificationPrompt(issue string) string {
	if p, ok := clarificationPrompts[issue]; ok {
		return p
	}
	return clarificationPrompts[IssueLowContext]
}

// SectionClarificationPrompt asks for more detail about a specific section
func SectionClarificationPrompt(section string) string {
	return fmt.Sprintf("%s The %s section usually covers: %s.",
		ClarificationPrompt(IssueLowContext), taxonomy.Normalize(section), taxonomy.Description(section))
}
