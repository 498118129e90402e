package domain

// Scope tells whether a query applies across all papers or to specific content
type Scope string

const (
	ScopeGlobal       Scope = "global"
	ScopeLocal        Scope = "local"
	ScopeOutOfContext Scope = "out_of_context"
)

// ConfidenceLevel buckets a context score
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceVeryLow ConfidenceLevel = "very_low"
)

// RiskLevel buckets a hallucination risk
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// PaperFilter restricts a search to the named papers. A chunk matches when
// its file_name OR its source equals one of the values.
type PaperFilter struct {
	Papers []string
}

// Empty reports whether the filter matches everything
func (f *PaperFilter) Empty() bool {
	return f == nil || len(f.Papers) == 0
}

// RetrievalHit is a chunk returned by the vector index for one query
type RetrievalHit struct {
	Chunk        Chunk   `json:"chunk"`
	Score        float64 `json:"score"`
	SectionBoost float64 `json:"section_boost,omitempty"`
}

// QueryClassification is the result of scope classification
type QueryClassification struct {
	Scope           Scope   `json:"scope"`
	Operation       string  `json:"operation,omitempty"`
	DetectedSection string  `json:"detected_section,omitempty"`
	Category        string  `json:"category,omitempty"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
}

// ContextAssessment summarizes how well a hit list supports an answer
type ContextAssessment struct {
	ContextScore        float64         `json:"context_score"`
	ConfidenceLevel     ConfidenceLevel `json:"confidence_level"`
	HallucinationRisk   float64         `json:"hallucination_risk"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	ClarificationNeeded bool            `json:"clarification_needed"`
}

// Citation references a retrieved chunk used in an answer
type Citation struct {
	PaperTitle     string  `json:"paper_title"`
	Section        string  `json:"section"`
	Page           int     `json:"page"`
	RelevanceScore float64 `json:"relevance_score"`
}

// GroundedAnswer is the structured output of the answer backend
type GroundedAnswer struct {
	Answer            string     `json:"answer"`
	Citations         []Citation `json:"citations"`
	SourcesUsed       []string   `json:"sources_used"`
	Confidence        float64    `json:"confidence"`
	FoundRelevantInfo bool       `json:"found_relevant_info"`
}

// QueryRequest is the request to ask a question
type QueryRequest struct {
	Question    string   `json:"question" binding:"required"`
	PaperFilter []string `json:"paper_filter,omitempty"`
	ResearchID  string   `json:"research_id,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// QueryResponse is the final answer artifact
type QueryResponse struct {
	Answer              string          `json:"answer"`
	Citations           []Citation      `json:"citations"`
	SourcesUsed         []string        `json:"sources_used"`
	Confidence          float64         `json:"confidence"`
	Scope               Scope           `json:"scope"`
	Operation           string          `json:"operation,omitempty"`
	Category            string          `json:"category,omitempty"`
	DetectedSection     string          `json:"detected_section,omitempty"`
	ContextScore        float64         `json:"context_score"`
	ConfidenceLevel     ConfidenceLevel `json:"confidence_level"`
	HallucinationRisk   float64         `json:"hallucination_risk"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	ClarificationNeeded bool            `json:"clarification_needed"`
	ClarificationPrompt string          `json:"clarification_prompt,omitempty"`
	Warning             string          `json:"warning,omitempty"`
	FoundRelevantInfo   bool            `json:"found_relevant_info"`
	RetrievalCount      int             `json:"retrieval_count"`
	ProcessingTime      float64         `json:"processing_time"`
}
