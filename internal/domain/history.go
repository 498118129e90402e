package domain

import "time"

// HistoryEntry is a flattened record of one answered (or failed) query
type HistoryEntry struct {
	ID              string     `json:"id"`
	ResearchID      string     `json:"research_id,omitempty"`
	Question        string     `json:"question"`
	Answer          string     `json:"answer"`
	Scope           Scope      `json:"scope,omitempty"`
	Operation       string     `json:"operation,omitempty"`
	DetectedSection string     `json:"detected_section,omitempty"`
	Confidence      float64    `json:"confidence"`
	ContextScore    float64    `json:"context_score"`
	SourcesUsed     []string   `json:"sources_used"`
	Citations       []Citation `json:"citations"`
	ResponseTime    float64    `json:"response_time"`
	Success         bool       `json:"success"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	UserRating      *int       `json:"user_rating,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PaperReference counts how often a paper was used in answers
type PaperReference struct {
	Paper string `json:"paper"`
	Count int    `json:"count"`
}

// HistoryStats aggregates the query history
type HistoryStats struct {
	TotalQueries         int              `json:"total_queries"`
	SuccessfulQueries    int              `json:"successful_queries"`
	FailedQueries        int              `json:"failed_queries"`
	SuccessRate          float64          `json:"success_rate"`
	AvgResponseTime      float64          `json:"avg_response_time"`
	AvgConfidence        float64          `json:"avg_confidence"`
	LastQueryTime        *time.Time       `json:"last_query_time,omitempty"`
	MostReferencedPapers []PaperReference `json:"most_referenced_papers"`
}

// RateRequest is the request to rate a history entry
type RateRequest struct {
	Rating int `json:"rating" binding:"required"`
}

// Stats represents system statistics
type Stats struct {
	TotalPapers     int `json:"total_papers"`
	TotalChunks     int `json:"total_chunks"`
	TotalResearches int `json:"total_researches"`
	TotalQueries    int `json:"total_queries"`
}
