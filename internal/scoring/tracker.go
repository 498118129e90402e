// Package scoring estimates how well a set of retrieved chunks supports an
// answer. Every function here is pure.
package scoring

import (
	"github.com/liliang-cn/askpaper/internal/domain"
)

// Confidence thresholds
const (
	HighConfidenceThreshold   = 0.7
	MediumConfidenceThreshold = 0.5
	LowConfidenceThreshold    = 0.3

	// WarningRiskThreshold is the hallucination risk above which a
	// prevention warning is attached to an answer.
	WarningRiskThreshold = 0.6
)

// ContextScore blends mean retrieval similarity, coverage and source
// diversity into a single score in [0,1].
func ContextScore(retrievalScores []float64, queryCoverage float64, sourceDiversity int) (float64, domain.ConfidenceLevel) {
	if len(retrievalScores) == 0 {
		return 0.0, domain.ConfidenceVeryLow
	}

	sum := 0.0
	for _, s := range retrievalScores {
		sum += s
	}
	mean := sum / float64(len(retrievalScores))

	diversityPenalty := 0.0
	switch sourceDiversity {
	case 0:
		diversityPenalty = 0.2
	case 1:
		diversityPenalty = 0.1
	}

	score := clamp01(mean + queryCoverage*0.2 - diversityPenalty)
	return score, Level(score)
}

// Level maps a context score to a confidence tier
func Level(score float64) domain.ConfidenceLevel {
	switch {
	case score >= HighConfidenceThreshold:
		return domain.ConfidenceHigh
	case score >= MediumConfidenceThreshold:
		return domain.ConfidenceMedium
	case score >= LowConfidenceThreshold:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceVeryLow
	}
}

// QueryCoverage is a cheap proxy for how much of the query the hits cover
func QueryCoverage(retrievedCount int) float64 {
	c := float64(retrievedCount) / 5.0
	if c > 1.0 {
		return 1.0
	}
	return c
}

// HallucinationRisk estimates the chance of unsupported claims
func HallucinationRisk(contextScore float64, retrievalCount, uniqueSources int) (float64, domain.RiskLevel) {
	diversityBonus := float64(uniqueSources) * 0.1
	if diversityBonus > 0.3 {
		diversityBonus = 0.3
	}

	lowCountPenalty := 0.0
	switch {
	case retrievalCount < 2:
		lowCountPenalty = 0.2
	case retrievalCount < 5:
		lowCountPenalty = 0.1
	}

	risk := clamp01((1.0 - contextScore) - diversityBonus + lowCountPenalty)

	switch {
	case risk > 0.7:
		return risk, domain.RiskCritical
	case risk > 0.5:
		return risk, domain.RiskHigh
	case risk > 0.3:
		return risk, domain.RiskMedium
	default:
		return risk, domain.RiskLow
	}
}

// ShouldAskForClarification is true when at least two of low score, few
// hits and a short query hold.
func ShouldAskForClarification(contextScore float64, queryLength, retrievalCount int) bool {
	conditions := 0
	if contextScore < LowConfidenceThreshold {
		conditions++
	}
	if retrievalCount < 3 {
		conditions++
	}
	if queryLength < 60 {
		conditions++
	}
	return conditions >= 2
}

// LowConfidenceWarning returns a user-facing warning, or "" above 0.6
func LowConfidenceWarning(score float64) string {
	switch {
	case score < 0.2:
		return "Very Low Confidence: I couldn't find strong relevant information. Please rephrase your question or provide more context."
	case score < 0.4:
		return "Low Confidence: The information I found may not fully address your question. Could you provide more details?"
	case score < 0.6:
		return "Moderate Confidence: I found some relevant information, but it might not be comprehensive. Feel free to ask follow-up questions."
	default:
		return ""
	}
}

// HallucinationPreventionMessage returns the warning attached when risk is
// high, or "" from 0.4 up
func HallucinationPreventionMessage(score float64) string {
	switch {
	case score < 0.2:
		return "I don't have enough information from the papers to answer this question. " +
			"Instead of guessing, I need you to provide more context or clarification. " +
			"What specific aspect would you like me to focus on?"
	case score < 0.4:
		return "I have limited information on this topic in the papers. " +
			"I'll do my best to answer based on what I found, but please note that " +
			"this might not be a complete answer. Would you like me to elaborate on any specific part?"
	default:
		return ""
	}
}

// UniqueSources counts the distinct source papers in a hit list
func UniqueSources(hits []domain.RetrievalHit) int {
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		seen[h.Chunk.SourcePaper] = struct{}{}
	}
	return len(seen)
}

// Assess computes the context assessment for a hit list. Clarification is
// left to the caller.
func Assess(hits []domain.RetrievalHit) domain.ContextAssessment {
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	sources := UniqueSources(hits)

	score, level := ContextScore(scores, QueryCoverage(len(hits)), sources)
	risk, riskLevel := HallucinationRisk(score, len(hits), sources)

	return domain.ContextAssessment{
		ContextScore:      score,
		ConfidenceLevel:   level,
		HallucinationRisk: risk,
		RiskLevel:         riskLevel,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
