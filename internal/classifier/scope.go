package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/taxonomy"
	"go.uber.org/zap"
)

const scopePrompt = `Analyze the following research paper query and determine its scope.

Query: "%s"

Respond with ONLY one of these formats:
1. For queries that need a GLOBAL operation (across all papers):
   SCOPE: global
   OPERATION: [summary/translate/rewrite/compare/overview/bullet]
   REASON: [brief reason]

2. For queries about SPECIFIC content (local/section-specific):
   SCOPE: local
   REASON: [brief reason]

3. For casual/non-academic queries:
   SCOPE: out_of_context
   REASON: [brief reason]

Examples:
- "Summarize all papers" -> SCOPE: global, OPERATION: summary
- "Compare methodology of all papers" -> SCOPE: global, OPERATION: compare
- "What is the abstract of paper 1?" -> SCOPE: local
- "Explain the results section" -> SCOPE: local
- "Hello, how are you?" -> SCOPE: out_of_context
- "What machine learning algorithms were used?" -> SCOPE: local

Determine the scope accurately:`

// ScopeClassifier labels a query GLOBAL, LOCAL or OUT_OF_CONTEXT with a
// generative model and falls back to keyword rules when the model fails.
type ScopeClassifier struct {
	backend  domain.Completer
	keywords *SectionKeywordClassifier
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScopeClassifier creates a scope classifier. A nil backend always
// takes the keyword path.
func NewScopeClassifier(backend domain.Completer, timeout time.Duration, logger *zap.Logger) *ScopeClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScopeClassifier{
		backend:  backend,
		keywords: NewSectionKeywordClassifier(),
		timeout:  timeout,
		logger:   logger,
	}
}

// Classify never fails; an unavailable backend selects the keyword fallback.
func (c *ScopeClassifier) Classify(ctx context.Context, query string) domain.QueryClassification {
	result, err := c.ClassifyRemote(ctx, query)
	if err != nil {
		c.logger.Warn("Scope classification unavailable, using keyword fallback",
			zap.String("query", query),
			zap.Error(err),
		)
		return c.Fallback(query)
	}
	return result
}

// ClassifyRemote makes exactly one bounded model call. Any failure is
// reported as ErrClassificationUnavailable.
func (c *ScopeClassifier) ClassifyRemote(ctx context.Context, query string) (domain.QueryClassification, error) {
	if c.backend == nil {
		return domain.QueryClassification{}, fmt.Errorf("%w: no backend configured", domain.ErrClassificationUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.backend.Complete(ctx, domain.CompletionRequest{
		Prompt:      fmt.Sprintf(scopePrompt, query),
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return domain.QueryClassification{}, fmt.Errorf("%w: %v", domain.ErrClassificationUnavailable, err)
	}

	result, err := ParseScopeResponse(text)
	if err != nil {
		return domain.QueryClassification{}, err
	}
	c.logger.Debug("Scope classified by model",
		zap.String("scope", string(result.Scope)),
		zap.String("operation", result.Operation),
	)
	return result, nil
}

// ParseScopeResponse reads SCOPE/OPERATION/REASON lines in any order or case
func ParseScopeResponse(text string) (domain.QueryClassification, error) {
	result := domain.QueryClassification{Confidence: 0.9}
	found := false

	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)

		if v, ok := valueAfter(line, lower, "scope:"); ok {
			v = strings.ToLower(v)
			switch {
			case strings.Contains(v, "global"):
				result.Scope = domain.ScopeGlobal
				found = true
			case strings.Contains(v, "local"):
				result.Scope = domain.ScopeLocal
				found = true
			case strings.Contains(v, "out_of_context"), strings.Contains(v, "out of context"):
				result.Scope = domain.ScopeOutOfContext
				found = true
			}
		}

		if v, ok := valueAfter(line, lower, "operation:"); ok {
			if op, ok := taxonomy.ScopeOperation(v); ok {
				result.Operation = op
			}
		}

		if v, ok := valueAfter(line, lower, "reason:"); ok {
			result.Reason = strings.TrimSpace(v)
		}
	}

	if !found {
		return domain.QueryClassification{}, fmt.Errorf("%w: no scope in model response", domain.ErrClassificationUnavailable)
	}
	if result.Scope != domain.ScopeGlobal {
		result.Operation = ""
	}
	return result, nil
}

// valueAfter returns the text after key, matching key case-insensitively
func valueAfter(line, lower, key string) (string, bool) {
	i := strings.Index(lower, key)
	if i < 0 {
		return "", false
	}
	src := line
	if len(lower) != len(line) {
		src = lower
	}
	rest := src[i+len(key):]
	// Keep one-line answers like "SCOPE: global, OPERATION: summary" apart.
	if j := strings.Index(strings.ToLower(rest), ","); j >= 0 && key != "reason:" {
		rest = rest[:j]
	}
	return strings.Trim(strings.TrimSpace(rest), "*[] "), true
}

// Fallback classifies with keyword rules only
func (c *ScopeClassifier) Fallback(query string) domain.QueryClassification {
	res := c.keywords.Classify(query)

	if res.OutOfContextCategory != "" {
		return domain.QueryClassification{
			Scope:      domain.ScopeOutOfContext,
			Category:   res.OutOfContextCategory,
			Confidence: 0.8,
			Reason:     "Detected casual/greeting query",
		}
	}

	for _, g := range taxonomy.FallbackOperations {
		if len(taxonomy.MatchWords(query, g.Keywords)) == 0 {
			continue
		}
		c.logger.Info("Fallback detected global operation", zap.String("operation", g.Label))
		return domain.QueryClassification{
			Scope:      domain.ScopeGlobal,
			Operation:  g.Label,
			Confidence: 0.75,
			Reason:     fmt.Sprintf("Detected %s operation keyword", g.Label),
		}
	}

	return domain.QueryClassification{
		Scope:      domain.ScopeLocal,
		Confidence: 0.7,
		Reason:     "No global operation detected, treating as local query",
	}
}
