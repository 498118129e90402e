package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askpaper/internal/domain"
)

const (
	historyColumns = `id, research_id, question, answer, scope, operation, detected_section, confidence, context_score,
		sources_used, citations, response_time, success, error_message, user_rating, created_at`
	topPapersLimit = 5
)

// HistoryRepository handles query history persistence
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create records a query
func (r *HistoryRepository) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	if entry.SourcesUsed == nil {
		entry.SourcesUsed = []string{}
	}
	if entry.Citations == nil {
		entry.Citations = []domain.Citation{}
	}

	sourcesJSON, _ := json.Marshal(entry.SourcesUsed)
	citationsJSON, _ := json.Marshal(entry.Citations)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO query_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, nullString(entry.ResearchID), entry.Question, entry.Answer, string(entry.Scope), entry.Operation, entry.DetectedSection,
		entry.Confidence, entry.ContextScore, string(sourcesJSON), string(citationsJSON),
		entry.ResponseTime, entry.Success, entry.ErrorMessage, entry.UserRating, entry.CreatedAt)

	return err
}

// Get retrieves one history entry
func (r *HistoryRepository) Get(ctx context.Context, id string) (*domain.HistoryEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM query_history WHERE id = ?`, id)
	entry, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: history entry %s", domain.ErrNotFound, id)
	}
	return entry, err
}

// List returns history entries, newest first
func (r *HistoryRepository) List(ctx context.Context, limit, offset int) ([]*domain.HistoryEntry, error) {
	return r.list(ctx, "", limit, offset)
}

// ListByResearch returns the history entries of one research topic, newest first
func (r *HistoryRepository) ListByResearch(ctx context.Context, researchID string, limit, offset int) ([]*domain.HistoryEntry, error) {
	return r.list(ctx, `WHERE research_id = ?`, limit, offset, researchID)
}

func (r *HistoryRepository) list(ctx context.Context, where string, limit, offset int, args ...any) ([]*domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+historyColumns+` FROM query_history `+where+`
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*domain.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteByResearch removes the history of one research topic and returns
// the number of entries deleted
func (r *HistoryRepository) DeleteByResearch(ctx context.Context, researchID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM query_history WHERE research_id = ?`, researchID)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// Rate sets the user rating of an entry. Ratings run from 1 to 5.
func (r *HistoryRepository) Rate(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrInvalidRequest)
	}

	result, err := r.db.ExecContext(ctx, `UPDATE query_history SET user_rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: history entry %s", domain.ErrNotFound, id)
	}
	return nil
}

// Count returns the number of recorded queries
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_history`).Scan(&count)
	return count, err
}

// Stats aggregates the whole history
func (r *HistoryRepository) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	return r.stats(ctx, "")
}

// StatsByResearch aggregates the history of one research topic
func (r *HistoryRepository) StatsByResearch(ctx context.Context, researchID string) (*domain.HistoryStats, error) {
	return r.stats(ctx, `WHERE research_id = ?`, researchID)
}

func (r *HistoryRepository) stats(ctx context.Context, where string, args ...any) (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{MostReferencedPapers: []domain.PaperReference{}}

	var successful sql.NullInt64
	var avgResponse, avgConfidence sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(success), AVG(response_time), AVG(confidence)
		FROM query_history `+where+`
	`, args...).Scan(&stats.TotalQueries, &successful, &avgResponse, &avgConfidence)
	if err != nil {
		return nil, err
	}
	if stats.TotalQueries == 0 {
		return stats, nil
	}

	stats.SuccessfulQueries = int(successful.Int64)
	stats.FailedQueries = stats.TotalQueries - stats.SuccessfulQueries
	stats.SuccessRate = round2(float64(stats.SuccessfulQueries) / float64(stats.TotalQueries))
	stats.AvgResponseTime = round2(avgResponse.Float64)
	stats.AvgConfidence = round2(avgConfidence.Float64)

	var last time.Time
	err = r.db.QueryRowContext(ctx, `SELECT created_at FROM query_history `+where+` ORDER BY created_at DESC LIMIT 1`, args...).Scan(&last)
	if err != nil {
		return nil, err
	}
	stats.LastQueryTime = &last

	rows, err := r.db.QueryContext(ctx, `
		SELECT j.value, COUNT(*) AS n
		FROM (SELECT sources_used FROM query_history `+where+`) h, json_each(h.sources_used) j
		GROUP BY j.value
		ORDER BY n DESC, j.value ASC
		LIMIT ?
	`, append(args, topPapersLimit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ref domain.PaperReference
		if err := rows.Scan(&ref.Paper, &ref.Count); err != nil {
			return nil, err
		}
		stats.MostReferencedPapers = append(stats.MostReferencedPapers, ref)
	}
	return stats, rows.Err()
}

func scanHistory(row rowScanner) (*domain.HistoryEntry, error) {
	entry := &domain.HistoryEntry{}
	var researchID, answer, scope, operation, section, errMsg, sourcesJSON, citationsJSON sql.NullString
	var rating sql.NullInt64

	err := row.Scan(&entry.ID, &researchID, &entry.Question, &answer, &scope, &operation, &section,
		&entry.Confidence, &entry.ContextScore, &sourcesJSON, &citationsJSON,
		&entry.ResponseTime, &entry.Success, &errMsg, &rating, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.ResearchID = researchID.String
	entry.Answer = answer.String
	entry.Scope = domain.Scope(scope.String)
	entry.Operation = operation.String
	entry.DetectedSection = section.String
	entry.ErrorMessage = errMsg.String
	if rating.Valid {
		v := int(rating.Int64)
		entry.UserRating = &v
	}

	entry.SourcesUsed = []string{}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		json.Unmarshal([]byte(sourcesJSON.String), &entry.SourcesUsed)
	}
	entry.Citations = []domain.Citation{}
	if citationsJSON.Valid && citationsJSON.String != "" {
		json.Unmarshal([]byte(citationsJSON.String), &entry.Citations)
	}
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
