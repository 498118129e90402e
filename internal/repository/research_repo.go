package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askpaper/internal/domain"
)

const researchColumns = `id, name, description, tags, is_archived, created_at, updated_at`

// ResearchRepository handles research topic persistence
type ResearchRepository struct {
	db *DB
}

// NewResearchRepository creates a new research repository
func NewResearchRepository(db *DB) *ResearchRepository {
	return &ResearchRepository{db: db}
}

// Create stores a research topic with its papers. Every paper must already
// be ingested.
func (r *ResearchRepository) Create(ctx context.Context, research *domain.Research) error {
	if research.ID == "" {
		research.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	research.CreatedAt = now
	research.UpdatedAt = now
	if err := normalizeResearch(research); err != nil {
		return err
	}

	tagsJSON, _ := json.Marshal(research.Tags)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO researches (`+researchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, research.ID, research.Name, research.Description, string(tagsJSON),
		research.IsArchived, research.CreatedAt, research.UpdatedAt)
	if err != nil {
		return err
	}

	if err := replacePapers(ctx, tx, research.ID, research.Papers); err != nil {
		return err
	}
	return tx.Commit()
}

// Get retrieves a research topic by ID
func (r *ResearchRepository) Get(ctx context.Context, id string) (*domain.Research, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+researchColumns+` FROM researches WHERE id = ?`, id)
	research, err := scanResearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: research %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	papers, err := r.papersByResearch(ctx, `WHERE research_id = ?`, id)
	if err != nil {
		return nil, err
	}
	research.Papers = papers[id]
	if research.Papers == nil {
		research.Papers = []string{}
	}
	return research, nil
}

// List retrieves research topics, newest first. Archived topics are left
// out unless includeArchived is set.
func (r *ResearchRepository) List(ctx context.Context, includeArchived bool) ([]*domain.Research, error) {
	query := `SELECT ` + researchColumns + ` FROM researches`
	if !includeArchived {
		query += ` WHERE is_archived = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	researches := []*domain.Research{}
	for rows.Next() {
		research, err := scanResearch(rows)
		if err != nil {
			return nil, err
		}
		researches = append(researches, research)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	papers, err := r.papersByResearch(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, research := range researches {
		research.Papers = papers[research.ID]
		if research.Papers == nil {
			research.Papers = []string{}
		}
	}
	return researches, nil
}

// Update writes every field of research and replaces its paper set
func (r *ResearchRepository) Update(ctx context.Context, research *domain.Research) error {
	research.UpdatedAt = time.Now().UTC()
	if err := normalizeResearch(research); err != nil {
		return err
	}
	tagsJSON, _ := json.Marshal(research.Tags)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE researches SET name = ?, description = ?, tags = ?, is_archived = ?, updated_at = ?
		WHERE id = ?
	`, research.Name, research.Description, string(tagsJSON), research.IsArchived,
		research.UpdatedAt, research.ID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: research %s", domain.ErrNotFound, research.ID)
	}

	if err := replacePapers(ctx, tx, research.ID, research.Papers); err != nil {
		return err
	}
	return tx.Commit()
}

// AddPaper appends an ingested paper to a research topic. Adding a paper
// twice is a no-op.
func (r *ResearchRepository) AddPaper(ctx context.Context, id, fileName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := requireResearch(ctx, tx, id); err != nil {
		return err
	}
	if err := requirePaper(ctx, tx, fileName); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO research_papers (research_id, file_name, position)
		SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM research_papers WHERE research_id = ?
	`, id, fileName, id)
	if err != nil {
		return err
	}

	if err := touchResearch(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// RemovePaper takes a paper out of a research topic
func (r *ResearchRepository) RemovePaper(ctx context.Context, id, fileName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := requireResearch(ctx, tx, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM research_papers WHERE research_id = ? AND file_name = ?`, id, fileName)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: paper %s is not in research %s", domain.ErrNotFound, fileName, id)
	}

	if err := touchResearch(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete deletes a research topic together with its query history
func (r *ResearchRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM query_history WHERE research_id = ?`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM researches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: research %s", domain.ErrNotFound, id)
	}
	return tx.Commit()
}

// Count returns the number of research topics, archived ones included
func (r *ResearchRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM researches`).Scan(&count)
	return count, err
}

// papersByResearch loads paper file names in insertion order, keyed by
// research ID
func (r *ResearchRepository) papersByResearch(ctx context.Context, where string, args ...any) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT research_id, file_name FROM research_papers `+where+`
		ORDER BY research_id, position ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	papers := map[string][]string{}
	for rows.Next() {
		var id, fileName string
		if err := rows.Scan(&id, &fileName); err != nil {
			return nil, err
		}
		papers[id] = append(papers[id], fileName)
	}
	return papers, rows.Err()
}

func replacePapers(ctx context.Context, tx *sql.Tx, id string, papers []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM research_papers WHERE research_id = ?`, id); err != nil {
		return err
	}
	for i, fileName := range papers {
		if err := requirePaper(ctx, tx, fileName); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO research_papers (research_id, file_name, position) VALUES (?, ?, ?)
		`, id, fileName, i)
		if err != nil {
			return fmt.Errorf("failed to add paper %s: %w", fileName, err)
		}
	}
	return nil
}

func requireResearch(ctx context.Context, tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM researches WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: research %s", domain.ErrNotFound, id)
	}
	return nil
}

func requirePaper(ctx context.Context, tx *sql.Tx, fileName string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers WHERE file_name = ?`, fileName).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: paper %s", domain.ErrNotFound, fileName)
	}
	return nil
}

func touchResearch(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE researches SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// normalizeResearch trims the name and drops blank or repeated papers and tags
func normalizeResearch(research *domain.Research) error {
	research.Name = strings.TrimSpace(research.Name)
	if research.Name == "" {
		return fmt.Errorf("%w: research name is required", domain.ErrInvalidRequest)
	}
	research.Papers = dedupe(research.Papers)
	research.Tags = dedupe(research.Tags)
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func scanResearch(row rowScanner) (*domain.Research, error) {
	research := &domain.Research{}
	var description, tagsJSON sql.NullString

	err := row.Scan(&research.ID, &research.Name, &description, &tagsJSON,
		&research.IsArchived, &research.CreatedAt, &research.UpdatedAt)
	if err != nil {
		return nil, err
	}

	research.Description = description.String
	research.Tags = []string{}
	if tagsJSON.Valid && tagsJSON.String != "" {
		json.Unmarshal([]byte(tagsJSON.String), &research.Tags)
	}
	return research, nil
}
