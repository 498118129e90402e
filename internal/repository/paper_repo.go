package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askpaper/internal/domain"
)

const paperColumns = `id, file_name, title, page_count, vector_count, total_queries, total_citations, last_queried, created_at`

// PaperRepository handles paper and chunk persistence. It implements
// domain.DocumentStore.
type PaperRepository struct {
	db *DB
}

// NewPaperRepository creates a new paper repository
func NewPaperRepository(db *DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// Create stores a paper and its chunks in one transaction
func (r *PaperRepository) Create(ctx context.Context, paper *domain.Paper, chunks []domain.Chunk) error {
	if paper.ID == "" {
		paper.ID = uuid.New().String()
	}
	paper.CreatedAt = time.Now().UTC()
	paper.VectorCount = len(chunks)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO papers (id, file_name, title, page_count, vector_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, paper.ID, paper.FileName, paper.Title, paper.PageCount, paper.VectorCount, paper.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", domain.ErrPaperExists, paper.FileName)
		}
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (vector_id, paper_id, chunk_index, section, page, text)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.VectorID, paper.ID, c.ChunkIndex, c.Section, c.Page, c.Text); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a paper by ID
func (r *PaperRepository) Get(ctx context.Context, id string) (*domain.Paper, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: paper %s", domain.ErrNotFound, id)
	}
	return paper, err
}

// GetByFileName retrieves a paper by its file name
func (r *PaperRepository) GetByFileName(ctx context.Context, fileName string) (*domain.Paper, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE file_name = ?`, fileName)
	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: paper %s", domain.ErrNotFound, fileName)
	}
	return paper, err
}

// Exists reports whether a paper with fileName was ingested
func (r *PaperRepository) Exists(ctx context.Context, fileName string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers WHERE file_name = ?`, fileName).Scan(&n)
	return n > 0, err
}

// List retrieves all papers, newest first
func (r *PaperRepository) List(ctx context.Context) ([]*domain.Paper, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paperColumns+` FROM papers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	papers := []*domain.Paper{}
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

// ListChunks returns a paper's chunks in chunk order
func (r *PaperRepository) ListChunks(ctx context.Context, paperID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.vector_id, c.chunk_index, c.section, c.page, c.text, p.file_name
		FROM chunks c JOIN papers p ON p.id = c.paper_id
		WHERE c.paper_id = ?
		ORDER BY c.chunk_index ASC
	`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.VectorID, &c.ChunkIndex, &c.Section, &c.Page, &c.Text, &c.SourcePaper); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Delete deletes a paper; its chunks go with it
func (r *PaperRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: paper %s", domain.ErrNotFound, id)
	}
	return nil
}

// Count returns the number of papers
func (r *PaperRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&count)
	return count, err
}

// CountChunks returns the number of stored chunks
func (r *PaperRepository) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// GetPaperIDs returns the file names of stored papers, restricted to the
// filter when one is given
func (r *PaperRepository) GetPaperIDs(ctx context.Context, filter *domain.PaperFilter) ([]string, error) {
	query := `SELECT file_name FROM papers`
	var args []any
	if !filter.Empty() {
		query += ` WHERE file_name IN (?` + strings.Repeat(`, ?`, len(filter.Papers)-1) + `)`
		for _, p := range filter.Papers {
			args = append(args, p)
		}
	}
	query += ` ORDER BY file_name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePaperStats counts one more query and update.CitationCount more
// citations for the paper
func (r *PaperRepository) UpdatePaperStats(ctx context.Context, fileName string, update domain.PaperStatsUpdate) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE papers
		SET total_queries = total_queries + 1,
			total_citations = total_citations + ?,
			last_queried = ?
		WHERE file_name = ?
	`, update.CitationCount, update.LastQueried.UTC(), fileName)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: paper %s", domain.ErrNotFound, fileName)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*domain.Paper, error) {
	paper := &domain.Paper{}
	var title sql.NullString
	var lastQueried sql.NullTime

	err := row.Scan(&paper.ID, &paper.FileName, &title, &paper.PageCount, &paper.VectorCount,
		&paper.TotalQueries, &paper.TotalCitations, &lastQueried, &paper.CreatedAt)
	if err != nil {
		return nil, err
	}

	paper.Title = title.String
	if lastQueried.Valid {
		t := lastQueried.Time
		paper.LastQueried = &t
	}
	return paper, nil
}
