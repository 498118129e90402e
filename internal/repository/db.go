package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{db}, nil
}

func runMigrations(db *sql.DB) error {
	// Vectors live in the vector index; this DB holds paper metadata,
	// chunk text keyed by vector id, research topics and the query history.
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL UNIQUE,
			title TEXT,
			page_count INTEGER DEFAULT 0,
			vector_count INTEGER DEFAULT 0,
			total_queries INTEGER DEFAULT 0,
			total_citations INTEGER DEFAULT 0,
			last_queried DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			vector_id TEXT PRIMARY KEY,
			paper_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			section TEXT NOT NULL,
			page INTEGER NOT NULL,
			text TEXT NOT NULL,
			FOREIGN KEY (paper_id) REFERENCES papers(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS researches (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			tags TEXT,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS research_papers (
			research_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (research_id, file_name),
			FOREIGN KEY (research_id) REFERENCES researches(id) ON DELETE CASCADE,
			FOREIGN KEY (file_name) REFERENCES papers(file_name) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS query_history (
			id TEXT PRIMARY KEY,
			research_id TEXT,
			question TEXT NOT NULL,
			answer TEXT,
			scope TEXT,
			operation TEXT,
			detected_section TEXT,
			confidence REAL DEFAULT 0,
			context_score REAL DEFAULT 0,
			sources_used TEXT,
			citations TEXT,
			response_time REAL DEFAULT 0,
			success INTEGER NOT NULL,
			error_message TEXT,
			user_rating INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_paper ON chunks(paper_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON query_history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_research ON query_history(research_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}
