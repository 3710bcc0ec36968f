// Package store persists chunk profiles, documents, sections, and chunk
// metadata in SQLite. Vector data lives in engine/semantic; this package
// holds everything retrieval does not need at query time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/knowledgebench/bench/engine/domain"
)

// Store owns the SQLite connection.
type Store struct {
	db *sqlx.DB
}

// Open opens (and creates if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Chunk profiles ---

// CreateProfile validates and inserts a profile. ID and timestamps are
// assigned here when absent.
func (s *Store) CreateProfile(ctx context.Context, p domain.ChunkProfile) (domain.ChunkProfile, error) {
	if err := domain.ValidateProfile(p); err != nil {
		return domain.ChunkProfile{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Active = false

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO chunk_profiles (id, name, chunk_size, chunk_overlap, is_active, created_at, updated_at)
		VALUES (:id, :name, :chunk_size, :chunk_overlap, :is_active, :created_at, :updated_at)`, p)
	if err != nil {
		return domain.ChunkProfile{}, fmt.Errorf("store: create profile %s: %w", p.Name, err)
	}
	return p, nil
}

// GetProfile fetches a profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (domain.ChunkProfile, error) {
	var p domain.ChunkProfile
	err := s.db.GetContext(ctx, &p, `SELECT * FROM chunk_profiles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChunkProfile{}, fmt.Errorf("store: profile %s: %w", id, domain.ErrProfileNotFound)
	}
	if err != nil {
		return domain.ChunkProfile{}, fmt.Errorf("store: get profile %s: %w", id, err)
	}
	return p, nil
}

// ListProfiles returns all profiles, newest first.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.ChunkProfile, error) {
	var out []domain.ChunkProfile
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM chunk_profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list profiles: %w", err)
	}
	return out, nil
}

// ActivateProfile makes the given profile the single active one. The
// deactivate and activate run in one transaction so readers never observe
// two active profiles.
func (s *Store) ActivateProfile(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: activate profile: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE chunk_profiles SET is_active = 0, updated_at = ? WHERE is_active = 1`, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: activate profile: clear active: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE chunk_profiles SET is_active = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: activate profile %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: activate profile %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: activate profile %s: %w", id, domain.ErrProfileNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: activate profile: commit: %w", err)
	}
	return nil
}

// ActiveProfile returns the single active profile, or ErrNoActiveProfile.
func (s *Store) ActiveProfile(ctx context.Context) (domain.ChunkProfile, error) {
	var p domain.ChunkProfile
	err := s.db.GetContext(ctx, &p, `SELECT * FROM chunk_profiles WHERE is_active = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChunkProfile{}, domain.ErrNoActiveProfile
	}
	if err != nil {
		return domain.ChunkProfile{}, fmt.Errorf("store: active profile: %w", err)
	}
	return p, nil
}

// EnsureDefaultProfile creates and activates a default profile when none
// exist. Idempotent.
func (s *Store) EnsureDefaultProfile(ctx context.Context, size, overlap int) (domain.ChunkProfile, error) {
	p, err := s.ActiveProfile(ctx)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNoActiveProfile) {
		return domain.ChunkProfile{}, err
	}

	existing, err := s.ListProfiles(ctx)
	if err != nil {
		return domain.ChunkProfile{}, err
	}
	if len(existing) > 0 {
		if aerr := s.ActivateProfile(ctx, existing[0].ID); aerr != nil {
			return domain.ChunkProfile{}, aerr
		}
		return s.GetProfile(ctx, existing[0].ID)
	}

	p, err = s.CreateProfile(ctx, domain.ChunkProfile{
		Name:         "default",
		ChunkSize:    size,
		ChunkOverlap: overlap,
	})
	if err != nil {
		return domain.ChunkProfile{}, err
	}
	if err := s.ActivateProfile(ctx, p.ID); err != nil {
		return domain.ChunkProfile{}, err
	}
	return s.GetProfile(ctx, p.ID)
}

// --- Documents ---

// CreateDocument registers a document in status pending.
func (s *Store) CreateDocument(ctx context.Context, filename string) (domain.Document, error) {
	now := time.Now().UTC()
	d := domain.Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO documents (id, filename, status, error_message, created_at, updated_at)
		VALUES (:id, :filename, :status, :error_message, :created_at, :updated_at)`, d)
	if err != nil {
		return domain.Document{}, fmt.Errorf("store: create document %s: %w", filename, err)
	}
	return d, nil
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var d domain.Document
	err := s.db.GetContext(ctx, &d, `SELECT * FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("store: document %s: %w", id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("store: get document %s: %w", id, err)
	}
	return d, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var out []domain.Document
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	return out, nil
}

// SetDocumentStatus advances a document's lifecycle state. The error
// message is recorded only for failed, cleared otherwise.
func (s *Store) SetDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	if status != domain.StatusFailed {
		errMsg = ""
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: set document %s status %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set document %s status: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return nil
}

// --- Sections ---

type sectionRow struct {
	ID         string `db:"id"`
	DocumentID string `db:"document_id"`
	SourceRef  string `db:"source_ref"`
	Content    string `db:"content"`
	Metadata   string `db:"metadata"`
}

// ReplaceSections swaps a document's sections atomically. Sections are
// parse output; re-parsing replaces the whole set.
func (s *Store) ReplaceSections(ctx context.Context, documentID string, sections []domain.Section) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace sections: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("store: replace sections: clear: %w", err)
	}
	for i, sec := range sections {
		sec.DocumentID = documentID
		if err := domain.ValidateSection(sec); err != nil {
			return fmt.Errorf("store: replace sections [%d]: %w", i, err)
		}
		if sec.ID == "" {
			sec.ID = uuid.NewString()
		}
		meta, err := json.Marshal(sec.Metadata)
		if err != nil {
			return fmt.Errorf("store: replace sections [%d]: marshal metadata: %w", i, err)
		}
		row := sectionRow{ID: sec.ID, DocumentID: sec.DocumentID, SourceRef: sec.SourceRef, Content: sec.Content, Metadata: string(meta)}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO sections (id, document_id, source_ref, content, metadata)
			VALUES (:id, :document_id, :source_ref, :content, :metadata)`, row); err != nil {
			return fmt.Errorf("store: replace sections [%d]: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace sections: commit: %w", err)
	}
	return nil
}

// SectionsByDocument returns a document's sections in insertion order.
func (s *Store) SectionsByDocument(ctx context.Context, documentID string) ([]domain.Section, error) {
	var rows []sectionRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM sections WHERE document_id = ? ORDER BY rowid`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: sections for document %s: %w", documentID, err)
	}
	out := make([]domain.Section, len(rows))
	for i, r := range rows {
		var meta map[string]string
		if r.Metadata != "" {
			if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
				return nil, fmt.Errorf("store: sections for document %s: decode metadata: %w", documentID, err)
			}
		}
		out[i] = domain.Section{ID: r.ID, DocumentID: r.DocumentID, SourceRef: r.SourceRef, Content: r.Content, Metadata: meta}
	}
	return out, nil
}

// --- Chunks ---

// InsertChunks persists chunk metadata rows.
func (s *Store) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: insert chunks: begin: %w", err)
	}
	defer tx.Rollback()

	for i, c := range chunks {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO chunks (id, document_id, section_id, chunk_profile_id, content, source_ref, chunk_index)
			VALUES (:id, :document_id, :section_id, :chunk_profile_id, :content, :source_ref, :chunk_index)`, c); err != nil {
			return fmt.Errorf("store: insert chunks [%d]: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: insert chunks: commit: %w", err)
	}
	return nil
}

// DeleteChunks removes a document's chunks under one profile. Used before
// re-ingestion.
func (s *Store) DeleteChunks(ctx context.Context, documentID, profileID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ? AND chunk_profile_id = ?`, documentID, profileID)
	if err != nil {
		return fmt.Errorf("store: delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

// ChunksByDocument returns a document's chunks under one profile, ordered
// by index.
func (s *Store) ChunksByDocument(ctx context.Context, documentID, profileID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM chunks WHERE document_id = ? AND chunk_profile_id = ? ORDER BY chunk_index`,
		documentID, profileID)
	if err != nil {
		return nil, fmt.Errorf("store: chunks for document %s: %w", documentID, err)
	}
	return out, nil
}

// CountChunks returns the number of chunk rows under one profile.
func (s *Store) CountChunks(ctx context.Context, profileID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunks WHERE chunk_profile_id = ?`, profileID)
	if err != nil {
		return 0, fmt.Errorf("store: count chunks: %w", err)
	}
	return n, nil
}
