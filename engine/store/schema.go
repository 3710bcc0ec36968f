package store

// schema is applied in full on open. Every statement is idempotent so
// restarts are safe without a migration table.
const schema = `
CREATE TABLE IF NOT EXISTS chunk_profiles (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    chunk_size    INTEGER NOT NULL CHECK (chunk_size > 0),
    chunk_overlap INTEGER NOT NULL CHECK (chunk_overlap >= 0),
    is_active     INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id            TEXT PRIMARY KEY,
    filename      TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    error_message TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
    id          TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    source_ref  TEXT NOT NULL,
    content     TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);

CREATE TABLE IF NOT EXISTS chunks (
    id               TEXT PRIMARY KEY,
    document_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    section_id       TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
    chunk_profile_id TEXT NOT NULL REFERENCES chunk_profiles(id),
    content          TEXT NOT NULL,
    source_ref       TEXT NOT NULL,
    chunk_index      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_profile ON chunks(document_id, chunk_profile_id);
`
