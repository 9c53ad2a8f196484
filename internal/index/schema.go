package index

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	owner_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	hash TEXT NOT NULL,
	mtime_unix INTEGER NOT NULL,
	size INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(owner_id, path)
);

CREATE INDEX IF NOT EXISTS notes_by_owner_updated ON notes(owner_id, updated_at);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id TEXT NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY(note_id, tag_id)
);

CREATE INDEX IF NOT EXISTS note_tags_by_tag ON note_tags(tag_id);

CREATE TABLE IF NOT EXISTS note_links (
	id INTEGER PRIMARY KEY,
	from_note_id TEXT NOT NULL,
	to_ref TEXT NOT NULL,
	to_note_id TEXT,
	kind TEXT NOT NULL,
	line_no INTEGER NOT NULL,
	line TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS note_links_by_from ON note_links(from_note_id);
CREATE INDEX IF NOT EXISTS note_links_by_to ON note_links(to_note_id);

CREATE TABLE IF NOT EXISTS note_embeddings (
	note_id TEXT NOT NULL,
	model TEXT NOT NULL,
	dims INTEGER NOT NULL,
	vector BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY(note_id, model)
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts USING fts5(
	note_id UNINDEXED,
	title,
	body
);
`
