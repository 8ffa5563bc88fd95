package store

// schemaV1 creates every table the Store owns. Mirrors the teacher's
// "one transaction at open time" migration idiom, generalized to the
// spec's data model (projects/code_files/symbols/patterns/learnings/
// learning_links/learning_entities/sessions/tasks/kv_state) instead of
// the teacher's chunk/file/project metadata schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	root_path  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS code_files (
	id          TEXT NOT NULL,
	project_id  TEXT NOT NULL,
	real_path   TEXT NOT NULL,
	language    TEXT NOT NULL,
	line_count  INTEGER NOT NULL DEFAULT 0,
	size_bytes  INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	is_external INTEGER NOT NULL DEFAULT 0,
	mtime       TIMESTAMP NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	indexed_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (project_id, id)
);
CREATE INDEX IF NOT EXISTS idx_code_files_project ON code_files(project_id);
CREATE INDEX IF NOT EXISTS idx_code_files_language ON code_files(project_id, language);

CREATE TABLE IF NOT EXISTS symbols (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id   TEXT NOT NULL,
	code_file_id TEXT NOT NULL,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL,
	signature    TEXT NOT NULL DEFAULT '',
	line_start   INTEGER,
	FOREIGN KEY (project_id, code_file_id) REFERENCES code_files(project_id, id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(project_id, code_file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(project_id, name);

CREATE TABLE IF NOT EXISTS patterns (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id   TEXT NOT NULL,
	code_file_id TEXT NOT NULL,
	pattern_name TEXT NOT NULL,
	category     TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	evidence     TEXT NOT NULL DEFAULT '',
	line_number  INTEGER,
	confidence   REAL NOT NULL DEFAULT 0.5,
	FOREIGN KEY (project_id, code_file_id) REFERENCES code_files(project_id, id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_patterns_file ON patterns(project_id, code_file_id);

CREATE TABLE IF NOT EXISTS learnings (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	category           TEXT NOT NULL,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	what_happened      TEXT NOT NULL DEFAULT '',
	lesson             TEXT NOT NULL DEFAULT '',
	prevention         TEXT NOT NULL DEFAULT '',
	context            TEXT NOT NULL DEFAULT '',
	confidence         TEXT NOT NULL DEFAULT 'low',
	times_validated    INTEGER NOT NULL DEFAULT 0,
	agent_id           TEXT,
	visibility         TEXT NOT NULL DEFAULT 'private',
	source_session_id  TEXT,
	source_url         TEXT,
	consolidated       INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_learnings_project ON learnings(project_id);
CREATE INDEX IF NOT EXISTS idx_learnings_category ON learnings(project_id, category);
CREATE INDEX IF NOT EXISTS idx_learnings_agent ON learnings(project_id, agent_id);

CREATE TABLE IF NOT EXISTS learning_links (
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	link_type  TEXT NOT NULL,
	similarity REAL,
	PRIMARY KEY (from_id, to_id),
	FOREIGN KEY (from_id) REFERENCES learnings(id) ON DELETE CASCADE,
	FOREIGN KEY (to_id) REFERENCES learnings(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_learning_links_to ON learning_links(to_id);

CREATE TABLE IF NOT EXISTS learning_entities (
	learning_id TEXT NOT NULL,
	entity      TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (learning_id, entity),
	FOREIGN KEY (learning_id) REFERENCES learnings(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_learning_entities_entity ON learning_entities(entity);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	full_context TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);

CREATE TABLE IF NOT EXISTS kv_state (
	project_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (project_id, key)
);

INSERT INTO schema_meta (version)
SELECT 1
WHERE NOT EXISTS (SELECT 1 FROM schema_meta);
`
