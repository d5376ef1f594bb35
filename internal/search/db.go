package search

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema creates the heading tables. The catalog lives in memory and is
// rebuilt as manuals are loaded, so there is no need for migrations.
const schema = `
CREATE TABLE headings (
	path TEXT NOT NULL,
	position INTEGER NOT NULL,
	arch TEXT NOT NULL,
	filename TEXT NOT NULL,
	level INTEGER NOT NULL,
	title TEXT NOT NULL,
	page INTEGER NOT NULL,
	PRIMARY KEY (path, position)
);

CREATE VIRTUAL TABLE headings_fts USING fts5(
	title,
	content='headings',
	content_rowid='rowid'
);

CREATE TRIGGER headings_ai AFTER INSERT ON headings BEGIN
	INSERT INTO headings_fts(rowid, title) VALUES (new.rowid, new.title);
END;

CREATE TRIGGER headings_ad AFTER DELETE ON headings BEGIN
	INSERT INTO headings_fts(headings_fts, rowid, title)
	VALUES ('delete', old.rowid, old.title);
END;

CREATE TRIGGER headings_au AFTER UPDATE ON headings BEGIN
	INSERT INTO headings_fts(headings_fts, rowid, title)
	VALUES ('delete', old.rowid, old.title);
	INSERT INTO headings_fts(rowid, title) VALUES (new.rowid, new.title);
END;
`

// openMemoryDB opens a private in-memory database. A single connection is
// kept so every statement sees the same memory database.
func openMemoryDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	return db, nil
}
