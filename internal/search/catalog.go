package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Result struct {
	Arch     string `json:"arch"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Level    int    `json:"level"`
	Page     int    `json:"page"`
}

type SearchResponse struct {
	Total   uint64   `json:"total"`
	Results []Result `json:"results"`
}

// Catalog is an in-memory full-text index over the headings of every
// loaded manual. It serves prefix lookups across architectures; exact token
// matching stays in the manual package.
type Catalog struct {
	db         *sql.DB
	upsertStmt *sql.Stmt
}

func NewCatalog() (*Catalog, error) {
	db, err := openMemoryDB()
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO headings (path, position, arch, filename, level, title, page)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, position) DO UPDATE SET
			arch = excluded.arch,
			filename = excluded.filename,
			level = excluded.level,
			title = excluded.title,
			page = excluded.page`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}

	return &Catalog{db: db, upsertStmt: stmt}, nil
}

// IndexHeadings stores docs in one transaction.
func (c *Catalog) IndexHeadings(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt := tx.StmtContext(ctx, c.upsertStmt)
	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.Path, doc.Position, doc.Arch, doc.Filename, doc.Level, doc.Title, doc.Page); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("index heading %s#%d: %w", doc.Path, doc.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit headings: %w", err)
	}
	return nil
}

// Count returns the number of indexed headings.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM headings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count headings: %w", err)
	}
	return n, nil
}

func (c *Catalog) Search(ctx context.Context, queryString string, arch string, limit int) (SearchResponse, error) {
	queryString = sanitizeQuery(queryString)
	if queryString == "" {
		return SearchResponse{Results: []Result{}}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT h.arch, h.path, h.filename, h.title, h.level, h.page, COUNT(*) OVER() AS total
		 FROM headings_fts f
		 JOIN headings h ON h.rowid = f.rowid
		 WHERE headings_fts MATCH ?`
	args := []any{queryString}

	if arch != "" {
		query += ` AND h.arch = ?`
		args = append(args, arch)
	}

	query += ` ORDER BY f.rank, h.path, h.position LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var resp SearchResponse
	resp.Results = make([]Result, 0)

	for rows.Next() {
		var r Result
		var total uint64
		if err := rows.Scan(&r.Arch, &r.Path, &r.Filename, &r.Title, &r.Level, &r.Page, &total); err != nil {
			return SearchResponse{}, fmt.Errorf("scan result: %w", err)
		}
		resp.Total = total
		resp.Results = append(resp.Results, r)
	}
	if err := rows.Err(); err != nil {
		return SearchResponse{}, fmt.Errorf("iterate results: %w", err)
	}

	return resp, nil
}

func (c *Catalog) Close() error {
	_ = c.upsertStmt.Close()
	return c.db.Close()
}

// sanitizeQuery turns free text into an FTS5 prefix query, dropping
// operators and punctuation.
func sanitizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range q {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == ' ', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	terms := strings.Fields(b.String())
	filtered := terms[:0]
	for _, t := range terms {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		filtered = append(filtered, `"`+t+`"*`)
	}
	if len(filtered) == 0 {
		return ""
	}
	return strings.Join(filtered, " ")
}
