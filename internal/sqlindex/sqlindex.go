// Package sqlindex maintains a rebuildable SQLite secondary index over
// skeletons, used only to answer list_conversations-style sort/filter/
// limit queries quickly. The .skeletons/*.json files remain the sole
// source of truth; this index is always rebuilt FROM them, never the
// reverse — adapted from the teacher's "SQLite caches the external API,
// the API is truth" Repository shape (internal/repo/sqlite.go,
// internal/db/store.go) to "SQLite caches the skeleton files, the
// skeleton files are truth".
package sqlindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jra3/taskgraph/internal/apperr"
	"github.com/jra3/taskgraph/internal/skeleton"
)

const schema = `
CREATE TABLE IF NOT EXISTS skeletons (
	task_id TEXT PRIMARY KEY,
	parent_task_id TEXT,
	reconstructed_parent_id TEXT,
	workspace TEXT NOT NULL DEFAULT '',
	last_activity TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	action_count INTEGER NOT NULL DEFAULT 0,
	total_size INTEGER NOT NULL DEFAULT 0,
	has_api_history INTEGER NOT NULL DEFAULT 0,
	has_ui_messages INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_skeletons_last_activity ON skeletons(last_activity);
CREATE INDEX IF NOT EXISTS idx_skeletons_workspace ON skeletons(workspace);
`

// Index wraps a SQLite-backed read model over skeletons.
type Index struct {
	db *sql.DB
}

// Open opens or creates the SQLite index file at path, recreating it
// from scratch if the existing schema is incompatible — the same
// recovery discipline as the teacher's db.Open.
func Open(path string) (*Index, error) {
	idx, err := openDB(path)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "no such column") || strings.Contains(msg, "no such table") || strings.Contains(msg, "SQL logic error") {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, apperr.Wrap(apperr.CodeMalformedJSON, "remove incompatible sqlindex", rmErr)
			}
			return openDB(path)
		}
		return nil, err
	}
	return idx, nil
}

func openDB(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.CodeMalformedJSON, "create sqlindex directory", err)
		}
	}

	connStr := "file:" + strings.ReplaceAll(path, " ", "%20") + "?_time_format=sqlite"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "open sqlindex", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "enable WAL mode", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "initialize sqlindex schema", err)
	}
	return &Index{db: db}, nil
}

func (idx *Index) Close() error { return idx.db.Close() }

// Rebuild replaces the entire index's contents from skeletons, inside a
// single transaction.
func (idx *Index) Rebuild(ctx context.Context, skeletons []*skeleton.Skeleton) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "begin sqlindex rebuild tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM skeletons"); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "clear sqlindex", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO skeletons
			(task_id, parent_task_id, reconstructed_parent_id, workspace, last_activity,
			 message_count, action_count, total_size, has_api_history, has_ui_messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "prepare sqlindex insert", err)
	}
	defer stmt.Close()

	for _, sk := range skeletons {
		_, hasAPI := sk.SourceChecksums["api_conversation_history.json"]
		hasUI := len(sk.Sequence) > 0
		if _, err := stmt.ExecContext(ctx,
			sk.TaskID, sk.ParentTaskID, sk.ReconstructedParentID, sk.Metadata.Workspace, sk.Metadata.LastActivity,
			sk.Metadata.MessageCount, sk.Metadata.ActionCount, sk.Metadata.TotalSize, boolToInt(hasAPI), boolToInt(hasUI),
		); err != nil {
			return apperr.Wrap(apperr.CodeMalformedJSON, "insert sqlindex row for "+sk.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "commit sqlindex rebuild", err)
	}
	return nil
}

// Upsert updates (or inserts) a single skeleton's row, used after
// Engine.Refresh so the index doesn't require a full rebuild on every
// incremental change.
func (idx *Index) Upsert(ctx context.Context, sk *skeleton.Skeleton) error {
	_, hasAPI := sk.SourceChecksums["api_conversation_history.json"]
	hasUI := len(sk.Sequence) > 0
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO skeletons
			(task_id, parent_task_id, reconstructed_parent_id, workspace, last_activity,
			 message_count, action_count, total_size, has_api_history, has_ui_messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			parent_task_id=excluded.parent_task_id,
			reconstructed_parent_id=excluded.reconstructed_parent_id,
			workspace=excluded.workspace,
			last_activity=excluded.last_activity,
			message_count=excluded.message_count,
			action_count=excluded.action_count,
			total_size=excluded.total_size,
			has_api_history=excluded.has_api_history,
			has_ui_messages=excluded.has_ui_messages
	`, sk.TaskID, sk.ParentTaskID, sk.ReconstructedParentID, sk.Metadata.Workspace, sk.Metadata.LastActivity,
		sk.Metadata.MessageCount, sk.Metadata.ActionCount, sk.Metadata.TotalSize, boolToInt(hasAPI), boolToInt(hasUI))
	if err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "upsert sqlindex row for "+sk.TaskID, err)
	}
	return nil
}

// Query configures a sorted/filtered/limited listing against the index.
type Query struct {
	RequireAPIHistory bool
	RequireUIMessages bool
	SortBy            string // "last_activity" | "message_count" | "total_size"
	Descending        bool
	Limit             int
}

// TaskIDs returns the ordered task ids matching q — callers then fetch
// full skeletons from the authoritative JSON files (or the in-memory
// cache) keyed by these ids.
func (idx *Index) TaskIDs(ctx context.Context, q Query) ([]string, error) {
	col := "last_activity"
	switch q.SortBy {
	case "message_count":
		col = "message_count"
	case "total_size":
		col = "total_size"
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	where := []string{"1=1"}
	if q.RequireAPIHistory {
		where = append(where, "has_api_history=1")
	}
	if q.RequireUIMessages {
		where = append(where, "has_ui_messages=1")
	}

	query := fmt.Sprintf("SELECT task_id FROM skeletons WHERE %s ORDER BY %s %s", strings.Join(where, " AND "), col, dir)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := idx.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "query sqlindex", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.CodeMalformedJSON, "scan sqlindex row", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
