package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// memoryDBSeq keeps in-memory databases opened by one process apart.
var memoryDBSeq atomic.Int64

// Repository persists collection items in one SQLite database.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:reeldesk-mem-%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	// One connection serializes writers; a reorder commit fans out many.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT NOT NULL,
			collection TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			display_order INTEGER NOT NULL DEFAULT 0,
			visible INTEGER NOT NULL DEFAULT 0,
			details_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_scope_order ON items(collection, kind, display_order);`,
		`CREATE INDEX IF NOT EXISTS idx_items_status ON items(collection, status);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateItem creates item.
func (r *Repository) CreateItem(ctx context.Context, item domain.Item) error {
	detailsJSON, err := json.Marshal(item.Details)
	if err != nil {
		return fmt.Errorf("encode item details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO items(id, collection, kind, title, status, display_order, visible, details_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, string(item.Collection), item.Kind, item.Title, item.Status, item.DisplayOrder, boolInt(item.Visible), string(detailsJSON), ts(item.CreatedAt), ts(item.UpdatedAt))
	return err
}

// UpdateItem updates item.
func (r *Repository) UpdateItem(ctx context.Context, item domain.Item) error {
	detailsJSON, err := json.Marshal(item.Details)
	if err != nil {
		return fmt.Errorf("encode item details: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET kind = ?, title = ?, status = ?, display_order = ?, visible = ?, details_json = ?, created_at = ?, updated_at = ?
		WHERE collection = ? AND id = ?
	`, item.Kind, item.Title, item.Status, item.DisplayOrder, boolInt(item.Visible), string(detailsJSON), ts(item.CreatedAt), ts(item.UpdatedAt), string(item.Collection), item.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetItem returns item.
func (r *Repository) GetItem(ctx context.Context, collection domain.Collection, id string) (domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, collection, kind, title, status, display_order, visible, details_json, created_at, updated_at
		FROM items
		WHERE collection = ? AND id = ?
	`, string(collection), id)
	return scanItem(row)
}

// ListItems lists items matching filter in display order.
func (r *Repository) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	query := `
		SELECT id, collection, kind, title, status, display_order, visible, details_json, created_at, updated_at
		FROM items
		WHERE collection = ?
	`
	args := []any{string(filter.Collection)}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	switch filter.Visibility {
	case domain.VisibilityVisible:
		query += ` AND visible = 1`
	case domain.VisibilityHidden:
		query += ` AND visible = 0`
	}
	query += ` ORDER BY display_order ASC, created_at DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteItem deletes item.
func (r *Repository) DeleteItem(ctx context.Context, collection domain.Collection, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE collection = ? AND id = ?`, string(collection), id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// UpdateItemOrder writes one display order.
func (r *Repository) UpdateItemOrder(ctx context.Context, collection domain.Collection, id string, order int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET display_order = ?, updated_at = ? WHERE collection = ? AND id = ?
	`, order, ts(at), string(collection), id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// UpdateItemStatus writes one status. display_order is left as is.
func (r *Repository) UpdateItemStatus(ctx context.Context, collection domain.Collection, id string, status string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET status = ?, updated_at = ? WHERE collection = ? AND id = ?
	`, status, ts(at), string(collection), id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ApplyItemOrder writes every display order in one transaction.
func (r *Repository) ApplyItemOrder(ctx context.Context, collection domain.Collection, updates []app.OrderUpdate, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE items SET display_order = ?, updated_at = ? WHERE collection = ? AND id = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare order update: %w", err)
	}
	defer stmt.Close()

	for _, update := range updates {
		res, execErr := stmt.ExecContext(ctx, update.DisplayOrder, ts(at), string(collection), update.ItemID)
		if execErr != nil {
			return fmt.Errorf("update order %s: %w", update.ItemID, execErr)
		}
		if noRowsErr := translateNoRows(res); noRowsErr != nil {
			return fmt.Errorf("update order %s: %w", update.ItemID, noRowsErr)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanItem handles scan item.
func scanItem(s scanner) (domain.Item, error) {
	var (
		item          domain.Item
		collectionRaw string
		visible       int
		detailsRaw    string
		createdRaw    string
		updatedRaw    string
	)
	if err := s.Scan(&item.ID, &collectionRaw, &item.Kind, &item.Title, &item.Status, &item.DisplayOrder, &visible, &detailsRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, app.ErrNotFound
		}
		return domain.Item{}, err
	}
	if strings.TrimSpace(detailsRaw) == "" {
		detailsRaw = "{}"
	}
	if err := json.Unmarshal([]byte(detailsRaw), &item.Details); err != nil {
		return domain.Item{}, fmt.Errorf("decode item details_json: %w", err)
	}
	item.Collection = domain.Collection(collectionRaw)
	item.Visible = visible != 0
	item.CreatedAt = parseTS(createdRaw)
	item.UpdatedAt = parseTS(updatedRaw)
	return item, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
// timestampLayout is fixed width so text order in SQL matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
