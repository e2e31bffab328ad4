package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"itemscout/internal/domain"
	"itemscout/internal/repository"
)

const createItemsTable = `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	name_folded TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image TEXT NOT NULL DEFAULT '',
	coordinates TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);
CREATE INDEX IF NOT EXISTS idx_items_user_id ON items(user_id);
`

const selectItemColumns = `id, name, description, image, coordinates, user_id, created_at, updated_at`

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) repository.ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createItemsTable); err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	return r.migrateFoldedNames(ctx)
}

// migrateFoldedNames adds and backfills name_folded on databases created
// before the column existed. SQLite's LIKE and lower() only fold ASCII, so
// searches run against a name folded in Go.
func (r *ItemRepository) migrateFoldedNames(ctx context.Context) error {
	var present int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('items') WHERE name = 'name_folded'`,
	).Scan(&present); err != nil {
		return fmt.Errorf("inspect items table: %w", err)
	}
	if present == 0 {
		if _, err := r.db.ExecContext(ctx, `ALTER TABLE items ADD COLUMN name_folded TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add name_folded column: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM items WHERE name_folded = '' AND name <> ''`)
	if err != nil {
		return fmt.Errorf("query unfolded names: %w", err)
	}
	pending := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan unfolded name: %w", err)
		}
		pending[id] = name
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for id, name := range pending {
		if _, err := r.db.ExecContext(ctx, `UPDATE items SET name_folded=? WHERE id=?`, repository.FoldName(name), id); err != nil {
			return fmt.Errorf("backfill name_folded: %w", err)
		}
	}
	return nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO items (id, name, name_folded, description, image, coordinates, user_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Name,
		repository.FoldName(item.Name),
		item.Description,
		item.Image,
		item.Coordinates,
		item.UserID,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert item %s: %w", item.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE items
SET name=?, name_folded=?, description=?, image=?, coordinates=?, updated_at=?
WHERE id=?`,
		item.Name,
		repository.FoldName(item.Name),
		item.Description,
		item.Image,
		item.Coordinates,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectAffected(res, "update item")
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectAffected(res, "delete item")
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+selectItemColumns+`
FROM items
WHERE id=?`,
		id,
	)
	return scanItem(row)
}

func (r *ItemRepository) List(ctx context.Context, filter repository.ItemFilter, offset, limit int) ([]domain.Item, error) {
	where, args := itemWhere(filter)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, `
SELECT `+selectItemColumns+`
FROM items`+where+`
ORDER BY created_at DESC, rowid DESC
LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

func (r *ItemRepository) Count(ctx context.Context, filter repository.ItemFilter) (int64, error) {
	where, args := itemWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return total, nil
}

func itemWhere(filter repository.ItemFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if q := strings.TrimSpace(filter.NameContains); q != "" {
		clauses = append(clauses, `name_folded LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(repository.FoldName(q))+"%")
	}
	if filter.ImageKey != "" {
		clauses = append(clauses, "instr(image, ?) > 0")
		args = append(args, filter.ImageKey)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func expectAffected(res sql.Result, op string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if aff == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}

func scanItem(scanner rowScanner) (*domain.Item, error) {
	var (
		item      domain.Item
		createdAt time.Time
		updatedAt time.Time
	)

	if err := scanner.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Image,
		&item.Coordinates,
		&item.UserID,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}

	item.CreatedAt = createdAt.UTC()
	item.UpdatedAt = updatedAt.UTC()
	return &item, nil
}
