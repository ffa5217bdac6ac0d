package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/jaekwang-park/todo-sync/internal/model"
)

type PostgresItemRepository struct {
	db *sql.DB
}

func NewPostgresItem(db *sql.DB) *PostgresItemRepository {
	return &PostgresItemRepository{db: db}
}

func (r *PostgresItemRepository) Create(ctx context.Context, rec model.Record) (string, error) {
	query := `
		INSERT INTO items (title, description, deadline, done, attachments)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		rec.Title, rec.Description, rec.Deadline, rec.Done, pq.Array(nonNil(rec.Attachments)),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create item: %w", err)
	}
	return id, nil
}

func (r *PostgresItemRepository) GetAll(ctx context.Context) ([]model.StoredRecord, error) {
	query := `
		SELECT id, title, description, deadline, done, attachments, timestamp
		FROM items
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	records := []model.StoredRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return records, nil
}

func (r *PostgresItemRepository) Update(ctx context.Context, id string, changes model.Changes) error {
	query, args := buildUpdate(id, changes)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresItemRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM items WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// buildUpdate renders an UPDATE for the fields set in changes. With no
// fields set it degrades to a no-op update that still reports whether the
// row exists.
func buildUpdate(id string, changes model.Changes) (string, []any) {
	var sets []string
	var args []any
	argIdx := 1

	add := func(column string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, v)
		argIdx++
	}

	if changes.Title != nil {
		add("title", *changes.Title)
	}
	if changes.Description != nil {
		add("description", *changes.Description)
	}
	if changes.Deadline != nil {
		add("deadline", *changes.Deadline)
	}
	if changes.Done != nil {
		add("done", *changes.Done)
	}
	if changes.Attachments != nil {
		add("attachments", pq.Array(nonNil(*changes.Attachments)))
	}
	if len(sets) == 0 {
		sets = append(sets, "id = id")
	}

	query := fmt.Sprintf("UPDATE items SET %s WHERE id = $%d", strings.Join(sets, ", "), argIdx)
	args = append(args, id)
	return query, args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (model.StoredRecord, error) {
	var rec model.StoredRecord
	var attachments pq.StringArray
	err := row.Scan(
		&rec.ID, &rec.Record.Title, &rec.Record.Description, &rec.Record.Deadline,
		&rec.Record.Done, &attachments, &rec.Timestamp,
	)
	if err != nil {
		return model.StoredRecord{}, fmt.Errorf("failed to scan item: %w", err)
	}
	rec.Record.Attachments = nonNil([]string(attachments))
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ensure compile-time interface compliance
var _ RecordRepository = (*PostgresItemRepository)(nil)
