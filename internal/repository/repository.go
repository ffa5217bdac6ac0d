package repository

import (
	"context"

	"github.com/jaekwang-park/todo-sync/internal/model"
)

// RecordRepository is the remote document store holding item records.
type RecordRepository interface {
	// Create stores rec and returns the id assigned by the store. The
	// creation timestamp is assigned server side.
	Create(ctx context.Context, rec model.Record) (string, error)
	// GetAll returns every record ordered by creation timestamp.
	GetAll(ctx context.Context) ([]model.StoredRecord, error)
	// Update writes the fields set in changes. Returns ErrNotFound if no
	// record has the id.
	Update(ctx context.Context, id string, changes model.Changes) error
	// Delete removes the record. Returns ErrNotFound if no record has the id.
	Delete(ctx context.Context, id string) error
}
