package store

import "github.com/jaekwang-park/todo-sync/internal/model"

// Action is a named state transition understood by Reduce.
type Action interface {
	Type() string
}

// Fetched replaces the whole list with items loaded from the remote store.
type Fetched struct {
	Items []model.Item
}

// Added appends a new item with default values.
type Added struct {
	LocalID string
	Today   model.Date
}

// Updated merges Changes into the item addressed by Ref.
type Updated struct {
	Ref     string
	Changes model.Changes
}

// Deleted marks the item addressed by Ref for remote deletion.
type Deleted struct {
	Ref string
}

// AddedToDB acknowledges a remote create. Revision is the item revision
// that was sent.
type AddedToDB struct {
	LocalID  string
	ID       string
	Revision uint64
}

// UpdatedInDB acknowledges a remote update. Revision is the item revision
// that was sent.
type UpdatedInDB struct {
	Ref      string
	Revision uint64
}

// DeletedFromDB acknowledges a remote delete and drops the item.
type DeletedFromDB struct {
	Ref string
}

func (Fetched) Type() string       { return "fetched" }
func (Added) Type() string         { return "added" }
func (Updated) Type() string       { return "updated" }
func (Deleted) Type() string       { return "deleted" }
func (AddedToDB) Type() string     { return "added-to-db" }
func (UpdatedInDB) Type() string   { return "updated-in-db" }
func (DeletedFromDB) Type() string { return "deleted-from-db" }
