package model

import (
	"slices"
	"time"
)

const (
	DefaultTitle       = "Title"
	DefaultDescription = "Description"
	// DefaultDeadlineDays is how far in the future a new item's deadline is.
	DefaultDeadlineDays = 7
)

// SyncKind tags the remote operation an item is waiting for.
type SyncKind string

const (
	SyncClean         SyncKind = "clean"
	SyncPendingCreate SyncKind = "pending_create"
	SyncPendingUpdate SyncKind = "pending_update"
	SyncPendingDelete SyncKind = "pending_delete"
)

func (k SyncKind) IsValid() bool {
	switch k {
	case SyncClean, SyncPendingCreate, SyncPendingUpdate, SyncPendingDelete:
		return true
	}
	return false
}

// SyncState is the per-item sync state. Fields is only set for
// SyncPendingUpdate and lists the fields changed since the last
// acknowledged write.
type SyncState struct {
	Kind   SyncKind `json:"kind"`
	Fields []Field  `json:"fields,omitempty"`
}

func Clean() SyncState         { return SyncState{Kind: SyncClean} }
func PendingCreate() SyncState { return SyncState{Kind: SyncPendingCreate} }
func PendingDelete() SyncState { return SyncState{Kind: SyncPendingDelete} }

func PendingUpdate(fields ...Field) SyncState {
	return SyncState{Kind: SyncPendingUpdate, Fields: unionFields(nil, fields)}
}

func (s SyncState) Pending() bool {
	return s.Kind != SyncClean && s.Kind != ""
}

// Item is a to-do entry as held by the local store.
type Item struct {
	ID          string    `json:"id,omitempty"`
	LocalID     string    `json:"local_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    Date      `json:"deadline"`
	Done        bool      `json:"done"`
	Attachments []string  `json:"attachments"`
	State       SyncState `json:"state"`
	Revision    uint64    `json:"revision"`
}

// NewItem returns an item with default field values, not yet known to the
// remote store.
func NewItem(localID string, today Date) Item {
	return Item{
		LocalID:     localID,
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Deadline:    today.AddDays(DefaultDeadlineDays),
		Done:        false,
		Attachments: []string{},
		State:       PendingCreate(),
		Revision:    1,
	}
}

// Ref returns the identifier callers use to address the item.
func (i Item) Ref() string {
	if i.ID != "" {
		return i.ID
	}
	return i.LocalID
}

// Key returns an identifier that is stable for the item's whole lifetime
// in this process.
func (i Item) Key() string {
	if i.LocalID != "" {
		return i.LocalID
	}
	return i.ID
}

// Matches reports whether ref addresses this item.
func (i Item) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	return i.ID == ref || i.LocalID == ref
}

func (i Item) HasAttachment(name string) bool {
	return slices.Contains(i.Attachments, name)
}

// Clone returns a deep copy.
func (i Item) Clone() Item {
	c := i
	c.Attachments = slices.Clone(i.Attachments)
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	c.State.Fields = slices.Clone(i.State.Fields)
	return c
}

// Record returns the persisted fields of the item.
func (i Item) Record() Record {
	return Record{
		Title:       i.Title,
		Description: i.Description,
		Deadline:    i.Deadline,
		Done:        i.Done,
		Attachments: slices.Clone(i.Attachments),
	}
}

// Record is the shape persisted remotely. The id is carried out of band.
type Record struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Deadline    Date     `json:"deadline"`
	Done        bool     `json:"done"`
	Attachments []string `json:"attachments"`
}

// StoredRecord is a record read back from the remote store together with
// its key and server-assigned creation time.
type StoredRecord struct {
	ID        string
	Record    Record
	Timestamp time.Time
}

// Item converts a stored record to a clean local item. The timestamp is
// dropped.
func (r StoredRecord) Item() Item {
	attachments := slices.Clone(r.Record.Attachments)
	if attachments == nil {
		attachments = []string{}
	}
	return Item{
		ID:          r.ID,
		Title:       r.Record.Title,
		Description: r.Record.Description,
		Deadline:    r.Record.Deadline,
		Done:        r.Record.Done,
		Attachments: attachments,
		State:       Clean(),
	}
}
