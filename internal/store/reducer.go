package store

import (
	"fmt"

	"github.com/jaekwang-park/todo-sync/internal/model"
)

// Reduce applies action to items and returns the resulting list. It never
// mutates items or performs I/O. An unknown action type is a programming
// error and panics.
func Reduce(items []model.Item, action Action) []model.Item {
	switch a := action.(type) {
	case Fetched:
		out := make([]model.Item, 0, len(a.Items))
		for _, it := range a.Items {
			c := it.Clone()
			c.State = model.Clean()
			c.Revision = 0
			out = append(out, c)
		}
		return out

	case Added:
		out := make([]model.Item, 0, len(items)+1)
		out = append(out, items...)
		return append(out, model.NewItem(a.LocalID, a.Today))

	case Updated:
		return mapMatching(items, a.Ref, func(it model.Item) model.Item {
			next := a.Changes.Apply(it)
			next.Revision = it.Revision + 1
			switch it.State.Kind {
			case model.SyncClean:
				next.State = model.PendingUpdate(a.Changes.Fields()...)
			case model.SyncPendingUpdate:
				next.State = it.State.WithFields(a.Changes.Fields())
			}
			return next
		})

	case Deleted:
		return mapMatching(items, a.Ref, func(it model.Item) model.Item {
			next := it.Clone()
			next.State = model.PendingDelete()
			return next
		})

	case AddedToDB:
		idx := pendingCreateIndex(items, a.LocalID)
		if idx < 0 {
			return items
		}
		out := make([]model.Item, len(items))
		copy(out, items)
		next := items[idx].Clone()
		next.ID = a.ID
		switch {
		case next.State.Kind == model.SyncPendingDelete:
		case next.Revision > a.Revision:
			// Edited while the create was in flight.
			next.State = model.PendingUpdate(model.AllFields...)
		default:
			next.State = model.Clean()
		}
		out[idx] = next
		return out

	case UpdatedInDB:
		return mapMatching(items, a.Ref, func(it model.Item) model.Item {
			if it.State.Kind != model.SyncPendingUpdate || it.Revision > a.Revision {
				return it
			}
			next := it.Clone()
			next.State = model.Clean()
			return next
		})

	case DeletedFromDB:
		out := make([]model.Item, 0, len(items))
		for _, it := range items {
			if !it.Matches(a.Ref) {
				out = append(out, it)
			}
		}
		if len(out) == len(items) {
			return items
		}
		return out

	default:
		panic(fmt.Sprintf("store: unknown action %T", action))
	}
}

func mapMatching(items []model.Item, ref string, fn func(model.Item) model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		if it.Matches(ref) {
			out[i] = fn(it)
		} else {
			out[i] = it
		}
	}
	return out
}

// pendingCreateIndex locates the item a create acknowledgment refers to.
// Without a local id it falls back to the only item awaiting creation and
// returns -1 when that is ambiguous.
func pendingCreateIndex(items []model.Item, localID string) int {
	if localID != "" {
		for i, it := range items {
			if it.ID == "" && it.LocalID == localID {
				return i
			}
		}
		return -1
	}

	found := -1
	for i, it := range items {
		if it.ID == "" && it.State.Kind == model.SyncPendingCreate {
			if found >= 0 {
				return -1
			}
			found = i
		}
	}
	return found
}
