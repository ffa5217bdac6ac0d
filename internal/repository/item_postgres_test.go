package repository

import (
	"testing"

	"github.com/jaekwang-park/todo-sync/internal/model"
)

func TestBuildUpdate(t *testing.T) {
	title := "Buy groceries"
	done := true
	attachments := []string{"a.txt"}

	tests := []struct {
		name      string
		changes   model.Changes
		wantQuery string
		wantArgs  int
	}{
		{
			name:      "single field",
			changes:   model.Changes{Attachments: &attachments},
			wantQuery: "UPDATE items SET attachments = $1 WHERE id = $2",
			wantArgs:  2,
		},
		{
			name:      "several fields keep column order",
			changes:   model.Changes{Done: &done, Title: &title},
			wantQuery: "UPDATE items SET title = $1, done = $2 WHERE id = $3",
			wantArgs:  3,
		},
		{
			name:      "no fields",
			changes:   model.Changes{},
			wantQuery: "UPDATE items SET id = id WHERE id = $1",
			wantArgs:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildUpdate("item-1", tt.changes)
			if query != tt.wantQuery {
				t.Errorf("query = %q, want %q", query, tt.wantQuery)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("got %d args, want %d", len(args), tt.wantArgs)
			}
			if args[len(args)-1] != "item-1" {
				t.Errorf("expected id as last arg, got %v", args[len(args)-1])
			}
		})
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	in := []string{"a"}
	if got := nonNil(in); len(got) != 1 || got[0] != "a" {
		t.Errorf("unexpected result %v", got)
	}
}
