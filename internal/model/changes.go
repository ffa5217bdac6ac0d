package model

import "slices"

// Field names a persisted item field.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldDeadline    Field = "deadline"
	FieldDone        Field = "done"
	FieldAttachments Field = "attachments"
)

// AllFields lists every persisted field in column order.
var AllFields = []Field{FieldTitle, FieldDescription, FieldDeadline, FieldDone, FieldAttachments}

// Changes is a partial set of item fields. Nil pointers mean "unchanged".
type Changes struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Deadline    *Date     `json:"deadline,omitempty"`
	Done        *bool     `json:"done,omitempty"`
	Attachments *[]string `json:"attachments,omitempty"`
}

// Fields returns the fields set in c, in column order.
func (c Changes) Fields() []Field {
	var fields []Field
	if c.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if c.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if c.Deadline != nil {
		fields = append(fields, FieldDeadline)
	}
	if c.Done != nil {
		fields = append(fields, FieldDone)
	}
	if c.Attachments != nil {
		fields = append(fields, FieldAttachments)
	}
	return fields
}

func (c Changes) IsEmpty() bool {
	return len(c.Fields()) == 0
}

// Merge returns c overlaid with the fields set in other.
func (c Changes) Merge(other Changes) Changes {
	out := c.clone()
	o := other.clone()
	if o.Title != nil {
		out.Title = o.Title
	}
	if o.Description != nil {
		out.Description = o.Description
	}
	if o.Deadline != nil {
		out.Deadline = o.Deadline
	}
	if o.Done != nil {
		out.Done = o.Done
	}
	if o.Attachments != nil {
		out.Attachments = o.Attachments
	}
	return out
}

// Apply returns item with the fields set in c overwritten. item is not
// modified.
func (c Changes) Apply(item Item) Item {
	out := item.Clone()
	if c.Title != nil {
		out.Title = *c.Title
	}
	if c.Description != nil {
		out.Description = *c.Description
	}
	if c.Deadline != nil {
		out.Deadline = *c.Deadline
	}
	if c.Done != nil {
		out.Done = *c.Done
	}
	if c.Attachments != nil {
		out.Attachments = slices.Clone(*c.Attachments)
		if out.Attachments == nil {
			out.Attachments = []string{}
		}
	}
	return out
}

func (c Changes) clone() Changes {
	out := c
	if c.Attachments != nil {
		a := slices.Clone(*c.Attachments)
		out.Attachments = &a
	}
	return out
}

// ChangesFor returns the current values of fields on item.
func ChangesFor(item Item, fields []Field) Changes {
	var c Changes
	for _, f := range fields {
		switch f {
		case FieldTitle:
			v := item.Title
			c.Title = &v
		case FieldDescription:
			v := item.Description
			c.Description = &v
		case FieldDeadline:
			v := item.Deadline
			c.Deadline = &v
		case FieldDone:
			v := item.Done
			c.Done = &v
		case FieldAttachments:
			v := slices.Clone(item.Attachments)
			if v == nil {
				v = []string{}
			}
			c.Attachments = &v
		}
	}
	return c
}

// unionFields appends the members of add missing from fields, keeping
// column order.
func unionFields(fields, add []Field) []Field {
	var out []Field
	for _, f := range AllFields {
		if slices.Contains(fields, f) || slices.Contains(add, f) {
			out = append(out, f)
		}
	}
	return out
}

// WithFields returns s extended by fields. Only meaningful for pending
// updates.
func (s SyncState) WithFields(fields []Field) SyncState {
	return SyncState{Kind: s.Kind, Fields: unionFields(s.Fields, fields)}
}
