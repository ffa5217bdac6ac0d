package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Object identifies a stored blob.
type Object struct {
	Namespace string
	Name      string
}

// Key returns the bucket key of o.
func (o Object) Key() string {
	return ObjectKey(o.Namespace, o.Name)
}

// Client defines the blob store operations. Blobs are grouped under a
// namespace, which is the owning item's id.
type Client interface {
	Upload(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error
	List(ctx context.Context, namespace string) ([]Object, error)
	Delete(ctx context.Context, obj Object) error
	DownloadURL(ctx context.Context, namespace, name string) (string, error)
}

func ObjectKey(namespace, name string) string {
	return namespace + "/" + name
}

// ValidateName rejects names that would escape the namespace.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
