package storage

import "context"

// ObjectStore uploads generated binary artifacts and returns a publicly
// retrievable URL. Re-uploading the same key replaces the content without
// erroring.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
