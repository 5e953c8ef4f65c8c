// Package blob defines the artifact store seam used by snapshot persistence.
package blob

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when no object exists at the path.
var ErrNotExist = errors.New("blob does not exist")

// Store reads and writes snapshot artifacts and returns a URI on write.
type Store interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}
