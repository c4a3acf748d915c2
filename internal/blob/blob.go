// Package blob stores attachment contents on the local filesystem or in S3.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("blob not found")

// Store persists attachment contents by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a direct download URL, or "" when contents must be
	// streamed through the server.
	URL(ctx context.Context, key string) (string, error)
}

// Key builds a storage key for a file attached to a question.
// The original file name is kept only as its extension.
func Key(questionID int64, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("questions/question_%d/%s%s", questionID, uuid.NewString(), ext)
}
