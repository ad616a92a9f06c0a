// Package storage handles media persistence in an S3-compatible object store.
package storage

import "context"

// Uploader pushes a local file into the media store and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}
