// Package gcs defines the object storage used to archive voice notes.
package gcs

import (
	"context"
	"io"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadObject streams r into bucket/object and returns its gs:// URI.
	UploadObject(ctx context.Context, bucketName, objectName string, r io.Reader, contentType string) (string, error)

	// FetchFromGCS downloads object bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
