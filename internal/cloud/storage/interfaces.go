// Package storage defines what the object storage backends share: object
// locations, the upload contract used for sharing, and common errors.
package storage

import (
	"context"
	"time"
)

// Uploader stores an object and hands out a time-limited link to it.
// The S3 client implements it.
type Uploader interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
