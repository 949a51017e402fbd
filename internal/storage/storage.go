// Package storage keeps synthesized chapter audio for a limited time so
// clients can fetch it by reference after a generation run.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown or expired references.
var ErrNotFound = errors.New("storage: object not found")

// Object is a stored audio payload.
type Object struct {
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// AudioStore stores opaque audio payloads under generated references.
type AudioStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) (*Object, error)
}
