// Package blob stores receipts and proof uploads behind opaque references.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotReady = errors.New("blob: storage not ready")
	ErrNotFound = errors.New("blob: not found")
)

type Meta struct {
	Filename    string
	ContentType string
	Attrs       map[string]string
}

type Object struct {
	Meta
	Size int64
	Body io.ReadCloser
}

type Store interface {
	Put(ctx context.Context, data []byte, m Meta) (ref string, err error)
	Get(ctx context.Context, ref string) (Object, error)
}
