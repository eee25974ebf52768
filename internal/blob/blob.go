// Package blob stores attachment bytes behind a small capability interface
// so the in-memory data-URL mode and real object storage are
// interchangeable without touching attachment ownership logic.
package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Store is the attachment byte-storage capability.
type Store interface {
	// Store persists the bytes and returns a self-describing reference.
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	// Retrieve resolves a reference back to the stored bytes.
	Retrieve(ctx context.Context, ref string) ([]byte, error)
	// Delete drops the stored bytes. Deleting an unknown reference is not
	// an error.
	Delete(ctx context.Context, ref string) error
}

var ErrBadReference = errors.New("blob: malformed reference")

// DataURLStore encodes blobs as base64 data URLs. The reference carries the
// content itself, so there is nothing to look up or delete.
type DataURLStore struct{}

func NewDataURLStore() *DataURLStore {
	return &DataURLStore{}
}

func (s *DataURLStore) Store(_ context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *DataURLStore) Retrieve(_ context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "data:") {
		return nil, ErrBadReference
	}
	_, encoded, ok := strings.Cut(ref, ";base64,")
	if !ok {
		return nil, ErrBadReference
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}

func (s *DataURLStore) Delete(context.Context, string) error {
	return nil
}
