package blob

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDataURLRoundTrip(t *testing.T) {
	store := NewDataURLStore()
	ctx := context.Background()
	payload := []byte("%PDF-1.4 fake report")

	ref, err := store.Store(ctx, payload, "application/pdf")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !strings.HasPrefix(ref, "data:application/pdf;base64,") {
		t.Fatalf("unexpected reference %q", ref)
	}

	data, err := store.Retrieve(ctx, ref)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("retrieved %q, want %q", data, payload)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func TestDataURLDefaultContentType(t *testing.T) {
	store := NewDataURLStore()
	ref, err := store.Store(context.Background(), []byte{0x1}, "")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !strings.HasPrefix(ref, "data:application/octet-stream;base64,") {
		t.Errorf("unexpected reference %q", ref)
	}
}

func TestDataURLBadReference(t *testing.T) {
	store := NewDataURLStore()
	for _, ref := range []string{"", "s3:abc", "data:text/plain,hello"} {
		if _, err := store.Retrieve(context.Background(), ref); err == nil {
			t.Errorf("Retrieve(%q) succeeded, want error", ref)
		}
	}
}
