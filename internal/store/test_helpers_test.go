package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/lastclick/internal/model"
)

// createTestStore creates a new file-backed store under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string {
	return &s
}

func f64Ptr(v float64) *float64 {
	return &v
}

func i64Ptr(v int64) *int64 {
	return &v
}

// createTestOrder creates an order with minimal required fields.
func createTestOrder(id, fingerprint string, ts time.Time) model.Order {
	return model.Order{
		ID:             id,
		EventTimestamp: ts,
		Hostname:       "shop.example.com",
		UserPseudoID:   "visitor-" + id,
		Fingerprint:    fingerprint,
	}
}

// createTestProduct creates a product with the given business key.
func createTestProduct(id, key string) model.Product {
	return model.Product{
		ID:     id,
		FeedID: strPtr("feed-" + id),
		Name:   strPtr("name-" + id),
		Key:    key,
	}
}
