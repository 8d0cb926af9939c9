package postgres

import (
	"context"
	"testing"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestNormalizeID(t *testing.T) {
	if got := normalizeID("  0xABcd "); got != "0xabcd" {
		t.Fatalf("unexpected id %q", got)
	}
}
