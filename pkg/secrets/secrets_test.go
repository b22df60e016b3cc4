package secrets

import (
	"context"
	"testing"

	"github.com/insanalamin/mechaway/pkg/storage"
)

func TestStore_PutAndResolve(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	store := NewStore(mgr, "test-key-material")
	ctx := context.Background()

	if err := store.Put(ctx, "acme-labs", "api_key", "sk-live-abc123"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Resolve(ctx, "acme-labs", "api_key")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "sk-live-abc123" {
		t.Errorf("expected decrypted secret to round-trip, got %q", got)
	}
}

func TestStore_Resolve_Unknown(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	store := NewStore(mgr, "test-key-material")

	if _, err := store.Resolve(context.Background(), "acme-labs", "missing"); err == nil {
		t.Fatal("expected error for unknown secret")
	}
}

func TestStore_Put_OverwritesExisting(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	store := NewStore(mgr, "test-key-material")
	ctx := context.Background()

	if err := store.Put(ctx, "acme-labs", "api_key", "first"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "acme-labs", "api_key", "second"); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}

	got, err := store.Resolve(ctx, "acme-labs", "api_key")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "second" {
		t.Errorf("expected overwritten value \"second\", got %q", got)
	}
}

func TestStore_ProjectIsolation(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	store := NewStore(mgr, "test-key-material")
	ctx := context.Background()

	if err := store.Put(ctx, "project-a", "shared_name", "a-value"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := store.Resolve(ctx, "project-b", "shared_name"); err == nil {
		t.Fatal("expected project-b to not see project-a's secret")
	}
}
