package objectstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"labelflow/internal/objectstore"
	"labelflow/internal/testsupport"
)

func TestMoveRelocatesObject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mover := objectstore.NewLocal(cfg)

	content := []byte("frame data")
	srcPath := testsupport.WriteObject(t, cfg.Paths.StorageRoot, "bucket-a", "clips/0001.mp4", content)
	if err := os.MkdirAll(filepath.Join(cfg.Paths.StorageRoot, "bucket-b"), 0o755); err != nil {
		t.Fatalf("mkdir bucket-b: %v", err)
	}

	ctx := context.Background()
	if err := mover.Move(ctx, "bucket-a", "bucket-b", "clips/0001.mp4"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if _, err := os.Stat(srcPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after move: %v", err)
	}
	moved, err := os.ReadFile(filepath.Join(cfg.Paths.StorageRoot, "bucket-b", "clips", "0001.mp4"))
	if err != nil {
		t.Fatalf("read moved object: %v", err)
	}
	if string(moved) != string(content) {
		t.Fatalf("moved content = %q, want %q", moved, content)
	}
}

func TestMoveIsReversible(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mover := objectstore.NewLocal(cfg)

	testsupport.WriteObject(t, cfg.Paths.StorageRoot, "bucket-a", "item.bin", []byte("payload"))
	if err := os.MkdirAll(filepath.Join(cfg.Paths.StorageRoot, "bucket-b"), 0o755); err != nil {
		t.Fatalf("mkdir bucket-b: %v", err)
	}

	ctx := context.Background()
	if err := mover.Move(ctx, "bucket-a", "bucket-b", "item.bin"); err != nil {
		t.Fatalf("forward move: %v", err)
	}
	if err := mover.Move(ctx, "bucket-b", "bucket-a", "item.bin"); err != nil {
		t.Fatalf("reverse move: %v", err)
	}

	exists, err := mover.Exists(ctx, "bucket-a", "item.bin")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("object missing from original bucket after reverse move")
	}
	exists, err = mover.Exists(ctx, "bucket-b", "item.bin")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("object left behind in intermediate bucket")
	}
}

func TestMoveMissingSourceFailsFast(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mover := objectstore.NewLocal(cfg)

	for _, bucket := range []string{"bucket-a", "bucket-b"} {
		if err := os.MkdirAll(filepath.Join(cfg.Paths.StorageRoot, bucket), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bucket, err)
		}
	}

	err := mover.Move(context.Background(), "bucket-a", "bucket-b", "missing.bin")
	if !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMoveMissingBucketFailsFast(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mover := objectstore.NewLocal(cfg)
	testsupport.WriteObject(t, cfg.Paths.StorageRoot, "bucket-a", "item.bin", []byte("payload"))

	err := mover.Move(context.Background(), "bucket-a", "nonexistent", "item.bin")
	if !errors.Is(err, objectstore.ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

func TestObjectKeyValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mover := objectstore.NewLocal(cfg)
	ctx := context.Background()

	for _, key := range []string{"", "..", "../escape.bin", "/abs/path.bin"} {
		if _, err := mover.Exists(ctx, "bucket-a", key); err == nil {
			t.Errorf("Exists accepted invalid key %q", key)
		}
	}
}

func TestDeleteIgnoresMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mover := objectstore.NewLocal(cfg)

	if err := mover.Delete(context.Background(), "bucket-a", "never-existed.bin"); err != nil {
		t.Fatalf("Delete missing object: %v", err)
	}
}
