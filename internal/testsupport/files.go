package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteObject places object content under a bucket directory rooted at
// storageRoot, creating parents as needed, and returns the file path.
func WriteObject(t testing.TB, storageRoot, bucket, key string, content []byte) string {
	t.Helper()

	path := filepath.Join(storageRoot, bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
