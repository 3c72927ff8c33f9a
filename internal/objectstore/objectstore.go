// Package objectstore moves asset objects between storage buckets. The only
// implementation is directory-backed: each bucket is a directory under a
// common root and each object key is a relative path inside it. Moves are
// copy-then-delete with integrity verification so a failure at any point
// leaves at most a spare copy, never a lost object.
package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"labelflow/internal/config"
)

var (
	// ErrObjectNotFound reports a missing source object. Not retried.
	ErrObjectNotFound = errors.New("object not found")
	// ErrBucketNotFound reports a missing bucket directory. Not retried.
	ErrBucketNotFound = errors.New("bucket not found")
)

// Mover transfers objects between buckets.
type Mover interface {
	// Move relocates key from srcBucket to dstBucket. On return without
	// error the object exists only in dstBucket.
	Move(ctx context.Context, srcBucket, dstBucket, key string) error
	// Exists reports whether the object is present in the bucket.
	Exists(ctx context.Context, bucket, key string) (bool, error)
	// Delete removes the object from the bucket. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, bucket, key string) error
}

// Local is a directory-backed Mover rooted at a storage directory.
type Local struct {
	root        string
	moveTimeout time.Duration
	retryMax    time.Duration
}

// NewLocal builds a Local mover from configuration.
func NewLocal(cfg *config.Config) *Local {
	return &Local{
		root:        cfg.Paths.StorageRoot,
		moveTimeout: time.Duration(cfg.Storage.MoveTimeout) * time.Second,
		retryMax:    time.Duration(cfg.Storage.RetryMaxElapsed) * time.Second,
	}
}

// Root returns the storage root directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) objectPath(bucket, key string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("%w: empty bucket name", ErrBucketNotFound)
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if key == "" || cleaned == "." || cleaned == ".." ||
		filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.root, bucket, cleaned), nil
}

// Exists reports whether the object is present in the bucket.
func (l *Local) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object: %w", err)
	}
	return !info.IsDir(), nil
}

// Delete removes the object from the bucket. Missing objects are ignored.
func (l *Local) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Move relocates an object between buckets. The copy is verified by size and
// SHA256 before the source is deleted. Transient failures are retried with
// exponential backoff; a missing source or bucket fails immediately.
func (l *Local) Move(ctx context.Context, srcBucket, dstBucket, key string) error {
	moveCtx := ctx
	if l.moveTimeout > 0 {
		var cancel context.CancelFunc
		moveCtx, cancel = context.WithTimeout(ctx, l.moveTimeout)
		defer cancel()
	}

	srcPath, err := l.objectPath(srcBucket, key)
	if err != nil {
		return err
	}
	dstPath, err := l.objectPath(dstBucket, key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(l.root, dstBucket)); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, dstBucket)
	}
	if _, err := os.Stat(srcPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, srcBucket, key)
	}

	operation := func() error {
		if err := moveCtx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if err := copyVerified(srcPath, dstPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return backoff.Permanent(fmt.Errorf("%w: %s/%s", ErrObjectNotFound, srcBucket, key))
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = l.retryMax
	if err := backoff.Retry(operation, backoff.WithContext(policy, moveCtx)); err != nil {
		return fmt.Errorf("move %s from %s to %s: %w", key, srcBucket, dstBucket, err)
	}

	if err := os.Remove(srcPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		// The copy landed; removing the spare source copy failed. Surface it
		// so the caller can decide, but the object itself is safe.
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// copyVerified streams src to dst with size and SHA256 verification,
// removing dst on mismatch.
func copyVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return errors.New("copy hash mismatch: object corrupted during copy")
	}
	return nil
}
