package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores each key as its own file under a directory. Writes go to a
// temp file first and are renamed into place, so a crash mid-write leaves
// the previous value intact.
type File struct {
	dir string
	mu  sync.Mutex // serializes Swap
}

// NewFile creates dir if needed and returns a File rooted at it.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Dir() string { return f.dir }

func (f *File) path(key string) string {
	return filepath.Join(f.dir, filepath.Base(key))
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return b, nil
}

func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmpName, err := f.writeTemp(key, value)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Claim hard-links a complete temp file into place; the link fails if the
// key already exists.
func (f *File) Claim(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	tmpName, err := f.writeTemp(key, value)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmpName)
	err = os.Link(tmpName, f.path(key))
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("link %s: %w", key, err)
	}
	return true, nil
}

// Swap compares and replaces under a lock held by this File. It is atomic
// against other Swaps through the same File, not against other processes.
func (f *File) Swap(ctx context.Context, key string, old, value []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !bytes.Equal(cur, old) {
		return false, nil
	}
	return true, f.Set(ctx, key, value)
}

func (f *File) writeTemp(key string, value []byte) (string, error) {
	tmp, err := os.CreateTemp(f.dir, filepath.Base(key)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return tmpName, nil
}
