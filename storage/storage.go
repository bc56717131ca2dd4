/*
	Package storage provides the backing store for block files.  Paths are either
	local filesystem paths or bucket URLs such as gs://bucket/dir/block.lblk,
	s3://bucket/dir/block.lblk, file:///dir/block.lblk or mem://bucket/block.lblk.

	Values are whole files as []byte at this level.  Serialization happens above
	the storage level in the blockfile package.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
)

// ErrNotFound is returned when a path does not exist in the store.
var ErrNotFound = errors.New("not found")

// IsNotFound returns true if the error signals a missing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// Store reads and writes whole files.  WriteFile must be durable when it
// returns nil, and Rename must replace any existing destination.
type Store interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Rename(ctx context.Context, oldpath, newpath string) error
	Remove(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Number of bytes read and written through stores in this process.
var (
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
)

// BytesRead returns the number of bytes read from any store.
func BytesRead() uint64 {
	return bytesRead.Load()
}

// BytesWritten returns the number of bytes written to any store.
func BytesWritten() uint64 {
	return bytesWritten.Load()
}

// Router dispatches each path to a local store or to a bucket store based on its
// URL scheme.  Buckets are opened on first use and kept until Close.
type Router struct {
	local   Store
	buckets *bucketCache
}

// NewRouter returns a Router whose plain paths go to the local filesystem.
func NewRouter() *Router {
	return &Router{
		local:   LocalStore{},
		buckets: newBucketCache(),
	}
}

func (r *Router) route(ctx context.Context, path string) (Store, string, error) {
	ref, key, isBucket, err := SplitURL(path)
	if err != nil {
		return nil, "", err
	}
	if !isBucket {
		return r.local, path, nil
	}
	bs, err := r.buckets.get(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return bs, key, nil
}

func (r *Router) ReadFile(ctx context.Context, path string) ([]byte, error) {
	s, key, err := r.route(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.ReadFile(ctx, key)
}

func (r *Router) WriteFile(ctx context.Context, path string, data []byte) error {
	s, key, err := r.route(ctx, path)
	if err != nil {
		return err
	}
	return s.WriteFile(ctx, key, data)
}

// Rename requires both paths to be in the same store.
func (r *Router) Rename(ctx context.Context, oldpath, newpath string) error {
	oldRef, _, _, err := SplitURL(oldpath)
	if err != nil {
		return err
	}
	newRef, _, _, err := SplitURL(newpath)
	if err != nil {
		return err
	}
	if oldRef != newRef {
		return fmt.Errorf("cannot rename %q to %q across stores", oldpath, newpath)
	}
	s, oldkey, err := r.route(ctx, oldpath)
	if err != nil {
		return err
	}
	_, newkey, err := r.route(ctx, newpath)
	if err != nil {
		return err
	}
	return s.Rename(ctx, oldkey, newkey)
}

func (r *Router) Remove(ctx context.Context, path string) error {
	s, key, err := r.route(ctx, path)
	if err != nil {
		return err
	}
	return s.Remove(ctx, key)
}

func (r *Router) Exists(ctx context.Context, path string) (bool, error) {
	s, key, err := r.route(ctx, path)
	if err != nil {
		return false, err
	}
	return s.Exists(ctx, key)
}

// Close closes any opened buckets.
func (r *Router) Close() error {
	return r.buckets.close()
}
