// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package fileio defines the FileIO contract consumed by the rest of
// the core for byte-level access to data and deletion-vector files, plus
// an in-memory reference implementation used by tests.
package fileio

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/zeebo/errs"
)

// Error is the class for file-system level failures.
var Error = errs.Class("fileio")

// ErrNotExist is returned by OpenInput/Delete for a missing path.
var ErrNotExist = Error.New("file does not exist")

// FileIO is the external byte-level I/O collaborator.
type FileIO interface {
	OpenInput(ctx context.Context, path string) (io.ReadCloser, error)
	OpenOutput(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)
	List(ctx context.Context, dir string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Memory is an in-memory FileIO, used by tests and by the reference CLI
// for small demonstrations.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory returns an empty in-memory file store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// Put seeds a file directly, bypassing OpenOutput, useful for test setup.
func (m *Memory) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[path] = cp
}

// OpenInput implements FileIO.
func (m *Memory) OpenInput(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, Error.Wrap(ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memoryWriter struct {
	m    *Memory
	path string
	buf  bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memoryWriter) Close() error {
	w.m.Put(w.path, w.buf.Bytes())
	return nil
}

// OpenOutput implements FileIO.
func (m *Memory) OpenOutput(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	m.mu.RLock()
	_, exists := m.files[path]
	m.mu.RUnlock()
	if exists && !overwrite {
		return nil, Error.Wrap(errs.New("file %q already exists", path))
	}
	return &memoryWriter{m: m, path: path}, nil
}

// List implements FileIO, returning paths with the given directory prefix.
func (m *Memory) List(ctx context.Context, dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for path := range m.files {
		if hasDirPrefix(path, dir) {
			out = append(out, path)
		}
	}
	return out, nil
}

func hasDirPrefix(path, dir string) bool {
	if dir == "" || dir == "/" {
		return true
	}
	if len(path) < len(dir) {
		return false
	}
	return path[:len(dir)] == dir
}

// Delete implements FileIO.
func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return Error.Wrap(ErrNotExist)
	}
	delete(m.files, path)
	return nil
}

// Exists implements FileIO.
func (m *Memory) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok, nil
}
