// Package fsutil provides filesystem abstractions for testability.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileSystem abstracts the filesystem operations the artifact publisher
// needs. Use OSFileSystem for production; MemoryFileSystem for testing.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Rename atomically replaces newname with oldname.
	Rename(oldname, newname string) error

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes the named file or empty directory.
	Remove(name string) error

	// Exists checks if a file or directory exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile writes data to the named file.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Rename renames oldname to newname.
func (OSFileSystem) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

// MkdirAll creates a directory path.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes the named file or directory.
func (OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

// Exists checks if a file exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem provides an in-memory filesystem for testing.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// WriteFile writes data to a file.
func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.files[name] = dataCopy
	return nil
}

// Rename replaces newname with oldname.
func (m *MemoryFileSystem) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldname = filepath.Clean(oldname)
	newname = filepath.Clean(newname)
	data, ok := m.files[oldname]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldname, Err: fs.ErrNotExist}
	}
	m.files[newname] = data
	delete(m.files, oldname)
	return nil
}

// MkdirAll creates directories.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.dirs[path] = true
	for p := filepath.Dir(path); p != "." && p != "/" && p != path; p = filepath.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

// Remove removes a file or empty directory.
func (m *MemoryFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		delete(m.files, name)
		return nil
	}
	if m.dirs[name] {
		delete(m.dirs, name)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

// Exists checks if a file or directory exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		return true
	}
	return m.dirs[name]
}
