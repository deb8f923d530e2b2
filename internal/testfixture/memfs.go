// Package testfixture provides shared test helpers: an in-memory
// fs.Filesystem so package tests don't need a real temp directory, and a
// handful of deterministic schemas used across fragment/array tests.
package testfixture

import (
	"sync"

	"github.com/tdbstore/tdbstore/fs"
	"github.com/tdbstore/tdbstore/status"
)

// MemFS is a minimal in-memory fs.Filesystem: a flat map of file key to
// bytes, plus a set of directory keys, guarded by one mutex. It does not
// support consolidation's atomic-delete guarantee any more strictly than
// the POSIX backend does, but it does report SupportsConsolidation true
// so Consolidate tests can exercise the full path without a real disk.
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemFS returns an empty in-memory filesystem rooted at "".
func NewMemFS() *MemFS {
	return &MemFS{files: map[string][]byte{}, dirs: map[string]bool{".": true}}
}

func (m *MemFS) IsDir(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[clean(dir)]
}

func (m *MemFS) IsFile(file string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[clean(file)]
	return ok
}

func (m *MemFS) ListDirs(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := clean(dir) + "/"
	seen := map[string]bool{}
	var out []string
	for d := range m.dirs {
		if d == "." || !hasPrefix(d, prefix) {
			continue
		}
		rest := d[len(prefix):]
		if i := indexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out, nil
}

func (m *MemFS) ListFiles(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := clean(dir) + "/"
	var out []string
	for f := range m.files {
		if hasPrefix(f, prefix) && indexByte(f[len(prefix):], '/') < 0 {
			out = append(out, f[len(prefix):])
		}
	}
	return out, nil
}

func (m *MemFS) CurrentDir() string { return "." }

func (m *MemFS) Canonicalize(p string) (string, error) { return clean(p), nil }

func (m *MemFS) FileSize(file string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.files[clean(file)]
	if !ok {
		return 0, status.New(status.NotFound, "no such file %s", file)
	}
	return int64(len(bs)), nil
}

func (m *MemFS) CreateDir(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[clean(dir)] = true
	return nil
}

func (m *MemFS) DeleteDir(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := clean(dir)
	delete(m.dirs, prefix)
	for d := range m.dirs {
		if hasPrefix(d, prefix+"/") {
			delete(m.dirs, d)
		}
	}
	for f := range m.files {
		if hasPrefix(f, prefix+"/") {
			delete(m.files, f)
		}
	}
	return nil
}

func (m *MemFS) CreateFile(file string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte{}, data...)
	m.files[clean(file)] = cp
	return nil
}

func (m *MemFS) DeleteFile(file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, clean(file))
	return nil
}

func (m *MemFS) Move(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.files[clean(oldPath)]
	if !ok {
		return status.New(status.NotFound, "no such file %s", oldPath)
	}
	m.files[clean(newPath)] = bs
	delete(m.files, clean(oldPath))
	return nil
}

type memAppender struct {
	m    *MemFS
	key  string
}

func (m *MemFS) CreateAppender(file string) (fs.Appender, error) {
	key := clean(file)
	m.mu.Lock()
	if _, ok := m.files[key]; !ok {
		m.files[key] = nil
	}
	m.mu.Unlock()
	return &memAppender{m: m, key: key}, nil
}

func (a *memAppender) Write(p []byte) (int, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	a.m.files[a.key] = append(a.m.files[a.key], p...)
	return len(p), nil
}

func (a *memAppender) Sync() error { return nil }
func (a *memAppender) Close() error { return nil }

func (m *MemFS) ReadAt(file string, offset int64, length int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.files[clean(file)]
	if !ok {
		return nil, status.New(status.NotFound, "no such file %s", file)
	}
	if offset+length > int64(len(bs)) {
		return nil, status.New(status.IoError, "short read of %s at %d", file, offset)
	}
	out := make([]byte, length)
	copy(out, bs[offset:offset+length])
	return out, nil
}

func (m *MemFS) ReadAll(file string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.files[clean(file)]
	if !ok {
		return nil, status.New(status.NotFound, "no such file %s", file)
	}
	out := make([]byte, len(bs))
	copy(out, bs)
	return out, nil
}

func (m *MemFS) Sync(path string) error { return nil }

func (m *MemFS) Close() error { return nil }

// SupportsConsolidation reports true: the in-memory backend can always
// delete-then-replace atomically from a single test goroutine's view.
func (m *MemFS) SupportsConsolidation() bool { return true }

func clean(p string) string {
	if p == "" {
		return "."
	}
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	for len(p) > 1 && p[0] == '/' {
		p = p[1:]
	}
	return p
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
