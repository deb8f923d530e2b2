package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/tdbstore/tdbstore/status"
)

// PosixFilesystem maps directly onto the host's POSIX filesystem,
// rooted at an absolute directory, with every operation a thin wrapper
// over the matching syscall.
type PosixFilesystem struct {
	root string
}

// NewPosix returns a Filesystem rooted at root, which must already exist.
func NewPosix(root string) (*PosixFilesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "canonicalize root")
	}
	return &PosixFilesystem{root: abs}, nil
}

func (p *PosixFilesystem) abs(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

func (p *PosixFilesystem) IsDir(dir string) bool {
	info, err := os.Stat(p.abs(dir))
	return err == nil && info.IsDir()
}

func (p *PosixFilesystem) IsFile(file string) bool {
	info, err := os.Stat(p.abs(file))
	return err == nil && !info.IsDir()
}

func (p *PosixFilesystem) ListDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(p.abs(dir))
	if err != nil {
		return nil, wrapIoErr(err, "list dirs %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (p *PosixFilesystem) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(p.abs(dir))
	if err != nil {
		return nil, wrapIoErr(err, "list files %s", dir)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (p *PosixFilesystem) CurrentDir() string {
	return p.root
}

func (p *PosixFilesystem) Canonicalize(rel string) (string, error) {
	return filepath.Abs(p.abs(rel))
}

func (p *PosixFilesystem) FileSize(file string) (int64, error) {
	info, err := os.Stat(p.abs(file))
	if err != nil {
		return 0, wrapIoErr(err, "stat %s", file)
	}
	return info.Size(), nil
}

func (p *PosixFilesystem) CreateDir(dir string) error {
	if err := os.MkdirAll(p.abs(dir), 0o755); err != nil {
		return wrapIoErr(err, "create dir %s", dir)
	}
	return nil
}

func (p *PosixFilesystem) DeleteDir(dir string) error {
	if err := os.RemoveAll(p.abs(dir)); err != nil {
		return wrapIoErr(err, "delete dir %s", dir)
	}
	return nil
}

// CreateFile writes data atomically via renameio: a temp file in the same
// directory, synced, then renamed over the destination. This is what
// makes sentinel/bookkeeping writes crash-safe.
func (p *PosixFilesystem) CreateFile(file string, data []byte) error {
	target := p.abs(file)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return wrapIoErr(err, "create parent dir for %s", file)
	}
	if err := renameio.WriteFile(target, data, 0o644); err != nil {
		return wrapIoErr(err, "create file %s", file)
	}
	return nil
}

func (p *PosixFilesystem) DeleteFile(file string) error {
	if err := os.Remove(p.abs(file)); err != nil {
		return wrapIoErr(err, "delete file %s", file)
	}
	return nil
}

func (p *PosixFilesystem) Move(oldPath, newPath string) error {
	dst := p.abs(newPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return wrapIoErr(err, "create parent dir for %s", newPath)
	}
	if err := os.Rename(p.abs(oldPath), dst); err != nil {
		return wrapIoErr(err, "move %s -> %s", oldPath, newPath)
	}
	return nil
}

type posixAppender struct {
	f *os.File
}

func (p *PosixFilesystem) CreateAppender(file string) (Appender, error) {
	target := p.abs(file)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, wrapIoErr(err, "create parent dir for %s", file)
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, wrapIoErr(err, "open appender %s", file)
	}
	return &posixAppender{f: f}, nil
}

// Write splits p into chunks no larger than maxWriteChunk.
func (a *posixAppender) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if int64(len(chunk)) > maxWriteChunk {
			chunk = chunk[:maxWriteChunk]
		}
		n, err := a.f.Write(chunk)
		total += n
		if err != nil {
			return total, wrapIoErr(err, "write")
		}
		p = p[len(chunk):]
	}
	return total, nil
}

func (a *posixAppender) Sync() error {
	return a.f.Sync()
}

func (a *posixAppender) Close() error {
	return a.f.Close()
}

func (p *PosixFilesystem) ReadAt(file string, offset int64, length int64) ([]byte, error) {
	f, err := os.Open(p.abs(file))
	if err != nil {
		return nil, wrapIoErr(err, "open %s", file)
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, wrapIoErr(err, "read %s at %d", file, offset)
	}
	if int64(n) != length {
		return nil, status.New(status.IoError, "short read of %s at %d: wanted %d got %d", file, offset, length, n)
	}
	return buf, nil
}

func (p *PosixFilesystem) ReadAll(file string) ([]byte, error) {
	bs, err := os.ReadFile(p.abs(file))
	if err != nil {
		return nil, wrapIoErr(err, "read %s", file)
	}
	return bs, nil
}

func (p *PosixFilesystem) Sync(rel string) error {
	f, err := os.Open(p.abs(rel))
	if err != nil {
		return wrapIoErr(err, "open for sync %s", rel)
	}
	defer f.Close()
	return f.Sync()
}

func (p *PosixFilesystem) Close() error { return nil }

func (p *PosixFilesystem) SupportsConsolidation() bool { return true }

func wrapIoErr(err error, format string, args ...interface{}) error {
	kind := status.IoError
	if os.IsNotExist(err) {
		kind = status.NotFound
	} else if os.IsExist(err) {
		kind = status.AlreadyExists
	} else if os.IsPermission(err) {
		kind = status.InvalidArg
	}
	return status.Wrap(kind, err, fmt.Sprintf(format, args...))
}
