package fs

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tdbstore/tdbstore/status"
)

// HTTPFilesystem is a read-only Filesystem over a plain HTTPS endpoint
// exposing byte-range GETs. It has no notion of directories; ListDirs/
// ListFiles always fail, since an http:// home only ever opens one
// known array path at a time.
type HTTPFilesystem struct {
	baseURL string
	client  *http.Client
}

func NewHTTP(baseURL string) *HTTPFilesystem {
	return &HTTPFilesystem{baseURL: baseURL, client: http.DefaultClient}
}

func (h *HTTPFilesystem) IsDir(dir string) bool  { return false }
func (h *HTTPFilesystem) IsFile(file string) bool {
	_, err := h.FileSize(file)
	return err == nil
}

func (h *HTTPFilesystem) ListDirs(dir string) ([]string, error) {
	return nil, status.New(status.InvalidArg, "HTTPFilesystem does not support directory listing")
}

func (h *HTTPFilesystem) ListFiles(dir string) ([]string, error) {
	return nil, status.New(status.InvalidArg, "HTTPFilesystem does not support directory listing")
}

func (h *HTTPFilesystem) CurrentDir() string { return h.baseURL }

func (h *HTTPFilesystem) Canonicalize(p string) (string, error) {
	return h.baseURL + "/" + p, nil
}

func (h *HTTPFilesystem) FileSize(file string) (int64, error) {
	req, err := http.NewRequest("HEAD", h.baseURL+"/"+file, nil)
	if err != nil {
		return 0, status.Wrap(status.IoError, err, "build HEAD")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, status.Wrap(status.IoError, err, "HEAD %s", file)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, status.New(status.NotFound, "HEAD %s: %s", file, resp.Status)
	}
	return resp.ContentLength, nil
}

func (h *HTTPFilesystem) CreateDir(dir string) error { return readOnlyErr() }
func (h *HTTPFilesystem) DeleteDir(dir string) error { return readOnlyErr() }
func (h *HTTPFilesystem) CreateFile(file string, data []byte) error { return readOnlyErr() }
func (h *HTTPFilesystem) DeleteFile(file string) error               { return readOnlyErr() }
func (h *HTTPFilesystem) Move(oldPath, newPath string) error         { return readOnlyErr() }
func (h *HTTPFilesystem) CreateAppender(file string) (Appender, error) {
	return nil, readOnlyErr()
}

func (h *HTTPFilesystem) ReadAt(file string, offset int64, length int64) ([]byte, error) {
	req, err := http.NewRequest("GET", h.baseURL+"/"+file, nil)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "build GET")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "GET %s", file)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, status.New(status.IoError, "GET %s: %s", file, resp.Status)
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, status.Wrap(status.IoError, err, "read body %s", file)
	}
	return buf[:n], nil
}

func (h *HTTPFilesystem) ReadAll(file string) ([]byte, error) {
	resp, err := h.client.Get(h.baseURL + "/" + file)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "GET %s", file)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, status.New(status.NotFound, "GET %s: %s", file, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (h *HTTPFilesystem) Sync(path string) error { return nil }
func (h *HTTPFilesystem) Close() error           { return nil }

func (h *HTTPFilesystem) SupportsConsolidation() bool { return false }

func readOnlyErr() error {
	return status.New(status.InvalidArg, "HTTPFilesystem is read-only")
}
