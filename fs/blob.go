package fs

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	"github.com/tdbstore/tdbstore/status"
)

// BlobFilesystem adapts a gocloud.dev/blob.Bucket (S3, GCS, Azure, ...) to
// Filesystem. Object stores generally forbid append, so CreateAppender is
// emulated by buffering writes in memory and flushing the whole object on
// Close; SupportsConsolidation is false so the array facade knows not to
// attempt in-place fragment deletion races against it.
type BlobFilesystem struct {
	bucket *blob.Bucket
	ctx    context.Context
	prefix string
}

// OpenBlob opens a Filesystem over a gocloud bucket URL (e.g.
// "s3://my-bucket", "gs://my-bucket", "azblob://my-container").
func OpenBlob(ctx context.Context, bucketURL string, prefix string) (*BlobFilesystem, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "open bucket %s", bucketURL)
	}
	if prefix != "" && prefix != "/" && prefix != "." {
		bucket = blob.PrefixedBucket(bucket, path.Clean(prefix)+"/")
	}
	return &BlobFilesystem{bucket: bucket, ctx: ctx, prefix: prefix}, nil
}

func (b *BlobFilesystem) key(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (b *BlobFilesystem) IsDir(dir string) bool {
	iter := b.bucket.List(&blob.ListOptions{Prefix: b.key(dir) + "/", Delimiter: "/"})
	_, err := iter.Next(b.ctx)
	return err == nil
}

func (b *BlobFilesystem) IsFile(file string) bool {
	ok, err := b.bucket.Exists(b.ctx, b.key(file))
	return err == nil && ok
}

func (b *BlobFilesystem) ListDirs(dir string) ([]string, error) {
	var out []string
	iter := b.bucket.List(&blob.ListOptions{Prefix: b.key(dir) + "/", Delimiter: "/"})
	for {
		obj, err := iter.Next(b.ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, status.Wrap(status.IoError, err, "list dirs %s", dir)
		}
		if obj.IsDir {
			out = append(out, strings.TrimSuffix(path.Base(strings.TrimSuffix(obj.Key, "/")), "/"))
		}
	}
	return out, nil
}

func (b *BlobFilesystem) ListFiles(dir string) ([]string, error) {
	var out []string
	iter := b.bucket.List(&blob.ListOptions{Prefix: b.key(dir) + "/", Delimiter: "/"})
	for {
		obj, err := iter.Next(b.ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, status.Wrap(status.IoError, err, "list files %s", dir)
		}
		if !obj.IsDir {
			out = append(out, path.Base(obj.Key))
		}
	}
	return out, nil
}

func (b *BlobFilesystem) CurrentDir() string { return "/" + b.prefix }

func (b *BlobFilesystem) Canonicalize(p string) (string, error) {
	return b.key(p), nil
}

func (b *BlobFilesystem) FileSize(file string) (int64, error) {
	attrs, err := b.bucket.Attributes(b.ctx, b.key(file))
	if err != nil {
		return 0, status.Wrap(status.NotFound, err, "stat %s", file)
	}
	return attrs.Size, nil
}

func (b *BlobFilesystem) CreateDir(dir string) error { return nil } // object stores have no real directories

func (b *BlobFilesystem) DeleteDir(dir string) error {
	iter := b.bucket.List(&blob.ListOptions{Prefix: b.key(dir) + "/"})
	for {
		obj, err := iter.Next(b.ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return status.Wrap(status.IoError, err, "list for delete %s", dir)
		}
		if err := b.bucket.Delete(b.ctx, obj.Key); err != nil {
			return status.Wrap(status.IoError, err, "delete %s", obj.Key)
		}
	}
	return nil
}

func (b *BlobFilesystem) CreateFile(file string, data []byte) error {
	w, err := b.bucket.NewWriter(b.ctx, b.key(file), nil)
	if err != nil {
		return status.Wrap(status.IoError, err, "create %s", file)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return status.Wrap(status.IoError, err, "write %s", file)
	}
	return w.Close()
}

func (b *BlobFilesystem) DeleteFile(file string) error {
	if err := b.bucket.Delete(b.ctx, b.key(file)); err != nil {
		return status.Wrap(status.IoError, err, "delete %s", file)
	}
	return nil
}

func (b *BlobFilesystem) Move(oldPath, newPath string) error {
	data, err := b.ReadAll(oldPath)
	if err != nil {
		return err
	}
	if err := b.CreateFile(newPath, data); err != nil {
		return err
	}
	return b.DeleteFile(oldPath)
}

// blobAppender buffers writes in memory; object stores have no append
// primitive, so each Close flushes the accumulated buffer as one PUT,
// read-modify-write style against whatever was previously flushed.
type blobAppender struct {
	fsys *BlobFilesystem
	key  string
	buf  bytes.Buffer
}

func (b *BlobFilesystem) CreateAppender(file string) (Appender, error) {
	key := b.key(file)
	existing, err := b.bucket.ReadAll(b.ctx, key)
	a := &blobAppender{fsys: b, key: key}
	if err == nil {
		a.buf.Write(existing)
	}
	return a, nil
}

func (a *blobAppender) Write(p []byte) (int, error) {
	return a.buf.Write(p)
}

func (a *blobAppender) Sync() error { return nil }

func (a *blobAppender) Close() error {
	w, err := a.fsys.bucket.NewWriter(a.fsys.ctx, a.key, nil)
	if err != nil {
		return status.Wrap(status.IoError, err, "flush appender %s", a.key)
	}
	if _, err := w.Write(a.buf.Bytes()); err != nil {
		w.Close()
		return status.Wrap(status.IoError, err, "flush appender %s", a.key)
	}
	return w.Close()
}

func (b *BlobFilesystem) ReadAt(file string, offset int64, length int64) ([]byte, error) {
	r, err := b.bucket.NewRangeReader(b.ctx, b.key(file), offset, length, nil)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "range read %s", file)
	}
	defer r.Close()
	buf := make([]byte, length)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, status.Wrap(status.IoError, err, "range read %s", file)
	}
	return buf[:n], nil
}

func (b *BlobFilesystem) ReadAll(file string) ([]byte, error) {
	bs, err := b.bucket.ReadAll(b.ctx, b.key(file))
	if err != nil {
		return nil, status.Wrap(status.NotFound, err, "read %s", file)
	}
	return bs, nil
}

func (b *BlobFilesystem) Sync(path string) error { return nil }

func (b *BlobFilesystem) Close() error { return b.bucket.Close() }

// SupportsConsolidation is false: sentinel creation on most object stores
// is not atomic across concurrent writers, so the array facade must not
// run consolidation's delete-old-fragments step against one.
func (b *BlobFilesystem) SupportsConsolidation() bool { return false }
