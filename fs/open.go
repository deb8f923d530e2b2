package fs

import (
	"context"
	"strings"
)

// Open dispatches a "home" string (a bare path, a file:// URL, an
// http(s):// URL, or any other scheme gocloud.dev/blob understands) to
// the matching Filesystem implementation.
func Open(ctx context.Context, home string) (Filesystem, error) {
	switch {
	case strings.HasPrefix(home, "http://"), strings.HasPrefix(home, "https://"):
		return NewHTTP(home), nil
	case strings.HasPrefix(home, "file://"):
		return NewPosix(strings.TrimPrefix(home, "file://"))
	case strings.Contains(home, "://"):
		return OpenBlob(ctx, home, "")
	default:
		return NewPosix(home)
	}
}
