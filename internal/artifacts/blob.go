package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobReader reads raw document bytes by a caller-supplied path.
type BlobReader interface {
	ReadBlob(ctx context.Context, path string) ([]byte, error)
}

// FSBlobReader serves blobs from a local directory root. Paths are cleaned
// and confined to the root.
type FSBlobReader struct {
	Root string
}

var _ BlobReader = (*FSBlobReader)(nil)

func (r *FSBlobReader) ReadBlob(_ context.Context, path string) ([]byte, error) {
	cleaned := filepath.Clean("/" + path)
	full := filepath.Join(r.Root, cleaned)
	if !strings.HasPrefix(full, filepath.Clean(r.Root)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("blob path escapes root: %s", path)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	return data, nil
}
