package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

type localStore struct {
	root string
}

// NewLocal creates an ArtifactStore on the local filesystem. Artifacts are
// laid out as <root>/<run id>/<name>.
func NewLocal(root string) (interfaces.ArtifactStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact root", goerr.V("root", root))
	}
	return &localStore{root: root}, nil
}

func (x *localStore) Save(ctx context.Context, runID types.RunID, name string, r io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", goerr.New("artifact name must be a bare file name", goerr.V("name", name))
	}

	dir := filepath.Join(x.root, runID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create artifact directory", goerr.V("dir", dir))
	}

	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create artifact file", goerr.V("path", dst))
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := io.Copy(f, r); err != nil {
		return "", goerr.Wrap(err, "failed to write artifact", goerr.V("path", dst))
	}
	return dst, nil
}

func (x *localStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	// Refuse paths that escape the store root.
	rel, err := filepath.Rel(x.root, filepath.Clean(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, goerr.New("artifact path outside store root", goerr.V("path", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact", goerr.V("path", path))
	}
	return f, nil
}
