package artifact

import (
	"context"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

type gcsStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSOption customizes the Cloud Storage store.
type GCSOption func(*gcsStore)

// WithPrefix prepends an object name prefix to every stored artifact.
func WithPrefix(prefix string) GCSOption {
	return func(x *gcsStore) {
		x.prefix = strings.Trim(prefix, "/")
	}
}

// NewGCS creates an ArtifactStore on a Cloud Storage bucket. Objects are
// named <prefix>/<run id>/<name> and locations are returned as gs:// URLs.
func NewGCS(ctx context.Context, bucket string, opts ...GCSOption) (interfaces.ArtifactStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	store := &gcsStore{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (x *gcsStore) Save(ctx context.Context, runID types.RunID, name string, r io.Reader) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", goerr.New("artifact name must be a bare file name", goerr.V("name", name))
	}

	object := path.Join(x.prefix, runID.String(), name)
	w := x.client.Bucket(x.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to upload artifact", goerr.V("object", object))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finish artifact upload", goerr.V("object", object))
	}
	return "gs://" + x.bucket + "/" + object, nil
}

func (x *gcsStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	object := strings.TrimPrefix(location, "gs://"+x.bucket+"/")
	if object == location {
		return nil, goerr.New("artifact location is not in this bucket", goerr.V("location", location))
	}

	r, err := x.client.Bucket(x.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact", goerr.V("object", object))
	}
	return r, nil
}
