package runstore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// defaultCollection is the Firestore collection holding run documents.
const defaultCollection = "drover_runs"

type firestoreStore struct {
	client     *firestore.Client
	collection string
}

// FirestoreOption customizes the Firestore store.
type FirestoreOption func(*firestoreStore)

// WithCollection overrides the collection name.
func WithCollection(name string) FirestoreOption {
	return func(x *firestoreStore) {
		x.collection = name
	}
}

// NewFirestore creates a RunStore backed by Cloud Firestore. It is meant
// for serve mode on Google Cloud where runs must survive restarts and be
// visible across replicas.
func NewFirestore(ctx context.Context, projectID string, opts ...FirestoreOption) (interfaces.RunStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("project", projectID))
	}

	store := &firestoreStore{client: client, collection: defaultCollection}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (x *firestoreStore) Put(ctx context.Context, run *model.Run) error {
	doc := x.client.Collection(x.collection).Doc(run.ID.String())
	if _, err := doc.Set(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to store run", goerr.V("id", run.ID))
	}
	return nil
}

func (x *firestoreStore) Get(ctx context.Context, id types.RunID) (*model.Run, error) {
	snap, err := x.client.Collection(x.collection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrRunNotFound, "no such run", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("id", id))
	}

	var run model.Run
	if err := snap.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run document", goerr.V("id", id))
	}
	return &run, nil
}

func (x *firestoreStore) List(ctx context.Context, limit int) ([]*model.Run, error) {
	query := x.client.Collection(x.collection).OrderBy("StartedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var runs []*model.Run
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate runs")
		}
		var run model.Run
		if err := snap.DataTo(&run); err != nil {
			return nil, goerr.Wrap(err, "failed to decode run document", goerr.V("doc", snap.Ref.ID))
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

func (x *firestoreStore) Close() error {
	return x.client.Close()
}
