package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document is a decoded Firestore document with its metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	Exists     bool
	UpdateTime time.Time
	ReadTime   time.Time
}

// Encoder serialises an entity before it is written.
type Encoder[T any] func(ctx context.Context, value T) (any, error)

// Decoder hydrates an entity from a snapshot.
type Decoder[T any] func(ctx context.Context, snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises a collection query before it runs.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository offers typed access to one collection.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	encode     Encoder[T]
	decode     Decoder[T]
}

// NewBaseRepository binds a repository to collection. Nil codecs fall back to the struct-tag
// based Firestore encoding.
func NewBaseRepository[T any](provider *Provider, collection string, encode Encoder[T], decode Decoder[T]) *BaseRepository[T] {
	if encode == nil {
		encode = IdentityEncoder[T]()
	}
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		encode:     encode,
		decode:     decode,
	}
}

// Set writes value as the full content of document id.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) (time.Time, error) {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	payload, err := r.encode(ctx, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("firestore: encode %s/%s: %w", r.collection, id, err)
	}
	result, err := doc.Set(ctx, payload)
	if err != nil {
		return time.Time{}, WrapError(r.op("set"), err)
	}
	return result.UpdateTime, nil
}

// Get fetches document id. A missing document yields a not-found *Error.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decodeSnapshot(ctx, snap)
}

// Query runs a collection query and decodes every result.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	query, err := r.query(ctx, build)
	if err != nil {
		return nil, err
	}
	iter := query.Documents(ctx)
	defer iter.Stop()
	return r.drain(ctx, iter)
}

// WatchDocument calls fn with the current state of document id and again after every change,
// until ctx ends or fn returns an error. A deleted or absent document is reported with
// Exists == false. Cancellation of ctx returns nil.
func (r *BaseRepository[T]) WatchDocument(ctx context.Context, id string, fn func(Document[T]) error) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	iter := doc.Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			return r.watchEnded(ctx, err)
		}
		decoded, err := r.decodeSnapshot(ctx, snap)
		if err != nil {
			return err
		}
		if err := fn(decoded); err != nil {
			return err
		}
	}
}

// WatchQuery calls fn with the full result set of the query and again after every change.
func (r *BaseRepository[T]) WatchQuery(ctx context.Context, build QueryBuilder, fn func([]Document[T]) error) error {
	query, err := r.query(ctx, build)
	if err != nil {
		return err
	}
	iter := query.Snapshots(ctx)
	defer iter.Stop()

	for {
		qs, err := iter.Next()
		if err != nil {
			return r.watchEnded(ctx, err)
		}
		docs, err := r.drain(ctx, qs.Documents)
		if err != nil {
			return err
		}
		if err := fn(docs); err != nil {
			return err
		}
	}
}

// DocumentRef exposes the reference for transactional use.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("firestore: document id is required")
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Decode hydrates a snapshot obtained outside the repository, e.g. inside a transaction.
func (r *BaseRepository[T]) Decode(ctx context.Context, snap *firestore.DocumentSnapshot) (Document[T], error) {
	return r.decodeSnapshot(ctx, snap)
}

// Encode serialises value with the repository's encoder.
func (r *BaseRepository[T]) Encode(ctx context.Context, value T) (any, error) {
	return r.encode(ctx, value)
}

func (r *BaseRepository[T]) drain(ctx context.Context, iter *firestore.DocumentIterator) ([]Document[T], error) {
	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		decoded, err := r.decodeSnapshot(ctx, snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, decoded)
	}
}

func (r *BaseRepository[T]) decodeSnapshot(ctx context.Context, snap *firestore.DocumentSnapshot) (Document[T], error) {
	doc := Document[T]{ReadTime: snap.ReadTime}
	if snap.Ref != nil {
		doc.ID = snap.Ref.ID
	}
	if !snap.Exists() {
		return doc, nil
	}
	entity, err := r.decode(ctx, snap)
	if err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", r.collection, doc.ID, err)
	}
	doc.Data = entity
	doc.Exists = true
	doc.UpdateTime = snap.UpdateTime
	return doc, nil
}

func (r *BaseRepository[T]) watchEnded(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, iterator.Done) {
		return WrapError(r.op("watch"), errors.New("firestore: watch stream closed"))
	}
	return WrapError(r.op("watch"), err)
}

func (r *BaseRepository[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	return query, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if r.collection == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) op(action string) string {
	return r.collection + "." + action
}

// IdentityEncoder writes the value unchanged.
func IdentityEncoder[T any]() Encoder[T] {
	return func(_ context.Context, value T) (any, error) {
		return value, nil
	}
}

// StructDecoder decodes with Firestore struct tags.
func StructDecoder[T any]() Decoder[T] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}
