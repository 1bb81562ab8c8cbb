// Package storage reads configuration objects, such as catalog overrides, from Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const maxObjectBytes = 4 << 20

// ErrObjectNotFound is returned when the bucket or object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

type objectOpener interface {
	open(ctx context.Context, loc Location) (io.ReadCloser, error)
}

type gcsOpener struct {
	client *gcs.Client
}

func (o gcsOpener) open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	return o.client.Bucket(loc.Bucket).Object(loc.Object).NewReader(ctx)
}

// Reader fetches whole objects from Cloud Storage.
type Reader struct {
	opener objectOpener
	closer io.Closer
}

// NewReader creates a Cloud Storage client and wraps it in a Reader.
func NewReader(ctx context.Context, opts ...option.ClientOption) (*Reader, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	return &Reader{opener: gcsOpener{client: client}, closer: client}, nil
}

// NewReaderFromClient wraps an existing client. The caller keeps ownership of client.
func NewReaderFromClient(client *gcs.Client) (*Reader, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	return &Reader{opener: gcsOpener{client: client}}, nil
}

// ReadAll returns the contents of the object at uri. Objects larger than 4 MiB are rejected.
func (r *Reader) ReadAll(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := r.opener.open(ctx, loc)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
		}
		return nil, fmt.Errorf("storage: open %s: %w", loc, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", loc, err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("storage: %s exceeds %d bytes", loc, maxObjectBytes)
	}
	return data, nil
}

// Close releases the client when the Reader created it.
func (r *Reader) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
