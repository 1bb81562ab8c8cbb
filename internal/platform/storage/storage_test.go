package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	gcs "cloud.google.com/go/storage"
)

func TestParseURI(t *testing.T) {
	loc, err := ParseURI("gs://pocket-config/catalog/cards.yaml")
	if err != nil {
		t.Fatalf("ParseURI returned error: %v", err)
	}
	if loc.Bucket != "pocket-config" || loc.Object != "catalog/cards.yaml" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if loc.String() != "gs://pocket-config/catalog/cards.yaml" {
		t.Fatalf("unexpected string %s", loc)
	}

	for _, bad := range []string{"", "s3://b/o", "gs://", "gs://bucket", "gs://bucket/", "gs://bucket/dir/", "gs://bucket/../x"} {
		if _, err := ParseURI(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

type fakeOpener struct {
	objects map[string]string
	err     error
	opened  []Location
}

func (f *fakeOpener) open(_ context.Context, loc Location) (io.ReadCloser, error) {
	f.opened = append(f.opened, loc)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[loc.String()]
	if !ok {
		return nil, gcs.ErrObjectNotExist
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestReaderReadAll(t *testing.T) {
	opener := &fakeOpener{objects: map[string]string{"gs://b/cards.yaml": "- {set: A1, number: 1}"}}
	reader := &Reader{opener: opener}

	data, err := reader.ReadAll(context.Background(), "gs://b/cards.yaml")
	if err != nil {
		t.Fatalf("ReadAll returned error: %v", err)
	}
	if !bytes.Equal(data, []byte("- {set: A1, number: 1}")) {
		t.Fatalf("unexpected data %q", data)
	}

	if _, err := reader.ReadAll(context.Background(), "gs://b/missing.yaml"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestReaderRejectsOversizedObjects(t *testing.T) {
	opener := &fakeOpener{objects: map[string]string{"gs://b/big": strings.Repeat("x", maxObjectBytes+1)}}
	reader := &Reader{opener: opener}

	if _, err := reader.ReadAll(context.Background(), "gs://b/big"); err == nil {
		t.Fatal("expected oversized object to be rejected")
	}
}

func TestReaderPropagatesOpenErrors(t *testing.T) {
	boom := errors.New("boom")
	reader := &Reader{opener: &fakeOpener{err: boom}}
	if _, err := reader.ReadAll(context.Background(), "gs://b/o"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}
