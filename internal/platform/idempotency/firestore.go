package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/pocket-tcg/api/internal/platform/firestore"
)

const defaultCollection = "idempotencyKeys"

// FirestoreStore keeps keys in a Firestore collection, one document per hashed key.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
	attempts   int
}

// FirestoreOption customises FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithAttempts sets how many times a contended claim is retried.
func WithAttempts(n int) FirestoreOption {
	return func(s *FirestoreStore) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// NewFirestoreStore binds a store to provider.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) *FirestoreStore {
	s := &FirestoreStore{provider: provider, collection: defaultCollection, attempts: 5}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type keyDocument struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	State       string              `firestore:"state"`
	Status      int                 `firestore:"status"`
	Header      map[string][]string `firestore:"header,omitempty"`
	Body        []byte              `firestore:"body,omitempty"`
	CreatedAt   time.Time           `firestore:"createdAt"`
	ExpiresAt   time.Time           `firestore:"expiresAt"`
}

func (d keyDocument) entry() Entry {
	return Entry{
		Key:         d.Key,
		Fingerprint: d.Fingerprint,
		State:       State(d.State),
		Status:      d.Status,
		Header:      d.Header,
		Body:        d.Body,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
	}
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	if s == nil || s.provider == nil {
		return nil, errors.New("idempotency: firestore provider not configured")
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}

// Claim implements Store inside a transaction so concurrent requests see a single winner.
func (s *FirestoreStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	ref, err := s.doc(ctx, key)
	if err != nil {
		return Claim{}, err
	}

	var claim Claim
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var stored keyDocument
			if err := snap.DataTo(&stored); err != nil {
				return err
			}
			current := stored.entry()
			if !expired(current, now) {
				if current.Fingerprint != fingerprint {
					return ErrKeyReused
				}
				claim = Claim{Outcome: OutcomeInFlight, Entry: current}
				if current.State == StateDone {
					claim.Outcome = OutcomeReplay
				}
				return nil
			}
		}

		fresh := keyDocument{
			Key:         key,
			Fingerprint: fingerprint,
			State:       string(StatePending),
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		claim = Claim{Outcome: OutcomeFresh, Entry: fresh.entry()}
		return tx.Set(ref, fresh)
	}, pfirestore.WithTxAttempts(s.attempts))
	if err != nil {
		return Claim{}, err
	}
	return claim, nil
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	header := replayableHeader(resp.Header)
	body := append([]byte(nil), resp.Body...)

	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored := keyDocument{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		snap, err := tx.Get(ref)
		switch {
		case err == nil && snap.Exists():
			if err := snap.DataTo(&stored); err != nil {
				return err
			}
			if stored.Fingerprint != fingerprint {
				return ErrKeyReused
			}
		case err != nil && status.Code(err) != codes.NotFound:
			return err
		}
		stored.State = string(StateDone)
		stored.Status = resp.Status
		stored.Header = header
		stored.Body = body
		stored.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, stored)
	}, pfirestore.WithTxAttempts(s.attempts))
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError(s.collection+".release", err)
	}
	return nil
}

// Purge implements Store.
func (s *FirestoreStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	if s == nil || s.provider == nil {
		return 0, errors.New("idempotency: firestore provider not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, pfirestore.WrapError(s.collection+".purge", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	writer := client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := writer.Delete(doc.Ref); err != nil {
			writer.End()
			return 0, pfirestore.WrapError(s.collection+".purge", err)
		}
	}
	writer.End()
	return len(docs), nil
}
