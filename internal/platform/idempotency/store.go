// Package idempotency replays the first recorded response for a client-supplied key so that a
// retried mutation is applied once.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a recorded response can be replayed.
const DefaultTTL = 24 * time.Hour

// State is the lifecycle stage of a stored key.
type State string

const (
	// StatePending marks a key claimed by a request that has not finished yet.
	StatePending State = "pending"
	// StateDone marks a key whose response is recorded and replayable.
	StateDone State = "done"
)

// Outcome tells the middleware what to do after claiming a key.
type Outcome int

const (
	// OutcomeFresh means the caller owns the key and should run the handler.
	OutcomeFresh Outcome = iota
	// OutcomeReplay means a finished response exists for the key.
	OutcomeReplay
	// OutcomeInFlight means another request holds the key.
	OutcomeInFlight
)

// Entry is the stored state of one key.
type Entry struct {
	Key         string
	Fingerprint string
	State       State
	Status      int
	Header      map[string][]string
	Body        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Claim is the result of Store.Claim.
type Claim struct {
	Outcome Outcome
	Entry   Entry
}

// Response is what gets recorded for replay.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Store persists keys and their recorded responses.
type Store interface {
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrKeyReused is returned when a key arrives with a different request fingerprint.
var ErrKeyReused = errors.New("idempotency: key already used for a different request")

func documentID(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func expired(entry Entry, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt)
}

// replayableHeader keeps the headers a client needs to interpret a replayed body.
func replayableHeader(h http.Header) map[string][]string {
	out := make(map[string][]string)
	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		switch {
		case canonical == "Content-Type", canonical == "Cache-Control", canonical == "Location":
		case strings.HasPrefix(canonical, "X-") && canonical != replayHeader:
		default:
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
