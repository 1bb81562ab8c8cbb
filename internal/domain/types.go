package domain

import (
	"fmt"
	"strings"
	"time"
)

// CardRef identifies a catalog card by its set code and number within the set.
// Wishlist entries are stored as CardRef values.
type CardRef struct {
	Set    string `json:"set" yaml:"set" firestore:"set"`
	Number int    `json:"number" yaml:"number" firestore:"number"`
}

// Key renders the reference as "SET-NUMBER", used for logging and map keys in transport payloads.
func (r CardRef) Key() string {
	return fmt.Sprintf("%s-%d", r.Set, r.Number)
}

// IsZero reports whether the reference carries no identity.
func (r CardRef) IsZero() bool {
	return strings.TrimSpace(r.Set) == "" && r.Number == 0
}

// Card is an immutable catalog record.
type Card struct {
	Set    string `json:"set" yaml:"set"`
	Number int    `json:"number" yaml:"number"`
	Name   string `json:"name,omitempty" yaml:"name"`
	Rarity string `json:"rarity" yaml:"rarity"`
	Type   string `json:"type" yaml:"type"`
}

// Ref returns the card identity.
func (c Card) Ref() CardRef {
	return CardRef{Set: c.Set, Number: c.Number}
}

// Filters narrows the visible card sequence. Empty fields impose no constraint.
type Filters struct {
	Set    string `json:"set,omitempty"`
	Rarity string `json:"rarity,omitempty"`
	Type   string `json:"type,omitempty"`
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return f.Set == "" && f.Rarity == "" && f.Type == ""
}

// WishlistSnapshot is the latest known content of a user's wishlist as observed from the store.
type WishlistSnapshot struct {
	UserID    string
	Entries   []CardRef
	UpdatedAt time.Time
}

// UserSummary is a directory entry for a signed-in user.
type UserSummary struct {
	UID         string `json:"uid" firestore:"uid"`
	DisplayName string `json:"displayName" firestore:"displayName"`
}

// DirectorySnapshot is the latest known content of the user directory.
type DirectorySnapshot struct {
	Users     []UserSummary
	UpdatedAt time.Time
}

// WishlistEvent is emitted after a wishlist write lands in the store.
type WishlistEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	Card       CardRef   `json:"card"`
	EntryCount int       `json:"entryCount"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	// WishlistActionAdded marks an entry appended to the wishlist.
	WishlistActionAdded = "added"
	// WishlistActionRemoved marks an entry removed from the wishlist.
	WishlistActionRemoved = "removed"
)

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
