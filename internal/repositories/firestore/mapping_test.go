package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "github.com/pocket-tcg/api/internal/domain"
	pfirestore "github.com/pocket-tcg/api/internal/platform/firestore"
)

func TestToWishlistSnapshotMissingDocumentIsEmpty(t *testing.T) {
	snap := toWishlistSnapshot("uid-1", pfirestore.Document[wishlistDocument]{ID: "uid-1"})
	assert.Equal(t, "uid-1", snap.UserID)
	assert.NotNil(t, snap.Entries)
	assert.Empty(t, snap.Entries)
}

func TestToWishlistSnapshotFallsBackToUpdateTime(t *testing.T) {
	updated := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	snap := toWishlistSnapshot("uid-1", pfirestore.Document[wishlistDocument]{
		ID:         "uid-1",
		Exists:     true,
		UpdateTime: updated,
		Data:       wishlistDocument{Entries: []domain.CardRef{{Set: "A1", Number: 2}}},
	})
	assert.Equal(t, []domain.CardRef{{Set: "A1", Number: 2}}, snap.Entries)
	assert.Equal(t, updated, snap.UpdatedAt)
}

func TestToDirectorySnapshotUsesDocumentIDWhenUIDMissing(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	snap := toDirectorySnapshot([]pfirestore.Document[userDocument]{
		{ID: "a", Exists: true, UpdateTime: newer, Data: userDocument{DisplayName: "Ash"}},
		{ID: "b", Exists: true, UpdateTime: older, Data: userDocument{UID: "b", DisplayName: "Brock"}},
	})
	assert.Equal(t, []domain.UserSummary{{UID: "a", DisplayName: "Ash"}, {UID: "b", DisplayName: "Brock"}}, snap.Users)
	assert.Equal(t, newer, snap.UpdatedAt)
}
