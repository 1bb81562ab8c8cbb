package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	domain "github.com/pocket-tcg/api/internal/domain"
)

func TestAddIsIdempotent(t *testing.T) {
	ref := domain.CardRef{Set: "A1", Number: 4}
	entries := []domain.CardRef{{Set: "A2", Number: 1}}

	once, changed := Add(entries, ref)
	if !changed {
		t.Fatalf("expected first add to change the wishlist")
	}
	twice, changed := Add(once, ref)
	if changed {
		t.Fatalf("expected second add to be a no-op")
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("add not idempotent (-once +twice):\n%s", diff)
	}
	if len(entries) != 1 {
		t.Fatalf("add mutated its input")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ref := domain.CardRef{Set: "A1", Number: 4}
	entries := []domain.CardRef{ref, {Set: "A2", Number: 1}}

	once, changed := Remove(entries, ref)
	if !changed {
		t.Fatalf("expected first remove to change the wishlist")
	}
	twice, changed := Remove(once, ref)
	if changed {
		t.Fatalf("expected second remove to be a no-op")
	}
	if diff := cmp.Diff([]domain.CardRef{{Set: "A2", Number: 1}}, twice); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestRemoveDropsDuplicates(t *testing.T) {
	ref := domain.CardRef{Set: "A1", Number: 4}
	out, changed := Remove([]domain.CardRef{ref, ref}, ref)
	if !changed || len(out) != 0 {
		t.Fatalf("expected all occurrences removed, got %v", out)
	}
}

func TestMembershipIsExactIdentity(t *testing.T) {
	m := NewMembership([]domain.CardRef{{Set: "A1", Number: 1}})
	if m.Has(domain.CardRef{Set: "A1a", Number: 1}) {
		t.Fatalf("set codes must match exactly")
	}
	if m.Has(domain.CardRef{Set: "A1", Number: 10}) {
		t.Fatalf("numbers must match exactly")
	}
	if !m.Has(domain.CardRef{Set: "A1", Number: 1}) {
		t.Fatalf("expected member")
	}
}

func TestClickOutsideAllCardsIsNoop(t *testing.T) {
	own := NewMembership(nil)
	ref := domain.CardRef{Set: "A1", Number: 1}
	for _, mode := range []domain.ViewMode{domain.ViewMyWishlist, domain.ViewMyFriends, domain.ViewFriendWishlist} {
		if got := Click(mode, own, ref); got != ClickNone {
			t.Fatalf("%s: expected no-op click, got %s", mode, got)
		}
		if !Badge(mode, own, ref) {
			t.Fatalf("%s: expected card badged as wishlisted", mode)
		}
	}
}

func TestFriendsKeepsSelfByDefault(t *testing.T) {
	users := []domain.UserSummary{{UID: "u1", DisplayName: "Ash"}, {UID: "u2", DisplayName: "Misty"}}

	if got := Friends(users, "u1", false); len(got) != 2 {
		t.Fatalf("expected self to remain listed, got %v", got)
	}
	got := Friends(users, "u1", true)
	if diff := cmp.Diff([]domain.UserSummary{{UID: "u2", DisplayName: "Misty"}}, got); diff != "" {
		t.Fatalf("unexpected friends (-want +got):\n%s", diff)
	}
}
