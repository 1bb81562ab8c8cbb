package images

import (
	"testing"

	domain "github.com/pocket-tcg/api/internal/domain"
)

func TestResolverURL(t *testing.T) {
	r := NewResolver("")
	cases := []struct {
		ref  domain.CardRef
		want string
	}{
		{domain.CardRef{Set: "A1", Number: 1}, DefaultBaseURL + "/A1/A1_001_EN.webp"},
		{domain.CardRef{Set: "A1a", Number: 42}, DefaultBaseURL + "/A1a/A1a_042_EN.webp"},
		{domain.CardRef{Set: "A2", Number: 155}, DefaultBaseURL + "/A2/A2_155_EN.webp"},
		{domain.CardRef{Set: "A2", Number: 1234}, DefaultBaseURL + "/A2/A2_234_EN.webp"},
	}
	for _, tc := range cases {
		if got := r.URL(tc.ref); got != tc.want {
			t.Fatalf("URL(%s): expected %s got %s", tc.ref.Key(), tc.want, got)
		}
	}
}

func TestResolverCustomBase(t *testing.T) {
	r := NewResolver("https://cdn.example.com/cards/")
	if got := r.URL(domain.CardRef{Set: "A1", Number: 7}); got != "https://cdn.example.com/cards/A1/A1_007_EN.webp" {
		t.Fatalf("unexpected url %s", got)
	}
}
