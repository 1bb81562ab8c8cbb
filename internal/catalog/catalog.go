// Package catalog holds the static card catalog the wishlist views are derived from.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	domain "github.com/pocket-tcg/api/internal/domain"
)

//go:embed cards.yaml
var embeddedCards []byte

var (
	// ErrEmptyCatalog is returned when a catalog source contains no cards.
	ErrEmptyCatalog = errors.New("catalog: no cards")
	// ErrInvalidCard is returned when a catalog entry is missing its set or number.
	ErrInvalidCard = errors.New("catalog: invalid card")
	// ErrDuplicateCard is returned when two entries share the same identity.
	ErrDuplicateCard = errors.New("catalog: duplicate card")
)

// Catalog is an immutable, ordered card collection.
type Catalog struct {
	cards []domain.Card
	index map[domain.CardRef]int
}

// Load parses a YAML card list and validates card identities.
func Load(r io.Reader) (*Catalog, error) {
	if r == nil {
		return nil, errors.New("catalog: reader is required")
	}
	var cards []domain.Card
	if err := yaml.NewDecoder(r).Decode(&cards); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCatalog
		}
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(cards)
}

// New builds a catalog from the supplied cards, preserving their order.
func New(cards []domain.Card) (*Catalog, error) {
	if len(cards) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		cards: make([]domain.Card, 0, len(cards)),
		index: make(map[domain.CardRef]int, len(cards)),
	}
	for i, card := range cards {
		card.Set = strings.TrimSpace(card.Set)
		card.Rarity = strings.TrimSpace(card.Rarity)
		card.Type = strings.TrimSpace(card.Type)
		if card.Set == "" || card.Number <= 0 {
			return nil, fmt.Errorf("%w: entry %d (%q #%d)", ErrInvalidCard, i, card.Set, card.Number)
		}
		ref := card.Ref()
		if _, exists := c.index[ref]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCard, ref.Key())
		}
		c.index[ref] = len(c.cards)
		c.cards = append(c.cards, card)
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = MustLoad(bytes.NewReader(embeddedCards))
	})
	return defaultCatalog
}

// MustLoad is Load for data that is known to be valid at build time.
func MustLoad(r io.Reader) *Catalog {
	c, err := Load(r)
	if err != nil {
		panic(err)
	}
	return c
}

// Cards returns a copy of the catalog in display order.
func (c *Catalog) Cards() []domain.Card {
	if c == nil {
		return nil
	}
	out := make([]domain.Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// Len reports the number of cards in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.cards)
}

// Lookup returns the card with the given identity.
func (c *Catalog) Lookup(ref domain.CardRef) (domain.Card, bool) {
	if c == nil {
		return domain.Card{}, false
	}
	idx, ok := c.index[ref]
	if !ok {
		return domain.Card{}, false
	}
	return c.cards[idx], true
}

// Contains reports whether the identity exists in the catalog.
func (c *Catalog) Contains(ref domain.CardRef) bool {
	_, ok := c.Lookup(ref)
	return ok
}
