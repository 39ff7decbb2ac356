package deck

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrDeckExhausted is returned when a deal or burn is requested with
// insufficient cards remaining.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is an ordered sequence of 52 cards with a deal cursor.
type Deck struct {
	cards  []Card
	cursor int
}

// New creates a new deck in canonical order (clubs through spades,
// deuce through ace). The cursor starts at 0.
func New() *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	return d
}

// NewStacked creates a deck with the given cards on top, in order, followed
// by the rest of the canonical deck. Intended for deterministic tests.
func NewStacked(top ...Card) *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	seen := make(map[Card]bool, len(top))
	for _, c := range top {
		if seen[c] {
			panic(fmt.Sprintf("duplicate card %s in stacked deck", c))
		}
		seen[c] = true
		d.cards = append(d.cards, c)
	}
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			c := NewCard(suit, rank)
			if !seen[c] {
				d.cards = append(d.cards, c)
			}
		}
	}
	return d
}

// Shuffle permutes the deck in place with a Fisher-Yates shuffle driven by
// crypto/rand and resets the cursor to 0. Indices are drawn with rejection
// sampling so every permutation is equally likely (no modulo bias).
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := cryptoIntn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	d.cursor = 0
}

// ShuffleCopy returns a shuffled copy of the deck without mutating the
// receiver. The copy's cursor is 0.
func (d *Deck) ShuffleCopy() *Deck {
	cards := make([]Card, len(d.cards))
	copy(cards, d.cards)
	out := &Deck{cards: cards}
	out.Shuffle()
	return out
}

// cryptoIntn returns a uniform random int in [0, n) using rejection
// sampling over the raw bytes of crypto/rand.
func cryptoIntn(n int) int {
	if n <= 0 {
		panic("cryptoIntn: n must be positive")
	}
	// Largest multiple of n that fits in a uint16; values at or above it
	// are rejected to keep the draw uniform.
	limit := (1 << 16) / n * n
	var buf [2]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failure means the platform RNG is broken;
			// dealing unshuffled cards is not an option.
			panic(fmt.Sprintf("crypto/rand: %v", err))
		}
		v := int(buf[0])<<8 | int(buf[1])
		if v < limit {
			return v % n
		}
	}
}

// Deal returns the next card and advances the cursor.
func (d *Deck) Deal() (Card, error) {
	if d.Remaining() < 1 {
		return Card{}, ErrDeckExhausted
	}
	c := d.cards[d.cursor]
	d.cursor++
	return c, nil
}

// DealN returns the next n cards.
func (d *Deck) DealN(n int) ([]Card, error) {
	if d.Remaining() < n {
		return nil, fmt.Errorf("deal %d: %w (%d remaining)", n, ErrDeckExhausted, d.Remaining())
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.cursor:d.cursor+n])
	d.cursor += n
	return cards, nil
}

// Burn discards the next card.
func (d *Deck) Burn() error {
	if d.Remaining() < 1 {
		return fmt.Errorf("burn: %w", ErrDeckExhausted)
	}
	d.cursor++
	return nil
}

// Remaining returns the number of cards left to deal.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.cursor
}

// Reset restores the canonical card order and rewinds the cursor.
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	d.cursor = 0
}

// Cards returns a copy of the full card sequence, ignoring the cursor.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
