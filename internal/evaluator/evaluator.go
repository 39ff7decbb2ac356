// Package evaluator maps up to seven cards onto a totally ordered hand
// rank. Lower rank values are better; tests must compare ranks rather
// than interpret absolute values.
package evaluator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cardroomlabs/holdem/internal/deck"
)

// Category is the hand class, ascending in strength.
type Category int

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Result is the evaluation of a hand.
type Result struct {
	Rank     int    // total order, lower is better
	Category Category
	Desc     string
	BestFive []deck.Card
}

// Beats reports whether r is strictly better than other.
func (r Result) Beats(other Result) bool {
	return r.Rank < other.Rank
}

// Ties reports whether r and other are of exactly equal strength.
func (r Result) Ties(other Result) bool {
	return r.Rank == other.Rank
}

var ErrCardCount = errors.New("evaluator: need between 5 and 7 cards")

// worstScore is above the best possible internal score, so that
// Rank = worstScore - score keeps the total order with lower = better.
const worstScore = (int(StraightFlush) + 1) << 20

// Evaluate returns the best five-card hand from the given cards.
func Evaluate(cards []deck.Card) (Result, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return Result{}, fmt.Errorf("%w, got %d", ErrCardCount, len(cards))
	}

	best := -1
	var bestCat Category
	var bestFive []deck.Card

	combo := make([]deck.Card, 5)
	n := len(cards)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						combo[0], combo[1], combo[2], combo[3], combo[4] =
							cards[a], cards[b], cards[c], cards[d], cards[e]
						score, cat, five := score5(combo)
						if score > best {
							best = score
							bestCat = cat
							bestFive = five
						}
					}
				}
			}
		}
	}

	return Result{
		Rank:     worstScore - best,
		Category: bestCat,
		Desc:     describe(bestCat, bestFive),
		BestFive: bestFive,
	}, nil
}

// score5 scores exactly five cards. Higher scores are better. The returned
// cards are ordered by significance (e.g. quads before the kicker).
func score5(cards []deck.Card) (int, Category, []deck.Card) {
	byRank := make(map[deck.Rank][]deck.Card, 5)
	suited := true
	for i, c := range cards {
		byRank[c.Rank] = append(byRank[c.Rank], c)
		if i > 0 && c.Suit != cards[0].Suit {
			suited = false
		}
	}

	// Group ranks by count desc, then rank desc.
	groups := make([]rankGroup, 0, 5)
	for r, cs := range byRank {
		groups = append(groups, rankGroup{rank: r, cards: cs})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].cards) != len(groups[j].cards) {
			return len(groups[i].cards) > len(groups[j].cards)
		}
		return groups[i].rank > groups[j].rank
	})

	ordered := make([]deck.Card, 0, 5)
	for _, g := range groups {
		ordered = append(ordered, g.cards...)
	}

	straightHigh := straightHighCard(groups)
	isStraight := straightHigh != 0

	var cat Category
	switch {
	case isStraight && suited:
		cat = StraightFlush
	case len(groups[0].cards) == 4:
		cat = FourOfAKind
	case len(groups[0].cards) == 3 && len(groups[1].cards) == 2:
		cat = FullHouse
	case suited:
		cat = Flush
	case isStraight:
		cat = Straight
	case len(groups[0].cards) == 3:
		cat = ThreeOfAKind
	case len(groups[0].cards) == 2 && len(groups[1].cards) == 2:
		cat = TwoPair
	case len(groups[0].cards) == 2:
		cat = Pair
	default:
		cat = HighCard
	}

	var tiebreak [5]int
	if cat == Straight || cat == StraightFlush {
		tiebreak[0] = int(straightHigh)
		ordered = straightOrder(cards, straightHigh)
	} else {
		for i, g := range groups {
			tiebreak[i] = int(g.rank)
		}
	}

	score := int(cat) << 20
	for i, tb := range tiebreak {
		score |= tb << (16 - 4*i)
	}
	return score, cat, ordered
}

type rankGroup struct {
	rank  deck.Rank
	cards []deck.Card
}

// straightHighCard returns the high rank of a straight formed by the five
// grouped ranks, or 0 when they do not form one. The wheel (A-2-3-4-5)
// counts with Five as the high card.
func straightHighCard(groups []rankGroup) deck.Rank {
	if len(groups) != 5 {
		return 0
	}
	ranks := make([]int, 5)
	for i, g := range groups {
		ranks[i] = int(g.rank)
	}
	sort.Ints(ranks)
	if ranks[4]-ranks[0] == 4 {
		return deck.Rank(ranks[4])
	}
	// Wheel: A,5,4,3,2
	if ranks[4] == int(deck.Ace) && ranks[3] == int(deck.Five) && ranks[3]-ranks[0] == 3 {
		return deck.Five
	}
	return 0
}

// straightOrder returns the straight's cards from high to low, with the
// ace last in a wheel.
func straightOrder(cards []deck.Card, high deck.Rank) []deck.Card {
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	if high == deck.Five && out[0].Rank == deck.Ace {
		// Move the ace to the bottom: 5,4,3,2,A.
		ace := out[0]
		copy(out, out[1:])
		out[4] = ace
	}
	return out
}

func describe(cat Category, five []deck.Card) string {
	switch cat {
	case StraightFlush:
		if five[0].Rank == deck.Ace {
			return "Royal Flush"
		}
		return fmt.Sprintf("Straight Flush, %s high", five[0].Rank.Name())
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", five[0].Rank.Plural())
	case FullHouse:
		return fmt.Sprintf("Full House, %s over %s", five[0].Rank.Plural(), five[3].Rank.Plural())
	case Flush:
		return fmt.Sprintf("Flush, %s high", five[0].Rank.Name())
	case Straight:
		return fmt.Sprintf("Straight, %s high", five[0].Rank.Name())
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", five[0].Rank.Plural())
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", five[0].Rank.Plural(), five[2].Rank.Plural())
	case Pair:
		return fmt.Sprintf("Pair of %s", five[0].Rank.Plural())
	default:
		return fmt.Sprintf("High Card, %s", five[0].Rank.Name())
	}
}
