package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardroomlabs/holdem/internal/deck"
)

// Hand is a single hand of play from shuffle to payout.
type Hand struct {
	ID      string
	TableID string
	Number  int

	Phase      Phase
	SmallBlind int
	BigBlind   int
	Ante       int

	ButtonSeat     int
	SmallBlindSeat int
	BigBlindSeat   int

	// PlayerIDs lists the dealt-in players in seat order starting left of
	// the button. Folded players stay in the list.
	PlayerIDs []string

	Community   []deck.Card
	SecondBoard []deck.Card

	Deck  *deck.Deck
	Round *BettingRound
	Pots  []Pot

	CurrentPlayerID string
	LastAggressorID string

	BombPot     bool
	DoubleBoard bool

	StartedAt   time.Time
	CompletedAt time.Time
	History     []Transition
}

// NewHand creates a hand in the Waiting phase.
func NewHand(tableID string, number int, smallBlind, bigBlind int) *Hand {
	return &Hand{
		ID:         uuid.NewString(),
		TableID:    tableID,
		Number:     number,
		Phase:      Waiting,
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
	}
}

// TotalPot is the sum of all pot layers plus the current street's
// not-yet-collected contributions.
func (h *Hand) TotalPot() int {
	total := 0
	for _, p := range h.Pots {
		total += p.Amount
	}
	if h.Round != nil {
		for _, id := range h.PlayerIDs {
			total += h.Round.Contribution(id)
		}
	}
	return total
}

// CurrentBet returns the bet level of the active street.
func (h *Hand) CurrentBet() int {
	if h.Round == nil {
		return 0
	}
	return h.Round.CurrentBet
}

// InProgress reports whether the hand has started and not yet completed.
func (h *Hand) InProgress() bool {
	return h.Phase != Waiting && h.Phase != Complete
}
