package game

import (
	"github.com/cardroomlabs/holdem/internal/deck"
)

// Player is a seated participant. All chip amounts are integer cents.
type Player struct {
	ID        string
	Name      string
	Seat      int
	Chips     int
	Status    PlayerStatus
	HoleCards []deck.Card

	// CurrentBet is the contribution to the current betting round;
	// TotalBet accumulates across the whole hand.
	CurrentBet int
	TotalBet   int

	// TimeBank is the remaining reserve, in whole seconds.
	TimeBank int

	MissedBlinds int
}

// InHand reports whether the player still holds live cards.
func (p *Player) InHand() bool {
	return p.Status == StatusActive || p.Status == StatusAllIn
}

// CanAct reports whether the player may take a voluntary action.
func (p *Player) CanAct() bool {
	return p.Status == StatusActive && p.Chips > 0
}

// ResetForHand clears hand-scoped state before cards are dealt.
func (p *Player) ResetForHand() {
	p.HoleCards = nil
	p.CurrentBet = 0
	p.TotalBet = 0
	if p.Status == StatusActive || p.Status == StatusFolded || p.Status == StatusAllIn {
		p.Status = StatusWaiting
	}
}

// PayChips moves up to amount from the stack into the current round,
// returning what was actually paid. Going to zero marks the player all in.
func (p *Player) PayChips(amount int) int {
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	if p.Chips == 0 && p.InHand() {
		p.Status = StatusAllIn
	}
	return amount
}
