package server

import (
	"sort"
	"time"

	"github.com/cardroomlabs/holdem/internal/deck"
)

// TableView is a per-viewer projection of table state. It never contains
// another player's hidden cards.
type TableView struct {
	TableID     string       `json:"tableId"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	ButtonSeat  int          `json:"buttonSeat"`
	SmallBlind  int          `json:"smallBlind"`
	BigBlind    int          `json:"bigBlind"`
	Players     []PlayerView `json:"players"`
	HandID      string       `json:"handId,omitempty"`
	HandNumber  int          `json:"handNumber,omitempty"`
	Phase       string       `json:"phase,omitempty"`
	Community   []string     `json:"community,omitempty"`
	SecondBoard []string     `json:"secondBoard,omitempty"`
	Pots        []PotView    `json:"pots,omitempty"`
	TotalPot    int          `json:"totalPot"`
	CurrentBet  int          `json:"currentBet"`
	MinRaise    int          `json:"minRaise,omitempty"`
	CurrentPlayerID string   `json:"currentPlayerId,omitempty"`
	BombPot     bool         `json:"bombPot,omitempty"`
	DoubleBoard bool         `json:"doubleBoard,omitempty"`
	StartedAt   time.Time    `json:"startedAt,omitempty"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

type PlayerView struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	Seat       int    `json:"seat"`
	Chips      int    `json:"chips"`
	Status     string `json:"status"`
	CurrentBet int    `json:"currentBet"`
	// HoleCards is populated only for the viewer's own cards or cards
	// revealed at showdown.
	HoleCards []string `json:"holeCards,omitempty"`
	// HasHiddenCards marks a live hand whose cards the viewer cannot see.
	HasHiddenCards bool `json:"hasHiddenCards,omitempty"`
	TimeBank       int  `json:"timeBank"`
}

type PotView struct {
	PotID    string   `json:"potId"`
	Type     string   `json:"type"`
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"`
}

// Sanitize builds the table projection for one viewer. viewerID is empty
// for spectators. shownCards lists cards revealed at showdown, visible to
// everyone; mucked and folded cards are never included there.
func Sanitize(t *Table, viewerID string, shownCards map[string][]deck.Card, now time.Time) *TableView {
	view := &TableView{
		TableID:     t.ID,
		Name:        t.Name,
		Status:      t.Status.String(),
		ButtonSeat:  t.ButtonSeat,
		SmallBlind:  t.SmallBlind,
		BigBlind:    t.BigBlind,
		GeneratedAt: now,
	}

	seats := make([]int, 0, len(t.Seats))
	for seat := range t.Seats {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	for _, seat := range seats {
		p := t.Seats[seat]
		pv := PlayerView{
			PlayerID:   p.ID,
			Name:       p.Name,
			Seat:       seat,
			Chips:      p.Chips,
			Status:     p.Status.String(),
			CurrentBet: p.CurrentBet,
			TimeBank:   p.TimeBank,
		}
		switch {
		case len(p.HoleCards) == 0:
		case p.ID == viewerID:
			pv.HoleCards = cardCodes(p.HoleCards)
		case len(shownCards[p.ID]) > 0:
			pv.HoleCards = cardCodes(shownCards[p.ID])
		case p.InHand():
			pv.HasHiddenCards = true
		}
		view.Players = append(view.Players, pv)
	}

	h := t.CurrentHand
	if h == nil {
		return view
	}

	view.HandID = h.ID
	view.HandNumber = h.Number
	view.Phase = h.Phase.String()
	view.Community = cardCodes(h.Community)
	view.SecondBoard = cardCodes(h.SecondBoard)
	view.TotalPot = h.TotalPot()
	view.CurrentBet = h.CurrentBet()
	if h.Round != nil {
		view.MinRaise = h.Round.MinRaise
	}
	view.CurrentPlayerID = h.CurrentPlayerID
	view.BombPot = h.BombPot
	view.DoubleBoard = h.DoubleBoard
	view.StartedAt = h.StartedAt
	for _, pot := range h.Pots {
		view.Pots = append(view.Pots, PotView{
			PotID:    pot.ID,
			Type:     pot.Type.String(),
			Amount:   pot.Amount,
			Eligible: append([]string{}, pot.Eligible...),
		})
	}
	return view
}

func cardCodes(cards []deck.Card) []string {
	if len(cards) == 0 {
		return nil
	}
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Code()
	}
	return out
}
