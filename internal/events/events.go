// Package events records everything that happens in a hand as an ordered,
// append-only stream. Each hand's events carry a dense sequence starting
// at 1, which clients use to detect gaps and request replays.
package events

import (
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	TypeHandStarted           Type = "hand_started"
	TypeBlindPosted           Type = "blind_posted"
	TypeAntePosted            Type = "ante_posted"
	TypeHoleCardsDealt        Type = "hole_cards_dealt"
	TypeCommunityDealt        Type = "community_dealt"
	TypePlayerActed           Type = "player_acted"
	TypeBettingRoundCompleted Type = "betting_round_completed"
	TypeUncalledBetReturned   Type = "uncalled_bet_returned"
	TypeShowdownStarted       Type = "showdown_started"
	TypeCardsShown            Type = "cards_shown"
	TypeCardsMucked           Type = "cards_mucked"
	TypePotAwarded            Type = "pot_awarded"
	TypeHandCompleted         Type = "hand_completed"
	TypeTimerExpired          Type = "timer_expired"
)

// Event is one immutable entry in a hand's stream.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	TableID  string    `json:"tableId"`
	HandID   string    `json:"handId"`
	Sequence int       `json:"sequence"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// HandStarted opens a stream. PlayerIDs is in seat order from left of
// the button.
type HandStarted struct {
	HandNumber  int      `json:"handNumber"`
	ButtonSeat  int      `json:"buttonSeat"`
	PlayerIDs   []string `json:"playerIds"`
	SmallBlind  int      `json:"smallBlind"`
	BigBlind    int      `json:"bigBlind"`
	Ante        int      `json:"ante,omitempty"`
	BombPot     bool     `json:"bombPot,omitempty"`
	DoubleBoard bool     `json:"doubleBoard,omitempty"`
}

type BlindPosted struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"kind"` // "small" or "big"
	Amount   int    `json:"amount"`
}

type AntePosted struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
}

type HoleCardsDealt struct {
	PlayerID string   `json:"playerId"`
	Cards    []string `json:"cards"`
}

// CommunityDealt carries one street of board cards. Board is 1 except for
// the second board of a double-board bomb pot.
type CommunityDealt struct {
	Phase string   `json:"phase"`
	Board int      `json:"board"`
	Cards []string `json:"cards"`
}

type PlayerActed struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	Amount   int    `json:"amount"`
	ToAmount int    `json:"toAmount"`
	AllIn    bool   `json:"allIn,omitempty"`
	TotalPot int    `json:"totalPot"`
}

type PotSnapshot struct {
	PotID    string   `json:"potId"`
	Type     string   `json:"type"`
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"`
}

// BettingRoundCompleted marks the collection of a street's bets into the
// pot structure.
type BettingRoundCompleted struct {
	Street string        `json:"street"`
	Pots   []PotSnapshot `json:"pots"`
	Total  int           `json:"total"`
}

type UncalledBetReturned struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
}

type ShowdownStarted struct {
	PlayerIDs []string `json:"playerIds"`
}

type CardsShown struct {
	PlayerID string   `json:"playerId"`
	Cards    []string `json:"cards"`
	Desc     string   `json:"desc"`
	// SecondDesc is set for double-board hands.
	SecondDesc string `json:"secondDesc,omitempty"`
}

type CardsMucked struct {
	PlayerID string `json:"playerId"`
}

type PotAwarded struct {
	PotID   string         `json:"potId"`
	Type    string         `json:"type"`
	Amounts map[string]int `json:"amounts"`
	// Board is set for double-board hands.
	Board int `json:"board,omitempty"`
}

// HandCompleted closes a stream. Winnings holds gross payouts; NetResults
// holds each player's chip delta for the hand (payout minus contribution).
type HandCompleted struct {
	Winnings       map[string]int `json:"winnings"`
	NetResults     map[string]int `json:"netResults"`
	TotalPot       int            `json:"totalPot"`
	FinalPhase     string         `json:"finalPhase"`
	WentToShowdown bool           `json:"wentToShowdown"`
	DurationMillis int64          `json:"durationMillis"`
}

type TimerExpired struct {
	PlayerID        string `json:"playerId"`
	TimeBankUsed    int    `json:"timeBankUsed"`
	ResultingAction string `json:"resultingAction"`
}
