package game

import (
	"fmt"

	"github.com/cardroomlabs/holdem/internal/deck"
	"github.com/cardroomlabs/holdem/internal/evaluator"
)

// ShowdownEntry is one player's showdown outcome, in show order.
type ShowdownEntry struct {
	PlayerID  string
	Showed    bool
	HoleCards []deck.Card
	Result    evaluator.Result
	// SecondResult is set for double-board hands.
	SecondResult *evaluator.Result
}

// ShowdownResult is the full resolution of a showdown: who showed, who won
// what, and the chip movements.
type ShowdownResult struct {
	Entries []ShowdownEntry
	// WinnersByPot maps pot ID to the ordered winners (seat order from
	// left of the button). For double-board hands this covers board one.
	WinnersByPot map[string][]string
	// SecondBoardWinners maps pot ID to board-two winners; nil unless the
	// hand ran a double board.
	SecondBoardWinners map[string][]string
	Payouts            map[string]int
}

// RunShowdown evaluates every live hand, applies show/muck rules, picks
// winners per pot, and computes payouts. muckRequests lists players who
// asked to muck if beaten; a losing player who must still show (first to
// show) always shows.
func RunShowdown(h *Hand, players map[string]*Player, muckRequests map[string]bool) (*ShowdownResult, error) {
	live := make([]string, 0, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		if p, ok := players[id]; ok && p.InHand() {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("showdown with no live players in hand %s", h.ID)
	}

	order := showOrder(live, h.LastAggressorID)

	entries := make([]ShowdownEntry, 0, len(order))
	byID := make(map[string]*ShowdownEntry, len(order))
	for _, id := range order {
		p := players[id]
		r, err := evaluator.Evaluate(append(append([]deck.Card{}, p.HoleCards...), h.Community...))
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", id, err)
		}
		entry := ShowdownEntry{PlayerID: id, HoleCards: p.HoleCards, Result: r}
		if h.DoubleBoard {
			r2, err := evaluator.Evaluate(append(append([]deck.Card{}, p.HoleCards...), h.SecondBoard...))
			if err != nil {
				return nil, fmt.Errorf("evaluate %s second board: %w", id, err)
			}
			entry.SecondResult = &r2
		}
		entries = append(entries, entry)
		byID[id] = &entries[len(entries)-1]
	}

	// Show/muck pass. The first to show always shows; after that a player
	// who asked to muck may do so only when already beaten in every pot
	// they are eligible for (on both boards, if two ran).
	var shown []string
	for i := range entries {
		e := &entries[i]
		if i == 0 || !muckRequests[e.PlayerID] || !beatenEverywhere(h, e, byID, shown) {
			e.Showed = true
			shown = append(shown, e.PlayerID)
		}
	}

	result := &ShowdownResult{
		Entries:      entries,
		WinnersByPot: make(map[string][]string),
	}
	if h.DoubleBoard {
		result.SecondBoardWinners = make(map[string][]string)
	}

	payouts := make(map[string]int)
	for _, pot := range h.Pots {
		if pot.Amount == 0 {
			continue
		}
		winners := bestShown(h, pot, byID, shown, false)
		if len(winners) == 0 {
			return nil, fmt.Errorf("pot %s: no shown eligible hand", pot.ID)
		}
		result.WinnersByPot[pot.ID] = winners

		if !h.DoubleBoard {
			for id, amt := range SplitEvenly(pot.Amount, winners) {
				payouts[id] += amt
			}
			continue
		}

		secondWinners := bestShown(h, pot, byID, shown, true)
		result.SecondBoardWinners[pot.ID] = secondWinners
		// Odd cent of the pot split goes to the first board's half.
		firstHalf := pot.Amount - pot.Amount/2
		for id, amt := range SplitEvenly(firstHalf, winners) {
			payouts[id] += amt
		}
		for id, amt := range SplitEvenly(pot.Amount/2, secondWinners) {
			payouts[id] += amt
		}
	}
	result.Payouts = payouts
	return result, nil
}

// showOrder rotates the live players so the last aggressor (or, with no
// aggression, the first to act) shows first.
func showOrder(live []string, lastAggressorID string) []string {
	start := 0
	for i, id := range live {
		if id == lastAggressorID {
			start = i
			break
		}
	}
	out := make([]string, 0, len(live))
	for i := 0; i < len(live); i++ {
		out = append(out, live[(start+i)%len(live)])
	}
	return out
}

// beatenEverywhere reports whether some already-shown player beats e in
// every pot e is eligible for. A player who can still win any slice of any
// pot must show.
func beatenEverywhere(h *Hand, e *ShowdownEntry, byID map[string]*ShowdownEntry, shown []string) bool {
	for _, pot := range h.Pots {
		if pot.Amount == 0 || !pot.EligibleFor(e.PlayerID) {
			continue
		}
		if !beatenInPot(pot, e, byID, shown, false) {
			return false
		}
		if h.DoubleBoard && !beatenInPot(pot, e, byID, shown, true) {
			return false
		}
	}
	return true
}

func beatenInPot(pot Pot, e *ShowdownEntry, byID map[string]*ShowdownEntry, shown []string, secondBoard bool) bool {
	for _, id := range shown {
		s := byID[id]
		if !pot.EligibleFor(id) {
			continue
		}
		if resultFor(s, secondBoard).Beats(resultFor(e, secondBoard)) {
			return true
		}
	}
	return false
}

// bestShown returns the strongest shown hands eligible for the pot, in
// seat order from left of the button.
func bestShown(h *Hand, pot Pot, byID map[string]*ShowdownEntry, shown []string, secondBoard bool) []string {
	shownSet := make(map[string]bool, len(shown))
	for _, id := range shown {
		shownSet[id] = true
	}

	var winners []string
	bestRank := 0
	for _, id := range h.PlayerIDs {
		if !shownSet[id] || !pot.EligibleFor(id) {
			continue
		}
		r := resultFor(byID[id], secondBoard).Rank
		switch {
		case len(winners) == 0 || r < bestRank:
			winners = []string{id}
			bestRank = r
		case r == bestRank:
			winners = append(winners, id)
		}
	}
	return winners
}

func resultFor(e *ShowdownEntry, secondBoard bool) evaluator.Result {
	if secondBoard && e.SecondResult != nil {
		return *e.SecondResult
	}
	return e.Result
}
