package game

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// PotType distinguishes the main pot from side pots.
type PotType int

const (
	MainPot PotType = iota
	SidePot
)

func (t PotType) String() string {
	if t == MainPot {
		return "main"
	}
	return "side"
}

// Pot is one layer of the pot structure. Eligible lists the players who can
// win it, in table order.
type Pot struct {
	ID       string
	Type     PotType
	Order    int
	Amount   int
	Eligible []string
}

// EligibleFor reports whether the player can win this pot.
func (p *Pot) EligibleFor(playerID string) bool {
	for _, id := range p.Eligible {
		if id == playerID {
			return true
		}
	}
	return false
}

// CalculatePots rebuilds the full pot structure from total hand
// contributions. order lists every contributor in table order; allIn and
// folded describe their current state. Folded contributions stay in the
// pots they matched but never confer eligibility.
//
// The structure is layered: each all-in amount among live players caps a
// layer, and everyone's chips fill the layers bottom-up. The sum of pot
// amounts always equals the sum of contributions.
func CalculatePots(order []string, contributions map[string]int, allIn, folded map[string]bool) []Pot {
	total := 0
	for _, c := range contributions {
		total += c
	}
	if total == 0 {
		return nil
	}

	// Live contributors define the layer caps.
	var live []string
	for _, id := range order {
		if contributions[id] > 0 && !folded[id] {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		// Everyone who put chips in has folded; a single pot holds it all.
		return []Pot{{ID: uuid.NewString(), Type: MainPot, Amount: total}}
	}

	levelSet := make(map[int]bool)
	maxLive := 0
	for _, id := range live {
		if allIn[id] {
			levelSet[contributions[id]] = true
		}
		if contributions[id] > maxLive {
			maxLive = contributions[id]
		}
	}
	levelSet[maxLive] = true
	levels := make([]int, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	var pots []Pot
	prev := 0
	for _, level := range levels {
		amount := 0
		for _, c := range contributions {
			slice := c - prev
			if slice > level-prev {
				slice = level - prev
			}
			if slice > 0 {
				amount += slice
			}
		}
		if amount == 0 {
			prev = level
			continue
		}
		var eligible []string
		for _, id := range live {
			if contributions[id] >= level {
				eligible = append(eligible, id)
			}
		}
		potType := SidePot
		if len(pots) == 0 {
			potType = MainPot
		}
		pots = append(pots, Pot{
			ID:       uuid.NewString(),
			Type:     potType,
			Order:    len(pots),
			Amount:   amount,
			Eligible: eligible,
		})
		prev = level
	}

	// Folded chips above the top live layer still belong in the pot.
	sum := 0
	for i := range pots {
		sum += pots[i].Amount
	}
	if extra := total - sum; extra > 0 && len(pots) > 0 {
		pots[len(pots)-1].Amount += extra
	}
	return pots
}

// UncallableOverage finds chips the top live contributor put in beyond what
// any opponent matched. Those chips are returned to the player rather than
// entering the pot structure. Returns ("", 0) when every bet is matched.
func UncallableOverage(order []string, contributions map[string]int, folded map[string]bool) (string, int) {
	topID := ""
	top, second := 0, 0
	for _, id := range order {
		c := contributions[id]
		if folded[id] {
			if c > second {
				second = c
			}
			continue
		}
		if c > top {
			second = top
			top, topID = c, id
		} else if c > second {
			second = c
		}
	}
	if topID == "" || top-second <= 0 {
		return "", 0
	}
	return topID, top - second
}

// AwardPots distributes each pot to its winners. winnersByPot maps pot ID
// to the ordered winners for that pot; winners not eligible are skipped.
// Ties split evenly with any odd cents going to the first listed winner.
// The returned payouts always sum to the total of all pots.
func AwardPots(pots []Pot, winnersByPot map[string][]string) (map[string]int, error) {
	payouts := make(map[string]int)
	for _, pot := range pots {
		if pot.Amount == 0 {
			continue
		}
		var winners []string
		for _, id := range winnersByPot[pot.ID] {
			if pot.EligibleFor(id) {
				winners = append(winners, id)
			}
		}
		if len(winners) == 0 {
			return nil, fmt.Errorf("pot %s (%s, %d): no eligible winner", pot.ID, pot.Type, pot.Amount)
		}
		share := pot.Amount / len(winners)
		remainder := pot.Amount % len(winners)
		for i, id := range winners {
			payouts[id] += share
			if i == 0 {
				payouts[id] += remainder
			}
		}
	}
	return payouts, nil
}

// SplitEvenly divides amount across the ordered recipients, odd cents to
// the first. Used for per-board halves in double-board hands.
func SplitEvenly(amount int, recipients []string) map[string]int {
	out := make(map[string]int, len(recipients))
	if len(recipients) == 0 || amount == 0 {
		return out
	}
	share := amount / len(recipients)
	remainder := amount % len(recipients)
	for i, id := range recipients {
		out[id] += share
		if i == 0 {
			out[id] += remainder
		}
	}
	return out
}

// RemovePlayerFromPots strips the player's eligibility from every pot.
// Safe to call repeatedly; pot amounts never change.
func RemovePlayerFromPots(pots []Pot, playerID string) {
	for i := range pots {
		eligible := pots[i].Eligible[:0]
		for _, id := range pots[i].Eligible {
			if id != playerID {
				eligible = append(eligible, id)
			}
		}
		pots[i].Eligible = eligible
	}
}
