package game

// ActionRecord is one completed action within a betting round.
type ActionRecord struct {
	PlayerID string
	Type     ActionType
	// Amount is the chips moved into the pot by this action.
	Amount int
	// ToAmount is the player's round contribution after the action.
	ToAmount int
	AllIn    bool
}

// BettingRound tracks the state of a single street of betting. It is the
// authoritative source for the current bet level and min-raise floor.
type BettingRound struct {
	BigBlind   int
	CurrentBet int
	// MinRaise is the smallest legal raise increment, never below the
	// big blind. A full raise resets it to the raise size.
	MinRaise int
	Raises   int

	// LastAggressorID is the player who made the last full bet or raise.
	LastAggressorID string

	contributions map[string]int
	acted         map[string]bool
	Actions       []ActionRecord
}

// NewBettingRound starts a fresh street with no bet to match.
func NewBettingRound(bigBlind int) *BettingRound {
	return &BettingRound{
		BigBlind:      bigBlind,
		MinRaise:      bigBlind,
		contributions: make(map[string]int),
		acted:         make(map[string]bool),
	}
}

// Contribution returns what the player has put in on this street.
func (br *BettingRound) Contribution(playerID string) int {
	return br.contributions[playerID]
}

// Contribute records amount chips from the player on this street.
func (br *BettingRound) Contribute(playerID string, amount int) {
	br.contributions[playerID] += amount
}

// HasActed reports whether the player has acted since the last time the
// action was reopened.
func (br *BettingRound) HasActed(playerID string) bool {
	return br.acted[playerID]
}

// MarkActed records that the player has acted on the current bet level.
func (br *BettingRound) MarkActed(playerID string) {
	br.acted[playerID] = true
}

// ReopenAction clears everyone's acted flag except the aggressor, giving
// all other live players a chance to respond to a full raise.
func (br *BettingRound) ReopenAction(aggressorID string) {
	for id := range br.acted {
		if id != aggressorID {
			delete(br.acted, id)
		}
	}
	br.acted[aggressorID] = true
}

// ResetContributions clears street contributions once they have been
// folded into the pot structure.
func (br *BettingRound) ResetContributions() {
	br.contributions = make(map[string]int)
}

// PostBlind records a forced bet. Blinds raise the bet level but do not
// count as actions, so the poster still gets the option.
func (br *BettingRound) PostBlind(playerID string, amount int) {
	br.Contribute(playerID, amount)
	if total := br.contributions[playerID]; total > br.CurrentBet {
		br.CurrentBet = total
	}
}

// Record appends an action to the street's history.
func (br *BettingRound) Record(rec ActionRecord) {
	br.Actions = append(br.Actions, rec)
}
