package game

// Phase represents where a hand is in its lifecycle
type Phase int

const (
	Waiting Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
	Complete
)

func (p Phase) String() string {
	switch p {
	case Waiting:
		return "waiting"
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case Showdown:
		return "showdown"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// IsBettingPhase reports whether players can act during this phase.
func (p Phase) IsBettingPhase() bool {
	return p >= Preflop && p <= River
}

// Trigger drives phase transitions in the hand state machine
type Trigger int

const (
	TriggerStartHand Trigger = iota
	TriggerStartBombPot
	TriggerBettingComplete
	TriggerAllFolded
	TriggerShowdownComplete
	TriggerForceEnd
)

func (t Trigger) String() string {
	switch t {
	case TriggerStartHand:
		return "start_hand"
	case TriggerStartBombPot:
		return "start_bomb_pot"
	case TriggerBettingComplete:
		return "betting_complete"
	case TriggerAllFolded:
		return "all_folded"
	case TriggerShowdownComplete:
		return "showdown_complete"
	case TriggerForceEnd:
		return "force_end"
	default:
		return "unknown"
	}
}

// ActionType represents a player intent
type ActionType int

const (
	Fold ActionType = iota
	Check
	Call
	Raise
	AllIn
)

func (a ActionType) String() string {
	return [...]string{"fold", "check", "call", "raise", "allin"}[a]
}

// ParseActionType parses the wire name of an action.
func ParseActionType(s string) (ActionType, bool) {
	switch s {
	case "fold":
		return Fold, true
	case "check":
		return Check, true
	case "call":
		return Call, true
	case "raise":
		return Raise, true
	case "allin":
		return AllIn, true
	default:
		return Fold, false
	}
}

// PlayerStatus represents a player's state at the table
type PlayerStatus int

const (
	StatusWaiting PlayerStatus = iota
	StatusActive
	StatusFolded
	StatusAllIn
	StatusAway
	StatusSittingOut
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusFolded:
		return "folded"
	case StatusAllIn:
		return "allin"
	case StatusAway:
		return "away"
	case StatusSittingOut:
		return "sitting_out"
	default:
		return "unknown"
	}
}
