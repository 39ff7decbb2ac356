package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrCannotAct         = errors.New("player cannot act")
	ErrCheckFacingBet    = errors.New("cannot check facing a bet")
	ErrNothingToCall     = errors.New("no bet to call")
	ErrRaiseTooSmall     = errors.New("raise below minimum")
	ErrInsufficientChips = errors.New("insufficient chips")
	ErrActionNotReopened = errors.New("betting not reopened")
)

// ValidatedAction is the normalized outcome of a legal intent: the exact
// chips to move and how the action affects the round state.
type ValidatedAction struct {
	PlayerID string
	Type     ActionType
	// Amount is the chips the player moves into the pot.
	Amount int
	// ToAmount is the player's round contribution after the action.
	ToAmount int
	// IsRaise means the action set a new bet level.
	IsRaise bool
	// ReopensAction means the raise was a full raise, giving players who
	// already acted a fresh option.
	ReopensAction bool
	AllIn         bool
}

// ValidateAction checks an intent against the round state and returns the
// normalized action. For Raise, amount is the target round total (the
// amount raised "to"); it is ignored for all other types.
func ValidateAction(p *Player, round *BettingRound, isTurn bool, action ActionType, amount int) (ValidatedAction, error) {
	if !isTurn {
		return ValidatedAction{}, ErrNotYourTurn
	}
	if !p.CanAct() {
		return ValidatedAction{}, fmt.Errorf("%w: status %s", ErrCannotAct, p.Status)
	}

	contrib := round.Contribution(p.ID)
	va := ValidatedAction{PlayerID: p.ID, Type: action}

	switch action {
	case Fold:
		va.ToAmount = contrib
		return va, nil

	case Check:
		if contrib < round.CurrentBet {
			return ValidatedAction{}, fmt.Errorf("%w: bet is %d, contributed %d",
				ErrCheckFacingBet, round.CurrentBet, contrib)
		}
		va.ToAmount = contrib
		return va, nil

	case Call:
		owed := round.CurrentBet - contrib
		if owed <= 0 {
			return ValidatedAction{}, ErrNothingToCall
		}
		if owed >= p.Chips {
			// Call for less is an all in, never an error.
			va.Amount = p.Chips
			va.ToAmount = contrib + p.Chips
			va.AllIn = true
			return va, nil
		}
		va.Amount = owed
		va.ToAmount = round.CurrentBet
		return va, nil

	case Raise:
		// A player who already acted at this bet level may only call or
		// fold unless a full raise reopened the betting.
		if round.HasActed(p.ID) {
			return ValidatedAction{}, fmt.Errorf("%w: may only call or fold", ErrActionNotReopened)
		}
		available := contrib + p.Chips
		if amount > available {
			return ValidatedAction{}, fmt.Errorf("%w: raise to %d with %d available",
				ErrInsufficientChips, amount, available)
		}
		if amount <= round.CurrentBet {
			return ValidatedAction{}, fmt.Errorf("%w: raise to %d does not exceed bet %d",
				ErrRaiseTooSmall, amount, round.CurrentBet)
		}
		minTo := round.CurrentBet + round.MinRaise
		if amount < minTo && amount != available {
			return ValidatedAction{}, fmt.Errorf("%w: minimum raise is to %d",
				ErrRaiseTooSmall, minTo)
		}
		va.Amount = amount - contrib
		va.ToAmount = amount
		va.IsRaise = true
		va.ReopensAction = amount >= minTo
		va.AllIn = amount == available
		return va, nil

	case AllIn:
		if p.Chips == 0 {
			return ValidatedAction{}, fmt.Errorf("%w: empty stack", ErrInsufficientChips)
		}
		to := contrib + p.Chips
		if to > round.CurrentBet && round.HasActed(p.ID) {
			// An all-in above the bet level is a raise, and closed betting
			// bars raising. An all-in at or below it is a call for less.
			return ValidatedAction{}, fmt.Errorf("%w: may only call or fold", ErrActionNotReopened)
		}
		va.Amount = p.Chips
		va.ToAmount = to
		va.AllIn = true
		if to > round.CurrentBet {
			va.IsRaise = true
			va.ReopensAction = to-round.CurrentBet >= round.MinRaise
		}
		return va, nil

	default:
		return ValidatedAction{}, fmt.Errorf("unknown action type %d", action)
	}
}

// Apply commits a validated action: moves the chips, updates the bet level
// and min-raise floor, and maintains acted flags.
func Apply(p *Player, round *BettingRound, va ValidatedAction) {
	if va.Type == Fold {
		p.Status = StatusFolded
		round.MarkActed(p.ID)
		round.Record(ActionRecord{PlayerID: p.ID, Type: Fold, ToAmount: va.ToAmount})
		return
	}

	if va.Amount > 0 {
		p.PayChips(va.Amount)
		round.Contribute(p.ID, va.Amount)
	}
	if va.IsRaise {
		if va.ReopensAction {
			round.MinRaise = va.ToAmount - round.CurrentBet
			round.ReopenAction(p.ID)
			round.Raises++
			round.LastAggressorID = p.ID
		} else {
			// Short all-in raise: the bet level moves but the min-raise
			// floor, the aggressor, and everyone's acted flags stay put.
			round.MarkActed(p.ID)
		}
		round.CurrentBet = va.ToAmount
	} else {
		round.MarkActed(p.ID)
	}
	round.Record(ActionRecord{
		PlayerID: p.ID,
		Type:     va.Type,
		Amount:   va.Amount,
		ToAmount: va.ToAmount,
		AllIn:    va.AllIn,
	})
}

// ActionOption describes one currently legal action for a player.
type ActionOption struct {
	Type ActionType
	// Min and Max bound the raise-to amount; zero for non-raise actions
	// except Call, where Min carries the call cost.
	Min int
	Max int
}

// AvailableActions lists the legal actions for the player given the round
// state. Used to drive client prompts.
func AvailableActions(p *Player, round *BettingRound) []ActionOption {
	if !p.CanAct() {
		return nil
	}

	contrib := round.Contribution(p.ID)
	owed := round.CurrentBet - contrib
	available := contrib + p.Chips

	opts := []ActionOption{{Type: Fold}}
	if owed <= 0 {
		opts = append(opts, ActionOption{Type: Check})
	} else {
		call := owed
		if call > p.Chips {
			call = p.Chips
		}
		opts = append(opts, ActionOption{Type: Call, Min: call, Max: call})
	}

	if available > round.CurrentBet && !round.HasActed(p.ID) {
		minTo := round.CurrentBet + round.MinRaise
		if minTo > available {
			minTo = available
		}
		opts = append(opts, ActionOption{Type: Raise, Min: minTo, Max: available})
		opts = append(opts, ActionOption{Type: AllIn, Min: available, Max: available})
	}
	return opts
}
