package game

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a trigger has no edge from the
// hand's current phase.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Transition records one phase change in a hand's history.
type Transition struct {
	From    Phase
	To      Phase
	Trigger Trigger
	At      time.Time
}

var phaseEdges = map[Phase]map[Trigger]Phase{
	Waiting: {
		TriggerStartHand:    Preflop,
		TriggerStartBombPot: Flop,
		TriggerForceEnd:     Complete,
	},
	Preflop: {
		TriggerBettingComplete: Flop,
		TriggerAllFolded:       Complete,
		TriggerForceEnd:        Complete,
	},
	Flop: {
		TriggerBettingComplete: Turn,
		TriggerAllFolded:       Complete,
		TriggerForceEnd:        Complete,
	},
	Turn: {
		TriggerBettingComplete: River,
		TriggerAllFolded:       Complete,
		TriggerForceEnd:        Complete,
	},
	River: {
		TriggerBettingComplete: Showdown,
		TriggerAllFolded:       Complete,
		TriggerForceEnd:        Complete,
	},
	Showdown: {
		TriggerShowdownComplete: Complete,
		TriggerForceEnd:         Complete,
	},
}

// StateMachine advances hands through their phases. Exit hooks run before
// any mutation and an error from one aborts the transition, leaving the
// hand in its prior phase. Entry hooks run after the phase has been set;
// an error from one aborts the remaining entry hooks but not the
// transition itself.
type StateMachine struct {
	now     func() time.Time
	onEnter map[Phase][]func(*Hand) error
	onExit  map[Phase][]func(*Hand) error
}

// NewStateMachine builds a machine using the given clock source. now may
// be nil, in which case time.Now is used.
func NewStateMachine(now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{
		now:     now,
		onEnter: make(map[Phase][]func(*Hand) error),
		onExit:  make(map[Phase][]func(*Hand) error),
	}
}

// OnEnter registers a hook invoked whenever a hand enters the phase.
func (sm *StateMachine) OnEnter(phase Phase, fn func(*Hand) error) {
	sm.onEnter[phase] = append(sm.onEnter[phase], fn)
}

// OnExit registers a hook invoked whenever a hand leaves the phase. An
// error vetoes the transition.
func (sm *StateMachine) OnExit(phase Phase, fn func(*Hand) error) {
	sm.onExit[phase] = append(sm.onExit[phase], fn)
}

// CanFire reports whether the trigger is legal from the hand's phase.
func (sm *StateMachine) CanFire(h *Hand, trigger Trigger) bool {
	_, ok := phaseEdges[h.Phase][trigger]
	return ok
}

// Fire runs the exit hooks, applies the trigger, records the transition,
// and runs the entry hooks. Entering a betting street replaces the hand's
// round state; entering Complete stamps CompletedAt.
func (sm *StateMachine) Fire(h *Hand, trigger Trigger) error {
	to, ok := phaseEdges[h.Phase][trigger]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, h.Phase)
	}

	from := h.Phase
	for _, fn := range sm.onExit[from] {
		if err := fn(h); err != nil {
			return fmt.Errorf("exit %s: %w", from, err)
		}
	}

	h.Phase = to
	h.History = append(h.History, Transition{
		From:    from,
		To:      to,
		Trigger: trigger,
		At:      sm.now(),
	})

	if to.IsBettingPhase() {
		h.Round = NewBettingRound(h.BigBlind)
		h.CurrentPlayerID = ""
	}
	if to == Complete {
		h.CompletedAt = sm.now()
		h.CurrentPlayerID = ""
	}

	for _, fn := range sm.onEnter[to] {
		if err := fn(h); err != nil {
			return fmt.Errorf("enter %s: %w", to, err)
		}
	}
	return nil
}
