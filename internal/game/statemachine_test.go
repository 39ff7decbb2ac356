package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineFullHandPath(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)

	path := []struct {
		trigger Trigger
		phase   Phase
	}{
		{TriggerStartHand, Preflop},
		{TriggerBettingComplete, Flop},
		{TriggerBettingComplete, Turn},
		{TriggerBettingComplete, River},
		{TriggerBettingComplete, Showdown},
		{TriggerShowdownComplete, Complete},
	}
	for _, step := range path {
		require.NoError(t, sm.Fire(h, step.trigger))
		assert.Equal(t, step.phase, h.Phase)
	}

	require.Len(t, h.History, 6)
	assert.Equal(t, Waiting, h.History[0].From)
	assert.Equal(t, Preflop, h.History[0].To)
	assert.False(t, h.CompletedAt.IsZero())
}

func TestStateMachineBombPotSkipsPreflop(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)

	require.NoError(t, sm.Fire(h, TriggerStartBombPot))
	assert.Equal(t, Flop, h.Phase)
	require.NotNil(t, h.Round)
	assert.Zero(t, h.Round.CurrentBet)
	assert.Equal(t, 200, h.Round.MinRaise)
}

func TestStateMachineRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)

	err := sm.Fire(h, TriggerShowdownComplete)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, Waiting, h.Phase)
	assert.Empty(t, h.History)

	assert.False(t, sm.CanFire(h, TriggerBettingComplete))
	assert.True(t, sm.CanFire(h, TriggerStartHand))
}

func TestStateMachineResetsRoundOnNewStreet(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)

	require.NoError(t, sm.Fire(h, TriggerStartHand))
	h.Round.CurrentBet = 800
	h.Round.Raises = 3
	h.CurrentPlayerID = "a"

	require.NoError(t, sm.Fire(h, TriggerBettingComplete))
	assert.Zero(t, h.Round.CurrentBet)
	assert.Zero(t, h.Round.Raises)
	assert.Equal(t, 200, h.Round.MinRaise)
	assert.Empty(t, h.CurrentPlayerID)
}

func TestStateMachineAllFoldedEndsHand(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)

	require.NoError(t, sm.Fire(h, TriggerStartHand))
	require.NoError(t, sm.Fire(h, TriggerAllFolded))
	assert.Equal(t, Complete, h.Phase)
	assert.False(t, h.CompletedAt.IsZero())
}

func TestStateMachineEntryHooksRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := NewStateMachine(func() time.Time { return now })
	h := NewHand("tbl", 1, 100, 200)

	var entered []Phase
	for _, p := range []Phase{Preflop, Flop, Complete} {
		phase := p
		sm.OnEnter(phase, func(*Hand) error {
			entered = append(entered, phase)
			return nil
		})
	}

	require.NoError(t, sm.Fire(h, TriggerStartHand))
	require.NoError(t, sm.Fire(h, TriggerBettingComplete))
	require.NoError(t, sm.Fire(h, TriggerAllFolded))

	assert.Equal(t, []Phase{Preflop, Flop, Complete}, entered)
	assert.Equal(t, now, h.CompletedAt)
	assert.Equal(t, now, h.History[0].At)
}

func TestStateMachineExitHookErrorVetoesTransition(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)
	require.NoError(t, sm.Fire(h, TriggerStartHand))
	round := h.Round

	sm.OnExit(Preflop, func(*Hand) error {
		return assert.AnError
	})
	entered := false
	sm.OnEnter(Flop, func(*Hand) error {
		entered = true
		return nil
	})

	err := sm.Fire(h, TriggerBettingComplete)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "exit preflop")

	// The veto leaves the hand exactly where it was.
	assert.Equal(t, Preflop, h.Phase)
	require.Len(t, h.History, 1)
	assert.Same(t, round, h.Round)
	assert.False(t, entered)
}

func TestStateMachineExitHooksRunBeforeEntry(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(nil)
	h := NewHand("tbl", 1, 100, 200)

	var order []string
	sm.OnExit(Waiting, func(*Hand) error {
		order = append(order, "exit waiting")
		return nil
	})
	sm.OnEnter(Preflop, func(h *Hand) error {
		order = append(order, "enter preflop")
		require.Equal(t, Preflop, h.Phase)
		return nil
	})

	require.NoError(t, sm.Fire(h, TriggerStartHand))
	assert.Equal(t, []string{"exit waiting", "enter preflop"}, order)
}
