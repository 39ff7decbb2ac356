package server

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timerCapture struct {
	mu       sync.Mutex
	messages []*Message
	expiries []timerExpiry
}

type timerExpiry struct {
	tableID      string
	handID       string
	playerID     string
	timeBankUsed int
}

func (tc *timerCapture) broadcast(tableID string, msg *Message) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.messages = append(tc.messages, msg)
}

func (tc *timerCapture) onExpire(tableID, handID, playerID string, timeBankUsed int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.expiries = append(tc.expiries, timerExpiry{tableID, handID, playerID, timeBankUsed})
}

func (tc *timerCapture) snapshot() []*Message {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]*Message{}, tc.messages...)
}

func (tc *timerCapture) typeCounts() map[MessageType]int {
	counts := make(map[MessageType]int)
	for _, m := range tc.snapshot() {
		counts[m.Type]++
	}
	return counts
}

func newTestTimerService(t *testing.T) (*TimerService, *quartz.Mock, *timerCapture) {
	t.Helper()
	mockClock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	ts := NewTimerService(mockClock, logger)
	capture := &timerCapture{}
	ts.Bind(capture.broadcast, capture.onExpire)
	return ts, mockClock, capture
}

func advanceSeconds(t *testing.T, mockClock *quartz.Mock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		mockClock.Advance(1 * time.Second).MustWait(ctx)
	}
}

func TestTimerFullEscalationToExpiry(t *testing.T) {
	t.Parallel()
	ts, mockClock, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", 30, true, 60)

	// 30 action seconds, then the full 60 second bank.
	advanceSeconds(t, mockClock, 90)

	msgs := capture.snapshot()
	require.NotEmpty(t, msgs)
	assert.Equal(t, MessageTypeTimerStarted, msgs[0].Type)
	assert.Equal(t, MessageTypeTimerExpired, msgs[len(msgs)-1].Type)

	counts := capture.typeCounts()
	assert.Equal(t, 1, counts[MessageTypeTimerStarted])
	assert.Equal(t, 90, counts[MessageTypeTimerTick])
	assert.Equal(t, 1, counts[MessageTypeTimerWarning])
	assert.Equal(t, 1, counts[MessageTypeTimeBankActivated])
	assert.Equal(t, 1, counts[MessageTypeTimerExpired])

	// The warning comes right after the tick that crossed the threshold,
	// and the bank engages right after the action clock hits zero.
	warnIdx, bankIdx := -1, -1
	for i, m := range msgs {
		switch m.Type {
		case MessageTypeTimerWarning:
			warnIdx = i
		case MessageTypeTimeBankActivated:
			bankIdx = i
		}
	}
	require.Greater(t, warnIdx, 0)
	require.Greater(t, bankIdx, warnIdx)
	assert.Equal(t, MessageTypeTimerTick, msgs[warnIdx-1].Type)

	require.Len(t, capture.expiries, 1)
	exp := capture.expiries[0]
	assert.Equal(t, "t1", exp.tableID)
	assert.Equal(t, "h1", exp.handID)
	assert.Equal(t, "alice", exp.playerID)
	assert.Equal(t, 60, exp.timeBankUsed)

	// The timer is gone; cancelling finds nothing.
	assert.Equal(t, 0, ts.Cancel("t1", "alice"))
	assert.False(t, ts.State("t1").Active)
}

func TestTimerExpiresWithoutBank(t *testing.T) {
	t.Parallel()
	ts, mockClock, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "bob", 15, false, 0)
	advanceSeconds(t, mockClock, 15)

	require.Len(t, capture.expiries, 1)
	assert.Equal(t, 0, capture.expiries[0].timeBankUsed)
	counts := capture.typeCounts()
	assert.Equal(t, 15, counts[MessageTypeTimerTick])
	assert.Zero(t, counts[MessageTypeTimeBankActivated])
}

func TestTimerCancelReturnsBankUsed(t *testing.T) {
	t.Parallel()
	ts, mockClock, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", 5, true, 30)
	// Burn the action clock plus three bank seconds before acting.
	advanceSeconds(t, mockClock, 8)

	assert.Equal(t, 3, ts.Cancel("t1", "alice"))
	assert.Equal(t, 1, capture.typeCounts()[MessageTypeTimerCancelled])
	assert.False(t, ts.State("t1").Active)
	assert.Empty(t, capture.expiries)
}

func TestTimerCancelWrongPlayerIsNoop(t *testing.T) {
	t.Parallel()
	ts, _, _ := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", 30, false, 0)
	assert.Equal(t, 0, ts.Cancel("t1", "bob"))
	assert.True(t, ts.State("t1").Active)
}

func TestTimerUnlimitedNeverStarts(t *testing.T) {
	t.Parallel()
	ts, _, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", -1, true, 60)
	assert.False(t, ts.State("t1").Active)
	assert.Empty(t, capture.snapshot())
}

func TestTimerPauseFreezesCountdown(t *testing.T) {
	t.Parallel()
	ts, mockClock, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", 30, false, 0)
	advanceSeconds(t, mockClock, 5)
	require.Equal(t, 25, ts.State("t1").RemainingSeconds)

	ts.Pause("t1")
	advanceSeconds(t, mockClock, 20)
	state := ts.State("t1")
	assert.Equal(t, 25, state.RemainingSeconds)
	assert.True(t, state.Paused)

	ts.Resume("t1")
	advanceSeconds(t, mockClock, 5)
	assert.Equal(t, 20, ts.State("t1").RemainingSeconds)
	assert.Empty(t, capture.expiries)
}

func TestTimerWarningFiresOnce(t *testing.T) {
	t.Parallel()
	ts, mockClock, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", 15, false, 0)
	advanceSeconds(t, mockClock, 14)

	counts := capture.typeCounts()
	assert.Equal(t, 1, counts[MessageTypeTimerWarning])
}

func TestTimerReplacedByNextTurn(t *testing.T) {
	t.Parallel()
	ts, mockClock, capture := newTestTimerService(t)

	ts.Start("t1", "h1", "alice", 30, false, 0)
	advanceSeconds(t, mockClock, 3)
	ts.Start("t1", "h1", "bob", 30, false, 0)
	advanceSeconds(t, mockClock, 5)

	state := ts.State("t1")
	assert.Equal(t, "bob", state.PlayerID)
	assert.Equal(t, 25, state.RemainingSeconds)
	assert.Empty(t, capture.expiries)
}

func TestTimerStateProjection(t *testing.T) {
	t.Parallel()
	ts, mockClock, _ := newTestTimerService(t)

	assert.False(t, ts.State("t1").Active)

	ts.Start("t1", "h1", "alice", 10, true, 30)
	advanceSeconds(t, mockClock, 12)

	state := ts.State("t1")
	assert.True(t, state.Active)
	assert.Equal(t, "alice", state.PlayerID)
	assert.True(t, state.IsTimeBankActive)
	assert.Equal(t, 28, state.RemainingSeconds)
	assert.Equal(t, 28, state.TimeBankRemaining)
}
