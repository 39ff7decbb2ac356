package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// warningThreshold is when the one-shot low-time warning fires.
const warningThreshold = 10

// TimerService runs at most one action countdown per table. Ticks happen
// once per second on the injected clock; when the action time runs out it
// escalates into the player's time bank, and when that is gone too it
// removes the timer and reports the expiry.
//
// Broadcasts are computed under the timer lock but sent after it is
// released, so a slow client never stalls the tick path.
type TimerService struct {
	clock  quartz.Clock
	logger *log.Logger

	// broadcast delivers timer messages to the table's connections.
	broadcast func(tableID string, msg *Message)
	// onExpire runs after the timer has been removed; it must route the
	// forced fold through the table actor.
	onExpire func(tableID, handID, playerID string, timeBankUsed int)

	mu     sync.Mutex
	timers map[string]*tableTimer
}

type tableTimer struct {
	handID   string
	playerID string

	remaining int
	warned    bool

	bankEnabled   bool
	bankActive    bool
	bankRemaining int
	bankUsed      int

	paused bool
	next   *quartz.Timer
}

func NewTimerService(clock quartz.Clock, logger *log.Logger) *TimerService {
	return &TimerService{
		clock:  clock,
		logger: logger.WithPrefix("timer"),
		timers: make(map[string]*tableTimer),
	}
}

// Bind wires the service's outputs. Must be called before Start.
func (ts *TimerService) Bind(
	broadcast func(tableID string, msg *Message),
	onExpire func(tableID, handID, playerID string, timeBankUsed int),
) {
	ts.broadcast = broadcast
	ts.onExpire = onExpire
}

// Start begins a countdown for the player's turn, replacing any previous
// timer for the table. actionSeconds <= 0 disables the timer entirely.
func (ts *TimerService) Start(tableID, handID, playerID string, actionSeconds int, bankEnabled bool, bankSeconds int) {
	if actionSeconds <= 0 {
		return
	}

	ts.mu.Lock()
	if old, ok := ts.timers[tableID]; ok {
		old.next.Stop()
		delete(ts.timers, tableID)
	}
	t := &tableTimer{
		handID:        handID,
		playerID:      playerID,
		remaining:     actionSeconds,
		bankEnabled:   bankEnabled,
		bankRemaining: bankSeconds,
	}
	ts.timers[tableID] = t
	t.next = ts.clock.AfterFunc(time.Second, func() { ts.tick(tableID, playerID) })
	ts.mu.Unlock()

	ts.broadcast(tableID, mustMessage(MessageTypeTimerStarted, TimerStartedData{
		PlayerID:          playerID,
		TotalSeconds:      actionSeconds,
		TimeBankAvailable: bankSeconds,
	}))
}

// tick advances the countdown by one second. It no-ops if the timer was
// cancelled or replaced since it was scheduled.
func (ts *TimerService) tick(tableID, playerID string) {
	ts.mu.Lock()
	t, ok := ts.timers[tableID]
	if !ok || t.playerID != playerID {
		ts.mu.Unlock()
		return
	}

	if t.paused {
		t.next = ts.clock.AfterFunc(time.Second, func() { ts.tick(tableID, playerID) })
		ts.mu.Unlock()
		return
	}

	var msgs []*Message
	expired := false

	if !t.bankActive {
		t.remaining--
		msgs = append(msgs, mustMessage(MessageTypeTimerTick, TimerTickData{
			PlayerID:          playerID,
			RemainingSeconds:  t.remaining,
			TimeBankRemaining: t.bankRemaining,
		}))
		if !t.warned && t.remaining <= warningThreshold && t.remaining > 0 {
			t.warned = true
			msgs = append(msgs, mustMessage(MessageTypeTimerWarning, TimerWarningData{
				PlayerID:         playerID,
				RemainingSeconds: t.remaining,
			}))
		}
		if t.remaining <= 0 {
			if t.bankEnabled && t.bankRemaining > 0 {
				t.bankActive = true
				msgs = append(msgs, mustMessage(MessageTypeTimeBankActivated, TimeBankActivatedData{
					PlayerID:          playerID,
					TimeBankSeconds:   t.bankRemaining,
					TimeBankRemaining: t.bankRemaining,
				}))
			} else {
				expired = true
			}
		}
	} else {
		t.bankRemaining--
		t.bankUsed++
		msgs = append(msgs, mustMessage(MessageTypeTimerTick, TimerTickData{
			PlayerID:          playerID,
			RemainingSeconds:  t.bankRemaining,
			IsTimeBankActive:  true,
			TimeBankRemaining: t.bankRemaining,
		}))
		if t.bankRemaining <= 0 {
			expired = true
		}
	}

	handID := t.handID
	bankUsed := t.bankUsed
	if expired {
		// Remove before announcing so a racing cancel finds nothing and
		// no further ticks can fire for this turn.
		delete(ts.timers, tableID)
		msgs = append(msgs, mustMessage(MessageTypeTimerExpired, TimerExpiredData{PlayerID: playerID}))
	} else {
		t.next = ts.clock.AfterFunc(time.Second, func() { ts.tick(tableID, playerID) })
	}
	ts.mu.Unlock()

	for _, msg := range msgs {
		ts.broadcast(tableID, msg)
	}
	if expired {
		ts.logger.Info("action timer expired", "table", tableID, "player", playerID, "bank_used", bankUsed)
		ts.onExpire(tableID, handID, playerID, bankUsed)
	}
}

// Cancel stops the table's timer because the player acted. Returns the
// time-bank seconds consumed this turn; 0 when no timer was running or the
// bank never engaged. Cancelling an already-expired timer is a no-op.
func (ts *TimerService) Cancel(tableID, playerID string) int {
	ts.mu.Lock()
	t, ok := ts.timers[tableID]
	if !ok || t.playerID != playerID {
		ts.mu.Unlock()
		return 0
	}
	t.next.Stop()
	delete(ts.timers, tableID)
	bankUsed := t.bankUsed
	ts.mu.Unlock()

	ts.broadcast(tableID, mustMessage(MessageTypeTimerCancelled, TimerCancelledData{PlayerID: playerID}))
	return bankUsed
}

// Pause freezes the table's countdown; ticks keep scheduling but consume
// no time until Resume.
func (ts *TimerService) Pause(tableID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.timers[tableID]; ok {
		t.paused = true
	}
}

// Resume unfreezes the table's countdown.
func (ts *TimerService) Resume(tableID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.timers[tableID]; ok {
		t.paused = false
	}
}

// State returns the current timer projection for the table.
func (ts *TimerService) State(tableID string) TimerStateData {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t, ok := ts.timers[tableID]
	if !ok {
		return TimerStateData{}
	}
	remaining := t.remaining
	if t.bankActive {
		remaining = t.bankRemaining
	}
	return TimerStateData{
		Active:            true,
		PlayerID:          t.playerID,
		RemainingSeconds:  remaining,
		IsTimeBankActive:  t.bankActive,
		TimeBankRemaining: t.bankRemaining,
		Paused:            t.paused,
	}
}
