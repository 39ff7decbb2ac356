package server

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroomlabs/holdem/internal/deck"
	"github.com/cardroomlabs/holdem/internal/events"
	"github.com/cardroomlabs/holdem/internal/game"
)

var (
	ErrTableNotFound    = errors.New("table not found")
	ErrTableFull        = errors.New("table full")
	ErrSeatTaken        = errors.New("seat taken")
	ErrPlayerNotSeated  = errors.New("player not seated at table")
	ErrNoActiveHand     = errors.New("no hand in progress")
	ErrHandInProgress   = errors.New("hand already in progress")
	ErrNotEnoughPlayers = errors.New("need at least two players")
	ErrBuyInOutOfRange  = errors.New("buy-in out of range")
	ErrNotHost          = errors.New("only the host can do that")
	ErrVotingDisabled   = errors.New("bomb pot voting not enabled")
)

// Orchestrator owns every table. Each table runs as a single-writer actor:
// all mutations are functions pushed onto the table's inbox and executed by
// one goroutine, so the hand state never needs internal locking.
type Orchestrator struct {
	logger      *log.Logger
	clock       quartz.Clock
	store       *events.Store
	timers      *TimerService
	broadcaster *Broadcaster
	metrics     *Metrics

	// newDeck produces a shuffled deck for each hand; replaceable with a
	// stacked deck in tests.
	newDeck func() *deck.Deck
	// randIntn drives the random bomb-pot trigger; replaceable in tests.
	randIntn func(n int) int

	mu     sync.RWMutex
	actors map[string]*tableActor
	closed bool
}

type tableActor struct {
	table *Table
	sm    *game.StateMachine
	inbox chan func()
	done  chan struct{}

	// muckRequests carries showdown muck preferences for the current hand.
	muckRequests map[string]bool
	// bombPotVotes tracks who has voted for a bomb pot under the voting
	// trigger; bombPotNext schedules one for the next hand.
	bombPotVotes map[string]bool
	bombPotNext  bool
	// deadBets holds the committed chips of players who left mid-hand, so
	// their money still reaches the pot.
	deadBets map[string]int
	// shownCards is what the last showdown revealed; cleared on new hand.
	shownCards map[string][]deck.Card

	// chipBaseline is the conservation target while a hand runs: stacks
	// plus pots plus live bets must always sum to it.
	chipBaseline int

	buyInMin int
	buyInMax int
}

func NewOrchestrator(
	logger *log.Logger,
	clock quartz.Clock,
	store *events.Store,
	timers *TimerService,
	broadcaster *Broadcaster,
	metrics *Metrics,
) *Orchestrator {
	o := &Orchestrator{
		logger:      logger.WithPrefix("table"),
		clock:       clock,
		store:       store,
		timers:      timers,
		broadcaster: broadcaster,
		metrics:     metrics,
		actors:      make(map[string]*tableActor),
		newDeck: func() *deck.Deck {
			d := deck.New()
			d.Shuffle()
			return d
		},
		randIntn: rand.Intn,
	}
	timers.Bind(o.broadcastTimer, o.handleTimerExpiry)
	return o
}

// SetDeckSource overrides how hands get their decks. Test hook.
func (o *Orchestrator) SetDeckSource(newDeck func() *deck.Deck) {
	o.newDeck = newDeck
}

// SetRandSource overrides the random bomb-pot trigger source. Test hook.
func (o *Orchestrator) SetRandSource(randIntn func(n int) int) {
	o.randIntn = randIntn
}

// CreateTable spins up an actor for the configured table.
func (o *Orchestrator) CreateTable(cfg TableConfig) *Table {
	a := &tableActor{
		table:        newTable(cfg),
		inbox:        make(chan func(), 64),
		done:         make(chan struct{}),
		muckRequests: make(map[string]bool),
		bombPotVotes: make(map[string]bool),
		deadBets:     make(map[string]int),
		shownCards:   make(map[string][]deck.Card),
		buyInMin:     cfg.BuyInMin,
		buyInMax:     cfg.BuyInMax,
	}
	a.sm = game.NewStateMachine(func() time.Time { return o.clock.Now() })

	o.mu.Lock()
	o.actors[a.table.ID] = a
	o.mu.Unlock()

	go o.runActor(a)
	o.logger.Info("table created", "table", a.table.ID, "name", cfg.Name,
		"blinds", fmt.Sprintf("%d/%d", cfg.SmallBlind, cfg.BigBlind))
	return a.table
}

func (o *Orchestrator) runActor(a *tableActor) {
	defer close(a.done)
	for fn := range a.inbox {
		fn()
	}
}

// Shutdown stops every table actor and waits for their inboxes to drain.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	actors := make([]*tableActor, 0, len(o.actors))
	for _, a := range o.actors {
		actors = append(actors, a)
	}
	o.mu.Unlock()

	for _, a := range actors {
		close(a.inbox)
		<-a.done
	}
}

func (o *Orchestrator) actor(tableID string) (*tableActor, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.actors[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return a, nil
}

// do runs fn inside the table's actor and waits for its result.
func (o *Orchestrator) do(tableID string, fn func(a *tableActor) error) error {
	a, err := o.actor(tableID)
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	a.inbox <- func() { errc <- fn(a) }
	return <-errc
}

// Tables lists the current tables.
func (o *Orchestrator) Tables() []*Table {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Table, 0, len(o.actors))
	for _, a := range o.actors {
		out = append(out, a.table)
	}
	return out
}

// FindTableByName resolves a configured table name to its ID.
func (o *Orchestrator) FindTableByName(name string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for id, a := range o.actors {
		if a.table.Name == name {
			return id, true
		}
	}
	return "", false
}

// SeatPlayer adds a player to the table with a buy-in. New players wait
// until the next hand starts.
func (o *Orchestrator) SeatPlayer(tableID, playerID, name string, seat, buyIn int) error {
	return o.do(tableID, func(a *tableActor) error {
		t := a.table
		if len(t.Seats) >= t.MaxPlayers {
			return ErrTableFull
		}
		if _, ok := t.Seats[seat]; ok {
			return fmt.Errorf("%w: seat %d", ErrSeatTaken, seat)
		}
		if t.Player(playerID) != nil {
			return fmt.Errorf("player %s already seated", playerID)
		}
		if buyIn < a.buyInMin || buyIn > a.buyInMax {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrBuyInOutOfRange, buyIn, a.buyInMin, a.buyInMax)
		}

		t.Seats[seat] = &game.Player{
			ID:       playerID,
			Name:     name,
			Seat:     seat,
			Chips:    buyIn,
			Status:   game.StatusWaiting,
			TimeBank: t.TimeBankSeconds,
		}
		if t.HostID == "" {
			t.HostID = playerID
		}
		a.chipBaseline += buyIn
		o.logger.Info("player seated", "table", tableID, "player", playerID, "seat", seat, "buy_in", buyIn)
		o.broadcaster.BroadcastTable(tableID, mustMessage(MessageTypePlayerJoined, PlayerJoinedData{
			PlayerID: playerID,
			Name:     name,
			Seat:     seat,
		}))
		return nil
	})
}

// LeaveTable removes a player. Mid-hand the player is folded first.
func (o *Orchestrator) LeaveTable(tableID, playerID string) error {
	return o.do(tableID, func(a *tableActor) error {
		t := a.table
		p := t.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %s", ErrPlayerNotSeated, playerID)
		}

		if h := t.CurrentHand; h != nil && h.InProgress() && o.inHandList(h, playerID) {
			// The chips the leaver already committed stay in the hand.
			a.deadBets[playerID] = p.TotalBet
			if p.InHand() {
				wasTurn := h.CurrentPlayerID == playerID
				if wasTurn {
					o.timers.Cancel(tableID, playerID)
				}
				p.Status = game.StatusFolded
				if h.Round != nil {
					h.Round.MarkActed(playerID)
				}
				game.RemovePlayerFromPots(h.Pots, playerID)
				switch {
				case wasTurn:
					o.afterPlayerRemoved(a)
				case len(o.livePlayers(t, h)) == 1:
					o.afterPlayerRemoved(a)
				case h.Phase.IsBettingPhase() && o.bettingRoundComplete(t, h):
					o.afterPlayerRemoved(a)
				}
			}
		}

		a.chipBaseline -= p.Chips
		delete(t.Seats, p.Seat)
		delete(a.bombPotVotes, playerID)
		if t.HostID == playerID {
			t.HostID = ""
			if seats := t.occupiedSeats(); len(seats) > 0 {
				t.HostID = t.Seats[seats[0]].ID
			}
		}
		o.logger.Info("player left", "table", tableID, "player", playerID)
		o.broadcaster.BroadcastTable(tableID, mustMessage(MessageTypePlayerLeft, PlayerLeftData{PlayerID: playerID}))
		o.broadcastState(a)
		return nil
	})
}

// StartHand deals a new hand, or a bomb pot when the table's trigger says
// this hand is one.
func (o *Orchestrator) StartHand(tableID string) error {
	return o.do(tableID, func(a *tableActor) error {
		t := a.table
		if o.bombPotDue(a) {
			return o.startBombPot(a, t.BombPotAnte, t.BombPotDoubleBoard)
		}
		return o.startNewHand(a)
	})
}

// bombPotDue evaluates the table's trigger between hands. Voting and
// button-win triggers arrive via bombPotNext; interval and random are
// decided here.
func (o *Orchestrator) bombPotDue(a *tableActor) bool {
	t := a.table
	if a.bombPotNext {
		a.bombPotNext = false
		return true
	}
	switch t.BombPotTrigger {
	case BombPotTriggerInterval:
		return t.BombPotInterval > 0 && (t.HandCount+1)%t.BombPotInterval == 0
	case BombPotTriggerRandom:
		return o.randIntn(100) < t.BombPotPercent
	}
	return false
}

// VoteBombPot records the player's vote to make the next hand a bomb pot.
// Once the configured share of seated players has voted, one is scheduled
// and the tally resets.
func (o *Orchestrator) VoteBombPot(tableID, playerID string) error {
	return o.do(tableID, func(a *tableActor) error {
		t := a.table
		if t.BombPotTrigger != BombPotTriggerVoting {
			return ErrVotingDisabled
		}
		if t.Player(playerID) == nil {
			return fmt.Errorf("%w: %s", ErrPlayerNotSeated, playerID)
		}
		a.bombPotVotes[playerID] = true

		votes := len(a.bombPotVotes)
		needed := (t.BombPotVoteThreshold*len(t.Seats) + 99) / 100
		passed := votes >= needed
		if passed {
			a.bombPotNext = true
			a.bombPotVotes = make(map[string]bool)
		}
		o.logger.Info("bomb pot vote", "table", tableID, "player", playerID,
			"votes", votes, "needed", needed, "passed", passed)
		o.broadcaster.BroadcastTable(tableID, mustMessage(MessageTypeBombPotVote, BombPotVoteData{
			PlayerID: playerID,
			Votes:    votes,
			Needed:   needed,
			Passed:   passed,
		}))
		return nil
	})
}

// StartBombPot deals a bomb pot hand: everyone antes, preflop is skipped.
func (o *Orchestrator) StartBombPot(tableID string, ante int, doubleBoard bool) error {
	return o.do(tableID, func(a *tableActor) error {
		return o.startBombPot(a, ante, doubleBoard)
	})
}

// ExecuteAction applies a player's intent to the current hand.
func (o *Orchestrator) ExecuteAction(tableID, playerID string, action game.ActionType, amount int) error {
	return o.do(tableID, func(a *tableActor) error {
		return o.executeAction(a, playerID, action, amount)
	})
}

// RequestMuck registers the player's wish to muck a beaten hand at the
// coming showdown.
func (o *Orchestrator) RequestMuck(tableID, playerID string) error {
	return o.do(tableID, func(a *tableActor) error {
		if a.table.Player(playerID) == nil {
			return fmt.Errorf("%w: %s", ErrPlayerNotSeated, playerID)
		}
		a.muckRequests[playerID] = true
		return nil
	})
}

// AvailableActions reports what the player may legally do right now.
func (o *Orchestrator) AvailableActions(tableID, playerID string) ([]game.ActionOption, error) {
	var opts []game.ActionOption
	err := o.do(tableID, func(a *tableActor) error {
		t := a.table
		h := t.CurrentHand
		p := t.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %s", ErrPlayerNotSeated, playerID)
		}
		if h == nil || !h.InProgress() || h.Round == nil || h.CurrentPlayerID != playerID {
			return nil
		}
		opts = game.AvailableActions(p, h.Round)
		return nil
	})
	return opts, err
}

// View builds the sanitized table projection for a viewer (empty viewerID
// for spectators).
func (o *Orchestrator) View(tableID, viewerID string) (*TableView, error) {
	var view *TableView
	err := o.do(tableID, func(a *tableActor) error {
		view = Sanitize(a.table, viewerID, a.shownCards, o.clock.Now())
		return nil
	})
	return view, err
}

// PauseTable freezes the action timer table-wide. Only the host may pause;
// an empty requesterID is the server itself.
func (o *Orchestrator) PauseTable(tableID, requesterID string) error {
	return o.do(tableID, func(a *tableActor) error {
		t := a.table
		if requesterID != "" && requesterID != t.HostID {
			return ErrNotHost
		}
		t.Status = TablePaused
		o.timers.Pause(tableID)
		o.broadcaster.BroadcastTable(tableID, mustMessage(MessageTypeTablePaused,
			TablePausedData{TableID: tableID, ByPlayerID: requesterID}))
		return nil
	})
}

// ResumeTable lifts a pause.
func (o *Orchestrator) ResumeTable(tableID, requesterID string) error {
	return o.do(tableID, func(a *tableActor) error {
		t := a.table
		if requesterID != "" && requesterID != t.HostID {
			return ErrNotHost
		}
		if t.CurrentHand != nil && t.CurrentHand.InProgress() {
			t.Status = TablePlaying
		} else {
			t.Status = TableWaiting
		}
		o.timers.Resume(tableID)
		o.broadcaster.BroadcastTable(tableID, mustMessage(MessageTypeTableResumed,
			TableResumedData{TableID: tableID, ByPlayerID: requesterID}))
		return nil
	})
}

// broadcastTimer is the TimerService's broadcast sink.
func (o *Orchestrator) broadcastTimer(tableID string, msg *Message) {
	o.broadcaster.BroadcastTable(tableID, msg)
}

// handleTimerExpiry routes a timer expiry back through the table actor as
// a forced fold. The hand and player are re-checked inside the actor since
// an action may have slipped in.
func (o *Orchestrator) handleTimerExpiry(tableID, handID, playerID string, timeBankUsed int) {
	err := o.do(tableID, func(a *tableActor) error {
		return o.forceTimeoutFold(a, handID, playerID, timeBankUsed)
	})
	if err != nil {
		o.logger.Debug("timeout fold skipped", "table", tableID, "player", playerID, "err", err)
	}
}
