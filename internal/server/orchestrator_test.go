package server

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/holdem/internal/deck"
	"github.com/cardroomlabs/holdem/internal/events"
	"github.com/cardroomlabs/holdem/internal/game"
)

type orchEnv struct {
	orch        *Orchestrator
	store       *events.Store
	timers      *TimerService
	clock       *quartz.Mock
	cm          *ConnectionManager
	broadcaster *Broadcaster
}

func newOrchEnv(t *testing.T) *orchEnv {
	t.Helper()
	mockClock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	metrics := NewMetrics(prometheus.NewRegistry())
	store := events.NewStore(func() time.Time { return mockClock.Now() })
	cm := NewConnectionManager()
	broadcaster := NewBroadcaster(cm, logger, metrics)
	timers := NewTimerService(mockClock, logger)
	orch := NewOrchestrator(logger, mockClock, store, timers, broadcaster, metrics)
	t.Cleanup(func() {
		orch.Shutdown()
		broadcaster.Close()
	})
	return &orchEnv{
		orch:        orch,
		store:       store,
		timers:      timers,
		clock:       mockClock,
		cm:          cm,
		broadcaster: broadcaster,
	}
}

// cashTable is a 100/200 table with the action timer off, so tests drive
// every action explicitly.
func cashTable(name string) TableConfig {
	return TableConfig{
		Name:               name,
		MaxPlayers:         9,
		SmallBlind:         100,
		BigBlind:           200,
		BuyInMin:           1000,
		BuyInMax:           100000,
		ActionTimerSeconds: -1,
		BombPot: &BombPotConfig{
			Variant: BombPotSingleBoard,
			Ante:    400,
			Trigger: BombPotTriggerManual,
		},
	}
}

// stackDeck pins the hand's deck so deals are deterministic.
func stackDeck(env *orchEnv, codes ...string) {
	cards := make([]deck.Card, len(codes))
	for i, code := range codes {
		cards[i] = deck.MustParse(code)
	}
	env.orch.SetDeckSource(func() *deck.Deck { return deck.NewStacked(cards...) })
}

func chipsOf(t *testing.T, view *TableView, playerID string) int {
	t.Helper()
	for _, p := range view.Players {
		if p.PlayerID == playerID {
			return p.Chips
		}
	}
	t.Fatalf("player %s not in view", playerID)
	return 0
}

func playerView(t *testing.T, view *TableView, playerID string) PlayerView {
	t.Helper()
	for _, p := range view.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	t.Fatalf("player %s not in view", playerID)
	return PlayerView{}
}

func eventTypes(evs []events.Event) []events.Type {
	out := make([]events.Type, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func countType(evs []events.Event, typ events.Type) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// seatThree seats alice, bob and carol with 20000 each. With the button
// landing on alice's seat, bob posts the small blind and carol the big.
func seatThree(t *testing.T, env *orchEnv) string {
	t.Helper()
	table := env.orch.CreateTable(cashTable("three"))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "carol", "Carol", 3, 20000))
	return table.ID
}

// s1Deck deals aces to alice and a dry board. Hole cards go out starting
// left of the button: bob, carol, alice, then the second pass.
func s1Deck(env *orchEnv) {
	stackDeck(env,
		"7d", "8h", "As", "2c", "5c", "Ah",
		"4s", "Ks", "Qh", "2s",
		"4h", "9c",
		"4d", "3d",
	)
}

func TestThreeWayLimpedPotToShowdown(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)
	s1Deck(env)

	require.NoError(t, env.orch.StartHand(tableID))

	view, err := env.orch.View(tableID, "alice")
	require.NoError(t, err)
	handID := view.HandID
	require.NotEmpty(t, handID)
	assert.Equal(t, "preflop", view.Phase)
	assert.Equal(t, "alice", view.CurrentPlayerID)
	assert.Equal(t, 300, view.TotalPot)

	// Everyone limps in for the big blind.
	require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Call, 0))
	require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Call, 0))
	require.NoError(t, env.orch.ExecuteAction(tableID, "carol", game.Check, 0))

	view, err = env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Equal(t, "flop", view.Phase)
	assert.Equal(t, 600, view.TotalPot)
	assert.Equal(t, []string{"Ks", "Qh", "2s"}, view.Community)

	// Flop, turn and river all check through.
	for i := 0; i < 3; i++ {
		require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Check, 0))
		require.NoError(t, env.orch.ExecuteAction(tableID, "carol", game.Check, 0))
		require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Check, 0))
	}

	// Aces take the whole pot at showdown.
	view, err = env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	assert.Equal(t, "waiting", view.Status)
	assert.Equal(t, 20400, chipsOf(t, view, "alice"))
	assert.Equal(t, 19800, chipsOf(t, view, "bob"))
	assert.Equal(t, 19800, chipsOf(t, view, "carol"))

	sum, err := env.store.Summary(handID)
	require.NoError(t, err)
	assert.True(t, sum.WentToShowdown)
	assert.Equal(t, map[string]int{"alice": 600}, sum.Winnings)

	// Event sequences stay dense from 1.
	evs, err := env.store.Events(handID)
	require.NoError(t, err)
	for i, ev := range evs {
		assert.Equal(t, i+1, ev.Sequence)
	}
	assert.Equal(t, 2, countType(evs, events.TypeBlindPosted))
	assert.Equal(t, 3, countType(evs, events.TypeCommunityDealt))
	assert.Equal(t, 1, countType(evs, events.TypePotAwarded))
}

func TestFoldsToBigBlind(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	require.NoError(t, env.orch.StartHand(tableID))
	require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Fold, 0))
	require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Fold, 0))

	view, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	// The big blind takes both blinds without a showdown.
	assert.Equal(t, 20100, chipsOf(t, view, "carol"))
	assert.Equal(t, 20000, chipsOf(t, view, "alice"))
	assert.Equal(t, 19900, chipsOf(t, view, "bob"))

	history, err := env.store.TableHistory(tableID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].WentToShowdown)
	assert.Equal(t, map[string]int{"carol": 300}, history[0].Winnings)

	evs, err := env.store.Events(history[0].HandID)
	require.NoError(t, err)
	assert.Zero(t, countType(evs, events.TypeCommunityDealt))
	assert.Zero(t, countType(evs, events.TypeCardsShown))
}

func TestHeadsUpAllInRunout(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	table := env.orch.CreateTable(cashTable("hu"))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 10000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 10000))

	// Heads-up deal order is big blind first: bob, alice, bob, alice.
	stackDeck(env,
		"9c", "As", "9d", "Ah",
		"2c", "Kh", "Qs", "3c",
		"2d", "Jd",
		"2h", "4s",
	)

	require.NoError(t, env.orch.StartHand(table.ID))

	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	handID := view.HandID
	// The button posts the small blind and acts first.
	assert.Equal(t, "alice", view.CurrentPlayerID)

	require.NoError(t, env.orch.ExecuteAction(table.ID, "alice", game.Raise, 10000))
	require.NoError(t, env.orch.ExecuteAction(table.ID, "bob", game.Call, 0))

	// Both stacks in: the board runs out with no further betting.
	view, err = env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	assert.Equal(t, 20000, chipsOf(t, view, "alice"))
	assert.Equal(t, 0, chipsOf(t, view, "bob"))

	sum, err := env.store.Summary(handID)
	require.NoError(t, err)
	assert.True(t, sum.WentToShowdown)
	assert.Equal(t, map[string]int{"alice": 20000}, sum.Winnings)

	evs, err := env.store.Events(handID)
	require.NoError(t, err)
	assert.Equal(t, 3, countType(evs, events.TypeCommunityDealt))
	assert.Equal(t, 2, countType(evs, events.TypeCardsShown))
}

func TestUncallableBetReturned(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	table := env.orch.CreateTable(cashTable("deep"))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "deep", "Deep", 1, 15000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "short", "Short", 2, 5000))

	// short (big blind) is dealt first, then deep.
	stackDeck(env,
		"As", "7c", "Ah", "7d",
		"2c", "Kh", "Qs", "3c",
		"2d", "Jd",
		"2h", "4s",
	)

	require.NoError(t, env.orch.StartHand(table.ID))
	require.NoError(t, env.orch.ExecuteAction(table.ID, "deep", game.Raise, 15000))
	require.NoError(t, env.orch.ExecuteAction(table.ID, "short", game.Call, 0))

	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	// The 10000 nobody could call went back to deep before the pot formed;
	// short doubled through with aces.
	assert.Equal(t, 10000, chipsOf(t, view, "deep"))
	assert.Equal(t, 10000, chipsOf(t, view, "short"))

	history, err := env.store.TableHistory(table.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, map[string]int{"short": 10000}, history[0].Winnings)

	evs, err := env.store.Events(history[0].HandID)
	require.NoError(t, err)
	var refunds []events.UncalledBetReturned
	potAwards := 0
	for _, ev := range evs {
		switch p := ev.Payload.(type) {
		case events.UncalledBetReturned:
			refunds = append(refunds, p)
		case events.PotAwarded:
			potAwards++
			assert.Equal(t, map[string]int{"short": 10000}, p.Amounts)
		}
	}
	require.Len(t, refunds, 1)
	assert.Equal(t, "deep", refunds[0].PlayerID)
	assert.Equal(t, 10000, refunds[0].Amount)
	// One pot, no one-player side pot from the overage.
	assert.Equal(t, 1, potAwards)
}

func TestBombPotSingleBoard(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	// Bomb pots deal from the pre-rotation button, so the order is alice,
	// bob, carol.
	stackDeck(env,
		"As", "7d", "8h", "Ah", "2c", "5c",
		"4s", "Ks", "Qh", "2s",
		"4h", "9c",
		"4d", "3d",
	)

	require.NoError(t, env.orch.StartBombPot(tableID, 400, false))

	view, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	handID := view.HandID
	// Preflop is skipped: betting opens on the flop with every ante in.
	assert.Equal(t, "flop", view.Phase)
	assert.Equal(t, 1200, view.TotalPot)
	assert.True(t, view.BombPot)
	assert.Len(t, view.Community, 3)
	assert.Equal(t, "alice", view.CurrentPlayerID)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Check, 0))
		require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Check, 0))
		require.NoError(t, env.orch.ExecuteAction(tableID, "carol", game.Check, 0))
	}

	view, err = env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	assert.Equal(t, 20800, chipsOf(t, view, "alice"))
	assert.Equal(t, 19600, chipsOf(t, view, "bob"))
	assert.Equal(t, 19600, chipsOf(t, view, "carol"))

	evs, err := env.store.Events(handID)
	require.NoError(t, err)
	assert.Equal(t, 3, countType(evs, events.TypeAntePosted))
	assert.Zero(t, countType(evs, events.TypeBlindPosted))

	sum, err := env.store.Summary(handID)
	require.NoError(t, err)
	assert.True(t, sum.BombPot)
}

func TestBombPotDoubleBoardSplit(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	table := env.orch.CreateTable(cashTable("double"))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 1000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 1000))

	// Ante equals both stacks, so the hand runs out immediately. Each
	// street deals board one then board two, with a burn before each.
	stackDeck(env,
		"As", "Jh", "Ah", "Tc",
		"2c", "Ad", "Kc", "2s",
		"2h", "9s", "8h", "Qd",
		"3c", "3h",
		"3d", "2d",
		"4c", "8d",
		"4d", "7h",
	)

	require.NoError(t, env.orch.StartBombPot(table.ID, 1000, true))

	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	// Alice's set takes board one, bob's straight takes board two.
	assert.Equal(t, 1000, chipsOf(t, view, "alice"))
	assert.Equal(t, 1000, chipsOf(t, view, "bob"))

	history, err := env.store.TableHistory(table.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, map[string]int{"alice": 1000, "bob": 1000}, history[0].Winnings)

	evs, err := env.store.Events(history[0].HandID)
	require.NoError(t, err)
	// Three streets, two boards each.
	assert.Equal(t, 6, countType(evs, events.TypeCommunityDealt))

	boards := map[int]int{}
	for _, ev := range evs {
		if p, ok := ev.Payload.(events.PotAwarded); ok {
			boards[p.Board]++
			switch p.Board {
			case 1:
				assert.Equal(t, map[string]int{"alice": 1000}, p.Amounts)
			case 2:
				assert.Equal(t, map[string]int{"bob": 1000}, p.Amounts)
			}
		}
	}
	assert.Equal(t, map[int]int{1: 1, 2: 1}, boards)
}

func TestIntervalTriggersBombPot(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	cfg := cashTable("interval")
	cfg.BombPot.Trigger = BombPotTriggerInterval
	cfg.BombPot.Interval = 2
	table := env.orch.CreateTable(cfg)
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))

	// Hand one plays normally.
	require.NoError(t, env.orch.StartHand(table.ID))
	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "preflop", view.Phase)
	assert.False(t, view.BombPot)
	require.NoError(t, env.orch.ExecuteAction(table.ID, view.CurrentPlayerID, game.Fold, 0))

	// Hand two lands on the interval and deals as a bomb pot.
	require.NoError(t, env.orch.StartHand(table.ID))
	view, err = env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.True(t, view.BombPot)
	assert.Equal(t, "flop", view.Phase)
	assert.Equal(t, 800, view.TotalPot)
}

func TestRandomTriggerUsesInjectedSource(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	cfg := cashTable("random")
	cfg.BombPot.Trigger = BombPotTriggerRandom
	cfg.BombPot.Percent = 25
	table := env.orch.CreateTable(cfg)
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))

	// A roll at or above the percent plays a normal hand.
	env.orch.SetRandSource(func(int) int { return 25 })
	require.NoError(t, env.orch.StartHand(table.ID))
	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.False(t, view.BombPot)
	assert.Equal(t, "preflop", view.Phase)
	require.NoError(t, env.orch.ExecuteAction(table.ID, view.CurrentPlayerID, game.Fold, 0))

	// A roll below it deals a bomb pot.
	env.orch.SetRandSource(func(int) int { return 24 })
	require.NoError(t, env.orch.StartHand(table.ID))
	view, err = env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.True(t, view.BombPot)
	assert.Equal(t, "flop", view.Phase)
}

func TestVoteThresholdSchedulesBombPot(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	cfg := cashTable("voting")
	cfg.BombPot.Trigger = BombPotTriggerVoting
	cfg.BombPot.VoteThreshold = 100
	table := env.orch.CreateTable(cfg)
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "carol", "Carol", 3, 20000))

	require.NoError(t, env.orch.VoteBombPot(table.ID, "alice"))
	require.NoError(t, env.orch.VoteBombPot(table.ID, "bob"))

	// Two of three votes fall short of a unanimous threshold.
	require.NoError(t, env.orch.StartHand(table.ID))
	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.False(t, view.BombPot)
	require.NoError(t, env.orch.ExecuteAction(table.ID, view.CurrentPlayerID, game.Fold, 0))
	view, err = env.orch.View(table.ID, "")
	require.NoError(t, err)
	require.NoError(t, env.orch.ExecuteAction(table.ID, view.CurrentPlayerID, game.Fold, 0))

	require.NoError(t, env.orch.VoteBombPot(table.ID, "carol"))
	require.NoError(t, env.orch.StartHand(table.ID))
	view, err = env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.True(t, view.BombPot)
}

func TestVoteBombPotRequiresVotingTrigger(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	err := env.orch.VoteBombPot(tableID, "alice")
	require.ErrorIs(t, err, ErrVotingDisabled)
}

func TestButtonWinSchedulesBombPot(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	cfg := cashTable("btnwin")
	cfg.BombPot.Trigger = BombPotTriggerButtonWin
	table := env.orch.CreateTable(cfg)
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "carol", "Carol", 3, 20000))

	// Button alice raises and takes it down; the button won money, so the
	// next hand is a bomb pot.
	require.NoError(t, env.orch.StartHand(table.ID))
	require.NoError(t, env.orch.ExecuteAction(table.ID, "alice", game.Raise, 600))
	require.NoError(t, env.orch.ExecuteAction(table.ID, "bob", game.Fold, 0))
	require.NoError(t, env.orch.ExecuteAction(table.ID, "carol", game.Fold, 0))

	require.NoError(t, env.orch.StartHand(table.ID))
	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.True(t, view.BombPot)
}

func TestPauseIsHostGated(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	// alice seated first, so she is the host.
	require.ErrorIs(t, env.orch.PauseTable(tableID, "bob"), ErrNotHost)
	require.NoError(t, env.orch.PauseTable(tableID, "alice"))

	view, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Equal(t, "paused", view.Status)

	require.ErrorIs(t, env.orch.ResumeTable(tableID, "carol"), ErrNotHost)
	require.NoError(t, env.orch.ResumeTable(tableID, "alice"))

	view, err = env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Equal(t, "waiting", view.Status)

	// Host duties pass to the next seat when the host leaves.
	require.NoError(t, env.orch.LeaveTable(tableID, "alice"))
	require.NoError(t, env.orch.PauseTable(tableID, "bob"))
}

func TestTimeoutFoldConsumesTimeBank(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	cfg := cashTable("timed")
	cfg.ActionTimerSeconds = 15
	cfg.TimeBankEnabled = true
	cfg.TimeBankSeconds = 30
	table := env.orch.CreateTable(cfg)
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))

	require.NoError(t, env.orch.StartHand(table.ID))
	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	handID := view.HandID
	require.Equal(t, "alice", view.CurrentPlayerID)

	// 15 action seconds, then the entire 30 second bank drains.
	advanceSeconds(t, env.clock, 45)

	view, err = env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	assert.Equal(t, 0, playerView(t, view, "alice").TimeBank)
	assert.Equal(t, 20100, chipsOf(t, view, "bob"))
	assert.Equal(t, 19900, chipsOf(t, view, "alice"))

	evs, err := env.store.Events(handID)
	require.NoError(t, err)
	var expiries []events.TimerExpired
	for _, ev := range evs {
		if p, ok := ev.Payload.(events.TimerExpired); ok {
			expiries = append(expiries, p)
		}
	}
	require.Len(t, expiries, 1)
	assert.Equal(t, "alice", expiries[0].PlayerID)
	assert.Equal(t, 30, expiries[0].TimeBankUsed)
	assert.Equal(t, "fold", expiries[0].ResultingAction)
}

func TestActingDuringBankDebitsOnlyUsedSeconds(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	cfg := cashTable("bank")
	cfg.ActionTimerSeconds = 15
	cfg.TimeBankEnabled = true
	cfg.TimeBankSeconds = 30
	table := env.orch.CreateTable(cfg)
	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))
	require.NoError(t, env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 20000))

	require.NoError(t, env.orch.StartHand(table.ID))
	advanceSeconds(t, env.clock, 20)

	require.NoError(t, env.orch.ExecuteAction(table.ID, "alice", game.Fold, 0))

	view, err := env.orch.View(table.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 25, playerView(t, view, "alice").TimeBank)
	assert.Equal(t, 30, playerView(t, view, "bob").TimeBank)
}

func TestMuckRequestHonoredWhenBeaten(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)
	s1Deck(env)

	require.NoError(t, env.orch.StartHand(tableID))
	require.NoError(t, env.orch.RequestMuck(tableID, "carol"))

	require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Call, 0))
	require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Call, 0))
	require.NoError(t, env.orch.ExecuteAction(tableID, "carol", game.Check, 0))
	for i := 0; i < 3; i++ {
		require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Check, 0))
		require.NoError(t, env.orch.ExecuteAction(tableID, "carol", game.Check, 0))
		require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Check, 0))
	}

	history, err := env.store.TableHistory(tableID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	evs, err := env.store.Events(history[0].HandID)
	require.NoError(t, err)

	shown := map[string]bool{}
	mucked := map[string]bool{}
	for _, ev := range evs {
		switch p := ev.Payload.(type) {
		case events.CardsShown:
			shown[p.PlayerID] = true
		case events.CardsMucked:
			mucked[p.PlayerID] = true
		}
	}
	// bob shows first, carol's beaten hand mucks on request, alice shows
	// the winner.
	assert.True(t, shown["bob"])
	assert.True(t, shown["alice"])
	assert.True(t, mucked["carol"])
	assert.False(t, shown["carol"])
}

func TestActionValidationErrors(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	require.NoError(t, env.orch.StartHand(tableID))

	// bob acts out of turn.
	err := env.orch.ExecuteAction(tableID, "bob", game.Call, 0)
	require.ErrorIs(t, err, game.ErrNotYourTurn)

	// alice cannot check the big blind away.
	err = env.orch.ExecuteAction(tableID, "alice", game.Check, 0)
	require.ErrorIs(t, err, game.ErrCheckFacingBet)

	// A raise below the minimum is rejected.
	err = env.orch.ExecuteAction(tableID, "alice", game.Raise, 300)
	require.ErrorIs(t, err, game.ErrRaiseTooSmall)

	// The failed attempts left the turn where it was.
	view, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", view.CurrentPlayerID)
	assert.Equal(t, 300, view.TotalPot)
}

func TestSeatPlayerValidation(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	table := env.orch.CreateTable(cashTable("seats"))

	require.NoError(t, env.orch.SeatPlayer(table.ID, "alice", "Alice", 1, 20000))

	err := env.orch.SeatPlayer(table.ID, "bob", "Bob", 1, 20000)
	require.ErrorIs(t, err, ErrSeatTaken)

	err = env.orch.SeatPlayer(table.ID, "alice", "Alice", 2, 20000)
	require.Error(t, err)

	err = env.orch.SeatPlayer(table.ID, "bob", "Bob", 2, 500)
	require.ErrorIs(t, err, ErrBuyInOutOfRange)

	err = env.orch.StartHand(table.ID)
	require.ErrorIs(t, err, ErrNotEnoughPlayers)

	err = env.orch.SeatPlayer("nope", "bob", "Bob", 2, 20000)
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestLeaveMidHandFoldsPlayer(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	require.NoError(t, env.orch.StartHand(tableID))

	// carol (big blind) leaves while alice holds the action.
	require.NoError(t, env.orch.LeaveTable(tableID, "carol"))

	view, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	require.Len(t, view.Players, 2)
	assert.Equal(t, "alice", view.CurrentPlayerID)

	// alice folds; bob is the lone survivor and takes the pot, including
	// the dead big blind.
	require.NoError(t, env.orch.ExecuteAction(tableID, "alice", game.Fold, 0))

	view, err = env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	assert.Equal(t, 20200, chipsOf(t, view, "bob"))
}

func TestLeaveOnTurnAdvancesHand(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	require.NoError(t, env.orch.StartHand(tableID))

	// alice leaves holding the action; the hand moves on to bob.
	require.NoError(t, env.orch.LeaveTable(tableID, "alice"))

	view, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	require.NotEmpty(t, view.HandID)
	assert.Equal(t, "bob", view.CurrentPlayerID)

	require.NoError(t, env.orch.ExecuteAction(tableID, "bob", game.Fold, 0))

	view, err = env.orch.View(tableID, "")
	require.NoError(t, err)
	assert.Empty(t, view.HandID)
	assert.Equal(t, 20100, chipsOf(t, view, "carol"))
}

func TestAvailableActionsReflectRoundState(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	require.NoError(t, env.orch.StartHand(tableID))

	opts, err := env.orch.AvailableActions(tableID, "alice")
	require.NoError(t, err)
	byType := map[game.ActionType]game.ActionOption{}
	for _, opt := range opts {
		byType[opt.Type] = opt
	}
	assert.Contains(t, byType, game.Fold)
	assert.Contains(t, byType, game.Call)
	assert.Equal(t, 200, byType[game.Call].Min)
	assert.Equal(t, 400, byType[game.Raise].Min)
	assert.Equal(t, 20000, byType[game.Raise].Max)

	// Off-turn players get nothing.
	opts, err = env.orch.AvailableActions(tableID, "bob")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestViewHidesOtherHoleCards(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)
	s1Deck(env)

	require.NoError(t, env.orch.StartHand(tableID))

	view, err := env.orch.View(tableID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"As", "Ah"}, playerView(t, view, "alice").HoleCards)
	bob := playerView(t, view, "bob")
	assert.Empty(t, bob.HoleCards)
	assert.True(t, bob.HasHiddenCards)

	spectator, err := env.orch.View(tableID, "")
	require.NoError(t, err)
	for _, p := range spectator.Players {
		assert.Empty(t, p.HoleCards)
	}
}

func TestChipConservationAcrossHands(t *testing.T) {
	t.Parallel()
	env := newOrchEnv(t)
	tableID := seatThree(t, env)

	total := func() int {
		view, err := env.orch.View(tableID, "")
		require.NoError(t, err)
		sum := view.TotalPot
		for _, p := range view.Players {
			sum += p.Chips + p.CurrentBet
		}
		return sum
	}

	require.Equal(t, 60000, total())
	for i := 0; i < 3; i++ {
		require.NoError(t, env.orch.StartHand(tableID))
		view, err := env.orch.View(tableID, "")
		require.NoError(t, err)
		require.NoError(t, env.orch.ExecuteAction(tableID, view.CurrentPlayerID, game.Fold, 0))
		view, err = env.orch.View(tableID, "")
		require.NoError(t, err)
		require.NoError(t, env.orch.ExecuteAction(tableID, view.CurrentPlayerID, game.Fold, 0))
		require.Equal(t, 60000, total())
	}
}
