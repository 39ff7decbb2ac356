package server

import (
	"sort"

	"github.com/google/uuid"

	"github.com/cardroomlabs/holdem/internal/game"
)

// TableStatus is the table lifecycle state.
type TableStatus int

const (
	TableWaiting TableStatus = iota
	TablePlaying
	TablePaused
	TableClosed
)

func (s TableStatus) String() string {
	switch s {
	case TableWaiting:
		return "waiting"
	case TablePlaying:
		return "playing"
	case TablePaused:
		return "paused"
	case TableClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Table is the authoritative state for one table. It is owned by the
// table's actor goroutine; nothing outside the actor mutates it.
type Table struct {
	ID   string
	Name string

	Seats map[int]*game.Player

	SmallBlind int
	BigBlind   int
	MaxPlayers int

	ButtonSeat int
	HandCount  int

	ActionTimerSeconds int
	TimeBankEnabled    bool
	TimeBankSeconds    int

	BombPotAnte        int
	BombPotDoubleBoard bool
	// BombPotTrigger decides how bomb pots get scheduled between hands;
	// the remaining fields parameterize the interval/random/voting modes.
	BombPotTrigger       string
	BombPotInterval      int
	BombPotPercent       int
	BombPotVoteThreshold int

	Status      TableStatus
	CurrentHand *game.Hand
	HostID      string
}

func newTable(cfg TableConfig) *Table {
	bp := cfg.BombPot
	if bp == nil {
		bp = &BombPotConfig{Variant: BombPotSingleBoard, Trigger: BombPotTriggerManual, Ante: cfg.BigBlind * 2}
	}
	return &Table{
		ID:                   uuid.NewString(),
		Name:                 cfg.Name,
		Seats:                make(map[int]*game.Player),
		SmallBlind:           cfg.SmallBlind,
		BigBlind:             cfg.BigBlind,
		MaxPlayers:           cfg.MaxPlayers,
		ActionTimerSeconds:   cfg.ActionTimerSeconds,
		TimeBankEnabled:      cfg.TimeBankEnabled,
		TimeBankSeconds:      cfg.TimeBankSeconds,
		BombPotAnte:          bp.Ante,
		BombPotDoubleBoard:   bp.Variant == BombPotDoubleBoard,
		BombPotTrigger:       bp.Trigger,
		BombPotInterval:      bp.Interval,
		BombPotPercent:       bp.Percent,
		BombPotVoteThreshold: bp.VoteThreshold,
		Status:               TableWaiting,
	}
}

// Player finds a seated player by ID.
func (t *Table) Player(playerID string) *game.Player {
	for _, p := range t.Seats {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// occupiedSeats returns the seat numbers in ascending order.
func (t *Table) occupiedSeats() []int {
	seats := make([]int, 0, len(t.Seats))
	for seat := range t.Seats {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	return seats
}

// seatsFrom returns the occupied seats in clockwise order starting with
// the first seat strictly after the given one (wrapping around).
func (t *Table) seatsFrom(seat int) []int {
	seats := t.occupiedSeats()
	out := make([]int, 0, len(seats))
	for _, s := range seats {
		if s > seat {
			out = append(out, s)
		}
	}
	for _, s := range seats {
		if s <= seat {
			out = append(out, s)
		}
	}
	return out
}

// eligiblePlayers returns players able to be dealt in, in clockwise seat
// order starting left of the button.
func (t *Table) eligiblePlayers() []*game.Player {
	var out []*game.Player
	for _, seat := range t.seatsFrom(t.ButtonSeat) {
		p := t.Seats[seat]
		if p.Status != game.StatusAway && p.Status != game.StatusSittingOut && p.Chips > 0 {
			out = append(out, p)
		}
	}
	return out
}

// totalChips sums stacks plus all live betting commitments, for chip
// conservation checks.
func (t *Table) totalChips() int {
	total := 0
	for _, p := range t.Seats {
		total += p.Chips
	}
	if h := t.CurrentHand; h != nil {
		total += h.TotalPot()
	}
	return total
}
