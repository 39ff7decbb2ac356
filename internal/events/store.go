package events

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSequenceConflict means an expected-sequence append lost a race:
	// the stream already moved past the expected position.
	ErrSequenceConflict = errors.New("event sequence conflict")
	ErrHandNotFound     = errors.New("hand not found")
	ErrHandNotCompleted = errors.New("hand not completed")
)

// Store keeps every hand's event stream in memory. Streams are append-only
// and sequences are dense per hand, starting at 1. Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	byHand       map[string][]Event
	handsByTable map[string][]string
}

// NewStore builds an empty store. now may be nil for the wall clock.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:          now,
		byHand:       make(map[string][]Event),
		handsByTable: make(map[string][]string),
	}
}

// Append assigns the next sequence number in the hand's stream and stores
// the event. The first append for a hand creates the stream.
func (s *Store) Append(tableID, handID string, typ Type, payload any) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(tableID, handID, typ, payload)
}

// AppendExpect appends only if the stream's last sequence equals expected.
// Callers that precompute a sequence use this to detect interleaved writes
// instead of silently renumbering.
func (s *Store) AppendExpect(tableID, handID string, expected int, typ Type, payload any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last := len(s.byHand[handID]); last != expected {
		return Event{}, fmt.Errorf("%w: hand %s at %d, expected %d", ErrSequenceConflict, handID, last, expected)
	}
	return s.append(tableID, handID, typ, payload), nil
}

func (s *Store) append(tableID, handID string, typ Type, payload any) Event {
	stream := s.byHand[handID]
	if len(stream) == 0 {
		s.handsByTable[tableID] = append(s.handsByTable[tableID], handID)
	}
	ev := Event{
		ID:       uuid.NewString(),
		Type:     typ,
		TableID:  tableID,
		HandID:   handID,
		Sequence: len(stream) + 1,
		At:       s.now(),
		Payload:  payload,
	}
	s.byHand[handID] = append(stream, ev)
	return ev
}

// BatchEntry is one event in an atomic batch append.
type BatchEntry struct {
	Type    Type
	Payload any
}

// AppendBatch appends the entries under one lock acquisition, so the batch
// occupies a contiguous sequence range with no interleaved writers.
func (s *Store) AppendBatch(tableID, handID string, entries []BatchEntry) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.append(tableID, handID, e.Type, e.Payload))
	}
	return out
}

// Events returns a copy of the hand's full stream in sequence order.
func (s *Store) Events(handID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.byHand[handID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandNotFound, handID)
	}
	out := make([]Event, len(stream))
	copy(out, stream)
	return out, nil
}

// EventsFrom returns the hand's events with sequence >= from. Used for
// replay after a reconnect.
func (s *Store) EventsFrom(handID string, from int) ([]Event, error) {
	stream, err := s.Events(handID)
	if err != nil {
		return nil, err
	}
	if from <= 1 {
		return stream, nil
	}
	if from > len(stream) {
		return nil, nil
	}
	return stream[from-1:], nil
}

// LastSequence returns the highest sequence in the hand's stream, 0 when
// the hand is unknown.
func (s *Store) LastSequence(handID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHand[handID])
}

// HandSummary is the condensed outcome of one hand, derived from its
// stream.
type HandSummary struct {
	HandID         string
	TableID        string
	HandNumber     int
	StartedAt      time.Time
	CompletedAt    time.Time
	PlayerCount    int
	TotalPot       int
	FinalPhase     string
	DurationMillis int64
	Winnings       map[string]int
	NetResults     map[string]int
	WinnerIDs      []string
	WentToShowdown bool
	BombPot        bool
	EventCount     int
}

// Summary folds a hand's stream into a HandSummary. A hand without a
// HandCompleted event has no summary yet; ErrHandNotCompleted is returned.
func (s *Store) Summary(handID string) (HandSummary, error) {
	stream, err := s.Events(handID)
	if err != nil {
		return HandSummary{}, err
	}

	sum := HandSummary{HandID: handID, EventCount: len(stream)}
	completed := false
	for _, ev := range stream {
		sum.TableID = ev.TableID
		switch p := ev.Payload.(type) {
		case HandStarted:
			sum.HandNumber = p.HandNumber
			sum.BombPot = p.BombPot
			sum.PlayerCount = len(p.PlayerIDs)
			sum.StartedAt = ev.At
		case HandCompleted:
			completed = true
			sum.Winnings = p.Winnings
			sum.NetResults = p.NetResults
			sum.TotalPot = p.TotalPot
			sum.FinalPhase = p.FinalPhase
			sum.DurationMillis = p.DurationMillis
			sum.WentToShowdown = p.WentToShowdown
			sum.CompletedAt = ev.At
			for id, amount := range p.Winnings {
				if amount > 0 {
					sum.WinnerIDs = append(sum.WinnerIDs, id)
				}
			}
			sort.Strings(sum.WinnerIDs)
		}
	}
	if !completed {
		return HandSummary{}, fmt.Errorf("%w: %s", ErrHandNotCompleted, handID)
	}
	return sum, nil
}

// TableHistory returns summaries for the table's completed hands, newest
// first, up to limit (0 means all). An in-progress hand is not history and
// is skipped.
func (s *Store) TableHistory(tableID string, limit int) ([]HandSummary, error) {
	s.mu.RLock()
	handIDs := make([]string, len(s.handsByTable[tableID]))
	copy(handIDs, s.handsByTable[tableID])
	s.mu.RUnlock()

	out := make([]HandSummary, 0, len(handIDs))
	for i := len(handIDs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		sum, err := s.Summary(handIDs[i])
		if errors.Is(err, ErrHandNotCompleted) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
