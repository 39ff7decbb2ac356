package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// latencyTarget is the end-to-end budget from enqueue to delivery.
const latencyTarget = 100 * time.Millisecond

// ConnSender is the transport side of a connection as seen by the
// broadcaster.
type ConnSender interface {
	ID() string
	Send(msg *Message) error
}

type broadcastJob struct {
	enqueuedAt time.Time
	run        func()
}

// Broadcaster fans sanitized state and targeted messages out to the
// connections of a table. Each table gets its own FIFO queue drained by one
// goroutine, so clients observe updates in the order the table applied
// them, and the table actor never blocks on a slow socket.
type Broadcaster struct {
	cm      *ConnectionManager
	logger  *log.Logger
	metrics *Metrics

	mu      sync.Mutex
	senders map[string]ConnSender
	queues  map[string]chan broadcastJob
	closed  bool
	wg      sync.WaitGroup
}

func NewBroadcaster(cm *ConnectionManager, logger *log.Logger, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		cm:      cm,
		logger:  logger.WithPrefix("broadcast"),
		metrics: metrics,
		senders: make(map[string]ConnSender),
		queues:  make(map[string]chan broadcastJob),
	}
}

// Register makes a connection addressable for fan-out.
func (b *Broadcaster) Register(conn ConnSender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.senders[conn.ID()] = conn
}

// Unregister drops a connection from fan-out.
func (b *Broadcaster) Unregister(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.senders, connID)
}

// Close drains and stops every table queue.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// enqueue puts a job on the table's FIFO queue, creating the drain
// goroutine on first use.
func (b *Broadcaster) enqueue(tableID string, run func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	q, ok := b.queues[tableID]
	if !ok {
		q = make(chan broadcastJob, 512)
		b.queues[tableID] = q
		b.wg.Add(1)
		go b.drain(tableID, q)
	}
	b.mu.Unlock()

	select {
	case q <- broadcastJob{enqueuedAt: time.Now(), run: run}:
	default:
		b.metrics.BroadcastDrops.Inc()
		b.logger.Warn("broadcast queue full, dropping", "table", tableID)
	}
}

func (b *Broadcaster) drain(tableID string, q chan broadcastJob) {
	defer b.wg.Done()
	for job := range q {
		job.run()
		elapsed := time.Since(job.enqueuedAt)
		b.metrics.BroadcastLatency.Observe(elapsed.Seconds())
		if elapsed > latencyTarget {
			b.logger.Warn("broadcast exceeded latency target",
				"table", tableID, "elapsed", elapsed)
		}
	}
}

func (b *Broadcaster) sender(connID string) (ConnSender, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.senders[connID]
	return s, ok
}

func (b *Broadcaster) sendTo(connID string, msg *Message) {
	conn, ok := b.sender(connID)
	if !ok {
		return
	}
	if err := conn.Send(msg); err != nil {
		// The failed connection gets cleaned up by its own pump; keep
		// fanning out to everyone else.
		b.metrics.BroadcastDrops.Inc()
		b.logger.Warn("send failed", "conn", connID, "type", msg.Type, "err", err)
	}
}

func stamp(msg *Message) *Message {
	out := *msg
	out.At = time.Now()
	return &out
}

// BroadcastTable sends one message to every connection of the table,
// players and spectators alike.
func (b *Broadcaster) BroadcastTable(tableID string, msg *Message) {
	b.enqueue(tableID, func() {
		stamped := stamp(msg)
		for connID := range b.cm.PlayerConns(tableID) {
			b.sendTo(connID, stamped)
		}
		for _, connID := range b.cm.SpectatorConns(tableID) {
			b.sendTo(connID, stamped)
		}
	})
}

// BroadcastPersonalized sends a per-viewer message to each seated player
// (built by personalize, keyed by player ID) and a shared spectator
// message to every spectator. A nil return from personalize skips that
// player; a nil spectatorMsg skips spectators.
func (b *Broadcaster) BroadcastPersonalized(tableID string, personalize func(playerID string) *Message, spectatorMsg *Message) {
	b.enqueue(tableID, func() {
		for connID, playerID := range b.cm.PlayerConns(tableID) {
			if msg := personalize(playerID); msg != nil {
				b.sendTo(connID, stamp(msg))
			}
		}
		if spectatorMsg == nil {
			return
		}
		stamped := stamp(spectatorMsg)
		for _, connID := range b.cm.SpectatorConns(tableID) {
			b.sendTo(connID, stamped)
		}
	})
}

// SendToPlayer delivers a message to one seated player, if connected.
func (b *Broadcaster) SendToPlayer(tableID, playerID string, msg *Message) {
	b.enqueue(tableID, func() {
		connID, ok := b.cm.ConnForPlayer(tableID, playerID)
		if !ok {
			return
		}
		b.sendTo(connID, stamp(msg))
	})
}
