package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardroomlabs/holdem/internal/events"
	"github.com/cardroomlabs/holdem/internal/game"
)

// Server accepts WebSocket clients and routes their messages to the
// table orchestrator. HTTP also exposes /health and /metrics.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *log.Logger

	orch        *Orchestrator
	cm          *ConnectionManager
	broadcaster *Broadcaster
	timers      *TimerService
	store       *events.Store
	metrics     *Metrics
	registry    *prometheus.Registry

	httpServer *http.Server

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewServer(
	addr string,
	logger *log.Logger,
	orch *Orchestrator,
	cm *ConnectionManager,
	broadcaster *Broadcaster,
	timers *TimerService,
	store *events.Store,
	metrics *Metrics,
	registry *prometheus.Registry,
) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		orch:        orch,
		cm:          cm,
		broadcaster: broadcaster,
		timers:      timers,
		store:       store,
		metrics:     metrics,
		registry:    registry,
		conns:       make(map[string]*Connection),
	}
}

// Start serves HTTP until Stop is called. Blocks.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("starting WebSocket server", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the listener and closes every client connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "err", err)
		return
	}

	c := NewConnection(conn, s.logger, s)
	s.mu.Lock()
	s.conns[c.ID()] = c
	total := len(s.conns)
	s.mu.Unlock()

	s.broadcaster.Register(c)
	s.metrics.ActiveConnections.Inc()
	s.logger.Info("client connected", "conn", c.ID()[:8], "total", total)
	c.Start()
}

// dropConnection tears down a connection's registrations when its read
// pump exits. A seated player keeps their seat; the action timer keeps
// running, so a disconnected player in the pot still times out and folds.
func (s *Server) dropConnection(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.ID())
	total := len(s.conns)
	s.mu.Unlock()

	s.broadcaster.Unregister(c.ID())
	info, wasBound := s.cm.Remove(c.ID())
	_ = c.Close()
	s.metrics.ActiveConnections.Dec()
	s.logger.Info("client disconnected", "conn", c.ID()[:8], "total", total)

	if wasBound && !info.Spectator() {
		s.broadcaster.BroadcastTable(info.TableID, mustMessage(MessageTypePlayerDisconnected,
			PlayerDisconnectedData{PlayerID: info.PlayerID}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// boundPlayer resolves the connection to its seated player, or sends an
// error back to the client.
func (s *Server) boundPlayer(c *Connection) (ConnInfo, bool) {
	info, ok := s.cm.Lookup(c.ID())
	if !ok || info.Spectator() {
		c.sendError("not_seated", "join a table first")
		return ConnInfo{}, false
	}
	return info, true
}

func (s *Server) handleJoinTable(c *Connection, data JoinTableData) {
	tableID := data.TableID
	if tableID == "" {
		c.sendError("invalid_message", "tableId is required")
		return
	}
	if _, err := s.orch.actor(tableID); err != nil {
		// Allow joining by configured table name too.
		id, ok := s.orch.FindTableByName(tableID)
		if !ok {
			c.sendError("table_not_found", "no table "+tableID)
			return
		}
		tableID = id
	}

	playerID := data.PlayerID
	if playerID == "" {
		c.sendError("invalid_message", "playerId is required")
		return
	}

	err := s.orch.SeatPlayer(tableID, playerID, data.Name, data.Seat, data.BuyIn)
	if err != nil {
		// A returning player rebinds to their existing seat.
		view, verr := s.orch.View(tableID, playerID)
		if verr == nil && seatedIn(view, playerID) {
			s.cm.AddPlayer(c.ID(), tableID, playerID)
			_ = c.Send(mustMessage(MessageTypeGameState, view))
			return
		}
		c.sendError("join_failed", err.Error())
		return
	}

	s.cm.AddPlayer(c.ID(), tableID, playerID)
	view, verr := s.orch.View(tableID, playerID)
	if verr != nil {
		c.sendError("join_failed", verr.Error())
		return
	}
	_ = c.Send(mustMessage(MessageTypeGameState, view))
}

func seatedIn(view *TableView, playerID string) bool {
	if view == nil {
		return false
	}
	for _, p := range view.Players {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (s *Server) handleJoinSpectator(c *Connection, data JoinSpectatorData) {
	tableID := data.TableID
	if _, err := s.orch.actor(tableID); err != nil {
		id, ok := s.orch.FindTableByName(tableID)
		if !ok {
			c.sendError("table_not_found", "no table "+tableID)
			return
		}
		tableID = id
	}

	s.cm.AddSpectator(c.ID(), tableID)
	view, err := s.orch.View(tableID, "")
	if err != nil {
		c.sendError("spectate_failed", err.Error())
		return
	}
	_ = c.Send(mustMessage(MessageTypeGameState, view))
	s.broadcaster.BroadcastTable(tableID, mustMessage(MessageTypeSpectatorJoined, SpectatorJoinedData{
		TableID: tableID,
		Count:   len(s.cm.SpectatorConns(tableID)),
	}))
}

func (s *Server) handleLeaveTable(c *Connection) {
	info, ok := s.cm.Remove(c.ID())
	if !ok {
		c.sendError("not_seated", "not at a table")
		return
	}
	if info.Spectator() {
		s.broadcaster.BroadcastTable(info.TableID, mustMessage(MessageTypeSpectatorLeft, SpectatorLeftData{
			TableID: info.TableID,
			Count:   len(s.cm.SpectatorConns(info.TableID)),
		}))
		return
	}
	if err := s.orch.LeaveTable(info.TableID, info.PlayerID); err != nil {
		c.sendError("leave_failed", err.Error())
	}
}

func (s *Server) handleAction(c *Connection, action game.ActionType, amount int) {
	info, ok := s.boundPlayer(c)
	if !ok {
		return
	}
	if err := s.orch.ExecuteAction(info.TableID, info.PlayerID, action, amount); err != nil {
		c.sendError("invalid_action", err.Error())
		s.logger.Debug("action rejected", "player", info.PlayerID, "action", action, "err", err)
	}
}

func (s *Server) handleGetActions(c *Connection) {
	info, ok := s.boundPlayer(c)
	if !ok {
		return
	}
	opts, err := s.orch.AvailableActions(info.TableID, info.PlayerID)
	if err != nil {
		c.sendError("actions_failed", err.Error())
		return
	}
	data := AvailableActionsData{Actions: make([]ActionOptionData, 0, len(opts))}
	for _, opt := range opts {
		data.Actions = append(data.Actions, ActionOptionData{
			Action: opt.Type.String(),
			Min:    opt.Min,
			Max:    opt.Max,
		})
	}
	_ = c.Send(mustMessage(MessageTypeAvailableActions, data))
}

func (s *Server) handleGetTimerState(c *Connection) {
	info, ok := s.cm.Lookup(c.ID())
	if !ok {
		c.sendError("not_seated", "join a table first")
		return
	}
	_ = c.Send(mustMessage(MessageTypeTimerState, s.timers.State(info.TableID)))
}

func (s *Server) handleRequestMuck(c *Connection) {
	info, ok := s.boundPlayer(c)
	if !ok {
		return
	}
	if err := s.orch.RequestMuck(info.TableID, info.PlayerID); err != nil {
		c.sendError("muck_failed", err.Error())
	}
}

func (s *Server) handleVoteBombPot(c *Connection) {
	info, ok := s.boundPlayer(c)
	if !ok {
		return
	}
	if err := s.orch.VoteBombPot(info.TableID, info.PlayerID); err != nil {
		c.sendError("vote_failed", err.Error())
	}
}

func (s *Server) handlePauseTable(c *Connection) {
	info, ok := s.boundPlayer(c)
	if !ok {
		return
	}
	if err := s.orch.PauseTable(info.TableID, info.PlayerID); err != nil {
		c.sendError("pause_failed", err.Error())
	}
}

func (s *Server) handleResumeTable(c *Connection) {
	info, ok := s.boundPlayer(c)
	if !ok {
		return
	}
	if err := s.orch.ResumeTable(info.TableID, info.PlayerID); err != nil {
		c.sendError("resume_failed", err.Error())
	}
}

func (s *Server) handleGetHandEvents(c *Connection, data GetHandEventsData) {
	var (
		evs []events.Event
		err error
	)
	if data.FromSequence > 0 {
		evs, err = s.store.EventsFrom(data.HandID, data.FromSequence)
	} else {
		evs, err = s.store.Events(data.HandID)
	}
	if err != nil {
		c.sendError("events_failed", err.Error())
		return
	}
	_ = c.Send(mustMessage(MessageTypeHandEvents, HandEventsData{
		HandID: data.HandID,
		Events: evs,
	}))
}

func (s *Server) handleGetTableHistory(c *Connection, data GetTableHistoryData) {
	info, ok := s.cm.Lookup(c.ID())
	if !ok {
		c.sendError("not_seated", "join a table first")
		return
	}
	limit := data.Limit
	if limit <= 0 {
		limit = 20
	}
	hands, err := s.store.TableHistory(info.TableID, limit)
	if err != nil {
		c.sendError("history_failed", err.Error())
		return
	}
	_ = c.Send(mustMessage(MessageTypeTableHistory, TableHistoryData{
		TableID: info.TableID,
		Hands:   hands,
	}))
}
