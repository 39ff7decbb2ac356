package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cardroomlabs/holdem/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection wraps one WebSocket client. Outbound messages go through a
// buffered send channel drained by the write pump; a full buffer closes
// the connection rather than blocking the server.
type Connection struct {
	id     string
	conn   *websocket.Conn
	send   chan *Message
	logger *log.Logger
	server *Server

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger.WithPrefix("conn").With("conn", id[:8]),
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the connection's identifier.
func (c *Connection) ID() string {
	return c.id
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send queues a message for the client. Never blocks; a client that
// cannot keep up gets disconnected.
func (c *Connection) Send(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Send channel closed during shutdown.
			c.logger.Debug("send on closed connection", "recovered", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer c.server.dropConnection(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "err", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("write failed", "err", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received", "type", msg.Type)

	switch msg.Type {
	case MessageTypeJoinTable:
		var data JoinTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "bad join payload")
			return
		}
		c.server.handleJoinTable(c, data)

	case MessageTypeJoinSpectator:
		var data JoinSpectatorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "bad spectate payload")
			return
		}
		c.server.handleJoinSpectator(c, data)

	case MessageTypeLeaveTable:
		c.server.handleLeaveTable(c)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "bad action payload")
			return
		}
		action, ok := game.ParseActionType(data.Action)
		if !ok {
			c.sendError("invalid_action", "unknown action "+data.Action)
			return
		}
		c.server.handleAction(c, action, data.Amount)

	case MessageTypeGetActions:
		c.server.handleGetActions(c)

	case MessageTypeGetTimerState:
		c.server.handleGetTimerState(c)

	case MessageTypeRequestMuck:
		c.server.handleRequestMuck(c)

	case MessageTypeVoteBombPot:
		c.server.handleVoteBombPot(c)

	case MessageTypePauseTable:
		c.server.handlePauseTable(c)

	case MessageTypeResumeTable:
		c.server.handleResumeTable(c)

	case MessageTypeGetHandEvents:
		var data GetHandEventsData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "bad events payload")
			return
		}
		c.server.handleGetHandEvents(c, data)

	case MessageTypeGetTableHistory:
		var data GetTableHistoryData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError("invalid_message", "bad history payload")
				return
			}
		}
		c.server.handleGetTableHistory(c, data)

	default:
		c.sendError("unknown_message", "unsupported message type "+string(msg.Type))
	}
}

func (c *Connection) sendError(code, message string) {
	_ = c.Send(mustMessage(MessageTypeError, ErrorData{Code: code, Message: message}))
}
