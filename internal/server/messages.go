package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a WebSocket message
type MessageType string

const (
	// Client -> Server
	MessageTypeJoinTable       MessageType = "join_table"
	MessageTypeJoinSpectator   MessageType = "join_spectator"
	MessageTypeLeaveTable      MessageType = "leave_table"
	MessageTypeAction          MessageType = "action"
	MessageTypeGetActions      MessageType = "get_actions"
	MessageTypeGetTimerState   MessageType = "get_timer_state"
	MessageTypeRequestMuck     MessageType = "request_muck"
	MessageTypeVoteBombPot     MessageType = "vote_bomb_pot"
	MessageTypePauseTable      MessageType = "pause_table"
	MessageTypeResumeTable     MessageType = "resume_table"
	MessageTypeGetHandEvents   MessageType = "get_hand_events"
	MessageTypeGetTableHistory MessageType = "get_table_history"

	// Server -> Client
	MessageTypePlayerJoined       MessageType = "player_joined"
	MessageTypePlayerLeft         MessageType = "player_left"
	MessageTypePlayerDisconnected MessageType = "player_disconnected"
	MessageTypeSpectatorJoined    MessageType = "spectator_joined"
	MessageTypeSpectatorLeft      MessageType = "spectator_left"
	MessageTypeGameState          MessageType = "game_state"
	MessageTypeHandStarted        MessageType = "hand_started"
	MessageTypeActionExecuted     MessageType = "action_executed"
	MessageTypeActionRequired     MessageType = "action_required"
	MessageTypeHandCompleted      MessageType = "hand_completed"
	MessageTypeAvailableActions   MessageType = "available_actions"
	MessageTypeHandEvents         MessageType = "hand_events"
	MessageTypeTableHistory       MessageType = "table_history"
	MessageTypeTimerStarted       MessageType = "timer_started"
	MessageTypeTimerTick          MessageType = "timer_tick"
	MessageTypeTimerWarning       MessageType = "timer_warning"
	MessageTypeTimeBankActivated  MessageType = "time_bank_activated"
	MessageTypeTimerCancelled     MessageType = "timer_cancelled"
	MessageTypeTimerExpired       MessageType = "timer_expired"
	MessageTypeTimerState         MessageType = "timer_state"
	MessageTypeBombPotVote        MessageType = "bomb_pot_vote"
	MessageTypeTablePaused        MessageType = "table_paused"
	MessageTypeTableResumed       MessageType = "table_resumed"
	MessageTypeError              MessageType = "error"
)

// Message is the envelope for all WebSocket traffic
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	// At is the server send timestamp, set on server -> client messages.
	At time.Time `json:"at,omitempty"`
}

// NewMessage creates a message with the payload marshalled into Data
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{Type: msgType, Data: data}, nil
}

// mustMessage is for payloads built entirely from our own types, where a
// marshal failure is a programming bug.
func mustMessage(msgType MessageType, payload any) *Message {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Client -> Server payloads

type JoinTableData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Seat     int    `json:"seat"`
	BuyIn    int    `json:"buyIn"`
}

type JoinSpectatorData struct {
	TableID string `json:"tableId"`
}

type ActionData struct {
	Action string `json:"action"`
	// Amount is the raise-to total; ignored for other actions.
	Amount int `json:"amount,omitempty"`
}

type GetHandEventsData struct {
	HandID       string `json:"handId"`
	FromSequence int    `json:"fromSequence,omitempty"`
}

type GetTableHistoryData struct {
	Limit int `json:"limit,omitempty"`
}

// Server -> Client payloads

type PlayerJoinedData struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Seat     int    `json:"seat"`
}

type PlayerLeftData struct {
	PlayerID string `json:"playerId"`
}

type PlayerDisconnectedData struct {
	PlayerID string `json:"playerId"`
}

type SpectatorJoinedData struct {
	TableID string `json:"tableId"`
	Count   int    `json:"count"`
}

type SpectatorLeftData struct {
	TableID string `json:"tableId"`
	Count   int    `json:"count"`
}

type HandEventsData struct {
	HandID string `json:"handId"`
	Events any    `json:"events"`
}

type TableHistoryData struct {
	TableID string `json:"tableId"`
	Hands   any    `json:"hands"`
}

type HandStartedData struct {
	State *TableView `json:"state"`
	// YourHoleCards is set only on the copy sent to a seated player.
	YourHoleCards []string `json:"yourHoleCards,omitempty"`
	BombPot       bool     `json:"bombPot,omitempty"`
	DoubleBoard   bool     `json:"doubleBoard,omitempty"`
}

type ActionExecutedData struct {
	PlayerID             string `json:"playerId"`
	Action               string `json:"action"`
	Amount               int    `json:"amount"`
	NextPlayerID         string `json:"nextPlayerId,omitempty"`
	BettingRoundComplete bool   `json:"bettingRoundComplete"`
	HandComplete         bool   `json:"handComplete"`
}

type ActionRequiredData struct {
	PlayerID       string `json:"playerId"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type WinnerData struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	Cards    []string `json:"cards,omitempty"`
	HandDesc string   `json:"handDesc,omitempty"`
}

type HandCompletedData struct {
	TableID        string       `json:"tableId"`
	HandID         string       `json:"handId"`
	HandNumber     int          `json:"handNumber"`
	Winners        []WinnerData `json:"winners"`
	FinalPot       int          `json:"finalPot"`
	WentToShowdown bool         `json:"wentToShowdown"`
}

type AvailableActionsData struct {
	Actions []ActionOptionData `json:"actions"`
}

type ActionOptionData struct {
	Action string `json:"action"`
	Min    int    `json:"min,omitempty"`
	Max    int    `json:"max,omitempty"`
}

type TimerStartedData struct {
	PlayerID          string `json:"playerId"`
	TotalSeconds      int    `json:"totalSeconds"`
	TimeBankAvailable int    `json:"timeBankAvailable"`
}

type TimerTickData struct {
	PlayerID         string `json:"playerId"`
	RemainingSeconds int    `json:"remainingSeconds"`
	IsTimeBankActive bool   `json:"isTimeBankActive"`
	TimeBankRemaining int   `json:"timeBankRemaining"`
}

type TimerWarningData struct {
	PlayerID         string `json:"playerId"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type TimeBankActivatedData struct {
	PlayerID          string `json:"playerId"`
	TimeBankSeconds   int    `json:"timeBankSeconds"`
	TimeBankRemaining int    `json:"timeBankRemaining"`
}

type TimerCancelledData struct {
	PlayerID string `json:"playerId"`
}

type TimerExpiredData struct {
	PlayerID string `json:"playerId"`
}

type TimerStateData struct {
	Active            bool   `json:"active"`
	PlayerID          string `json:"playerId,omitempty"`
	RemainingSeconds  int    `json:"remainingSeconds,omitempty"`
	IsTimeBankActive  bool   `json:"isTimeBankActive,omitempty"`
	TimeBankRemaining int    `json:"timeBankRemaining,omitempty"`
	Paused            bool   `json:"paused,omitempty"`
}

type BombPotVoteData struct {
	PlayerID string `json:"playerId"`
	Votes    int    `json:"votes"`
	Needed   int    `json:"needed"`
	Passed   bool   `json:"passed"`
}

type TablePausedData struct {
	TableID    string `json:"tableId"`
	ByPlayerID string `json:"byPlayerId,omitempty"`
}

type TableResumedData struct {
	TableID    string `json:"tableId"`
	ByPlayerID string `json:"byPlayerId,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
