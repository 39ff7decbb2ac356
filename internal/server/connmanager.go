package server

import (
	"sync"
)

// ConnInfo is what the manager knows about one connection.
type ConnInfo struct {
	TableID string
	// PlayerID is empty for spectators.
	PlayerID string
}

// Spectator reports whether the connection watches without a seat.
func (ci ConnInfo) Spectator() bool {
	return ci.PlayerID == ""
}

// ConnectionManager maps connections to tables and players. Safe for
// concurrent use; all lookups are O(1) on the table or connection key.
type ConnectionManager struct {
	mu sync.RWMutex

	conns map[string]ConnInfo
	// players is tableID -> connID -> playerID.
	players map[string]map[string]string
	// spectators is tableID -> set of connIDs.
	spectators map[string]map[string]bool
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns:      make(map[string]ConnInfo),
		players:    make(map[string]map[string]string),
		spectators: make(map[string]map[string]bool),
	}
}

// AddPlayer registers a connection as a seated player. A connection can be
// bound to at most one table; rebinding replaces the previous entry.
func (cm *ConnectionManager) AddPlayer(connID, tableID, playerID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.removeLocked(connID)
	cm.conns[connID] = ConnInfo{TableID: tableID, PlayerID: playerID}
	if cm.players[tableID] == nil {
		cm.players[tableID] = make(map[string]string)
	}
	cm.players[tableID][connID] = playerID
}

// AddSpectator registers a connection as a table spectator.
func (cm *ConnectionManager) AddSpectator(connID, tableID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.removeLocked(connID)
	cm.conns[connID] = ConnInfo{TableID: tableID}
	if cm.spectators[tableID] == nil {
		cm.spectators[tableID] = make(map[string]bool)
	}
	cm.spectators[tableID][connID] = true
}

// Remove unbinds a connection and returns what it was, so the caller can
// broadcast the right disconnect notice. ok is false if it was unknown.
func (cm *ConnectionManager) Remove(connID string) (ConnInfo, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.removeLocked(connID)
}

func (cm *ConnectionManager) removeLocked(connID string) (ConnInfo, bool) {
	info, ok := cm.conns[connID]
	if !ok {
		return ConnInfo{}, false
	}
	delete(cm.conns, connID)
	if info.Spectator() {
		delete(cm.spectators[info.TableID], connID)
	} else {
		delete(cm.players[info.TableID], connID)
	}
	return info, true
}

// Lookup returns the binding for a connection.
func (cm *ConnectionManager) Lookup(connID string) (ConnInfo, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	info, ok := cm.conns[connID]
	return info, ok
}

// PlayerConns returns connID -> playerID for everyone seated at the table.
func (cm *ConnectionManager) PlayerConns(tableID string) map[string]string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make(map[string]string, len(cm.players[tableID]))
	for connID, playerID := range cm.players[tableID] {
		out[connID] = playerID
	}
	return out
}

// SpectatorConns returns the spectator connection IDs for the table.
func (cm *ConnectionManager) SpectatorConns(tableID string) []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]string, 0, len(cm.spectators[tableID]))
	for connID := range cm.spectators[tableID] {
		out = append(out, connID)
	}
	return out
}

// ConnForPlayer finds the connection currently bound to a player at the
// table, for targeted sends.
func (cm *ConnectionManager) ConnForPlayer(tableID, playerID string) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for connID, pid := range cm.players[tableID] {
		if pid == playerID {
			return connID, true
		}
	}
	return "", false
}
