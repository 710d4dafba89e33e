package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a connected WebSocket client
type Client struct {
	ID            string
	Conn          *websocket.Conn
	Authenticated bool
	Challenge     string
	ConnectedAt   time.Time
	LastActivity  time.Time
	IPAddress     string
	AuthAttempts  int
	RateLimiter   *ClientRateLimiter
	State         ClientState

	// gorilla/websocket allows one concurrent writer per connection
	writeMu sync.Mutex
	subMu   sync.RWMutex
	agents  map[string]bool
}

// WriteJSON serializes writes to the connection.
func (c *Client) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// WriteMessage serializes writes to the connection.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Subscribe limits the events the client receives to the given agents. With
// no subscriptions the client receives events of every agent.
func (c *Client) Subscribe(agentIDs ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.agents == nil {
		c.agents = make(map[string]bool)
	}
	for _, id := range agentIDs {
		c.agents[id] = true
	}
}

// Unsubscribe removes agent subscriptions.
func (c *Client) Unsubscribe(agentIDs ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, id := range agentIDs {
		delete(c.agents, id)
	}
}

// Wants reports whether an event of agentID should reach the client.
func (c *Client) Wants(agentID string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if agentID == "" || len(c.agents) == 0 {
		return true
	}
	return c.agents[agentID]
}

func (c *Client) subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.agents))
	for id := range c.agents {
		out = append(out, id)
	}
	return out
}
