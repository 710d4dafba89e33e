package gateway

import (
	"sort"
	"sync"
	"time"
)

// idleAfter marks a client idle in ClientInfo once it has been silent this long.
const idleAfter = 5 * time.Minute

// ClientRegistry tracks connected websocket clients. Auth fields of a Client
// are written only through update so that Subscribers sees a consistent view.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

// Add registers client under its ID.
func (r *ClientRegistry) Add(client *Client) {
	r.update(func() { r.clients[client.ID] = client })
}

// Remove forgets the client with clientID.
func (r *ClientRegistry) Remove(clientID string) {
	r.update(func() { delete(r.clients, clientID) })
}

// Get returns the client with clientID.
func (r *ClientRegistry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// All returns every client, oldest connection first.
func (r *ClientRegistry) All() []*Client {
	return r.filter(func(*Client) bool { return true })
}

// Subscribers returns the authenticated clients interested in agentID,
// oldest connection first.
func (r *ClientRegistry) Subscribers(agentID string) []*Client {
	return r.filter(func(c *Client) bool { return c.Authenticated && c.Wants(agentID) })
}

func (r *ClientRegistry) filter(keep func(*Client) bool) []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Touch records activity from a client.
func (r *ClientRegistry) Touch(clientID string) {
	r.update(func() {
		if c, ok := r.clients[clientID]; ok {
			c.LastActivity = time.Now()
		}
	})
}

// Infos describes the connected clients, oldest connection first.
func (r *ClientRegistry) Infos() []ClientInfo {
	clients := r.All()
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		agents := c.subscriptions()
		sort.Strings(agents)
		infos = append(infos, ClientInfo{
			ID:            c.ID,
			Authenticated: c.Authenticated,
			ConnectedAt:   c.ConnectedAt,
			LastActivity:  c.LastActivity,
			IPAddress:     c.IPAddress,
			Idle:          now.Sub(c.LastActivity) > idleAfter,
			Agents:        agents,
		})
	}
	return infos
}

// update runs fn under the registry write lock.
func (r *ClientRegistry) update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}
