package apiclient

import "sync"

// Credentials holds the bearer token attached to outgoing requests.
//
// Every request reads the token while it is being built, so swapping the
// credential only affects requests that have not been dispatched yet.
type Credentials struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// Set replaces the active credential. Any string is accepted.
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.set = true
	c.mu.Unlock()
}

// Get returns the active credential and whether one is set.
func (c *Credentials) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.set
}

// Clear drops the active credential.
func (c *Credentials) Clear() {
	c.mu.Lock()
	c.token = ""
	c.set = false
	c.mu.Unlock()
}

func (c *Credentials) authorization() string {
	token, ok := c.Get()
	if !ok || token == "" {
		return ""
	}
	return "Bearer " + token
}
