package internal

import (
	"sort"
	"sync"
)

// member is a registered connection. Visits hold mu for reading, so Remove
// can wait for in-flight visits by taking it for writing.
type member struct {
	conn    *Conn
	seq     uint64
	mu      sync.RWMutex
	removed bool
}

// Registry is the set of connections that receive broadcasts.
type Registry struct {
	mu      sync.RWMutex
	members map[*Conn]*member
	seq     uint64
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[*Conn]*member),
	}
}

// Add registers c. It returns false if c is already a member.
func (r *Registry) Add(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[c]; exists {
		return false
	}
	r.seq++
	r.members[c] = &member{conn: c, seq: r.seq}
	return true
}

// Remove unregisters c and returns false if it was not a member.
// Once Remove returns, no ForEachExcept callback is running for c and none will start.
func (r *Registry) Remove(c *Conn) bool {
	r.mu.Lock()
	m, exists := r.members[c]
	if exists {
		delete(r.members, c)
	}
	r.mu.Unlock()

	if !exists {
		return false
	}

	m.mu.Lock()
	m.removed = true
	m.mu.Unlock()
	return true
}

// Contains reports whether c is a member.
func (r *Registry) Contains(c *Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.members[c]
	return exists
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ForEachExcept calls fn for every member other than excluded, which may be nil.
// fn runs outside the registry lock and must not remove the member it is visiting.
func (r *Registry) ForEachExcept(excluded *Conn, fn func(c *Conn)) {
	for _, m := range r.snapshot() {
		if m.conn == excluded {
			continue
		}
		m.mu.RLock()
		if !m.removed {
			fn(m.conn)
		}
		m.mu.RUnlock()
	}
}

// Names returns the display names of all members in join order.
func (r *Registry) Names() []string {
	members := r.snapshot()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.conn.DisplayName())
	}
	return names
}

func (r *Registry) snapshot() []*member {
	r.mu.RLock()
	members := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].seq < members[j].seq
	})
	return members
}
