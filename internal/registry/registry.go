// Package registry tracks the connections a server is currently servicing.
//
// The registry is an ordered list of entries guarded by a single mutex.
// Entries are identified by the value inserted, not by peer address: two
// live connections may share an address (a TCP and a WebSocket peer
// reusing one local port). The accept path inserts an entry before the
// connection's worker starts; the worker removes it once it has observed
// closure or an error. The registry never owns a connection: it only keeps
// a reference so shutdown can notify or interrupt every live peer.
package registry

import (
	"sync"
	"time"

	"github.com/muurk/msgsrv/internal/logging"
	"go.uber.org/zap"
)

// Entry is a live connection as seen by the registry.
type Entry interface {
	// RemoteAddr returns the peer address. It is used for logging only.
	RemoteAddr() string

	// WriteMessage writes one encoded message and flushes it. It must be
	// safe to call concurrently with the connection's own writes.
	WriteMessage(payload []byte) error

	// SetReadDeadline bounds a blocked read on the connection.
	SetReadDeadline(t time.Time) error
}

// Registry is the shared set of live connections.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Insert appends e.
func (r *Registry) Insert(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Remove drops e and reports whether it was registered. Other entries with
// the same address are left alone.
func (r *Registry) Remove(e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, entry := range r.entries {
		if entry != e {
			continue
		}
		last := len(r.entries) - 1
		copy(r.entries[i:], r.entries[i+1:])
		r.entries[last] = nil
		r.entries = r.entries[:last]
		return true
	}
	return false
}

// Broadcast writes payload to every entry under the lock. A failed write is
// logged and does not stop delivery to the remaining entries.
func (r *Registry) Broadcast(payload []byte) (sent, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if err := e.WriteMessage(payload); err != nil {
			logging.Warn("Failed to notify client",
				zap.String("remote_addr", e.RemoteAddr()),
				zap.Error(err),
			)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

// Interrupt expires the read deadline of every entry so that workers blocked
// in a read return with a timeout error.
func (r *Registry) Interrupt() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	interrupted := 0
	for _, e := range r.entries {
		if err := e.SetReadDeadline(now); err != nil {
			logging.Debug("Failed to interrupt connection",
				zap.String("remote_addr", e.RemoteAddr()),
				zap.Error(err),
			)
			continue
		}
		interrupted++
	}
	return interrupted
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Addrs returns the registered addresses in insertion order.
func (r *Registry) Addrs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make([]string, len(r.entries))
	for i, e := range r.entries {
		addrs[i] = e.RemoteAddr()
	}
	return addrs
}
