// Package presence tracks which users have a live connection. A user has at
// most one registered connection; registering another evicts the first.
package presence

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Conn is a live connection as seen by the registry.
type Conn interface {
	// Close signals the connection to shut down and must not block.
	Close()
}

const stripes = 64

type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Conn

	// syncLocks serialise online-flag writes per user.
	syncLocks [stripes]sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int64]Conn),
	}
}

// Register maps userID to conn. A different connection already registered
// for userID is closed first. Once Register returns, Lookup(userID) yields
// conn.
func (r *Registry) Register(userID int64, conn Conn) {
	r.mu.Lock()
	prev, ok := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if ok && prev != conn {
		logrus.WithFields(logrus.Fields{
			"function": "Register",
			"user_id":  userID,
		}).Info("Evicting previous connection")
		prev.Close()
	}
}

func (r *Registry) Lookup(userID int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Unregister removes the mapping only when conn is the registered
// connection, so a late close of an evicted connection cannot drop its
// replacement. It reports whether anything was removed.
func (r *Registry) Unregister(userID int64, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Sync runs fn with the user's current registration state while holding a
// per-user lock. Callers persist the online flag from inside fn; because
// the state is read under the same lock that orders the writes, the last
// write always matches the registry.
func (r *Registry) Sync(userID int64, fn func(online bool) error) error {
	l := &r.syncLocks[uint64(userID)%stripes]
	l.Lock()
	defer l.Unlock()

	_, online := r.Lookup(userID)
	return fn(online)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Users returns the registered user ids in ascending order.
func (r *Registry) Users() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
