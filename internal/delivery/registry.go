package delivery

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// Recipient accepts updates for one live connection.
type Recipient interface {
	Push(update.Update) error
	IsClosed() bool
}

// Registry maps character identifiers to their live recipients.
// All methods are safe for concurrent use.
type Registry struct {
	logger *zap.Logger
	mu     sync.RWMutex
	live   map[entity.Identifier]Recipient
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		live:   make(map[entity.Identifier]Recipient),
	}
}

// Register binds id to r, replacing any previous recipient. A replaced
// recipient is left to its owner.
func (reg *Registry) Register(id entity.Identifier, r Recipient) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.live[id]; ok {
		reg.logger.Debug("replacing recipient", zap.String("character", id.String()))
	}
	reg.live[id] = r
}

// Unregister removes whatever recipient is bound to id.
func (reg *Registry) Unregister(id entity.Identifier) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.live, id)
}

// UnregisterIf removes the binding of id only while it still points at r,
// so a stale connection cannot evict its replacement.
//
// Postcondition: Returns true when the binding was removed.
func (reg *Registry) UnregisterIf(id entity.Identifier, r Recipient) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.live[id]; ok && cur == r {
		delete(reg.live, id)
		return true
	}
	return false
}

// Deliver hands each update to the recipient it is addressed to.
//
// Updates for unknown or closed recipients are dropped silently, as are
// updates a full recipient cannot take. Deliver never blocks on I/O.
func (reg *Registry) Deliver(updates []update.Update) {
	if len(updates) == 0 {
		return
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, u := range updates {
		r, ok := reg.live[u.To]
		if !ok || r.IsClosed() {
			continue
		}
		if err := r.Push(u); err != nil {
			reg.logger.Debug("dropping update",
				zap.String("character", u.To.String()),
				zap.String("type", string(u.Payload.Type)),
				zap.Error(err),
			)
		}
	}
}

// Count returns the number of registered recipients.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.live)
}
