package registry

import (
	"sync"

	"github.com/myselfprincee/vido-backend/pkg/types"
)

// Registry owns the per-connection identity records. It is pure state:
// it never emits network messages, and every other component references
// connections by id only.
type Registry struct {
	mu         sync.RWMutex
	identities map[string]*types.Identity // connectionID -> identity
}

// NewRegistry creates an empty identity registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[string]*types.Identity),
	}
}

// Register creates an empty identity record for a freshly established
// connection. Idempotent; a second register for the same id keeps the
// existing record.
func (r *Registry) Register(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[connectionID]; !exists {
		r.identities[connectionID] = &types.Identity{}
	}
}

// SetIdentity populates or replaces a connection's identity. Upserts so a
// connection removed by a kick can join another room afterward.
func (r *Registry) SetIdentity(connectionID string, identity types.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identities[connectionID] = &identity
}

// SetModerator flips the derived moderator flag on an existing record.
// No-op for unknown ids.
func (r *Registry) SetModerator(connectionID string, moderator bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if identity, exists := r.identities[connectionID]; exists {
		identity.Moderator = moderator
	}
}

// Get returns a copy of the identity record, or ok=false for an unknown id.
// Never fabricates a default.
func (r *Registry) Get(connectionID string) (types.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.identities[connectionID]
	if !exists {
		return types.Identity{}, false
	}
	return *identity, true
}

// GetOrPlaceholder returns the identity record, or the display placeholder
// when the record is momentarily missing. For display paths only.
func (r *Registry) GetOrPlaceholder(connectionID string) types.Identity {
	if identity, ok := r.Get(connectionID); ok {
		return identity
	}
	return types.PlaceholderIdentity()
}

// Remove deletes the identity record. Idempotent.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.identities, connectionID)
}

// Count returns the number of registered connections, for stats reporting.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.identities)
}
