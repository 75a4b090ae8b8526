package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reddragons/storefront-backend/pkg/logger"
)

// Registry keeps one Store per browser session. Sessions are identified by
// an opaque uuid the client echoes back on every request.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	docs    DocumentStore
	tasks   taskRunner
	logg    *logger.Logger
	now     func() time.Time
	idleTTL time.Duration
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIdleTTL sets how long an untouched session survives a Sweep.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

func NewRegistry(docs DocumentStore, runner taskRunner, logg *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: map[string]*entry{},
		docs:     docs,
		tasks:    runner,
		logg:     logg,
		now:      time.Now,
		idleTTL:  24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the store for id, creating it when id is unknown. An id
// that is not a uuid is replaced by a fresh one; callers must hand the
// returned id back to the client.
func (r *Registry) Resolve(id string) (string, *Store, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.New()
	}
	key := parsed.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[key]; ok {
		e.lastSeen = r.now()
		return key, e.store, false
	}
	e := &entry{
		store:    NewStore(r.docs, r.tasks, r.logg),
		lastSeen: r.now(),
	}
	r.sessions[key] = e
	return key, e.store, true
}

// Lookup returns an existing store without creating one.
func (r *Registry) Lookup(id string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// Sweep drops sessions idle for longer than the idle TTL and returns how many
// were removed. Remote documents are untouched.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	if removed > 0 && r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"removed":   removed,
			"remaining": remaining,
		})
		r.logg.Info(ctx, "cart.sessions.swept")
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
