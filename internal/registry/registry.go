package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gps-hub/gps-hub-server/internal/models"
	"github.com/gps-hub/gps-hub-server/internal/providers"
)

// Session is one live provider connection
type Session struct {
	ID          uuid.UUID
	Provider    providers.Provider
	ConnectedAt time.Time
}

// Registry tracks at most one live session per provider name
type Registry struct {
	mu       sync.RWMutex
	sessions map[models.Provider]*Session

	// connectMu serializes Install per provider name so concurrent
	// connects cannot interleave
	connectMu map[models.Provider]*sync.Mutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		sessions:  make(map[models.Provider]*Session),
		connectMu: make(map[models.Provider]*sync.Mutex),
	}
}

func (r *Registry) lockFor(name models.Provider) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.connectMu[name]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.connectMu[name] = m
	return m
}

// Install connects the provider and makes it the live session for its
// name, replacing any previous session. A failed connect leaves the
// previous session untouched.
func (r *Registry) Install(ctx context.Context, p providers.Provider) (*Session, error) {
	name := p.Name()
	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	session := &Session{
		ID:          uuid.New(),
		Provider:    p,
		ConnectedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	previous := r.sessions[name]
	r.sessions[name] = session
	r.mu.Unlock()

	if previous != nil {
		log.Info().
			Str("provider", name.String()).
			Str("session_id", previous.ID.String()).
			Msg("Replacing previous session")
		if err := previous.Provider.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Str("provider", name.String()).Msg("Teardown of replaced session failed")
		}
	}

	log.Info().
		Str("provider", name.String()).
		Str("session_id", session.ID.String()).
		Msg("Provider session installed")
	return session, nil
}

// Get returns the live provider for a name
func (r *Registry) Get(name models.Provider) (providers.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", providers.ErrNotConnected, name)
	}
	return session.Provider, nil
}

// Sessions returns the live sessions sorted by provider name
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider.Name() < out[j].Provider.Name() })
	return out
}

// Disconnect tears down and removes the live session for a name. The
// session is removed even when the teardown reports an error.
func (r *Registry) Disconnect(ctx context.Context, name models.Provider) error {
	r.mu.Lock()
	session, ok := r.sessions[name]
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", providers.ErrNotConnected, name)
	}

	if err := session.Provider.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Str("provider", name.String()).Msg("Provider teardown failed")
		return err
	}
	log.Info().Str("provider", name.String()).Msg("Provider session removed")
	return nil
}

// AllDevices aggregates the device listings across live sessions. A
// provider that fails contributes nothing but does not fail the sweep.
func (r *Registry) AllDevices(ctx context.Context) []*models.Device {
	devices := make([]*models.Device, 0)
	for _, session := range r.Sessions() {
		list, err := session.Provider.Devices(ctx)
		if err != nil {
			log.Error().
				Err(err).
				Str("provider", session.Provider.Name().String()).
				Msg("Device listing failed")
			continue
		}
		devices = append(devices, list...)
	}
	return devices
}

// Shutdown disconnects every live session
func (r *Registry) Shutdown(ctx context.Context) {
	for _, session := range r.Sessions() {
		name := session.Provider.Name()
		r.mu.Lock()
		if r.sessions[name] == session {
			delete(r.sessions, name)
		}
		r.mu.Unlock()

		if err := session.Provider.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Str("provider", name.String()).Msg("Provider teardown failed")
		}
	}
	log.Info().Msg("All provider sessions closed")
}
