package providers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gps-hub/gps-hub-server/internal/models"
)

// Common errors
var (
	// ErrNotConnected is returned when an operation is invoked for a
	// provider with no live session.
	ErrNotConnected = errors.New("provider not connected")

	// ErrAuthFailed is returned when a vendor rejects credentials or any
	// step of the login/token exchange fails.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnauthenticated is returned when an authenticated operation is
	// attempted before the session identity is established.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound is returned when a device, vehicle or plate lookup
	// comes back empty from the vendor.
	ErrNotFound = errors.New("not found")
)

// HistoryOptions bounds a location history query. Zero values select the
// adapter defaults (trailing 24 hours, limit 100, first page).
type HistoryOptions struct {
	Start time.Time
	End   time.Time
	Limit int
	Page  int
}

// Provider is the capability contract every vendor adapter implements.
type Provider interface {
	// Name returns the canonical provider tag.
	Name() models.Provider

	// Connect establishes a vendor session. A failed Connect leaves no
	// partial session behind.
	Connect(ctx context.Context) error

	// Disconnect tears down the vendor session and the adapter's
	// device registry.
	Disconnect(ctx context.Context) error

	// Devices returns every device the adapter currently knows about.
	Devices(ctx context.Context) ([]*models.Device, error)

	// Location fetches the current location for one device. Returns
	// ErrNotFound when the vendor has no location for the id.
	Location(ctx context.Context, deviceID string) (*models.Location, error)

	// History fetches past locations for one device. An empty result is
	// a value, not an error.
	History(ctx context.Context, deviceID string, opts HistoryOptions) ([]*models.Location, error)

	// Subscribe registers a callback for pushed location updates. No
	// current vendor pushes, so subscribers only fire if a future
	// adapter emits.
	Subscribe(fn func(*models.Location))
}

// Hook is the shared location-update emitter adapters embed to satisfy
// Subscribe. Emit fans a location out to every registered subscriber.
type Hook struct {
	mu  sync.RWMutex
	fns []func(*models.Location)
}

// Subscribe registers a location-update callback.
func (h *Hook) Subscribe(fn func(*models.Location)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Emit delivers a location to all subscribers in registration order.
func (h *Hook) Emit(loc *models.Location) {
	h.mu.RLock()
	fns := h.fns
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(loc)
	}
}
