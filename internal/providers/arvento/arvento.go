package arvento

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gps-hub/gps-hub-server/internal/models"
	"github.com/gps-hub/gps-hub-server/internal/providers"
	"github.com/gps-hub/gps-hub-server/pkg/soap"
)

// Config holds the Arvento connection settings. Host is the report
// service URL, with or without its ?wsdl suffix.
type Config struct {
	Host     string
	Username string
	PIN1     string
	PIN2     string
	Offline  bool
}

// Adapter connects to the Arvento SOAP report service and normalizes
// its data. Arvento has no device listing endpoint, so the roster is
// built from the license plates registered through AddVehicle.
type Adapter struct {
	providers.Hook

	cfg Config

	// Transport performs the SOAP calls. Tests swap in a stub.
	Transport Transport

	mu        sync.RWMutex
	connected bool
	devices   map[string]*models.Device
	nodes     map[string]string // license plate -> node cache
}

// New creates a new Arvento adapter
func New(cfg Config) *Adapter {
	a := &Adapter{
		cfg:     cfg,
		devices: make(map[string]*models.Device),
		nodes:   make(map[string]string),
	}
	if cfg.Offline {
		a.Transport = newFixtureTransport()
	} else {
		a.Transport = newHTTPTransport(cfg, &http.Client{Timeout: 30 * time.Second})
	}
	return a
}

// Name returns the provider identifier
func (a *Adapter) Name() models.Provider {
	return models.ProviderArvento
}

// Connect marks the session live. The report service has no handshake,
// so credentials are only verified on the first call.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	if a.cfg.Offline {
		a.loadFixtures()
		log.Info().Str("provider", "arvento").Msg("Connected in offline demo mode")
		return nil
	}

	log.Info().Str("provider", "arvento").Msg("Arvento connection established")
	return nil
}

// Disconnect drops the session state and the registered vehicles
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = false
	a.devices = make(map[string]*models.Device)
	a.nodes = make(map[string]string)
	a.mu.Unlock()

	log.Info().Str("provider", "arvento").Msg("Arvento session closed")
	return nil
}

// NodeFromPlate resolves a license plate to its node ID. Resolved
// plates are cached for the lifetime of the session.
func (a *Adapter) NodeFromPlate(ctx context.Context, licensePlate string) (string, error) {
	if err := a.requireConnected(); err != nil {
		return "", err
	}

	a.mu.RLock()
	node, ok := a.nodes[licensePlate]
	a.mu.RUnlock()
	if ok {
		return node, nil
	}

	result, err := a.Transport.Call(ctx, methodNodeFromPlate, []soap.Param{
		{Name: "LicensePlate", Value: licensePlate},
	})
	if err != nil {
		return "", err
	}
	if result == nil || result.Text == "" {
		return "", fmt.Errorf("%w: plate %s", providers.ErrNotFound, licensePlate)
	}

	a.mu.Lock()
	a.nodes[licensePlate] = result.Text
	a.mu.Unlock()
	return result.Text, nil
}

// VehicleStatus fetches the last reported packet for a node
func (a *Adapter) VehicleStatus(ctx context.Context, node string) (*models.Location, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}

	result, err := a.Transport.Call(ctx, methodVehicleStatus, []soap.Param{
		{Name: "Node", Value: node},
		{Name: "Language", Value: "0"},
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: node %s", providers.ErrNotFound, node)
	}

	loc := parseVehicleStatus(node, result)

	a.mu.Lock()
	if device, ok := a.devices[node]; ok {
		device.LastLocation = loc
	}
	a.mu.Unlock()

	a.Emit(loc)
	return loc, nil
}

// LocationByPlate resolves the plate and fetches the vehicle status
func (a *Adapter) LocationByPlate(ctx context.Context, licensePlate string) (*models.Location, error) {
	node, err := a.NodeFromPlate(ctx, licensePlate)
	if err != nil {
		return nil, err
	}
	return a.VehicleStatus(ctx, node)
}

// AddVehicle registers a vehicle for tracking under its license plate.
// The plate must resolve to a node; a vehicle without a current location
// is still registered.
func (a *Adapter) AddVehicle(ctx context.Context, licensePlate, name string) (*models.Device, error) {
	node, err := a.NodeFromPlate(ctx, licensePlate)
	if err != nil {
		return nil, err
	}

	loc, err := a.VehicleStatus(ctx, node)
	if err != nil && !errors.Is(err, providers.ErrNotFound) {
		return nil, err
	}

	if name == "" {
		name = licensePlate
	}
	status := "active"
	device := &models.Device{
		DeviceID:     node,
		Provider:     models.ProviderArvento,
		Name:         &name,
		Status:       &status,
		LastLocation: loc,
		Raw:          models.Variables{"license_plate": licensePlate, "node": node},
	}

	a.mu.Lock()
	a.devices[node] = device
	a.mu.Unlock()
	return device, nil
}

// Devices returns the registered vehicles
func (a *Adapter) Devices(ctx context.Context) ([]*models.Device, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*models.Device, 0, len(a.devices))
	for _, d := range a.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

// Location fetches the current location of a node
func (a *Adapter) Location(ctx context.Context, deviceID string) (*models.Location, error) {
	return a.VehicleStatus(ctx, deviceID)
}

// History always returns an empty trail. The report service does not
// expose a history endpoint.
func (a *Adapter) History(ctx context.Context, deviceID string, opts providers.HistoryOptions) ([]*models.Location, error) {
	log.Warn().Str("provider", "arvento").Msg("Arvento history endpoint not available")
	return []*models.Location{}, nil
}

func (a *Adapter) requireConnected() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.connected {
		return fmt.Errorf("%w: connect first", providers.ErrNotConnected)
	}
	return nil
}
