package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-hub/gps-hub-server/internal/models"
	"github.com/gps-hub/gps-hub-server/internal/providers"
)

type stubProvider struct {
	mu            sync.Mutex
	name          models.Provider
	connectErr    error
	disconnectErr error
	devicesErr    error
	devices       []*models.Device
	connects      int
	disconnects   int
}

func (p *stubProvider) Name() models.Provider { return p.name }

func (p *stubProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	return p.connectErr
}

func (p *stubProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return p.disconnectErr
}

func (p *stubProvider) Devices(ctx context.Context) ([]*models.Device, error) {
	return p.devices, p.devicesErr
}

func (p *stubProvider) Location(ctx context.Context, deviceID string) (*models.Location, error) {
	return nil, providers.ErrNotFound
}

func (p *stubProvider) History(ctx context.Context, deviceID string, opts providers.HistoryOptions) ([]*models.Location, error) {
	return []*models.Location{}, nil
}

func (p *stubProvider) Subscribe(fn func(*models.Location)) {}

func (p *stubProvider) disconnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

func TestRegistry_InstallAndGet(t *testing.T) {
	reg := New()
	ctx := context.Background()

	provider := &stubProvider{name: models.ProviderTrackimo}
	session, err := reg.Install(ctx, provider)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEqual(t, "", session.ID.String())
	assert.False(t, session.ConnectedAt.IsZero())

	got, err := reg.Get(models.ProviderTrackimo)
	require.NoError(t, err)
	assert.Same(t, provider, got)

	_, err = reg.Get(models.ProviderArvento)
	require.ErrorIs(t, err, providers.ErrNotConnected)
}

func TestRegistry_Install_ReplacesPreviousSession(t *testing.T) {
	reg := New()
	ctx := context.Background()

	first := &stubProvider{name: models.ProviderTrackimo}
	firstSession, err := reg.Install(ctx, first)
	require.NoError(t, err)

	second := &stubProvider{name: models.ProviderTrackimo}
	secondSession, err := reg.Install(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, firstSession.ID, secondSession.ID)

	// The replaced session is torn down, the new one is live
	assert.Equal(t, 1, first.disconnectCount())
	got, err := reg.Get(models.ProviderTrackimo)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Len(t, reg.Sessions(), 1)
}

func TestRegistry_Install_ConnectFailureKeepsPrevious(t *testing.T) {
	reg := New()
	ctx := context.Background()

	first := &stubProvider{name: models.ProviderTrackimo}
	_, err := reg.Install(ctx, first)
	require.NoError(t, err)

	second := &stubProvider{name: models.ProviderTrackimo, connectErr: providers.ErrAuthFailed}
	_, err = reg.Install(ctx, second)
	require.ErrorIs(t, err, providers.ErrAuthFailed)

	got, err := reg.Get(models.ProviderTrackimo)
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 0, first.disconnectCount())
}

func TestRegistry_Disconnect(t *testing.T) {
	t.Run("removes the session", func(t *testing.T) {
		reg := New()
		ctx := context.Background()

		provider := &stubProvider{name: models.ProviderArvento}
		_, err := reg.Install(ctx, provider)
		require.NoError(t, err)

		require.NoError(t, reg.Disconnect(ctx, models.ProviderArvento))
		assert.Equal(t, 1, provider.disconnectCount())

		_, err = reg.Get(models.ProviderArvento)
		require.ErrorIs(t, err, providers.ErrNotConnected)

		err = reg.Disconnect(ctx, models.ProviderArvento)
		require.ErrorIs(t, err, providers.ErrNotConnected)
	})

	t.Run("unknown provider", func(t *testing.T) {
		reg := New()
		err := reg.Disconnect(context.Background(), models.Provider("garmin"))
		require.ErrorIs(t, err, providers.ErrNotConnected)
	})

	t.Run("session is removed even when teardown fails", func(t *testing.T) {
		reg := New()
		ctx := context.Background()

		teardownErr := errors.New("vendor timeout")
		provider := &stubProvider{name: models.ProviderTrackimo, disconnectErr: teardownErr}
		_, err := reg.Install(ctx, provider)
		require.NoError(t, err)

		err = reg.Disconnect(ctx, models.ProviderTrackimo)
		require.ErrorIs(t, err, teardownErr)

		_, err = reg.Get(models.ProviderTrackimo)
		require.ErrorIs(t, err, providers.ErrNotConnected)
	})
}

func TestRegistry_AllDevices_IsolatesFailures(t *testing.T) {
	reg := New()
	ctx := context.Background()

	healthy := &stubProvider{
		name: models.ProviderArvento,
		devices: []*models.Device{
			{DeviceID: "NODE001", Provider: models.ProviderArvento},
			{DeviceID: "NODE002", Provider: models.ProviderArvento},
		},
	}
	failing := &stubProvider{
		name:       models.ProviderTrackimo,
		devicesErr: providers.ErrUnauthenticated,
	}

	_, err := reg.Install(ctx, healthy)
	require.NoError(t, err)
	_, err = reg.Install(ctx, failing)
	require.NoError(t, err)

	devices := reg.AllDevices(ctx)
	require.Len(t, devices, 2)
	assert.Equal(t, "NODE001", devices[0].DeviceID)
	assert.Equal(t, "NODE002", devices[1].DeviceID)
}

func TestRegistry_Sessions_SortedByName(t *testing.T) {
	reg := New()
	ctx := context.Background()

	_, err := reg.Install(ctx, &stubProvider{name: models.ProviderTrackimo})
	require.NoError(t, err)
	_, err = reg.Install(ctx, &stubProvider{name: models.ProviderArvento})
	require.NoError(t, err)

	sessions := reg.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, models.ProviderArvento, sessions[0].Provider.Name())
	assert.Equal(t, models.ProviderTrackimo, sessions[1].Provider.Name())
}

func TestRegistry_Shutdown(t *testing.T) {
	reg := New()
	ctx := context.Background()

	first := &stubProvider{name: models.ProviderTrackimo}
	second := &stubProvider{name: models.ProviderArvento}
	_, err := reg.Install(ctx, first)
	require.NoError(t, err)
	_, err = reg.Install(ctx, second)
	require.NoError(t, err)

	reg.Shutdown(ctx)

	assert.Equal(t, 1, first.disconnectCount())
	assert.Equal(t, 1, second.disconnectCount())
	assert.Empty(t, reg.Sessions())
}
