package arvento

import (
	"context"
	"sort"
	"time"

	"github.com/gps-hub/gps-hub-server/internal/models"
	"github.com/gps-hub/gps-hub-server/pkg/soap"
)

// fixtureNodes maps demo license plates to their node IDs
func fixtureNodes() map[string]string {
	return map[string]string{
		"34ABC123": "NODE001",
		"35XYZ789": "NODE002",
	}
}

func fixturePackets() map[string]StatusPacket {
	now := time.Now().UTC()
	return map[string]StatusPacket{
		"NODE001": {
			Node:        "NODE001",
			GMTDateTime: now.Add(-3 * time.Minute).Format(time.RFC3339),
			Latitude:    "40.978",
			Longitude:   "29.092",
			Speed:       "12.3",
			Address:     "İstanbul, Türkiye",
			Course:      "45",
			Odometer:    "25010",
			Altitude:    "0",
		},
		"NODE002": {
			Node:        "NODE002",
			GMTDateTime: now.Add(-7 * time.Minute).Format(time.RFC3339),
			Latitude:    "38.4237",
			Longitude:   "27.1428",
			Speed:       "0",
			Address:     "İzmir, Türkiye",
			Course:      "0",
			Odometer:    "10200",
			Altitude:    "0",
		},
	}
}

// fixtureTransport serves canned responses so the adapter can run
// without Arvento credentials
type fixtureTransport struct{}

func newFixtureTransport() *fixtureTransport {
	return &fixtureTransport{}
}

func (t *fixtureTransport) Call(ctx context.Context, method string, params []soap.Param) (*Result, error) {
	switch method {
	case methodNodeFromPlate:
		plate := paramValue(params, "LicensePlate")
		node, ok := fixtureNodes()[plate]
		if !ok {
			return nil, nil
		}
		return &Result{Text: node}, nil
	case methodVehicleStatus:
		node := paramValue(params, "Node")
		packet, ok := fixturePackets()[node]
		if !ok {
			return nil, nil
		}
		return &Result{Packet: &packet}, nil
	}
	return nil, nil
}

func paramValue(params []soap.Param, name string) string {
	for _, p := range params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// loadFixtures pre-registers the demo vehicles so device listing works
// out of the box
func (a *Adapter) loadFixtures() {
	packets := fixturePackets()
	ids := make([]string, 0, len(packets))
	for node := range packets {
		ids = append(ids, node)
	}
	sort.Strings(ids)

	a.mu.Lock()
	defer a.mu.Unlock()
	for plate, node := range fixtureNodes() {
		a.nodes[plate] = node
	}
	for _, node := range ids {
		packet := packets[node]
		loc := parseVehicleStatus(node, &Result{Packet: &packet})
		name := "Demo Vehicle " + node
		status := "active"
		a.devices[node] = &models.Device{
			DeviceID:     node,
			Provider:     models.ProviderArvento,
			Name:         &name,
			Status:       &status,
			LastLocation: loc,
			Raw:          models.Variables{"demo": true},
		}
	}
}
