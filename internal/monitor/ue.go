package monitor

import (
	"context"
	"fmt"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// UEPosition reports one client's current network location and its
// measured distance to each candidate node, as fed by the user-equipment
// tracking feed.
type UEPosition struct {
	ClientAppName    string
	ClientCompName   string
	ClientInstanceID string
	Location         string
	NodeDistances    map[string]float64
}

// UEObserver lists the latest known client positions. A concrete
// implementation talks to the UE-tracking feed, out of scope here.
type UEObserver interface {
	ListPositions(ctx context.Context) ([]UEPosition, error)
}

// UEMonitor updates NetworkTopology distances and the client's recorded
// network location, the half of spec.md 4.2's "client/UE monitors" the
// ClientMonitor does not cover.
type UEMonitor struct {
	source UEObserver
}

// NewUEMonitor constructs a UEMonitor over source.
func NewUEMonitor(source UEObserver) *UEMonitor {
	return &UEMonitor{source: source}
}

func (m *UEMonitor) Name() string { return "UEMonitor" }

func (m *UEMonitor) Monitor(ctx context.Context, k *knowledge.Knowledge) error {
	positions, err := m.source.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("monitor: listing UE positions: %w", err)
	}

	topology := k.NetworkTopology()
	for _, pos := range positions {
		for node, dist := range pos.NodeDistances {
			topology.SetDistance(pos.Location, node, dist)
		}
	}

	k.MutateActualState(func(cs *knowledge.CloudState) {
		for _, pos := range positions {
			c := cs.GetCompin(pos.ClientAppName, pos.ClientCompName, pos.ClientInstanceID)
			uc, ok := c.(*knowledge.UnmanagedCompin)
			if !ok {
				continue
			}
			uc.NetworkLocation = pos.Location
		}
	})
	return nil
}
