package monitor

import (
	"context"
	"fmt"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// ClientFact is one external client as reported by the API endpoint: which
// component it connects as, its dependency bindings so far, and whether it
// is still connected.
type ClientFact struct {
	AppName      string
	CompName     string
	InstanceID   string
	Dependencies []string // component names this client depends on
	Connected    bool
}

// ClientObserver lists the clients currently known to the API endpoint. A
// concrete implementation talks to the admission/API-endpoint service, out
// of scope for this package.
type ClientObserver interface {
	ListClients(ctx context.Context) ([]ClientFact, error)
}

// ClientMonitor detects new and disconnected clients: new clients are added
// as UnmanagedCompins and queued for the Analyzer's force_keep pass (spec.md
// edge case "new client arrives"); disconnected ones are removed.
type ClientMonitor struct {
	source ClientObserver
}

// NewClientMonitor constructs a ClientMonitor over source.
func NewClientMonitor(source ClientObserver) *ClientMonitor {
	return &ClientMonitor{source: source}
}

func (m *ClientMonitor) Name() string { return "ClientMonitor" }

func (m *ClientMonitor) Monitor(ctx context.Context, k *knowledge.Knowledge) error {
	facts, err := m.source.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("monitor: listing clients: %w", err)
	}

	var newClients []knowledge.Compin
	k.MutateActualState(func(cs *knowledge.CloudState) {
		for _, f := range facts {
			existing := cs.GetCompin(f.AppName, f.CompName, f.InstanceID)
			if !f.Connected {
				if existing != nil {
					cs.RemoveCompin(f.AppName, f.CompName, f.InstanceID)
				}
				continue
			}
			if existing != nil {
				continue // already known, no new dependency pass needed
			}
			deps := make([]*knowledge.Dependency, 0, len(f.Dependencies))
			for _, depComp := range f.Dependencies {
				deps = append(deps, &knowledge.Dependency{ComponentName: depComp})
			}
			uc := &knowledge.UnmanagedCompin{
				AppName:  f.AppName,
				CompName: f.CompName,
				ID:       f.InstanceID,
				Deps:     deps,
			}
			cs.AddCompin(uc)
			newClients = append(newClients, uc)
		}
	})

	for _, c := range newClients {
		k.PushNewClient(c)
	}
	return nil
}
