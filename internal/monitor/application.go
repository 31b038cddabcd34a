package monitor

import (
	"context"
	"fmt"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// AgentFact is one workload agent's self-report: has it finished the
// MiddlewareAgent init handshake, and are all of its probes ready to serve.
type AgentFact struct {
	AppName       string
	CompName      string
	InstanceID    string
	InitCompleted bool
	ProbesReady   bool
}

// AgentObserver polls the workload agents (MiddlewareAgent sidecars) for
// readiness. A concrete implementation is a gRPC client against the agent,
// out of scope for this package (see orchestrator.Client's boundary note).
type AgentObserver interface {
	ListAgentReports(ctx context.Context) ([]AgentFact, error)
}

// ApplicationMonitor advances a ManagedCompin from INIT to READY once its
// agent confirms both the init handshake and probe readiness, per spec.md
// 4.2's "application monitor: readiness of probes and init flags via
// workload agents".
type ApplicationMonitor struct {
	source AgentObserver
}

// NewApplicationMonitor constructs an ApplicationMonitor over source.
func NewApplicationMonitor(source AgentObserver) *ApplicationMonitor {
	return &ApplicationMonitor{source: source}
}

func (m *ApplicationMonitor) Name() string { return "ApplicationMonitor" }

func (m *ApplicationMonitor) Monitor(ctx context.Context, k *knowledge.Knowledge) error {
	facts, err := m.source.ListAgentReports(ctx)
	if err != nil {
		return fmt.Errorf("monitor: listing agent reports: %w", err)
	}

	k.MutateActualState(func(cs *knowledge.CloudState) {
		for _, f := range facts {
			mc := cs.GetManagedCompin(f.AppName, f.CompName, f.InstanceID)
			if mc == nil {
				continue
			}
			if f.InitCompleted {
				mc.InitCompleted = true
			}
			if mc.Phase == knowledge.PhaseInit && mc.InitCompleted && f.ProbesReady {
				_ = mc.SetPhase(knowledge.PhaseReady)
			}
		}
	})
	return nil
}
