package monitor

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// PodFact is one observed pod as reported by the cluster: which compin it
// backs, where it landed, and how far along the kubelet says it is.
type PodFact struct {
	AppName    string
	CompName   string
	InstanceID string
	NodeName   string
	IP         string
	Running    bool // kubelet reports the pod's containers are all running
	Terminated bool // kubelet reports the pod has exited
}

// PodObserver lists the pods the orchestrator currently knows about.
// orchestrator.K8sClient implements it by listing pods through its
// controller-runtime client.
type PodObserver interface {
	ListPods(ctx context.Context) ([]PodFact, error)
}

// KubernetesMonitor is the orchestrator sub-monitor: it maps pod phases to
// Compin.phase advances plus IP/node placement.
type KubernetesMonitor struct {
	source  PodObserver
	limiter *rate.Limiter
}

// NewKubernetesMonitor bounds the observer's call rate the way the teacher's
// AltTokenSource throttles its own token endpoint calls, so a flapping API
// server cannot make the monitor spin.
func NewKubernetesMonitor(source PodObserver, qps float64, burst int) *KubernetesMonitor {
	return &KubernetesMonitor{source: source, limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

func (m *KubernetesMonitor) Name() string { return "KubernetesMonitor" }

func (m *KubernetesMonitor) Monitor(ctx context.Context, k *knowledge.Knowledge) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("monitor: kubernetes rate limit: %w", err)
	}
	facts, err := m.source.ListPods(ctx)
	if err != nil {
		return fmt.Errorf("monitor: listing pods: %w", err)
	}

	k.MutateActualState(func(cs *knowledge.CloudState) {
		for _, f := range facts {
			mc := cs.GetManagedCompin(f.AppName, f.CompName, f.InstanceID)
			if mc == nil {
				continue // instance not yet created by the Executor; nothing to update
			}
			mc.NodeName = f.NodeName
			mc.IP = f.IP
			switch {
			case f.Terminated && mc.Phase < knowledge.PhaseFinished:
				_ = mc.SetPhase(knowledge.PhaseFinished)
			case f.Running && mc.Phase < knowledge.PhaseInit:
				_ = mc.SetPhase(knowledge.PhaseInit)
			}
		}
	})
	return nil
}
