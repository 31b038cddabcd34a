package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

type fakePodObserver struct{ facts []PodFact }

func (f *fakePodObserver) ListPods(ctx context.Context) ([]PodFact, error) { return f.facts, nil }

type fakeAgentObserver struct{ facts []AgentFact }

func (f *fakeAgentObserver) ListAgentReports(ctx context.Context) ([]AgentFact, error) {
	return f.facts, nil
}

type fakeClientObserver struct{ facts []ClientFact }

func (f *fakeClientObserver) ListClients(ctx context.Context) ([]ClientFact, error) {
	return f.facts, nil
}

type fakeUEObserver struct{ positions []UEPosition }

func (f *fakeUEObserver) ListPositions(ctx context.Context) ([]UEPosition, error) {
	return f.positions, nil
}

func TestKubernetesMonitorAdvancesPhaseAndRecordsPlacement(t *testing.T) {
	k := knowledge.New()
	mc := &knowledge.ManagedCompin{AppName: "app1", CompName: "web", ID: "i1", Phase: knowledge.PhaseCreating}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(mc) })

	src := &fakePodObserver{facts: []PodFact{{AppName: "app1", CompName: "web", InstanceID: "i1", NodeName: "n1", IP: "10.0.0.5", Running: true}}}
	m := NewKubernetesMonitor(src, 100, 10)

	if err := m.Monitor(context.Background(), k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live := k.ActualState().GetManagedCompin("app1", "web", "i1")
	if live.NodeName != "n1" || live.IP != "10.0.0.5" {
		t.Fatalf("expected placement facts to be recorded, got %+v", live)
	}
	if live.Phase != knowledge.PhaseInit {
		t.Fatalf("expected phase to advance to INIT, got %s", live.Phase)
	}
}

func TestKubernetesMonitorNeverLowersPhase(t *testing.T) {
	k := knowledge.New()
	mc := &knowledge.ManagedCompin{AppName: "app1", CompName: "web", ID: "i1", Phase: knowledge.PhaseReady}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(mc) })

	src := &fakePodObserver{facts: []PodFact{{AppName: "app1", CompName: "web", InstanceID: "i1", Running: true}}}
	m := NewKubernetesMonitor(src, 100, 10)
	if err := m.Monitor(context.Background(), k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live := k.ActualState().GetManagedCompin("app1", "web", "i1")
	if live.Phase != knowledge.PhaseReady {
		t.Fatalf("expected phase to stay READY, got %s", live.Phase)
	}
}

func TestApplicationMonitorAdvancesInitToReady(t *testing.T) {
	k := knowledge.New()
	mc := &knowledge.ManagedCompin{AppName: "app1", CompName: "web", ID: "i1", Phase: knowledge.PhaseInit}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(mc) })

	src := &fakeAgentObserver{facts: []AgentFact{{AppName: "app1", CompName: "web", InstanceID: "i1", InitCompleted: true, ProbesReady: true}}}
	m := NewApplicationMonitor(src)
	if err := m.Monitor(context.Background(), k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live := k.ActualState().GetManagedCompin("app1", "web", "i1")
	if live.Phase != knowledge.PhaseReady {
		t.Fatalf("expected READY, got %s", live.Phase)
	}
}

func TestClientMonitorAddsNewClientAndQueuesForceKeep(t *testing.T) {
	k := knowledge.New()
	src := &fakeClientObserver{facts: []ClientFact{{AppName: "app1", CompName: "client", InstanceID: "c1", Dependencies: []string{"web"}, Connected: true}}}
	m := NewClientMonitor(src)

	if err := m.Monitor(context.Background(), k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := k.ActualState().GetCompin("app1", "client", "c1")
	if c == nil {
		t.Fatalf("expected new client compin to be added")
	}
	newClients := k.ListNewClients()
	if len(newClients) != 1 {
		t.Fatalf("expected the new client to be queued, got %d", len(newClients))
	}
}

func TestClientMonitorRemovesDisconnectedClient(t *testing.T) {
	k := knowledge.New()
	uc := &knowledge.UnmanagedCompin{AppName: "app1", CompName: "client", ID: "c1"}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(uc) })

	src := &fakeClientObserver{facts: []ClientFact{{AppName: "app1", CompName: "client", InstanceID: "c1", Connected: false}}}
	m := NewClientMonitor(src)
	if err := m.Monitor(context.Background(), k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if k.ActualState().GetCompin("app1", "client", "c1") != nil {
		t.Fatalf("expected disconnected client to be removed")
	}
}

func TestUEMonitorRecordsDistancesAndLocation(t *testing.T) {
	k := knowledge.New()
	uc := &knowledge.UnmanagedCompin{AppName: "app1", CompName: "client", ID: "c1"}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(uc) })

	src := &fakeUEObserver{positions: []UEPosition{{
		ClientAppName: "app1", ClientCompName: "client", ClientInstanceID: "c1",
		Location: "cell-42", NodeDistances: map[string]float64{"n1": 3.5},
	}}}
	m := NewUEMonitor(src)
	if err := m.Monitor(context.Background(), k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, ok := k.NetworkTopology().GetDistance("cell-42", "n1")
	if !ok || d != 3.5 {
		t.Fatalf("expected distance to be recorded, got %v ok=%v", d, ok)
	}
	live, _ := k.ActualState().GetCompin("app1", "client", "c1").(*knowledge.UnmanagedCompin)
	if live.NetworkLocation != "cell-42" {
		t.Fatalf("expected network location to be updated, got %s", live.NetworkLocation)
	}
}

func TestTopLevelMonitorRunsSubMonitorsInOrderAndToleratesFailures(t *testing.T) {
	k := knowledge.New()
	var order []string

	okSub := namedSubMonitor{name: "first", fn: func(ctx context.Context, k *knowledge.Knowledge) error {
		order = append(order, "first")
		return nil
	}}
	failSub := namedSubMonitor{name: "second", fn: func(ctx context.Context, k *knowledge.Knowledge) error {
		order = append(order, "second")
		return context.DeadlineExceeded
	}}
	lastSub := namedSubMonitor{name: "third", fn: func(ctx context.Context, k *knowledge.Knowledge) error {
		order = append(order, "third")
		return nil
	}}

	top := New(log.NewNopLogger(), time.Second, okSub, failSub, lastSub)
	if err := top.Monitor(context.Background(), k); err == nil {
		t.Fatalf("expected the failing sub-monitor's error to propagate")
	}
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("expected all three sub-monitors to run in order despite the failure, got %v", order)
	}
}

type namedSubMonitor struct {
	name string
	fn   func(ctx context.Context, k *knowledge.Knowledge) error
}

func (n namedSubMonitor) Name() string { return n.name }
func (n namedSubMonitor) Monitor(ctx context.Context, k *knowledge.Knowledge) error {
	return n.fn(ctx, k)
}
