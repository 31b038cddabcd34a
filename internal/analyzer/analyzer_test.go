package analyzer

import (
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

type alwaysFeasiblePredictor struct{}

func (alwaysFeasiblePredictor) Predict(predictor.Assignment) bool        { return true }
func (alwaysFeasiblePredictor) RegisterApp(*knowledge.Application) error { return nil }
func (alwaysFeasiblePredictor) UnregisterApp(string) error               { return nil }
func (alwaysFeasiblePredictor) RegisterHwConfig(string)                  {}
func (alwaysFeasiblePredictor) FetchScenario() *predictor.Scenario       { return nil }
func (alwaysFeasiblePredictor) OnScenarioDone(*predictor.Scenario, []float64) error {
	return nil
}
func (alwaysFeasiblePredictor) ReportPercentiles(string, []float64) predictor.PercentileReport {
	return predictor.PercentileReport{}
}
func (alwaysFeasiblePredictor) JudgeApp(*knowledge.Application) predictor.JudgeResult {
	return predictor.Accepted
}

func newTestKnowledge() *knowledge.Knowledge {
	k := knowledge.New()
	k.SetNode(knowledge.NewNode("node-1", "default", 4000, 8192))

	app := knowledge.NewApplication("app1")
	app.AddComponent(&knowledge.Component{Name: "backend", Type: knowledge.Managed, Cardinality: knowledge.Single})
	k.AddApplication(app)
	return k
}

func TestAnalyzeProducesSingleInstanceForSingleCardinality(t *testing.T) {
	k := newTestKnowledge()
	a := New(log.NewNopLogger(), k, alwaysFeasiblePredictor{}, 2*time.Second)

	desired := a.Analyze()
	instances := desired.ListInstances("app1", "backend")
	if len(instances) != 1 {
		t.Fatalf("expected exactly one instance of a SINGLE-cardinality component, got %d", len(instances))
	}
}

func TestAnalyzeIsIdempotentGivenUnchangedInputs(t *testing.T) {
	k := newTestKnowledge()
	a := New(log.NewNopLogger(), k, alwaysFeasiblePredictor{}, 2*time.Second)

	first := a.Analyze()
	// Feed the produced desired state back as actual_state, as the Executor
	// would once every create task completed, and analyze again.
	k.MutateActualState(func(cs *knowledge.CloudState) {
		for _, mc := range first.ListAllManagedCompins() {
			cs.AddCompin(mc)
		}
	})

	second := a.Analyze()

	firstIDs := first.ListInstances("app1", "backend")
	secondIDs := second.ListInstances("app1", "backend")
	if len(firstIDs) != 1 || len(secondIDs) != 1 {
		t.Fatalf("expected one instance in both cycles, got %v and %v", firstIDs, secondIDs)
	}
	firstInst := first.GetManagedCompin("app1", "backend", firstIDs[0])
	secondInst := second.GetManagedCompin("app1", "backend", secondIDs[0])
	if firstInst.NodeName != secondInst.NodeName {
		t.Fatalf("expected the already-placed instance to keep its node across cycles, got %q then %q",
			firstInst.NodeName, secondInst.NodeName)
	}
}

func TestMarkForceKeepProtectsNewClientDependencies(t *testing.T) {
	k := newTestKnowledge()
	k.SetClientSupport(true)

	backend := &knowledge.ManagedCompin{AppName: "app1", CompName: "backend", ID: "b1", Phase: knowledge.PhaseReady}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(backend) })

	app := k.Application("app1")
	app.Components["client"] = &knowledge.Component{
		Name: "client", Type: knowledge.Unmanaged, Dependencies: []string{"backend"},
	}

	client := &knowledge.UnmanagedCompin{AppName: "app1", CompName: "client", ID: "c1"}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(client) })
	k.PushNewClient(client)

	a := New(log.NewNopLogger(), k, alwaysFeasiblePredictor{}, 2*time.Second)
	desired := a.Analyze()

	c := desired.GetCompin("app1", "client", "c1")
	uc, ok := c.(*knowledge.UnmanagedCompin)
	if !ok || len(uc.Deps) == 0 {
		t.Fatalf("expected client's dependency to be resolved, got %+v", c)
	}
	if !uc.Deps[0].ForceKeep {
		t.Fatalf("expected the new client's dependency to be marked force_keep")
	}

	// The marker must reach the real actual_state ManagedCompin -- the one
	// DiffStates inspects for deletions -- not just materialize's desired-state
	// copy.
	if live := k.ActualState().GetManagedCompin("app1", "backend", "b1"); live == nil || !live.ForceKeep {
		t.Fatalf("expected force_keep to propagate to the actual_state backend compin, got %+v", live)
	}
}
