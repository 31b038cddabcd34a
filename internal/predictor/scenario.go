package predictor

import (
	"strconv"
	"sync"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// Scenario is a measurement request: a controlled probe plus a set of
// background probes sharing a node of a given hardware class.
type Scenario struct {
	ID               string
	HwID             string
	ControlledProbe  string
	BackgroundProbes []string
	WarmUpCycles     int
	MeasuredCycles   int
}

// MeasurementName is the canonical measurement name this scenario will
// produce data for.
func (s *Scenario) MeasurementName() string {
	return ComposeMeasurementName(s.HwID, append([]string{s.ControlledProbe}, s.BackgroundProbes...))
}

// ScenarioGenerator tracks pending combinations lacking measurement data and
// hands them out one at a time, grounded on the teacher's shard/queue
// pattern (pkg/export/shard.go): a mutex-guarded pending set deduplicated by
// canonical measurement name, so a combination requested many times in one
// cycle only ever queues one scenario.
type ScenarioGenerator struct {
	mu          sync.Mutex
	pending     []*Scenario
	pendingSet  map[string]bool // measurement name -> queued
	nextID      int
	defaultWarm int
	defaultRun  int
}

// NewScenarioGenerator returns an empty generator.
func NewScenarioGenerator() *ScenarioGenerator {
	return &ScenarioGenerator{
		pendingSet:  map[string]bool{},
		defaultWarm: 2,
		defaultRun:  5,
	}
}

// RegisterProbe is a no-op hook kept for parity with the original
// interface; probe bookkeeping itself lives in the Aggregator's alias
// indices.
func (g *ScenarioGenerator) RegisterProbe(*knowledge.Probe) {}

// IncreaseCount enqueues a scenario for the given controlled probe and
// background-probe count on hwID, unless an equivalent scenario is already
// pending. The Aggregator calls this whenever Predict finds a combination
// with no stored measurement and statistical prediction is disabled or
// unable to answer.
func (g *ScenarioGenerator) IncreaseCount(hwID, controlledProbe string, combinationSize int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name := ComposeMeasurementName(hwID, []string{controlledProbe})
	if g.pendingSet[name] {
		return
	}
	g.pendingSet[name] = true
	g.nextID++
	g.pending = append(g.pending, &Scenario{
		ID:              strconv.Itoa(g.nextID),
		HwID:            hwID,
		ControlledProbe: controlledProbe,
		WarmUpCycles:    g.defaultWarm,
		MeasuredCycles:  g.defaultRun,
	})
}

// NextScenario pops the next pending scenario, or nil if none is queued.
func (g *ScenarioGenerator) NextScenario() *Scenario {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return nil
	}
	s := g.pending[0]
	g.pending = g.pending[1:]
	delete(g.pendingSet, s.MeasurementName())
	return s
}

// ScenarioCompleted removes s from bookkeeping once OnScenarioDone fires;
// it is idempotent if s was already dequeued by NextScenario.
func (g *ScenarioGenerator) ScenarioCompleted(s *Scenario) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pendingSet, s.MeasurementName())
}
