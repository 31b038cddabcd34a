package predictor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// Aggregator is the Performance-Data Aggregator: the component that stores
// measurements, generates scenarios, and answers co-location feasibility
// queries for candidate placements. It holds its own mutex over
// applications, probe indices, the scenario generator and the measurement
// store, kept separate from Knowledge's lock (Design Note 3/§5).
type Aggregator struct {
	mu sync.Mutex

	defaultHardwareID            string
	statisticalPredictionEnabled bool

	applications      map[string]*knowledge.Application
	probesByComponent map[string]map[string]bool // componentID -> set of probe aliases
	probesByAlias     map[string]*knowledge.Probe

	measurements *MeasurementStore
	scenarios    *ScenarioGenerator
	statistical  StatisticalPredictor
}

// NewAggregator wires a fresh Aggregator around its own measurement store,
// scenario generator and statistical predictor.
func NewAggregator(defaultHardwareID string, statisticalPredictionEnabled bool, statistical StatisticalPredictor) *Aggregator {
	if statistical == nil {
		statistical = NewNullStatisticalPredictor()
	}
	return &Aggregator{
		defaultHardwareID:            defaultHardwareID,
		statisticalPredictionEnabled: statisticalPredictionEnabled,
		applications:                 map[string]*knowledge.Application{},
		probesByComponent:            map[string]map[string]bool{},
		probesByAlias:                map[string]*knowledge.Probe{},
		measurements:                 NewMeasurementStore(),
		scenarios:                    NewScenarioGenerator(),
		statistical:                  statistical,
	}
}

func componentID(appName, compName string) string {
	return appName + "/" + compName
}

// registerProbe indexes probe by its alias, overwriting any previous entry
// for that alias -- the probe-re-registration step JudgeApp performs on
// ACCEPTED relies on this being idempotent.
func (a *Aggregator) registerProbe(p *knowledge.Probe) {
	a.probesByAlias[p.Alias] = p
}

// RegisterApp installs app and (re)indexes every one of its probes by id and
// by component. For a probe that already carries signal bookkeeping, if its
// isolation measurement at the default hardware class is already on file,
// the bookkeeping is forwarded into the measurement store against that
// record (mirrors performance_data_aggregator.py's RegisterApp: probes with
// signal_set != "" re-report against an existing has_measurement() hit).
func (a *Aggregator) RegisterApp(app *knowledge.Application) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applications[app.Name] = app
	for _, comp := range app.Components {
		cid := componentID(app.Name, comp.Name)
		// Reset this component's alias set before iterating its probes --
		// scoped per component, not carried over from whatever probe a
		// previous component's loop last bound.
		a.probesByComponent[cid] = map[string]bool{}
		for _, probe := range comp.Probes {
			a.registerProbe(probe)
			a.scenarios.RegisterProbe(probe)
			a.probesByComponent[cid][probe.Alias] = true

			if probe.SignalSet != "" {
				name := ComposeMeasurementName(a.defaultHardwareID, []string{probe.Alias})
				if a.measurements.HasMeasurement(name) {
					a.measurements.ReportMetadata(name, probe.SignalSet, probe.ExecutionTimeSignal, probe.RunCountSignal)
				}
			}
		}
	}
	return nil
}

// UnregisterApp removes app's bookkeeping.
func (a *Aggregator) UnregisterApp(appName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	app, ok := a.applications[appName]
	if !ok {
		return nil
	}
	delete(a.applications, appName)
	for _, comp := range app.Components {
		delete(a.probesByComponent, componentID(appName, comp.Name))
	}
	return nil
}

// RegisterHwConfig registers a hardware class with the statistical predictor.
func (a *Aggregator) RegisterHwConfig(hwID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statistical.AddHwID(hwID)
}

// generateCombinations enumerates, for every way to pick one component's
// probe as the controlled probe, the legal multisets of probes filling the
// remaining slots of the assignment. Grounded directly on
// PerformanceDataAggregator._generate_combinations, carried over field for
// field: probe multisets per component via bounded recursive combination
// generation, then component-by-component concatenation.
func (a *Aggregator) generateCombinations(assignment map[string]int) [][]string {
	componentIDs := make([]string, 0, len(assignment))
	for cid := range assignment {
		componentIDs = append(componentIDs, cid)
	}
	sort.Strings(componentIDs) // deterministic enumeration order

	var out [][]string
	for _, mainComponent := range componentIDs {
		componentCombos := a.generateComponentCombinations(componentIDs, assignment, mainComponent)
		aliases := sortedAliases(a.probesByComponent[mainComponent])
		for _, probeID := range aliases {
			for _, combo := range componentCombos {
				full := append([]string{probeID}, combo...)
				out = append(out, full)
			}
		}
	}
	return out
}

func (a *Aggregator) generateComponentCombinations(componentIDs []string, assignment map[string]int, mainComponent string) [][]string {
	var rec func(idx int, combination []string) [][]string
	rec = func(idx int, combination []string) [][]string {
		if idx == len(componentIDs) {
			return [][]string{combination}
		}
		cid := componentIDs[idx]
		count := assignment[cid]
		if cid == mainComponent {
			count--
		}
		probes := sortedAliases(a.probesByComponent[cid])
		var out [][]string
		for _, probeCombo := range generateProbeCombinations(probes, count) {
			next := append(append([]string{}, combination...), probeCombo...)
			out = append(out, rec(idx+1, next)...)
		}
		return out
	}
	return rec(0, nil)
}

// generateProbeCombinations returns every multiset of size size drawn from
// probes (with repetition), preserving probes' order exactly like the
// recursive Python generator.
func generateProbeCombinations(probes []string, size int) [][]string {
	if size <= 0 {
		return [][]string{{}}
	}
	if len(probes) == 0 {
		return nil
	}
	var rec func(remaining []string, size int, combination []string) [][]string
	rec = func(remaining []string, size int, combination []string) [][]string {
		if len(combination) == size {
			return [][]string{combination}
		}
		if len(remaining) == 0 {
			return nil
		}
		var out [][]string
		for i := 0; i+len(combination) <= size; i++ {
			next := append(append([]string{}, combination...), repeat(remaining[0], i)...)
			out = append(out, rec(remaining[1:], size, next)...)
		}
		return out
	}
	return rec(probes, size, nil)
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func sortedAliases(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for alias := range set {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Predict answers whether every QoS requirement of the requested co-location
// is expected to hold.
func (a *Aggregator) Predict(req Assignment) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.Components) == 1 && req.Components[0].Count == 1 && req.HwID == a.defaultHardwareID {
		return true
	}

	assignment := map[string]int{}
	for _, c := range req.Components {
		assignment[c.ComponentID] = c.Count
	}

	for _, combination := range a.generateCombinations(assignment) {
		measurementName := ComposeMeasurementName(req.HwID, combination)
		measured := a.measurements.HasMeasurement(measurementName)
		if !a.statisticalPredictionEnabled && !measured {
			a.scenarios.IncreaseCount(req.HwID, combination[0], len(combination))
			return false
		}
		probe := a.probesByAlias[combination[0]]
		if probe == nil {
			continue
		}
		for _, requirement := range probe.Requirements {
			var ok bool
			switch r := requirement.(type) {
			case knowledge.TimeContract:
				if measured {
					ok = a.measurements.PredictTime(measurementName, r.TimeLimitMs, r.Percentile)
				} else {
					ok = a.statistical.PredictTime(req.HwID, combination, r.TimeLimitMs, r.Percentile)
				}
			case knowledge.ThroughputContract:
				// Both the measurement-backed and statistical paths compare
				// against mean_request_time and require mean <= mean_request_time.
				if measured {
					ok = a.measurements.PredictThroughput(measurementName, r.MeanRequestTimeMs)
				} else {
					ok = a.statistical.PredictThroughput(req.HwID, combination, r.MeanRequestTimeMs)
				}
			default:
				ok = true
			}
			if !ok {
				a.scenarios.IncreaseCount(req.HwID, combination[0], len(combination))
				return false
			}
		}
	}
	return true
}

// JudgeApp decides whether app can be accepted based on available
// measurement data.
func (a *Aggregator) JudgeApp(app *knowledge.Application) JudgeResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.applications[app.Name]; !ok {
		return NeedsData
	}

	for _, comp := range app.Components {
		for _, probe := range comp.Probes {
			measurementName := ComposeMeasurementName(a.defaultHardwareID, []string{probe.Alias})
			if !a.measurements.HasMeasurement(measurementName) {
				return NeedsData
			}
			for _, requirement := range probe.Requirements {
				var ok bool
				switch r := requirement.(type) {
				case knowledge.TimeContract:
					ok = a.measurements.PredictTime(measurementName, r.TimeLimitMs, r.Percentile)
				case knowledge.ThroughputContract:
					ok = a.measurements.PredictThroughput(measurementName, r.MeanRequestTimeMs)
				default:
					ok = true
				}
				if !ok {
					return Rejected
				}
			}
		}
	}

	if !app.Complete {
		return Measured
	}

	// Accepted: some QoS requirements may have been added between
	// registration and judgement, so re-register every probe to absorb them.
	a.applications[app.Name] = app
	for _, comp := range app.Components {
		cid := componentID(app.Name, comp.Name)
		a.probesByComponent[cid] = map[string]bool{}
		for _, probe := range comp.Probes {
			a.registerProbe(probe)
			a.probesByComponent[cid][probe.Alias] = true
		}
	}
	return Accepted
}

// FetchScenario returns the next pending scenario, or nil.
func (a *Aggregator) FetchScenario() *Scenario {
	return a.scenarios.NextScenario()
}

// OnScenarioDone records the measurement produced by s's data file and
// removes s from the pending set. Parsing dataFile into running times is the
// caller's responsibility (it is filesystem/transport glue out of scope
// here); this records the already-parsed values.
func (a *Aggregator) OnScenarioDone(s *Scenario, runningTimes []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s == nil {
		return fmt.Errorf("predictor: nil scenario")
	}
	a.scenarios.ScenarioCompleted(s)
	a.measurements.Report(s.MeasurementName(), runningTimes)
	return nil
}

// ReportPercentiles returns per-percentile response times and the mean for
// probeAlias's isolation measurement, or Mean == -1 if none exists.
func (a *Aggregator) ReportPercentiles(probeAlias string, percentiles []float64) PercentileReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := ComposeMeasurementName(a.defaultHardwareID, []string{probeAlias})
	if !a.measurements.HasMeasurement(name) {
		return PercentileReport{ProbeAlias: probeAlias, Mean: -1}
	}
	out := PercentileReport{ProbeAlias: probeAlias, Percentiles: map[float64]float64{}}
	for _, p := range percentiles {
		out.Percentiles[p] = a.measurements.RunningTimeAtPercentile(name, p)
	}
	out.Mean = a.measurements.MeanRunningTime(name)
	return out
}
