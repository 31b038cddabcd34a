// Package predictor implements the Performance-Data Aggregator: measurement
// storage, scenario generation, and the co-location feasibility predictor
// the Analyzer consults on every cycle.
package predictor

import "github.com/qoscloud/adaptation-controller/internal/knowledge"

// ComponentCount names how many instances of a component participate in a
// candidate co-location.
type ComponentCount struct {
	ComponentID string
	Count       int
}

// Assignment is a candidate placement: a hardware class plus a multiset of
// component instance counts destined for the same node.
type Assignment struct {
	HwID       string
	Components []ComponentCount
}

// JudgeResult is the outcome of JudgeApp.
type JudgeResult int

const (
	NeedsData JudgeResult = iota
	Rejected
	Measured
	Accepted
)

func (r JudgeResult) String() string {
	switch r {
	case NeedsData:
		return "NEEDS_DATA"
	case Rejected:
		return "REJECTED"
	case Measured:
		return "MEASURED"
	case Accepted:
		return "ACCEPTED"
	default:
		return "UNKNOWN"
	}
}

// PercentileReport is the answer to ReportPercentiles: per-percentile
// response times and a mean, with mean == -1 meaning "no data".
type PercentileReport struct {
	ProbeAlias  string
	Percentiles map[float64]float64
	Mean        float64
}

// PredictorService is the transport-agnostic contract the Analyzer and the
// admission flow depend on. The concrete gRPC server lives outside this
// module's scope; Aggregator below implements this interface directly for
// in-process use and is what a gRPC adapter would wrap.
type PredictorService interface {
	Predict(a Assignment) bool
	RegisterApp(app *knowledge.Application) error
	UnregisterApp(appName string) error
	RegisterHwConfig(hwID string)
	FetchScenario() *Scenario
	OnScenarioDone(s *Scenario, runningTimes []float64) error
	ReportPercentiles(probeAlias string, percentiles []float64) PercentileReport
	JudgeApp(app *knowledge.Application) JudgeResult
}
