package predictor

// StatisticalPredictor is the black-box strategy contract spec.md names for
// combinations that have no stored measurement yet: "a predict(hw,
// combination, contract) -> bool contract". The actual model is out of
// scope; this module only needs a stable interface to call into and a
// trivial default implementation for tests and for hardware classes with no
// registered model.
type StatisticalPredictor interface {
	AddHwID(hwID string)
	PredictTime(hwID string, combination []string, timeLimit, percentile float64) bool
	PredictThroughput(hwID string, combination []string, meanRequestTime float64) bool
}

// NullStatisticalPredictor answers every query with "infeasible", matching
// the conservative default the original system falls back to before any
// model has been trained for a hardware class.
type NullStatisticalPredictor struct {
	hwIDs map[string]bool
}

// NewNullStatisticalPredictor returns a predictor with no model for any
// hardware class; AddHwID records a class but does not change its answers.
func NewNullStatisticalPredictor() *NullStatisticalPredictor {
	return &NullStatisticalPredictor{hwIDs: map[string]bool{}}
}

func (p *NullStatisticalPredictor) AddHwID(hwID string) {
	p.hwIDs[hwID] = true
}

func (p *NullStatisticalPredictor) PredictTime(hwID string, combination []string, timeLimit, percentile float64) bool {
	return false
}

// PredictThroughput compares against meanRequestTime exactly like the
// measurement-backed path: mean <= mean_request_time. The null model has no
// actual mean to offer, so it always reports infeasible.
func (p *NullStatisticalPredictor) PredictThroughput(hwID string, combination []string, meanRequestTime float64) bool {
	return false
}
