// Package config holds the adaptation controller's tunables. Defaults match
// the environment-like constants of the original system; a kingpin.Application
// can bind flags on top of them the way the teacher's cmd/* entrypoints do.
package config

import (
	"strconv"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

// Config bundles every knob of the MAPE-K loop, the aggregator, and the
// admission/IVIS interfaces.
type Config struct {
	// Kubeconfig is the path to the kubeconfig used to talk to the orchestrator.
	Kubeconfig string
	// ThreadCount is the size of the Executor's worker pool.
	ThreadCount int
	// MongosServerIP is forwarded to SetMongoParameters tasks for sharded components.
	MongosServerIP string
	// CSPDefaultTimeLimit bounds the Analyzer's short/fast solve.
	CSPDefaultTimeLimit time.Duration
	// DefaultHardwareID names the hardware class used when none is supplied.
	DefaultHardwareID string
	// PredictorHost/PredictorPort address the Performance-Data Aggregator service.
	PredictorHost string
	PredictorPort int
	// StatisticalPredictionEnabled toggles the black-box statistical predictor
	// fallback when no measurement exists yet.
	StatisticalPredictionEnabled bool
	// ParallelExecution selects the Executor's concurrent-plan mode.
	ParallelExecution bool
	// APIEndpointIP/APIEndpointPort are handed to workload agents at InitializeInstance.
	APIEndpointIP   string
	APIEndpointPort int
	// DefaultSecretName is the docker registry secret created per namespace.
	DefaultSecretName string
	// ResultsPath is the root directory measurement files are read from/written to.
	ResultsPath string
	// MaxTaskRetries bounds how many times the Executor re-enqueues a failing task
	// within a single cycle before abandoning it.
	MaxTaskRetries int
	// ListenAddr is where the metrics endpoint binds.
	ListenAddr string
}

// Defaults returns the configuration as it would be if every flag were left unset.
func Defaults() Config {
	return Config{
		Kubeconfig:                   "",
		ThreadCount:                  8,
		MongosServerIP:               "127.0.0.1",
		CSPDefaultTimeLimit:          5 * time.Second,
		DefaultHardwareID:            "default",
		PredictorHost:                "0.0.0.0",
		PredictorPort:                7021,
		StatisticalPredictionEnabled: true,
		ParallelExecution:            true,
		APIEndpointIP:                "0.0.0.0",
		APIEndpointPort:              7022,
		DefaultSecretName:            "qoscloud-registry",
		ResultsPath:                  "./results",
		MaxTaskRetries:               3,
		ListenAddr:                   ":62533",
	}
}

// RegisterFlags wires every field above onto a kingpin.Application, following
// the flag-registration idiom used throughout the teacher's cmd/* binaries.
func (c *Config) RegisterFlags(app *kingpin.Application) {
	app.Flag("kubeconfig", "Path to the kubeconfig file used to reach the orchestrator.").
		StringVar(&c.Kubeconfig)
	app.Flag("thread-count", "Size of the executor worker pool.").
		Default(strconv.Itoa(c.ThreadCount)).IntVar(&c.ThreadCount)
	app.Flag("mongos-ip", "IP of the mongos instance used for sharded components.").
		Default(c.MongosServerIP).StringVar(&c.MongosServerIP)
	app.Flag("csp-time-limit", "Time budget for the analyzer's fast solve.").
		Default(c.CSPDefaultTimeLimit.String()).DurationVar(&c.CSPDefaultTimeLimit)
	app.Flag("default-hw-id", "Hardware class id used when none is specified.").
		Default(c.DefaultHardwareID).StringVar(&c.DefaultHardwareID)
	app.Flag("predictor-host", "Host of the performance-data aggregator.").
		Default(c.PredictorHost).StringVar(&c.PredictorHost)
	app.Flag("predictor-port", "Port of the performance-data aggregator.").
		Default(strconv.Itoa(c.PredictorPort)).IntVar(&c.PredictorPort)
	app.Flag("statistical-prediction", "Enable the statistical predictor fallback.").
		Default(strconv.FormatBool(c.StatisticalPredictionEnabled)).BoolVar(&c.StatisticalPredictionEnabled)
	app.Flag("parallel-execution", "Run plans from the executor concurrently.").
		Default(strconv.FormatBool(c.ParallelExecution)).BoolVar(&c.ParallelExecution)
	app.Flag("api-endpoint-ip", "IP of the API endpoint handed to workload agents.").
		Default(c.APIEndpointIP).StringVar(&c.APIEndpointIP)
	app.Flag("api-endpoint-port", "Port of the API endpoint handed to workload agents.").
		Default(strconv.Itoa(c.APIEndpointPort)).IntVar(&c.APIEndpointPort)
	app.Flag("default-secret-name", "Docker registry secret created in each application namespace.").
		Default(c.DefaultSecretName).StringVar(&c.DefaultSecretName)
	app.Flag("results-path", "Root directory measurement files are read from.").
		Default(c.ResultsPath).StringVar(&c.ResultsPath)
	app.Flag("max-task-retries", "How many times a failing task is re-enqueued per cycle.").
		Default(strconv.Itoa(c.MaxTaskRetries)).IntVar(&c.MaxTaskRetries)
	app.Flag("listen-addr", "Address the metrics endpoint binds to.").
		Default(c.ListenAddr).StringVar(&c.ListenAddr)
}
