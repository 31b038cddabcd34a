// Command aggregator runs the Performance-Data Aggregator as a standalone
// process: the scenario queue and measurement store that benchmarking
// workers feed and the Analyzer/admission flow query, exposed over a small
// JSON API the way the teacher exposes its own collectors over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qoscloud/adaptation-controller/internal/config"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

func main() {
	cfg := config.Defaults()

	a := kingpin.New("aggregator", "The QosCloud performance-data aggregator")
	a.HelpFlag.Short('h')
	logLevel := a.Flag("log.level", "One of 'debug', 'info', 'warn', 'error'.").Default("info").
		Enum("debug", "info", "warn", "error")
	cfg.RegisterFlags(a)

	if _, err := a.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "parsing command line arguments:", err)
		a.Usage(os.Args[1:])
		os.Exit(2)
	}

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	switch strings.ToLower(*logLevel) {
	case "debug":
		logger = level.NewFilter(logger, level.AllowDebug())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	agg := predictor.NewAggregator(cfg.DefaultHardwareID, cfg.StatisticalPredictionEnabled, nil)
	addr := fmt.Sprintf("%s:%d", cfg.PredictorHost, cfg.PredictorPort)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/scenario", scenarioHandler(logger, agg))
	mux.HandleFunc("/scenario/result", scenarioResultHandler(logger, agg))
	mux.HandleFunc("/percentiles", percentilesHandler(logger, agg))

	server := &http.Server{Addr: addr, Handler: mux}

	var g run.Group
	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)
		g.Add(func() error {
			select {
			case <-term:
				_ = level.Info(logger).Log("msg", "received termination signal, exiting gracefully...")
			case <-cancel:
			}
			return nil
		}, func(error) {
			close(cancel)
		})
	}
	{
		g.Add(func() error {
			_ = level.Info(logger).Log("msg", "listening", "addr", addr)
			return server.ListenAndServe()
		}, func(error) {
			_ = server.Close()
		})
	}

	if err := g.Run(); err != nil {
		_ = level.Error(logger).Log("msg", "exiting", "err", err)
		os.Exit(1)
	}
}

// scenarioHandler hands a benchmarking worker its next pending scenario, if
// any, as the scenario queue's one consumer-facing endpoint.
func scenarioHandler(logger log.Logger, agg *predictor.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := agg.FetchScenario()
		if s == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := json.NewEncoder(w).Encode(s); err != nil {
			_ = level.Warn(logger).Log("msg", "encoding scenario response", "err", err)
		}
	}
}

type scenarioResult struct {
	Scenario     *predictor.Scenario `json:"scenario"`
	RunningTimes []float64           `json:"running_times"`
}

// scenarioResultHandler records a worker's completed measurement run.
func scenarioResultHandler(logger log.Logger, agg *predictor.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var res scenarioResult
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := agg.OnScenarioDone(res.Scenario, res.RunningTimes); err != nil {
			_ = level.Warn(logger).Log("msg", "recording scenario result", "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// percentilesHandler answers a probe's latest measured percentile report,
// the HTTP counterpart of ReportPercentiles.
func percentilesHandler(logger log.Logger, agg *predictor.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alias := r.URL.Query().Get("probe_alias")
		if alias == "" {
			http.Error(w, "missing probe_alias", http.StatusBadRequest)
			return
		}
		var percentiles []float64
		for _, raw := range strings.Split(r.URL.Query().Get("percentiles"), ",") {
			if raw == "" {
				continue
			}
			p, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				http.Error(w, "invalid percentile "+raw, http.StatusBadRequest)
				return
			}
			percentiles = append(percentiles, p)
		}
		report := agg.ReportPercentiles(alias, percentiles)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			_ = level.Warn(logger).Log("msg", "encoding percentiles response", "err", err)
		}
	}
}
