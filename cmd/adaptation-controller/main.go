// Command adaptation-controller runs the MAPE-K adaptation loop: it wires
// Knowledge, the Monitor, the Analyzer, the Planner and the Executor into a
// single periodic cycle, the way the teacher's rule-evaluator wires its
// rule manager, notifier and discovery manager into one process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/qoscloud/adaptation-controller/internal/admission"
	"github.com/qoscloud/adaptation-controller/internal/analyzer"
	"github.com/qoscloud/adaptation-controller/internal/config"
	"github.com/qoscloud/adaptation-controller/internal/executor"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/monitor"
	"github.com/qoscloud/adaptation-controller/internal/orchestrator"
	"github.com/qoscloud/adaptation-controller/internal/planner"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

func main() {
	cfg := config.Defaults()

	a := kingpin.New("adaptation-controller", "The QosCloud MAPE-K adaptation controller")
	a.HelpFlag.Short('h')
	logLevel := a.Flag("log.level", "One of 'debug', 'info', 'warn', 'error'.").Default("info").
		Enum("debug", "info", "warn", "error")
	cycleInterval := a.Flag("cycle-interval", "How often the MAPE-K loop runs one cycle.").
		Default("10s").Duration()
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

	k := knowledge.New()
	pred := predictor.NewAggregator(cfg.DefaultHardwareID, cfg.StatisticalPredictionEnabled, nil)

	orchClient, err := newK8sClient(cfg.Kubeconfig)
	if err != nil {
		_ = level.Error(logger).Log("msg", "building orchestrator client", "err", err)
		os.Exit(1)
	}

	mon := monitor.New(logger, 5*time.Second,
		monitor.NewKubernetesMonitor(orchClient, 10, 20),
		// ApplicationMonitor, ClientMonitor and UEMonitor each need a
		// MiddlewareAgent/UE transport client, the same out-of-scope seam
		// as orchestrator.Client's InitializeInstance/SetMiddlewareAddress;
		// this binary runs with cluster-placement observation only until
		// that transport is supplied.
	)
	an := analyzer.New(logger, k, pred, cfg.CSPDefaultTimeLimit)
	apiEndpoint := fmt.Sprintf("%s:%d", cfg.APIEndpointIP, cfg.APIEndpointPort)
	plan := planner.New(orchClient, cfg.MongosServerIP, apiEndpoint, cfg.DefaultSecretName)
	exec := executor.New(logger, k, cfg.ThreadCount, cfg.MaxTaskRetries, cfg.ParallelExecution)
	// admission.Controller implements DeployController/IvisInterface; binding
	// it to a concrete gRPC/HTTP transport is the same out-of-scope seam as
	// the MiddlewareAgent RPCs on orchestrator.Client.
	_ = admission.New(k, pred)

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
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			runMapeKLoop(ctx, logger, *cycleInterval, k, mon, an, plan, exec)
			return nil
		}, func(error) {
			cancel()
		})
	}
	{
		server := &http.Server{Addr: cfg.ListenAddr}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server.Handler = mux
		g.Add(func() error {
			_ = level.Info(logger).Log("msg", "listening", "addr", cfg.ListenAddr)
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

// runMapeKLoop runs Monitor->Analyze->Plan->Execute once per interval,
// sequentially, until ctx is cancelled -- one control thread per cycle, as
// the adaptation loop requires.
func runMapeKLoop(ctx context.Context, logger log.Logger, interval time.Duration, k *knowledge.Knowledge, mon *monitor.TopLevelMonitor, an *analyzer.Analyzer, plan *planner.Planner, exec *executor.Scheduler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCycle(ctx, logger, k, mon, an, plan, exec)
		}
	}
}

func runCycle(ctx context.Context, logger log.Logger, k *knowledge.Knowledge, mon *monitor.TopLevelMonitor, an *analyzer.Analyzer, plan *planner.Planner, exec *executor.Scheduler) {
	if err := mon.Monitor(ctx, k); err != nil {
		_ = level.Warn(logger).Log("msg", "monitor cycle reported errors", "err", err)
	}
	desired := an.Analyze()
	apps := map[string]*knowledge.Application{}
	for _, app := range k.Applications() {
		apps[app.Name] = app
	}
	tasks := plan.Plan(k, k.ActualState(), desired, apps)
	exec.RunCycle(ctx, tasks)
}

// newK8sClient builds a real controller-runtime client from kubeconfigPath,
// or from in-cluster config when it is empty, the way any controller-runtime
// manager would be bootstrapped.
func newK8sClient(kubeconfigPath string) (*orchestrator.K8sClient, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("building kubeconfig: %w", err)
	}
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("registering client-go scheme: %w", err)
	}
	cli, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("constructing controller-runtime client: %w", err)
	}
	return orchestrator.NewK8sClient(cli), nil
}
