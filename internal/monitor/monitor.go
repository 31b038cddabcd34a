// Package monitor implements the MONITOR phase of the adaptation loop: a
// fixed-order composite of sub-monitors that each pull live facts from one
// source (orchestrator, workload agents, client/UE feeds) and write them
// into Knowledge.actual_state. No sub-monitor may block the loop
// indefinitely -- each call is wrapped in its own context deadline, the way
// the teacher bounds informer/webhook calls.
package monitor

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// SubMonitor is one source of live facts. Implementations must only ever
// call Knowledge.MutateActualState (never install a new CloudState wholesale)
// so sub-monitors compose without clobbering each other's writes.
type SubMonitor interface {
	Name() string
	Monitor(ctx context.Context, k *knowledge.Knowledge) error
}

// TopLevelMonitor runs its sub-monitors in a fixed order every cycle:
// orchestrator facts first (pod phase/IP/node), then application-agent
// readiness (depends on the instance already existing), then client/UE
// arrivals last (dependency binding needs a stable compin set to attach to).
type TopLevelMonitor struct {
	logger  log.Logger
	subs    []SubMonitor
	timeout time.Duration
}

// New constructs a TopLevelMonitor. perCallTimeout bounds every individual
// sub-monitor invocation; a sub-monitor that exceeds it is logged and
// skipped for this cycle rather than blocking the others.
func New(logger log.Logger, perCallTimeout time.Duration, subs ...SubMonitor) *TopLevelMonitor {
	return &TopLevelMonitor{logger: logger, subs: subs, timeout: perCallTimeout}
}

// Monitor runs every sub-monitor in registration order, collecting but not
// stopping on individual errors -- one failed source should not prevent the
// others from refreshing Knowledge this cycle.
func (m *TopLevelMonitor) Monitor(ctx context.Context, k *knowledge.Knowledge) error {
	var firstErr error
	for _, sub := range m.subs {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := sub.Monitor(callCtx, k)
		cancel()
		if err != nil {
			level.Warn(m.logger).Log("msg", "sub-monitor failed", "monitor", sub.Name(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
