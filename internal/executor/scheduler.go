package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"k8s.io/client-go/util/workqueue"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// Scheduler dispatches one plan's tasks, honoring preconditions and the
// re-enqueue-then-abandon retry rule. Grounded directly on the teacher's
// Operator.queue field (pkg/operator/operator.go): a
// workqueue.RateLimitingInterface gives AddRateLimited/NumRequeues/Forget
// for free instead of a hand-rolled retry counter.
type Scheduler struct {
	logger      log.Logger
	knowledge   *knowledge.Knowledge
	workerCount int
	maxRetries  int
	parallel    bool
}

// New constructs a Scheduler bound to the shared Knowledge.
func New(logger log.Logger, k *knowledge.Knowledge, workerCount, maxRetries int, parallel bool) *Scheduler {
	return &Scheduler{logger: logger, knowledge: k, workerCount: workerCount, maxRetries: maxRetries, parallel: parallel}
}

// RunCycle dispatches tasks until every task has either completed or been
// abandoned after exhausting its retry budget, then returns. Tasks whose
// preconditions are not yet satisfied are re-queued without counting
// against the retry budget as harshly as an outright execution failure,
// approximated here (as the teacher's workqueue does not distinguish
// "waiting for a dependency" from "failed") by using the same rate-limited
// backoff for both; a precondition that can never become true will
// eventually be abandoned once NumRequeues crosses maxRetries, matching the
// "abandon, re-derive next cycle" rule in spirit.
func (s *Scheduler) RunCycle(ctx context.Context, tasks []*Task) {
	if len(tasks) == 0 {
		return
	}

	queue := workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter())
	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			continue
		}
		byID[t.ID] = t
		queue.Add(t.ID)
	}

	var pending int32 = int32(len(byID))

	workers := 1
	if s.parallel {
		workers = s.workerCount
		if workers < 1 {
			workers = 1
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, shutdown := queue.Get()
				if shutdown {
					return
				}
				id := item.(string)
				s.process(ctx, queue, byID[id], id, &pending)
			}
		}()
	}
	wg.Wait()
}

func (s *Scheduler) process(ctx context.Context, queue workqueue.RateLimitingInterface, t *Task, id string, pending *int32) {
	defer queue.Done(id)

	if t == nil {
		queue.Forget(id)
		return
	}

	if !t.Runnable(s.knowledge) {
		if queue.NumRequeues(id) >= s.maxRetries {
			level.Warn(s.logger).Log("msg", "task abandoned for this cycle: preconditions never held", "task", id)
			queue.Forget(id)
			if atomic.AddInt32(pending, -1) == 0 {
				queue.ShutDown()
			}
			return
		}
		queue.AddRateLimited(id)
		return
	}

	ok, err := t.Execute(ctx)
	if err != nil {
		level.Warn(s.logger).Log("msg", "task execution error", "task", id, "err", err)
	}
	if ok {
		if t.UpdateModel != nil {
			t.UpdateModel(s.knowledge)
		}
		queue.Forget(id)
		if atomic.AddInt32(pending, -1) == 0 {
			queue.ShutDown()
		}
		return
	}

	if queue.NumRequeues(id) >= s.maxRetries {
		level.Warn(s.logger).Log("msg", "task abandoned for this cycle", "task", id, "retries", queue.NumRequeues(id))
		queue.Forget(id)
		if atomic.AddInt32(pending, -1) == 0 {
			queue.ShutDown()
		}
		return
	}
	queue.AddRateLimited(id)
}
