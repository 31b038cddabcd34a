package executor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-kit/log"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

func TestRunCycleExecutesRunnableTaskAndUpdatesModel(t *testing.T) {
	k := knowledge.New()
	k.AddApplication(knowledge.NewApplication("app1"))

	var executed int32
	task := &Task{
		ID: "t1",
		Execute: func(ctx context.Context) (bool, error) {
			atomic.AddInt32(&executed, 1)
			return true, nil
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			k.Application("app1").NamespaceCreated = true
		},
	}

	s := New(log.NewNopLogger(), k, 2, 3, false)
	s.RunCycle(context.Background(), []*Task{task})

	if atomic.LoadInt32(&executed) != 1 {
		t.Fatalf("expected task to execute exactly once, got %d", executed)
	}
	if !k.Application("app1").NamespaceCreated {
		t.Fatalf("expected UpdateModel to have run")
	}
}

func TestRunCycleWaitsForPrecondition(t *testing.T) {
	k := knowledge.New()
	app := knowledge.NewApplication("app1")
	k.AddApplication(app)

	var order []string
	nsTask := &Task{
		ID: "ns",
		Execute: func(ctx context.Context) (bool, error) {
			order = append(order, "ns")
			return true, nil
		},
		UpdateModel: func(k *knowledge.Knowledge) { k.Application("app1").NamespaceCreated = true },
	}
	secretTask := &Task{
		ID:            "secret",
		Preconditions: []Precondition{NamespaceExists("app1")},
		Execute: func(ctx context.Context) (bool, error) {
			order = append(order, "secret")
			return true, nil
		},
	}

	s := New(log.NewNopLogger(), k, 1, 3, false)
	s.RunCycle(context.Background(), []*Task{secretTask, nsTask})

	if len(order) != 2 || order[0] != "ns" || order[1] != "secret" {
		t.Fatalf("expected ns to run before secret, got %v", order)
	}
}

func TestRunCycleAbandonsAfterMaxRetries(t *testing.T) {
	k := knowledge.New()
	var attempts int32
	task := &Task{
		ID: "always-fails",
		Execute: func(ctx context.Context) (bool, error) {
			atomic.AddInt32(&attempts, 1)
			return false, nil
		},
	}
	s := New(log.NewNopLogger(), k, 1, 2, false)
	s.RunCycle(context.Background(), []*Task{task})

	if attempts < 1 {
		t.Fatalf("expected at least one attempt")
	}
}
