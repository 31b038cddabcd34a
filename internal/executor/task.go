// Package executor dispatches Planner-emitted tasks once their
// preconditions hold, using a k8s.io/client-go workqueue to get retry and
// rate-limiting semantics for free, exactly the way the teacher's operator
// dispatches reconcile work.
package executor

import (
	"context"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// Precondition is a predicate over the live Knowledge, closed over whatever
// arguments identify the target (application, component, instance).
type Precondition func(k *knowledge.Knowledge) bool

// Task is a single unit of orchestrator work. ID is derived from the task's
// type and target identifiers so the same logical task emitted on
// successive cycles dedups naturally.
type Task struct {
	ID            string
	Preconditions []Precondition
	// Execute performs the orchestrator action, returning true on success.
	// A false return or error means the task failed this cycle and may be
	// retried up to the scheduler's retry budget.
	Execute func(ctx context.Context) (bool, error)
	// UpdateModel runs under the Knowledge write lock after a successful
	// Execute, reflecting the completed action into actual_state.
	UpdateModel func(k *knowledge.Knowledge)
}

// Runnable reports whether every precondition currently holds.
func (t *Task) Runnable(k *knowledge.Knowledge) bool {
	for _, p := range t.Preconditions {
		if !p(k) {
			return false
		}
	}
	return true
}

// NamespaceExists is satisfied once the application's namespace has been
// created (CreateNamespace's update_model sets Application.NamespaceCreated).
func NamespaceExists(appName string) Precondition {
	return func(k *knowledge.Knowledge) bool {
		app := k.Application(appName)
		return app != nil && app.NamespaceCreated
	}
}

// NamespaceActive additionally requires the namespace has not since been
// torn down.
func NamespaceActive(appName string) Precondition {
	return func(k *knowledge.Knowledge) bool {
		app := k.Application(appName)
		return app != nil && app.NamespaceCreated && !app.NamespaceDeleted
	}
}

// CompinExists is satisfied once the named instance is present in
// actual_state.
func CompinExists(appName, compName, instanceID string) Precondition {
	return func(k *knowledge.Knowledge) bool {
		return k.ActualState().GetCompin(appName, compName, instanceID) != nil
	}
}

// ApplicationDeployed is satisfied once the application's docker secret has
// been created (a prerequisite for any CreateDeployment in that namespace).
func ApplicationDeployed(appName string) Precondition {
	return func(k *knowledge.Knowledge) bool {
		app := k.Application(appName)
		return app != nil && app.SecretAdded
	}
}

// CheckPhase is satisfied once the named managed instance's phase is at
// least minimum.
func CheckPhase(appName, compName, instanceID string, minimum knowledge.CompinPhase) Precondition {
	return func(k *knowledge.Knowledge) bool {
		mc := k.ActualState().GetManagedCompin(appName, compName, instanceID)
		return mc != nil && mc.Phase >= minimum
	}
}
