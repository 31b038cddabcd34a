// Package planner diffs the desired CloudState against actual_state and
// emits the set of tasks that transform one into the other. Ordering is
// encoded entirely through each Task's preconditions; the Planner emits an
// unordered set and the Executor discovers a legal order.
package planner

import (
	"context"
	"fmt"

	"github.com/qoscloud/adaptation-controller/internal/executor"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/orchestrator"
)

// Planner builds task sets from a knowledge.Diff.
type Planner struct {
	orch              orchestrator.Client
	mongosIP          string
	apiEndpoint       string
	defaultSecretName string
}

// New constructs a Planner bound to the orchestrator client and the
// ambient configuration its tasks need (mongos address, API endpoint,
// default registry secret name).
func New(orch orchestrator.Client, mongosIP, apiEndpoint, defaultSecretName string) *Planner {
	return &Planner{orch: orch, mongosIP: mongosIP, apiEndpoint: apiEndpoint, defaultSecretName: defaultSecretName}
}

// Plan computes the task set transforming actual into desired, given the
// applications registry (for namespace/secret/template bookkeeping and
// dependency resolution). Whether a deletion removes the last instance of
// its application is counted from actual.
func (p *Planner) Plan(k *knowledge.Knowledge, actual, desired *knowledge.CloudState, apps map[string]*knowledge.Application) []*executor.Task {
	diff := knowledge.DiffStates(actual, desired)

	var tasks []*executor.Task
	for _, mc := range diff.ToCreate {
		tasks = append(tasks, p.createTasks(k, mc, apps[mc.AppName], desired)...)
	}
	for _, mc := range diff.ToDelete {
		tasks = append(tasks, p.deleteTasks(mc, actual, apps[mc.AppName])...)
	}
	for _, c := range diff.DependencyChanges {
		tasks = append(tasks, p.dependencyChangeTasks(c, desired, apps[c.ApplicationName()])...)
	}
	tasks = append(tasks, p.updateTasks(actual, desired, apps)...)
	return tasks
}

func taskID(kind, appName, compName, instanceID string) string {
	return fmt.Sprintf("%s:%s/%s/%s", kind, appName, compName, instanceID)
}

// createTasks emits the creation sequence for a single desired instance:
// CreateNamespace (if new) -> CreateDockerSecret -> CreateService ->
// CreateDeployment -> InitializeInstance -> SetMongoParameters (if sharded)
// -> SetMiddlewareAddress for each resolved dependency.
func (p *Planner) createTasks(k *knowledge.Knowledge, mc *knowledge.ManagedCompin, app *knowledge.Application, desired *knowledge.CloudState) []*executor.Task {
	if app == nil {
		return nil
	}
	comp := app.Components[mc.CompName]
	appName, compName, id := mc.AppName, mc.CompName, mc.ID

	var tasks []*executor.Task

	nsTask := &executor.Task{
		ID:      taskID("CreateNamespace", appName, "", ""),
		Execute: func(ctx context.Context) (bool, error) { return ok(p.orch.CreateNamespace(ctx, appName)) },
		UpdateModel: func(k *knowledge.Knowledge) {
			if a := k.Application(appName); a != nil {
				a.NamespaceCreated = true
			}
		},
	}
	if !app.NamespaceCreated {
		tasks = append(tasks, nsTask)
	}

	secretTask := &executor.Task{
		ID:            taskID("CreateDockerSecret", appName, "", ""),
		Preconditions: []executor.Precondition{executor.NamespaceActive(appName)},
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.CreateDockerSecret(ctx, appName, p.defaultSecretName))
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			if a := k.Application(appName); a != nil {
				a.SecretAdded = true
			}
		},
	}
	tasks = append(tasks, secretTask)

	serviceTask := &executor.Task{
		ID:            taskID("CreateService", appName, compName, ""),
		Preconditions: []executor.Precondition{executor.NamespaceActive(appName)},
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.CreateService(ctx, appName, compName))
		},
	}
	tasks = append(tasks, serviceTask)

	template := ""
	if comp != nil {
		template = comp.DeploymentTemplate
	}
	deployTask := &executor.Task{
		ID: taskID("CreateDeployment", appName, compName, id),
		Preconditions: []executor.Precondition{
			executor.ApplicationDeployed(appName),
			executor.NamespaceActive(appName),
		},
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.CreateDeployment(ctx, mc, template))
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			mc.DeployedTemplate = template
			k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(mc) })
		},
	}
	tasks = append(tasks, deployTask)

	initTask := &executor.Task{
		ID:            taskID("InitializeInstance", appName, compName, id),
		Preconditions: []executor.Precondition{executor.CompinExists(appName, compName, id)},
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.InitializeInstance(ctx, mc, p.apiEndpoint))
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			k.MutateActualState(func(cs *knowledge.CloudState) {
				if live := cs.GetManagedCompin(appName, compName, id); live != nil {
					_ = live.SetPhase(knowledge.PhaseInit)
				}
			})
		},
	}
	tasks = append(tasks, initTask)

	if comp != nil && comp.Sharded {
		mongoTask := &executor.Task{
			ID:            taskID("SetMongoParameters", appName, compName, id),
			Preconditions: []executor.Precondition{executor.CheckPhase(appName, compName, id, knowledge.PhaseInit)},
			Execute: func(ctx context.Context) (bool, error) {
				return ok(p.orch.SetMongoParameters(ctx, mc, p.mongosIP))
			},
			UpdateModel: func(k *knowledge.Knowledge) {
				k.MutateActualState(func(cs *knowledge.CloudState) {
					if live := cs.GetManagedCompin(appName, compName, id); live != nil {
						live.MongoInitCompleted = true
					}
				})
			},
		}
		tasks = append(tasks, mongoTask)
	}

	for _, dep := range mc.Deps {
		tasks = append(tasks, p.setMiddlewareAddressTask(mc, dep, desired))
	}

	return tasks
}

func (p *Planner) setMiddlewareAddressTask(dependent *knowledge.ManagedCompin, dep *knowledge.Dependency, desired *knowledge.CloudState) *executor.Task {
	appName, compName, id := dependent.AppName, dependent.CompName, dependent.ID
	providerCompName, providerID := dep.ComponentName, dep.InstanceID
	return &executor.Task{
		ID: taskID("SetMiddlewareAddress", appName, compName, id+"->"+providerCompName),
		Preconditions: []executor.Precondition{
			executor.CheckPhase(appName, compName, id, knowledge.PhaseInit),
			executor.CheckPhase(appName, providerCompName, providerID, knowledge.PhaseReady),
		},
		Execute: func(ctx context.Context) (bool, error) {
			provider := desired.GetManagedCompin(appName, providerCompName, providerID)
			ip := ""
			if provider != nil {
				ip = provider.IP
			}
			return ok(p.orch.SetMiddlewareAddress(ctx, appName, compName, id, providerCompName, ip))
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			k.MutateActualState(func(cs *knowledge.CloudState) {
				cs.SetDependency(appName, compName, id, providerCompName, providerID)
			})
		},
	}
}

// deleteTasks emits the teardown sequence for an actual instance absent
// from desired and not force_keep: Finalize -> (wait phase>=FINISHED) ->
// DeleteDeployment and DeleteService, which both wait only for FINISHED, so
// their relative order is not fixed. If it is the last instance of its
// application, DeleteDockerSecret follows once the instance is gone from
// actual_state, and DeleteNamespace once the secret is gone as well.
func (p *Planner) deleteTasks(mc *knowledge.ManagedCompin, actual *knowledge.CloudState, app *knowledge.Application) []*executor.Task {
	appName, compName, id := mc.AppName, mc.CompName, mc.ID
	var tasks []*executor.Task

	finalizeTask := &executor.Task{
		ID: taskID("Finalize", appName, compName, id),
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.Finalize(ctx, mc))
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			k.MutateActualState(func(cs *knowledge.CloudState) {
				if live := cs.GetManagedCompin(appName, compName, id); live != nil {
					_ = live.SetPhase(knowledge.PhaseFinalizing)
				}
			})
		},
	}
	tasks = append(tasks, finalizeTask)

	deleteDeploymentTask := &executor.Task{
		ID:            taskID("DeleteDeployment", appName, compName, id),
		Preconditions: []executor.Precondition{executor.CheckPhase(appName, compName, id, knowledge.PhaseFinished)},
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.DeleteDeployment(ctx, mc))
		},
	}
	tasks = append(tasks, deleteDeploymentTask)

	deleteServiceTask := &executor.Task{
		ID:            taskID("DeleteService", appName, compName, id),
		Preconditions: []executor.Precondition{executor.CheckPhase(appName, compName, id, knowledge.PhaseFinished)},
		Execute: func(ctx context.Context) (bool, error) {
			return ok(p.orch.DeleteService(ctx, appName, compName, id))
		},
		UpdateModel: func(k *knowledge.Knowledge) {
			k.MutateActualState(func(cs *knowledge.CloudState) { cs.RemoveCompin(appName, compName, id) })
		},
	}
	tasks = append(tasks, deleteServiceTask)

	if app != nil && isLastInstance(actual, appName, id) {
		instanceGone := func(k *knowledge.Knowledge) bool {
			return k.ActualState().GetCompin(appName, compName, id) == nil
		}
		secretGone := func(k *knowledge.Knowledge) bool {
			a := k.Application(appName)
			return a == nil || !a.SecretAdded
		}
		deleteSecretTask := &executor.Task{
			ID:            taskID("DeleteDockerSecret", appName, "", ""),
			Preconditions: []executor.Precondition{instanceGone},
			Execute: func(ctx context.Context) (bool, error) {
				return ok(p.orch.DeleteDockerSecret(ctx, appName, p.defaultSecretName))
			},
			UpdateModel: func(k *knowledge.Knowledge) {
				if a := k.Application(appName); a != nil {
					a.SecretAdded = false
				}
			},
		}
		deleteNamespaceTask := &executor.Task{
			ID:            taskID("DeleteNamespace", appName, "", ""),
			Preconditions: []executor.Precondition{instanceGone, secretGone},
			Execute: func(ctx context.Context) (bool, error) {
				return ok(p.orch.DeleteNamespace(ctx, appName))
			},
			UpdateModel: func(k *knowledge.Knowledge) {
				if a := k.Application(appName); a != nil {
					a.NamespaceDeleted = true
					a.NamespaceCreated = false
				}
			},
		}
		tasks = append(tasks, deleteSecretTask, deleteNamespaceTask)
	}

	return tasks
}

func isLastInstance(actual *knowledge.CloudState, appName, excludingID string) bool {
	count := 0
	for _, compName := range actual.ListComponents(appName) {
		for _, id := range actual.ListInstances(appName, compName) {
			if id == excludingID {
				continue
			}
			if _, ok := actual.GetCompin(appName, compName, id).(*knowledge.ManagedCompin); ok {
				count++
			}
		}
	}
	return count == 0
}

// dependencyChangeTasks emits SetMiddlewareAddress for a client whose
// dependency binding changed in desired_state, once the new provider is
// READY.
func (p *Planner) dependencyChangeTasks(c knowledge.Compin, desired *knowledge.CloudState, app *knowledge.Application) []*executor.Task {
	var tasks []*executor.Task
	for _, dep := range c.Dependencies() {
		provider := desired.GetManagedCompin(c.ApplicationName(), dep.ComponentName, dep.InstanceID)
		if provider == nil {
			continue
		}
		appName, compName, id := c.ApplicationName(), c.ComponentName(), c.InstanceID()
		providerCompName, providerID := dep.ComponentName, dep.InstanceID
		tasks = append(tasks, &executor.Task{
			ID: taskID("SetMiddlewareAddress", appName, compName, id+"->"+providerCompName),
			Preconditions: []executor.Precondition{
				executor.CheckPhase(appName, providerCompName, providerID, knowledge.PhaseReady),
			},
			Execute: func(ctx context.Context) (bool, error) {
				return ok(p.orch.SetMiddlewareAddress(ctx, appName, compName, id, providerCompName, provider.IP))
			},
		})
	}
	return tasks
}

// updateTasks emits UpdateDeployment for every actual instance whose
// desired component's deployment template differs from the template it was
// last created with. Templates live on Component, not Compin, so this reads
// Knowledge.Applications directly rather than through knowledge.Diff.
func (p *Planner) updateTasks(actual, desired *knowledge.CloudState, apps map[string]*knowledge.Application) []*executor.Task {
	var tasks []*executor.Task
	for _, appName := range actual.ListApplications() {
		app := apps[appName]
		if app == nil {
			continue
		}
		for _, compName := range actual.ListComponents(appName) {
			comp := app.Components[compName]
			if comp == nil {
				continue
			}
			for _, id := range actual.ListInstances(appName, compName) {
				mc, ok := actual.GetCompin(appName, compName, id).(*knowledge.ManagedCompin)
				if !ok {
					continue
				}
				if desired.GetCompin(appName, compName, id) == nil {
					continue // being deleted this cycle, not updated
				}
				if mc.DeployedTemplate == comp.DeploymentTemplate {
					continue // no drift, nothing to update
				}
				template := comp.DeploymentTemplate
				tasks = append(tasks, &executor.Task{
					ID:            taskID("UpdateDeployment", appName, compName, id),
					Preconditions: []executor.Precondition{executor.CompinExists(appName, compName, id)},
					Execute: func(ctx context.Context) (bool, error) {
						return ok(p.orch.UpdateDeployment(ctx, mc, template))
					},
					UpdateModel: func(k *knowledge.Knowledge) {
						mc.DeployedTemplate = template
					},
				})
			}
		}
	}
	return tasks
}

func ok(err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return true, nil
}
