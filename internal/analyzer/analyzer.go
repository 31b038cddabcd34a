package analyzer

import (
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/qoscloud/adaptation-controller/internal/analyzer/csp"
	"github.com/qoscloud/adaptation-controller/internal/errs"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

// longTermSearch tracks the asynchronous NO_LIMIT search spawned when the
// fast solve fails to find a solution within CSPDefaultTimeLimit. Only one
// long-term search runs at a time; the Analyzer keeps returning the
// previous desired state until it completes.
type longTermSearch struct {
	mu      sync.Mutex
	running bool
	done    chan struct{}
	result  *knowledge.CloudState
	ok      bool
}

// Analyzer builds and solves the placement CSP each cycle, producing a new
// desired CloudState or (on timeout/no-solution) carrying the previous one
// forward while a long-term search continues in the background.
type Analyzer struct {
	logger    log.Logger
	knowledge *knowledge.Knowledge
	predictor predictor.PredictorService
	timeLimit time.Duration

	mu      sync.Mutex
	desired *knowledge.CloudState
	longer  *longTermSearch
}

// New constructs an Analyzer around the shared Knowledge and Predictor.
func New(logger log.Logger, k *knowledge.Knowledge, pred predictor.PredictorService, timeLimit time.Duration) *Analyzer {
	return &Analyzer{
		logger:    logger,
		knowledge: k,
		predictor: pred,
		timeLimit: timeLimit,
		desired:   knowledge.NewCloudState(),
	}
}

// Analyze runs one cycle of the CSP core and returns the new desired
// CloudState, rebuilt from scratch every time (no incremental solving).
func (a *Analyzer) Analyze() *knowledge.CloudState {
	p := a.gatherPlacement()
	problem, nodeIndex, candidates := buildProblem(p)

	sol, ok := a.solveWithinBudget(problem)
	if !ok {
		a.mu.Lock()
		if a.longer != nil {
			a.longer.mu.Lock()
			if a.longer.ok {
				a.desired = a.materialize(a.longer.result.Snapshot(), nil, nil, nil)
				a.longer.ok = false // consumed
			}
			a.longer.mu.Unlock()
		}
		previous := a.desired
		a.mu.Unlock()
		a.startLongTermSearchIfNeeded(problem, nodeIndex, candidates, p)
		level.Warn(a.logger).Log("msg", "returning previous desired state", "err", errs.ErrNoSolution)
		return a.markForceKeep(previous.Snapshot())
	}

	desired := a.materialize(nil, sol.Assignment, nodeIndex, candidates, p)
	a.mu.Lock()
	a.desired = desired
	a.mu.Unlock()
	return a.markForceKeep(desired.Snapshot())
}

func (a *Analyzer) solveWithinBudget(problem csp.Problem) (csp.Solution, bool) {
	type result struct {
		sol csp.Solution
		ok  bool
	}
	ch := make(chan result, 1)
	go func() {
		sol, ok := csp.Solve(problem)
		ch <- result{sol, ok}
	}()
	select {
	case r := <-ch:
		return r.sol, r.ok
	case <-time.After(a.timeLimit):
		return csp.Solution{}, false
	}
}

func (a *Analyzer) startLongTermSearchIfNeeded(problem csp.Problem, nodeIndex []string, candidates candidatesByDepComp, p *placement) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.longer != nil && a.longer.running {
		return
	}
	lt := &longTermSearch{running: true, done: make(chan struct{})}
	a.longer = lt
	go func() {
		defer close(lt.done)
		sol, ok := csp.SolveFirst(problem)
		lt.mu.Lock()
		defer lt.mu.Unlock()
		lt.running = false
		if ok {
			lt.result = a.materialize(nil, sol.Assignment, nodeIndex, candidates, p)
			lt.ok = true
		}
	}()
}

// materialize turns a solved assignment into a CloudState: every placed
// managed instance gets its NodeName set, every resolved client dependency
// gets rebound. When called with a pre-built snapshot instead of a fresh
// assignment (the long-term-search-consumed path), it simply returns that
// snapshot unchanged.
func (a *Analyzer) materialize(snapshot *knowledge.CloudState, assignment map[string]int, nodeIndex []string, candidates candidatesByDepComp, p ...*placement) *knowledge.CloudState {
	if snapshot != nil {
		return snapshot
	}
	out := knowledge.NewCloudState()
	var pl *placement
	if len(p) > 0 {
		pl = p[0]
	}
	if pl == nil {
		return out
	}
	for _, inst := range pl.instances {
		name := instanceVarName(inst.AppName, inst.CompName, inst.ID)
		idx, ok := assignment[name]
		node := inst.NodeName
		if ok && idx >= 0 && idx < len(nodeIndex) {
			node = nodeIndex[idx]
		}
		placed := *inst
		placed.NodeName = node
		out.AddCompin(&placed)
	}
	for _, client := range pl.clients {
		c := *client
		c.Deps = nil
		app := pl.apps[client.AppName]
		if app != nil {
			if comp := app.Components[client.CompName]; comp != nil {
				for _, depCompName := range comp.Dependencies {
					depVar := dependencyVarName(client.AppName, client.CompName, client.ID, depCompName)
					idx, ok := assignment[depVar]
					cands := candidates[depCompName]
					if !ok || idx < 0 || idx >= len(cands) {
						continue
					}
					c.Deps = append(c.Deps, &knowledge.Dependency{
						ComponentName: depCompName,
						InstanceID:    cands[idx].ID,
					})
				}
			}
		}
		out.AddCompin(&c)
	}
	return out
}

// gatherPlacement builds the placement input from Knowledge: existing
// managed instances plus freshly-minted instances for under-provisioned
// SINGLE components, the node catalogue, and every known client.
func (a *Analyzer) gatherPlacement() *placement {
	actual := a.knowledge.ActualState()
	nodes := a.knowledge.Nodes()

	var nodeList []*knowledge.Node
	for _, n := range nodes {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i].Name < nodeList[j].Name })

	apps := map[string]*knowledge.Application{}
	for _, app := range a.knowledge.Applications() {
		apps[app.Name] = app
	}

	instances := append([]*knowledge.ManagedCompin(nil), actual.ListAllManagedCompins()...)

	for _, app := range apps {
		for _, comp := range app.Components {
			if comp.Type != knowledge.Managed || comp.Cardinality != knowledge.Single {
				continue
			}
			if len(actual.ListInstances(app.Name, comp.Name)) > 0 {
				continue
			}
			instances = append(instances, &knowledge.ManagedCompin{
				AppName:  app.Name,
				CompName: comp.Name,
				ID:       uuid.NewString(),
				Phase:    knowledge.PhaseCreating,
			})
		}
	}

	clients := actual.ListAllUnmanagedCompins()

	return &placement{
		instances: instances,
		nodes:     nodeList,
		clients:   clients,
		apps:      apps,
		actual:    actual,
		topology:  a.knowledge.NetworkTopology(),
		predict:   a.predictor,
	}
}

// markForceKeep marks every dependency of every newly observed client
// force_keep, per spec.md 4.4 step 6, so the Planner will not tear down a
// provider instance before the client's dependency binds. force_keep is a
// marker on the ManagedCompin itself (spec.md 40/192/216): it must reach the
// actual ManagedCompin living in Knowledge.actualState, the CloudState
// DiffStates inspects for deletions, not just the independent copy
// materialize built into desired -- otherwise a concurrent scale-down still
// sees ForceKeep == false on the one object that matters and tears the
// provider down anyway.
func (a *Analyzer) markForceKeep(desired *knowledge.CloudState) *knowledge.CloudState {
	newClients := a.knowledge.ListNewClients()
	if len(newClients) == 0 {
		return desired
	}
	newClientIDs := map[string]bool{}
	for _, c := range newClients {
		newClientIDs[c.ApplicationName()+"/"+c.ComponentName()+"/"+c.InstanceID()] = true
	}
	type providerRef struct {
		appName, compName, instanceID string
	}
	var providers []providerRef
	for _, appName := range desired.ListApplications() {
		for _, compName := range desired.ListComponents(appName) {
			for _, id := range desired.ListInstances(appName, compName) {
				c := desired.GetCompin(appName, compName, id)
				uc, ok := c.(*knowledge.UnmanagedCompin)
				if !ok {
					continue
				}
				if !newClientIDs[appName+"/"+compName+"/"+id] {
					continue
				}
				for _, dep := range uc.Deps {
					dep.SetForceKeep()
					if mc := desired.GetManagedCompin(appName, dep.ComponentName, dep.InstanceID); mc != nil {
						mc.ForceKeep = true
					}
					providers = append(providers, providerRef{appName, dep.ComponentName, dep.InstanceID})
				}
			}
		}
	}
	if len(providers) > 0 {
		a.knowledge.MutateActualState(func(cs *knowledge.CloudState) {
			for _, p := range providers {
				if mc := cs.GetManagedCompin(p.appName, p.compName, p.instanceID); mc != nil {
					mc.ForceKeep = true
				}
			}
		})
	}
	return desired
}
