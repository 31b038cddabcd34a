// Package analyzer builds and solves the constraint-satisfaction problem
// that maps managed components and client dependencies onto nodes, subject
// to cardinality, hardware-class, co-location and resource constraints.
package analyzer

import (
	"sort"

	"github.com/qoscloud/adaptation-controller/internal/analyzer/csp"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

// instanceVarName names the placement variable for a managed instance.
func instanceVarName(appName, compName, instanceID string) string {
	return "inst:" + appName + "/" + compName + "/" + instanceID
}

// dependencyVarName names the variable binding a client dependency to a
// candidate provider instance.
func dependencyVarName(appName, clientCompName, clientID, depCompName string) string {
	return "dep:" + appName + "/" + clientCompName + "/" + clientID + "/" + depCompName
}

// placement is the input to problem-building: the slice of managed instances
// that need a node assignment this cycle (existing instances being
// re-evaluated for migration, plus freshly-minted instances for
// under-provisioned SINGLE components), the node catalogue, and every
// client compin whose dependencies must resolve to a live instance.
type placement struct {
	instances []*knowledge.ManagedCompin
	nodes     []*knowledge.Node
	clients   []*knowledge.UnmanagedCompin
	apps      map[string]*knowledge.Application
	actual    *knowledge.CloudState
	topology  *knowledge.NetworkTopology
	predict   predictor.PredictorService
}

// candidatesByDepComp maps a depended-upon component name to the ordered
// list of its instances a dependency variable's domain indices refer into.
type candidatesByDepComp map[string][]*knowledge.ManagedCompin

// buildProblem turns a placement input into a csp.Problem: one variable per
// managed instance naming its node index, one per client dependency naming
// the provider instance index, plus the constraints and objective described
// in spec.md 4.4. It also returns the node-index table and the dependency
// candidate lists, both needed to interpret the resulting Solution.
func buildProblem(p *placement) (csp.Problem, []string, candidatesByDepComp) {
	nodeIndex := make([]string, len(p.nodes))
	nodeByName := map[string]*knowledge.Node{}
	for i, n := range p.nodes {
		nodeIndex[i] = n.Name
		nodeByName[n.Name] = n
	}
	sort.Strings(nodeIndex)

	var vars []csp.Var
	candidates := candidatesByDepComp{}

	sort.Slice(p.instances, func(i, j int) bool {
		return instanceVarName(p.instances[i].AppName, p.instances[i].CompName, p.instances[i].ID) <
			instanceVarName(p.instances[j].AppName, p.instances[j].CompName, p.instances[j].ID)
	})

	for _, inst := range p.instances {
		name := instanceVarName(inst.AppName, inst.CompName, inst.ID)
		domain := compatibleNodeDomain(p, nodeIndex, nodeByName, inst.AppName, inst.CompName)
		vars = append(vars, csp.Var{Name: name, Domain: domain})
	}

	sort.Slice(p.clients, func(i, j int) bool {
		return p.clients[i].ID < p.clients[j].ID
	})

	for _, client := range p.clients {
		app := p.apps[client.AppName]
		if app == nil {
			continue
		}
		comp := app.Components[client.CompName]
		if comp == nil {
			continue
		}
		for _, depCompName := range comp.Dependencies {
			instCandidates := instancesOfComponent(p.instances, client.AppName, depCompName)
			candidates[depCompName] = instCandidates
			if len(instCandidates) == 0 {
				continue
			}
			domain := make([]int, len(instCandidates))
			for i := range instCandidates {
				domain[i] = i
			}
			name := dependencyVarName(client.AppName, client.CompName, client.ID, depCompName)
			vars = append(vars, csp.Var{Name: name, Domain: domain})
		}
	}

	problem := csp.Problem{
		Vars:        vars,
		Constraints: buildConstraints(p, nodeIndex, nodeByName, candidates),
		Objective:   buildObjective(p, nodeIndex, candidates),
	}
	return problem, nodeIndex, candidates
}

func compatibleNodeDomain(p *placement, nodeIndex []string, nodeByName map[string]*knowledge.Node, appName, compName string) []int {
	requiredHwID := ""
	if app := p.apps[appName]; app != nil {
		if comp := app.Components[compName]; comp != nil {
			requiredHwID = comp.RequiredHwID
		}
	}
	var domain []int
	for i, name := range nodeIndex {
		n := nodeByName[name]
		if requiredHwID == "" || n.HwID == requiredHwID {
			domain = append(domain, i)
		}
	}
	return domain
}

func instancesOfComponent(instances []*knowledge.ManagedCompin, appName, compName string) []*knowledge.ManagedCompin {
	var out []*knowledge.ManagedCompin
	for _, inst := range instances {
		if inst.AppName == appName && inst.CompName == compName {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
