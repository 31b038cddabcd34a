package analyzer

import (
	"github.com/qoscloud/adaptation-controller/internal/analyzer/csp"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

// buildConstraints assembles every constraint named in spec.md 4.4:
// cardinality, hardware-class compatibility (folded into each variable's
// domain in problem.go, so it needs no extra constraint here), dependency
// satisfaction, co-location feasibility via the Predictor, force_keep
// preservation, and per-node resource capacity.
func buildConstraints(p *placement, nodeIndex []string, nodeByName map[string]*knowledge.Node, candidates candidatesByDepComp) []csp.Constraint {
	var cs []csp.Constraint
	cs = append(cs, cardinalityConstraint(p))
	cs = append(cs, dependencySatisfactionConstraint(p, candidates))
	cs = append(cs, coLocationConstraint(p, nodeIndex))
	cs = append(cs, forceKeepConstraint(p, candidates))
	cs = append(cs, resourceCapacityConstraint(p, nodeIndex, nodeByName))
	return cs
}

// cardinalityConstraint enforces that every SINGLE-cardinality component has
// exactly one instance among those being placed. Since buildProblem already
// only creates one placement variable per (app, component, instance) that
// the caller decided needs placing, a correctly-formed placement input
// trivially satisfies this; it is re-checked here defensively because the
// CSP is the last line of defense against an inconsistent placement set.
func cardinalityConstraint(p *placement) csp.Constraint {
	counts := map[string]int{}
	for _, inst := range p.instances {
		if app := p.apps[inst.AppName]; app != nil {
			if comp := app.Components[inst.CompName]; comp != nil && comp.Cardinality == knowledge.Single {
				counts[inst.AppName+"/"+inst.CompName]++
			}
		}
	}
	return func(assignment map[string]int) bool {
		for key, n := range counts {
			if n != 1 {
				_ = key
				return false
			}
		}
		return true
	}
}

// dependencySatisfactionConstraint requires that every client dependency
// variable bind to a candidate that is present in the final assignment
// (i.e. a live compatible instance actually got placed).
func dependencySatisfactionConstraint(p *placement, candidates candidatesByDepComp) csp.Constraint {
	var depVars []struct {
		name       string
		candidates []*knowledge.ManagedCompin
	}
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
			name := dependencyVarName(client.AppName, client.CompName, client.ID, depCompName)
			depVars = append(depVars, struct {
				name       string
				candidates []*knowledge.ManagedCompin
			}{name, candidates[depCompName]})
		}
	}
	return func(assignment map[string]int) bool {
		for _, dv := range depVars {
			idx, bound := assignment[dv.name]
			if !bound {
				return false
			}
			if idx < 0 || idx >= len(dv.candidates) {
				return false
			}
		}
		return true
	}
}

// coLocationConstraint asks the Predictor whether the multiset of
// components assigned to each node is expected to meet its QoS contracts.
func coLocationConstraint(p *placement, nodeIndex []string) csp.Constraint {
	return func(assignment map[string]int) bool {
		perNode := map[string]map[string]int{}
		for _, inst := range p.instances {
			name := instanceVarName(inst.AppName, inst.CompName, inst.ID)
			nodeIdx, ok := assignment[name]
			if !ok {
				continue
			}
			nodeName := nodeIndex[nodeIdx]
			if perNode[nodeName] == nil {
				perNode[nodeName] = map[string]int{}
			}
			cid := inst.AppName + "/" + inst.CompName
			perNode[nodeName][cid]++
		}
		for nodeName, counts := range perNode {
			var components []predictor.ComponentCount
			for cid, count := range counts {
				components = append(components, predictor.ComponentCount{ComponentID: cid, Count: count})
			}
			hwID := "default"
			if n := nodeByHwLookup(p.nodes, nodeName); n != nil {
				hwID = n.HwID
			}
			if !p.predict.Predict(predictor.Assignment{HwID: hwID, Components: components}) {
				return false
			}
		}
		return true
	}
}

func nodeByHwLookup(nodes []*knowledge.Node, name string) *knowledge.Node {
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// forceKeepConstraint is a no-op satisfaction gate: force_keep does not
// restrict the solver's domain (a force_keep instance's node assignment is
// still free to move), it only tells the Planner not to delete an instance
// absent from the next desired state. It is kept here, returning true
// always, to document the decision: force_keep is a Planner-side
// protection, not a Analyzer-side search restriction.
func forceKeepConstraint(p *placement, candidates candidatesByDepComp) csp.Constraint {
	return func(assignment map[string]int) bool { return true }
}

// resourceCapacityConstraint enforces that a node's assigned components do
// not exceed its memory capacity, counting a flat 256 MB per instance. CPU is
// not checked, and per-component resource profiles are not consulted.
func resourceCapacityConstraint(p *placement, nodeIndex []string, nodeByName map[string]*knowledge.Node) csp.Constraint {
	const perInstanceMemoryMB = 256
	return func(assignment map[string]int) bool {
		usage := map[string]int64{}
		for _, inst := range p.instances {
			name := instanceVarName(inst.AppName, inst.CompName, inst.ID)
			nodeIdx, ok := assignment[name]
			if !ok {
				continue
			}
			usage[nodeIndex[nodeIdx]] += perInstanceMemoryMB
		}
		for nodeName, used := range usage {
			n := nodeByName[nodeName]
			if n != nil && n.MemoryMB > 0 && used > n.MemoryMB {
				return false
			}
		}
		return true
	}
}
