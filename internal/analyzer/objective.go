package analyzer

import "github.com/qoscloud/adaptation-controller/internal/analyzer/csp"

// buildObjective scores a complete assignment by the weighted sum of
// client-to-instance network distance and migration cost (instances moved
// relative to actual_state), per spec.md 4.4 step 3.
func buildObjective(p *placement, nodeIndex []string, candidates candidatesByDepComp) csp.Objective {
	const distanceWeight = 1
	const migrationWeight = 10 // migrations are deliberately expensive relative to proximity

	return func(assignment map[string]int) int {
		cost := 0

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
				idx, ok := assignment[name]
				if !ok {
					continue
				}
				cands := candidates[depCompName]
				if idx < 0 || idx >= len(cands) {
					continue
				}
				provider := cands[idx]
				providerNodeVar := instanceVarName(provider.AppName, provider.CompName, provider.ID)
				providerNodeIdx, ok := assignment[providerNodeVar]
				if !ok {
					continue
				}
				providerNode := nodeIndex[providerNodeIdx]
				if d, ok := p.topology.GetDistance(client.NetworkLocation, providerNode); ok {
					cost += distanceWeight * int(d)
				}
			}
		}

		for _, inst := range p.instances {
			name := instanceVarName(inst.AppName, inst.CompName, inst.ID)
			idx, ok := assignment[name]
			if !ok {
				continue
			}
			newNode := nodeIndex[idx]
			if inst.NodeName != "" && inst.NodeName != newNode {
				cost += migrationWeight
			}
		}

		return cost
	}
}
