// Package csp implements a small deterministic backtracking constraint
// solver: the corpus carries no constraint-programming library (the
// original implementation used or-tools, out of scope for this port), so
// the search itself is a standard-library implementation of the same
// decision strategy the original specified -- choose the first unbound
// variable, assign it the minimum remaining value.
package csp

// Var is one integer decision variable: the node a managed instance is
// placed on, or the instance a client dependency binds to. Domain holds the
// candidate values in the order they should be tried; ASSIGN_MIN_VALUE
// picks Domain[0] first.
type Var struct {
	Name   string
	Domain []int
}

// Constraint checks a (possibly partial) assignment. Reject while unbound
// variables remain undetermined by returning true; full propagation/pruning
// is not required, only a correct accept/reject on a complete assignment --
// callers should return true for constraints that depend on variables not
// yet in assignment.
type Constraint func(assignment map[string]int) bool

// Objective scores a complete, constraint-satisfying assignment. Lower is
// better, mirroring the original's minimize-cost objective function.
type Objective func(assignment map[string]int) int

// Problem bundles a variable set, its constraints and its objective.
type Problem struct {
	Vars        []Var
	Constraints []Constraint
	Objective   Objective
}

// Solution is a complete variable assignment plus its objective cost.
type Solution struct {
	Assignment map[string]int
	Cost       int
}

// Solve searches for the best (lowest-cost) complete assignment satisfying
// every constraint, exploring variables in the order given by p.Vars and
// values within each variable's domain in order (CHOOSE_FIRST_UNBOUND /
// ASSIGN_MIN_VALUE). It returns ok == false if no complete assignment
// satisfies every constraint.
//
// Unlike a full branch-and-bound solver, this keeps searching the entire
// tree rather than stopping at the first solution, since the objective
// (migration cost distances) must be minimized, not merely satisfied. Solve
// takes no deadline and runs to completion; the Analyzer's
// solveWithinBudget stops waiting for it once its time limit passes.
func Solve(p Problem) (Solution, bool) {
	vars := make([]Var, len(p.Vars))
	copy(vars, p.Vars)

	assignment := map[string]int{}
	var best Solution
	found := false

	var rec func(idx int) bool
	rec = func(idx int) bool {
		if idx == len(vars) {
			for _, c := range p.Constraints {
				if !c(assignment) {
					return false
				}
			}
			cost := 0
			if p.Objective != nil {
				cost = p.Objective(assignment)
			}
			if !found || cost < best.Cost {
				snapshot := make(map[string]int, len(assignment))
				for k, v := range assignment {
					snapshot[k] = v
				}
				best = Solution{Assignment: snapshot, Cost: cost}
				found = true
			}
			return true
		}
		v := vars[idx]
		for _, val := range v.Domain {
			assignment[v.Name] = val
			rec(idx + 1)
		}
		delete(assignment, v.Name)
		return found
	}
	rec(0)
	return best, found
}

// SolveFirst behaves like Solve but returns as soon as one complete,
// constraint-satisfying assignment is found, used by the long-term
// (NO_LIMIT) fallback search where any feasible solution is acceptable.
func SolveFirst(p Problem) (Solution, bool) {
	assignment := map[string]int{}

	var result Solution
	found := false

	var rec func(idx int) bool
	rec = func(idx int) bool {
		if idx == len(p.Vars) {
			for _, c := range p.Constraints {
				if !c(assignment) {
					return false
				}
			}
			cost := 0
			if p.Objective != nil {
				cost = p.Objective(assignment)
			}
			snapshot := make(map[string]int, len(assignment))
			for k, v := range assignment {
				snapshot[k] = v
			}
			result = Solution{Assignment: snapshot, Cost: cost}
			found = true
			return true
		}
		v := p.Vars[idx]
		for _, val := range v.Domain {
			assignment[v.Name] = val
			if rec(idx + 1) {
				return true
			}
		}
		delete(assignment, v.Name)
		return false
	}
	rec(0)
	return result, found
}
