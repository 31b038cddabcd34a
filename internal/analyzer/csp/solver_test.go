package csp

import "testing"

func TestSolveFindsMinimumCostAssignment(t *testing.T) {
	p := Problem{
		Vars: []Var{
			{Name: "a", Domain: []int{0, 1, 2}},
			{Name: "b", Domain: []int{0, 1, 2}},
		},
		Constraints: []Constraint{
			func(a map[string]int) bool { return a["a"] != a["b"] },
		},
		Objective: func(a map[string]int) int { return a["a"] + a["b"] },
	}
	sol, ok := Solve(p)
	if !ok {
		t.Fatalf("expected a solution")
	}
	if sol.Cost != 1 {
		t.Fatalf("expected minimum cost 1 (a=0,b=1 or a=1,b=0), got %d with assignment %v", sol.Cost, sol.Assignment)
	}
}

func TestSolveNoSolution(t *testing.T) {
	p := Problem{
		Vars: []Var{{Name: "a", Domain: []int{0}}},
		Constraints: []Constraint{
			func(a map[string]int) bool { return false },
		},
	}
	if _, ok := Solve(p); ok {
		t.Fatalf("expected no solution when every complete assignment is rejected")
	}
}

func TestSolveDeterministic(t *testing.T) {
	p := Problem{
		Vars: []Var{
			{Name: "a", Domain: []int{0, 1, 2}},
			{Name: "b", Domain: []int{0, 1, 2}},
		},
		Constraints: []Constraint{
			func(a map[string]int) bool { return a["a"] != a["b"] },
		},
		Objective: func(a map[string]int) int { return a["a"] + a["b"] },
	}
	sol1, _ := Solve(p)
	sol2, _ := Solve(p)
	if sol1.Assignment["a"] != sol2.Assignment["a"] || sol1.Assignment["b"] != sol2.Assignment["b"] {
		t.Fatalf("expected identical assignment across calls given identical input, got %v and %v", sol1.Assignment, sol2.Assignment)
	}
}

func TestSolveFirstReturnsAnyFeasibleAssignment(t *testing.T) {
	p := Problem{
		Vars: []Var{{Name: "a", Domain: []int{5, 6, 7}}},
		Constraints: []Constraint{
			func(a map[string]int) bool { return a["a"] >= 6 },
		},
	}
	sol, ok := SolveFirst(p)
	if !ok {
		t.Fatalf("expected a solution")
	}
	if sol.Assignment["a"] < 6 {
		t.Fatalf("solution must satisfy the constraint, got %v", sol.Assignment)
	}
}
