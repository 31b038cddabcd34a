package knowledge

import "testing"

func TestDiffStatesCreateAndDelete(t *testing.T) {
	actual := NewCloudState()
	actual.AddCompin(&ManagedCompin{AppName: "a", CompName: "c", ID: "stale", Phase: PhaseReady})
	actual.AddCompin(&ManagedCompin{AppName: "a", CompName: "c", ID: "kept", Phase: PhaseReady, ForceKeep: true})

	desired := NewCloudState()
	desired.AddCompin(&ManagedCompin{AppName: "a", CompName: "c", ID: "new", Phase: PhaseCreating})

	d := DiffStates(actual, desired)

	if len(d.ToCreate) != 1 || d.ToCreate[0].ID != "new" {
		t.Fatalf("expected to create instance 'new', got %+v", d.ToCreate)
	}
	if len(d.ToDelete) != 1 || d.ToDelete[0].ID != "stale" {
		t.Fatalf("expected to delete instance 'stale' only (force_keep instance must survive), got %+v", d.ToDelete)
	}
}

func TestDiffStatesDependencyChange(t *testing.T) {
	actual := NewCloudState()
	actual.AddCompin(&UnmanagedCompin{AppName: "a", CompName: "client", ID: "u1",
		Deps: []*Dependency{{ComponentName: "backend", InstanceID: "old"}}})

	desired := NewCloudState()
	desired.AddCompin(&UnmanagedCompin{AppName: "a", CompName: "client", ID: "u1",
		Deps: []*Dependency{{ComponentName: "backend", InstanceID: "new"}}})

	d := DiffStates(actual, desired)

	if len(d.DependencyChanges) != 1 {
		t.Fatalf("expected exactly one dependency change, got %+v", d.DependencyChanges)
	}
}

func TestListsAreSorted(t *testing.T) {
	s := NewCloudState()
	s.AddCompin(&ManagedCompin{AppName: "b-app", CompName: "c", ID: "z"})
	s.AddCompin(&ManagedCompin{AppName: "a-app", CompName: "c", ID: "y"})
	s.AddCompin(&ManagedCompin{AppName: "a-app", CompName: "c", ID: "a"})

	apps := s.ListApplications()
	if apps[0] != "a-app" || apps[1] != "b-app" {
		t.Fatalf("ListApplications must be sorted, got %v", apps)
	}

	ids := s.ListInstances("a-app", "c")
	if ids[0] != "a" || ids[1] != "y" {
		t.Fatalf("ListInstances must be sorted, got %v", ids)
	}
}

func TestGetUniqueCompin(t *testing.T) {
	s := NewCloudState()
	if s.GetUniqueCompin("missing") != nil {
		t.Fatalf("expected nil for unknown application")
	}
	s.AddCompin(&ManagedCompin{AppName: "a", CompName: "c", ID: "only"})
	c := s.GetUniqueCompin("a")
	if c == nil || c.InstanceID() != "only" {
		t.Fatalf("expected the sole instance, got %v", c)
	}
}
