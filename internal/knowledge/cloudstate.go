package knowledge

import "sort"

// CloudState is an indexed collection {application -> component -> instance
// id -> Compin}. Two distinguished CloudStates live in Knowledge:
// actual_state (what monitoring sees) and a desired_state produced by the
// Analyzer each cycle.
type CloudState struct {
	// apps[appName][componentName][instanceID] = Compin
	apps map[string]map[string]map[string]Compin
}

// NewCloudState returns an empty CloudState.
func NewCloudState() *CloudState {
	return &CloudState{apps: map[string]map[string]map[string]Compin{}}
}

// AddCompin inserts or overwrites a compin in the state.
func (s *CloudState) AddCompin(c Compin) {
	app := s.apps[c.ApplicationName()]
	if app == nil {
		app = map[string]map[string]Compin{}
		s.apps[c.ApplicationName()] = app
	}
	comp := app[c.ComponentName()]
	if comp == nil {
		comp = map[string]Compin{}
		app[c.ComponentName()] = comp
	}
	comp[c.InstanceID()] = c
}

// RemoveCompin deletes a single instance from the state.
func (s *CloudState) RemoveCompin(appName, compName, instanceID string) {
	if app, ok := s.apps[appName]; ok {
		if comp, ok := app[compName]; ok {
			delete(comp, instanceID)
		}
	}
}

// RemoveApplication cascades-removes every instance of every component of
// appName.
func (s *CloudState) RemoveApplication(appName string) {
	delete(s.apps, appName)
}

// GetCompin looks up a single instance, returning nil if absent.
func (s *CloudState) GetCompin(appName, compName, instanceID string) Compin {
	if app, ok := s.apps[appName]; ok {
		if comp, ok := app[compName]; ok {
			return comp[instanceID]
		}
	}
	return nil
}

// GetManagedCompin is a typed convenience wrapper over GetCompin.
func (s *CloudState) GetManagedCompin(appName, compName, instanceID string) *ManagedCompin {
	c, _ := s.GetCompin(appName, compName, instanceID).(*ManagedCompin)
	return c
}

// GetUniqueCompin returns the sole instance of a SINGLE-cardinality
// component, identified only by its application name (the Python source's
// `get_unique_compin`, used by job-style single-component applications).
func (s *CloudState) GetUniqueCompin(appName string) Compin {
	app, ok := s.apps[appName]
	if !ok {
		return nil
	}
	for _, comp := range app {
		for _, c := range comp {
			return c
		}
	}
	return nil
}

// ListApplications returns application names in deterministic (sorted)
// order, required for solver determinism and reproducible logging.
func (s *CloudState) ListApplications() []string {
	names := make([]string, 0, len(s.apps))
	for name := range s.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListComponents returns the component names of appName, sorted.
func (s *CloudState) ListComponents(appName string) []string {
	app, ok := s.apps[appName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(app))
	for name := range app {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListInstances returns the instance ids of appName/compName, sorted.
func (s *CloudState) ListInstances(appName, compName string) []string {
	app, ok := s.apps[appName]
	if !ok {
		return nil
	}
	comp, ok := app[compName]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(comp))
	for id := range comp {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListAllManagedCompins returns every ManagedCompin in the state, in
// deterministic order.
func (s *CloudState) ListAllManagedCompins() []*ManagedCompin {
	var out []*ManagedCompin
	for _, appName := range s.ListApplications() {
		for _, compName := range s.ListComponents(appName) {
			for _, id := range s.ListInstances(appName, compName) {
				if mc, ok := s.GetCompin(appName, compName, id).(*ManagedCompin); ok {
					out = append(out, mc)
				}
			}
		}
	}
	return out
}

// ListAllUnmanagedCompins returns every client compin, in deterministic order.
func (s *CloudState) ListAllUnmanagedCompins() []*UnmanagedCompin {
	var out []*UnmanagedCompin
	for _, appName := range s.ListApplications() {
		for _, compName := range s.ListComponents(appName) {
			for _, id := range s.ListInstances(appName, compName) {
				if uc, ok := s.GetCompin(appName, compName, id).(*UnmanagedCompin); ok {
					out = append(out, uc)
				}
			}
		}
	}
	return out
}

// SetDependency rewrites the dependency binding of (appName, depCompName,
// depInstanceID) to point at (providerCompName, providerInstanceID),
// creating the entry if it does not yet exist. Used by
// SetMiddlewareAddressTask.update_model.
func (s *CloudState) SetDependency(appName, depCompName, depInstanceID, providerCompName, providerInstanceID string) {
	c := s.GetCompin(appName, depCompName, depInstanceID)
	if c == nil {
		return
	}
	var deps *[]*Dependency
	switch t := c.(type) {
	case *ManagedCompin:
		deps = &t.Deps
	case *UnmanagedCompin:
		deps = &t.Deps
	default:
		return
	}
	for _, d := range *deps {
		if d.ComponentName == providerCompName {
			d.InstanceID = providerInstanceID
			return
		}
	}
	*deps = append(*deps, &Dependency{ComponentName: providerCompName, InstanceID: providerInstanceID})
}

// Snapshot returns a deep-enough copy of the state for consumption outside
// the control thread: the maps are copied, but Compin values are shared
// (they are treated as immutable once placed by the producing phase).
func (s *CloudState) Snapshot() *CloudState {
	out := NewCloudState()
	for app, comps := range s.apps {
		for comp, insts := range comps {
			for id, c := range insts {
				_ = app
				_ = comp
				_ = id
				out.AddCompin(c)
			}
		}
	}
	return out
}

// Diff describes the changes needed to go from actual to desired.
type Diff struct {
	// ToCreate lists desired ManagedCompins absent from actual.
	ToCreate []*ManagedCompin
	// ToDelete lists actual ManagedCompins absent from desired (and not force_keep).
	ToDelete []*ManagedCompin
	// DependencyChanges lists client compins whose dependency bindings differ
	// between actual and desired.
	DependencyChanges []Compin
}

// DiffStates computes the Diff between actual and desired. Deployment
// template changes are not visible at the CloudState level (templates live
// on Component, not Compin) and are detected separately by the Planner from
// Knowledge.Applications.
func DiffStates(actual, desired *CloudState) *Diff {
	d := &Diff{}
	for _, appName := range desired.ListApplications() {
		for _, compName := range desired.ListComponents(appName) {
			for _, id := range desired.ListInstances(appName, compName) {
				dc := desired.GetCompin(appName, compName, id)
				ac := actual.GetCompin(appName, compName, id)
				switch want := dc.(type) {
				case *ManagedCompin:
					if ac == nil {
						d.ToCreate = append(d.ToCreate, want)
					}
				case *UnmanagedCompin:
					if ac == nil {
						continue
					}
					if !sameDependencies(dc.Dependencies(), ac.Dependencies()) {
						d.DependencyChanges = append(d.DependencyChanges, dc)
					}
				}
			}
		}
	}
	for _, appName := range actual.ListApplications() {
		for _, compName := range actual.ListComponents(appName) {
			for _, id := range actual.ListInstances(appName, compName) {
				ac := actual.GetCompin(appName, compName, id)
				mc, ok := ac.(*ManagedCompin)
				if !ok {
					continue
				}
				if desired.GetCompin(appName, compName, id) == nil && !mc.ForceKeep {
					d.ToDelete = append(d.ToDelete, mc)
				}
			}
		}
	}
	return d
}

func sameDependencies(a, b []*Dependency) bool {
	if len(a) != len(b) {
		return false
	}
	index := map[string]string{}
	for _, d := range b {
		index[d.ComponentName] = d.InstanceID
	}
	for _, d := range a {
		if index[d.ComponentName] != d.InstanceID {
			return false
		}
	}
	return true
}
