package knowledge

import "sync"

// Knowledge is the single shared mutable aggregation described in spec.md
// 4.1/4.5: applications, the actual CloudState, nodes, network topology, the
// client-support flag, the access token, and a couple of derived views.
// It is guarded by one coarse RWMutex -- no per-entity locks (Design Note 3).
type Knowledge struct {
	mu sync.RWMutex

	applications map[string]*Application
	actualState  *CloudState
	nodes        map[string]*Node
	topology     *NetworkTopology

	clientSupport          bool
	apiEndpointAccessToken *string

	newClients []Compin // clients added by the Monitor since the last Analyzer read
}

// New returns an empty Knowledge instance.
func New() *Knowledge {
	return &Knowledge{
		applications: map[string]*Application{},
		actualState:  NewCloudState(),
		nodes:        map[string]*Node{},
		topology:     NewNetworkTopology(),
	}
}

// AddApplication installs app, atomically with respect to CloudState readers.
func (k *Knowledge) AddApplication(app *Application) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.applications[app.Name] = app
}

// RemoveApplication removes app and cascades the removal to every instance
// of every one of its components in actual_state.
func (k *Knowledge) RemoveApplication(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.applications, name)
	k.actualState.RemoveApplication(name)
}

// Application returns a copy-free read of the named application, or nil.
func (k *Knowledge) Application(name string) *Application {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.applications[name]
}

// Applications returns a snapshot slice of every known application.
func (k *Knowledge) Applications() []*Application {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]*Application, 0, len(k.applications))
	for _, a := range k.applications {
		out = append(out, a)
	}
	return out
}

// ThereAreApplications reports whether any application is currently known.
func (k *Knowledge) ThereAreApplications() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.applications) > 0
}

// ActualState returns the live snapshot of the cluster as last observed by
// the Monitor.
func (k *Knowledge) ActualState() *CloudState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.actualState.Snapshot()
}

// MutateActualState runs fn with exclusive access to the live actual_state.
// Only the Monitor (write) and the Executor's update_model hooks (write)
// should call this; everyone else reads via ActualState.
func (k *Knowledge) MutateActualState(fn func(*CloudState)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fn(k.actualState)
}

// Nodes returns a snapshot of the node map.
func (k *Knowledge) Nodes() map[string]*Node {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make(map[string]*Node, len(k.nodes))
	for name, n := range k.nodes {
		out[name] = n
	}
	return out
}

// SetNode installs or replaces a node.
func (k *Knowledge) SetNode(n *Node) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.nodes[n.Name] = n
}

// NetworkTopology returns the live topology reference (append-only, safe to
// read/write concurrently with its own internal lock, see topology.go).
func (k *Knowledge) NetworkTopology() *NetworkTopology {
	return k.topology
}

// ClientSupport reports whether external-client placement is enabled.
func (k *Knowledge) ClientSupport() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.clientSupport
}

// SetClientSupport toggles client-support mode.
func (k *Knowledge) SetClientSupport(v bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.clientSupport = v
}

// APIEndpointAccessToken returns the current opaque access token, or nil if
// none has been set yet.
func (k *Knowledge) APIEndpointAccessToken() *string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.apiEndpointAccessToken
}

// UpdateAccessToken replaces the opaque access token propagated to workloads.
func (k *Knowledge) UpdateAccessToken(token string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.apiEndpointAccessToken = &token
}

// PushNewClient records a freshly observed client compin so the Analyzer can
// mark its dependencies force_keep on the next cycle.
func (k *Knowledge) PushNewClient(c Compin) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.newClients = append(k.newClients, c)
}

// ListNewClients drains and returns the new-clients queue.
func (k *Knowledge) ListNewClients() []Compin {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := k.newClients
	k.newClients = nil
	return out
}

// UniqueComponentsWithoutResources reports the names of SINGLE-cardinality,
// MANAGED components that currently have no running instance -- the set the
// IVIS interface surfaces as NO_RESOURCES.
func (k *Knowledge) UniqueComponentsWithoutResources() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []string
	for appName, app := range k.applications {
		for _, comp := range app.Components {
			if comp.Cardinality != Single || comp.Type != Managed {
				continue
			}
			if len(k.actualState.ListInstances(appName, comp.Name)) == 0 {
				out = append(out, comp.Name)
			}
		}
	}
	return out
}
