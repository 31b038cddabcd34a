// Package knowledge implements the process-wide, thread-safe model of the
// cluster: applications, components, probes, compins, nodes, and the
// current/desired CloudStates. Parents hold their children directly
// (Application.Components, Component.Probes); references from a child back
// to its owner (Component.ApplicationName and the like) are plain string
// ids, so the model has no pointer cycles. This removes the need for
// per-entity locking.
package knowledge

import (
	"fmt"
	"regexp"
)

// ComponentType distinguishes components the controller deploys itself from
// external clients that merely connect to the cluster.
type ComponentType int

const (
	// Managed components are deployed and lifecycle-managed by the Executor.
	Managed ComponentType = iota
	// Unmanaged components represent external clients.
	Unmanaged
)

func (t ComponentType) String() string {
	if t == Unmanaged {
		return "UNMANAGED"
	}
	return "MANAGED"
}

// Cardinality constrains how many instances of a component may run at once.
type Cardinality int

const (
	// Single means exactly one instance must exist.
	Single Cardinality = iota
	// Multiple allows any number of instances.
	Multiple
)

// CompinPhase is the lifecycle state of a ManagedCompin. Phases are ordered
// and, outside of deletion, monotone non-decreasing.
type CompinPhase int

const (
	PhaseCreating CompinPhase = iota
	PhaseInit
	PhaseReady
	PhaseFinalizing
	PhaseFinished
	PhaseFailed
)

func (p CompinPhase) String() string {
	switch p {
	case PhaseCreating:
		return "CREATING"
	case PhaseInit:
		return "INIT"
	case PhaseReady:
		return "READY"
	case PhaseFinalizing:
		return "FINALIZING"
	case PhaseFinished:
		return "FINISHED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// aliasPattern is the format every probe alias must satisfy: four uppercase
// letters, globally unique across the cluster.
var aliasPattern = regexp.MustCompile(`^[A-Z]{4}$`)

// ValidAlias reports whether alias has the required shape. It does not check
// uniqueness, which is the caller's (Aggregator's) responsibility.
func ValidAlias(alias string) bool {
	return aliasPattern.MatchString(alias)
}

// Requirement is a QoS contract attached to a Probe.
type Requirement interface {
	isRequirement()
}

// TimeContract requires that a given percentile of request times stays
// under TimeLimitMs.
type TimeContract struct {
	Percentile  float64
	TimeLimitMs float64
}

func (TimeContract) isRequirement() {}

// ThroughputContract requires that the mean request time stays under
// MeanRequestTimeMs.
type ThroughputContract struct {
	MeanRequestTimeMs float64
}

func (ThroughputContract) isRequirement() {}

// ProbeKind distinguishes agent-executed code probes from pre-baked
// in-container procedures.
type ProbeKind int

const (
	// ProbeNone marks a probe with no executable body attached yet.
	ProbeNone ProbeKind = iota
	ProbeCode
	ProbeProcedure
)

// Probe is a measurable workload unit inside a Component, identified
// cluster-wide by a short random alias.
type Probe struct {
	Name         string
	ComponentID  string
	Alias        string
	Kind         ProbeKind
	Code         string
	Config       string
	Requirements []Requirement

	// Signal bookkeeping forwarded to the agent at InitializeInstance.
	SignalSet           string
	ExecutionTimeSignal string
	RunCountSignal      string
}

// Component belongs to exactly one Application.
type Component struct {
	Name               string
	ApplicationName    string
	Type               ComponentType
	Cardinality        Cardinality
	DeploymentTemplate string
	Dependencies       []string // names of components this component depends on
	Probes             []*Probe
	Sharded            bool // whether SetMongoParameters applies to its instances

	// RequiredHwID restricts placement to nodes of that hardware class.
	// Empty means any node is compatible.
	RequiredHwID string
}

// Application is a named collection of Components.
type Application struct {
	Name       string
	Components map[string]*Component
	Complete   bool // true once QoS contracts are attached to every probe

	NamespaceCreated bool
	SecretAdded      bool
	NamespaceDeleted bool
}

// NewApplication creates an empty Application arena entry.
func NewApplication(name string) *Application {
	return &Application{Name: name, Components: map[string]*Component{}}
}

// AddComponent registers c under this application, overwriting its
// ApplicationName to keep the cross-reference consistent.
func (a *Application) AddComponent(c *Component) {
	c.ApplicationName = a.Name
	a.Components[c.Name] = c
}

// Dependency is a resolved binding from a compin to one of its component's
// declared dependencies.
type Dependency struct {
	ComponentName string
	InstanceID    string
	ForceKeep     bool
}

// SetForceKeep marks the dependency as force_keep: forbidden from teardown
// during this adaptation round.
func (d *Dependency) SetForceKeep() {
	d.ForceKeep = true
}

// Compin is a running instance of a Component -- either one the controller
// manages, or an external client.
type Compin interface {
	ApplicationName() string
	ComponentName() string
	InstanceID() string
	Dependencies() []*Dependency
}

// ManagedCompin is a concrete running instance of a MANAGED component.
type ManagedCompin struct {
	AppName            string
	CompName           string
	ID                 string
	NodeName           string
	IP                 string
	Phase              CompinPhase
	InitCompleted      bool
	MongoInitCompleted bool
	Deps               []*Dependency
	ForceKeep          bool

	// DeployedTemplate is the Component.DeploymentTemplate this instance was
	// last created or updated with, so the Planner can detect drift without
	// re-deploying unchanged templates every cycle.
	DeployedTemplate string
}

func (c *ManagedCompin) ApplicationName() string     { return c.AppName }
func (c *ManagedCompin) ComponentName() string       { return c.CompName }
func (c *ManagedCompin) InstanceID() string          { return c.ID }
func (c *ManagedCompin) Dependencies() []*Dependency { return c.Deps }

// SetPhase advances the compin's phase, enforcing the monotone-non-decreasing
// invariant outside of explicit reset on delete. Callers that legitimately
// need to reset phase (compin re-creation) should construct a fresh compin
// instead of calling SetPhase backwards.
func (c *ManagedCompin) SetPhase(p CompinPhase) error {
	if p < c.Phase {
		return fmt.Errorf("knowledge: phase of %s/%s/%s cannot move from %s back to %s",
			c.AppName, c.CompName, c.ID, c.Phase, p)
	}
	c.Phase = p
	return nil
}

// UnmanagedCompin is an external client: its network location is used for
// proximity in placement, and it carries a list of dependency bindings that
// the Analyzer resolves to concrete ManagedCompins.
type UnmanagedCompin struct {
	AppName         string
	CompName        string
	ID              string
	NetworkLocation string
	Deps            []*Dependency
}

func (c *UnmanagedCompin) ApplicationName() string     { return c.AppName }
func (c *UnmanagedCompin) ComponentName() string       { return c.CompName }
func (c *UnmanagedCompin) InstanceID() string          { return c.ID }
func (c *UnmanagedCompin) Dependencies() []*Dependency { return c.Deps }

// Node is a cluster node with a hardware class and a capacity vector.
type Node struct {
	Name      string
	HwID      string
	CPUMillis int64
	MemoryMB  int64

	// Assigned tracks which managed compins currently occupy this node, for
	// capacity accounting during planning/analysis.
	Assigned map[string]bool
}

// NewNode constructs an empty Node.
func NewNode(name, hwID string, cpuMillis, memoryMB int64) *Node {
	return &Node{Name: name, HwID: hwID, CPUMillis: cpuMillis, MemoryMB: memoryMB, Assigned: map[string]bool{}}
}
