// Package admission implements the external-facing DeployController and
// IvisInterface boundary: accepting architectures and single-container jobs
// from submitters, judging them against the Predictor/Aggregator, and
// publishing accepted work into Knowledge for the MAPE-K loop to pick up.
package admission

import (
	"context"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// JobStatus is the lifecycle state of a single-job (IVIS) submission.
type JobStatus int

const (
	NotPresent JobStatus = iota
	Measuring
	Measured
	Rejected
	Accepted
	NoResources
	Deployed
)

func (s JobStatus) String() string {
	switch s {
	case NotPresent:
		return "NOT_PRESENT"
	case Measuring:
		return "MEASURING"
	case Measured:
		return "MEASURED"
	case Rejected:
		return "REJECTED"
	case Accepted:
		return "ACCEPTED"
	case NoResources:
		return "NO_RESOURCES"
	case Deployed:
		return "DEPLOYED"
	default:
		return "UNKNOWN"
	}
}

// ApplicationStats summarizes an application's current placement, the way
// GetApplicationStats reports it to a submitter.
type ApplicationStats struct {
	AppName         string
	InstancesByComp map[string]int
	Complete        bool
}

// JobSpec describes a user-supplied container+code/config bundle to be
// wrapped into a single-component, single-probe application.
type JobSpec struct {
	ContainerImage string
	Code           string
	Config         string
	CPURequestM    int64 // millicores
	MemoryRequest  int64 // bytes
	CPULimitM      int64
	MemoryLimit    int64
	Labels         map[string]string
}

// DeployController is the multi-component application admission boundary.
type DeployController interface {
	SubmitArchitecture(ctx context.Context, arch *knowledge.Application) (JudgeOutcome, error)
	SubmitRequirements(ctx context.Context, appName, compName, probeAlias string, reqs []knowledge.Requirement) (JudgeOutcome, error)
	DeleteApplication(ctx context.Context, appName string) error
	GetApplicationStats(ctx context.Context, appName string) (*ApplicationStats, error)
	UpdateAccessToken(ctx context.Context, token string) error
}

// IvisInterface is the single-job admission boundary.
type IvisInterface interface {
	SubmitJob(ctx context.Context, spec JobSpec) (jobID string, err error)
	DeployJob(ctx context.Context, jobID string, contract knowledge.Requirement) (JobStatus, error)
	GetJobStatus(ctx context.Context, jobID string) (JobStatus, error)
	RunJob(ctx context.Context, jobID string, params map[string]string) error
	UnscheduleJob(ctx context.Context, jobID string) error
	UpdateAccessToken(ctx context.Context, token string) error
}

// JudgeOutcome mirrors predictor.JudgeResult at the admission boundary so
// callers outside internal/predictor don't need to import it directly.
type JudgeOutcome int

const (
	NeedsData JudgeOutcome = iota
	OutcomeRejected
	OutcomeMeasured
	OutcomeAccepted
)

func (o JudgeOutcome) String() string {
	switch o {
	case NeedsData:
		return "NEEDS_DATA"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeMeasured:
		return "MEASURED"
	case OutcomeAccepted:
		return "ACCEPTED"
	default:
		return "UNKNOWN"
	}
}
