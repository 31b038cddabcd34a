package admission

import (
	"context"
	"fmt"

	"github.com/qoscloud/adaptation-controller/internal/errs"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

// jobRecord tracks one IVIS single-job submission: the synthetic
// single-component application it was wrapped into, plus its current
// lifecycle status.
type jobRecord struct {
	id      string
	appName string
	app     *knowledge.Application
	status  JobStatus
}

func jobAppName(jobID string) string { return "job-" + jobID }

// SubmitJob wraps spec into a single-component, single-probe Application
// (spec.md 4.7: "wraps a user-supplied container and code+config into a
// single-component application with one probe") and registers it with the
// predictor, without yet judging it against a contract.
func (c *Controller) SubmitJob(ctx context.Context, spec JobSpec) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextJobID++
	id := fmt.Sprintf("%d", c.nextJobID)
	appName := jobAppName(id)

	probe := &knowledge.Probe{
		Name:   "main",
		Kind:   knowledge.ProbeCode,
		Code:   spec.Code,
		Config: spec.Config,
	}
	comp := &knowledge.Component{
		Name:        "job",
		Cardinality: knowledge.Single,
		Type:        knowledge.Managed,
		Probes:      []*knowledge.Probe{probe},
	}
	app := knowledge.NewApplication(appName)
	app.AddComponent(comp)
	c.aliases.AssignAliases(app)
	probe.ComponentID = comp.Name

	if err := c.predictor.RegisterApp(app); err != nil {
		return "", fmt.Errorf("admission: registering job %s: %w", id, err)
	}

	c.jobs[id] = &jobRecord{id: id, appName: appName, app: app, status: NotPresent}
	return id, nil
}

// DeployJob attaches contract to the job's sole probe and drives judgement,
// transitioning NOT_PRESENT -> MEASURING/MEASURED/REJECTED/ACCEPTED.
func (c *Controller) DeployJob(ctx context.Context, jobID string, contract knowledge.Requirement) (JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return NotPresent, errs.NewContractViolation(jobID, "unknown job")
	}

	probe := job.app.Components["job"].Probes[0]
	probe.Requirements = []knowledge.Requirement{contract}

	result := c.predictor.JudgeApp(job.app)
	switch result {
	case predictor.NeedsData:
		job.status = Measuring
	case predictor.Rejected:
		job.status = Rejected
	case predictor.Measured:
		job.status = Measured
	case predictor.Accepted:
		job.app.Complete = true
		job.status = Accepted
	}
	return job.status, nil
}

// GetJobStatus returns the job's current lifecycle status.
func (c *Controller) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return NotPresent, nil
	}
	return job.status, nil
}

// RunJob schedules an ACCEPTED job for actual execution: it is published to
// Knowledge so the next Analyzer cycle places it, and marked DEPLOYED. If
// the cluster already has SINGLE-cardinality components starved of
// resources (Knowledge.UniqueComponentsWithoutResources is non-empty --
// SINGLE MANAGED components of registered applications with no instance in
// actual_state), the job is
// left ACCEPTED and marked NO_RESOURCES instead of being committed, so a
// later retry can succeed once resources free up.
func (c *Controller) RunJob(ctx context.Context, jobID string, params map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return errs.NewContractViolation(jobID, "unknown job")
	}
	if job.status != Accepted {
		return fmt.Errorf("admission: job %s is not ACCEPTED (status %s)", jobID, job.status)
	}

	if starved := c.knowledge.UniqueComponentsWithoutResources(); len(starved) > 0 {
		job.status = NoResources
		return nil
	}

	probe := job.app.Components["job"].Probes[0]
	if v, ok := params["config"]; ok {
		probe.Config = v
	}

	c.knowledge.AddApplication(job.app)
	job.status = Deployed
	return nil
}

// UnscheduleJob withdraws a deployed job's application from Knowledge,
// reverting it to ACCEPTED (the measurement result is retained; only the
// running instance is torn down).
func (c *Controller) UnscheduleJob(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return errs.NewContractViolation(jobID, "unknown job")
	}
	c.knowledge.RemoveApplication(job.appName)
	job.status = Accepted
	return nil
}
