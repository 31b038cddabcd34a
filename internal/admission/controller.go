package admission

import (
	"context"
	"fmt"
	"sync"

	"github.com/qoscloud/adaptation-controller/internal/errs"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

// Controller implements DeployController and IvisInterface over a shared
// Knowledge and PredictorService, the way the teacher's webhook handlers sit
// in front of a shared client and cache.
type Controller struct {
	mu        sync.Mutex
	knowledge *knowledge.Knowledge
	predictor predictor.PredictorService
	aliases   *AliasRegistry
	jobs      map[string]*jobRecord
	nextJobID int
}

// New constructs a Controller bound to the shared Knowledge and Predictor.
func New(k *knowledge.Knowledge, p predictor.PredictorService) *Controller {
	return &Controller{
		knowledge: k,
		predictor: p,
		aliases:   NewAliasRegistry(),
		jobs:      map[string]*jobRecord{},
	}
}

func toOutcome(r predictor.JudgeResult) JudgeOutcome {
	switch r {
	case predictor.Rejected:
		return OutcomeRejected
	case predictor.Measured:
		return OutcomeMeasured
	case predictor.Accepted:
		return OutcomeAccepted
	default:
		return NeedsData
	}
}

// SubmitArchitecture assigns probe aliases, registers and judges the
// application, and publishes it to Knowledge once ACCEPTED.
func (c *Controller) SubmitArchitecture(ctx context.Context, arch *knowledge.Application) (JudgeOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.aliases.AssignAliases(arch)
	if err := c.predictor.RegisterApp(arch); err != nil {
		return NeedsData, fmt.Errorf("admission: registering architecture %s: %w", arch.Name, err)
	}

	result := c.predictor.JudgeApp(arch)
	if result == predictor.Accepted {
		c.knowledge.AddApplication(arch)
	}
	return toOutcome(result), nil
}

// SubmitRequirements attaches QoS contracts to a previously registered
// probe and re-judges the owning application.
func (c *Controller) SubmitRequirements(ctx context.Context, appName, compName, probeAlias string, reqs []knowledge.Requirement) (JudgeOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	app := c.knowledge.Application(appName)
	if app == nil {
		return NeedsData, errs.NewContractViolation(appName, "unknown application")
	}
	comp, ok := app.Components[compName]
	if !ok {
		return NeedsData, errs.NewContractViolation(appName+"/"+compName, "unknown component")
	}
	var probe *knowledge.Probe
	for _, p := range comp.Probes {
		if p.Alias == probeAlias {
			probe = p
			break
		}
	}
	if probe == nil {
		return NeedsData, errs.NewContractViolation(fmt.Sprintf("%s/%s/%s", appName, compName, probeAlias), "unknown probe")
	}
	probe.Requirements = reqs

	result := c.predictor.JudgeApp(app)
	if result == predictor.Accepted {
		app.Complete = true
	}
	return toOutcome(result), nil
}

// DeleteApplication tears down the predictor-side registration and removes
// the application (and its instances) from Knowledge.
func (c *Controller) DeleteApplication(ctx context.Context, appName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.predictor.UnregisterApp(appName); err != nil {
		return fmt.Errorf("admission: unregistering %s: %w", appName, err)
	}
	c.knowledge.RemoveApplication(appName)
	return nil
}

// GetApplicationStats reports per-component instance counts from the live
// actual_state.
func (c *Controller) GetApplicationStats(ctx context.Context, appName string) (*ApplicationStats, error) {
	app := c.knowledge.Application(appName)
	if app == nil {
		return nil, fmt.Errorf("admission: unknown application %s", appName)
	}
	actual := c.knowledge.ActualState()
	stats := &ApplicationStats{AppName: appName, Complete: app.Complete, InstancesByComp: map[string]int{}}
	for _, compName := range actual.ListComponents(appName) {
		stats.InstancesByComp[compName] = len(actual.ListInstances(appName, compName))
	}
	return stats, nil
}

// UpdateAccessToken refuses the update while any job is MEASURING or
// DEPLOYED, per spec.md 4.7, then forwards the token to Knowledge.
func (c *Controller) UpdateAccessToken(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anyJobBlocking() {
		return fmt.Errorf("admission: access token update refused: a job is measuring or deployed")
	}
	c.knowledge.UpdateAccessToken(token)
	return nil
}

func (c *Controller) anyJobBlocking() bool {
	for _, j := range c.jobs {
		if j.status == Measuring || j.status == Deployed {
			return true
		}
	}
	return false
}
