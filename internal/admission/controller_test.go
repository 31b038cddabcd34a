package admission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/predictor"
)

func newTestController() (*Controller, *knowledge.Knowledge) {
	k := knowledge.New()
	agg := predictor.NewAggregator("default-hw", false, nil)
	return New(k, agg), k
}

func archWithUnmeasuredProbe(appName string) *knowledge.Application {
	app := knowledge.NewApplication(appName)
	probe := &knowledge.Probe{Name: "p1", Requirements: []knowledge.Requirement{knowledge.ThroughputContract{MeanRequestTimeMs: 100}}}
	comp := &knowledge.Component{Name: "web", Cardinality: knowledge.Single, Type: knowledge.Managed, Probes: []*knowledge.Probe{probe}}
	app.AddComponent(comp)
	return app
}

func TestSubmitArchitectureAssignsAliasesAndDoesNotPublishWithoutMeasurement(t *testing.T) {
	c, k := newTestController()
	app := archWithUnmeasuredProbe("app1")

	outcome, err := c.SubmitArchitecture(context.Background(), app)
	require.NoError(t, err)
	require.NotEqual(t, OutcomeAccepted, outcome, "expected NEEDS_DATA without any measurement")
	require.NotEmpty(t, app.Components["web"].Probes[0].Alias)
	require.Nil(t, k.Application("app1"), "expected application not to be published to Knowledge before ACCEPTED")
}

func TestSubmitArchitectureAssignsDistinctAliasesAcrossSubmissions(t *testing.T) {
	c, _ := newTestController()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		app := archWithUnmeasuredProbe("app")
		c.aliases.AssignAliases(app)
		alias := app.Components["web"].Probes[0].Alias
		require.False(t, seen[alias], "expected unique aliases, got duplicate %s", alias)
		seen[alias] = true
	}
}

func TestDeleteApplicationRemovesFromKnowledge(t *testing.T) {
	c, k := newTestController()
	app := knowledge.NewApplication("app1")
	k.AddApplication(app)

	require.NoError(t, c.DeleteApplication(context.Background(), "app1"))
	require.Nil(t, k.Application("app1"))
}

func TestUpdateAccessTokenRefusedWhileJobMeasuring(t *testing.T) {
	c, _ := newTestController()
	c.jobs["1"] = &jobRecord{id: "1", status: Measuring}

	require.Error(t, c.UpdateAccessToken(context.Background(), "tok"))
}

func TestUpdateAccessTokenAllowedWhenNoJobsBlocking(t *testing.T) {
	c, k := newTestController()
	require.NoError(t, c.UpdateAccessToken(context.Background(), "tok"))
	tok := k.APIEndpointAccessToken()
	require.NotNil(t, tok)
	require.Equal(t, "tok", *tok)
}

func TestJobLifecycleSubmitDeployRun(t *testing.T) {
	c, k := newTestController()

	id, err := c.SubmitJob(context.Background(), JobSpec{ContainerImage: "img", Code: "print(1)"})
	require.NoError(t, err)
	status, _ := c.GetJobStatus(context.Background(), id)
	require.Equal(t, NotPresent, status)

	status, err = c.DeployJob(context.Background(), id, knowledge.ThroughputContract{MeanRequestTimeMs: 50})
	require.NoError(t, err)
	require.NotEqual(t, Accepted, status, "expected job to need measurement data before acceptance")

	require.Error(t, c.RunJob(context.Background(), id, nil), "expected RunJob to refuse a non-ACCEPTED job")

	c.jobs[id].status = Accepted
	require.NoError(t, c.RunJob(context.Background(), id, map[string]string{"config": "x=1"}))
	status, _ = c.GetJobStatus(context.Background(), id)
	require.Equal(t, Deployed, status)
	require.NotNil(t, k.Application(jobAppName(id)))

	require.NoError(t, c.UnscheduleJob(context.Background(), id))
	status, _ = c.GetJobStatus(context.Background(), id)
	require.Equal(t, Accepted, status)
	require.Nil(t, k.Application(jobAppName(id)))
}

func TestRunJobMarksNoResourcesWhenClusterStarved(t *testing.T) {
	c, k := newTestController()

	starved := knowledge.NewApplication("starved-app")
	starved.AddComponent(&knowledge.Component{Name: "web", Cardinality: knowledge.Single, Type: knowledge.Managed})
	k.AddApplication(starved)

	id, err := c.SubmitJob(context.Background(), JobSpec{ContainerImage: "img", Code: "print(1)"})
	require.NoError(t, err)
	c.jobs[id].status = Accepted

	require.NoError(t, c.RunJob(context.Background(), id, nil))
	status, _ := c.GetJobStatus(context.Background(), id)
	require.Equal(t, NoResources, status)
	require.Nil(t, k.Application(jobAppName(id)), "expected job application not to be published while starved")
}
