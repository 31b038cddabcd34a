package planner

import (
	"context"
	"testing"

	"github.com/qoscloud/adaptation-controller/internal/executor"
	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// fakeClient records every call it receives instead of talking to a cluster.
type fakeClient struct {
	calls []string
}

func (f *fakeClient) CreateNamespace(ctx context.Context, appName string) error {
	f.calls = append(f.calls, "CreateNamespace:"+appName)
	return nil
}
func (f *fakeClient) DeleteNamespace(ctx context.Context, appName string) error {
	f.calls = append(f.calls, "DeleteNamespace:"+appName)
	return nil
}
func (f *fakeClient) CreateDockerSecret(ctx context.Context, appName, secretName string) error {
	f.calls = append(f.calls, "CreateDockerSecret:"+appName)
	return nil
}
func (f *fakeClient) DeleteDockerSecret(ctx context.Context, appName, secretName string) error {
	f.calls = append(f.calls, "DeleteDockerSecret:"+appName)
	return nil
}
func (f *fakeClient) CreateService(ctx context.Context, appName, compName string) error {
	f.calls = append(f.calls, "CreateService:"+appName+"/"+compName)
	return nil
}
func (f *fakeClient) DeleteService(ctx context.Context, appName, compName, instanceID string) error {
	f.calls = append(f.calls, "DeleteService:"+appName+"/"+compName)
	return nil
}
func (f *fakeClient) CreateDeployment(ctx context.Context, c *knowledge.ManagedCompin, template string) error {
	f.calls = append(f.calls, "CreateDeployment:"+c.CompName+"/"+c.ID)
	return nil
}
func (f *fakeClient) UpdateDeployment(ctx context.Context, c *knowledge.ManagedCompin, template string) error {
	f.calls = append(f.calls, "UpdateDeployment:"+c.CompName+"/"+c.ID)
	return nil
}
func (f *fakeClient) DeleteDeployment(ctx context.Context, c *knowledge.ManagedCompin) error {
	f.calls = append(f.calls, "DeleteDeployment:"+c.CompName+"/"+c.ID)
	return nil
}
func (f *fakeClient) InitializeInstance(ctx context.Context, c *knowledge.ManagedCompin, apiEndpoint string) error {
	f.calls = append(f.calls, "InitializeInstance:"+c.CompName+"/"+c.ID)
	return nil
}
func (f *fakeClient) SetMongoParameters(ctx context.Context, c *knowledge.ManagedCompin, mongosIP string) error {
	f.calls = append(f.calls, "SetMongoParameters:"+c.CompName+"/"+c.ID)
	return nil
}
func (f *fakeClient) SetMiddlewareAddress(ctx context.Context, dependentApp, dependentComp, dependentID, depCompName, providerIP string) error {
	f.calls = append(f.calls, "SetMiddlewareAddress:"+dependentComp+"/"+dependentID+"->"+depCompName)
	return nil
}
func (f *fakeClient) Finalize(ctx context.Context, c *knowledge.ManagedCompin) error {
	f.calls = append(f.calls, "Finalize:"+c.CompName+"/"+c.ID)
	return nil
}

func runAll(t *testing.T, k *knowledge.Knowledge, tasks []*executor.Task) {
	t.Helper()
	const maxRounds = 20
	remaining := tasks
	for round := 0; round < maxRounds && len(remaining) > 0; round++ {
		var next []*executor.Task
		for _, task := range remaining {
			if !task.Runnable(k) {
				next = append(next, task)
				continue
			}
			ok, err := task.Execute(context.Background())
			if err != nil {
				t.Fatalf("task %s failed: %v", task.ID, err)
			}
			if !ok {
				t.Fatalf("task %s did not succeed", task.ID)
			}
			if task.UpdateModel != nil {
				task.UpdateModel(k)
			}
		}
		remaining = next
	}
	if len(remaining) > 0 {
		t.Fatalf("%d tasks never became runnable", len(remaining))
	}
}

func TestPlanCreateSequenceRespectsPreconditions(t *testing.T) {
	k := knowledge.New()
	app := knowledge.NewApplication("app1")
	app.AddComponent(&knowledge.Component{Name: "web", ApplicationName: "app1", Cardinality: knowledge.Single, Type: knowledge.Managed})
	k.AddApplication(app)

	desired := knowledge.NewCloudState()
	mc := &knowledge.ManagedCompin{AppName: "app1", CompName: "web", ID: "i1", NodeName: "n1", IP: "10.0.0.1"}
	desired.AddCompin(mc)

	client := &fakeClient{}
	p := New(client, "mongos:27017", "https://api", "regcred")

	tasks := p.Plan(k, knowledge.NewCloudState(), desired, map[string]*knowledge.Application{"app1": app})
	if len(tasks) == 0 {
		t.Fatalf("expected at least one task")
	}
	runAll(t, k, tasks)

	if !k.Application("app1").NamespaceCreated {
		t.Fatalf("expected namespace to be created")
	}
	if !k.Application("app1").SecretAdded {
		t.Fatalf("expected secret to be added")
	}
	live := k.ActualState().GetManagedCompin("app1", "web", "i1")
	if live == nil {
		t.Fatalf("expected instance to be present in actual state")
	}
	if live.Phase < knowledge.PhaseInit {
		t.Fatalf("expected InitializeInstance to have advanced phase, got %s", live.Phase)
	}

	wantOrder := []string{"CreateNamespace:app1", "CreateDockerSecret:app1"}
	for i, want := range wantOrder {
		if i >= len(client.calls) || client.calls[i] != want {
			t.Fatalf("expected call %d to be %s, got %v", i, want, client.calls)
		}
	}
}

func TestPlanDeleteSequenceTearsDownNamespaceOnLastInstance(t *testing.T) {
	k := knowledge.New()
	app := knowledge.NewApplication("app1")
	app.AddComponent(&knowledge.Component{Name: "web", ApplicationName: "app1", Cardinality: knowledge.Single, Type: knowledge.Managed})
	app.NamespaceCreated = true
	app.SecretAdded = true
	k.AddApplication(app)

	// The Monitor has already observed the pod terminate: the instance is
	// FINISHED in Knowledge's actual_state, which the delete preconditions read.
	mc := &knowledge.ManagedCompin{AppName: "app1", CompName: "web", ID: "i1", Phase: knowledge.PhaseFinished}
	k.MutateActualState(func(cs *knowledge.CloudState) { cs.AddCompin(mc) })
	actual := k.ActualState()

	client := &fakeClient{}
	p := New(client, "", "", "regcred")

	tasks := p.Plan(k, actual, knowledge.NewCloudState(), map[string]*knowledge.Application{"app1": app})
	runAll(t, k, tasks)

	foundFinalize, foundDeleteNS := false, false
	for _, c := range client.calls {
		if c == "Finalize:web/i1" {
			foundFinalize = true
		}
		if c == "DeleteNamespace:app1" {
			foundDeleteNS = true
		}
	}
	if !foundFinalize {
		t.Fatalf("expected Finalize to be called, got %v", client.calls)
	}
	if !foundDeleteNS {
		t.Fatalf("expected namespace teardown on last instance, got %v", client.calls)
	}
	if !k.Application("app1").NamespaceDeleted {
		t.Fatalf("expected NamespaceDeleted to be set")
	}
}

func TestPlanSkipsUpdateDeploymentWhenTemplateUnchanged(t *testing.T) {
	k := knowledge.New()
	comp := &knowledge.Component{Name: "web", ApplicationName: "app1", Cardinality: knowledge.Single, Type: knowledge.Managed, DeploymentTemplate: "v1"}
	app := knowledge.NewApplication("app1")
	app.AddComponent(comp)
	k.AddApplication(app)

	actual := knowledge.NewCloudState()
	mc := &knowledge.ManagedCompin{AppName: "app1", CompName: "web", ID: "i1", Phase: knowledge.PhaseReady, DeployedTemplate: "v1"}
	actual.AddCompin(mc)

	client := &fakeClient{}
	p := New(client, "", "", "regcred")

	tasks := p.Plan(k, actual, actual, map[string]*knowledge.Application{"app1": app})
	for _, task := range tasks {
		if task.ID == "UpdateDeployment:app1/web/i1" {
			t.Fatalf("expected no UpdateDeployment task when template unchanged")
		}
	}

	comp.DeploymentTemplate = "v2"
	tasks = p.Plan(k, actual, actual, map[string]*knowledge.Application{"app1": app})
	var found bool
	for _, task := range tasks {
		if task.ID == "UpdateDeployment:app1/web/i1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected UpdateDeployment task once template drifts")
	}
	runAll(t, k, tasks)
	if mc.DeployedTemplate != "v2" {
		t.Fatalf("expected DeployedTemplate to be updated to v2, got %s", mc.DeployedTemplate)
	}
}
