// Package orchestrator defines the Kubernetes-facing boundary the Planner's
// tasks call through, and a client-go/controller-runtime-backed
// implementation of it. Concrete cluster access is the one part of this
// system spec.md explicitly puts out of scope; this package is the seam.
package orchestrator

import (
	"context"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
)

// Client is the OrchestratorClient/MiddlewareAgent boundary: every
// cluster-mutating action a Task may perform. Implementations must make
// every method idempotent with respect to 404-on-delete/409-on-create,
// per spec.md 7 -- see CallK8sAPI.
type Client interface {
	CreateNamespace(ctx context.Context, appName string) error
	DeleteNamespace(ctx context.Context, appName string) error
	CreateDockerSecret(ctx context.Context, appName, secretName string) error
	DeleteDockerSecret(ctx context.Context, appName, secretName string) error
	CreateService(ctx context.Context, appName, compName string) error
	DeleteService(ctx context.Context, appName, compName, instanceID string) error
	CreateDeployment(ctx context.Context, c *knowledge.ManagedCompin, template string) error
	UpdateDeployment(ctx context.Context, c *knowledge.ManagedCompin, template string) error
	DeleteDeployment(ctx context.Context, c *knowledge.ManagedCompin) error

	InitializeInstance(ctx context.Context, c *knowledge.ManagedCompin, apiEndpoint string) error
	SetMongoParameters(ctx context.Context, c *knowledge.ManagedCompin, mongosIP string) error
	// SetMiddlewareAddress tells the dependent instance (managed or
	// unmanaged -- identified by app/component/instance rather than a
	// concrete type) where to reach depCompName.
	SetMiddlewareAddress(ctx context.Context, dependentApp, dependentComp, dependentID, depCompName, providerIP string) error
	Finalize(ctx context.Context, c *knowledge.ManagedCompin) error
}
