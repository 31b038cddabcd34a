package orchestrator

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/qoscloud/adaptation-controller/internal/knowledge"
	"github.com/qoscloud/adaptation-controller/internal/monitor"
)

// K8sClient implements Client against a real cluster via
// controller-runtime's typed client, the same library the teacher's
// webhook/config packages build their manager around.
type K8sClient struct {
	cli client.Client
}

// NewK8sClient wraps an already-constructed controller-runtime client.
func NewK8sClient(cli client.Client) *K8sClient {
	return &K8sClient{cli: cli}
}

// CallK8sAPI runs op and maps the idempotent "already gone"/"already
// exists" outcomes to success, per spec.md 7: 404 on delete and 409 on
// create are not errors.
func CallK8sAPI(op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if apierrors.IsNotFound(err) {
		return nil
	}
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

func (k *K8sClient) CreateNamespace(ctx context.Context, appName string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: appName}}
	return CallK8sAPI(func() error { return k.cli.Create(ctx, ns) })
}

func (k *K8sClient) DeleteNamespace(ctx context.Context, appName string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: appName}}
	return CallK8sAPI(func() error { return k.cli.Delete(ctx, ns) })
}

func (k *K8sClient) CreateDockerSecret(ctx context.Context, appName, secretName string) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: secretName, Namespace: appName},
		Type:       corev1.SecretTypeDockerConfigJson,
	}
	return CallK8sAPI(func() error { return k.cli.Create(ctx, secret) })
}

func (k *K8sClient) DeleteDockerSecret(ctx context.Context, appName, secretName string) error {
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: secretName, Namespace: appName}}
	return CallK8sAPI(func() error { return k.cli.Delete(ctx, secret) })
}

func (k *K8sClient) CreateService(ctx context.Context, appName, compName string) error {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: compName, Namespace: appName},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"qoscloud/component": compName},
			Ports:    []corev1.ServicePort{{Port: 80}},
		},
	}
	return CallK8sAPI(func() error { return k.cli.Create(ctx, svc) })
}

func (k *K8sClient) DeleteService(ctx context.Context, appName, compName, instanceID string) error {
	svc := &corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: compName, Namespace: appName}}
	return CallK8sAPI(func() error { return k.cli.Delete(ctx, svc) })
}

func (k *K8sClient) CreateDeployment(ctx context.Context, c *knowledge.ManagedCompin, template string) error {
	dep, err := deploymentFromTemplate(c, template)
	if err != nil {
		return err
	}
	return CallK8sAPI(func() error { return k.cli.Create(ctx, dep) })
}

func (k *K8sClient) UpdateDeployment(ctx context.Context, c *knowledge.ManagedCompin, template string) error {
	dep, err := deploymentFromTemplate(c, template)
	if err != nil {
		return err
	}
	return CallK8sAPI(func() error { return k.cli.Update(ctx, dep) })
}

func (k *K8sClient) DeleteDeployment(ctx context.Context, c *knowledge.ManagedCompin) error {
	dep := deploymentObjectMeta(c)
	return CallK8sAPI(func() error { return k.cli.Delete(ctx, dep) })
}

// InitializeInstance, SetMongoParameters, SetMiddlewareAddress and Finalize
// are MiddlewareAgent RPCs against the workload's own sidecar/agent, not
// the Kubernetes API -- they are out of scope for this adapter's transport
// (gRPC glue is excluded, spec.md 1) and are left as named hooks a
// concrete agent client fills in.
func (k *K8sClient) InitializeInstance(ctx context.Context, c *knowledge.ManagedCompin, apiEndpoint string) error {
	return fmt.Errorf("orchestrator: InitializeInstance requires a MiddlewareAgent client, not wired in this adapter")
}

func (k *K8sClient) SetMongoParameters(ctx context.Context, c *knowledge.ManagedCompin, mongosIP string) error {
	return fmt.Errorf("orchestrator: SetMongoParameters requires a MiddlewareAgent client, not wired in this adapter")
}

func (k *K8sClient) SetMiddlewareAddress(ctx context.Context, dependentApp, dependentComp, dependentID, depCompName, providerIP string) error {
	return fmt.Errorf("orchestrator: SetMiddlewareAddress requires a MiddlewareAgent client, not wired in this adapter")
}

func (k *K8sClient) Finalize(ctx context.Context, c *knowledge.ManagedCompin) error {
	return fmt.Errorf("orchestrator: Finalize requires a MiddlewareAgent client, not wired in this adapter")
}

// deploymentFromTemplate renders the component's YAML deployment template
// (gopkg.in/yaml.v3, the same library the teacher's rule files are parsed
// with) into a concrete, per-instance appsv1.Deployment object.
func deploymentFromTemplate(c *knowledge.ManagedCompin, template string) (*appsv1.Deployment, error) {
	dep := &appsv1.Deployment{}
	if template != "" {
		if err := yaml.Unmarshal([]byte(template), dep); err != nil {
			return nil, fmt.Errorf("orchestrator: parsing deployment template for %s/%s: %w", c.CompName, c.ID, err)
		}
	}
	dep.Name = deploymentName(c)
	dep.Namespace = c.AppName
	if dep.Labels == nil {
		dep.Labels = map[string]string{}
	}
	dep.Labels["qoscloud/component"] = c.CompName
	dep.Labels["qoscloud/instance"] = c.ID
	return dep, nil
}

func deploymentName(c *knowledge.ManagedCompin) string {
	return c.CompName + "-" + c.ID
}

func deploymentObjectMeta(c *knowledge.ManagedCompin) *appsv1.Deployment {
	return &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: deploymentName(c), Namespace: c.AppName}}
}

// ListPods implements monitor.PodObserver directly against the cluster: it
// is the one sub-monitor source this adapter can serve without a
// MiddlewareAgent, since pod phase/placement is plain Kubernetes API data.
func (k *K8sClient) ListPods(ctx context.Context) ([]monitor.PodFact, error) {
	var pods corev1.PodList
	if err := k.cli.List(ctx, &pods); err != nil {
		return nil, fmt.Errorf("orchestrator: listing pods: %w", err)
	}
	facts := make([]monitor.PodFact, 0, len(pods.Items))
	for _, pod := range pods.Items {
		compName, hasComp := pod.Labels["qoscloud/component"]
		instanceID, hasInstance := pod.Labels["qoscloud/instance"]
		if !hasComp || !hasInstance {
			continue
		}
		running := pod.Status.Phase == corev1.PodRunning
		for _, cs := range pod.Status.ContainerStatuses {
			running = running && cs.Ready
		}
		facts = append(facts, monitor.PodFact{
			AppName:    pod.Namespace,
			CompName:   compName,
			InstanceID: instanceID,
			NodeName:   pod.Spec.NodeName,
			IP:         pod.Status.PodIP,
			Running:    running,
			Terminated: pod.Status.Phase == corev1.PodFailed || pod.Status.Phase == corev1.PodSucceeded,
		})
	}
	return facts, nil
}
