package kube

import (
	"context"
	"fmt"
	"net/http"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // Important for various auth providers
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// Client is the cluster contract consumed by the debug-session orchestration.
// Transport errors and NotFound keep their apimachinery status types, so
// callers can tell them apart with k8s.io/apimachinery/pkg/api/errors.
type Client interface {
	// ReadPod fetches the current state of the referenced pod.
	ReadPod(ctx context.Context, ref PodRef) (*corev1.Pod, error)

	// PatchPodEphemeralContainers applies a strategic-merge patch against the
	// pod's ephemeralcontainers subresource. Kubernetes only permits adding
	// entries there, never removing or replacing them.
	PatchPodEphemeralContainers(ctx context.Context, ref PodRef, patch []byte) (*corev1.Pod, error)

	// OpenTunnel upgrades a connection to the pod's port-forward subresource.
	// The returned Tunnel multiplexes any number of per-connection streams.
	OpenTunnel(ctx context.Context, ref PodRef) (Tunnel, error)
}

// client is the production Client backed by a real API server connection.
type client struct {
	clientset  kubernetes.Interface
	restConfig *rest.Config
}

// NewClient wraps an existing clientset and REST config. The REST config is
// only needed for the SPDY upgrade; callers that never open tunnels may pass
// nil.
func NewClient(clientset kubernetes.Interface, restConfig *rest.Config) Client {
	return &client{clientset: clientset, restConfig: restConfig}
}

// NewClientForContext builds a Client for the named kubeconfig context,
// following the default loading rules. An empty context selects the current
// one.
func NewClientForContext(kubeContext string) (Client, error) {
	restConfig, err := RESTConfigForContext(kubeContext)
	if err != nil {
		return nil, err
	}
	restConfig.Timeout = 30 * time.Second

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	// The tunnel upgrade must not inherit the request timeout; a port-forward
	// connection lives as long as the session.
	tunnelConfig := rest.CopyConfig(restConfig)
	tunnelConfig.Timeout = 0
	return &client{clientset: clientset, restConfig: tunnelConfig}, nil
}

func (c *client) ReadPod(ctx context.Context, ref PodRef) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read pod %s: %w", ref, err)
	}
	return pod, nil
}

func (c *client) PatchPodEphemeralContainers(ctx context.Context, ref PodRef, patch []byte) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(ref.Namespace).Patch(
		ctx,
		ref.Name,
		types.StrategicMergePatchType,
		patch,
		metav1.PatchOptions{},
		"ephemeralcontainers",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to patch ephemeral containers of pod %s: %w", ref, err)
	}
	return pod, nil
}

func (c *client) OpenTunnel(ctx context.Context, ref PodRef) (Tunnel, error) {
	if c.restConfig == nil {
		return nil, fmt.Errorf("no REST config available for tunnel to pod %s", ref)
	}

	reqURL := c.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(ref.Namespace).
		Name(ref.Name).
		SubResource("portforward").
		URL()

	transport, upgrader, err := spdy.RoundTripperFor(c.restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create SPDY round tripper: %w", err)
	}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, reqURL)

	streamConn, protocol, err := dialer.Dial(portforward.PortForwardProtocolV1Name)
	if err != nil {
		return nil, fmt.Errorf("failed to dial port-forward for pod %s: %w", ref, err)
	}
	if protocol != portforward.PortForwardProtocolV1Name {
		streamConn.Close()
		return nil, fmt.Errorf("pod %s negotiated unsupported port-forward protocol %q", ref, protocol)
	}

	return newSPDYTunnel(streamConn), nil
}
