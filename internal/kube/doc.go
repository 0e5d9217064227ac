// Package kube is the cluster access layer for kubedbg.
//
// It wraps the Kubernetes Go client behind the narrow Client interface the
// debug-session orchestration needs: reading pods, patching the pod's
// ephemeralcontainers subresource, and opening the SPDY port-forward tunnel
// used as the debugger transport.
//
// # Core Components
//
// Client: the contract consumed by the attacher, forwarder and session
// coordinator. The production implementation talks to a real API server;
// tests substitute fakes built on k8s.io/client-go/kubernetes/fake.
//
// Tunnel: one upgraded port-forward connection to a single pod. Every local
// TCP connection accepted by the forwarder opens its own data/error stream
// pair on the tunnel, so multiple debugger connections can share it.
//
// Context handling follows the standard kubeconfig loading rules; a specific
// context can be selected per session without touching the file on disk.
//
// # Error Handling
//
// API errors keep their apimachinery status so callers can distinguish
// NotFound from transport failures with k8s.io/apimachinery/pkg/api/errors.
//
// # Thread Safety
//
// Client implementations are stateless per call and safe for concurrent use.
// A Tunnel serializes stream creation internally.
package kube
