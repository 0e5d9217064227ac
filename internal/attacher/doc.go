// Package attacher implements the ephemeral debug-container attach protocol:
// check for an existing debug container, inject one if absent (additive-only
// strategic merge patch on the pod's ephemeralcontainers subresource), then
// poll pod status at a fixed interval until the container reports running.
//
// The protocol is idempotent per pod and debug container name. A container
// observed terminated makes that name permanently unusable for the pod's
// remaining lifetime, because Kubernetes forbids removing or replacing
// ephemeral containers; the caller is told to restart the pod.
package attacher
