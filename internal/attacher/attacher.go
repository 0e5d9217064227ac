package attacher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"

	"kubedbg/internal/kube"
	"kubedbg/pkg/logging"
)

const (
	// DefaultTimeout bounds the readiness poll.
	DefaultTimeout = 120 * time.Second

	// DefaultPollInterval is the fixed wait between pod status reads.
	DefaultPollInterval = time.Second
)

// Options tunes one EnsureAttached call.
type Options struct {
	// Image is the debug-agent image for the ephemeral container. Required.
	Image string

	// Timeout bounds the readiness poll. Zero means DefaultTimeout.
	Timeout time.Duration

	// PollInterval overrides the wait between status reads. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// EnsureAttached guarantees a running debug sidecar named debugName sharing
// targetContainer's process namespace on the referenced pod, idempotently:
// an ephemeral container that already exists is never patched again.
//
// The call mutates cluster state at most once per pod+debugName pair for the
// pod's lifetime. Concurrent calls for the same pair are not race-free
// against the existence check and must be serialized by the caller; a patch
// the API rejects because the container appeared in between is treated as
// success.
//
// Cancelling ctx aborts the poll with the context error. On success the
// refreshed pod and the running debug container status are returned.
func EnsureAttached(
	ctx context.Context,
	client kube.Client,
	log logging.Sink,
	ref kube.PodRef,
	targetContainer string,
	debugName string,
	opts Options,
) (*corev1.Pod, *corev1.ContainerStatus, error) {
	opts = opts.withDefaults()
	subsystem := "Attach-" + debugName

	pod, err := client.ReadPod(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if !hasContainer(pod, targetContainer) {
		return nil, nil, &NotFoundError{Pod: ref, Container: targetContainer}
	}

	if hasEphemeralContainer(pod, debugName) {
		log.Debug(subsystem, "Debug container %q already present on pod %s, skipping injection", debugName, ref)
	} else {
		log.Info(subsystem, "Injecting debug container %q (image %s, target %s) into pod %s",
			debugName, opts.Image, targetContainer, ref)
		if err := inject(ctx, client, ref, targetContainer, debugName, opts.Image); err != nil {
			return nil, nil, err
		}
	}

	return pollUntilRunning(ctx, client, log, ref, debugName, opts)
}

// inject submits the additive-only strategic merge patch. If the API rejects
// it but a fresh read shows the container present, someone else won the race
// and that is fine.
func inject(ctx context.Context, client kube.Client, ref kube.PodRef, targetContainer, debugName, image string) error {
	patch, err := buildEphemeralContainerPatch(debugName, image, targetContainer)
	if err != nil {
		return err
	}
	if _, err := client.PatchPodEphemeralContainers(ctx, ref, patch); err != nil {
		refreshed, readErr := client.ReadPod(ctx, ref)
		if readErr == nil && hasEphemeralContainer(refreshed, debugName) {
			return nil
		}
		return err
	}
	return nil
}

func buildEphemeralContainerPatch(debugName, image, targetContainer string) ([]byte, error) {
	patch := map[string]any{
		"spec": map[string]any{
			"ephemeralContainers": []map[string]any{
				{
					"name":                debugName,
					"image":               image,
					"targetContainerName": targetContainer,
					"stdin":               false,
					"tty":                 false,
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to build ephemeral container patch: %w", err)
	}
	return body, nil
}

// pollUntilRunning re-reads the pod at a fixed interval until the debug
// container reports running, reports terminated (fatal, the name is burned),
// the timeout elapses, or ctx is cancelled.
func pollUntilRunning(
	ctx context.Context,
	client kube.Client,
	log logging.Sink,
	ref kube.PodRef,
	debugName string,
	opts Options,
) (*corev1.Pod, *corev1.ContainerStatus, error) {
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	subsystem := "Attach-" + debugName
	for {
		pod, err := client.ReadPod(ctx, ref)
		if err != nil {
			return nil, nil, err
		}

		if status := ephemeralContainerStatus(pod, debugName); status != nil {
			switch {
			case status.State.Terminated != nil:
				return nil, nil, &ConflictTerminatedError{Pod: ref, DebugContainer: debugName}
			case status.State.Running != nil:
				log.Info(subsystem, "Debug container %q is running on pod %s", debugName, ref)
				return pod, status, nil
			default:
				log.Debug(subsystem, "Debug container %q on pod %s is waiting", debugName, ref)
			}
		} else {
			log.Debug(subsystem, "Debug container %q not yet scheduled on pod %s", debugName, ref)
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-deadline.C:
			return nil, nil, &TimeoutError{Pod: ref, DebugContainer: debugName, Timeout: opts.Timeout}
		case <-ticker.C:
		}
	}
}

func hasContainer(pod *corev1.Pod, name string) bool {
	for _, c := range pod.Spec.Containers {
		if c.Name == name {
			return true
		}
	}
	return false
}

func hasEphemeralContainer(pod *corev1.Pod, name string) bool {
	for _, ec := range pod.Spec.EphemeralContainers {
		if ec.Name == name {
			return true
		}
	}
	return false
}

func ephemeralContainerStatus(pod *corev1.Pod, name string) *corev1.ContainerStatus {
	for i := range pod.Status.EphemeralContainerStatuses {
		if pod.Status.EphemeralContainerStatuses[i].Name == name {
			return &pod.Status.EphemeralContainerStatuses[i]
		}
	}
	return nil
}
