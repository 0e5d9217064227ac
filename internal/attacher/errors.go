package attacher

import (
	"fmt"
	"time"

	"kubedbg/internal/kube"
)

// NotFoundError reports a precondition failure: the requested target
// container does not exist in the pod spec. Caller error, never retried.
type NotFoundError struct {
	Pod       kube.PodRef
	Container string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("container %q not found in pod %s", e.Container, e.Pod)
}

// ConflictTerminatedError reports that the debug container with the chosen
// name has terminated. Kubernetes never allows removing or replacing an
// ephemeral container, so the name is burned for this pod's lifetime.
type ConflictTerminatedError struct {
	Pod            kube.PodRef
	DebugContainer string
}

func (e *ConflictTerminatedError) Error() string {
	return fmt.Sprintf(
		"debug container %q on pod %s has terminated and its name cannot be reused; restart the pod and attach again",
		e.DebugContainer, e.Pod)
}

// TimeoutError reports that the debug container reached neither Running nor
// Terminated within the configured bound. The injected ephemeral container is
// left in place; it cannot be rolled back.
type TimeoutError struct {
	Pod            kube.PodRef
	DebugContainer string
	Timeout        time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"debug container %q on pod %s did not reach running state within %s",
		e.DebugContainer, e.Pod, e.Timeout)
}
