package attacher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"kubedbg/internal/kube"
	"kubedbg/pkg/logging"
)

var testRef = kube.PodRef{Namespace: "default", Name: "demo-pod"}

const (
	testTarget = "app"
	testDebug  = "debugger-app"
	testImage  = "registry.example.com/debug-agent:latest"
)

// fakeClusterClient scripts pod state as a function of how many reads and
// patches have happened so far.
type fakeClusterClient struct {
	mu       sync.Mutex
	reads    int
	patches  int
	patchErr error
	podFn    func(reads, patches int) *corev1.Pod
}

func (f *fakeClusterClient) ReadPod(ctx context.Context, ref kube.PodRef) (*corev1.Pod, error) {
	f.mu.Lock()
	f.reads++
	reads, patches := f.reads, f.patches
	f.mu.Unlock()
	return f.podFn(reads, patches), nil
}

func (f *fakeClusterClient) PatchPodEphemeralContainers(ctx context.Context, ref kube.PodRef, patch []byte) (*corev1.Pod, error) {
	f.mu.Lock()
	f.patches++
	reads, patches := f.reads, f.patches
	err := f.patchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.podFn(reads, patches), nil
}

func (f *fakeClusterClient) OpenTunnel(ctx context.Context, ref kube.PodRef) (kube.Tunnel, error) {
	return nil, errors.New("tunnel not supported by this fake")
}

func (f *fakeClusterClient) counts() (reads, patches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.patches
}

type podState struct {
	injected bool
	status   *corev1.ContainerState
}

func buildPod(s podState) *corev1.Pod {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: testRef.Namespace, Name: testRef.Name},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: testTarget}},
		},
	}
	if s.injected {
		pod.Spec.EphemeralContainers = []corev1.EphemeralContainer{{
			EphemeralContainerCommon: corev1.EphemeralContainerCommon{Name: testDebug, Image: testImage},
			TargetContainerName:      testTarget,
		}}
	}
	if s.status != nil {
		pod.Status.EphemeralContainerStatuses = []corev1.ContainerStatus{{
			Name:  testDebug,
			State: *s.status,
		}}
	}
	return pod
}

func running() *corev1.ContainerState {
	return &corev1.ContainerState{Running: &corev1.ContainerStateRunning{StartedAt: metav1.Now()}}
}

func terminated() *corev1.ContainerState {
	return &corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 137}}
}

func waiting() *corev1.ContainerState {
	return &corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "ContainerCreating"}}
}

func fastOpts() Options {
	return Options{Image: testImage, Timeout: 5 * time.Second, PollInterval: 10 * time.Millisecond}
}

func TestEnsureAttachedInjectsAndWaitsForRunning(t *testing.T) {
	client := &fakeClusterClient{
		podFn: func(reads, patches int) *corev1.Pod {
			if patches == 0 {
				return buildPod(podState{})
			}
			// One poll sees the container waiting, the next sees it running.
			if reads < 3 {
				return buildPod(podState{injected: true, status: waiting()})
			}
			return buildPod(podState{injected: true, status: running()})
		},
	}

	pod, status, err := EnsureAttached(context.Background(), client, logging.NewNopSink(), testRef, testTarget, testDebug, fastOpts())
	require.NoError(t, err)
	require.NotNil(t, pod)
	require.NotNil(t, status)
	assert.NotNil(t, status.State.Running)

	_, patches := client.counts()
	assert.Equal(t, 1, patches)
}

func TestEnsureAttachedIsIdempotent(t *testing.T) {
	client := &fakeClusterClient{
		podFn: func(reads, patches int) *corev1.Pod {
			return buildPod(podState{injected: true, status: running()})
		},
	}

	for i := 0; i < 2; i++ {
		_, _, err := EnsureAttached(context.Background(), client, logging.NewNopSink(), testRef, testTarget, testDebug, fastOpts())
		require.NoError(t, err)
	}

	_, patches := client.counts()
	assert.Equal(t, 0, patches, "existing debug container must never be re-patched")
}

func TestEnsureAttachedTerminatedIsFatal(t *testing.T) {
	client := &fakeClusterClient{
		podFn: func(reads, patches int) *corev1.Pod {
			return buildPod(podState{injected: true, status: terminated()})
		},
	}

	_, _, err := EnsureAttached(context.Background(), client, logging.NewNopSink(), testRef, testTarget, testDebug, fastOpts())
	require.Error(t, err)

	var conflictErr *ConflictTerminatedError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, testDebug, conflictErr.DebugContainer)
	assert.Contains(t, err.Error(), "restart the pod")

	// One read for the existence check, one poll read that saw Terminated.
	reads, _ := client.counts()
	assert.Equal(t, 2, reads, "polling must stop at the first Terminated observation")
}

func TestEnsureAttachedTimeoutBound(t *testing.T) {
	client := &fakeClusterClient{
		podFn: func(reads, patches int) *corev1.Pod {
			return buildPod(podState{injected: true, status: waiting()})
		},
	}

	opts := Options{Image: testImage, Timeout: 100 * time.Millisecond, PollInterval: 20 * time.Millisecond}
	start := time.Now()
	_, _, err := EnsureAttached(context.Background(), client, logging.NewNopSink(), testRef, testTarget, testDebug, opts)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, testDebug, timeoutErr.DebugContainer)
	assert.Equal(t, opts.Timeout, timeoutErr.Timeout)

	assert.GreaterOrEqual(t, elapsed, opts.Timeout)
	assert.Less(t, elapsed, opts.Timeout+opts.PollInterval+100*time.Millisecond)
}

func TestEnsureAttachedTargetContainerMissing(t *testing.T) {
	client := &fakeClusterClient{
		podFn: func(reads, patches int) *corev1.Pod {
			return buildPod(podState{})
		},
	}

	_, _, err := EnsureAttached(context.Background(), client, logging.NewNopSink(), testRef, "no-such-container", testDebug, fastOpts())
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "no-such-container", notFoundErr.Container)

	_, patches := client.counts()
	assert.Equal(t, 0, patches)
}

func TestEnsureAttachedDuplicatePatchTreatedAsSuccess(t *testing.T) {
	// The API rejects the patch because a concurrent attach already injected
	// the container; the re-read sees it present and the attach proceeds.
	client := &fakeClusterClient{
		patchErr: errors.New("Pod \"demo-pod\" is invalid: spec.ephemeralContainers: Forbidden: existing ephemeral containers may not be changed"),
		podFn: func(reads, patches int) *corev1.Pod {
			if patches == 0 {
				return buildPod(podState{})
			}
			return buildPod(podState{injected: true, status: running()})
		},
	}

	_, status, err := EnsureAttached(context.Background(), client, logging.NewNopSink(), testRef, testTarget, testDebug, fastOpts())
	require.NoError(t, err)
	assert.NotNil(t, status.State.Running)
}

func TestEnsureAttachedContextCancellation(t *testing.T) {
	client := &fakeClusterClient{
		podFn: func(reads, patches int) *corev1.Pod {
			return buildPod(podState{injected: true, status: waiting()})
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	opts := Options{Image: testImage, Timeout: 10 * time.Second, PollInterval: 10 * time.Millisecond}
	start := time.Now()
	_, _, err := EnsureAttached(ctx, client, logging.NewNopSink(), testRef, testTarget, testDebug, opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation must abort the poll promptly")
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Image: testImage}.withDefaults()
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, DefaultPollInterval, opts.PollInterval)
}
