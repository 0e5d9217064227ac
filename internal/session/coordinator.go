package session

import (
	"context"
	"fmt"
	"sync"

	"kubedbg/internal/attacher"
	"kubedbg/internal/config"
	"kubedbg/internal/forwarding"
	"kubedbg/internal/kube"
	"kubedbg/pkg/logging"
)

// State tracks where the coordinator is in an attach session.
type State int

const (
	StateIdle State = iota
	StateAttaching
	StateForwarding
	StateLaunched
	StateFailed
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAttaching:
		return "Attaching"
	case StateForwarding:
		return "Forwarding"
	case StateLaunched:
		return "Launched"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Launcher hands the finished attach descriptor to the external debugger.
// It is the session's last step; everything before it is orchestration.
type Launcher interface {
	Launch(ctx context.Context, descriptor *AttachDescriptor, descriptorPath string) error
}

// LauncherFunc adapts a plain function to the Launcher interface.
type LauncherFunc func(ctx context.Context, descriptor *AttachDescriptor, descriptorPath string) error

func (f LauncherFunc) Launch(ctx context.Context, descriptor *AttachDescriptor, descriptorPath string) error {
	return f(ctx, descriptor, descriptorPath)
}

// AttachRequest names the debug target for one session.
type AttachRequest struct {
	Pod       kube.PodRef
	Container string

	// ProcessID is the target process inside the shared process namespace.
	ProcessID int

	// LocalPort pins the forwarder's local port; 0 picks an ephemeral one.
	LocalPort int
}

// Coordinator sequences attach -> forward -> descriptor -> launch and
// guarantees nothing leaks when any step fails. One coordinator runs one
// session at a time.
type Coordinator struct {
	client   kube.Client
	log      logging.Sink
	cfg      config.Config
	launcher Launcher

	mu    sync.Mutex
	state State
}

// NewCoordinator wires a coordinator. The logging sink and launcher are
// injected; the coordinator never reaches for globals.
func NewCoordinator(client kube.Client, log logging.Sink, cfg config.Config, launcher Launcher) *Coordinator {
	return &Coordinator{
		client:   client,
		log:      log,
		cfg:      cfg,
		launcher: launcher,
		state:    StateIdle,
	}
}

// State reports the coordinator's current position in the session lifecycle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Session is a launched attach session. Close disposes the tunnel early; a
// single-use forwarder otherwise disposes itself once the debugger's
// connection completes, after which the session workspace is removed.
type Session struct {
	Descriptor     *AttachDescriptor
	DescriptorPath string
	DebugContainer string

	forwarder *forwarding.Forwarder
}

// LocalEndpoint is the loopback endpoint the debugger connects to.
func (s *Session) LocalEndpoint() forwarding.Endpoint {
	return s.forwarder.LocalEndpoint()
}

// Done is closed once the session's tunnel has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.forwarder.Done()
}

// Close tears the session down before the debugger connection completes on
// its own. Safe to call any number of times.
func (s *Session) Close() {
	s.forwarder.Dispose()
}

// RunAttachSession performs one user-visible attach: ensure the debug
// sidecar is running, start a single-use tunnel to its SSH port, write the
// session workspace, and hand the attach descriptor to the launcher.
//
// Attacher errors propagate verbatim; they are already descriptive. Any
// failure after the forwarder started disposes it explicitly, because the
// single-use self-dispose trigger (a completed connection) would never fire.
func (c *Coordinator) RunAttachSession(ctx context.Context, req AttachRequest) (*Session, error) {
	subsystem := fmt.Sprintf("Session-%s", req.Pod.Name)
	debugName := c.cfg.DebugContainerName(req.Container)

	c.setState(StateAttaching)
	c.log.Info(subsystem, "Attaching debugger to pod %s container %s (pid %d)", req.Pod, req.Container, req.ProcessID)

	_, _, err := attacher.EnsureAttached(ctx, c.client, c.log, req.Pod, req.Container, debugName, attacher.Options{
		Image:        c.cfg.Agent.Image,
		Timeout:      c.cfg.Attach.Timeout,
		PollInterval: c.cfg.Attach.PollInterval,
	})
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateForwarding)
	fwd, err := forwarding.Start(ctx, c.client, c.log, req.Pod, c.cfg.Agent.SSHPort, forwarding.ModeSingleUse, req.LocalPort)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	session, err := c.finishSession(ctx, subsystem, req, debugName, fwd)
	if err != nil {
		fwd.Dispose()
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateLaunched)
	return session, nil
}

// finishSession builds the workspace and descriptor and hands off to the
// launcher. The caller owns forwarder cleanup on error.
func (c *Coordinator) finishSession(
	ctx context.Context,
	subsystem string,
	req AttachRequest,
	debugName string,
	fwd *forwarding.Forwarder,
) (*Session, error) {
	ws, err := newWorkspace()
	if err != nil {
		return nil, err
	}

	identityPath, err := ws.writeIdentityFile()
	if err != nil {
		ws.remove()
		return nil, err
	}

	descriptor := buildDescriptor(c.cfg, fwd.LocalEndpoint(), identityPath, req.ProcessID)
	descriptorPath, err := ws.writeDescriptor(descriptor)
	if err != nil {
		ws.remove()
		return nil, err
	}

	c.log.Info(subsystem, "Debugger endpoint ready at %s, descriptor at %s", fwd.LocalEndpoint().Address(), descriptorPath)
	if err := c.launcher.Launch(ctx, descriptor, descriptorPath); err != nil {
		ws.remove()
		return nil, fmt.Errorf("debugger launch failed: %w", err)
	}

	// The workspace lives until the tunnel goes away, however that happens.
	go func() {
		<-fwd.Done()
		ws.remove()
		c.mu.Lock()
		if c.state == StateLaunched {
			c.state = StateIdle
		}
		c.mu.Unlock()
		c.log.Debug(subsystem, "Session for pod %s cleaned up", req.Pod)
	}()

	return &Session{
		Descriptor:     descriptor,
		DescriptorPath: descriptorPath,
		DebugContainer: debugName,
		forwarder:      fwd,
	}, nil
}
