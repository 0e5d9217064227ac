package config

import "time"

// Config is the top-level configuration structure for kubedbg.
type Config struct {
	// Agent describes the debug sidecar injected into target pods.
	Agent AgentConfig `yaml:"agent"`

	// Attach tunes the ephemeral-container attach protocol.
	Attach AttachConfig `yaml:"attach"`

	// Debugger describes the local debug adapter the attach descriptor points at.
	Debugger DebuggerConfig `yaml:"debugger"`

	// KubeContext overrides the kubeconfig context for all API calls.
	// Empty means the current context.
	KubeContext string `yaml:"kubeContext,omitempty"`
}

// AgentConfig identifies the debug-agent image and how to reach it.
type AgentConfig struct {
	// Image is the debug-agent image injected as an ephemeral container.
	Image string `yaml:"image,omitempty"`

	// SSHPort is the port the agent's SSH server listens on inside the pod.
	SSHPort uint16 `yaml:"sshPort,omitempty"`

	// ContainerPrefix is prepended to the target container name to form the
	// deterministic ephemeral container name.
	ContainerPrefix string `yaml:"containerPrefix,omitempty"`
}

// AttachConfig tunes the patch-and-poll attach state machine.
type AttachConfig struct {
	// Timeout bounds how long to wait for the debug container to report
	// running before giving up.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// PollInterval is the fixed wait between pod status reads.
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
}

// DebuggerConfig describes the SSH-capable debug adapter referenced by the
// generated attach descriptor.
type DebuggerConfig struct {
	// AdapterPath is the local path of the adapter binary (typically ssh).
	AdapterPath string `yaml:"adapterPath,omitempty"`

	// RemoteStubPath is where the debugger stub lives inside the agent image.
	RemoteStubPath string `yaml:"remoteStubPath,omitempty"`

	// InterpreterFlag is passed to the remote stub to select its wire protocol.
	InterpreterFlag string `yaml:"interpreterFlag,omitempty"`
}
