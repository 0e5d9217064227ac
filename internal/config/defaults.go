package config

import "time"

const (
	// DefaultAgentImage is the debug-agent sidecar image: an SSH server plus
	// the remote debugger stub, with no tooling required in the target image.
	DefaultAgentImage = "ghcr.io/kubedbg/debug-agent:latest"

	// DefaultAgentSSHPort is where the agent's SSH server listens inside the
	// pod's network namespace.
	DefaultAgentSSHPort uint16 = 22

	// DefaultContainerPrefix forms deterministic debug container names, e.g.
	// target "app" becomes "debugger-app".
	DefaultContainerPrefix = "debugger-"

	// DefaultAttachTimeout bounds the readiness poll.
	DefaultAttachTimeout = 120 * time.Second

	// DefaultPollInterval is the fixed wait between pod status reads.
	DefaultPollInterval = time.Second

	// DefaultRemoteStubPath is the debugger stub location inside the agent image.
	DefaultRemoteStubPath = "/opt/kubedbg/dbgstub"

	// DefaultInterpreterFlag selects the stub's debug-adapter wire protocol.
	DefaultInterpreterFlag = "--interpreter=dap"
)

// GetDefaultConfig returns the built-in configuration, before any user or
// project file is layered on top.
func GetDefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Image:           DefaultAgentImage,
			SSHPort:         DefaultAgentSSHPort,
			ContainerPrefix: DefaultContainerPrefix,
		},
		Attach: AttachConfig{
			Timeout:      DefaultAttachTimeout,
			PollInterval: DefaultPollInterval,
		},
		Debugger: DebuggerConfig{
			AdapterPath:     "ssh",
			RemoteStubPath:  DefaultRemoteStubPath,
			InterpreterFlag: DefaultInterpreterFlag,
		},
	}
}
