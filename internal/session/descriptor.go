package session

import (
	"strconv"

	"kubedbg/internal/config"
	"kubedbg/internal/forwarding"
)

// AttachDescriptor tells an external debugger launcher how to reach the
// remote debug stub through the local tunnel endpoint. The adapter binary is
// SSH-capable: it connects to the forwarded port with the session identity
// file and starts the stub inside the debug agent.
type AttachDescriptor struct {
	AdapterPath  string   `json:"adapterPath"`
	AdapterArgs  []string `json:"adapterArgs"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	IdentityFile string   `json:"identityFile"`
	ProcessID    int      `json:"processId"`
}

func buildDescriptor(cfg config.Config, endpoint forwarding.Endpoint, identityFile string, processID int) *AttachDescriptor {
	args := []string{
		"-i", identityFile,
		// The agent's host key is per-image, not per-host; pinning it would
		// reject every freshly pulled agent.
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-p", strconv.Itoa(endpoint.Port),
		"root@" + endpoint.Host,
		cfg.Debugger.RemoteStubPath,
		cfg.Debugger.InterpreterFlag,
	}
	return &AttachDescriptor{
		AdapterPath:  cfg.Debugger.AdapterPath,
		AdapterArgs:  args,
		Host:         endpoint.Host,
		Port:         endpoint.Port,
		IdentityFile: identityFile,
		ProcessID:    processID,
	}
}
