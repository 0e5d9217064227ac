package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	identityFileName   = "identity"
	descriptorFileName = "attach.json"
)

// workspace is the per-session temporary directory holding the key material
// and the generated attach descriptor. It never outlives the session.
type workspace struct {
	dir string
}

func newWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "kubedbg-session-")
	if err != nil {
		return nil, fmt.Errorf("failed to create session workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

// writeIdentityFile materializes the embedded agent key for the SSH adapter,
// which insists on reading identities from disk with owner-only permissions.
func (w *workspace) writeIdentityFile() (string, error) {
	path := filepath.Join(w.dir, identityFileName)
	if err := os.WriteFile(path, []byte(agentPrivateKey), 0o600); err != nil {
		return "", fmt.Errorf("failed to write identity file: %w", err)
	}
	return path, nil
}

func (w *workspace) writeDescriptor(descriptor *AttachDescriptor) (string, error) {
	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode attach descriptor: %w", err)
	}
	path := filepath.Join(w.dir, descriptorFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write attach descriptor: %w", err)
	}
	return path, nil
}

func (w *workspace) remove() {
	os.RemoveAll(w.dir)
}
