package kube

import "fmt"

// PodRef addresses one pod for the lifetime of a debug session. The pod's
// ephemeral containers may change underneath it; the reference itself is
// immutable.
type PodRef struct {
	Namespace string
	Name      string
}

// String renders the reference as namespace/name for logs and errors.
func (r PodRef) String() string {
	return fmt.Sprintf("%s/%s", r.Namespace, r.Name)
}
