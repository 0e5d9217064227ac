// Package session coordinates a complete debug attach: ensuring the debug
// sidecar is running, tunnelling its SSH port to a loopback endpoint, writing
// the per-session workspace, and handing the resulting attach descriptor to
// an external debugger launcher.
//
// # Lifecycle
//
// A Coordinator walks one session through Idle, Attaching, Forwarding and
// Launched; any step failure lands it in Failed with everything it started
// torn back down. The forwarder runs in single-use mode, so a completed
// debugger connection disposes the tunnel on its own and the session
// workspace follows it.
//
// # Workspace
//
// Each session gets a private temporary directory holding the SSH identity
// file and the generated attach.json descriptor. The directory is removed
// when the session ends, whichever way it ends.
package session
