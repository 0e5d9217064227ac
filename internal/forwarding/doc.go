// Package forwarding relays local TCP connections into a pod's port-forward
// tunnel.
//
// A Forwarder owns one loopback listener and one tunnel to a single pod
// port. Every accepted connection opens its own stream on the tunnel and is
// pumped by two relay goroutines, one per direction, until either side hits
// EOF or an error. Connection failures are local to that connection; only
// Dispose (or single-use completion) tears the listener and tunnel down.
//
// Two transport strategies were considered: this direct stream multiplexing
// over the cluster's SPDY port-forward subresource, and spawning a kubectl
// port-forward subprocess. The direct strategy is the implemented one; the
// subprocess variant trades away per-connection control and a process-free
// deployment for little gain when client-go already ships the transport.
package forwarding
