package forwarding

import (
	"net"
	"strconv"
)

// Mode selects the forwarder's lifecycle policy.
type Mode int

const (
	// ModeMultiplex keeps the listener open and accepts any number of
	// connections until an explicit Dispose.
	ModeMultiplex Mode = iota

	// ModeSingleUse serves exactly one connection and disposes the forwarder
	// once both relay directions of that connection have finished. Used for
	// one-shot debugger attach sessions.
	ModeSingleUse
)

// String makes Mode satisfy the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeMultiplex:
		return "Multiplex"
	case ModeSingleUse:
		return "SingleUse"
	default:
		return "Unknown"
	}
}

// Endpoint is the local loopback address a debugger client connects to.
type Endpoint struct {
	Host string
	Port int
}

// Address renders the endpoint in host:port form suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
