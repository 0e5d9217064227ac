package forwarding

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"kubedbg/internal/kube"
	"kubedbg/pkg/logging"
)

// Forwarder presents a stable local TCP endpoint that tunnels to one fixed
// remote pod port for the lifetime of a debug session. Every accepted local
// connection gets its own stream on the shared tunnel and a pair of relay
// goroutines; a relay failure ends only its own connection.
type Forwarder struct {
	log        logging.Sink
	subsystem  string
	pod        kube.PodRef
	remotePort uint16
	mode       Mode
	tunnel     kube.Tunnel
	listener   net.Listener

	mu     sync.Mutex
	conns  map[uint64]*connection
	nextID uint64

	disposeOnce sync.Once
	done        chan struct{}
}

// connection is one relayed local<->remote pair. It is advanced only by its
// own two relay goroutines; the forwarder's map exists for bulk disposal.
type connection struct {
	id     uint64
	local  net.Conn
	remote kube.Stream

	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.remote.Close()
		c.local.Close()
	})
}

// Start opens the port-forward tunnel to the pod and binds a loopback
// listener. localPort 0 picks an ephemeral port. Any error establishing the
// tunnel or the listener propagates synchronously and leaves nothing running.
//
// The returned Forwarder is accepting connections and LocalEndpoint is valid
// immediately.
func Start(
	ctx context.Context,
	client kube.Client,
	log logging.Sink,
	pod kube.PodRef,
	remotePort uint16,
	mode Mode,
	localPort int,
) (*Forwarder, error) {
	tunnel, err := client.OpenTunnel(ctx, pod)
	if err != nil {
		return nil, fmt.Errorf("failed to establish port-forward tunnel to pod %s: %w", pod, err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(localPort)))
	if err != nil {
		tunnel.Close()
		return nil, fmt.Errorf("failed to bind local listener for pod %s: %w", pod, err)
	}

	f := &Forwarder{
		log:        log,
		subsystem:  fmt.Sprintf("Forward-%s:%d", pod.Name, remotePort),
		pod:        pod,
		remotePort: remotePort,
		mode:       mode,
		tunnel:     tunnel,
		listener:   listener,
		conns:      make(map[uint64]*connection),
		done:       make(chan struct{}),
	}

	log.Info(f.subsystem, "Forwarding %s -> %s port %d (%s)", f.LocalEndpoint().Address(), pod, remotePort, mode)
	go f.acceptLoop()
	return f, nil
}

// LocalEndpoint returns the loopback address clients connect to. Populated
// before Start returns.
func (f *Forwarder) LocalEndpoint() Endpoint {
	addr := f.listener.Addr().(*net.TCPAddr)
	return Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

// Done is closed once the forwarder has been disposed, whether explicitly or
// by single-use self-disposal.
func (f *Forwarder) Done() <-chan struct{} {
	return f.done
}

// ActiveConnections reports how many relayed connections are currently open.
func (f *Forwarder) ActiveConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Dispose cancels all in-flight connections, closes the listener and the
// tunnel. Idempotent and safe from any goroutine.
func (f *Forwarder) Dispose() {
	f.disposeOnce.Do(func() {
		f.listener.Close()

		f.mu.Lock()
		conns := make([]*connection, 0, len(f.conns))
		for _, c := range f.conns {
			conns = append(conns, c)
		}
		f.mu.Unlock()
		for _, c := range conns {
			c.close()
		}

		f.tunnel.Close()
		close(f.done)
		f.log.Info(f.subsystem, "Forwarder for pod %s disposed", f.pod)
	})
}

func (f *Forwarder) acceptLoop() {
	for {
		local, err := f.listener.Accept()
		if err != nil {
			// Listener closed during dispose; anything else also just ends
			// the accept loop.
			return
		}

		remote, err := f.tunnel.OpenStream(f.remotePort)
		if err != nil {
			f.log.Warn(f.subsystem, "Failed to open tunnel stream for new connection: %v", err)
			local.Close()
			if f.mode == ModeSingleUse {
				f.Dispose()
				return
			}
			continue
		}

		c := &connection{local: local, remote: remote}
		f.mu.Lock()
		f.nextID++
		c.id = f.nextID
		f.conns[c.id] = c
		f.mu.Unlock()

		f.log.Debug(f.subsystem, "Accepted connection %d from %s", c.id, local.RemoteAddr())
		go f.relay(c)

		if f.mode == ModeSingleUse {
			// Exactly one connection; its relay completion disposes us.
			return
		}
	}
}

// relay pumps bytes in both directions until each side signals EOF or fails.
// Errors here are logged and swallowed: one client's hiccup must not take
// down the listener or other connections.
func (f *Forwarder) relay(c *connection) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if _, err := io.Copy(c.remote, c.local); err != nil {
			f.log.Debug(f.subsystem, "Connection %d local->remote relay ended: %v", c.id, err)
		}
		c.remote.CloseWrite()
	}()

	go func() {
		defer wg.Done()
		if _, err := io.Copy(c.local, c.remote); err != nil {
			f.log.Debug(f.subsystem, "Connection %d remote->local relay ended: %v", c.id, err)
		}
		if tcp, ok := c.local.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
	}()

	wg.Wait()
	c.close()

	f.mu.Lock()
	delete(f.conns, c.id)
	f.mu.Unlock()
	f.log.Debug(f.subsystem, "Connection %d closed", c.id)

	if f.mode == ModeSingleUse {
		f.Dispose()
	}
}
