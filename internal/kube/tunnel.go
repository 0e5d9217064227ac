package kube

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/httpstream"
)

// Tunnel is one upgraded port-forward connection to a single pod. Each call
// to OpenStream yields an independent logical connection to a remote port;
// the underlying transport multiplexes them.
type Tunnel interface {
	// OpenStream opens one forwarded connection to remotePort inside the pod.
	// The returned stream carries the connection's bytes in both directions;
	// closing it tears down only this connection, not the tunnel.
	OpenStream(remotePort uint16) (Stream, error)

	// Close tears down the tunnel and every stream opened through it.
	Close() error
}

// Stream is the byte pipe of one forwarded connection. CloseWrite signals
// EOF to the remote side while reads stay open; Close tears the whole
// connection down and unblocks a pending Read.
type Stream interface {
	io.ReadWriteCloser
	CloseWrite() error
}

// spdyTunnel implements Tunnel over an httpstream (SPDY) connection using the
// port-forward v1 stream protocol: per logical connection one error stream
// and one data stream, paired by a shared request id header.
type spdyTunnel struct {
	conn httpstream.Connection

	mu            sync.Mutex
	nextRequestID int
}

func newSPDYTunnel(conn httpstream.Connection) *spdyTunnel {
	return &spdyTunnel{conn: conn}
}

func (t *spdyTunnel) OpenStream(remotePort uint16) (Stream, error) {
	t.mu.Lock()
	requestID := t.nextRequestID
	t.nextRequestID++
	t.mu.Unlock()

	headers := http.Header{}
	headers.Set(corev1.StreamType, corev1.StreamTypeError)
	headers.Set(corev1.PortHeader, strconv.Itoa(int(remotePort)))
	headers.Set(corev1.PortForwardRequestIDHeader, strconv.Itoa(requestID))
	errorStream, err := t.conn.CreateStream(headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create error stream for port %d: %w", remotePort, err)
	}
	// The error stream is read-only from our side.
	errorStream.Close()

	headers.Set(corev1.StreamType, corev1.StreamTypeData)
	dataStream, err := t.conn.CreateStream(headers)
	if err != nil {
		errorStream.Reset()
		return nil, fmt.Errorf("failed to create data stream for port %d: %w", remotePort, err)
	}

	s := &tunnelStream{
		tunnel:      t,
		data:        dataStream,
		errorStream: errorStream,
	}
	go s.watchErrorStream()
	return s, nil
}

func (t *spdyTunnel) Close() error {
	return t.conn.Close()
}

// tunnelStream is one forwarded connection. Reads and writes go through the
// data stream; the error stream reports kubelet-side failures such as the
// target port not listening.
type tunnelStream struct {
	tunnel      *spdyTunnel
	data        httpstream.Stream
	errorStream httpstream.Stream

	mu        sync.Mutex
	remoteErr error
	closeOnce sync.Once
}

// watchErrorStream drains the error stream. A non-empty payload means the
// remote side failed; record it and reset the data stream so a blocked Read
// observes the failure instead of hanging.
func (s *tunnelStream) watchErrorStream() {
	msg, err := io.ReadAll(s.errorStream)
	if err == nil && len(msg) > 0 {
		s.mu.Lock()
		s.remoteErr = fmt.Errorf("remote port-forward error: %s", string(msg))
		s.mu.Unlock()
		s.data.Reset()
	}
}

func (s *tunnelStream) Read(p []byte) (int, error) {
	n, err := s.data.Read(p)
	if err != nil {
		if remoteErr := s.remoteError(); remoteErr != nil {
			return n, remoteErr
		}
	}
	return n, err
}

func (s *tunnelStream) Write(p []byte) (int, error) {
	return s.data.Write(p)
}

// CloseWrite half-closes the data stream: a FIN frame tells the remote side
// no more bytes are coming while the read direction stays usable.
func (s *tunnelStream) CloseWrite() error {
	return s.data.Close()
}

func (s *tunnelStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.data.Reset()
		s.tunnel.conn.RemoveStreams(s.data, s.errorStream)
	})
	return err
}

func (s *tunnelStream) remoteError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteErr
}
