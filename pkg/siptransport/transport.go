// Package siptransport owns the single UDP socket the SIP transaction
// engine sends and receives on, plus the local-address discovery trick
// used to fill Via and Contact headers.
package siptransport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrTimeout is returned by Recv when no datagram arrived within the
// requested deadline.
var ErrTimeout = errors.New("siptransport: receive timeout")

// Transport is a synchronous UDP datagram transport: callers drive
// their own send/receive loop (the transaction engine owns the request
// loop; see pkg/useragent), rather than this package running a
// background dispatcher, since SIP requests here are always
// serialized one at a time per §5 of the specification.
type Transport struct {
	conn    *net.UDPConn
	localIP string
}

// New binds an ephemeral UDP socket and discovers the local IP address
// that would be used to reach the public internet, by opening a
// connected UDP socket to a well-known address and reading its local
// endpoint (no packets are actually sent to it).
func New() (*Transport, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("siptransport: bind: %w", err)
	}

	localIP, err := discoverLocalIP()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("siptransport: discovering local address: %w", err)
	}

	return &Transport{conn: conn, localIP: localIP}, nil
}

func discoverLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	local := conn.LocalAddr().(*net.UDPAddr)
	return local.IP.String(), nil
}

// LocalIP returns the discovered local address used to fill Via and
// Contact headers.
func (t *Transport) LocalIP() string { return t.localIP }

// LocalPort returns the ephemeral port the socket is bound to.
func (t *Transport) LocalPort() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

// ResolveServer resolves host:port (defaulting to port 5060) to a UDP
// address suitable for Send.
func ResolveServer(server string) (*net.UDPAddr, error) {
	host, port, err := splitHostPortDefault(server, 5060)
	if err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("siptransport: resolving %q: %w", server, err)
	}
	return addr, nil
}

func splitHostPortDefault(server string, defaultPort int) (string, string, error) {
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		return server, fmt.Sprintf("%d", defaultPort), nil
	}
	return host, port, nil
}

// Send writes data to addr.
func (t *Transport) Send(data []byte, addr *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(data, addr)
	if err != nil {
		return fmt.Errorf("siptransport: send: %w", err)
	}
	return nil
}

// Recv blocks until a datagram arrives or timeout elapses, returning
// the payload and sender address.
func (t *Transport) Recv(timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, fmt.Errorf("siptransport: set deadline: %w", err)
	}
	buf := make([]byte, 65535)
	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, fmt.Errorf("siptransport: recv: %w", err)
	}
	return buf[:n], from, nil
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}
