// Package netio abstracts UDP socket operations behind a small interface so
// session and sync-receiver packages can be exercised with a mock socket in
// tests, without binding real ports. Grounded on
// internal/lidar/network/udp_interface.go in the retrieval pack.
package netio

import (
	"net"
	"time"
)

// UDPSocket is the subset of *net.UDPConn the client runtime needs.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	Write(b []byte) (int, error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// SocketFactory creates UDP sockets, allowing dependency injection.
type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
	DialUDP(network string, laddr, raddr *net.UDPAddr) (UDPSocket, error)
}

// RealSocket wraps *net.UDPConn to implement UDPSocket.
type RealSocket struct {
	conn *net.UDPConn
}

// NewRealSocket wraps an existing *net.UDPConn.
func NewRealSocket(conn *net.UDPConn) *RealSocket { return &RealSocket{conn: conn} }

func (r *RealSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) { return r.conn.ReadFromUDP(b) }
func (r *RealSocket) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	return r.conn.WriteToUDP(b, addr)
}
func (r *RealSocket) Write(b []byte) (int, error)            { return r.conn.Write(b) }
func (r *RealSocket) SetReadBuffer(bytes int) error           { return r.conn.SetReadBuffer(bytes) }
func (r *RealSocket) SetReadDeadline(t time.Time) error       { return r.conn.SetReadDeadline(t) }
func (r *RealSocket) Close() error                            { return r.conn.Close() }
func (r *RealSocket) LocalAddr() net.Addr                     { return r.conn.LocalAddr() }

// RealSocketFactory implements SocketFactory using net.ListenUDP/net.DialUDP.
type RealSocketFactory struct{}

// NewRealSocketFactory creates a new RealSocketFactory.
func NewRealSocketFactory() *RealSocketFactory { return &RealSocketFactory{} }

func (f *RealSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return NewRealSocket(conn), nil
}

func (f *RealSocketFactory) DialUDP(network string, laddr, raddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.DialUDP(network, laddr, raddr)
	if err != nil {
		return nil, err
	}
	return NewRealSocket(conn), nil
}
