package netio

import (
	"net"
	"sync"
	"time"
)

// MockPacket is one queued inbound datagram for MockSocket.ReadFromUDP.
type MockPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// MockSocket implements UDPSocket for deterministic tests.
type MockSocket struct {
	mu sync.Mutex

	Packets   []MockPacket
	readIndex int
	Closed    bool

	ReadBufferSize int
	ReadDeadline   time.Time
	LocalAddress   *net.UDPAddr

	ReadError error

	// Written records every outbound datagram, in order.
	Written []MockPacket
}

// NewMockSocket creates a MockSocket pre-loaded with packets.
func NewMockSocket(packets []MockPacket) *MockSocket {
	return &MockSocket{
		Packets: packets,
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 12345,
		},
	}
}

func (m *MockSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if m.readIndex >= len(m.Packets) {
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: &mockTimeout{}}
	}
	pkt := m.Packets[m.readIndex]
	m.readIndex++
	n := copy(b, pkt.Data)
	return n, pkt.Addr, nil
}

// PushPacket appends a packet to be returned by a subsequent ReadFromUDP.
func (m *MockSocket) PushPacket(data []byte, addr *net.UDPAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packets = append(m.Packets, MockPacket{Data: data, Addr: addr})
}

func (m *MockSocket) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	m.Written = append(m.Written, MockPacket{Data: cp, Addr: addr})
	return len(b), nil
}

func (m *MockSocket) Write(b []byte) (int, error) {
	return m.WriteToUDP(b, nil)
}

func (m *MockSocket) SetReadBuffer(bytes int) error {
	m.ReadBufferSize = bytes
	return nil
}

func (m *MockSocket) SetReadDeadline(t time.Time) error {
	m.ReadDeadline = t
	return nil
}

func (m *MockSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockSocket) LocalAddr() net.Addr { return m.LocalAddress }

// WrittenCount returns the number of datagrams written so far.
func (m *MockSocket) WrittenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Written)
}

// MockSocketFactory implements SocketFactory for tests.
type MockSocketFactory struct {
	Socket *MockSocket
	Error  error
}

// NewMockSocketFactory creates a MockSocketFactory returning socket.
func NewMockSocketFactory(socket *MockSocket) *MockSocketFactory {
	return &MockSocketFactory{Socket: socket}
}

func (f *MockSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

func (f *MockSocketFactory) DialUDP(network string, laddr, raddr *net.UDPAddr) (UDPSocket, error) {
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

type mockTimeout struct{}

func (e *mockTimeout) Error() string   { return "i/o timeout" }
func (e *mockTimeout) Timeout() bool   { return true }
func (e *mockTimeout) Temporary() bool { return true }
