// Package session implements one scan head's UDP session: the command
// socket used to send connect/window/start-scan requests, the data socket
// that receives status and profile fragments back, and the periodic
// scan-request heartbeat that keeps the device scanning (§4.7/§6).
package session

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// RequestInterval is how often the scan-request heartbeat is resent while
// scanning (§4.7, §8 property 7): the device times out a scan after
// DeviceTimeout without one.
const RequestInterval = 500 * time.Millisecond

// DeviceTimeout is the device-side window a scan stays live without a
// fresh scan-request (§4.7).
const DeviceTimeout = 500 * time.Millisecond

// ConnectTimeout bounds how long Connect waits for a status reply.
const ConnectTimeout = 2 * time.Second

// ClientVersion is this client's protocol version, checked against the
// head's reported version on connect (§6/§7).
var ClientVersion = wire.VersionTriple{Major: 1, Minor: 0, Patch: 0}

// Session owns one scan head's command and data sockets and the periodic
// scan-request heartbeat that keeps it scanning.
type Session struct {
	cmdSock  netio.UDPSocket
	dataSock netio.UDPSocket
	headAddr *net.UDPAddr

	clientIP   net.IP
	clientPort uint16
	sessionID  uint8
	headID     uint8
	serial     uint32

	OnFragment func(*wire.DataFragment)
	OnStatus   func(*wire.Status)

	mu        sync.Mutex
	connected bool
	scanning  bool
	lastReq   StartScanningParams

	heartbeatCancel context.CancelFunc
	wg              sync.WaitGroup
}

// StartScanningParams is the caller-supplied configuration turned into a
// StartScanningRequest on every heartbeat tick.
type StartScanningParams struct {
	ExposureMode            uint8
	Laser                   wire.MicrosecondWindow
	Exposure                wire.MicrosecondWindow
	LaserDetectionThreshold int32
	SaturationThreshold     int32
	SaturatedPercentage     int32
	AverageIntensity        int32
	RateHz                  float64
	ScanPhaseOffsetUS       int32
	IntMax                  int32
	DataTypes               wire.DataType
	StartCol, EndCol        int16
	Steps                   []int16
}

// New builds a Session, dialing a command socket to headAddr and opening a
// data socket bound to an ephemeral local port.
func New(factory netio.SocketFactory, headAddr *net.UDPAddr, clientIP net.IP, sessionID, headID uint8, serial uint32) (*Session, error) {
	cmdSock, err := factory.DialUDP("udp", nil, headAddr)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.NotConnected, "dial command socket to %s: %v", headAddr, err)
	}
	dataSock, err := factory.ListenUDP("udp", &net.UDPAddr{IP: clientIP, Port: 0})
	if err != nil {
		cmdSock.Close()
		return nil, scanerr.Wrap(scanerr.NotConnected, "listen data socket: %v", err)
	}

	clientPort := localPort(dataSock)
	return &Session{
		cmdSock:    cmdSock,
		dataSock:   dataSock,
		headAddr:   headAddr,
		clientIP:   clientIP,
		clientPort: clientPort,
		sessionID:  sessionID,
		headID:     headID,
		serial:     serial,
	}, nil
}

func localPort(sock netio.UDPSocket) uint16 {
	if addr, ok := sock.LocalAddr().(*net.UDPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}

// Connect sends the broadcast connect request and waits for the first
// status reply, starting the background receive loop on success.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return scanerr.Wrap(scanerr.AlreadyConnected, "session already connected to %s", s.headAddr)
	}
	s.mu.Unlock()

	attempt := uuid.New()
	log.Printf("session: connect attempt %s to %s", attempt, s.headAddr)

	req := wire.BroadcastConnectRequest{
		ClientIP:       s.clientIP,
		ClientPort:     s.clientPort,
		SessionID:      s.sessionID,
		HeadID:         s.headID,
		ConnectionType: wire.ConnectionNormal,
		Serial:         s.serial,
	}
	if _, err := s.cmdSock.Write(req.Encode()); err != nil {
		return scanerr.Wrap(scanerr.NotConnected, "send connect request: %v", err)
	}

	status, err := s.awaitStatus(ctx, ConnectTimeout)
	if err != nil {
		log.Printf("session: connect attempt %s failed: %v", attempt, err)
		return err
	}
	if !status.Version.Compatible(ClientVersion) {
		return scanerr.Wrap(scanerr.VersionIncompatible, "head %s reports incompatible version %+v", s.headAddr, status.Version)
	}
	log.Printf("session: connect attempt %s succeeded, head %s serial=%d", attempt, s.headAddr, status.Serial)

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	if s.OnStatus != nil {
		s.OnStatus(status)
	}

	s.wg.Add(1)
	go s.receiveLoop()
	return nil
}

func (s *Session) awaitStatus(ctx context.Context, timeout time.Duration) (*wire.Status, error) {
	deadline := time.Now().Add(timeout)
	s.dataSock.SetReadDeadline(deadline)
	defer s.dataSock.SetReadDeadline(time.Time{})

	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n, _, err := s.dataSock.ReadFromUDP(buf)
		if err != nil {
			return nil, scanerr.Wrap(scanerr.DeviceTimeout, "no status reply from %s: %v", s.headAddr, err)
		}
		hdr, err := wire.DecodeHeader(buf[:n])
		if err != nil || hdr.Type != wire.TypeStatus {
			continue
		}
		return wire.DecodeStatus(buf[:n])
	}
}

// Disconnect sends the disconnect datagram, stops the heartbeat, and closes
// both sockets.
func (s *Session) Disconnect() error {
	s.StopScanning()

	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if wasConnected {
		s.cmdSock.Write(wire.DisconnectRequest{}.Encode())
	}
	s.cmdSock.Close()
	s.dataSock.Close()
	s.wg.Wait()
	return nil
}

// SetWindow sends a window request for one camera.
func (s *Session) SetWindow(req wire.WindowRequest) error {
	if !s.Connected() {
		return scanerr.Wrap(scanerr.NotConnected, "session to %s not connected", s.headAddr)
	}
	_, err := s.cmdSock.Write(req.Encode())
	return err
}

// StartScanning begins the scan-request heartbeat at RequestInterval.
func (s *Session) StartScanning(params StartScanningParams) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return scanerr.Wrap(scanerr.NotConnected, "session to %s not connected", s.headAddr)
	}
	if s.scanning {
		s.mu.Unlock()
		return scanerr.Wrap(scanerr.AlreadyScanning, "session to %s already scanning", s.headAddr)
	}
	s.scanning = true
	s.lastReq = params
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.heartbeatCancel = cancel
	s.wg.Add(1)
	go s.heartbeatLoop(ctx, params)
	return nil
}

// StopScanning halts the heartbeat. It is a no-op if not currently scanning.
func (s *Session) StopScanning() error {
	s.mu.Lock()
	if !s.scanning {
		s.mu.Unlock()
		return nil
	}
	s.scanning = false
	cancel := s.heartbeatCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Session) heartbeatLoop(ctx context.Context, params StartScanningParams) {
	defer s.wg.Done()

	send := func() {
		req := wire.StartScanningRequest{
			ClientPort:              int16(s.clientPort),
			SessionID:               s.sessionID,
			HeadID:                  s.headID,
			ExposureMode:            params.ExposureMode,
			Laser:                   params.Laser,
			Exposure:                params.Exposure,
			LaserDetectionThreshold: params.LaserDetectionThreshold,
			SaturationThreshold:     params.SaturationThreshold,
			SaturatedPercentage:     params.SaturatedPercentage,
			AverageIntensity:        params.AverageIntensity,
			RateHz:                  params.RateHz,
			ScanPhaseOffsetUS:       params.ScanPhaseOffsetUS,
			IntMax:                  params.IntMax,
			DataTypes:               params.DataTypes,
			StartCol:                params.StartCol,
			EndCol:                  params.EndCol,
			Steps:                   params.Steps,
		}
		if _, err := s.cmdSock.Write(req.Encode()); err != nil {
			log.Printf("session: heartbeat send to %s failed: %v", s.headAddr, err)
		}
	}

	send()
	ticker := time.NewTicker(RequestInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}

func (s *Session) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, 65536)
	for {
		n, _, err := s.dataSock.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		s.dispatch(buf[:n])
	}
}

func (s *Session) dispatch(buf []byte) {
	hdr, err := wire.DecodeHeader(buf)
	if err != nil {
		log.Printf("session: dropping malformed packet from %s: %v", s.headAddr, err)
		return
	}

	switch hdr.Type {
	case wire.TypeStatus:
		status, err := wire.DecodeStatus(buf)
		if err != nil {
			log.Printf("session: malformed status from %s: %v", s.headAddr, err)
			return
		}
		if s.OnStatus != nil {
			s.OnStatus(status)
		}
	case wire.TypeData:
		frag, err := wire.DecodeFragment(buf)
		if err != nil {
			log.Printf("session: malformed fragment from %s: %v", s.headAddr, err)
			return
		}
		if s.OnFragment != nil {
			s.OnFragment(frag)
		}
	default:
		log.Printf("session: unexpected packet type %d from %s", hdr.Type, s.headAddr)
	}
}

// Connected reports whether the session has an active connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Scanning reports whether the heartbeat is currently running.
func (s *Session) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// ClientPort returns the ephemeral port the data socket is bound to, as
// advertised to the head in the connect request.
func (s *Session) ClientPort() uint16 {
	return s.clientPort
}
