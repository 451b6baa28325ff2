// Package system implements the multi-head scan system (§4.9): head
// registration and session-id allocation, connect/disconnect and
// start/stop-scanning fan-out, the shared max scan rate, and a cross-head
// profile consumer that fans every head's queue into one stream.
package system

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/scanworks/scanhead-client/internal/head"
	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/session"
	"github.com/scanworks/scanhead-client/internal/syncrecv"
)

// LivenessPollInterval is the step between liveness/fresh-status polls
// during ConnectAll (§4.9).
const LivenessPollInterval = 10 * time.Millisecond

// System coordinates every scan head a client has registered.
type System struct {
	factory  netio.SocketFactory
	clientIP net.IP

	mu            sync.Mutex
	heads         map[uint8]*head.Head
	order         []uint8 // registration order, for deterministic fan-out
	nextSessionID uint8
	connected     bool
	scanning      bool
	syncRecv      *syncrecv.Receiver
	syncMapping   SyncMapping
}

// New builds an empty System bound to factory for socket creation.
func New(factory netio.SocketFactory, clientIP net.IP) *System {
	return &System{
		factory:  factory,
		clientIP: clientIP,
		heads:    make(map[uint8]*head.Head),
	}
}

// AddHead registers a new head, allocating it the next session ID. Rejected
// while the system is connected or scanning, and on a duplicate head ID or
// serial (§4.9).
func (sys *System) AddHead(headAddr *net.UDPAddr, headID uint8, serial uint32) (*head.Head, error) {
	sys.mu.Lock()
	if sys.connected || sys.scanning {
		sys.mu.Unlock()
		return nil, scanerr.Wrap(scanerr.AlreadyConnected, "cannot add head %d while connected or scanning", headID)
	}
	if _, exists := sys.heads[headID]; exists {
		sys.mu.Unlock()
		return nil, scanerr.Wrap(scanerr.AlreadyConnected, "head %d already registered", headID)
	}
	for _, h := range sys.heads {
		if h.Serial == serial {
			sys.mu.Unlock()
			return nil, scanerr.Wrap(scanerr.AlreadyConnected, "serial %d already registered", serial)
		}
	}
	sessionID := sys.nextSessionID
	sys.nextSessionID++
	sys.mu.Unlock()

	h, err := head.New(sys.factory, headAddr, sys.clientIP, sessionID, headID, serial)
	if err != nil {
		return nil, err
	}

	sys.mu.Lock()
	sys.heads[headID] = h
	sys.order = append(sys.order, headID)
	sys.mu.Unlock()
	return h, nil
}

// RemoveHead disconnects and forgets a head.
func (sys *System) RemoveHead(headID uint8) error {
	sys.mu.Lock()
	h, ok := sys.heads[headID]
	if !ok {
		sys.mu.Unlock()
		return scanerr.Wrap(scanerr.NotFound, "head %d not registered", headID)
	}
	delete(sys.heads, headID)
	for i, id := range sys.order {
		if id == headID {
			sys.order = append(sys.order[:i], sys.order[i+1:]...)
			break
		}
	}
	sys.mu.Unlock()
	return h.Disconnect()
}

// Head returns a registered head by ID.
func (sys *System) Head(headID uint8) (*head.Head, bool) {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	h, ok := sys.heads[headID]
	return h, ok
}

// Heads returns every registered head in registration order.
func (sys *System) Heads() []*head.Head {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	out := make([]*head.Head, 0, len(sys.order))
	for _, id := range sys.order {
		out = append(out, sys.heads[id])
	}
	return out
}

// ConnectAll starts every registered head's session, then blocks until each
// is live and has reported a fresh status following its window push, or
// timeout elapses (§4.9). It starts every head regardless of others'
// outcome; a head whose session fails to dial, never reports live within
// timeout, or never reports a fresh status after its window push is
// returned in the failed set, but never stops the others from proceeding.
// Rejected immediately, with state unchanged, if the system is already
// connected, already scanning, or has no registered heads (§8 property 8).
func (sys *System) ConnectAll(ctx context.Context, timeout time.Duration) ([]uint8, error) {
	sys.mu.Lock()
	if sys.connected {
		sys.mu.Unlock()
		return nil, scanerr.Wrap(scanerr.AlreadyConnected, "system already connected")
	}
	if sys.scanning {
		sys.mu.Unlock()
		return nil, scanerr.Wrap(scanerr.AlreadyScanning, "cannot connect while scanning")
	}
	if len(sys.heads) == 0 {
		sys.mu.Unlock()
		return nil, scanerr.Wrap(scanerr.InvalidArgument, "no heads registered")
	}
	heads := make([]*head.Head, len(sys.order))
	for i, id := range sys.order {
		heads[i] = sys.heads[id]
	}
	sys.mu.Unlock()

	deadline := time.Now().Add(timeout)
	failed := make(map[uint8]bool, len(heads))

	var wg sync.WaitGroup
	connectErrs := make([]error, len(heads))
	for i, h := range heads {
		wg.Add(1)
		go func(i int, h *head.Head) {
			defer wg.Done()
			connectErrs[i] = h.Connect(ctx)
		}(i, h)
	}
	wg.Wait()
	for i, h := range heads {
		if connectErrs[i] != nil {
			failed[h.ID] = true
		}
	}

	waitUntil(deadline, func() bool {
		for _, h := range heads {
			if !failed[h.ID] && !h.Connected() {
				return false
			}
		}
		return true
	})
	for _, h := range heads {
		if !failed[h.ID] && !h.Connected() {
			failed[h.ID] = true
		}
	}

	// Snapshot each surviving head's connect-time status before pushing its
	// window, so the fresh-status wait below can detect a post-push reply.
	snapshot := make(map[uint8]uint64, len(heads))
	for _, h := range heads {
		if failed[h.ID] {
			continue
		}
		if status, ok := h.LastStatus(); ok {
			snapshot[h.ID] = status.GlobalTimeNS
		}
		if err := h.PushWindow(); err != nil {
			failed[h.ID] = true
		}
	}

	waitUntil(deadline, func() bool {
		for _, h := range heads {
			if failed[h.ID] {
				continue
			}
			status, ok := h.LastStatus()
			if !ok || status.GlobalTimeNS == snapshot[h.ID] {
				return false
			}
		}
		return true
	})
	for _, h := range heads {
		if failed[h.ID] {
			continue
		}
		status, ok := h.LastStatus()
		if !ok || status.GlobalTimeNS == snapshot[h.ID] {
			failed[h.ID] = true
		}
	}

	failedIDs := make([]uint8, 0, len(failed))
	for _, h := range heads {
		if failed[h.ID] {
			failedIDs = append(failedIDs, h.ID)
		}
	}

	sys.mu.Lock()
	sys.connected = len(failedIDs) < len(heads)
	sys.mu.Unlock()

	if len(failedIDs) > 0 {
		return failedIDs, scanerr.Wrap(scanerr.DeviceTimeout, "heads failed to connect: %v", failedIDs)
	}
	return failedIDs, nil
}

// waitUntil polls done at LivenessPollInterval steps until it reports true
// or deadline passes.
func waitUntil(deadline time.Time, done func() bool) {
	for {
		if done() {
			return
		}
		if !time.Now().Before(deadline) {
			return
		}
		time.Sleep(LivenessPollInterval)
	}
}

// DisconnectAll disconnects every registered head concurrently. Rejected if
// the system is not connected or is still scanning (§4.9).
func (sys *System) DisconnectAll() error {
	sys.mu.Lock()
	if !sys.connected {
		sys.mu.Unlock()
		return scanerr.Wrap(scanerr.NotConnected, "system not connected")
	}
	if sys.scanning {
		sys.mu.Unlock()
		return scanerr.Wrap(scanerr.AlreadyScanning, "cannot disconnect while scanning")
	}
	sys.mu.Unlock()

	err := sys.fanOut(func(h *head.Head) error { return h.Disconnect() })
	sys.mu.Lock()
	sys.connected = false
	sys.mu.Unlock()
	return err
}

// StartScanningAll starts the scan-request heartbeat on every head using
// the same parameters. Rejected if not connected, already scanning, or the
// requested rate exceeds MaxScanRateHz (§4.9).
func (sys *System) StartScanningAll(params session.StartScanningParams) error {
	sys.mu.Lock()
	if !sys.connected {
		sys.mu.Unlock()
		return scanerr.Wrap(scanerr.NotConnected, "system not connected")
	}
	if sys.scanning {
		sys.mu.Unlock()
		return scanerr.Wrap(scanerr.AlreadyScanning, "system already scanning")
	}
	sys.mu.Unlock()

	if maxRate, err := sys.MaxScanRateHz(); err == nil && params.RateHz > maxRate {
		return scanerr.Wrap(scanerr.OutOfRange, "requested rate %.1f exceeds system max rate %.1f", params.RateHz, maxRate)
	}

	if err := sys.fanOut(func(h *head.Head) error { return h.StartScanning(params) }); err != nil {
		return err
	}
	sys.mu.Lock()
	sys.scanning = true
	sys.mu.Unlock()
	return nil
}

// StopScanningAll halts the scan-request heartbeat on every head. A no-op
// error (NotScanning) if scanning was never started.
func (sys *System) StopScanningAll() error {
	sys.mu.Lock()
	if !sys.scanning {
		sys.mu.Unlock()
		return scanerr.Wrap(scanerr.NotScanning, "system not scanning")
	}
	sys.mu.Unlock()

	err := sys.fanOut(func(h *head.Head) error { return h.StopScanning() })
	sys.mu.Lock()
	sys.scanning = false
	sys.mu.Unlock()
	return err
}

// Connected reports whether ConnectAll has succeeded without a matching
// DisconnectAll.
func (sys *System) Connected() bool {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.connected
}

// Scanning reports whether StartScanningAll has succeeded without a
// matching StopScanningAll.
func (sys *System) Scanning() bool {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.scanning
}

func (sys *System) fanOut(fn func(*head.Head) error) error {
	heads := sys.Heads()
	errs := make([]error, len(heads))

	var wg sync.WaitGroup
	for i, h := range heads {
		wg.Add(1)
		go func(i int, h *head.Head) {
			defer wg.Done()
			errs[i] = fn(h)
		}(i, h)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// AbsoluteMaxScanRateHz is the system-wide rate ceiling no head, however
// capable, may exceed (§4.9).
const AbsoluteMaxScanRateHz = 10000.0

// MaxScanRateHz returns the highest rate every connected head supports: for
// each head, the lower of its reported status.max_scan_rate and 1/(its
// configured max laser-on time), minimized across heads and capped by
// AbsoluteMaxScanRateHz (§4.9).
func (sys *System) MaxScanRateHz() (float64, error) {
	heads := sys.Heads()
	if len(heads) == 0 {
		return 0, scanerr.Wrap(scanerr.InvalidArgument, "no heads registered")
	}

	min := AbsoluteMaxScanRateHz
	for _, h := range heads {
		status, ok := h.LastStatus()
		if !ok {
			return 0, scanerr.Wrap(scanerr.NotConnected, "head %d has not reported status yet", h.ID)
		}
		if rate := float64(status.MaxScanRateHz); rate < min {
			min = rate
		}
		if cfg, ok := h.Configuration(); ok && cfg.Laser.Max > 0 {
			if laserRate := 1e6 / float64(cfg.Laser.Max); laserRate < min {
				min = laserRate
			}
		}
	}
	return min, nil
}

// NewPhaseTable builds an empty phase table whose capability lookup resolves
// against this system's currently registered heads (§4.9, §4.10).
func (sys *System) NewPhaseTable() *PhaseTable {
	return NewPhaseTable(func(headID uint8) (HeadCapability, bool) {
		h, ok := sys.Head(headID)
		if !ok {
			return HeadCapability{}, false
		}
		c := h.Capability()
		return HeadCapability{StrobeCapable: c.StrobeCapable, MaxConfigurationGroups: c.MaxConfigurationGroups}, true
	})
}

// Profiles fans every registered head's assembled-profile queue into one
// bounded output queue, preserving each head's own overflow policy.
func (sys *System) Profiles(ctx context.Context, capacity int) *profile.Queue {
	out := profile.NewQueue(capacity)
	for _, h := range sys.Heads() {
		go func(h *head.Head) {
			for {
				p, err := h.TakeNextProfile(ctx)
				if err != nil {
					return
				}
				out.Push(p)
			}
		}(h)
	}
	return out
}
