// Package syncrecv implements the sync-device receiver (§4.3): a UDP
// listener that tracks every sync device heard from by serial number,
// keeping its most recent packet and evicting devices that go quiet.
package syncrecv

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// DeviceState is a snapshot of one sync device's last-known packet.
type DeviceState struct {
	Serial   uint32
	Packet   wire.SyncPacket
	LastSeen time.Time
}

// Receiver listens for sync-device broadcasts and tracks liveness per
// serial number, evicting devices that stop transmitting (§4.3, §8
// property 10).
type Receiver struct {
	sock    netio.UDPSocket
	timeout time.Duration
	now     func() time.Time

	onUpdate  func(DeviceState)
	onTimeout func(uint32)

	mu      sync.Mutex
	devices map[uint32]*DeviceState
}

// Option configures a Receiver at construction time.
type Option func(*Receiver)

// WithNowFunc overrides the receiver's clock, for deterministic tests.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Receiver) { r.now = now }
}

// WithOnUpdate registers a callback fired whenever a device's state changes.
func WithOnUpdate(fn func(DeviceState)) Option {
	return func(r *Receiver) { r.onUpdate = fn }
}

// WithOnTimeout registers a callback fired when a device is evicted for
// going quiet longer than timeout.
func WithOnTimeout(fn func(serial uint32)) Option {
	return func(r *Receiver) { r.onTimeout = fn }
}

// NewReceiver builds a Receiver bound to sock, evicting devices that have
// not been heard from within timeout.
func NewReceiver(sock netio.UDPSocket, timeout time.Duration, opts ...Option) *Receiver {
	r := &Receiver{
		sock:    sock,
		timeout: timeout,
		now:     time.Now,
		devices: make(map[uint32]*DeviceState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads sync packets until ctx is canceled, updating device state and
// periodically evicting devices that have timed out. It never returns a
// non-nil error for a canceled context.
func (r *Receiver) Run(ctx context.Context) error {
	sweep := time.NewTicker(r.timeout / 2)
	defer sweep.Stop()

	errCh := make(chan error, 1)
	buf := make([]byte, 4096)
	go func() {
		for {
			n, _, err := r.sock.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				errCh <- err
				return
			}
			r.handlePacket(buf[:n])
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case <-sweep.C:
			r.EvictTimedOut()
		}
	}
}

func (r *Receiver) handlePacket(buf []byte) {
	pkt, err := wire.DecodeSync(buf)
	if err != nil {
		log.Printf("syncrecv: dropping malformed packet: %v", err)
		return
	}

	state := DeviceState{Serial: pkt.Serial, Packet: *pkt, LastSeen: r.now()}

	r.mu.Lock()
	r.devices[pkt.Serial] = &state
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(state)
	}
}

// EvictTimedOut drops every device whose last packet is older than the
// receiver's configured timeout, firing onTimeout for each.
func (r *Receiver) EvictTimedOut() {
	now := r.now()

	r.mu.Lock()
	var evicted []uint32
	for serial, d := range r.devices {
		if now.Sub(d.LastSeen) > r.timeout {
			delete(r.devices, serial)
			evicted = append(evicted, serial)
		}
	}
	r.mu.Unlock()

	for _, serial := range evicted {
		if r.onTimeout != nil {
			r.onTimeout(serial)
		}
	}
}

// Snapshot returns a copy of every currently tracked device's state.
func (r *Receiver) Snapshot() []DeviceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DeviceState, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// Get returns the last-known state for a serial number.
func (r *Receiver) Get(serial uint32) (DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[serial]
	if !ok {
		return DeviceState{}, false
	}
	return *d, true
}
