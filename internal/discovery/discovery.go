// Package discovery finds scan heads on the local network (§4.12): an
// active broadcast probe that solicits status replies, and passive
// learning from status broadcasts a head sends unprompted.
package discovery

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// Mode names a way of finding heads. Listen takes a Mode but collects status
// packets the same way for every value, and never sends a probe itself;
// active discovery means calling Probe before Listen.
type Mode int

const (
	// ModeActive names discovery by Probe followed by Listen for the replies.
	ModeActive Mode = iota
	// ModePassive names listening for status broadcasts a head sends unprompted.
	ModePassive
	// ModeBoth names the combination of the two.
	ModeBoth
)

// Found describes one discovered head.
type Found struct {
	Serial   uint32
	ProductTag string
	Addr     *net.UDPAddr
	Version  wire.VersionTriple
	SeenAt   time.Time
}

// Discoverer finds scan heads by broadcasting a connect probe, listening
// for replies, or both.
type Discoverer struct {
	sock netio.UDPSocket
	now  func() time.Time

	mu    sync.Mutex
	found map[uint32]Found
}

// NewDiscoverer builds a Discoverer bound to a socket already listening on
// the discovery port.
func NewDiscoverer(sock netio.UDPSocket) *Discoverer {
	return &Discoverer{sock: sock, now: time.Now, found: make(map[uint32]Found)}
}

// Probe sends a broadcast connect request so any listening head replies
// with its status (§4.12, active discovery). It returns a round ID that also
// appears in this probe's log line; Listen does not record which probe a
// reply answers.
func (d *Discoverer) Probe(broadcastAddr *net.UDPAddr, clientIP net.IP, clientPort uint16) (uuid.UUID, error) {
	round := uuid.New()
	req := wire.BroadcastConnectRequest{
		ClientIP:       clientIP,
		ClientPort:     clientPort,
		SessionID:      0,
		HeadID:         0,
		ConnectionType: wire.ConnectionDefault,
	}
	_, err := d.sock.WriteToUDP(req.Encode(), broadcastAddr)
	if err != nil {
		return round, err
	}
	log.Printf("discovery: probe round %s sent to %s", round, broadcastAddr)
	return round, nil
}

// Listen runs for duration, collecting every status packet that arrives,
// whether a reply to Probe or an unsolicited broadcast. mode does not change
// what is collected.
func (d *Discoverer) Listen(mode Mode, duration time.Duration) ([]Found, error) {
	deadline := d.now().Add(duration)
	d.sock.SetReadDeadline(deadline)
	defer d.sock.SetReadDeadline(time.Time{})

	buf := make([]byte, 2048)
	for {
		if !d.now().Before(deadline) {
			break
		}
		n, addr, err := d.sock.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return nil, err
		}
		d.handle(buf[:n], addr)
	}
	return d.Snapshot(), nil
}

func (d *Discoverer) handle(buf []byte, addr *net.UDPAddr) {
	hdr, err := wire.DecodeHeader(buf)
	if err != nil || hdr.Type != wire.TypeStatus {
		return
	}
	status, err := wire.DecodeStatus(buf)
	if err != nil {
		return
	}

	f := Found{
		Serial:     status.Serial,
		ProductTag: status.ProductTag,
		Addr:       addr,
		Version:    status.Version,
		SeenAt:     d.now(),
	}

	d.mu.Lock()
	d.found[status.Serial] = f
	d.mu.Unlock()
}

// Snapshot returns every head discovered so far.
func (d *Discoverer) Snapshot() []Found {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Found, 0, len(d.found))
	for _, f := range d.found {
		out = append(out, f)
	}
	return out
}
