// Package head implements the per-scan-head client façade (§4.8): wiring a
// session's sockets to the fragment assembler and alignment transform, and
// exposing the connect/configure/scan/profile-retrieval operations a caller
// drives.
package head

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/scanworks/scanhead-client/internal/align"
	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/session"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// DefaultQueueCapacity bounds the assembled-profile backlog a head holds
// before dropping the oldest to make room for new scans (§4.6).
const DefaultQueueCapacity = 100

// DefaultRingSize is the number of preallocated profile slots the assembler
// cycles through.
const DefaultRingSize = 32

// FragmentSetMaxAge bounds how long an incomplete fragment set is kept
// before being evicted as lost (§4.5).
const FragmentSetMaxAge = 250 * time.Millisecond

// Stats accumulates a head's lifetime counters, exposed for diagnostics.
type Stats struct {
	ProfilesAssembled uint64
	ProfilesDropped   uint64
	MalformedPackets  uint64
	StatusUpdates     uint64
}

// Capability describes one head's phase-table eligibility: whether it can
// host a strobe element, and how many configuration groups (phase elements,
// across a whole phase table) it can be bound to (§3, §4.10). Defaults to
// the common laser-driven, non-strobe shape; callers override after
// learning the head's actual capability from its status reply.
type Capability struct {
	StrobeCapable          bool
	MaxConfigurationGroups int
}

// DefaultMaxConfigurationGroups is the per-head phase-element ceiling used
// when a head's status has not yet reported a narrower limit.
const DefaultMaxConfigurationGroups = 4

// Configuration holds one head's laser/exposure windows and detection
// thresholds (§3). Out-of-range values are rejected at set-time by
// Configure, never stored partially.
type Configuration struct {
	Laser    wire.MicrosecondWindow
	Exposure wire.MicrosecondWindow

	LaserDetectionThreshold int32 // 0..1023
	SaturationThreshold     int32 // 0..1023
	SaturatedPercentage     int32 // 1..100
	AverageIntensity        int32 // 0..255
	ScanPhaseOffsetUS       int32
}

func (c Configuration) validate() error {
	if err := validateWindow("laser-on window", c.Laser); err != nil {
		return err
	}
	if err := validateWindow("exposure window", c.Exposure); err != nil {
		return err
	}
	if err := validateRange("laser detection threshold", c.LaserDetectionThreshold, 0, 1023); err != nil {
		return err
	}
	if err := validateRange("saturation threshold", c.SaturationThreshold, 0, 1023); err != nil {
		return err
	}
	if err := validateRange("saturated percentage", c.SaturatedPercentage, 1, 100); err != nil {
		return err
	}
	if err := validateRange("average intensity", c.AverageIntensity, 0, 255); err != nil {
		return err
	}
	return nil
}

func validateWindow(name string, w wire.MicrosecondWindow) error {
	if !(w.Min <= w.Default && w.Default <= w.Max) {
		return scanerr.Wrap(scanerr.OutOfRange, "%s must satisfy min<=default<=max, got {%d,%d,%d}", name, w.Min, w.Default, w.Max)
	}
	return nil
}

func validateRange(name string, v, lo, hi int32) error {
	if v < lo || v > hi {
		return scanerr.Wrap(scanerr.OutOfRange, "%s must be in [%d,%d], got %d", name, lo, hi, v)
	}
	return nil
}

// Head is one scan head's client-side handle: its session, per-camera
// alignment, and assembled-profile queue.
type Head struct {
	ID     uint8
	Serial uint32

	capability Capability

	sess  *session.Session
	asm   *profile.Assembler
	queue *profile.Queue

	mu               sync.Mutex
	alignments       map[uint8]*align.Alignment
	lastImage        map[uint8][]byte
	lastStatus       *wire.Status
	lastWindow       *wire.WindowRequest
	configuration    Configuration
	hasConfiguration bool
	stats            Stats
}

// New builds a Head bound to a fresh session for headAddr.
func New(factory netio.SocketFactory, headAddr *net.UDPAddr, clientIP net.IP, sessionID, headID uint8, serial uint32) (*Head, error) {
	sess, err := session.New(factory, headAddr, clientIP, sessionID, headID, serial)
	if err != nil {
		return nil, err
	}

	h := &Head{
		ID:         headID,
		Serial:     serial,
		capability: Capability{MaxConfigurationGroups: DefaultMaxConfigurationGroups},
		sess:       sess,
		queue:      profile.NewQueue(DefaultQueueCapacity),
		alignments: make(map[uint8]*align.Alignment),
		lastImage:  make(map[uint8][]byte),
	}
	h.asm = profile.NewAssembler(DefaultRingSize, FragmentSetMaxAge, h.lookupAlignment)

	sess.OnFragment = h.handleFragment
	sess.OnStatus = h.handleStatus
	return h, nil
}

func (h *Head) lookupAlignment(cameraID uint8) *align.Alignment {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alignments[cameraID]
}

func (h *Head) handleFragment(f *wire.DataFragment) {
	p, err := h.asm.Feed(f, time.Now())
	if err != nil {
		h.mu.Lock()
		h.stats.MalformedPackets++
		h.mu.Unlock()
		return
	}
	if p == nil {
		return
	}

	if len(p.Image) > 0 {
		h.mu.Lock()
		h.lastImage[p.Source.CameraID] = append([]byte(nil), p.Image...)
		h.mu.Unlock()
	}

	dropped := h.queue.Push(p)
	h.mu.Lock()
	h.stats.ProfilesAssembled++
	if dropped {
		h.stats.ProfilesDropped++
	}
	h.mu.Unlock()
}

func (h *Head) handleStatus(s *wire.Status) {
	h.mu.Lock()
	h.lastStatus = s
	h.stats.StatusUpdates++
	h.mu.Unlock()
}

// Connect establishes the session and starts receiving status/profile data.
func (h *Head) Connect(ctx context.Context) error {
	return h.sess.Connect(ctx)
}

// Disconnect tears down the session.
func (h *Head) Disconnect() error {
	return h.sess.Disconnect()
}

// SetAlignment updates a camera's calibration. Rejected while connected,
// since the device must not receive windows transformed by a stale
// alignment mid-scan (§4.4, §4.8).
func (h *Head) SetAlignment(cameraID uint8, rollDeg, shiftXIn, shiftYIn float64, orientation align.Orientation) error {
	if h.sess.Connected() {
		return scanerr.Wrap(scanerr.AlreadyConnected, "cannot set alignment for camera %d while connected", cameraID)
	}
	a, err := align.New(rollDeg, shiftXIn, shiftYIn, orientation)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.alignments[cameraID] = a
	h.mu.Unlock()
	return nil
}

// SetWindow decomposes a mill-frame rectangle into line constraints via the
// camera's alignment and sends the resulting window request.
func (h *Head) SetWindow(cameraID uint8, top, bottom, left, right float64) error {
	a := h.lookupAlignment(cameraID)
	if a == nil {
		return scanerr.Wrap(scanerr.InvalidArgument, "no alignment set for camera %d", cameraID)
	}
	req := align.EncodeWindow(cameraID, a, top, bottom, left, right)
	h.mu.Lock()
	h.lastWindow = &req
	h.mu.Unlock()
	return h.sess.SetWindow(req)
}

// PushWindow resends the most recently set window, reasserting it against
// the device immediately after a (re)connect (§4.9). A no-op if no window
// has ever been set.
func (h *Head) PushWindow() error {
	h.mu.Lock()
	w := h.lastWindow
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	return h.sess.SetWindow(*w)
}

// Configure validates and stores cfg. Rejected while scanning (§4.8).
func (h *Head) Configure(cfg Configuration) error {
	if h.Scanning() {
		return scanerr.Wrap(scanerr.AlreadyScanning, "cannot configure head %d while scanning", h.ID)
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.configuration = cfg
	h.hasConfiguration = true
	h.mu.Unlock()
	return nil
}

// Configuration returns the head's current configuration, and whether
// Configure has ever been called.
func (h *Head) Configuration() (Configuration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configuration, h.hasConfiguration
}

// StartScanning begins the scan-request heartbeat with the given
// parameters. Rejected if the requested rate exceeds the head's last
// reported max scan rate; clears the profile queue before starting so a
// stale scan's leftover profiles never bleed into the new one (§4.8).
func (h *Head) StartScanning(params session.StartScanningParams) error {
	if status, ok := h.LastStatus(); ok && params.RateHz > float64(status.MaxScanRateHz) {
		return scanerr.Wrap(scanerr.OutOfRange, "requested rate %.1f exceeds head %d max rate %d", params.RateHz, h.ID, status.MaxScanRateHz)
	}
	h.queue.Clear()
	return h.sess.StartScanning(params)
}

// StopScanning halts the scan-request heartbeat.
func (h *Head) StopScanning() error {
	return h.sess.StopScanning()
}

// TryTakeNextProfile returns the oldest queued profile without blocking.
func (h *Head) TryTakeNextProfile() (*profile.Profile, bool) {
	return h.queue.TryPop()
}

// TakeNextProfile blocks until a profile is available or ctx is canceled.
func (h *Head) TakeNextProfile(ctx context.Context) (*profile.Profile, error) {
	return h.queue.Pop(ctx)
}

// GetCameraImage returns a copy of the image buffer of the most recently
// assembled profile from a camera that carried IM data.
func (h *Head) GetCameraImage(cameraID uint8) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	img, ok := h.lastImage[cameraID]
	return img, ok
}

// LastStatus returns the most recent status reply received from the head.
func (h *Head) LastStatus() (*wire.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastStatus, h.lastStatus != nil
}

// Stats returns a snapshot of this head's lifetime counters.
func (h *Head) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Capability returns this head's current phase-table capability.
func (h *Head) Capability() Capability {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.capability
}

// SetCapability overrides the head's phase-table capability, typically once
// its actual strobe support and configuration-group limit are learned from
// a status reply.
func (h *Head) SetCapability(c Capability) {
	h.mu.Lock()
	h.capability = c
	h.mu.Unlock()
}

// Connected reports whether the underlying session is connected.
func (h *Head) Connected() bool { return h.sess.Connected() }

// Scanning reports whether the scan-request heartbeat is running.
func (h *Head) Scanning() bool { return h.sess.Scanning() }
