package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/logic/geometry"
)

// ErrNotConfigured is returned by SubmitRepeating before a session is configured.
var ErrNotConfigured = errors.New("capture session not configured")

// SimulatedDevice is a Device backed by configured camera profiles. It
// answers Open and ConfigureSession immediately through its event channel
// and keeps every submitted request. Used on development machines and in
// tests; the Fail* fields inject driver failures.
type SimulatedDevice struct {
	mu         sync.Mutex
	ids        []string
	caps       map[string]Capabilities
	events     chan Event
	openID     string
	configured bool
	submitted  []*CaptureRequest

	FailOpen      bool
	FailConfigure bool
	FailSubmit    bool
}

// NewSimulatedDevice builds a device from profiles, keeping their order.
func NewSimulatedDevice(profiles []config.CameraProfile) *SimulatedDevice {
	d := &SimulatedDevice{
		caps:   make(map[string]Capabilities, len(profiles)),
		events: make(chan Event, 16),
	}
	for _, p := range profiles {
		d.ids = append(d.ids, p.ID)
		d.caps[p.ID] = FromProfile(p)
	}
	return d
}

func (d *SimulatedDevice) CameraIDs() []string {
	return append([]string(nil), d.ids...)
}

func (d *SimulatedDevice) Characteristics(id string) (Capabilities, error) {
	caps, ok := d.caps[id]
	if !ok {
		return Capabilities{}, fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	}
	return caps, nil
}

func (d *SimulatedDevice) Open(id string) error {
	if _, ok := d.caps[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	}
	d.mu.Lock()
	fail := d.FailOpen
	if !fail {
		d.openID = id
	}
	d.mu.Unlock()

	debug.Verbose("Simulated camera %s: open (fail=%v)", id, fail)
	if fail {
		d.post(Event{Kind: EventError, CameraID: id, Err: errors.New("camera in use")})
		return nil
	}
	d.post(Event{Kind: EventOpened, CameraID: id})
	return nil
}

func (d *SimulatedDevice) ConfigureSession(previewSize geometry.Size) error {
	d.mu.Lock()
	id, fail := d.openID, d.FailConfigure
	if id == "" {
		d.mu.Unlock()
		return errors.New("camera not open")
	}
	d.configured = !fail
	d.mu.Unlock()

	debug.Verbose("Simulated camera %s: configure %dx%d (fail=%v)", id, previewSize.Width, previewSize.Height, fail)
	if fail {
		d.post(Event{Kind: EventConfigureFailed, CameraID: id})
		return nil
	}
	d.post(Event{Kind: EventConfigured, CameraID: id})
	return nil
}

func (d *SimulatedDevice) SubmitRepeating(req *CaptureRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailSubmit {
		return errors.New("camera access exception")
	}
	if !d.configured {
		return ErrNotConfigured
	}
	d.submitted = append(d.submitted, req.Clone())
	return nil
}

func (d *SimulatedDevice) Close() error {
	d.mu.Lock()
	d.openID = ""
	d.configured = false
	d.mu.Unlock()
	return nil
}

func (d *SimulatedDevice) Events() <-chan Event {
	return d.events
}

// Disconnect simulates the camera going away.
func (d *SimulatedDevice) Disconnect() {
	d.mu.Lock()
	id := d.openID
	d.mu.Unlock()
	d.post(Event{Kind: EventDisconnected, CameraID: id})
}

// SetFailures changes the injected failures under the device lock.
func (d *SimulatedDevice) SetFailures(open, configure, submit bool) {
	d.mu.Lock()
	d.FailOpen, d.FailConfigure, d.FailSubmit = open, configure, submit
	d.mu.Unlock()
}

// Submitted returns copies of every request accepted so far.
func (d *SimulatedDevice) Submitted() []*CaptureRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*CaptureRequest, len(d.submitted))
	for i, r := range d.submitted {
		out[i] = r.Clone()
	}
	return out
}

// LastSubmitted returns the most recent accepted request, or nil.
func (d *SimulatedDevice) LastSubmitted() *CaptureRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.submitted) == 0 {
		return nil
	}
	return d.submitted[len(d.submitted)-1].Clone()
}

func (d *SimulatedDevice) post(ev Event) {
	select {
	case d.events <- ev:
	default:
		debug.Errorf("simulated camera: event queue full, dropping %s", ev.Kind)
	}
}
