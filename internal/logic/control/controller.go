package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/hw/camera"
	"github.com/developer27/falconeye/internal/hw/torch"
	"github.com/developer27/falconeye/internal/logic/exposure"
	"github.com/developer27/falconeye/internal/logic/geometry"
	"github.com/developer27/falconeye/internal/prefs"
)

var (
	// ErrStopped is returned by operations after Stop.
	ErrStopped = errors.New("controller stopped")
	// ErrNoSession is returned by UpdatePreview when no preview is active.
	ErrNoSession = errors.New("no active preview session")
)

// ConfigFailedMessage is the notice sent when the preview session cannot
// be configured.
const ConfigFailedMessage = "Preview config failed."

// NotifyFunc receives user-facing notices (level "info" or "error").
type NotifyFunc func(level, msg string)

// Snapshot is a read-only view of the controller state.
type Snapshot struct {
	SessionID      string                 `json:"session_id,omitempty"`
	CameraID       string                 `json:"camera_id,omitempty"`
	State          camera.State           `json:"state"`
	Zoom           float64                `json:"zoom"`
	Crop           *geometry.Rect         `json:"crop,omitempty"`
	Exposure       exposure.Result        `json:"exposure"`
	AeCompensation int                    `json:"ae_compensation"`
	Flash          bool                   `json:"flash"`
	PreviewSize    geometry.Size          `json:"preview_size"`
	VideoSize      geometry.Size          `json:"video_size"`
	Request        *camera.CaptureRequest `json:"request,omitempty"`
}

type command struct {
	fn   func()
	done chan struct{}
}

// Controller applies exposure, zoom, flash and lighting parameters to the
// camera session. Every mutation runs on one executor goroutine, which also
// consumes device events, so the device only ever sees a single caller.
type Controller struct {
	dev      camera.Device
	settings *prefs.Settings
	torch    *torch.Torch
	notify   NotifyFunc

	cmds     chan command
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// Owned by the executor goroutine.
	session     camera.Session
	caps        camera.Capabilities
	zoom        geometry.ZoomState
	req         *camera.CaptureRequest
	previewSize geometry.Size
	videoSize   geometry.Size
	lastExp     exposure.Result

	snapMu sync.RWMutex
	snap   Snapshot
}

// NewController wires a controller. notify may be nil.
func NewController(dev camera.Device, settings *prefs.Settings, t *torch.Torch, notify NotifyFunc) *Controller {
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Controller{
		dev:      dev,
		settings: settings,
		torch:    t,
		notify:   notify,
		cmds:     make(chan command),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		zoom:     geometry.NewZoomState(0, 0),
	}
}

// Start launches the executor goroutine.
func (c *Controller) Start() {
	go c.loop()
}

// Stop closes the camera, turns the torch off and ends the executor.
func (c *Controller) Stop(ctx context.Context) error {
	err := c.Close(ctx)
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	if errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}

func (c *Controller) loop() {
	defer close(c.stopped)
	events := c.dev.Events()
	for {
		select {
		case cmd := <-c.cmds:
			cmd.fn()
			c.publish()
			close(cmd.done)
		case ev := <-events:
			c.handleEvent(ev)
			c.publish()
		case <-c.stop:
			return
		}
	}
}

// do runs fn on the executor and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case c.cmds <- cmd:
	case <-c.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the state as of the last completed command or event.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

func (c *Controller) publish() {
	s := Snapshot{
		SessionID:   c.session.ID,
		CameraID:    c.session.CameraID,
		State:       c.session.State,
		Zoom:        c.zoom.Level,
		Exposure:    c.lastExp,
		PreviewSize: c.previewSize,
		VideoSize:   c.videoSize,
	}
	if c.torch != nil {
		s.Flash = c.torch.On()
	}
	if c.req != nil {
		s.Request = c.req.Clone()
		s.Crop = s.Request.CropRegion
		s.AeCompensation = c.req.AeCompensation
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// Open selects the camera from the facing preference, reads its
// capabilities and asks the device to open it. Preview setup continues
// when the device reports the camera opened.
func (c *Controller) Open(ctx context.Context) error {
	return c.do(ctx, func() { c.open(ctx) })
}

// Close tears down the session and switches the torch off.
func (c *Controller) Close(ctx context.Context) error {
	return c.do(ctx, c.closeSession)
}

// SwitchCamera flips the facing preference and reopens the camera.
func (c *Controller) SwitchCamera(ctx context.Context) error {
	return c.do(ctx, func() {
		front, err := c.settings.FrontCamera(ctx)
		if err != nil {
			debug.Errorf("read camera facing: %v", err)
		}
		next := "front"
		if front {
			next = "back"
		}
		if err := c.settings.Store().Set(ctx, prefs.KeyCameraFacing, next); err != nil {
			debug.Errorf("store camera facing: %v", err)
			return
		}
		c.closeSession()
		c.open(ctx)
	})
}

func (c *Controller) open(ctx context.Context) {
	if c.session.State != camera.StateClosed {
		debug.Verbose("Open ignored: session %s is %s", c.session.ID, c.session.State)
		return
	}

	front, err := c.settings.FrontCamera(ctx)
	if err != nil {
		debug.Errorf("read camera facing: %v", err)
	}
	facing := camera.FacingBack
	if front {
		facing = camera.FacingFront
	}
	id, ok := camera.SelectCamera(c.dev, facing)
	if !ok {
		debug.Errorf("no camera available")
		return
	}
	caps, err := c.dev.Characteristics(id)
	if err != nil {
		debug.Errorf("read characteristics of camera %s: %v", id, err)
		return
	}
	debug.PrintStruct("Camera capabilities", caps)

	preview, perr := geometry.ChooseOptimalSize(caps.OutputSizes, geometry.TargetWidth, geometry.TargetHeight)
	if perr != nil {
		debug.Errorf("camera %s: choose preview size: %v", id, perr)
		return
	}
	// Preview and recording share the stream size list.
	video, _ := geometry.ChooseOptimalSize(caps.OutputSizes, geometry.TargetWidth, geometry.TargetHeight)

	c.caps = caps
	c.previewSize = preview
	c.videoSize = video
	c.zoom = geometry.ZoomState{Level: c.zoom.Level, SensorWidth: caps.ActiveArray.Width, SensorHeight: caps.ActiveArray.Height}
	if c.zoom.Level < geometry.MinZoom {
		c.zoom.Level = geometry.MinZoom
	}

	c.apply(camera.Event{Kind: camera.EventOpen, CameraID: id})
	if err := c.dev.Open(id); err != nil {
		debug.Errorf("open camera %s: %v", id, err)
		c.apply(camera.Event{Kind: camera.EventClose})
	}
}

func (c *Controller) closeSession() {
	if c.session.State != camera.StateClosed {
		if err := c.dev.Close(); err != nil {
			debug.Errorf("close camera: %v", err)
		}
	}
	c.apply(camera.Event{Kind: camera.EventClose})
	c.release()
}

// release drops the request and darkens the LED once the session is gone.
func (c *Controller) release() {
	c.req = nil
	if c.torch != nil {
		if err := c.torch.Off(); err != nil {
			debug.Errorf("torch off: %v", err)
		}
	}
}

func (c *Controller) apply(ev camera.Event) bool {
	prev, err := c.session.Apply(ev)
	if err != nil {
		debug.Verbose("Ignoring event: %v", err)
		return false
	}
	if prev != c.session.State {
		debug.State(c.session.ID, prev.String(), c.session.State.String())
	}
	return true
}

func (c *Controller) handleEvent(ev camera.Event) {
	if ev.CameraID != "" && c.session.CameraID != "" && ev.CameraID != c.session.CameraID {
		debug.Verbose("Dropping %s event for stale camera %s", ev.Kind, ev.CameraID)
		return
	}
	if !c.apply(ev) {
		return
	}

	switch ev.Kind {
	case camera.EventOpened:
		c.createPreview()
	case camera.EventConfigured:
		c.updatePreview()
	case camera.EventConfigureFailed:
		debug.Errorf("camera %s: preview configuration failed", ev.CameraID)
		c.notify("error", ConfigFailedMessage)
		if err := c.dev.Close(); err != nil {
			debug.Errorf("close camera %s: %v", ev.CameraID, err)
		}
		c.release()
	case camera.EventDisconnected, camera.EventError:
		if ev.Err != nil {
			debug.Errorf("camera %s: %s: %v", ev.CameraID, ev.Kind, ev.Err)
		}
		if err := c.dev.Close(); err != nil {
			debug.Errorf("close camera %s: %v", ev.CameraID, err)
		}
		c.release()
	}
}

// createPreview builds the preview request with every user parameter and
// asks the device to configure the session.
func (c *Controller) createPreview() {
	ctx := context.Background()
	c.req = camera.NewPreviewRequest(c.previewSize)

	c.applyRollingShutter(ctx)
	c.applyFlash(ctx)
	c.applyLightingMode(ctx)
	c.applyZoom()
	c.req.ForceColorPipeline()

	if err := c.dev.ConfigureSession(c.previewSize); err != nil {
		debug.Errorf("configure session: %v", err)
		c.notify("error", ConfigFailedMessage)
		c.apply(camera.Event{Kind: camera.EventConfigureFailed})
		if cerr := c.dev.Close(); cerr != nil {
			debug.Errorf("close camera: %v", cerr)
		}
		c.release()
	}
}

// UpdatePreview re-submits the current request to the active session.
func (c *Controller) UpdatePreview(ctx context.Context) error {
	var err error
	if derr := c.do(ctx, func() {
		if c.req == nil || !c.session.Active() {
			err = ErrNoSession
			return
		}
		err = c.updatePreview()
	}); derr != nil {
		return derr
	}
	return err
}

// updatePreview re-submits the repeating request. It returns an error so
// callers can roll back; the error has already been logged.
func (c *Controller) updatePreview() error {
	if c.req == nil {
		return nil
	}
	c.req.ForceColorPipeline()
	if !c.session.Active() {
		return nil
	}
	if debug.IsEnabled(debug.LevelVerbose) {
		debug.PrintStruct("Capture request", *c.req)
	}
	if err := c.dev.SubmitRepeating(c.req.Clone()); err != nil {
		err = fmt.Errorf("submit repeating request: %w", err)
		debug.Error(err)
		return err
	}
	return nil
}
