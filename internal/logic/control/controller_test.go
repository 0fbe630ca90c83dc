package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/hw/camera"
	"github.com/developer27/falconeye/internal/hw/gpio"
	"github.com/developer27/falconeye/internal/hw/torch"
	"github.com/developer27/falconeye/internal/logic/exposure"
	"github.com/developer27/falconeye/internal/logic/geometry"
	"github.com/developer27/falconeye/internal/prefs"
)

const torchPin = 18

func testProfiles() []config.CameraProfile {
	return []config.CameraProfile{
		{
			ID:             "0",
			Facing:         "back",
			ManualSensor:   true,
			ExposureTimeNs: &config.RangeConfig{Lower: 1000, Upper: 2_000_000_000},
			Sensitivity:    &config.RangeConfig{Lower: 50, Upper: 3200},
			AeCompensation: &config.RangeConfig{Lower: -12, Upper: 12},
			ActiveArray:    config.SizeConfig{Width: 4000, Height: 3000},
			OutputSizes: []config.SizeConfig{
				{Width: 640, Height: 480},
				{Width: 1280, Height: 720},
				{Width: 1920, Height: 1080},
			},
		},
		{
			ID:             "1",
			Facing:         "front",
			AeCompensation: &config.RangeConfig{Lower: -6, Upper: 6},
			ActiveArray:    config.SizeConfig{Width: 1000, Height: 1000},
			OutputSizes:    []config.SizeConfig{{Width: 800, Height: 600}, {Width: 640, Height: 480}},
		},
	}
}

type harness struct {
	ctrl  *Controller
	dev   *camera.SimulatedDevice
	store *prefs.MemoryStore
	gpio  *gpio.MockDriver
	torch *torch.Torch

	mu      sync.Mutex
	notices []string
}

func newHarness(t *testing.T, initial map[string]string) *harness {
	t.Helper()
	h := &harness{
		dev:   camera.NewSimulatedDevice(testProfiles()),
		store: prefs.NewMemoryStore(initial),
		gpio:  gpio.NewMockDriver(),
	}
	tr, err := torch.New(h.gpio, torchPin, false)
	if err != nil {
		t.Fatalf("torch.New: %v", err)
	}
	h.torch = tr
	h.ctrl = NewController(h.dev, prefs.NewSettings(h.store), h.torch, func(level, msg string) {
		h.mu.Lock()
		h.notices = append(h.notices, level+":"+msg)
		h.mu.Unlock()
	})
	h.ctrl.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.ctrl.Stop(ctx)
	})
	return h
}

func (h *harness) waitState(t *testing.T, want camera.State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := h.ctrl.Snapshot()
		if s.State == want {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for state %s, last %s", want, h.ctrl.Snapshot().State)
	return Snapshot{}
}

func (h *harness) openActive(t *testing.T) Snapshot {
	t.Helper()
	if err := h.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return h.waitState(t, camera.StatePreviewActive)
}

func (h *harness) last(t *testing.T) *camera.CaptureRequest {
	t.Helper()
	req := h.dev.LastSubmitted()
	if req == nil {
		t.Fatal("no request submitted")
	}
	return req
}

func TestOpen_ManualExposurePreview(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.openActive(t)

	if snap.CameraID != "0" || snap.SessionID == "" {
		t.Errorf("snapshot = %+v, want back camera with session id", snap)
	}
	if snap.PreviewSize != (geometry.Size{Width: 1280, Height: 720}) {
		t.Errorf("PreviewSize = %+v, want 1280x720", snap.PreviewSize)
	}

	req := h.last(t)
	if req.ControlMode != camera.ControlModeOff || req.AEMode != camera.AEModeOff {
		t.Errorf("modes = %s/%s, want off/off", req.ControlMode, req.AEMode)
	}
	if req.ExposureTimeNs == nil || *req.ExposureTimeNs != 66_666_666 {
		t.Errorf("ExposureTimeNs = %v, want 66666666", req.ExposureTimeNs)
	}
	if req.Sensitivity == nil || *req.Sensitivity != 100 {
		t.Errorf("Sensitivity = %v, want 100", req.Sensitivity)
	}
	if req.AWBMode != camera.AWBModeAuto || req.ColorCorrection != camera.ColorCorrectionHighQuality {
		t.Errorf("colour pipeline = %s/%s", req.AWBMode, req.ColorCorrection)
	}
	if req.CropRegion == nil || *req.CropRegion != (geometry.Rect{Left: 0, Top: 0, Right: 4000, Bottom: 3000}) {
		t.Errorf("CropRegion = %+v, want full array", req.CropRegion)
	}
	if req.FlashMode != camera.FlashModeOff {
		t.Errorf("FlashMode = %s, want off", req.FlashMode)
	}
	if snap.Exposure.Mode != exposure.Manual {
		t.Errorf("snapshot exposure = %+v", snap.Exposure)
	}
}

func TestZoomIn_TenStepsCropsTo2x(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := h.ctrl.ZoomIn(ctx); err != nil {
			t.Fatal(err)
		}
	}
	want := geometry.Rect{Left: 1000, Top: 750, Right: 3000, Bottom: 2250}
	if got := h.last(t).CropRegion; got == nil || *got != want {
		t.Errorf("CropRegion = %+v, want %+v", got, want)
	}
	if z := h.ctrl.Snapshot().Zoom; z < 1.999 || z > 2.001 {
		t.Errorf("Zoom = %v, want 2.0", z)
	}

	for i := 0; i < 30; i++ {
		_ = h.ctrl.ZoomOut(ctx)
	}
	if z := h.ctrl.Snapshot().Zoom; z != geometry.MinZoom {
		t.Errorf("Zoom = %v, want 1.0", z)
	}
}

func TestZoomIn_FailedPushKeepsPriorState(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)
	before := len(h.dev.Submitted())

	h.dev.SetFailures(false, false, true)
	if err := h.ctrl.ZoomIn(context.Background()); err != nil {
		t.Fatalf("ZoomIn() should swallow device errors, got %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.Zoom != geometry.MinZoom {
		t.Errorf("Zoom = %v after failed push, want 1.0", snap.Zoom)
	}
	if snap.Crop == nil || snap.Crop.Right != 4000 {
		t.Errorf("Crop = %+v after failed push, want full array", snap.Crop)
	}
	if got := len(h.dev.Submitted()); got != before {
		t.Errorf("submitted = %d, want %d", got, before)
	}
}

func TestApplyRollingShutter_ZeroRateRevertsToAuto(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)
	ctx := context.Background()

	_ = h.store.Set(ctx, prefs.KeyShutterSpeed, "0")
	_ = h.store.Set(ctx, prefs.KeyLightingMode, "high_light")
	if err := h.ctrl.ApplyRollingShutter(ctx); err != nil {
		t.Fatal(err)
	}

	req := h.last(t)
	if req.AEMode != camera.AEModeOn || req.ControlMode != camera.ControlModeAuto {
		t.Errorf("modes = %s/%s, want auto/on", req.ControlMode, req.AEMode)
	}
	if req.ExposureTimeNs != nil || req.Sensitivity != nil {
		t.Error("manual values must be cleared when reverting to auto")
	}
	if req.AeCompensation != 12 {
		t.Errorf("AeCompensation = %d, want 12 (high_light, AE on)", req.AeCompensation)
	}

	// Idempotent
	_ = h.ctrl.ApplyRollingShutter(ctx)
	again := h.last(t)
	if again.AEMode != camera.AEModeOn || again.ExposureTimeNs != nil {
		t.Errorf("second apply = %+v", again)
	}
}

func TestApplyRollingShutter_ClampsIntoRange(t *testing.T) {
	h := newHarness(t, map[string]string{prefs.KeyShutterSpeed: "1"})
	h.openActive(t)
	req := h.last(t)
	// 1 Hz = 1e9 ns, inside [1000, 2e9].
	if req.ExposureTimeNs == nil || *req.ExposureTimeNs != 1_000_000_000 {
		t.Errorf("ExposureTimeNs = %v, want 1e9", req.ExposureTimeNs)
	}
}

func TestFrontCamera_NoManualSensorUsesAutoAndLighting(t *testing.T) {
	h := newHarness(t, map[string]string{
		prefs.KeyCameraFacing: "front",
		prefs.KeyLightingMode: "low_light",
	})
	snap := h.openActive(t)
	if snap.CameraID != "1" {
		t.Fatalf("CameraID = %q, want 1", snap.CameraID)
	}
	if snap.PreviewSize != (geometry.Size{Width: 640, Height: 480}) {
		t.Errorf("PreviewSize = %+v, want smallest 640x480", snap.PreviewSize)
	}
	req := h.last(t)
	if req.AEMode != camera.AEModeOn || req.ExposureTimeNs != nil {
		t.Errorf("front camera request = %+v, want auto exposure", req)
	}
	if req.AeCompensation != -6 {
		t.Errorf("AeCompensation = %d, want -6", req.AeCompensation)
	}
}

func TestForceARShutter(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)

	if err := h.ctrl.ForceARShutter(context.Background()); err != nil {
		t.Fatal(err)
	}
	req := h.last(t)
	if req.ExposureTimeNs == nil || *req.ExposureTimeNs != 4_000_000 {
		t.Errorf("ExposureTimeNs = %v, want 4000000 (250 Hz)", req.ExposureTimeNs)
	}
	if req.Sensitivity == nil || *req.Sensitivity != 100 {
		t.Errorf("Sensitivity = %v, want 100", req.Sensitivity)
	}
}

func TestForceARShutter_WithoutSessionOrManualIsSilent(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.ForceARShutter(context.Background()); err != nil {
		t.Errorf("ForceARShutter() without session = %v, want nil", err)
	}

	front := newHarness(t, map[string]string{prefs.KeyCameraFacing: "front"})
	front.openActive(t)
	before := len(front.dev.Submitted())
	if err := front.ctrl.ForceARShutter(context.Background()); err != nil {
		t.Errorf("ForceARShutter() on auto-only camera = %v, want nil", err)
	}
	if len(front.dev.Submitted()) != before {
		t.Error("no request should be pushed when manual sensor is unsupported")
	}
}

func TestApplyFlash_DrivesTorch(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)
	ctx := context.Background()

	_ = h.store.Set(ctx, prefs.KeyEnableFlash, "true")
	if err := h.ctrl.ApplyFlash(ctx); err != nil {
		t.Fatal(err)
	}
	if h.last(t).FlashMode != camera.FlashModeTorch {
		t.Errorf("FlashMode = %s, want torch", h.last(t).FlashMode)
	}
	if lvl, _ := h.gpio.ReadPin(torchPin); lvl != gpio.High {
		t.Errorf("torch pin = %v, want HIGH", lvl)
	}
	if !h.ctrl.Snapshot().Flash {
		t.Error("snapshot Flash = false, want true")
	}

	if err := h.ctrl.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := h.gpio.ReadPin(torchPin); lvl != gpio.Low {
		t.Errorf("torch pin after close = %v, want LOW", lvl)
	}
}

func TestApplyFlash_ClosedSessionLeavesTorchOff(t *testing.T) {
	h := newHarness(t, map[string]string{prefs.KeyEnableFlash: "true"})
	ctx := context.Background()

	if err := h.ctrl.ApplySettings(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.ApplyFlash(ctx); err != nil {
		t.Fatal(err)
	}
	if s := h.ctrl.Snapshot(); s.State != camera.StateClosed {
		t.Fatalf("state = %s, want closed", s.State)
	}
	if h.torch.On() {
		t.Error("torch lit with the camera closed")
	}
	if lvl, _ := h.gpio.ReadPin(torchPin); lvl != gpio.Low {
		t.Errorf("torch pin = %v, want LOW", lvl)
	}

	// Opening the camera lights it from the stored preference.
	h.openActive(t)
	if !h.torch.On() {
		t.Error("torch off after open with flash enabled")
	}
}

func TestDisconnect_SwitchesTorchOff(t *testing.T) {
	h := newHarness(t, map[string]string{prefs.KeyEnableFlash: "true"})
	h.openActive(t)
	if !h.torch.On() {
		t.Fatal("torch should be on with flash enabled")
	}
	h.dev.Disconnect()
	h.waitState(t, camera.StateClosed)
	if h.torch.On() {
		t.Error("torch still lit after disconnect")
	}
}

func TestConfigureFailure_NotifiesAndCloses(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.SetFailures(false, true, false)
	if err := h.ctrl.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.notices)
		h.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	h.mu.Lock()
	notices := append([]string(nil), h.notices...)
	h.mu.Unlock()
	if len(notices) != 1 || notices[0] != "error:"+ConfigFailedMessage {
		t.Errorf("notices = %v, want one config failure", notices)
	}
	h.waitState(t, camera.StateClosed)
}

func TestOpenFailure_ReturnsToClosed(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.SetFailures(true, false, false)
	_ = h.ctrl.Open(context.Background())
	// The device reports the failure as an error event.
	h.waitState(t, camera.StateClosed)
	if h.dev.LastSubmitted() != nil {
		t.Error("nothing should be submitted when open fails")
	}
}

func TestDisconnect_ClosesSession(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)
	h.dev.Disconnect()
	h.waitState(t, camera.StateClosed)

	// Reopen works after a disconnect.
	h.openActive(t)
}

func TestSwitchCamera(t *testing.T) {
	h := newHarness(t, nil)
	first := h.openActive(t)

	if err := h.ctrl.SwitchCamera(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := h.waitState(t, camera.StatePreviewActive)
	if snap.CameraID != "1" {
		t.Errorf("CameraID = %q, want 1 after switch", snap.CameraID)
	}
	if snap.SessionID == first.SessionID {
		t.Error("switching cameras should start a new session")
	}
	if v, _ := h.store.Get(context.Background(), prefs.KeyCameraFacing); v != "front" {
		t.Errorf("camera_facing = %q, want front", v)
	}
}

func TestApplySettings_FacingChangeReopens(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)
	ctx := context.Background()

	_ = h.store.Set(ctx, prefs.KeyCameraFacing, "front")
	if err := h.ctrl.ApplySettings(ctx); err != nil {
		t.Fatal(err)
	}
	snap := h.waitState(t, camera.StatePreviewActive)
	if snap.CameraID != "1" {
		t.Errorf("CameraID = %q, want 1", snap.CameraID)
	}
}

func TestStop_RejectsFurtherOperations(t *testing.T) {
	h := newHarness(t, nil)
	h.openActive(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.ctrl.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := h.ctrl.ZoomIn(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("ZoomIn after Stop = %v, want ErrStopped", err)
	}
	if h.ctrl.Snapshot().State != camera.StateClosed {
		t.Errorf("state after Stop = %s, want closed", h.ctrl.Snapshot().State)
	}
}

func TestUpdatePreview(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.ctrl.UpdatePreview(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("UpdatePreview() without session = %v, want ErrNoSession", err)
	}

	h.openActive(t)
	before := len(h.dev.Submitted())
	if err := h.ctrl.UpdatePreview(ctx); err != nil {
		t.Fatalf("UpdatePreview() error: %v", err)
	}
	if got := len(h.dev.Submitted()); got != before+1 {
		t.Errorf("submitted = %d, want %d", got, before+1)
	}

	h.dev.SetFailures(false, false, true)
	if err := h.ctrl.UpdatePreview(ctx); err == nil {
		t.Error("UpdatePreview() should report a failed submit")
	}
}
