package camera

import (
	"errors"
	"testing"

	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/logic/geometry"
)

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
				{Width: 1920, Height: 1080},
				{Width: 1280, Height: 720},
			},
		},
		{
			ID:          "1",
			Facing:      "front",
			ActiveArray: config.SizeConfig{Width: 1000, Height: 1000},
			OutputSizes: []config.SizeConfig{{Width: 800, Height: 600}, {Width: 640, Height: 480}},
		},
	}
}

func TestFromProfile(t *testing.T) {
	caps := FromProfile(testProfiles()[0])
	if caps.Facing != FacingBack || !caps.ManualSensor {
		t.Errorf("caps = %+v", caps)
	}
	if caps.ExposureTimeNs == nil || caps.ExposureTimeNs.Upper != 2_000_000_000 {
		t.Errorf("ExposureTimeNs = %+v", caps.ExposureTimeNs)
	}
	if caps.ActiveArray != (geometry.Size{Width: 4000, Height: 3000}) {
		t.Errorf("ActiveArray = %+v", caps.ActiveArray)
	}
	if len(caps.OutputSizes) != 2 || caps.OutputSizes[1] != (geometry.Size{Width: 1280, Height: 720}) {
		t.Errorf("OutputSizes = %+v", caps.OutputSizes)
	}

	front := FromProfile(testProfiles()[1])
	if front.ExposureTimeNs != nil || front.Sensitivity != nil || front.AeCompensation != nil {
		t.Error("unreported ranges must stay nil")
	}
	exp := front.Exposure()
	if exp == nil || exp.ExposureTimeNs != nil {
		t.Errorf("Exposure() = %+v, want non-nil with nil ranges", exp)
	}
}

func TestSelectCamera(t *testing.T) {
	d := NewSimulatedDevice(testProfiles())
	if id, ok := SelectCamera(d, FacingBack); !ok || id != "0" {
		t.Errorf("back = %q, %v; want 0", id, ok)
	}
	if id, ok := SelectCamera(d, FacingFront); !ok || id != "1" {
		t.Errorf("front = %q, %v; want 1", id, ok)
	}

	backOnly := NewSimulatedDevice(testProfiles()[:1])
	if id, ok := SelectCamera(backOnly, FacingFront); !ok || id != "0" {
		t.Errorf("fallback = %q, %v; want first id 0", id, ok)
	}

	if _, ok := SelectCamera(NewSimulatedDevice(nil), FacingBack); ok {
		t.Error("empty device should report ok=false")
	}
}

func TestCaptureRequest_ManualThenAuto(t *testing.T) {
	r := NewPreviewRequest(geometry.Size{Width: 1280, Height: 720})
	if r.ControlMode != ControlModeAuto || r.AEMode != AEModeOn {
		t.Fatalf("template = %+v, want auto", r)
	}

	r.SetManualExposure(66_666_666, 100)
	if r.ControlMode != ControlModeOff || r.AEMode != AEModeOff {
		t.Errorf("manual modes = %s/%s, want off/off", r.ControlMode, r.AEMode)
	}
	if r.ExposureTimeNs == nil || *r.ExposureTimeNs != 66_666_666 || r.Sensitivity == nil || *r.Sensitivity != 100 {
		t.Errorf("manual values not set: %+v", r)
	}

	r.SetAutoExposure()
	if r.ExposureTimeNs != nil || r.Sensitivity != nil {
		t.Error("SetAutoExposure must clear manual values")
	}
	if r.ControlMode != ControlModeAuto || r.AEMode != AEModeOn {
		t.Errorf("auto modes = %s/%s", r.ControlMode, r.AEMode)
	}
}

func TestCaptureRequest_CloneIsDeep(t *testing.T) {
	r := NewPreviewRequest(geometry.Size{})
	r.SetManualExposure(1000, 200)
	crop := geometry.Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}
	r.CropRegion = &crop

	c := r.Clone()
	*r.ExposureTimeNs = 5
	*r.Sensitivity = 6
	r.CropRegion.Left = 99

	if *c.ExposureTimeNs != 1000 || *c.Sensitivity != 200 || c.CropRegion.Left != 1 {
		t.Errorf("clone shares memory with original: %+v", c)
	}
}

func TestCaptureRequest_ForceColorPipeline(t *testing.T) {
	r := NewPreviewRequest(geometry.Size{})
	r.AWBMode = AWBMode("daylight")
	r.ForceColorPipeline()
	if r.AWBMode != AWBModeAuto || r.ColorCorrection != ColorCorrectionHighQuality {
		t.Errorf("got %s/%s", r.AWBMode, r.ColorCorrection)
	}
}

func TestSimulatedDevice_OpenConfigureSubmit(t *testing.T) {
	d := NewSimulatedDevice(testProfiles())

	if err := d.SubmitRepeating(NewPreviewRequest(geometry.Size{})); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("submit before configure err = %v, want ErrNotConfigured", err)
	}

	if err := d.Open("0"); err != nil {
		t.Fatal(err)
	}
	if ev := <-d.Events(); ev.Kind != EventOpened || ev.CameraID != "0" {
		t.Errorf("event = %+v, want opened(0)", ev)
	}
	if err := d.ConfigureSession(geometry.Size{Width: 1280, Height: 720}); err != nil {
		t.Fatal(err)
	}
	if ev := <-d.Events(); ev.Kind != EventConfigured {
		t.Errorf("event = %+v, want configured", ev)
	}
	if err := d.SubmitRepeating(NewPreviewRequest(geometry.Size{Width: 1280, Height: 720})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := d.LastSubmitted(); got == nil || got.PreviewSize.Width != 1280 {
		t.Errorf("LastSubmitted() = %+v", got)
	}
}

func TestSimulatedDevice_Failures(t *testing.T) {
	d := NewSimulatedDevice(testProfiles())
	if err := d.Open("9"); !errors.Is(err, ErrUnknownCamera) {
		t.Errorf("Open(9) err = %v, want ErrUnknownCamera", err)
	}

	d.SetFailures(true, false, false)
	_ = d.Open("0")
	if ev := <-d.Events(); ev.Kind != EventError {
		t.Errorf("event = %+v, want error", ev)
	}

	d.SetFailures(false, true, false)
	_ = d.Open("0")
	<-d.Events()
	_ = d.ConfigureSession(geometry.Size{})
	if ev := <-d.Events(); ev.Kind != EventConfigureFailed {
		t.Errorf("event = %+v, want configure_failed", ev)
	}
}
