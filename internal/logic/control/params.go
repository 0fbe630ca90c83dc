package control

import (
	"context"

	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/hw/camera"
	"github.com/developer27/falconeye/internal/logic/exposure"
)

// ZoomIn steps the digital zoom up by 0.1 (max 10x) and pushes the new
// crop region. A failed push restores the previous level.
func (c *Controller) ZoomIn(ctx context.Context) error {
	return c.do(ctx, func() { c.stepZoom(true) })
}

// ZoomOut steps the digital zoom down by 0.1 (min 1x).
func (c *Controller) ZoomOut(ctx context.Context) error {
	return c.do(ctx, func() { c.stepZoom(false) })
}

func (c *Controller) stepZoom(in bool) {
	prevZoom := c.zoom
	var changed bool
	if in {
		changed = c.zoom.ZoomIn()
	} else {
		changed = c.zoom.ZoomOut()
	}
	if !changed {
		return
	}
	c.pushOrRollback(func() { c.applyZoom() }, func() { c.zoom = prevZoom })
}

// ApplyRollingShutter recomputes exposure from the shutter preference and
// pushes it, followed by the lighting mode that depends on the AE mode.
func (c *Controller) ApplyRollingShutter(ctx context.Context) error {
	return c.do(ctx, func() {
		c.pushOrRollback(func() {
			c.applyRollingShutter(ctx)
			c.applyLightingMode(ctx)
		}, nil)
	})
}

// ForceARShutter pins exposure to the AR profile (250 Hz) and pushes it to
// the active session immediately. Without manual sensor support, exposure
// ranges or a session it only logs.
func (c *Controller) ForceARShutter(ctx context.Context) error {
	return c.do(ctx, func() {
		if !c.caps.ManualSensor || c.req == nil {
			debug.Live("AR shutter skipped: manual sensor=%v, request=%v", c.caps.ManualSensor, c.req != nil)
			return
		}
		res := exposure.ComputeAR(c.caps.ManualSensor, c.caps.Exposure())
		if res.Mode != exposure.Manual {
			debug.Live("AR shutter skipped: exposure or ISO range unavailable")
			return
		}
		c.pushOrRollback(func() {
			c.req.SetManualExposure(res.ExposureNs, res.ISO)
			c.lastExp = res
			debug.Exposure(res.Mode.String(), res.ExposureNs, res.ISO)
		}, nil)
	})
}

// ApplyFlash reads the flash preference, updates the request flash mode
// and drives the torch LED.
func (c *Controller) ApplyFlash(ctx context.Context) error {
	return c.do(ctx, func() {
		c.pushOrRollback(func() { c.applyFlash(ctx) }, nil)
	})
}

// ApplyLightingMode recomputes AE compensation from the lighting preference.
func (c *Controller) ApplyLightingMode(ctx context.Context) error {
	return c.do(ctx, func() {
		c.pushOrRollback(func() { c.applyLightingMode(ctx) }, nil)
	})
}

// ApplySettings re-reads every preference. A facing change reopens the
// camera; otherwise exposure, flash, lighting and zoom are re-applied in
// one push.
func (c *Controller) ApplySettings(ctx context.Context) error {
	return c.do(ctx, func() {
		front, err := c.settings.FrontCamera(ctx)
		if err != nil {
			debug.Errorf("read camera facing: %v", err)
		}
		want := camera.FacingBack
		if front {
			want = camera.FacingFront
		}
		if c.session.State != camera.StateClosed && c.caps.Facing != want {
			debug.Info("Camera facing changed to %s, reopening", want)
			c.closeSession()
			c.open(ctx)
			return
		}
		c.pushOrRollback(func() {
			c.applyRollingShutter(ctx)
			c.applyFlash(ctx)
			c.applyLightingMode(ctx)
			c.applyZoom()
		}, nil)
	})
}

// pushOrRollback runs mutate on the request and submits it. When the
// submit fails the request, exposure state and (through restore) any
// other state go back to what they were.
func (c *Controller) pushOrRollback(mutate func(), restore func()) {
	if c.req == nil {
		mutate()
		return
	}
	prevReq := c.req.Clone()
	prevExp := c.lastExp
	prevFlash := c.req.FlashMode

	mutate()
	if err := c.updatePreview(); err != nil {
		c.req = prevReq
		c.lastExp = prevExp
		if restore != nil {
			restore()
		}
		if c.torch != nil && c.torch.On() != (prevFlash == camera.FlashModeTorch) {
			if err := c.torch.Set(prevFlash == camera.FlashModeTorch); err != nil {
				debug.Errorf("torch rollback: %v", err)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Request mutation (executor only)
// ---------------------------------------------------------------------------

func (c *Controller) applyRollingShutter(ctx context.Context) {
	hz, err := c.settings.ShutterRateHz(ctx)
	if err != nil {
		debug.Errorf("read shutter speed: %v", err)
	}
	res := exposure.Compute(exposure.Config{
		DesiredShutterRateHz:  hz,
		ManualSensorSupported: c.caps.ManualSensor,
	}, c.caps.Exposure())

	c.lastExp = res
	debug.Exposure(res.Mode.String(), res.ExposureNs, res.ISO)
	if c.req == nil {
		return
	}
	if res.Mode == exposure.Manual {
		c.req.SetManualExposure(res.ExposureNs, res.ISO)
	} else {
		c.req.SetAutoExposure()
	}
}

func (c *Controller) applyFlash(ctx context.Context) {
	on, err := c.settings.FlashEnabled(ctx)
	if err != nil {
		debug.Errorf("read flash setting: %v", err)
	}
	// The LED follows the request: without a session there is nothing to light.
	if c.req == nil {
		return
	}
	c.req.FlashMode = camera.FlashModeOff
	if on {
		c.req.FlashMode = camera.FlashModeTorch
	}
	if c.torch != nil {
		if err := c.torch.Set(on); err != nil {
			debug.Errorf("torch: %v", err)
		}
	}
}

func (c *Controller) applyLightingMode(ctx context.Context) {
	if c.req == nil || c.req.AEMode != camera.AEModeOn {
		return
	}
	mode, err := c.settings.LightingMode(ctx)
	if err != nil {
		debug.Errorf("read lighting mode: %v", err)
	}
	c.req.AeCompensation = exposure.AeCompensation(mode, c.caps.AeCompensation, true)
	debug.Verbose("Lighting mode %s -> AE compensation %d", mode, c.req.AeCompensation)
}

func (c *Controller) applyZoom() {
	if c.req == nil || c.zoom.SensorWidth <= 0 || c.zoom.SensorHeight <= 0 {
		return
	}
	crop := c.zoom.Crop()
	c.req.CropRegion = &crop
	debug.Zoom(c.zoom.Level, crop.Left, crop.Top, crop.Right, crop.Bottom)
}
