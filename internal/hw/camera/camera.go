package camera

import (
	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/logic/exposure"
	"github.com/developer27/falconeye/internal/logic/geometry"
)

// Facing is the lens direction of a camera.
type Facing string

const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// Capabilities is what a camera reports once per selection. It is read-only
// for the lifetime of a session. Optional ranges are nil when unreported.
type Capabilities struct {
	ID             string          `json:"id"`
	Facing         Facing          `json:"facing"`
	ManualSensor   bool            `json:"manual_sensor"`
	ExposureTimeNs *exposure.Range `json:"exposure_time_ns,omitempty"`
	Sensitivity    *exposure.Range `json:"sensitivity,omitempty"`
	AeCompensation *exposure.Range `json:"ae_compensation,omitempty"`
	ActiveArray    geometry.Size   `json:"active_array"`
	OutputSizes    []geometry.Size `json:"output_sizes,omitempty"`
}

// Exposure returns the subset of ranges used by exposure computation.
func (c Capabilities) Exposure() *exposure.Capabilities {
	return &exposure.Capabilities{
		ExposureTimeNs: c.ExposureTimeNs,
		Sensitivity:    c.Sensitivity,
		AeCompensation: c.AeCompensation,
	}
}

// FromProfile converts a configured camera profile.
func FromProfile(p config.CameraProfile) Capabilities {
	caps := Capabilities{
		ID:             p.ID,
		Facing:         Facing(p.Facing),
		ManualSensor:   p.ManualSensor,
		ExposureTimeNs: toRange(p.ExposureTimeNs),
		Sensitivity:    toRange(p.Sensitivity),
		AeCompensation: toRange(p.AeCompensation),
		ActiveArray:    geometry.Size{Width: p.ActiveArray.Width, Height: p.ActiveArray.Height},
	}
	for _, s := range p.OutputSizes {
		caps.OutputSizes = append(caps.OutputSizes, geometry.Size{Width: s.Width, Height: s.Height})
	}
	return caps
}

func toRange(r *config.RangeConfig) *exposure.Range {
	if r == nil {
		return nil
	}
	return &exposure.Range{Lower: r.Lower, Upper: r.Upper}
}

// SelectCamera returns the first id whose facing matches, falling back to
// the first id. ok is false only when ids is empty.
func SelectCamera(d Device, facing Facing) (id string, ok bool) {
	ids := d.CameraIDs()
	if len(ids) == 0 {
		return "", false
	}
	for _, id := range ids {
		caps, err := d.Characteristics(id)
		if err != nil {
			continue
		}
		if caps.Facing == facing {
			return id, true
		}
	}
	return ids[0], true
}
