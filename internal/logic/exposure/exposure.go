package exposure

import "strings"

// Mode tells whether the sensor runs under auto-exposure or fixed values.
type Mode int

const (
	Auto Mode = iota
	Manual
)

func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto"
}

// MarshalText encodes the mode as "auto" or "manual".
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

const (
	// MinISO is the lowest sensitivity used for manual exposure, even when
	// the sensor reports a lower bound.
	MinISO = 100

	// ARShutterRateHz is the fixed shutter rate of the AR profile.
	ARShutterRateHz = 250

	// DefaultShutterRateHz is used when no valid rate is configured.
	DefaultShutterRateHz = 15

	nanosPerSecond = int64(1_000_000_000)
)

// LightingMode selects the AE compensation bias.
type LightingMode int

const (
	Normal LightingMode = iota
	Low
	High
)

// ParseLightingMode maps the stored preference value to a LightingMode.
// Unknown values map to Normal.
func ParseLightingMode(s string) LightingMode {
	switch strings.TrimSpace(s) {
	case "low_light":
		return Low
	case "high_light":
		return High
	default:
		return Normal
	}
}

func (l LightingMode) String() string {
	switch l {
	case Low:
		return "low_light"
	case High:
		return "high_light"
	default:
		return "normal"
	}
}

// Range is a closed [Lower, Upper] interval.
type Range struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

// Clamp returns v limited to the range.
func (r Range) Clamp(v int64) int64 {
	if v < r.Lower {
		return r.Lower
	}
	if v > r.Upper {
		return r.Upper
	}
	return v
}

// Capabilities are the sensor ranges relevant to exposure. A nil range
// means the device did not report it.
type Capabilities struct {
	ExposureTimeNs *Range
	Sensitivity    *Range
	AeCompensation *Range
}

// Config is the user-owned exposure configuration.
type Config struct {
	DesiredShutterRateHz  int
	ManualSensorSupported bool
	LightingMode          LightingMode
}

// Result is the exposure directive applied to a capture request.
// ExposureNs and ISO are only meaningful in Manual mode.
type Result struct {
	Mode       Mode  `json:"mode"`
	ExposureNs int64 `json:"exposure_ns,omitempty"`
	ISO        int   `json:"iso,omitempty"`
}

// Compute derives the exposure directive from the configuration and the
// sensor capabilities. It falls back to Auto when manual control is not
// supported, the rate is not positive, or the exposure/ISO ranges are
// missing. Otherwise the frame duration 1s/rate is clamped into the
// exposure range and ISO is max(isoMin, MinISO).
func Compute(cfg Config, caps *Capabilities) Result {
	if !cfg.ManualSensorSupported || cfg.DesiredShutterRateHz <= 0 {
		return Result{Mode: Auto}
	}
	if caps == nil || caps.ExposureTimeNs == nil || caps.Sensitivity == nil {
		return Result{Mode: Auto}
	}

	exposureNs := nanosPerSecond / int64(cfg.DesiredShutterRateHz)
	iso := caps.Sensitivity.Lower
	if iso < MinISO {
		iso = MinISO
	}

	return Result{
		Mode:       Manual,
		ExposureNs: caps.ExposureTimeNs.Clamp(exposureNs),
		ISO:        int(iso),
	}
}

// ComputeAR is Compute with the rate pinned to ARShutterRateHz.
func ComputeAR(manualSupported bool, caps *Capabilities) Result {
	return Compute(Config{
		DesiredShutterRateHz:  ARShutterRateHz,
		ManualSensorSupported: manualSupported,
	}, caps)
}

// AeCompensation returns the exposure compensation index for a lighting
// mode. It is 0 unless auto-exposure is on; Low picks the lower bound and
// High the upper bound of the range (0 when the range is unknown).
func AeCompensation(mode LightingMode, compensation *Range, aeOn bool) int {
	if !aeOn || compensation == nil {
		return 0
	}
	switch mode {
	case Low:
		return int(compensation.Lower)
	case High:
		return int(compensation.Upper)
	default:
		return 0
	}
}
