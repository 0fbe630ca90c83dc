package camera

import "github.com/developer27/falconeye/internal/logic/geometry"

// ControlMode mirrors CONTROL_MODE.
type ControlMode string

const (
	ControlModeAuto ControlMode = "auto"
	ControlModeOff  ControlMode = "off"
)

// AEMode mirrors CONTROL_AE_MODE.
type AEMode string

const (
	AEModeOn  AEMode = "on"
	AEModeOff AEMode = "off"
)

// FlashMode mirrors FLASH_MODE.
type FlashMode string

const (
	FlashModeOff   FlashMode = "off"
	FlashModeTorch FlashMode = "torch"
)

// AWBMode mirrors CONTROL_AWB_MODE.
type AWBMode string

const AWBModeAuto AWBMode = "auto"

// ColorCorrectionMode mirrors COLOR_CORRECTION_MODE.
type ColorCorrectionMode string

const (
	ColorCorrectionFast        ColorCorrectionMode = "fast"
	ColorCorrectionHighQuality ColorCorrectionMode = "high_quality"
)

// CaptureRequest is the set of parameters submitted to a capture session.
// Manual exposure fields are nil while auto-exposure is in charge.
type CaptureRequest struct {
	ControlMode     ControlMode         `json:"control_mode"`
	AEMode          AEMode              `json:"ae_mode"`
	ExposureTimeNs  *int64              `json:"exposure_time_ns,omitempty"`
	Sensitivity     *int                `json:"sensitivity,omitempty"`
	AeCompensation  int                 `json:"ae_compensation"`
	FlashMode       FlashMode           `json:"flash_mode"`
	CropRegion      *geometry.Rect      `json:"crop_region,omitempty"`
	AWBMode         AWBMode             `json:"awb_mode"`
	ColorCorrection ColorCorrectionMode `json:"color_correction"`
	PreviewSize     geometry.Size       `json:"preview_size"`
}

// NewPreviewRequest returns the preview template: everything automatic.
func NewPreviewRequest(previewSize geometry.Size) *CaptureRequest {
	return &CaptureRequest{
		ControlMode:     ControlModeAuto,
		AEMode:          AEModeOn,
		FlashMode:       FlashModeOff,
		AWBMode:         AWBModeAuto,
		ColorCorrection: ColorCorrectionFast,
		PreviewSize:     previewSize,
	}
}

// SetManualExposure switches all auto modes off and fixes exposure and ISO.
func (r *CaptureRequest) SetManualExposure(exposureNs int64, iso int) {
	r.ControlMode = ControlModeOff
	r.AEMode = AEModeOff
	r.ExposureTimeNs = &exposureNs
	r.Sensitivity = &iso
}

// SetAutoExposure restores auto-exposure and drops any manual values.
func (r *CaptureRequest) SetAutoExposure() {
	r.ControlMode = ControlModeAuto
	r.AEMode = AEModeOn
	r.ExposureTimeNs = nil
	r.Sensitivity = nil
}

// ForceColorPipeline pins AWB to auto and colour correction to high
// quality. Some sensors tint the preview green otherwise.
func (r *CaptureRequest) ForceColorPipeline() {
	r.AWBMode = AWBModeAuto
	r.ColorCorrection = ColorCorrectionHighQuality
}

// Clone returns a deep copy suitable for submitting or restoring.
func (r *CaptureRequest) Clone() *CaptureRequest {
	c := *r
	if r.ExposureTimeNs != nil {
		v := *r.ExposureTimeNs
		c.ExposureTimeNs = &v
	}
	if r.Sensitivity != nil {
		v := *r.Sensitivity
		c.Sensitivity = &v
	}
	if r.CropRegion != nil {
		v := *r.CropRegion
		c.CropRegion = &v
	}
	return &c
}
