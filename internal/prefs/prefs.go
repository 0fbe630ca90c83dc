// Package prefs holds the user settings consumed by the camera controller.
// Values are strings or booleans stored under well-known keys, with the
// documented defaults applied when a key is absent or unparsable.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/developer27/falconeye/internal/logic/exposure"
)

// Preference keys.
const (
	KeyShutterSpeed = "shutter_speed" // Hz, integer string
	KeyEnableFlash  = "enable_flash"  // "true"/"false"
	KeyLightingMode = "lighting_mode" // "normal", "low_light", "high_light"
	KeyCameraFacing = "camera_facing" // "back" or "front"
)

// Defaults for each key.
const (
	DefaultShutterSpeed = "15"
	DefaultEnableFlash  = false
	DefaultLightingMode = "normal"
	DefaultCameraFacing = "back"
)

var (
	// ErrNotFound is returned by Store.Get when the key has no value.
	ErrNotFound = errors.New("preference not found")
	// ErrUnknownKey is returned by Validate for keys outside the known set.
	ErrUnknownKey = errors.New("unknown preference key")
)

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
	Close() error
}

// Settings reads typed values with defaults on top of a Store.
type Settings struct {
	store Store
}

// NewSettings wraps a store.
func NewSettings(s Store) *Settings {
	return &Settings{store: s}
}

// Store returns the underlying store.
func (s *Settings) Store() Store { return s.store }

// String returns the value for key, or def when it is missing.
// Store errors other than ErrNotFound are returned with def.
func (s *Settings) String(ctx context.Context, key, def string) (string, error) {
	v, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// Bool returns the boolean value for key, or def when missing or unparsable.
func (s *Settings) Bool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.String(ctx, key, "")
	if err != nil || v == "" {
		return def, err
	}
	b, perr := strconv.ParseBool(strings.TrimSpace(v))
	if perr != nil {
		return def, nil
	}
	return b, nil
}

// ShutterRateHz returns the configured shutter rate. Unparsable values
// fall back to exposure.DefaultShutterRateHz.
func (s *Settings) ShutterRateHz(ctx context.Context) (int, error) {
	v, err := s.String(ctx, KeyShutterSpeed, DefaultShutterSpeed)
	n, perr := strconv.Atoi(strings.TrimSpace(v))
	if perr != nil {
		return exposure.DefaultShutterRateHz, err
	}
	return n, err
}

// FlashEnabled reports whether the torch should be lit during preview.
func (s *Settings) FlashEnabled(ctx context.Context) (bool, error) {
	return s.Bool(ctx, KeyEnableFlash, DefaultEnableFlash)
}

// LightingMode returns the configured lighting mode.
func (s *Settings) LightingMode(ctx context.Context) (exposure.LightingMode, error) {
	v, err := s.String(ctx, KeyLightingMode, DefaultLightingMode)
	return exposure.ParseLightingMode(v), err
}

// FrontCamera reports whether the front-facing camera is selected.
func (s *Settings) FrontCamera(ctx context.Context) (bool, error) {
	v, err := s.String(ctx, KeyCameraFacing, DefaultCameraFacing)
	return strings.TrimSpace(v) == "front", err
}

// Snapshot returns every known key with its effective value. Stray keys
// in the store are left out.
func (s *Settings) Snapshot(ctx context.Context) (map[string]string, error) {
	out := map[string]string{
		KeyShutterSpeed: DefaultShutterSpeed,
		KeyEnableFlash:  strconv.FormatBool(DefaultEnableFlash),
		KeyLightingMode: DefaultLightingMode,
		KeyCameraFacing: DefaultCameraFacing,
	}
	all, err := s.store.All(ctx)
	if err != nil {
		return out, err
	}
	for k, v := range all {
		if _, known := out[k]; known {
			out[k] = v
		}
	}
	return out, nil
}

// Validate checks a value before it is written. Only the four known keys
// are accepted.
func Validate(key, value string) error {
	switch key {
	case KeyShutterSpeed:
		if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
			return errors.New("shutter_speed must be an integer (Hz)")
		}
	case KeyEnableFlash:
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			return errors.New("enable_flash must be true or false")
		}
	case KeyLightingMode:
		switch value {
		case "normal", "low_light", "high_light":
		default:
			return errors.New("lighting_mode must be normal, low_light or high_light")
		}
	case KeyCameraFacing:
		if value != "back" && value != "front" {
			return errors.New("camera_facing must be back or front")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}
