package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RangeConfig is a closed [lower, upper] interval reported by the hardware.
type RangeConfig struct {
	Lower int64 `yaml:"lower"`
	Upper int64 `yaml:"upper"`
}

// SizeConfig is a width x height pair in pixels.
type SizeConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CameraProfile describes the capabilities one camera device reports.
// Optional ranges are nil when the device cannot report them.
type CameraProfile struct {
	ID             string       `yaml:"id"`
	Facing         string       `yaml:"facing"`                     // "back" or "front"
	ManualSensor   bool         `yaml:"manual_sensor"`              // MANUAL_SENSOR capability
	ExposureTimeNs *RangeConfig `yaml:"exposure_time_ns,omitempty"` // SENSOR_INFO_EXPOSURE_TIME_RANGE
	Sensitivity    *RangeConfig `yaml:"sensitivity,omitempty"`      // SENSOR_INFO_SENSITIVITY_RANGE (ISO)
	AeCompensation *RangeConfig `yaml:"ae_compensation,omitempty"`  // CONTROL_AE_COMPENSATION_RANGE
	ActiveArray    SizeConfig   `yaml:"active_array"`               // SENSOR_INFO_ACTIVE_ARRAY_SIZE
	OutputSizes    []SizeConfig `yaml:"output_sizes"`               // stream configuration sizes
}

// TorchConfig describes the flash/torch LED wiring.
type TorchConfig struct {
	Pin       int  `yaml:"pin"`        // GPIO pin (BCM). 0 = no physical torch.
	ActiveLow bool `yaml:"active_low"` // drive LOW to light the LED
}

// PreferencesConfig selects the key-value store holding user settings.
type PreferencesConfig struct {
	Backend       string `yaml:"backend"` // "file", "redis" or "memory"
	Path          string `yaml:"path"`    // YAML file for the "file" backend
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"` // hash holding the preferences
}

// ModelConfig describes the classification model and its runtime endpoint.
type ModelConfig struct {
	Endpoint    string   `yaml:"endpoint"`     // inference runtime URL
	Labels      []string `yaml:"labels"`       // one label per logit
	InputWidth  int      `yaml:"input_width"`  // model input width (px)
	InputHeight int      `yaml:"input_height"` // model input height (px)
	TimeoutMs   int      `yaml:"timeout_ms"`   // per-request timeout
}

// DetectorConfig describes the object detection model and its endpoint.
// An empty endpoint disables detection.
type DetectorConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Labels      []string `yaml:"labels"`       // class id -> name
	Threshold   float64  `yaml:"threshold"`    // minimum confidence, [0, 1); 0 selects 0.08
	InputWidth  int      `yaml:"input_width"`  // frame width fed to the model (px)
	InputHeight int      `yaml:"input_height"` // frame height fed to the model (px)
	TimeoutMs   int      `yaml:"timeout_ms"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	WebPort    int  `yaml:"web_port"`    // web server port when -web is not given (0 = disabled)
}

// Config aggregates all application configuration.
type Config struct {
	Cameras     []CameraProfile   `yaml:"cameras"`
	Torch       TorchConfig       `yaml:"torch"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Model       ModelConfig       `yaml:"model"`
	Detector    DetectorConfig    `yaml:"detector"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// DefaultLabels are the classes of the bundled speed model.
var DefaultLabels = []string{"Speed Type 1", "Speed Type 2", "Speed Type 3", "Speed Type 4"}

// ValidateConfigPath checks that path points to a .yaml file inside a
// configs/ directory and contains no traversal.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path must not contain '..': %s", path)
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path must have .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(path)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if len(cfg.Cameras) == 0 {
		return nil, fmt.Errorf("at least one camera profile is required")
	}
	for i := range cfg.Cameras {
		if err := normalizeCamera(&cfg.Cameras[i], i); err != nil {
			return nil, err
		}
	}

	if cfg.Torch.Pin < 0 {
		return nil, fmt.Errorf("torch.pin must be >= 0, got %d", cfg.Torch.Pin)
	}

	switch cfg.Preferences.Backend {
	case "":
		cfg.Preferences.Backend = "file"
	case "file", "redis", "memory":
	default:
		return nil, fmt.Errorf("unsupported preferences backend: %s", cfg.Preferences.Backend)
	}
	if cfg.Preferences.Path == "" {
		cfg.Preferences.Path = filepath.Join("configs", "preferences.yaml")
	}
	if cfg.Preferences.RedisAddr == "" {
		cfg.Preferences.RedisAddr = "localhost:6379"
	}
	if cfg.Preferences.RedisKey == "" {
		cfg.Preferences.RedisKey = "falconeye:prefs"
	}

	if len(cfg.Model.Labels) == 0 {
		cfg.Model.Labels = append([]string(nil), DefaultLabels...)
	}
	if cfg.Model.InputWidth <= 0 {
		cfg.Model.InputWidth = 224
	}
	if cfg.Model.InputHeight <= 0 {
		cfg.Model.InputHeight = 224
	}
	if cfg.Model.TimeoutMs <= 0 {
		cfg.Model.TimeoutMs = 5000
	}

	if cfg.Detector.Threshold == 0 {
		cfg.Detector.Threshold = 0.08
	}
	if cfg.Detector.Threshold < 0 || cfg.Detector.Threshold >= 1 {
		return nil, fmt.Errorf("detector.threshold must be in [0, 1), got %v", cfg.Detector.Threshold)
	}
	if cfg.Detector.InputWidth <= 0 {
		cfg.Detector.InputWidth = 640
	}
	if cfg.Detector.InputHeight <= 0 {
		cfg.Detector.InputHeight = 480
	}
	if cfg.Detector.TimeoutMs <= 0 {
		cfg.Detector.TimeoutMs = 5000
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	if cfg.Defaults.WebPort < 0 || cfg.Defaults.WebPort > 65535 {
		return nil, fmt.Errorf("web_port must be between 0 and 65535, got %d", cfg.Defaults.WebPort)
	}

	return &cfg, nil
}

func normalizeCamera(p *CameraProfile, idx int) error {
	if p.ID == "" {
		return fmt.Errorf("cameras[%d].id is required", idx)
	}
	switch p.Facing {
	case "":
		p.Facing = "back"
	case "back", "front":
	default:
		return fmt.Errorf("cameras[%d].facing must be \"back\" or \"front\", got %q", idx, p.Facing)
	}
	for name, r := range map[string]*RangeConfig{
		"exposure_time_ns": p.ExposureTimeNs,
		"sensitivity":      p.Sensitivity,
		"ae_compensation":  p.AeCompensation,
	} {
		if r != nil && r.Lower > r.Upper {
			return fmt.Errorf("cameras[%d].%s: lower %d > upper %d", idx, name, r.Lower, r.Upper)
		}
	}
	if p.ActiveArray.Width <= 0 || p.ActiveArray.Height <= 0 {
		return fmt.Errorf("cameras[%d].active_array must be positive, got %dx%d",
			idx, p.ActiveArray.Width, p.ActiveArray.Height)
	}
	return nil
}

// ModelTimeout returns the per-request inference timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutMs) * time.Millisecond
}

// DetectorTimeout returns the per-request detection timeout.
func (c *Config) DetectorTimeout() time.Duration {
	return time.Duration(c.Detector.TimeoutMs) * time.Millisecond
}
