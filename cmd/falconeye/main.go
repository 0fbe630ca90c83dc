package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/fx"

	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/inference"
	"github.com/developer27/falconeye/internal/logic/classify"
)

// defaultWebPort is used by -web= without a value.
const defaultWebPort = 8080

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: defaultWebPort}
	flag.Var(webPort, "web", fmt.Sprintf("start web server on port; -web= for default %d, -web 8980 for custom port", defaultWebPort))
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	classifyPath := flag.String("classify", "", "classify one JPEG/PNG image and exit")
	detectPath := flag.String("detect", "", "run object detection on one JPEG/PNG image and exit")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	prefsBackend := flag.String("prefs", "", "override preferences backend (file, redis, memory)")
	modelEndpoint := flag.String("model", "", "override model endpoint URL")
	flag.Parse()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	overrides := cliOverrides{
		DebugLevel:    *debugLevel,
		PrefsBackend:  *prefsBackend,
		ModelEndpoint: *modelEndpoint,
	}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Cameras", len(cfg.Cameras))

	if *classifyPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ModelTimeout()+5*time.Second)
		defer cancel()
		if err := runClassify(ctx, cfg, *classifyPath, os.Stdout); err != nil {
			log.Fatalf("classify failed: %v", err)
		}
		return
	}
	if *detectPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DetectorTimeout()+5*time.Second)
		defer cancel()
		if err := runDetect(ctx, cfg, *detectPath, os.Stdout); err != nil {
			log.Fatalf("detect failed: %v", err)
		}
		return
	}

	addr := ""
	if port := resolveWebPort(webPort.port(), cfg.Defaults.WebPort); port > 0 {
		addr = fmt.Sprintf(":%d", port)
	}
	app := fx.New(appOptions(cfg, addr), fx.NopLogger)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatalf("start failed: %v", err)
	}
	debug.Summary("FalconEye running")

	sig := <-app.Done()
	debug.Info("Received %v, shutting down", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// runClassify classifies one image file and writes the JSON result to out.
// The model handle is released before returning.
func runClassify(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	if cfg.Model.Endpoint == "" {
		return errors.New("model.endpoint is not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	loader := newModelLoader(cfg)
	defer func() {
		if err := loader.Close(); err != nil {
			debug.Error(err)
		}
	}()

	classifier, err := classify.NewClassifier(loader, cfg.Model.Labels, cfg.Model.InputWidth, cfg.Model.InputHeight)
	if err != nil {
		return err
	}
	res, err := classifier.ClassifyImage(ctx, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func newModelLoader(cfg *config.Config) *inference.Loader {
	return inference.NewLoader(func(ctx context.Context) (inference.Module, error) {
		return inference.NewHTTPModule(cfg.Model.Endpoint, cfg.ModelTimeout())
	})
}

func newDetectorLoader(cfg *config.Config) *inference.Loader {
	return inference.NewLoader(func(ctx context.Context) (inference.Module, error) {
		return inference.NewHTTPModule(cfg.Detector.Endpoint, cfg.DetectorTimeout())
	})
}

// resolveWebPort prefers the -web flag over the configured port.
func resolveWebPort(flagPort, cfgPort int) int {
	if flagPort > 0 {
		return flagPort
	}
	return cfgPort
}

// runDetect runs object detection on one image file and writes the JSON
// result to out, boxes in the image's own pixel coordinates.
func runDetect(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	if cfg.Detector.Endpoint == "" {
		return errors.New("detector.endpoint is not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	loader := newDetectorLoader(cfg)
	defer func() {
		if err := loader.Close(); err != nil {
			debug.Error(err)
		}
	}()

	detector, err := classify.NewDetector(loader, cfg.Detector.Labels, cfg.Detector.Threshold, cfg.Detector.InputWidth, cfg.Detector.InputHeight)
	if err != nil {
		return err
	}
	res, err := detector.DetectImage(ctx, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// cliOverrides holds flag values that replace config entries.
// DebugLevel -1 and empty strings mean "use config".
type cliOverrides struct {
	DebugLevel    int
	PrefsBackend  string
	ModelEndpoint string
}

// validateCLIOverrides checks the flag values that are set.
func validateCLIOverrides(o cliOverrides) error {
	if o.DebugLevel != -1 && (o.DebugLevel < 0 || o.DebugLevel > 4) {
		return fmt.Errorf("debug must be between 0 and 4, got %d", o.DebugLevel)
	}
	switch o.PrefsBackend {
	case "", "file", "redis", "memory":
	default:
		return fmt.Errorf("prefs must be file, redis or memory, got %q", o.PrefsBackend)
	}
	return nil
}

// applyOverrides mutates cfg with the overrides that are set.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.PrefsBackend != "" {
		cfg.Preferences.Backend = o.PrefsBackend
	}
	if o.ModelEndpoint != "" {
		cfg.Model.Endpoint = o.ModelEndpoint
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
