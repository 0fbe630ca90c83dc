package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/fx"

	"github.com/developer27/falconeye/internal/config"
	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/hw/camera"
	"github.com/developer27/falconeye/internal/hw/gpio"
	"github.com/developer27/falconeye/internal/hw/torch"
	"github.com/developer27/falconeye/internal/inference"
	"github.com/developer27/falconeye/internal/logic/classify"
	"github.com/developer27/falconeye/internal/logic/control"
	"github.com/developer27/falconeye/internal/prefs"
	"github.com/developer27/falconeye/internal/web"
)

// webAddr is the listen address; empty disables the web server.
type webAddr string

func provideGPIO(lc fx.Lifecycle, cfg *config.Config) (gpio.Driver, error) {
	debug.Step(1, "Initializing GPIO driver")
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	g, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return g.Close()
		},
	})
	return g, nil
}

func provideTorch(g gpio.Driver, cfg *config.Config) (*torch.Torch, error) {
	debug.Value("Torch pin", cfg.Torch.Pin)
	t, err := torch.New(g, cfg.Torch.Pin, cfg.Torch.ActiveLow)
	if err != nil {
		return nil, fmt.Errorf("torch: %w", err)
	}
	return t, nil
}

func providePrefsStore(lc fx.Lifecycle, cfg *config.Config) (prefs.Store, error) {
	debug.Step(2, "Opening preferences")
	s, err := prefs.Open(cfg.Preferences)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

func provideDevice(cfg *config.Config) camera.Device {
	debug.Step(3, "Initializing camera device")
	return camera.NewSimulatedDevice(cfg.Cameras)
}

func provideController(lc fx.Lifecycle, dev camera.Device, settings *prefs.Settings, t *torch.Torch, b *web.StatusBroadcaster) *control.Controller {
	debug.Step(4, "Creating camera controller")
	ctrl := control.NewController(dev, settings, t, b.Notify)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctrl.Start()
			return ctrl.Open(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return ctrl.Stop(ctx)
		},
	})
	return ctrl
}

func provideModelLoader(lc fx.Lifecycle, cfg *config.Config) *inference.Loader {
	loader := newModelLoader(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return loader.Close()
		},
	})
	return loader
}

func provideClassifier(loader *inference.Loader, cfg *config.Config) (*classify.Classifier, error) {
	return classify.NewClassifier(loader, cfg.Model.Labels, cfg.Model.InputWidth, cfg.Model.InputHeight)
}

// modelStatus answers GET /health from the classifier labels and the
// loader state.
type modelStatus struct {
	*classify.Classifier
	*inference.Loader
}

// detectorLoader keeps the detection model handle apart from the
// classifier's in the container.
type detectorLoader struct {
	*inference.Loader
}

func provideDetectorLoader(lc fx.Lifecycle, cfg *config.Config) detectorLoader {
	loader := newDetectorLoader(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return loader.Close()
		},
	})
	return detectorLoader{loader}
}

func provideDetector(l detectorLoader, cfg *config.Config) (*classify.Detector, error) {
	return classify.NewDetector(l.Loader, cfg.Detector.Labels, cfg.Detector.Threshold, cfg.Detector.InputWidth, cfg.Detector.InputHeight)
}

// HandlerParams collects the dependencies of the HTTP handlers.
type HandlerParams struct {
	fx.In

	Broadcaster *web.StatusBroadcaster
	Controller  *control.Controller
	Settings    *prefs.Settings
	Classifier  *classify.Classifier
	Loader      *inference.Loader
	Detector    *classify.Detector
	Config      *config.Config
}

// provideHandlers turns on the model routes whose endpoints are configured.
func provideHandlers(p HandlerParams) *web.Handlers {
	h := web.NewHandlers(p.Broadcaster, p.Controller, p.Settings, nil, nil)
	if p.Config.Model.Endpoint != "" {
		h.Classifier = p.Classifier
		h.Model = modelStatus{Classifier: p.Classifier, Loader: p.Loader}
	}
	if p.Config.Detector.Endpoint != "" {
		h.Detector = p.Detector
	}
	return h
}

func provideServer(addr webAddr, h *web.Handlers, b *web.StatusBroadcaster) (*web.Server, error) {
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(b)))
	return web.NewServer(string(addr), h)
}

func startServer(lc fx.Lifecycle, srv *web.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var HardwareModule = fx.Options(
	fx.Provide(
		provideGPIO,
		provideTorch,
		provideDevice,
	),
)

var PreferencesModule = fx.Options(
	fx.Provide(
		providePrefsStore,
		prefs.NewSettings,
	),
)

var CameraModule = fx.Options(
	fx.Provide(
		web.NewStatusBroadcaster,
		provideController,
	),
	fx.Invoke(func(*control.Controller) {}),
)

var ModelModule = fx.Options(
	fx.Provide(
		provideModelLoader,
		provideClassifier,
		provideDetectorLoader,
		provideDetector,
	),
)

var WebModule = fx.Options(
	fx.Provide(
		provideHandlers,
		provideServer,
	),
	fx.Invoke(startServer),
)

// appOptions assembles the application. An empty addr leaves the web
// server out.
func appOptions(cfg *config.Config, addr string) fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg),
		HardwareModule,
		PreferencesModule,
		ModelModule,
		CameraModule,
	}
	if addr != "" {
		opts = append(opts, fx.Supply(webAddr(addr)), WebModule)
	}
	return fx.Options(opts...)
}
