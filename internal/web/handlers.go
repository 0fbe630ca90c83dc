package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/hw/camera"
	"github.com/developer27/falconeye/internal/logic/classify"
	"github.com/developer27/falconeye/internal/logic/control"
	"github.com/developer27/falconeye/internal/prefs"
)

const (
	maxImageBytes = 16 << 20
	maxPrefBytes  = 4 << 10
)

// Camera is the controller surface exposed over HTTP.
type Camera interface {
	Snapshot() control.Snapshot
	ZoomIn(ctx context.Context) error
	ZoomOut(ctx context.Context) error
	ForceARShutter(ctx context.Context) error
	ApplyRollingShutter(ctx context.Context) error
	ApplySettings(ctx context.Context) error
	SwitchCamera(ctx context.Context) error
}

// ImageClassifier classifies an encoded image.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, r io.Reader) (classify.Result, error)
}

// ObjectDetector finds labelled boxes in an encoded image.
type ObjectDetector interface {
	DetectImage(ctx context.Context, r io.Reader) (classify.DetectionResult, error)
}

// ModelStatus reports on the classification model for GET /health.
type ModelStatus interface {
	Labels() []string
	Loaded() bool
	Ping(ctx context.Context) bool
}

// Handlers holds dependencies for HTTP handlers. A nil Classifier or
// Detector makes its route answer 503; a nil Model reports the model as
// unconfigured.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Camera      Camera
	Settings    *prefs.Settings
	Classifier  ImageClassifier
	Detector    ObjectDetector
	Model       ModelStatus
	staticFS    fs.FS
}

func NewHandlers(broadcaster *StatusBroadcaster, cam Camera, settings *prefs.Settings, classifier ImageClassifier, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Camera:      cam,
		Settings:    settings,
		Classifier:  classifier,
		staticFS:    staticFS,
	}
}

// Register adds every route to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/state", h.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/zoom/in", h.command(h.Camera.ZoomIn)).Methods(http.MethodPost)
	r.HandleFunc("/zoom/out", h.command(h.Camera.ZoomOut)).Methods(http.MethodPost)
	r.HandleFunc("/exposure/ar", h.command(h.Camera.ForceARShutter)).Methods(http.MethodPost)
	r.HandleFunc("/exposure/apply", h.command(h.Camera.ApplyRollingShutter)).Methods(http.MethodPost)
	r.HandleFunc("/camera/switch", h.command(h.Camera.SwitchCamera)).Methods(http.MethodPost)
	r.HandleFunc("/preferences", h.HandleGetPreferences).Methods(http.MethodGet)
	r.HandleFunc("/preferences/{key}", h.HandleSetPreference).Methods(http.MethodPut)
	r.HandleFunc("/classify", h.HandleClassify).Methods(http.MethodPost)
	r.HandleFunc("/detect", h.HandleDetect).Methods(http.MethodPost)
	r.HandleFunc("/status/stream", h.HandleStatusStream).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	r.HandleFunc("/", h.ServeIndex).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// commandStatus maps controller errors to HTTP codes.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, control.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// command wraps a controller operation: run it, then answer with the
// resulting snapshot.
func (h *Handlers) command(op func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := op(ctx); err != nil {
			debug.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, err.Error(), commandStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, h.Camera.Snapshot())
	}
}

// HandleState returns the controller snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Camera.Snapshot())
}

type modelHealth struct {
	Configured bool     `json:"configured"`
	Loaded     bool     `json:"loaded"`
	Reachable  bool     `json:"reachable"`
	Labels     []string `json:"labels,omitempty"`
}

type healthResponse struct {
	Camera        string      `json:"camera"`
	SessionActive bool        `json:"session_active"`
	Clients       int         `json:"clients"`
	Model         modelHealth `json:"model"`
}

// HandleHealth reports the camera session state and whether the model
// runtime answers. It always responds 200; callers read the fields.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.Camera.Snapshot()
	resp := healthResponse{
		Camera:        snap.State.String(),
		SessionActive: snap.State == camera.StatePreviewActive,
		Clients:       h.Broadcaster.Clients(),
	}
	if h.Model != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		resp.Model = modelHealth{
			Configured: true,
			Reachable:  h.Model.Ping(ctx),
			Loaded:     h.Model.Loaded(),
			Labels:     h.Model.Labels(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetPreferences returns every preference with its effective value.
func (h *Handlers) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	all, err := h.Settings.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "read preferences: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

type preferenceBody struct {
	Value *string `json:"value"`
}

// HandleSetPreference stores {"value": "..."} under the path key and
// re-applies every setting to the camera.
func (h *Handlers) HandleSetPreference(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	r.Body = http.MaxBytesReader(w, r.Body, maxPrefBytes)
	var body preferenceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		http.Error(w, "body must be {\"value\": \"...\"}", http.StatusBadRequest)
		return
	}
	if err := prefs.Validate(key, *body.Value); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Settings.Store().Set(r.Context(), key, *body.Value); err != nil {
		http.Error(w, "store preference: "+err.Error(), http.StatusInternalServerError)
		return
	}
	debug.Info("Preference %s = %s", key, *body.Value)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.Camera.ApplySettings(ctx); err != nil {
		http.Error(w, err.Error(), commandStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{key: *body.Value})
}

// HandleClassify classifies the JPEG or PNG image in the request body.
func (h *Handlers) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if h.Classifier == nil {
		http.Error(w, "classifier not configured", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	res, err := h.Classifier.ClassifyImage(r.Context(), r.Body)
	if err != nil {
		debug.Errorf("classify: %v", err)
		imageError(w, err)
		return
	}
	h.Broadcaster.Broadcast("info", "Classified as "+res.Label)
	writeJSON(w, http.StatusOK, res)
}

// HandleDetect runs object detection on the JPEG or PNG image in the
// request body.
func (h *Handlers) HandleDetect(w http.ResponseWriter, r *http.Request) {
	if h.Detector == nil {
		http.Error(w, "detector not configured", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	res, err := h.Detector.DetectImage(r.Context(), r.Body)
	if err != nil {
		debug.Errorf("detect: %v", err)
		imageError(w, err)
		return
	}
	captions := make([]string, len(res.Detections))
	for i, d := range res.Detections {
		captions[i] = d.Text()
	}
	msg := fmt.Sprintf("Detected %d objects", len(captions))
	if len(captions) > 0 {
		msg += ": " + strings.Join(captions, ", ")
	}
	h.Broadcaster.Broadcast("info", msg)
	writeJSON(w, http.StatusOK, res)
}

// imageError maps failures of the image routes to HTTP codes.
func imageError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, classify.ErrBadImage):
		http.Error(w, "body must be a JPEG or PNG image", http.StatusUnsupportedMediaType)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// ServeIndex serves the control page.
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatusStream streams notices and log lines as Server-Sent Events.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
