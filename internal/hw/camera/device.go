package camera

import (
	"errors"

	"github.com/developer27/falconeye/internal/logic/geometry"
)

// ErrUnknownCamera is returned for ids the device does not expose.
var ErrUnknownCamera = errors.New("unknown camera id")

// Device is the camera driver. Open and ConfigureSession are asynchronous:
// their outcome arrives later as an Event (Opened/Error, Configured/
// ConfigureFailed). A returned error means the request itself was refused.
// Device methods are only called from a single goroutine.
type Device interface {
	CameraIDs() []string
	Characteristics(id string) (Capabilities, error)
	Open(id string) error
	ConfigureSession(previewSize geometry.Size) error
	SubmitRepeating(req *CaptureRequest) error
	Close() error
	Events() <-chan Event
}
